package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/pricing"
	pricingtypes "github.com/aws/aws-sdk-go-v2/service/pricing/types"

	"github.com/pratik-mahalle/ec2inventory/internal/domain/price"
)

// regionLocations maps Price List location names to region codes
var regionLocations = map[string]string{
	"US East (N. Virginia)":      "us-east-1",
	"US East (Ohio)":             "us-east-2",
	"US West (N. California)":    "us-west-1",
	"US West (Oregon)":           "us-west-2",
	"Africa (Cape Town)":         "af-south-1",
	"Asia Pacific (Hong Kong)":   "ap-east-1",
	"Asia Pacific (Mumbai)":      "ap-south-1",
	"Asia Pacific (Tokyo)":       "ap-northeast-1",
	"Asia Pacific (Seoul)":       "ap-northeast-2",
	"Asia Pacific (Osaka)":       "ap-northeast-3",
	"Asia Pacific (Singapore)":   "ap-southeast-1",
	"Asia Pacific (Sydney)":      "ap-southeast-2",
	"Canada (Central)":           "ca-central-1",
	"EU (Frankfurt)":             "eu-central-1",
	"EU (Ireland)":               "eu-west-1",
	"EU (London)":                "eu-west-2",
	"EU (Paris)":                 "eu-west-3",
	"EU (Stockholm)":             "eu-north-1",
	"EU (Milan)":                 "eu-south-1",
	"Middle East (Bahrain)":      "me-south-1",
	"South America (Sao Paulo)":  "sa-east-1",
	"AWS GovCloud (US-West)":     "us-gov-west-1",
	"China (Beijing)":            "cn-north-1",
	"Asia Pacific (Jakarta)":     "ap-southeast-3",
	"Middle East (UAE)":          "me-central-1",
	"Europe (Zurich)":            "eu-central-2",
	"Europe (Spain)":             "eu-south-2",
	"Asia Pacific (Hyderabad)":   "ap-south-2",
	"Asia Pacific (Melbourne)":   "ap-southeast-4",
	"Israel (Tel Aviv)":          "il-central-1",
	"Canada West (Calgary)":      "ca-west-1",
	"AWS GovCloud (US-East)":     "us-gov-east-1",
	"China (Ningxia)":            "cn-northwest-1",
	"Asia Pacific (Malaysia)":    "ap-southeast-5",
	"Asia Pacific (Thailand)":    "ap-southeast-7",
	"Mexico (Central)":           "mx-central-1",
	"Asia Pacific (Taipei)":      "ap-east-2",
	"Asia Pacific (New Zealand)": "ap-southeast-6",
}

// legacyRegions maps the region names of the historical pricing feed
var legacyRegions = map[string]string{
	"eu-ireland":   "eu-west-1",
	"eu-frankfurt": "eu-central-1",
	"apac-sin":     "ap-southeast-1",
	"apac-syd":     "ap-southeast-2",
	"apac-tokyo":   "ap-northeast-1",
}

var legacyRegionPattern = regexp.MustCompile(`^([^0-9]*?)(-(\d))?$`)

// NormalizeRegion resolves the region code of a price entry from its region code,
// its location name or a legacy feed name. It returns "" when none applies.
func NormalizeRegion(regionCode, location string) string {
	if regionCode != "" {
		return regionCode
	}
	if code, ok := regionLocations[location]; ok {
		return code
	}
	if code, ok := legacyRegions[location]; ok {
		return code
	}
	m := legacyRegionPattern.FindStringSubmatch(location)
	if m == nil || m[1] == "" {
		return ""
	}
	num := m[3]
	if num == "" {
		num = "1"
	}
	return m[1] + "-" + num
}

// PlatformFor maps the operating system and pre-installed software attributes of
// a Price List product to an EC2 platform
func PlatformFor(operatingSystem, preInstalledSw string) (string, bool) {
	switch operatingSystem {
	case "Linux":
		if preInstalledSw == "NA" {
			return price.PlatformLinux, true
		}
	case "RHEL":
		if preInstalledSw == "NA" {
			return price.PlatformRHEL, true
		}
	case "SUSE":
		if preInstalledSw == "NA" {
			return price.PlatformSLES, true
		}
	case "Windows":
		switch preInstalledSw {
		case "NA":
			return price.PlatformWindows, true
		case "SQL Std":
			return price.PlatformWindowsSQL, true
		case "SQL Web":
			return price.PlatformWindowsSQLWeb, true
		case "SQL Ent":
			return price.PlatformWindowsSQLEnterprise, true
		}
	}
	return "", false
}

type productAttributes struct {
	InstanceType    string `json:"instanceType"`
	OperatingSystem string `json:"operatingSystem"`
	PreInstalledSw  string `json:"preInstalledSw"`
	RegionCode      string `json:"regionCode"`
	Location        string `json:"location"`
	LicenseModel    string `json:"licenseModel"`
}

type priceDimension struct {
	Unit         string            `json:"unit"`
	PricePerUnit map[string]string `json:"pricePerUnit"`
}

type offerTerm struct {
	PriceDimensions map[string]priceDimension `json:"priceDimensions"`
}

type productEntry struct {
	Product struct {
		ProductFamily string            `json:"productFamily"`
		Attributes    productAttributes `json:"attributes"`
	} `json:"product"`
	Terms struct {
		OnDemand map[string]offerTerm `json:"OnDemand"`
	} `json:"terms"`
}

// ParseProduct turns one Price List entry into a Quote. ok is false for entries
// that do not describe a priced on-demand instance on a known platform.
func ParseProduct(raw string) (q price.Quote, ok bool, err error) {
	var entry productEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return price.Quote{}, false, fmt.Errorf("error parsing pricing data: %w", err)
	}

	attrs := entry.Product.Attributes
	if attrs.InstanceType == "" || attrs.LicenseModel == "Bring your own license" {
		return price.Quote{}, false, nil
	}
	platform, known := PlatformFor(attrs.OperatingSystem, attrs.PreInstalledSw)
	if !known {
		return price.Quote{}, false, nil
	}
	region := NormalizeRegion(attrs.RegionCode, attrs.Location)
	if region == "" {
		return price.Quote{}, false, nil
	}

	for _, term := range entry.Terms.OnDemand {
		for _, dim := range term.PriceDimensions {
			usd, found := dim.PricePerUnit["USD"]
			if !found {
				continue
			}
			hourly, err := strconv.ParseFloat(usd, 64)
			if err != nil {
				return price.Quote{}, false, fmt.Errorf("error parsing price %q: %w", usd, err)
			}
			if hourly <= 0 {
				continue
			}
			return price.Quote{
				Region:       region,
				InstanceType: attrs.InstanceType,
				Platform:     platform,
				HourlyPrice:  hourly,
			}, true, nil
		}
	}
	return price.Quote{}, false, nil
}

// PriceFeed reads on-demand EC2 prices from the Price List API
type PriceFeed struct {
	client PricingAPI
	retry  RetryPolicy
}

// NewPriceFeed creates a feed over a Price List client
func NewPriceFeed(client PricingAPI, retry RetryPolicy) *PriceFeed {
	return &PriceFeed{client: client, retry: retry}
}

func termMatch(field, value string) pricingtypes.Filter {
	return pricingtypes.Filter{
		Type:  pricingtypes.FilterTypeTermMatch,
		Field: aws.String(field),
		Value: aws.String(value),
	}
}

// Each pages through the shared-tenancy compute instance products and calls fn
// with every raw entry. A page that still fails after retries ends the walk.
func (f *PriceFeed) Each(ctx context.Context, fn func(raw string)) error {
	input := &pricing.GetProductsInput{
		ServiceCode: aws.String("AmazonEC2"),
		Filters: []pricingtypes.Filter{
			termMatch("productFamily", "Compute Instance"),
			termMatch("tenancy", "Shared"),
			termMatch("capacitystatus", "Used"),
		},
		MaxResults: aws.Int32(100),
	}

	p := pricing.NewGetProductsPaginator(f.client, input)
	for p.HasMorePages() {
		page, err := Call(ctx, f.retry, "pricing:GetProducts", func(ctx context.Context) (*pricing.GetProductsOutput, error) {
			return p.NextPage(ctx)
		})
		if err != nil {
			return err
		}
		for _, raw := range page.PriceList {
			fn(raw)
		}
	}
	return nil
}
