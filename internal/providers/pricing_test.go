package providers

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/pricing"

	"github.com/pratik-mahalle/ec2inventory/internal/domain/price"
)

func TestNormalizeRegion(t *testing.T) {
	tests := []struct {
		name       string
		regionCode string
		location   string
		want       string
	}{
		{name: "region code wins", regionCode: "eu-west-3", location: "EU (Ireland)", want: "eu-west-3"},
		{name: "location name", location: "EU (Ireland)", want: "eu-west-1"},
		{name: "legacy ireland", location: "eu-ireland", want: "eu-west-1"},
		{name: "legacy tokyo", location: "apac-tokyo", want: "ap-northeast-1"},
		{name: "legacy without number", location: "us-east", want: "us-east-1"},
		{name: "legacy with number", location: "us-west-2", want: "us-west-2"},
		{name: "unparseable", location: "region 42", want: ""},
		{name: "empty", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeRegion(tt.regionCode, tt.location); got != tt.want {
				t.Errorf("NormalizeRegion(%q, %q) = %q, want %q", tt.regionCode, tt.location, got, tt.want)
			}
		})
	}
}

func TestPlatformFor(t *testing.T) {
	tests := []struct {
		os, sw string
		want   string
		ok     bool
	}{
		{"Linux", "NA", price.PlatformLinux, true},
		{"Linux", "SQL Web", "", false},
		{"RHEL", "NA", price.PlatformRHEL, true},
		{"SUSE", "NA", price.PlatformSLES, true},
		{"Windows", "NA", price.PlatformWindows, true},
		{"Windows", "SQL Std", price.PlatformWindowsSQL, true},
		{"Windows", "SQL Web", price.PlatformWindowsSQLWeb, true},
		{"Windows", "SQL Ent", price.PlatformWindowsSQLEnterprise, true},
		{"Red Hat Enterprise Linux with HA", "NA", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.os+"/"+tt.sw, func(t *testing.T) {
			got, ok := PlatformFor(tt.os, tt.sw)
			if got != tt.want || ok != tt.ok {
				t.Errorf("PlatformFor() = (%q, %v), want (%q, %v)", got, ok, tt.want, tt.ok)
			}
		})
	}
}

const sampleProduct = `{
	"product": {
		"productFamily": "Compute Instance",
		"attributes": {
			"instanceType": "m5.large",
			"operatingSystem": "Windows",
			"preInstalledSw": "SQL Web",
			"regionCode": "eu-west-1",
			"location": "EU (Ireland)",
			"licenseModel": "No License required"
		}
	},
	"terms": {
		"OnDemand": {
			"ABC.JRTCKXETXF": {
				"priceDimensions": {
					"ABC.JRTCKXETXF.6YS6EN2CT7": {
						"unit": "Hrs",
						"pricePerUnit": {"USD": "0.2150000000"}
					}
				}
			}
		}
	}
}`

func TestParseProduct(t *testing.T) {
	q, ok, err := ParseProduct(sampleProduct)
	if err != nil {
		t.Fatalf("ParseProduct() error = %v", err)
	}
	if !ok {
		t.Fatal("ParseProduct() ok = false, want true")
	}
	want := price.Quote{Region: "eu-west-1", InstanceType: "m5.large", Platform: price.PlatformWindowsSQLWeb, HourlyPrice: 0.215}
	if q != want {
		t.Errorf("ParseProduct() = %+v, want %+v", q, want)
	}
}

func TestParseProduct_Skipped(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{
			name: "bring your own license",
			raw:  `{"product":{"attributes":{"instanceType":"m5.large","operatingSystem":"Windows","preInstalledSw":"NA","regionCode":"us-east-1","licenseModel":"Bring your own license"}},"terms":{"OnDemand":{"a":{"priceDimensions":{"b":{"pricePerUnit":{"USD":"0.1"}}}}}}}`,
		},
		{
			name: "zero price",
			raw:  `{"product":{"attributes":{"instanceType":"m5.large","operatingSystem":"Linux","preInstalledSw":"NA","regionCode":"us-east-1"}},"terms":{"OnDemand":{"a":{"priceDimensions":{"b":{"pricePerUnit":{"USD":"0.0000000000"}}}}}}}`,
		},
		{
			name: "unknown platform",
			raw:  `{"product":{"attributes":{"instanceType":"m5.large","operatingSystem":"Ubuntu Pro","preInstalledSw":"NA","regionCode":"us-east-1"}},"terms":{}}`,
		},
		{
			name:    "invalid json",
			raw:     `{"product":`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok, err := ParseProduct(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseProduct() error = %v, wantErr %v", err, tt.wantErr)
			}
			if ok {
				t.Error("ParseProduct() ok = true, want false")
			}
		})
	}
}

type pagedPricing struct {
	pages [][]string
	calls int
}

func (p *pagedPricing) GetProducts(ctx context.Context, in *pricing.GetProductsInput, _ ...func(*pricing.Options)) (*pricing.GetProductsOutput, error) {
	i := p.calls
	p.calls++
	out := &pricing.GetProductsOutput{PriceList: p.pages[i]}
	if i+1 < len(p.pages) {
		next := "page"
		out.NextToken = &next
	}
	return out, nil
}

func TestPriceFeed_Each(t *testing.T) {
	client := &pagedPricing{pages: [][]string{{"a", "b"}, {"c"}}}
	feed := NewPriceFeed(client, RetryPolicy{MaxTries: 1})

	var got []string
	if err := feed.Each(context.Background(), func(raw string) { got = append(got, raw) }); err != nil {
		t.Fatalf("Each() error = %v", err)
	}
	if len(got) != 3 || client.calls != 2 {
		t.Errorf("Each() visited %v in %d calls, want 3 entries in 2 calls", got, client.calls)
	}
}
