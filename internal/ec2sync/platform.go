package ec2sync

import (
	"strings"

	"github.com/pratik-mahalle/ec2inventory/internal/domain/price"
)

var platformDetails = map[string]string{
	"Linux/UNIX":                         price.PlatformLinux,
	"Red Hat Enterprise Linux":           price.PlatformRHEL,
	"SUSE Linux":                         price.PlatformSLES,
	"Windows":                            price.PlatformWindows,
	"Windows with SQL Server Standard":   price.PlatformWindowsSQL,
	"Windows with SQL Server Web":        price.PlatformWindowsSQLWeb,
	"Windows with SQL Server Enterprise": price.PlatformWindowsSQLEnterprise,
}

// ResolvePlatform returns the EC2 pricing platform of an instance.
//
// The billing platform reported by EC2 is used when it is one of the priced
// platforms. Otherwise the platform is guessed from the instance platform field
// and the name of its AMI: an empty platform is linux unless the AMI name mentions
// SQL, a windows platform is refined by the SQL edition found in the AMI name, and
// a windows AMI whose name carries no known keyword is windows-unknown.
func ResolvePlatform(platform, details, amiName string) string {
	if p, ok := platformDetails[details]; ok {
		return p
	}

	name := strings.ToLower(amiName)
	sql := strings.Contains(name, "sql")

	switch strings.ToLower(platform) {
	case "":
		if !sql {
			return price.PlatformLinux
		}
	case "windows":
	default:
		return price.PlatformLinux
	}

	switch {
	case sql && strings.Contains(name, "web"):
		return price.PlatformWindowsSQLWeb
	case sql && strings.Contains(name, "enterprise"):
		return price.PlatformWindowsSQLEnterprise
	case sql:
		return price.PlatformWindowsSQL
	case strings.Contains(name, "windows"):
		return price.PlatformWindows
	default:
		return price.PlatformWindowsUnknown
	}
}
