package price

import (
	"math"
	"time"
)

// EC2 platforms used to match instances with prices
const (
	PlatformLinux                = "linux"
	PlatformRHEL                 = "rhel"
	PlatformSLES                 = "sles"
	PlatformWindows              = "mswin"
	PlatformWindowsSQL           = "mswinSQL"
	PlatformWindowsSQLWeb        = "mswinSQLWeb"
	PlatformWindowsSQLEnterprise = "mswinSQLEnterprise"
	PlatformWindowsUnknown       = "windows-unknown"
)

// Price is the public on-demand hourly price of an instance type, shared by all tenants
type Price struct {
	ID           string    `json:"id"`
	InstanceType string    `json:"instance_type"`
	Platform     string    `json:"platform"`
	Region       string    `json:"region"`
	HourlyPrice  float64   `json:"hourly_price"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Quote is one tuple of the pricing feed
type Quote struct {
	Region       string
	InstanceType string
	Platform     string
	HourlyPrice  float64
}

// Round3 rounds an hourly price to the stored precision
func Round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// Daily returns the daily cost of an hourly price
func Daily(hourly float64) float64 {
	return hourly * 24
}

// Monthly returns the cost over the month containing t
func Monthly(hourly float64, t time.Time) float64 {
	return Daily(hourly) * float64(DaysIn(t))
}

// DaysIn returns the number of days of the month containing t
func DaysIn(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
}

// Class buckets a price into 0..10 relative to the most expensive one
func Class(hourly, max float64) int {
	if max <= 0 {
		return 0
	}
	return int(math.Round(hourly / max * 10))
}
