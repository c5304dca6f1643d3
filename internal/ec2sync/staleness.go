package ec2sync

import "time"

// IsDue reports whether a refresh last run at last is due at now. The boundary
// now-last == interval is due.
func IsDue(now, last time.Time, interval time.Duration) bool {
	return now.Sub(last) >= interval
}
