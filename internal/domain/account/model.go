package account

import "time"

// Account is a named AWS credential pair. Many users may share one account; it is
// deleted only once no user references it.
type Account struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	AccessKeyID     string    `json:"access_key_id"`
	SecretAccessKey string    `json:"-"`
	CreatedAt       time.Time `json:"created_at"`
}

// MaskedAccessKey returns the access key id with everything but the last four characters hidden
func (a *Account) MaskedAccessKey() string {
	if len(a.AccessKeyID) <= 4 {
		return a.AccessKeyID
	}
	masked := make([]byte, len(a.AccessKeyID))
	for i := range masked {
		masked[i] = '*'
	}
	copy(masked[len(masked)-4:], a.AccessKeyID[len(a.AccessKeyID)-4:])
	return string(masked)
}
