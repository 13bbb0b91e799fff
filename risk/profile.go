package risk

import (
	"slices"
	"time"

	"github.com/jrsteele09/go-sso-server/sessions"
)

// typicalHourMinSessions is how many sampled sessions must start in an hour
// for that hour to count as typical
const typicalHourMinSessions = 3

// Profile is a user's behaviour derived from their recent sessions
type Profile struct {
	UserID     string    `json:"user_id"`
	Countries  []string  `json:"countries"`
	Devices    []string  `json:"devices"`
	Hours      []int     `json:"hours"`
	SampleSize int       `json:"sample_size"`
	BuiltAt    time.Time `json:"built_at"`
}

// BuildProfile derives a profile from session history entries, newest first.
// Hours are UTC.
func BuildProfile(userID string, entries []sessions.HistoryEntry, builtAt time.Time) *Profile {
	p := &Profile{
		UserID:     userID,
		Countries:  []string{},
		Devices:    []string{},
		Hours:      []int{},
		SampleSize: len(entries),
		BuiltAt:    builtAt,
	}

	var hourCounts [24]int
	for _, e := range entries {
		if e.Country != "" && !slices.Contains(p.Countries, e.Country) {
			p.Countries = append(p.Countries, e.Country)
		}
		if e.DeviceID != "" && !slices.Contains(p.Devices, e.DeviceID) {
			p.Devices = append(p.Devices, e.DeviceID)
		}
		hourCounts[e.CreatedAt.UTC().Hour()]++
	}
	for hour, n := range hourCounts {
		if n >= typicalHourMinSessions {
			p.Hours = append(p.Hours, hour)
		}
	}
	return p
}

func (p *Profile) TypicalHour(at time.Time) bool {
	return slices.Contains(p.Hours, at.UTC().Hour())
}

// KnownCountry is false for an empty country
func (p *Profile) KnownCountry(country string) bool {
	return country != "" && slices.Contains(p.Countries, country)
}

// KnownDevice is false for an empty fingerprint
func (p *Profile) KnownDevice(fingerprint string) bool {
	return fingerprint != "" && slices.Contains(p.Devices, fingerprint)
}
