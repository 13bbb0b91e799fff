package risk

import (
	"time"
)

type Location struct {
	Country string `json:"country,omitempty"`
	City    string `json:"city,omitempty"`
}

// Device describes the client device of an access attempt
type Device struct {
	Fingerprint string `json:"fingerprint,omitempty"`
	UserAgent   string `json:"user_agent,omitempty"`
	Trusted     bool   `json:"trusted,omitempty"`
}

// AccessContext is everything the engine knows about one access attempt. It is
// never persisted; the decision it produces is.
type AccessContext struct {
	UserID        string    `json:"user_id"`
	TenantID      string    `json:"tenant_id,omitempty"`
	SessionID     string    `json:"session_id,omitempty"`
	Resource      string    `json:"resource"`
	Action        string    `json:"action"`
	Location      *Location `json:"location,omitempty"`
	Device        *Device   `json:"device,omitempty"`
	IPAddress     string    `json:"ip_address,omitempty"`
	BulkOperation bool      `json:"bulk_operation,omitempty"`

	// At is the time of the attempt; zero means now
	At time.Time `json:"at,omitzero"`
}

func (ac *AccessContext) country() string {
	if ac.Location == nil {
		return ""
	}
	return ac.Location.Country
}

func (ac *AccessContext) fingerprint() string {
	if ac.Device == nil {
		return ""
	}
	return ac.Device.Fingerprint
}
