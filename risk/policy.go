package risk

import (
	"fmt"
	"net/netip"
	"slices"
	"time"
)

type PolicyType string

const (
	PolicyAllow       PolicyType = "allow"
	PolicyDeny        PolicyType = "deny"
	PolicyConditional PolicyType = "conditional"
	PolicyAdaptive    PolicyType = "adaptive"
)

// Response is what the caller must do with the access attempt
type Response string

const (
	ResponseAllow   Response = "allow"
	ResponseMonitor Response = "monitor"
	ResponseStepUp  Response = "step_up"
	ResponseDeny    Response = "deny"
)

const wildcard = "*"

// Scope limits a policy to resources and actions. Empty lists match everything.
type Scope struct {
	Resources []string `json:"resources,omitempty"`
	Actions   []string `json:"actions,omitempty"`
}

func (s Scope) matches(resource, action string) bool {
	return matchesList(s.Resources, resource) && matchesList(s.Actions, action)
}

func matchesList(list []string, value string) bool {
	return len(list) == 0 || slices.Contains(list, wildcard) || slices.Contains(list, value)
}

// TimeWindow allows access from StartHour up to, not including, EndHour (UTC).
// A window whose start is after its end wraps midnight. Empty Days means every day.
type TimeWindow struct {
	StartHour int            `json:"start_hour"`
	EndHour   int            `json:"end_hour"`
	Days      []time.Weekday `json:"days,omitempty"`
}

func (w TimeWindow) contains(at time.Time) bool {
	at = at.UTC()
	if len(w.Days) > 0 && !slices.Contains(w.Days, at.Weekday()) {
		return false
	}
	if w.StartHour == w.EndHour {
		return true
	}
	hour := at.Hour()
	if w.StartHour < w.EndHour {
		return hour >= w.StartHour && hour < w.EndHour
	}
	return hour >= w.StartHour || hour < w.EndHour
}

type DeviceConstraints struct {
	RequireTrusted bool `json:"require_trusted,omitempty"`
	RequireKnown   bool `json:"require_known,omitempty"`
}

// Conditions are all deny-triggering: the policy denies as soon as one fails.
type Conditions struct {
	TimeWindow       *TimeWindow        `json:"time_window,omitempty"`
	MaxRiskScore     *int               `json:"max_risk_score,omitempty"`
	MaxRiskLevel     Level              `json:"max_risk_level,omitempty"`
	AllowedCountries []string           `json:"allowed_countries,omitempty"`
	BlockedCountries []string           `json:"blocked_countries,omitempty"`
	AllowedNetworks  []string           `json:"allowed_networks,omitempty"`
	BlockedNetworks  []string           `json:"blocked_networks,omitempty"`
	Device           *DeviceConstraints `json:"device,omitempty"`
}

// Actions choose the response when the policy denies or the risk is high.
// Empty values fall back to the engine defaults.
type Actions struct {
	OnDeny     Response `json:"on_deny,omitempty"`
	OnHighRisk Response `json:"on_high_risk,omitempty"`
}

// Policy is a prioritised access rule. An empty TenantID makes it global.
type Policy struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	TenantID   string     `json:"tenant_id,omitempty"`
	Type       PolicyType `json:"type"`
	Priority   int        `json:"priority"`
	Active     bool       `json:"active"`
	Scope      Scope      `json:"scope"`
	Conditions Conditions `json:"conditions"`
	Actions    Actions    `json:"actions"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Validate rejects policies the engine could not evaluate as written
func (p *Policy) Validate() error {
	switch p.Type {
	case PolicyAllow, PolicyDeny, PolicyConditional, PolicyAdaptive:
	default:
		return fmt.Errorf("%w: unknown policy type %q", ErrInvalidPolicy, p.Type)
	}
	if p.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidPolicy)
	}
	if w := p.Conditions.TimeWindow; w != nil {
		if w.StartHour < 0 || w.StartHour > 23 || w.EndHour < 0 || w.EndHour > 23 {
			return fmt.Errorf("%w: time window hours must be 0-23", ErrInvalidPolicy)
		}
	}
	if s := p.Conditions.MaxRiskScore; s != nil && (*s < 0 || *s > 100) {
		return fmt.Errorf("%w: max risk score must be 0-100", ErrInvalidPolicy)
	}
	if l := p.Conditions.MaxRiskLevel; l != "" {
		if _, ok := levelRanks[l]; !ok {
			return fmt.Errorf("%w: unknown risk level %q", ErrInvalidPolicy, l)
		}
	}
	for _, cidr := range append(slices.Clone(p.Conditions.AllowedNetworks), p.Conditions.BlockedNetworks...) {
		if _, err := netip.ParsePrefix(cidr); err != nil {
			return fmt.Errorf("%w: network %q: %v", ErrInvalidPolicy, cidr, err)
		}
	}
	for _, r := range []Response{p.Actions.OnDeny, p.Actions.OnHighRisk} {
		switch r {
		case "", ResponseAllow, ResponseMonitor, ResponseStepUp, ResponseDeny:
		default:
			return fmt.Errorf("%w: unknown response %q", ErrInvalidPolicy, r)
		}
	}
	return nil
}

// AppliesTo reports whether the policy covers the access attempt
func (p *Policy) AppliesTo(ac *AccessContext) bool {
	if !p.Active {
		return false
	}
	if p.TenantID != "" && p.TenantID != ac.TenantID {
		return false
	}
	return p.Scope.matches(ac.Resource, ac.Action)
}

// verdict is one policy's view of an access attempt
type verdict struct {
	deny   bool
	reason string
}

// evaluate checks every deny-triggering condition; the first failing one decides.
func (p *Policy) evaluate(ac *AccessContext, assessment *Assessment, at time.Time) verdict {
	if p.Type == PolicyDeny {
		return verdict{deny: true, reason: "denied by policy"}
	}

	c := p.Conditions
	if c.TimeWindow != nil && !c.TimeWindow.contains(at) {
		return verdict{deny: true, reason: "outside allowed time window"}
	}
	if c.MaxRiskScore != nil && assessment.Score > *c.MaxRiskScore {
		return verdict{deny: true, reason: "risk score above policy threshold"}
	}
	if c.MaxRiskLevel != "" && assessment.Level.Exceeds(c.MaxRiskLevel) {
		return verdict{deny: true, reason: "risk level above policy threshold"}
	}

	country := ac.country()
	if country != "" && slices.Contains(c.BlockedCountries, country) {
		return verdict{deny: true, reason: "location blocked"}
	}
	if len(c.AllowedCountries) > 0 && !slices.Contains(c.AllowedCountries, country) {
		return verdict{deny: true, reason: "location not allowed"}
	}

	addr, addrErr := netip.ParseAddr(ac.IPAddress)
	if addrErr == nil && inAnyNetwork(addr, c.BlockedNetworks) {
		return verdict{deny: true, reason: "network blocked"}
	}
	if len(c.AllowedNetworks) > 0 && (addrErr != nil || !inAnyNetwork(addr, c.AllowedNetworks)) {
		return verdict{deny: true, reason: "network not allowed"}
	}

	if d := c.Device; d != nil {
		if d.RequireTrusted && (ac.Device == nil || !ac.Device.Trusted) {
			return verdict{deny: true, reason: "untrusted device"}
		}
		if d.RequireKnown && assessment.Has(FactorNewDevice) {
			return verdict{deny: true, reason: "unknown device"}
		}
	}
	return verdict{}
}

// inAnyNetwork ignores malformed prefixes; Validate keeps them out of stored policies.
func inAnyNetwork(addr netip.Addr, cidrs []string) bool {
	addr = addr.Unmap()
	for _, cidr := range cidrs {
		prefix, err := netip.ParsePrefix(cidr)
		if err != nil {
			continue
		}
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}
