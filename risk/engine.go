package risk

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/jrsteele09/go-sso-server/internal/observability"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// StepUpMethod is the second factor a step_up response asks for
type StepUpMethod string

const (
	StepUpSMS  StepUpMethod = "sms"
	StepUpTOTP StepUpMethod = "totp"
)

const (
	stepUpScore           = 50
	failedAttemptLimit    = 3
	defaultFailedWindow   = time.Hour
	componentRiskEngine   = "risk_engine"
	reasonPolicyStoreDown = "policy store unavailable"
)

var (
	defaultSensitiveActions   = []string{"delete", "export", "bulk_update", "change_permissions"}
	defaultSensitiveResources = []string{"medical_records", "billing", "user_management", "audit_logs"}
)

// Decision is the engine's answer for one access attempt
type Decision struct {
	Allowed        bool         `json:"allowed"`
	Response       Response     `json:"response"`
	Score          int          `json:"score"`
	Level          Level        `json:"level"`
	Factors        []Factor     `json:"factors"`
	StepUpRequired bool         `json:"step_up_required"`
	StepUpMethod   StepUpMethod `json:"step_up_method,omitempty"`
	PolicyID       string       `json:"policy_id,omitempty"`
	Reason         string       `json:"reason,omitempty"`
}

// Engine scores access attempts against user behaviour and evaluates access
// policies. Its only write is the access log.
type Engine struct {
	profiles           *ProfileCache
	policies           PolicyRepo
	accessLog          AccessLogRepo
	logger             zerolog.Logger
	nowFunc            func() time.Time
	sensitiveActions   []string
	sensitiveResources []string
	failedWindow       time.Duration
}

type EngineOption func(*Engine)

func WithClock(nowFunc func() time.Time) EngineOption {
	return func(e *Engine) {
		e.nowFunc = nowFunc
	}
}

func WithSensitiveActions(actions ...string) EngineOption {
	return func(e *Engine) {
		e.sensitiveActions = actions
	}
}

func WithSensitiveResources(resources ...string) EngineOption {
	return func(e *Engine) {
		e.sensitiveResources = resources
	}
}

// WithFailedAttemptWindow sets how far back denied attempts are counted
func WithFailedAttemptWindow(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d > 0 {
			e.failedWindow = d
		}
	}
}

func WithLogger(logger zerolog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

func NewEngine(profiles *ProfileCache, policies PolicyRepo, accessLog AccessLogRepo, options ...EngineOption) (*Engine, error) {
	if profiles == nil {
		return nil, errors.New("[NewEngine] profile cache is required")
	}
	if policies == nil {
		return nil, errors.New("[NewEngine] policy repo is required")
	}
	if accessLog == nil {
		return nil, errors.New("[NewEngine] access log repo is required")
	}
	e := &Engine{
		profiles:           profiles,
		policies:           policies,
		accessLog:          accessLog,
		logger:             log.Logger,
		nowFunc:            time.Now,
		sensitiveActions:   defaultSensitiveActions,
		sensitiveResources: defaultSensitiveResources,
		failedWindow:       defaultFailedWindow,
	}
	for _, opt := range options {
		opt(e)
	}
	return e, nil
}

// AssessRisk scores an access attempt. Signals that cannot be read count as
// triggered.
func (e *Engine) AssessRisk(ctx context.Context, ac *AccessContext) (*Assessment, error) {
	if ac == nil || ac.UserID == "" || ac.Resource == "" || ac.Action == "" {
		return nil, ErrInvalidContext
	}
	at := e.attemptTime(ac)

	profile, err := e.profiles.Get(ctx, ac.UserID)
	if err != nil {
		e.logger.Error().Err(err).Str("user_id", ac.UserID).Msg("behaviour profile unavailable, scoring against an empty profile")
		profile = BuildProfile(ac.UserID, nil, at)
	}

	assessment := &Assessment{Factors: []Factor{}}
	if !profile.TypicalHour(at) {
		assessment.add(FactorOutsideWorkingHours)
	}
	if !profile.KnownCountry(ac.country()) {
		assessment.add(FactorUnusualLocation)
	}
	if !profile.KnownDevice(ac.fingerprint()) {
		assessment.add(FactorNewDevice)
	}
	if e.isSensitive(ac) {
		assessment.add(FactorSensitiveAction)
	}
	if ac.BulkOperation {
		assessment.add(FactorBulkOperation)
	}

	denied, err := e.accessLog.CountDenied(ctx, ac.UserID, at.Add(-e.failedWindow))
	if err != nil {
		e.logger.Error().Err(err).Str("user_id", ac.UserID).Msg("failed attempt count unavailable")
		assessment.add(FactorMultipleFailedAttempts)
	} else if denied > failedAttemptLimit {
		assessment.add(FactorMultipleFailedAttempts)
	}

	assessment.finish()
	return assessment, nil
}

// EvaluateAccess assesses the attempt, runs the applicable policies in
// descending priority and derives the response. The decision is appended to
// the access log.
func (e *Engine) EvaluateAccess(ctx context.Context, ac *AccessContext) (*Decision, error) {
	assessment, err := e.AssessRisk(ctx, ac)
	if err != nil {
		return nil, err
	}
	at := e.attemptTime(ac)

	decision := &Decision{
		Score:   assessment.Score,
		Level:   assessment.Level,
		Factors: assessment.Factors,
	}

	policies, err := e.policies.Active(ctx, ac.TenantID)
	if err != nil {
		observability.CaptureInfrastructureError(e.logger, fmt.Errorf("[Engine.EvaluateAccess] load policies: %w", err), componentRiskEngine)
		decision.Response = ResponseDeny
		decision.Reason = reasonPolicyStoreDown
		e.finish(ctx, ac, decision, at)
		return decision, nil
	}
	applicable := e.applicable(policies, ac)

	var override *Policy
	for i := range applicable {
		p := &applicable[i]
		v := p.evaluate(ac, assessment, at)
		if v.deny {
			decision.PolicyID = p.ID
			decision.Reason = fmt.Sprintf("%s: %s", p.Name, v.reason)
			decision.Response = ResponseDeny
			if p.Actions.OnDeny == ResponseStepUp {
				decision.Response = ResponseStepUp
			}
			e.logger.Info().Str("user_id", ac.UserID).Str("policy_id", p.ID).Str("reason", v.reason).Msg("access denied by policy")
			e.finish(ctx, ac, decision, at)
			return decision, nil
		}
		if override == nil && p.Actions.OnHighRisk != "" {
			override = p
		}
	}

	switch {
	case assessment.Level == LevelCritical:
		decision.Response = ResponseDeny
		decision.Reason = "critical risk"
	case assessment.Level == LevelHigh && override != nil:
		decision.Response = override.Actions.OnHighRisk
		decision.PolicyID = override.ID
		decision.Reason = override.Name + ": high risk action"
	case assessment.Level == LevelHigh || assessment.Score >= stepUpScore:
		decision.Response = ResponseStepUp
		decision.Reason = "elevated risk"
	case assessment.Level == LevelMedium:
		decision.Response = ResponseMonitor
	default:
		decision.Response = ResponseAllow
	}

	e.finish(ctx, ac, decision, at)
	return decision, nil
}

// applicable returns the policies covering ac, highest priority first. Equal
// priorities keep a stable order by id.
func (e *Engine) applicable(policies []Policy, ac *AccessContext) []Policy {
	list := make([]Policy, 0, len(policies))
	for _, p := range policies {
		if p.AppliesTo(ac) {
			list = append(list, p)
		}
	}
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Priority != list[j].Priority {
			return list[i].Priority > list[j].Priority
		}
		return list[i].ID < list[j].ID
	})
	return list
}

func (e *Engine) finish(ctx context.Context, ac *AccessContext, d *Decision, at time.Time) {
	d.Allowed = d.Response == ResponseAllow || d.Response == ResponseMonitor
	d.StepUpRequired = d.Response == ResponseStepUp
	if d.StepUpRequired {
		d.StepUpMethod = StepUpTOTP
		if slices.Contains(d.Factors, FactorNewDevice) {
			d.StepUpMethod = StepUpSMS
		}
	}

	observability.RecordAccessDecision(ctx, string(d.Response), string(d.Level))
	err := e.accessLog.Append(ctx, AccessLogEntry{
		UserID:    ac.UserID,
		TenantID:  ac.TenantID,
		SessionID: ac.SessionID,
		Resource:  ac.Resource,
		Action:    ac.Action,
		IPAddress: ac.IPAddress,
		Score:     d.Score,
		Level:     d.Level,
		Factors:   d.Factors,
		Response:  d.Response,
		Allowed:   d.Allowed,
		PolicyID:  d.PolicyID,
		CreatedAt: at,
	})
	if err != nil {
		e.logger.Error().Err(err).Str("user_id", ac.UserID).Msg("failed to append access log")
	}
}

func (e *Engine) isSensitive(ac *AccessContext) bool {
	return slices.Contains(e.sensitiveActions, ac.Action) || slices.Contains(e.sensitiveResources, ac.Resource)
}

func (e *Engine) attemptTime(ac *AccessContext) time.Time {
	if !ac.At.IsZero() {
		return ac.At
	}
	return e.nowFunc()
}
