package risk_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-sso-server/risk"
	riskfakes "github.com/jrsteele09/go-sso-server/risk/repofakes"
	"github.com/jrsteele09/go-sso-server/sessions"
	"github.com/jrsteele09/go-sso-server/sessions/repofakes"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const (
	knownUser   = "u1"
	knownDevice = "device-1"
	newcomer    = "newcomer"
)

type testFixture struct {
	mu        sync.Mutex
	now       time.Time
	history   *repofakes.FakeHistoryRepo
	policies  *riskfakes.FakePolicyRepo
	accessLog *riskfakes.FakeAccessLogRepo
	profiles  *risk.ProfileCache
	engine    *risk.Engine
}

func (f *testFixture) clock() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *testFixture) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

// setupTestFixture seeds knownUser with three sessions from Cairo on device-1,
// all started in the 10:00 UTC hour
func setupTestFixture(t *testing.T, options ...risk.EngineOption) *testFixture {
	t.Helper()

	f := &testFixture{
		now:       time.Date(2026, 4, 14, 10, 30, 0, 0, time.UTC),
		history:   repofakes.NewFakeHistoryRepo(),
		policies:  riskfakes.NewFakePolicyRepo(),
		accessLog: riskfakes.NewFakeAccessLogRepo(),
	}
	for day := 1; day <= 3; day++ {
		require.NoError(t, f.history.Record(context.Background(), sessions.HistoryEntry{
			UserID:    knownUser,
			SessionID: "s" + string(rune('0'+day)),
			Country:   "EG",
			City:      "Cairo",
			DeviceID:  knownDevice,
			CreatedAt: f.now.AddDate(0, 0, -day).Add(-10 * time.Minute),
		}))
	}

	var err error
	f.profiles, err = risk.NewProfileCache(f.history, risk.WithCacheClock(f.clock))
	require.NoError(t, err)

	opts := append([]risk.EngineOption{
		risk.WithClock(f.clock),
		risk.WithLogger(zerolog.Nop()),
	}, options...)
	f.engine, err = risk.NewEngine(f.profiles, f.policies, f.accessLog, opts...)
	require.NoError(t, err)
	return f
}

func knownContext() *risk.AccessContext {
	return &risk.AccessContext{
		UserID:    knownUser,
		TenantID:  "center-1",
		SessionID: "sess-1",
		Resource:  "therapy_sessions",
		Action:    "read",
		Location:  &risk.Location{Country: "EG", City: "Cairo"},
		Device:    &risk.Device{Fingerprint: knownDevice, Trusted: true},
		IPAddress: "10.0.0.5",
	}
}

func (f *testFixture) addPolicy(t *testing.T, p risk.Policy) {
	t.Helper()
	p.Active = true
	require.NoError(t, p.Validate())
	require.NoError(t, f.policies.Upsert(context.Background(), &p))
}

func (f *testFixture) recordDenials(t *testing.T, userID string, n int) {
	t.Helper()
	for range n {
		require.NoError(t, f.accessLog.Append(context.Background(), risk.AccessLogEntry{
			UserID:    userID,
			Resource:  "billing",
			Action:    "export",
			Response:  risk.ResponseDeny,
			CreatedAt: f.clock(),
		}))
	}
}

func TestNewEngine_RequiresDependencies(t *testing.T) {
	f := setupTestFixture(t)

	_, err := risk.NewEngine(nil, f.policies, f.accessLog)
	require.Error(t, err)
	_, err = risk.NewEngine(f.profiles, nil, f.accessLog)
	require.Error(t, err)
	_, err = risk.NewEngine(f.profiles, f.policies, nil)
	require.Error(t, err)
}

func TestAssessRisk_KnownBehaviourIsLowRisk(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	assessment, err := f.engine.AssessRisk(ctx, knownContext())
	require.NoError(t, err)
	require.Equal(t, 0, assessment.Score)
	require.Equal(t, risk.LevelLow, assessment.Level)
	require.Empty(t, assessment.Factors)

	decision, err := f.engine.EvaluateAccess(ctx, knownContext())
	require.NoError(t, err)
	require.True(t, decision.Allowed)
	require.Equal(t, risk.ResponseAllow, decision.Response)
	require.False(t, decision.StepUpRequired)
}

func TestAssessRisk_InvalidContext(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.engine.AssessRisk(context.Background(), nil)
	require.ErrorIs(t, err, risk.ErrInvalidContext)

	ac := knownContext()
	ac.Action = ""
	_, err = f.engine.EvaluateAccess(context.Background(), ac)
	require.ErrorIs(t, err, risk.ErrInvalidContext)
}

func TestAssessRisk_EachFactor(t *testing.T) {
	tests := []struct {
		factor risk.Factor
		points int
		apply  func(t *testing.T, f *testFixture, ac *risk.AccessContext)
	}{
		{
			factor: risk.FactorOutsideWorkingHours,
			points: 15,
			apply: func(_ *testing.T, _ *testFixture, ac *risk.AccessContext) {
				ac.At = time.Date(2026, 4, 14, 23, 0, 0, 0, time.UTC)
			},
		},
		{
			factor: risk.FactorUnusualLocation,
			points: 25,
			apply: func(_ *testing.T, _ *testFixture, ac *risk.AccessContext) {
				ac.Location = &risk.Location{Country: "FR"}
			},
		},
		{
			factor: risk.FactorNewDevice,
			points: 20,
			apply: func(_ *testing.T, _ *testFixture, ac *risk.AccessContext) {
				ac.Device = &risk.Device{Fingerprint: "device-2"}
			},
		},
		{
			factor: risk.FactorSensitiveAction,
			points: 25,
			apply: func(_ *testing.T, _ *testFixture, ac *risk.AccessContext) {
				ac.Action = "export"
			},
		},
		{
			factor: risk.FactorBulkOperation,
			points: 20,
			apply: func(_ *testing.T, _ *testFixture, ac *risk.AccessContext) {
				ac.BulkOperation = true
			},
		},
		{
			factor: risk.FactorMultipleFailedAttempts,
			points: 30,
			apply: func(t *testing.T, f *testFixture, ac *risk.AccessContext) {
				f.recordDenials(t, ac.UserID, 4)
			},
		},
	}

	for _, tt := range tests {
		t.Run(string(tt.factor), func(t *testing.T) {
			f := setupTestFixture(t)
			ac := knownContext()
			tt.apply(t, f, ac)

			assessment, err := f.engine.AssessRisk(context.Background(), ac)
			require.NoError(t, err)
			require.Equal(t, []risk.Factor{tt.factor}, assessment.Factors)
			require.Equal(t, tt.points, assessment.Score)
		})
	}
}

func TestAssessRisk_Monotonicity(t *testing.T) {
	modifiers := map[risk.Factor]func(t *testing.T, f *testFixture, ac *risk.AccessContext){
		risk.FactorOutsideWorkingHours: func(_ *testing.T, _ *testFixture, ac *risk.AccessContext) {
			ac.At = time.Date(2026, 4, 14, 3, 0, 0, 0, time.UTC)
		},
		risk.FactorUnusualLocation: func(_ *testing.T, _ *testFixture, ac *risk.AccessContext) {
			ac.Location = &risk.Location{Country: "DE"}
		},
		risk.FactorNewDevice: func(_ *testing.T, _ *testFixture, ac *risk.AccessContext) {
			ac.Device = nil
		},
		risk.FactorSensitiveAction: func(_ *testing.T, _ *testFixture, ac *risk.AccessContext) {
			ac.Resource = "medical_records"
		},
		risk.FactorBulkOperation: func(_ *testing.T, _ *testFixture, ac *risk.AccessContext) {
			ac.BulkOperation = true
		},
		risk.FactorMultipleFailedAttempts: func(t *testing.T, f *testFixture, ac *risk.AccessContext) {
			f.recordDenials(t, ac.UserID, 5)
		},
	}
	bases := map[string]func() *risk.AccessContext{
		"known user": knownContext,
		"noisy newcomer": func() *risk.AccessContext {
			ac := knownContext()
			ac.UserID = newcomer
			ac.BulkOperation = true
			return ac
		},
	}

	for baseName, base := range bases {
		for factor, modify := range modifiers {
			t.Run(baseName+"/"+string(factor), func(t *testing.T) {
				ctx := context.Background()

				f := setupTestFixture(t)
				without, err := f.engine.AssessRisk(ctx, base())
				require.NoError(t, err)

				f = setupTestFixture(t)
				ac := base()
				modify(t, f, ac)
				with, err := f.engine.AssessRisk(ctx, ac)
				require.NoError(t, err)

				require.True(t, with.Has(factor))
				require.GreaterOrEqual(t, with.Score, without.Score)
				require.LessOrEqual(t, with.Score, 100)
			})
		}
	}
}

func TestEvaluateAccess_EmptyProfileStepsUpWithSMS(t *testing.T) {
	f := setupTestFixture(t)

	ac := knownContext()
	ac.UserID = newcomer
	decision, err := f.engine.EvaluateAccess(context.Background(), ac)
	require.NoError(t, err)

	require.Equal(t, 60, decision.Score)
	require.Equal(t, risk.LevelHigh, decision.Level)
	require.ElementsMatch(t, []risk.Factor{
		risk.FactorOutsideWorkingHours, risk.FactorUnusualLocation, risk.FactorNewDevice,
	}, decision.Factors)
	require.Equal(t, risk.ResponseStepUp, decision.Response)
	require.True(t, decision.StepUpRequired)
	require.Equal(t, risk.StepUpSMS, decision.StepUpMethod)
	require.False(t, decision.Allowed)
}

func TestEvaluateAccess_Responses(t *testing.T) {
	tests := []struct {
		name     string
		modify   func(ac *risk.AccessContext)
		score    int
		response risk.Response
		method   risk.StepUpMethod
	}{
		{
			name: "high without new device uses totp",
			modify: func(ac *risk.AccessContext) {
				ac.At = time.Date(2026, 4, 14, 22, 0, 0, 0, time.UTC)
				ac.Location = &risk.Location{Country: "FR"}
				ac.Action = "delete"
			},
			score:    65,
			response: risk.ResponseStepUp,
			method:   risk.StepUpTOTP,
		},
		{
			name: "medium at fifty steps up",
			modify: func(ac *risk.AccessContext) {
				ac.Location = &risk.Location{Country: "FR"}
				ac.Resource = "billing"
			},
			score:    50,
			response: risk.ResponseStepUp,
			method:   risk.StepUpTOTP,
		},
		{
			name: "medium below fifty is monitored",
			modify: func(ac *risk.AccessContext) {
				ac.At = time.Date(2026, 4, 14, 22, 0, 0, 0, time.UTC)
				ac.BulkOperation = true
			},
			score:    35,
			response: risk.ResponseMonitor,
		},
		{
			name:     "low is allowed",
			modify:   func(ac *risk.AccessContext) { ac.BulkOperation = true },
			score:    20,
			response: risk.ResponseAllow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupTestFixture(t)
			ac := knownContext()
			tt.modify(ac)

			decision, err := f.engine.EvaluateAccess(context.Background(), ac)
			require.NoError(t, err)
			require.Equal(t, tt.score, decision.Score)
			require.Equal(t, tt.response, decision.Response)
			require.Equal(t, tt.method, decision.StepUpMethod)
			require.Equal(t, tt.response == risk.ResponseAllow || tt.response == risk.ResponseMonitor, decision.Allowed)
		})
	}
}

func TestEvaluateAccess_CriticalRiskDeniesDespiteAllowPolicy(t *testing.T) {
	f := setupTestFixture(t)
	f.addPolicy(t, risk.Policy{ID: "allow-all", Name: "allow everything", Type: risk.PolicyAllow, Priority: 100})

	ac := knownContext()
	ac.UserID = newcomer
	ac.Action = "export"
	ac.BulkOperation = true

	decision, err := f.engine.EvaluateAccess(context.Background(), ac)
	require.NoError(t, err)
	require.Equal(t, 100, decision.Score)
	require.Equal(t, risk.LevelCritical, decision.Level)
	require.Equal(t, risk.ResponseDeny, decision.Response)
	require.False(t, decision.Allowed)
}

func TestEvaluateAccess_PolicyPriority(t *testing.T) {
	f := setupTestFixture(t)
	f.addPolicy(t, risk.Policy{ID: "allow-50", Name: "allow staff", Type: risk.PolicyAllow, Priority: 50})
	f.addPolicy(t, risk.Policy{ID: "deny-90", Name: "freeze", Type: risk.PolicyDeny, Priority: 90})
	f.addPolicy(t, risk.Policy{ID: "deny-80", Name: "maintenance", Type: risk.PolicyDeny, Priority: 80})

	decision, err := f.engine.EvaluateAccess(context.Background(), knownContext())
	require.NoError(t, err)
	require.Equal(t, risk.ResponseDeny, decision.Response)
	require.Equal(t, "deny-90", decision.PolicyID)
	require.False(t, decision.Allowed)
	require.Equal(t, 0, decision.Score)
}

func TestEvaluateAccess_PolicyScope(t *testing.T) {
	f := setupTestFixture(t)
	f.addPolicy(t, risk.Policy{
		ID:       "no-billing-delete",
		Name:     "no billing deletes",
		Type:     risk.PolicyDeny,
		Priority: 10,
		Scope:    risk.Scope{Resources: []string{"billing"}, Actions: []string{"delete"}},
	})

	decision, err := f.engine.EvaluateAccess(context.Background(), knownContext())
	require.NoError(t, err)
	require.Equal(t, risk.ResponseAllow, decision.Response)

	ac := knownContext()
	ac.Resource = "billing"
	ac.Action = "delete"
	decision, err = f.engine.EvaluateAccess(context.Background(), ac)
	require.NoError(t, err)
	require.Equal(t, risk.ResponseDeny, decision.Response)
	require.Equal(t, "no-billing-delete", decision.PolicyID)
}

func TestEvaluateAccess_TenantFilter(t *testing.T) {
	f := setupTestFixture(t)
	f.addPolicy(t, risk.Policy{ID: "other-tenant", Name: "lockdown", TenantID: "center-2", Type: risk.PolicyDeny, Priority: 10})

	decision, err := f.engine.EvaluateAccess(context.Background(), knownContext())
	require.NoError(t, err)
	require.Equal(t, risk.ResponseAllow, decision.Response)

	ac := knownContext()
	ac.TenantID = "center-2"
	decision, err = f.engine.EvaluateAccess(context.Background(), ac)
	require.NoError(t, err)
	require.Equal(t, risk.ResponseDeny, decision.Response)
}

func TestEvaluateAccess_InactivePolicyIgnored(t *testing.T) {
	f := setupTestFixture(t)
	require.NoError(t, f.policies.Upsert(context.Background(), &risk.Policy{
		ID: "off", Name: "disabled", Type: risk.PolicyDeny, Priority: 10, Active: false,
	}))

	decision, err := f.engine.EvaluateAccess(context.Background(), knownContext())
	require.NoError(t, err)
	require.Equal(t, risk.ResponseAllow, decision.Response)
}

func TestEvaluateAccess_HighRiskPolicyAction(t *testing.T) {
	f := setupTestFixture(t)
	f.addPolicy(t, risk.Policy{
		ID:       "strict",
		Name:     "strict high risk",
		Type:     risk.PolicyAdaptive,
		Priority: 10,
		Actions:  risk.Actions{OnHighRisk: risk.ResponseDeny},
	})

	ac := knownContext()
	ac.UserID = newcomer
	decision, err := f.engine.EvaluateAccess(context.Background(), ac)
	require.NoError(t, err)
	require.Equal(t, risk.LevelHigh, decision.Level)
	require.Equal(t, risk.ResponseDeny, decision.Response)
	require.Equal(t, "strict", decision.PolicyID)

	decision, err = f.engine.EvaluateAccess(context.Background(), knownContext())
	require.NoError(t, err)
	require.Equal(t, risk.ResponseAllow, decision.Response)
	require.Empty(t, decision.PolicyID)
}

func TestEvaluateAccess_FailedAttemptsWindow(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	f.addPolicy(t, risk.Policy{ID: "freeze", Name: "freeze", Type: risk.PolicyDeny, Priority: 10})

	for range 4 {
		decision, err := f.engine.EvaluateAccess(ctx, knownContext())
		require.NoError(t, err)
		require.Equal(t, risk.ResponseDeny, decision.Response)
	}
	require.NoError(t, f.policies.Delete(ctx, "freeze"))

	assessment, err := f.engine.AssessRisk(ctx, knownContext())
	require.NoError(t, err)
	require.True(t, assessment.Has(risk.FactorMultipleFailedAttempts))

	f.advance(61 * time.Minute)
	assessment, err = f.engine.AssessRisk(ctx, knownContext())
	require.NoError(t, err)
	require.False(t, assessment.Has(risk.FactorMultipleFailedAttempts))
}

func TestEvaluateAccess_ThreeDenialsAreNotEnough(t *testing.T) {
	f := setupTestFixture(t)
	f.recordDenials(t, knownUser, 3)

	assessment, err := f.engine.AssessRisk(context.Background(), knownContext())
	require.NoError(t, err)
	require.False(t, assessment.Has(risk.FactorMultipleFailedAttempts))
}

func TestEvaluateAccess_AppendsAccessLog(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	ac := knownContext()
	ac.UserID = newcomer
	decision, err := f.engine.EvaluateAccess(ctx, ac)
	require.NoError(t, err)

	entries, err := f.accessLog.Recent(ctx, newcomer, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, decision.Response, entries[0].Response)
	require.Equal(t, decision.Score, entries[0].Score)
	require.Equal(t, "sess-1", entries[0].SessionID)
	require.Equal(t, "therapy_sessions", entries[0].Resource)
	require.True(t, f.clock().Equal(entries[0].CreatedAt))
}

func TestEvaluateAccess_PolicyStoreFailureDenies(t *testing.T) {
	f := setupTestFixture(t)
	f.policies.FailWith(errors.New("connection refused"))

	decision, err := f.engine.EvaluateAccess(context.Background(), knownContext())
	require.NoError(t, err)
	require.Equal(t, risk.ResponseDeny, decision.Response)
	require.False(t, decision.Allowed)
	require.NotEmpty(t, decision.Reason)
}

func TestAssessRisk_HistoryFailureScoresAsUnknown(t *testing.T) {
	f := setupTestFixture(t)
	f.history.FailWith(errors.New("database is locked"))

	assessment, err := f.engine.AssessRisk(context.Background(), knownContext())
	require.NoError(t, err)
	require.Equal(t, 60, assessment.Score)
	require.True(t, assessment.Has(risk.FactorNewDevice))
}

func TestEvaluateAccess_SensitiveListsAreConfigurable(t *testing.T) {
	f := setupTestFixture(t, risk.WithSensitiveActions("approve"), risk.WithSensitiveResources())

	ac := knownContext()
	ac.Action = "export"
	assessment, err := f.engine.AssessRisk(context.Background(), ac)
	require.NoError(t, err)
	require.False(t, assessment.Has(risk.FactorSensitiveAction))

	ac.Action = "approve"
	assessment, err = f.engine.AssessRisk(context.Background(), ac)
	require.NoError(t, err)
	require.True(t, assessment.Has(risk.FactorSensitiveAction))
}

func TestLevelFor(t *testing.T) {
	require.Equal(t, risk.LevelLow, risk.LevelFor(0))
	require.Equal(t, risk.LevelLow, risk.LevelFor(29))
	require.Equal(t, risk.LevelMedium, risk.LevelFor(30))
	require.Equal(t, risk.LevelMedium, risk.LevelFor(59))
	require.Equal(t, risk.LevelHigh, risk.LevelFor(60))
	require.Equal(t, risk.LevelHigh, risk.LevelFor(79))
	require.Equal(t, risk.LevelCritical, risk.LevelFor(80))
	require.Equal(t, risk.LevelCritical, risk.LevelFor(100))

	require.True(t, risk.LevelHigh.Exceeds(risk.LevelMedium))
	require.False(t, risk.LevelMedium.Exceeds(risk.LevelMedium))
	require.False(t, risk.LevelCritical.Exceeds("unknown"))
}
