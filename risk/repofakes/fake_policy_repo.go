package repofakes

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-sso-server/risk"
)

var _ risk.PolicyRepo = (*FakePolicyRepo)(nil)

type FakePolicyRepo struct {
	policies map[string]risk.Policy
	err      error
	lock     sync.RWMutex
}

func NewFakePolicyRepo() *FakePolicyRepo {
	return &FakePolicyRepo{
		policies: make(map[string]risk.Policy),
	}
}

// FailWith makes Active return err
func (r *FakePolicyRepo) FailWith(err error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.err = err
}

func (r *FakePolicyRepo) Upsert(_ context.Context, policy *risk.Policy) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if policy.ID == "" {
		policy.ID = uuid.New().String()
	}
	r.policies[policy.ID] = *policy
	return nil
}

func (r *FakePolicyRepo) Delete(_ context.Context, id string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if _, ok := r.policies[id]; !ok {
		return risk.ErrPolicyNotFound
	}
	delete(r.policies, id)
	return nil
}

func (r *FakePolicyRepo) Get(_ context.Context, id string) (*risk.Policy, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	p, ok := r.policies[id]
	if !ok {
		return nil, risk.ErrPolicyNotFound
	}
	return &p, nil
}

func (r *FakePolicyRepo) Active(_ context.Context, tenantID string) ([]risk.Policy, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	if r.err != nil {
		return nil, r.err
	}
	var list []risk.Policy
	for _, p := range r.policies {
		if p.Active && (p.TenantID == "" || p.TenantID == tenantID) {
			list = append(list, p)
		}
	}
	return list, nil
}
