package repofakes

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-sso-server/risk"
)

var _ risk.AccessLogRepo = (*FakeAccessLogRepo)(nil)

type FakeAccessLogRepo struct {
	entries []risk.AccessLogEntry
	lock    sync.RWMutex
}

func NewFakeAccessLogRepo() *FakeAccessLogRepo {
	return &FakeAccessLogRepo{}
}

func (r *FakeAccessLogRepo) Append(_ context.Context, entry risk.AccessLogEntry) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	r.entries = append(r.entries, entry)
	return nil
}

func (r *FakeAccessLogRepo) CountDenied(_ context.Context, userID string, since time.Time) (int, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	count := 0
	for _, e := range r.entries {
		if e.UserID == userID && e.Response == risk.ResponseDeny && !e.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (r *FakeAccessLogRepo) Recent(_ context.Context, userID string, limit int) ([]risk.AccessLogEntry, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	var list []risk.AccessLogEntry
	for i := len(r.entries) - 1; i >= 0 && (limit <= 0 || len(list) < limit); i-- {
		if r.entries[i].UserID == userID {
			list = append(list, r.entries[i])
		}
	}
	return list, nil
}
