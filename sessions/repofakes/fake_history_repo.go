package repofakes

import (
	"context"
	"sort"
	"sync"

	"github.com/jrsteele09/go-sso-server/sessions"
)

var _ sessions.HistoryRepo = (*FakeHistoryRepo)(nil)

type FakeHistoryRepo struct {
	entries map[string][]sessions.HistoryEntry // by user id
	lock    sync.RWMutex
	err     error
}

func NewFakeHistoryRepo() *FakeHistoryRepo {
	return &FakeHistoryRepo{
		entries: make(map[string][]sessions.HistoryEntry),
	}
}

// FailWith makes every subsequent call return err
func (r *FakeHistoryRepo) FailWith(err error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.err = err
}

func (r *FakeHistoryRepo) Record(_ context.Context, entry sessions.HistoryEntry) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.err != nil {
		return r.err
	}
	r.entries[entry.UserID] = append(r.entries[entry.UserID], entry)
	return nil
}

func (r *FakeHistoryRepo) Recent(_ context.Context, userID string, limit int) ([]sessions.HistoryEntry, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	if r.err != nil {
		return nil, r.err
	}

	list := append([]sessions.HistoryEntry(nil), r.entries[userID]...)
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}
