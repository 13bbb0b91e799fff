package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/jrsteele09/go-sso-server/kvstore"
)

const clientIndexKey = "clients"

// KVRepo keeps clients in the key-value store without expiry
type KVRepo struct {
	store kvstore.Store
}

var _ Repo = (*KVRepo)(nil)

func NewKVRepo(store kvstore.Store) *KVRepo {
	return &KVRepo{store: store}
}

func (r *KVRepo) Upsert(ctx context.Context, client *Client) error {
	if client.ID == "" {
		return errors.New("[KVRepo.Upsert] client id is required")
	}
	data, err := json.Marshal(client)
	if err != nil {
		return fmt.Errorf("[KVRepo.Upsert] marshal: %w", err)
	}
	if err := r.store.Set(ctx, kvstore.ClientPrefix+client.ID, data, 0); err != nil {
		return fmt.Errorf("[KVRepo.Upsert] %w", err)
	}
	if err := r.store.AddToSet(ctx, clientIndexKey, client.ID); err != nil {
		return fmt.Errorf("[KVRepo.Upsert] index: %w", err)
	}
	return nil
}

func (r *KVRepo) Delete(ctx context.Context, clientID string) error {
	if err := r.store.Delete(ctx, kvstore.ClientPrefix+clientID); err != nil {
		return fmt.Errorf("[KVRepo.Delete] %w", err)
	}
	return r.store.RemoveFromSet(ctx, clientIndexKey, clientID)
}

func (r *KVRepo) Get(ctx context.Context, clientID string) (*Client, error) {
	data, err := r.store.Get(ctx, kvstore.ClientPrefix+clientID)
	if errors.Is(err, kvstore.ErrNotFound) {
		return nil, ErrClientNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("[KVRepo.Get] %w", err)
	}
	var client Client
	if err := json.Unmarshal(data, &client); err != nil {
		return nil, fmt.Errorf("[KVRepo.Get] corrupt client %s: %w", clientID, err)
	}
	return &client, nil
}

func (r *KVRepo) List(ctx context.Context) ([]*Client, error) {
	ids, err := r.store.MembersOf(ctx, clientIndexKey)
	if err != nil {
		return nil, fmt.Errorf("[KVRepo.List] %w", err)
	}
	list := make([]*Client, 0, len(ids))
	for _, id := range ids {
		c, err := r.Get(ctx, id)
		if errors.Is(err, ErrClientNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}
