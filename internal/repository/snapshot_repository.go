package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/scholarpath/testportal-backend/internal/config"
	"github.com/scholarpath/testportal-backend/internal/engine"
)

// SnapshotRepository stores resumable session snapshots in Redis, one key per
// (application, test) pair. It backs the engine's SnapshotStore interface.
type SnapshotRepository struct {
	rdb *redis.Client
}

// NewSnapshotRepository creates a new SnapshotRepository.
func NewSnapshotRepository(rdb *redis.Client) *SnapshotRepository {
	return &SnapshotRepository{rdb: rdb}
}

var _ engine.SnapshotStore = (*SnapshotRepository)(nil)

// Save overwrites the snapshot for the session's key. No TTL: the snapshot
// lives until the session is submitted and Clear runs.
func (r *SnapshotRepository) Save(ctx context.Context, snap *engine.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	key := config.CacheKey.SessionSnapshotKey(snap.TestID.String(), snap.ApplicationNo)
	if err := r.rdb.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// Load retrieves a snapshot, or (nil, nil) when none exists.
func (r *SnapshotRepository) Load(ctx context.Context, testID uuid.UUID, applicationNo string) (*engine.Snapshot, error) {
	key := config.CacheKey.SessionSnapshotKey(testID.String(), applicationNo)
	data, err := r.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	var snap engine.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

// Clear removes the snapshot once a session is submitted.
func (r *SnapshotRepository) Clear(ctx context.Context, testID uuid.UUID, applicationNo string) error {
	key := config.CacheKey.SessionSnapshotKey(testID.String(), applicationNo)
	return r.rdb.Del(ctx, key).Err()
}
