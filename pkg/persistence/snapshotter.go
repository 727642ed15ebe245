package persistence

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/platinummonkey/clinicaccess/pkg/config"
	"github.com/platinummonkey/clinicaccess/pkg/rbac"
)

// Snapshotter stores and retrieves access-control snapshots
type Snapshotter interface {
	// Save persists snap as the newest snapshot
	Save(ctx context.Context, snap rbac.Snapshot) error

	// Load returns the newest snapshot, or nil when nothing has been stored
	Load(ctx context.Context) (*rbac.Snapshot, error)

	// Ping checks backend connectivity
	Ping(ctx context.Context) error

	// Backend names the storage technology for logs and metrics
	Backend() string

	Close() error
}

// Open connects to the backend named in cfg. The memory backend has no
// snapshotter and returns nil, nil.
func Open(ctx context.Context, cfg config.PersistenceConfig) (Snapshotter, error) {
	switch cfg.Backend {
	case config.BackendMemory, "":
		return nil, nil
	case config.BackendPostgres:
		store, err := OpenPostgres(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.BackendRedis:
		store, err := OpenRedis(ctx, cfg.RedisURL, cfg.RedisDB, cfg.RedisKey)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown persistence backend: %s", cfg.Backend)
	}
}

func encodeSnapshot(snap rbac.Snapshot) ([]byte, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return data, nil
}

func decodeSnapshot(data []byte) (*rbac.Snapshot, error) {
	var snap rbac.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &snap, nil
}
