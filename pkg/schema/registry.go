package schema

import (
	"context"
	"encoding/json"
	"time"

	"golang.org/x/sync/singleflight"
)

// Store is the persistence contract the Registry needs from the
// agent's own storage layer (implemented by pkg/storage).
type Store interface {
	GetSnapshot(ctx context.Context, dbKey string) (Snapshot, bool, error)
	PutSnapshot(ctx context.Context, dbKey string, snap Snapshot) error
}

// Builder produces a fresh Snapshot for a live handle. Concrete
// implementations dispatch to DetectDocument/DetectRelational based on
// kind; see pkg/pipeline for the wiring.
type Builder func(ctx context.Context) (Snapshot, error)

// Registry is the thin persistence layer over Snapshot (spec.md §4.3).
type Registry struct {
	store Store
	ttl   time.Duration
	group singleflight.Group
	now   func() time.Time
}

// NewRegistry creates a Registry backed by store with the given
// default TTL.
func NewRegistry(store Store, ttl time.Duration) *Registry {
	return &Registry{store: store, ttl: ttl, now: time.Now}
}

// GetOrBuild returns the JSON text of a fresh snapshot for dbKey,
// serving from cache when fresh and not forced; otherwise rebuilding
// via build and persisting the result. Concurrent rebuilds for the
// same dbKey are coalesced via single-flight (spec.md §4.3, §9).
func (r *Registry) GetOrBuild(ctx context.Context, dbKey string, forceRebuild bool, build Builder) (string, error) {
	if !forceRebuild {
		if snap, ok, err := r.store.GetSnapshot(ctx, dbKey); err != nil {
			return "", err
		} else if ok && snap.Fresh(r.now(), r.ttl) {
			return marshal(snap)
		}
	}

	v, err, _ := r.group.Do(dbKey, func() (interface{}, error) {
		// Re-check freshness inside the single-flight critical section:
		// a sibling call may have just rebuilt while we waited to enter.
		if !forceRebuild {
			if snap, ok, err := r.store.GetSnapshot(ctx, dbKey); err == nil && ok && snap.Fresh(r.now(), r.ttl) {
				return snap, nil
			}
		}

		snap, err := build(ctx)
		if err != nil {
			return Snapshot{}, err
		}
		snap.DBKey = dbKey
		snap.LastBuilt = r.now()

		if err := r.store.PutSnapshot(ctx, dbKey, snap); err != nil {
			return Snapshot{}, err
		}
		return snap, nil
	})
	if err != nil {
		return "", err
	}
	return marshal(v.(Snapshot))
}

func marshal(snap Snapshot) (string, error) {
	b, err := json.Marshal(snap)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
