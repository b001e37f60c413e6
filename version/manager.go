package version

import (
	"context"
	"errors"
	"sync"
	"time"

	pkgerrors "github.com/openfed/fedcoord/pkg/errors"
)

// Repository is the durable view of the version chain. Any storage backend
// satisfying this set plugs in.
type Repository interface {
	Create(ctx context.Context, v ModelVersion) error
	Get(ctx context.Context, id uint64) (ModelVersion, error)
	Update(ctx context.Context, v ModelVersion) error
	Latest(ctx context.Context) (ModelVersion, error)
	List(ctx context.Context, offset, limit uint64) ([]ModelVersion, uint64, error)
}

// Manager exclusively owns the current/previous version pointers. Publish is
// the serialization point for concurrent rounds: the expected-parent check
// under the lock makes sure only one publish per parent ever succeeds.
type Manager struct {
	mu       sync.Mutex
	repo     Repository
	current  ModelVersion
	previous *ModelVersion
}

// NewManager loads the chain head from the repository, creating the genesis
// version around the base model artifact when the chain is empty.
func NewManager(ctx context.Context, repo Repository, baseArtifactRef string) (*Manager, error) {
	m := &Manager{repo: repo}

	latest, err := repo.Latest(ctx)
	switch {
	case errors.Is(err, pkgerrors.ErrNotFound):
		genesis := ModelVersion{
			ID:          1,
			ArtifactRef: baseArtifactRef,
			CreatedAt:   time.Now(),
		}
		if err := repo.Create(ctx, genesis); err != nil {
			return nil, err
		}
		m.current = genesis

		return m, nil
	case err != nil:
		return nil, err
	}

	m.current = latest
	if latest.ParentID != 0 {
		parent, err := repo.Get(ctx, latest.ParentID)
		if err != nil {
			return nil, err
		}
		m.previous = &parent
	}

	return m, nil
}

func (m *Manager) Current() ModelVersion {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.current
}

func (m *Manager) Previous() (ModelVersion, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.previous == nil {
		return ModelVersion{}, false
	}

	return *m.previous, true
}

// Publish atomically advances the chain. expectedParent must be the version
// the caller aggregated against; a mismatch means another round won the race
// and the caller's round is abandoned with its uploads still eligible.
func (m *Manager) Publish(ctx context.Context, expectedParent uint64, artifactRef string, contributors []Contributor) (ModelVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current.ID != expectedParent {
		return ModelVersion{}, pkgerrors.ErrPublishConflict
	}

	next := ModelVersion{
		ID:           m.current.ID + 1,
		ParentID:     m.current.ID,
		ArtifactRef:  artifactRef,
		Contributors: contributors,
		CreatedAt:    time.Now(),
	}
	if err := m.repo.Create(ctx, next); err != nil {
		return ModelVersion{}, err
	}

	prev := m.current
	m.previous = &prev
	m.current = next

	return next, nil
}

// RecordEval writes a version's evaluation result exactly once. A second
// write reports ErrEvalAlreadyRecorded and leaves the stored result intact.
func (m *Manager) RecordEval(ctx context.Context, versionID uint64, metric float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, err := m.repo.Get(ctx, versionID)
	if err != nil {
		return err
	}
	if v.Eval != nil {
		return pkgerrors.ErrEvalAlreadyRecorded
	}

	v.Eval = &EvalResult{
		VersionID:   versionID,
		MetricValue: metric,
		ComputedAt:  time.Now(),
	}
	if err := m.repo.Update(ctx, v); err != nil {
		return err
	}

	if m.current.ID == versionID {
		m.current.Eval = v.Eval
	}
	if m.previous != nil && m.previous.ID == versionID {
		m.previous.Eval = v.Eval
	}

	return nil
}

func (m *Manager) Get(ctx context.Context, id uint64) (ModelVersion, error) {
	return m.repo.Get(ctx, id)
}

func (m *Manager) List(ctx context.Context, offset, limit uint64) (VersionPage, error) {
	versions, total, err := m.repo.List(ctx, offset, limit)
	if err != nil {
		return VersionPage{}, err
	}

	return VersionPage{
		Offset:   offset,
		Limit:    limit,
		Total:    total,
		Versions: versions,
	}, nil
}
