package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/openfed/fedcoord/pkg/errors"
	"github.com/openfed/fedcoord/pkg/reward"
	"github.com/openfed/fedcoord/upload"
	"github.com/openfed/fedcoord/version"
)

type inMemoryUploads struct {
	sync.Mutex

	data map[string]upload.ClientUpload
}

func NewInMemoryUploads() UploadRepository {
	return &inMemoryUploads{
		data: make(map[string]upload.ClientUpload),
	}
}

func uploadKey(roundMarker uint64, clientID string) string {
	return fmt.Sprintf("%d/%s", roundMarker, clientID)
}

func (s *inMemoryUploads) Upsert(_ context.Context, u upload.ClientUpload) (upload.ClientUpload, error) {
	if u.ClientID == "" {
		return upload.ClientUpload{}, errors.ErrEmptyKey
	}

	s.Lock()
	defer s.Unlock()

	key := uploadKey(u.RoundMarker, u.ClientID)
	if prev, ok := s.data[key]; ok && !prev.Archived {
		u.ID = prev.ID
		u.Count = prev.Count + 1
	} else {
		u.Count = 1
	}
	s.data[key] = u

	return u, nil
}

func (s *inMemoryUploads) ListByRound(_ context.Context, roundMarker uint64) ([]upload.ClientUpload, error) {
	s.Lock()
	defer s.Unlock()

	var uploads []upload.ClientUpload
	for _, u := range s.data {
		if u.RoundMarker == roundMarker && !u.Archived {
			uploads = append(uploads, u)
		}
	}
	sort.Slice(uploads, func(i, j int) bool {
		return uploads[i].ClientID < uploads[j].ClientID
	})

	return uploads, nil
}

func (s *inMemoryUploads) List(_ context.Context, offset, limit uint64) ([]upload.ClientUpload, uint64, error) {
	s.Lock()
	defer s.Unlock()

	all := make([]upload.ClientUpload, 0, len(s.data))
	for _, u := range s.data {
		all = append(all, u)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].RoundMarker != all[j].RoundMarker {
			return all[i].RoundMarker < all[j].RoundMarker
		}

		return all[i].ClientID < all[j].ClientID
	})

	total := uint64(len(all))
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}

	return all[offset:end], total, nil
}

func (s *inMemoryUploads) Archive(_ context.Context, roundMarker uint64, clientIDs []string) error {
	s.Lock()
	defer s.Unlock()

	for _, id := range clientIDs {
		key := uploadKey(roundMarker, id)
		if u, ok := s.data[key]; ok {
			u.Archived = true
			s.data[key] = u
		}
	}

	return nil
}

type inMemoryVersions struct {
	sync.Mutex

	data   map[uint64]version.ModelVersion
	latest uint64
}

func NewInMemoryVersions() VersionRepository {
	return &inMemoryVersions{
		data: make(map[uint64]version.ModelVersion),
	}
}

func (s *inMemoryVersions) Create(_ context.Context, v version.ModelVersion) error {
	s.Lock()
	defer s.Unlock()

	if _, ok := s.data[v.ID]; ok {
		return errors.ErrEntityExists
	}
	s.data[v.ID] = v
	if v.ID > s.latest {
		s.latest = v.ID
	}

	return nil
}

func (s *inMemoryVersions) Get(_ context.Context, id uint64) (version.ModelVersion, error) {
	s.Lock()
	defer s.Unlock()

	if v, ok := s.data[id]; ok {
		return v, nil
	}

	return version.ModelVersion{}, errors.ErrNotFound
}

func (s *inMemoryVersions) Update(_ context.Context, v version.ModelVersion) error {
	s.Lock()
	defer s.Unlock()

	if _, ok := s.data[v.ID]; !ok {
		return errors.ErrNotFound
	}
	s.data[v.ID] = v

	return nil
}

func (s *inMemoryVersions) Latest(_ context.Context) (version.ModelVersion, error) {
	s.Lock()
	defer s.Unlock()

	if s.latest == 0 {
		return version.ModelVersion{}, errors.ErrNotFound
	}

	return s.data[s.latest], nil
}

func (s *inMemoryVersions) List(_ context.Context, offset, limit uint64) ([]version.ModelVersion, uint64, error) {
	s.Lock()
	defer s.Unlock()

	all := make([]version.ModelVersion, 0, len(s.data))
	for _, v := range s.data {
		all = append(all, v)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].ID < all[j].ID
	})

	total := uint64(len(all))
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}

	return all[offset:end], total, nil
}

type inMemoryRewards struct {
	sync.Mutex

	data map[uint64]reward.Record
}

func NewInMemoryRewards() RewardRepository {
	return &inMemoryRewards{
		data: make(map[uint64]reward.Record),
	}
}

func (s *inMemoryRewards) Create(_ context.Context, r reward.Record) error {
	s.Lock()
	defer s.Unlock()

	if _, ok := s.data[r.VersionID]; ok {
		return errors.ErrEntityExists
	}
	s.data[r.VersionID] = r

	return nil
}

func (s *inMemoryRewards) Get(_ context.Context, versionID uint64) (reward.Record, error) {
	s.Lock()
	defer s.Unlock()

	if r, ok := s.data[versionID]; ok {
		return r, nil
	}

	return reward.Record{}, errors.ErrNotFound
}
