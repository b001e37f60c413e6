package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/openfed/fedcoord/pkg/aggregate"
	pkgerrors "github.com/openfed/fedcoord/pkg/errors"
)

// Store keeps weight artifacts as CBOR blobs on disk. Global model weights
// live under models/, client uploads under uploads/; every reference is a
// bare filename derivable from the owning id.
type Store struct {
	modelsDir  string
	uploadsDir string
	mu         sync.RWMutex
}

func NewStore(dir string) (*Store, error) {
	modelsDir := filepath.Join(dir, "models")
	uploadsDir := filepath.Join(dir, "uploads")
	if err := os.MkdirAll(modelsDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create models directory: %w", err)
	}
	if err := os.MkdirAll(uploadsDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create uploads directory: %w", err)
	}

	return &Store{
		modelsDir:  modelsDir,
		uploadsDir: uploadsDir,
	}, nil
}

// SaveModel writes the aggregated weights for a version and returns the
// artifact reference.
func (s *Store) SaveModel(versionID uint64, w aggregate.Weights) (string, error) {
	ref := fmt.Sprintf("models/model_v%d.cbor", versionID)

	return ref, s.write(ref, w)
}

// SaveUpload writes one client's submitted weights for a round window.
// Resubmission overwrites the blob in place.
func (s *Store) SaveUpload(roundMarker uint64, clientID string, w aggregate.Weights) (string, error) {
	sanitized := sanitizeID(clientID)
	if sanitized == "" {
		return "", fmt.Errorf("invalid client id: %s", clientID)
	}
	ref := fmt.Sprintf("uploads/round_%d_%s.cbor", roundMarker, sanitized)

	return ref, s.write(ref, w)
}

// Load reads and decodes an artifact by reference. Failures map to the
// per-client artifact load error so callers can exclude the contributor
// without failing the round.
func (s *Store) Load(ref string) (aggregate.Weights, error) {
	path, err := s.resolve(ref)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", pkgerrors.ErrArtifactLoad, err)
	}

	var w aggregate.Weights
	if err := cbor.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: %w", pkgerrors.ErrArtifactLoad, err)
	}

	return w, nil
}

func (s *Store) write(ref string, w aggregate.Weights) error {
	path, err := s.resolve(ref)
	if err != nil {
		return err
	}

	data, err := cbor.Marshal(w)
	if err != nil {
		return fmt.Errorf("failed to marshal weights: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write artifact: %w", err)
	}

	return nil
}

func (s *Store) resolve(ref string) (string, error) {
	dir, name, ok := strings.Cut(ref, "/")
	if !ok || name != filepath.Base(name) || name == "." || name == ".." {
		return "", fmt.Errorf("%w: invalid artifact reference %q", pkgerrors.ErrArtifactLoad, ref)
	}

	switch dir {
	case "models":
		return filepath.Join(s.modelsDir, name), nil
	case "uploads":
		return filepath.Join(s.uploadsDir, name), nil
	default:
		return "", fmt.Errorf("%w: invalid artifact reference %q", pkgerrors.ErrArtifactLoad, ref)
	}
}

// sanitizeID strips anything that could escape the uploads directory;
// only alphanumerics, hyphens and underscores survive.
func sanitizeID(id string) string {
	var out strings.Builder
	for _, r := range id {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '-' || r == '_' {
			out.WriteRune(r)
		}
	}

	return out.String()
}
