package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ruteri/content-attestation-engine/interfaces"
	"github.com/ruteri/content-attestation-engine/proof"
)

// FileProofStore persists proof artifacts as one JSON file per document ID.
// Artifacts are immutable: storing the same artifact twice is a no-op,
// storing a different artifact under an existing document ID is an error.
type FileProofStore struct {
	dir string
	log *slog.Logger
}

// NewFileProofStore creates a proof store rooted at dir, creating it if
// needed.
func NewFileProofStore(dir string, log *slog.Logger) (*FileProofStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create proof directory: %w", err)
	}
	return &FileProofStore{dir: dir, log: log}, nil
}

// Put stores an artifact. The write goes through a temp file and a rename,
// so a concurrent reader never observes a partial artifact.
func (s *FileProofStore) Put(ctx context.Context, artifact *interfaces.ProofArtifact) error {
	if artifact == nil {
		return &interfaces.ValidationError{Field: "artifact", Reason: "no artifact to store"}
	}
	if err := proof.ValidateChecksum(artifact); err != nil {
		return err
	}

	path := s.artifactPath(artifact.DocumentID)
	if existing, err := s.Get(ctx, artifact.DocumentID); err == nil {
		if existing.ArtifactChecksum.Equal(artifact.ArtifactChecksum) {
			return nil
		}
		return fmt.Errorf("a different artifact is already stored for %s", artifact.DocumentID)
	}

	data, err := proof.Encode(artifact)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, artifact.DocumentID.String()+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close artifact file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to store artifact: %w", err)
	}

	s.log.Info("Stored proof artifact",
		slog.String("document_id", artifact.DocumentID.String()),
		slog.String("path", path))

	return nil
}

// Get retrieves the artifact for a document ID. The stored checksum is
// revalidated, so on-disk corruption surfaces as an IntegrityFault rather
// than as a valid-looking artifact.
func (s *FileProofStore) Get(ctx context.Context, id interfaces.DocumentID) (*interfaces.ProofArtifact, error) {
	data, err := os.ReadFile(s.artifactPath(id))
	if os.IsNotExist(err) {
		return nil, interfaces.ErrProofNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}

	artifact, err := proof.Decode(data)
	if err != nil {
		return nil, err
	}
	if !artifact.DocumentID.Equal(id) {
		return nil, &interfaces.IntegrityFault{
			Op:       "proof store lookup",
			Expected: id.String(),
			Actual:   artifact.DocumentID.String(),
		}
	}
	if err := proof.ValidateChecksum(artifact); err != nil {
		return nil, err
	}

	return artifact, nil
}

func (s *FileProofStore) artifactPath(id interfaces.DocumentID) string {
	return filepath.Join(s.dir, id.String()+".json")
}
