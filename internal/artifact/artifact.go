// Package artifact is the write-once, read-many blob store for run logs and
// build artifacts. Artifacts are addressed by content hash so two runs that
// produce byte-identical output (a common case for "success-unchanged"
// runs) share storage instead of duplicating it; log chunks are keyed by
// run id, log name and sequence number.
package artifact

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/janitord/janitor/pkg/storage"
)

// Backend is the subset of storage.Storage the artifact store needs: put at
// an explicit key, and read back by key. Narrowing the dependency down from
// storage.Storage (whose Put takes a variadic storage.Option) lets tests
// supply an in-memory fake without reaching into that package's unexported
// option type.
type Backend interface {
	PutAt(ctx context.Context, key string, r io.Reader, size int64) (*storage.FileInfo, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}

// Store persists run artifacts and log chunks in an S3-compatible bucket.
type Store struct {
	backend Backend
}

// New wraps an already-configured storage.Storage (see pkg/storage.New).
func New(backend storage.Storage) *Store {
	return &Store{backend: s3Backend{backend}}
}

// NewWithBackend builds a Store directly over a Backend implementation,
// bypassing the storage.Storage adapter. Used by tests to supply an
// in-memory fake.
func NewWithBackend(backend Backend) *Store {
	return &Store{backend: backend}
}

// s3Backend adapts storage.Storage to Backend.
type s3Backend struct {
	storage.Storage
}

func (b s3Backend) PutAt(ctx context.Context, key string, r io.Reader, size int64) (*storage.FileInfo, error) {
	return b.Storage.Put(ctx, r, size, storage.WithKey(key))
}

// Reference identifies a stored blob by its content hash and the logical
// (run, artifact-name) pair it was uploaded under.
type Reference struct {
	RunID  string
	Name   string
	SHA256 string
	Key    string
	Size   int64
}

// PutArtifact uploads an artifact for runID under the given logical name,
// deduplicating by sha256: if a blob with the same hash already exists at
// its content-addressed key, the upload is skipped and the existing key is
// reused.
func (s *Store) PutArtifact(ctx context.Context, runID, name string, r io.Reader) (*Reference, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("artifact: read %s/%s: %w", runID, name, err)
	}

	sum := sha256.Sum256(data)
	hexSum := hex.EncodeToString(sum[:])
	key := "artifacts/" + contentKey(hexSum)

	if _, err := s.backend.Get(ctx, key); err == nil {
		return &Reference{RunID: runID, Name: name, SHA256: hexSum, Key: key, Size: int64(len(data))}, nil
	}

	info, err := s.backend.PutAt(ctx, key, bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("artifact: store %s/%s: %w", runID, name, err)
	}

	return &Reference{RunID: runID, Name: name, SHA256: hexSum, Key: info.Key, Size: info.Size}, nil
}

// AppendLogChunk stores a log chunk for runID's named log stream. Unlike
// artifacts, log chunks are not deduplicated — each chunk is a distinct
// append to an ordered stream, keyed by run, name, and sequence number.
func (s *Store) AppendLogChunk(ctx context.Context, runID, name string, seq int, r io.Reader) (*Reference, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("artifact: read log chunk %s/%s#%d: %w", runID, name, seq, err)
	}

	key := "logs/" + logChunkKey(runID, name, seq)
	info, err := s.backend.PutAt(ctx, key, bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("artifact: store log chunk %s/%s#%d: %w", runID, name, seq, err)
	}

	sum := sha256.Sum256(data)
	return &Reference{RunID: runID, Name: name, SHA256: hex.EncodeToString(sum[:]), Key: info.Key, Size: info.Size}, nil
}

// Open returns a reader for the blob at key.
func (s *Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	return s.backend.Get(ctx, key)
}

func contentKey(sha256Hex string) string {
	return fmt.Sprintf("%s/%s", sha256Hex[:2], sha256Hex)
}

func logChunkKey(runID, name string, seq int) string {
	return fmt.Sprintf("%s/%s/%06d", runID, name, seq)
}
