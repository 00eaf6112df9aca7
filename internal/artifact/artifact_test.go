package artifact_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janitord/janitor/internal/artifact"
	"github.com/janitord/janitor/pkg/storage"
)

var errNotFound = errors.New("not found")

// memBackend is an in-memory artifact.Backend fake for unit testing
// dedup behavior without standing up S3.
type memBackend struct {
	mu    sync.Mutex
	blobs map[string][]byte
	puts  int
}

func newMemBackend() *memBackend {
	return &memBackend{blobs: make(map[string][]byte)}
}

func (m *memBackend) PutAt(_ context.Context, key string, r io.Reader, _ int64) (*storage.FileInfo, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	m.blobs[key] = data
	return &storage.FileInfo{Key: key, Size: int64(len(data))}, nil
}

func (m *memBackend) Get(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.blobs[key]
	if !ok {
		return nil, errNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func TestPutArtifactDeduplicatesBySHA256(t *testing.T) {
	backend := newMemBackend()
	store := artifact.NewWithBackend(backend)
	ctx := context.Background()

	ref1, err := store.PutArtifact(ctx, "run-1", "build.log", bytes.NewReader([]byte("same content")))
	require.NoError(t, err)

	ref2, err := store.PutArtifact(ctx, "run-2", "build.log", bytes.NewReader([]byte("same content")))
	require.NoError(t, err)

	assert.Equal(t, ref1.SHA256, ref2.SHA256)
	assert.Equal(t, ref1.Key, ref2.Key)
	assert.Equal(t, 1, backend.puts, "second put with identical content should be skipped")
}

func TestPutArtifactDistinctContentGetsDistinctKeys(t *testing.T) {
	backend := newMemBackend()
	store := artifact.NewWithBackend(backend)
	ctx := context.Background()

	ref1, err := store.PutArtifact(ctx, "run-1", "build.log", bytes.NewReader([]byte("content a")))
	require.NoError(t, err)
	ref2, err := store.PutArtifact(ctx, "run-1", "build.log", bytes.NewReader([]byte("content b")))
	require.NoError(t, err)

	assert.NotEqual(t, ref1.Key, ref2.Key)
	assert.Equal(t, 2, backend.puts)
}

func TestAppendLogChunkIsNotDeduplicated(t *testing.T) {
	backend := newMemBackend()
	store := artifact.NewWithBackend(backend)
	ctx := context.Background()

	_, err := store.AppendLogChunk(ctx, "run-1", "stdout", 0, bytes.NewReader([]byte("chunk one")))
	require.NoError(t, err)
	_, err = store.AppendLogChunk(ctx, "run-1", "stdout", 1, bytes.NewReader([]byte("chunk one")))
	require.NoError(t, err)

	assert.Equal(t, 2, backend.puts, "each log chunk is stored independently of content")
}

func TestOpenReadsBackTheStoredBlob(t *testing.T) {
	backend := newMemBackend()
	store := artifact.NewWithBackend(backend)
	ctx := context.Background()

	ref, err := store.PutArtifact(ctx, "run-1", "build.log", bytes.NewReader([]byte("payload")))
	require.NoError(t, err)

	rc, err := store.Open(ctx, ref.Key)
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}
