package store_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/framegraph/pkg/observability"
	"github.com/matzehuels/framegraph/pkg/project"
	"github.com/matzehuels/framegraph/pkg/store"
	"github.com/matzehuels/framegraph/pkg/store/storetest"
)

func TestMemoryStore_Contract(t *testing.T) {
	storetest.RunContract(t, store.NewMemoryStore())
}

func TestFileStore_Contract(t *testing.T) {
	for _, f := range project.Formats {
		t.Run(string(f), func(t *testing.T) {
			s, err := store.NewFileStore(t.TempDir(), f)
			require.NoError(t, err)
			storetest.RunContract(t, s)
		})
	}
}

func TestFileStore_ReadsOtherFormats(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, project.WriteFile(filepath.Join(dir, "legacy.json"), storetest.Sample("legacy")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	s, err := store.NewFileStore(dir, project.FormatYAML)
	require.NoError(t, err)

	names, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"legacy"}, names)

	doc, err := s.Load(context.Background(), "legacy")
	require.NoError(t, err)
	assert.Equal(t, "legacy", doc.Name)

	// Saving migrates the project to the store's format.
	require.NoError(t, s.Save(context.Background(), doc))
	_, err = os.Stat(filepath.Join(dir, "legacy.json"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, "legacy.yaml"))
	assert.NoError(t, err)
}

func TestNewFileStore_RejectsUnknownFormat(t *testing.T) {
	_, err := store.NewFileStore(t.TempDir(), project.Format("xml"))
	assert.Error(t, err)
}

type storeHooks struct {
	observability.NoopStoreHooks
	mu  sync.Mutex
	ops []string
	err []bool
}

func (h *storeHooks) OnStoreOp(_ context.Context, backend, op string, _ time.Duration, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ops = append(h.ops, backend+":"+op)
	h.err = append(h.err, err != nil)
}

func TestInstrument(t *testing.T) {
	h := &storeHooks{}
	observability.SetStoreHooks(h)
	defer observability.Reset()

	s := store.Instrument(store.NewMemoryStore(), "memory")
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, storetest.Sample("a")))
	_, err := s.Load(ctx, "missing")
	require.Error(t, err)
	_, err = s.List(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, "a"))

	assert.Equal(t, []string{"memory:save", "memory:load", "memory:list", "memory:delete"}, h.ops)
	assert.Equal(t, []bool{false, true, false, false}, h.err)
}

func TestRetryWithBackoff(t *testing.T) {
	store.RetryDelay = time.Millisecond
	ctx := context.Background()
	flaky := errors.New("connection reset")

	t.Run("retries retryable errors", func(t *testing.T) {
		calls := 0
		err := store.RetryWithBackoff(ctx, func() error {
			calls++
			if calls < 3 {
				return store.Retryable(flaky)
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up after three attempts", func(t *testing.T) {
		calls := 0
		err := store.RetryWithBackoff(ctx, func() error {
			calls++
			return store.Retryable(flaky)
		})
		assert.Equal(t, flaky, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("does not retry other errors", func(t *testing.T) {
		calls := 0
		err := store.RetryWithBackoff(ctx, func() error {
			calls++
			return flaky
		})
		assert.ErrorIs(t, err, flaky)
		assert.Equal(t, 1, calls)
	})
}
