package download

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/platekit/go-alpr/catalog"
	"github.com/platekit/go-alpr/store"
)

// fixture wires a manager over a temp store and a test server serving the
// given body for every request.
type fixture struct {
	manager  *Manager
	store    *store.Store
	dir      string
	requests *atomic.Int64
}

func newFixture(t *testing.T, expectedSize int64, handler http.HandlerFunc) *fixture {
	t.Helper()
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	cat, err := catalog.New(catalog.Descriptor{
		ID:        "det1",
		Filename:  "det1.onnx",
		SizeBytes: expectedSize,
		URL:       srv.URL + "/det1.onnx",
		Purpose:   catalog.PurposeDetector,
	})
	require.NoError(t, err)

	dir := t.TempDir()
	st, err := store.New(dir, cat)
	require.NoError(t, err)

	return &fixture{
		manager:  NewManager(cat, st, srv.Client(), nil),
		store:    st,
		dir:      dir,
		requests: &requests,
	}
}

func serveBytes(n int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, n))
	}
}

func TestDownloadSuccess(t *testing.T) {
	f := newFixture(t, 1000, serveBytes(1000))

	require.False(t, f.store.IsDownloaded("det1"))

	var lastReceived, lastTotal int64
	err := f.manager.Download(context.Background(), "det1", func(received, total int64) {
		lastReceived, lastTotal = received, total
	})
	require.NoError(t, err)

	assert.True(t, f.store.IsDownloaded("det1"))
	assert.Equal(t, uint64(1000), f.store.TotalStorageBytes())
	assert.Equal(t, int64(1000), lastReceived)
	assert.Equal(t, int64(1000), lastTotal)
	assert.Equal(t, StatusDownloaded, f.manager.StateOf("det1").Status)
}

func TestDownloadIsIdempotent(t *testing.T) {
	f := newFixture(t, 1000, serveBytes(1000))

	require.NoError(t, f.manager.Download(context.Background(), "det1", nil))
	require.NoError(t, f.manager.Download(context.Background(), "det1", nil))

	// The second call saw the verified file and never touched the network.
	assert.Equal(t, int64(1), f.requests.Load())
	assert.Equal(t, StatusDownloaded, f.manager.StateOf("det1").Status)
}

func TestDownloadSizeMismatchRemovesPartial(t *testing.T) {
	f := newFixture(t, 1000, serveBytes(400))

	err := f.manager.Download(context.Background(), "det1", nil)
	require.ErrorIs(t, err, ErrSizeMismatch)

	assert.False(t, f.store.IsDownloaded("det1"))
	_, statErr := os.Stat(filepath.Join(f.dir, "det1.onnx.download"))
	assert.True(t, os.IsNotExist(statErr), "partial file must be removed")
	_, statErr = os.Stat(filepath.Join(f.dir, "det1.onnx"))
	assert.True(t, os.IsNotExist(statErr))

	st := f.manager.StateOf("det1")
	assert.Equal(t, StatusError, st.Status)
	assert.NotEmpty(t, st.Message)
}

func TestDownloadInterruptedTransfer(t *testing.T) {
	f := newFixture(t, 1000, func(w http.ResponseWriter, r *http.Request) {
		// Promise 1000 bytes, deliver 100, then drop the connection.
		w.Header().Set("Content-Length", "1000")
		w.Write(make([]byte, 100))
		if fl, ok := w.(http.Flusher); ok {
			fl.Flush()
		}
	})

	err := f.manager.Download(context.Background(), "det1", nil)
	require.Error(t, err)

	// No file passing the present-and-correctly-sized check may remain.
	assert.False(t, f.store.IsDownloaded("det1"))
	assert.Equal(t, uint64(0), f.store.TotalStorageBytes())
	assert.Equal(t, StatusError, f.manager.StateOf("det1").Status)
}

func TestDownloadHTTPError(t *testing.T) {
	f := newFixture(t, 1000, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	})

	err := f.manager.Download(context.Background(), "det1", nil)
	require.Error(t, err)
	assert.Equal(t, StatusError, f.manager.StateOf("det1").Status)
	assert.False(t, f.store.IsDownloaded("det1"))
}

func TestDownloadUnknownModel(t *testing.T) {
	f := newFixture(t, 1000, serveBytes(1000))
	err := f.manager.Download(context.Background(), "nope", nil)
	require.ErrorIs(t, err, ErrUnknownModel)
}

func TestDownloadCancellation(t *testing.T) {
	release := make(chan struct{})
	f := newFixture(t, 1000, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1000")
		w.Write(make([]byte, 100))
		if fl, ok := w.(http.Flusher); ok {
			fl.Flush()
		}
		<-release
	})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- f.manager.Download(ctx, "det1", nil)
	}()

	// Give the transfer a moment to start, then cancel it.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.True(t, errors.Is(err, context.Canceled) || f.manager.StateOf("det1").Status == StatusError)
	case <-time.After(5 * time.Second):
		t.Fatal("download did not react to cancellation")
	}
	assert.False(t, f.store.IsDownloaded("det1"))
}

func TestConcurrentDownloadsOfSameIDAreCoalesced(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	f := newFixture(t, 1000, func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
		w.Write(make([]byte, 1000))
	})

	var g errgroup.Group
	g.Go(func() error { return f.manager.Download(context.Background(), "det1", nil) })

	<-started
	g.Go(func() error { return f.manager.Download(context.Background(), "det1", nil) })
	time.Sleep(50 * time.Millisecond)
	close(release)

	require.NoError(t, g.Wait())
	assert.Equal(t, int64(1), f.requests.Load(), "second request must join the in-flight transfer")
	assert.True(t, f.store.IsDownloaded("det1"))
}

func TestDeleteResetsState(t *testing.T) {
	f := newFixture(t, 1000, serveBytes(1000))

	require.NoError(t, f.manager.Download(context.Background(), "det1", nil))
	require.True(t, f.store.IsDownloaded("det1"))

	require.NoError(t, f.manager.Delete("det1"))
	assert.False(t, f.store.IsDownloaded("det1"))
	assert.Equal(t, StatusNotDownloaded, f.manager.StateOf("det1").Status)

	require.ErrorIs(t, f.manager.Delete("nope"), ErrUnknownModel)
}

func TestSubscribeObservesTransitions(t *testing.T) {
	f := newFixture(t, 1000, serveBytes(1000))

	events, cancel := f.manager.Subscribe()
	defer cancel()

	require.NoError(t, f.manager.Download(context.Background(), "det1", nil))

	seen := map[Status]bool{}
	deadline := time.After(2 * time.Second)
	for !seen[StatusDownloaded] {
		select {
		case ev := <-events:
			require.Equal(t, "det1", ev.ModelID)
			seen[ev.State.Status] = true
		case <-deadline:
			t.Fatal("did not observe the downloaded transition")
		}
	}
	assert.True(t, seen[StatusDownloading])
	assert.True(t, seen[StatusDownloaded])
}

func TestStateOfDerivesFromStore(t *testing.T) {
	f := newFixture(t, 1000, serveBytes(1000))
	assert.Equal(t, StatusNotDownloaded, f.manager.StateOf("det1").Status)

	// A file placed out of band still reads as downloaded.
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "det1.onnx"), make([]byte, 1000), 0o644))
	assert.Equal(t, StatusDownloaded, f.manager.StateOf("det1").Status)
}

func TestProgressIsMonotonic(t *testing.T) {
	f := newFixture(t, 200000, serveBytes(200000))

	var prev int64 = -1
	err := f.manager.Download(context.Background(), "det1", func(received, total int64) {
		if received < prev {
			t.Errorf("progress went backwards: %d after %d", received, prev)
		}
		prev = received
		assert.Equal(t, int64(200000), total)
	})
	require.NoError(t, err)
	assert.Equal(t, int64(200000), prev)
}
