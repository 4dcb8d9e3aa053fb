// Package download streams model files from their source URLs into the
// store, tracking a per-model state machine that UI layers can subscribe to.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/platekit/go-alpr/catalog"
	"github.com/platekit/go-alpr/store"
)

var (
	// ErrUnknownModel is returned when the requested id is not in the catalog.
	ErrUnknownModel = errors.New("unknown model")
	// ErrSizeMismatch is returned when a completed transfer does not match
	// the descriptor's expected size. The partial file is removed first.
	ErrSizeMismatch = errors.New("downloaded size does not match expected size")
)

// ProgressFunc receives byte-level progress while a transfer runs. It fires
// on the transfer goroutine, not on any particular caller thread.
type ProgressFunc func(received, total int64)

// partialSuffix marks in-flight files so they never satisfy the store's
// presence-plus-size check.
const partialSuffix = ".download"

const copyBufferSize = 32 * 1024

// Manager owns the per-model download-state table and runs transfers.
// Downloads of different ids are independent; concurrent requests for the
// same id are coalesced onto the in-flight transfer via singleflight, so a
// second caller blocks until the first transfer finishes and shares its
// result (its own progress callback is not invoked).
type Manager struct {
	cat    *catalog.Catalog
	store  *store.Store
	client *http.Client
	log    *logrus.Entry

	mu     sync.Mutex
	states map[string]State

	flight singleflight.Group
	subs   subscribers
}

// NewManager wires a manager over the given catalog and store. A nil client
// falls back to http.DefaultClient.
func NewManager(cat *catalog.Catalog, st *store.Store, client *http.Client, log *logrus.Entry) *Manager {
	if client == nil {
		client = http.DefaultClient
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Manager{
		cat:    cat,
		store:  st,
		client: client,
		log:    log.WithField("component", "download"),
		states: make(map[string]State),
	}
}

// StateOf returns the current state for a model id. Ids that have never been
// touched by this manager derive their state from the store.
func (m *Manager) StateOf(id string) State {
	m.mu.Lock()
	st, ok := m.states[id]
	m.mu.Unlock()
	if ok {
		return st
	}
	if m.store.IsDownloaded(id) {
		return State{Status: StatusDownloaded}
	}
	return State{Status: StatusNotDownloaded}
}

// Subscribe returns a channel of state-change events plus a cancel func.
// Delivery is best-effort; see subscribers.
func (m *Manager) Subscribe() (<-chan Event, func()) {
	return m.subs.subscribe()
}

// Download fetches the model file for id into the store. It is idempotent:
// a model that already passes the store's check transitions straight to
// Downloaded without network access. The context cancels an in-flight
// transfer; the partial file is removed on any failure path.
func (m *Manager) Download(ctx context.Context, id string, onProgress ProgressFunc) error {
	desc, ok := m.cat.Get(id)
	if !ok {
		return fmt.Errorf("download %q: %w", id, ErrUnknownModel)
	}
	_, err, _ := m.flight.Do(id, func() (any, error) {
		return nil, m.download(ctx, desc, onProgress)
	})
	return err
}

// Delete removes the model file and resets its state to NotDownloaded.
func (m *Manager) Delete(id string) error {
	if _, ok := m.cat.Get(id); !ok {
		return fmt.Errorf("delete %q: %w", id, ErrUnknownModel)
	}
	if err := m.store.Delete(id); err != nil {
		return err
	}
	m.setState(id, State{Status: StatusNotDownloaded})
	return nil
}

func (m *Manager) download(ctx context.Context, desc catalog.Descriptor, onProgress ProgressFunc) error {
	log := m.log.WithField("model", desc.ID)

	if m.store.IsDownloaded(desc.ID) {
		m.setState(desc.ID, State{Status: StatusDownloaded})
		return nil
	}

	m.setState(desc.ID, State{Status: StatusDownloading, TotalBytes: desc.SizeBytes})

	partial := m.store.FilePath(desc) + partialSuffix
	received, err := m.transfer(ctx, desc, partial, onProgress)
	if err != nil {
		m.fail(desc.ID, partial, err)
		return err
	}
	if received != desc.SizeBytes {
		err := fmt.Errorf("download %q: got %d bytes, want %d: %w",
			desc.ID, received, desc.SizeBytes, ErrSizeMismatch)
		m.fail(desc.ID, partial, err)
		return err
	}
	if err := os.Rename(partial, m.store.FilePath(desc)); err != nil {
		err = fmt.Errorf("download %q: finalize: %w", desc.ID, err)
		m.fail(desc.ID, partial, err)
		return err
	}

	log.WithField("bytes", received).Info("model downloaded")
	m.setState(desc.ID, State{Status: StatusDownloaded})
	return nil
}

// transfer streams the response body into the partial file chunk by chunk,
// updating state and invoking the progress callback per chunk. The whole
// file is never buffered in memory.
func (m *Manager) transfer(ctx context.Context, desc catalog.Descriptor, partial string, onProgress ProgressFunc) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, desc.URL, nil)
	if err != nil {
		return 0, fmt.Errorf("download %q: %w", desc.ID, err)
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("download %q: %w", desc.ID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("download %q: unexpected status %s", desc.ID, resp.Status)
	}

	f, err := os.Create(partial)
	if err != nil {
		return 0, fmt.Errorf("download %q: %w", desc.ID, err)
	}
	defer f.Close()

	var received int64
	buf := make([]byte, copyBufferSize)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, writeErr := f.Write(buf[:n]); writeErr != nil {
				return received, fmt.Errorf("download %q: write: %w", desc.ID, writeErr)
			}
			received += int64(n)
			m.setState(desc.ID, State{
				Status:        StatusDownloading,
				ReceivedBytes: received,
				TotalBytes:    desc.SizeBytes,
			})
			if onProgress != nil {
				onProgress(received, desc.SizeBytes)
			}
		}
		if readErr == io.EOF {
			return received, nil
		}
		if readErr != nil {
			return received, fmt.Errorf("download %q: transfer: %w", desc.ID, readErr)
		}
	}
}

// fail removes the partial file and records the error state. A corrupt or
// truncated download must never be left where the store would accept it.
func (m *Manager) fail(id, partial string, cause error) {
	if err := os.Remove(partial); err != nil && !os.IsNotExist(err) {
		m.log.WithField("model", id).WithError(err).Warn("could not remove partial file")
	}
	m.log.WithField("model", id).WithError(cause).Warn("download failed")
	m.setState(id, State{Status: StatusError, Message: cause.Error()})
}

func (m *Manager) setState(id string, st State) {
	m.mu.Lock()
	m.states[id] = st
	m.mu.Unlock()
	m.subs.publish(Event{ModelID: id, State: st})
}
