// Package store persists user-created events on disk. Feed events are
// re-derived from their ICS sources on every refresh; only events the
// user adds through the API live here.
package store

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/peterbourgon/diskv/v3"

	appLog "tabcal/internal/log"
	"tabcal/internal/model"
)

// ErrNotFound is returned when no event exists under the given ID.
var ErrNotFound = errors.New("store: event not found")

// Store is a diskv-backed collection of local events, one JSON document
// per event keyed by event ID.
type Store struct {
	d *diskv.Diskv
}

// New opens (or creates) a store rooted at baseDir.
func New(baseDir string) *Store {
	return &Store{
		d: diskv.New(diskv.Options{
			BasePath:     baseDir,
			CacheSizeMax: 1024 * 1024, // 1MB
		}),
	}
}

// Put writes an event. An empty ID gets a generated one; the stored
// event (with its final ID) is returned.
func (s *Store) Put(ev model.Event) (model.Event, error) {
	if !ev.Valid() {
		return model.Event{}, errors.New("store: event needs valid start and end")
	}
	if ev.ID == "" {
		ev.ID = newID()
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return model.Event{}, err
	}
	if err := s.d.Write(ev.ID, data); err != nil {
		return model.Event{}, err
	}
	return ev, nil
}

// Get reads one event by ID.
func (s *Store) Get(id string) (model.Event, error) {
	data, err := s.d.Read(id)
	if err != nil {
		return model.Event{}, ErrNotFound
	}
	var ev model.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return model.Event{}, err
	}
	ev.ID = id
	return ev, nil
}

// Delete removes one event by ID.
func (s *Store) Delete(id string) error {
	if !s.d.Has(id) {
		return ErrNotFound
	}
	return s.d.Erase(id)
}

// List returns all events intersecting [from, to), sorted by start
// time. Entries that no longer decode are logged and skipped.
func (s *Store) List(ctx context.Context, from, to time.Time) ([]model.Event, error) {
	out := make([]model.Event, 0)
	for key := range s.d.Keys(ctx.Done()) {
		ev, err := s.Get(key)
		if err != nil {
			appLog.Warn("store: skipping unreadable entry", "key", key, "reason", err.Error())
			continue
		}
		if !ev.Start.Before(to) || !ev.End.After(from) {
			continue
		}
		out = append(out, ev)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Start.Before(out[j].Start)
	})
	return out, nil
}

func newID() string {
	var b [6]byte
	if _, err := rand.Read(b[:]); err != nil {
		// Fall back to a time-derived key; collisions are acceptable for
		// a single-user store.
		return "local-" + time.Now().Format("20060102T150405.000000000")
	}
	return "local-" + hex.EncodeToString(b[:])
}
