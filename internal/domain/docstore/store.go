package docstore

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxNameLength bounds the store name.
const MaxNameLength = 128

// Status is the lifecycle state of a document store.
type Status string

// Store statuses.
const (
	StatusEmpty   Status = "EMPTY"
	StatusNew     Status = "NEW"
	StatusSyncing Status = "SYNCING"
	StatusSync    Status = "SYNC"
	StatusStale   Status = "STALE"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusEmpty, StatusNew, StatusSyncing, StatusSync, StatusStale:
		return true
	}
	return false
}

// Store is the document store aggregate (immutable value object).
type Store struct {
	id          string
	name        string
	description string
	loaders     []Loader
	whereUsed   []string
	status      Status
	createdAt   time.Time
	updatedAt   time.Time
}

// New validates and creates an empty Store with a fresh id.
func New(name, description string, now time.Time) (Store, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Store{}, fmt.Errorf("store name is required")
	}
	if len(name) > MaxNameLength {
		return Store{}, fmt.Errorf("store name too long (max %d)", MaxNameLength)
	}
	now = now.UTC()
	return Store{
		id:          uuid.NewString(),
		name:        name,
		description: description,
		status:      StatusEmpty,
		createdAt:   now,
		updatedAt:   now,
	}, nil
}

// Reconstruct creates a Store without validation (storage hydration).
func Reconstruct(
	id, name, description string, loaders []Loader, whereUsed []string,
	status Status, createdAt, updatedAt time.Time,
) Store {
	return Store{
		id: id, name: name, description: description,
		loaders: loaders, whereUsed: whereUsed, status: status,
		createdAt: createdAt, updatedAt: updatedAt,
	}
}

// ID returns the store identifier.
func (s Store) ID() string { return s.id }

// Name returns the display name.
func (s Store) Name() string { return s.name }

// Description returns the free-form description.
func (s Store) Description() string { return s.description }

// Loaders returns the configured loaders.
func (s Store) Loaders() []Loader { return s.loaders }

// WhereUsed returns the ids of flows referencing this store.
func (s Store) WhereUsed() []string { return s.whereUsed }

// Status returns the lifecycle status.
func (s Store) Status() Status { return s.status }

// CreatedAt returns the creation time.
func (s Store) CreatedAt() time.Time { return s.createdAt }

// UpdatedAt returns the last modification time.
func (s Store) UpdatedAt() time.Time { return s.updatedAt }

// Loader finds a loader by id.
func (s Store) Loader(id string) (Loader, bool) {
	for _, l := range s.loaders {
		if l.ID == id {
			return l, true
		}
	}
	return Loader{}, false
}

// TotalChunks sums chunk counts over all loaders.
func (s Store) TotalChunks() int {
	n := 0
	for _, l := range s.loaders {
		n += l.TotalChunks
	}
	return n
}

// TotalChars sums character counts over all loaders.
func (s Store) TotalChars() int {
	n := 0
	for _, l := range s.loaders {
		n += l.TotalChars
	}
	return n
}

// Patch holds optional field overrides for Apply. Nil fields are left unchanged.
type Patch struct {
	Name        *string
	Description *string
	Status      *Status
	WhereUsed   []string
}

// Apply returns a copy with the patch applied.
func (s Store) Apply(p Patch, now time.Time) (Store, error) {
	out := s.clone()
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name == "" {
			return Store{}, fmt.Errorf("store name is required")
		}
		if len(name) > MaxNameLength {
			return Store{}, fmt.Errorf("store name too long (max %d)", MaxNameLength)
		}
		out.name = name
	}
	if p.Description != nil {
		out.description = *p.Description
	}
	if p.Status != nil {
		if !p.Status.Valid() {
			return Store{}, fmt.Errorf("unknown status %q", *p.Status)
		}
		out.status = *p.Status
	}
	if p.WhereUsed != nil {
		out.whereUsed = slices.Clone(p.WhereUsed)
	}
	out.updatedAt = now.UTC()
	return out, nil
}

// WithLoader returns a copy where the loader is inserted or replaced by id.
func (s Store) WithLoader(l Loader, now time.Time) Store {
	out := s.clone()
	idx := slices.IndexFunc(out.loaders, func(x Loader) bool { return x.ID == l.ID })
	if idx >= 0 {
		out.loaders[idx] = l
	} else {
		out.loaders = append(out.loaders, l)
	}
	out.updatedAt = now.UTC()
	return out
}

// WithoutLoader returns a copy without the given loader.
// The store becomes EMPTY once its last loader is removed.
func (s Store) WithoutLoader(id string, now time.Time) (Store, bool) {
	out := s.clone()
	idx := slices.IndexFunc(out.loaders, func(x Loader) bool { return x.ID == id })
	if idx < 0 {
		return s, false
	}
	out.loaders = slices.Delete(out.loaders, idx, idx+1)
	if len(out.loaders) == 0 {
		out.status = StatusEmpty
	}
	out.updatedAt = now.UTC()
	return out, true
}

// WithStatus returns a copy with the given status.
func (s Store) WithStatus(st Status, now time.Time) Store {
	out := s.clone()
	out.status = st
	out.updatedAt = now.UTC()
	return out
}

func (s Store) clone() Store {
	out := s
	out.loaders = slices.Clone(s.loaders)
	out.whereUsed = slices.Clone(s.whereUsed)
	return out
}
