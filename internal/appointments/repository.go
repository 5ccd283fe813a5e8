// Package appointments stores booked appointments and exposes them over HTTP.
package appointments

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository persists appointments. Create and Update return ErrConflict
// when the client already has an appointment at that exact slot.
type Repository interface {
	Create(ctx context.Context, clientID string, at time.Time, purpose string) (*Appointment, error)
	// FindConflicting returns the appointment occupying the slot, or nil.
	FindConflicting(ctx context.Context, clientID string, at time.Time) (*Appointment, error)
	// List returns a client's appointments ordered by date. An empty
	// clientID lists every client.
	List(ctx context.Context, clientID string) ([]*Appointment, error)
	Get(ctx context.Context, id string) (*Appointment, error)
	Update(ctx context.Context, id string, req UpdateRequest) (*Appointment, error)
	Delete(ctx context.Context, id string) error
	// Clear removes a client's appointments, or all of them when clientID
	// is empty, and returns how many were removed.
	Clear(ctx context.Context, clientID string) (int64, error)
}

type slotKey struct {
	clientID string
	at       int64
}

func keyFor(clientID string, at time.Time) slotKey {
	return slotKey{clientID: clientID, at: at.Unix()}
}

// InMemoryRepository keeps appointments in process memory.
type InMemoryRepository struct {
	mu    sync.RWMutex
	byID  map[string]*Appointment
	slots map[slotKey]string
	now   func() time.Time
}

// NewInMemoryRepository creates an empty repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		byID:  make(map[string]*Appointment),
		slots: make(map[slotKey]string),
		now:   time.Now,
	}
}

func (r *InMemoryRepository) Create(ctx context.Context, clientID string, at time.Time, purpose string) (*Appointment, error) {
	if err := validateCreate(clientID, at); err != nil {
		return nil, err
	}
	at = Slot(at)
	now := r.now()
	appt := &Appointment{
		ID:        uuid.New().String(),
		ClientID:  clientID,
		DateTime:  at,
		Purpose:   NormalizePurpose(purpose),
		Status:    StatusConfirmed,
		CreatedAt: now,
		UpdatedAt: now,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	key := keyFor(clientID, at)
	if _, taken := r.slots[key]; taken {
		return nil, ErrConflict
	}
	r.slots[key] = appt.ID
	r.byID[appt.ID] = appt
	return clone(appt), nil
}

func (r *InMemoryRepository) FindConflicting(ctx context.Context, clientID string, at time.Time) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.slots[keyFor(clientID, Slot(at))]
	if !ok {
		return nil, nil
	}
	return clone(r.byID[id]), nil
}

func (r *InMemoryRepository) List(ctx context.Context, clientID string) ([]*Appointment, error) {
	r.mu.RLock()
	out := make([]*Appointment, 0, len(r.byID))
	for _, appt := range r.byID {
		if clientID == "" || appt.ClientID == clientID {
			out = append(out, clone(appt))
		}
	}
	r.mu.RUnlock()
	sortByDateTime(out)
	return out, nil
}

func (r *InMemoryRepository) Get(ctx context.Context, id string) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	appt, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(appt), nil
}

func (r *InMemoryRepository) Update(ctx context.Context, id string, req UpdateRequest) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	updated := clone(current)
	if err := req.apply(updated); err != nil {
		return nil, err
	}
	oldKey := keyFor(current.ClientID, current.DateTime)
	newKey := keyFor(updated.ClientID, updated.DateTime)
	if newKey != oldKey {
		if _, taken := r.slots[newKey]; taken {
			return nil, ErrConflict
		}
		delete(r.slots, oldKey)
		r.slots[newKey] = id
	}
	updated.UpdatedAt = r.now()
	r.byID[id] = updated
	return clone(updated), nil
}

func (r *InMemoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	appt, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	delete(r.slots, keyFor(appt.ClientID, appt.DateTime))
	delete(r.byID, id)
	return nil
}

func (r *InMemoryRepository) Clear(ctx context.Context, clientID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var removed int64
	for id, appt := range r.byID {
		if clientID != "" && appt.ClientID != clientID {
			continue
		}
		delete(r.slots, keyFor(appt.ClientID, appt.DateTime))
		delete(r.byID, id)
		removed++
	}
	return removed, nil
}

func clone(appt *Appointment) *Appointment {
	if appt == nil {
		return nil
	}
	cp := *appt
	return &cp
}

func sortByDateTime(list []*Appointment) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].DateTime.Equal(list[j].DateTime) {
			return list[i].ClientID < list[j].ClientID
		}
		return list[i].DateTime.Before(list[j].DateTime)
	})
}
