package app

import (
	"errors"
	"sync"
)

// ErrNotBridged is returned by PeerOf when the peer leg has not been
// created yet. Callers treat this as "not ready", not a hard failure.
var ErrNotBridged = errors.New("peer leg not bridged yet")

// Registry owns all Call and Leg records. Every mutation of a call or
// its legs goes through the registry so that concurrent reactions for
// the two legs of one call serialize on the call's mutex.
type Registry struct {
	mu    sync.Mutex
	calls map[string]*Call
	legs  map[string]*Leg
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		calls: make(map[string]*Call),
		legs:  make(map[string]*Leg),
	}
}

// GetOrCreateCall returns the call for the given id, creating it lazily
// on first reference by either leg.
func (r *Registry) GetOrCreateCall(id string) *Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.calls[id]; ok {
		return c
	}
	c := &Call{ID: id, Recordings: make(map[string]string)}
	r.calls[id] = c
	return c
}

// GetOrCreateLeg returns the leg for the handle's session id, creating
// and attaching it to the call on first reference. Direction is fixed
// at creation. The caller must hold the call's reaction lock.
func (r *Registry) GetOrCreateLeg(h MediaLeg, call *Call) *Leg {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.legs[h.ID()]; ok {
		// refresh the handle so Get reads the firing event's payload
		l.handle = h
		return l
	}
	l := &Leg{
		ID:       h.ID(),
		Inbound:  h.IsInbound(),
		Recorded: true,
		call:     call,
		handle:   h,
	}
	r.legs[l.ID] = l
	call.legs = append(call.legs, l)
	return l
}

// PeerOf returns the other leg of the call owning l, or ErrNotBridged
// if the call has not been bridged yet.
func (r *Registry) PeerOf(l *Leg) (*Leg, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, other := range l.call.legs {
		if other.ID != l.ID {
			return other, nil
		}
	}
	return nil, ErrNotBridged
}

// Remove evicts a call and its legs. It is also the forced-eviction
// path for calls that end before completing, so memory stays bounded
// by the number of active calls.
func (r *Registry) Remove(call *Call) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range call.legs {
		delete(r.legs, l.ID)
	}
	delete(r.calls, call.ID)
}

// Len reports the number of active calls.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}
