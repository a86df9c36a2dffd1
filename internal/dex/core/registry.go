package core

import "sync"

// Registry keeps venues by id. It is built once at startup and read per request.
type Registry struct {
	mu     sync.RWMutex
	venues map[VenueID]*Venue
}

func NewRegistry() *Registry {
	return &Registry{venues: make(map[VenueID]*Venue)}
}

func (r *Registry) Register(v *Venue) {
	r.mu.Lock()
	r.venues[v.ID] = v
	r.mu.Unlock()
}

func (r *Registry) Get(id VenueID) *Venue {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.venues[id]
}

// Enabled returns the registered venues among ids, keeping the order of ids.
func (r *Registry) Enabled(ids []VenueID) []*Venue {
	out := make([]*Venue, 0, len(ids))
	for _, id := range ids {
		if v := r.Get(id); v != nil {
			out = append(out, v)
		}
	}
	return out
}

// ByTier returns the venues among ids that belong to tier, in ids order.
func (r *Registry) ByTier(tier RouteTier, ids []VenueID) []*Venue {
	var out []*Venue
	for _, v := range r.Enabled(ids) {
		if v.Tier == tier {
			out = append(out, v)
		}
	}
	return out
}
