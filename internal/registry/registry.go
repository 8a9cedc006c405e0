package registry

import (
	"sort"
	"sync"
	"time"
)

// DefaultMaxAge is applied to discovered advertisements that carry no usable max-age
const DefaultMaxAge = 1800 * time.Second

// Advertisement describes a single service instance announced on the network
type Advertisement struct {
	ID          string        `json:"id"`                     // Unique service name (USN for SSDP)
	Protocol    string        `json:"protocol"`               // Discovery protocol identifier ("ssdp", "mdns")
	URI         string        `json:"uri"`                    // Where the service can be reached (LOCATION for SSDP)
	ServiceType string        `json:"service_type,omitempty"` // ST or NT for SSDP, DNS-SD type for mDNS
	RawData     string        `json:"raw,omitempty"`          // Payload the advertisement was built from
	Object      any           `json:"-"`                      // Parsed protocol message, if any
	Internal    bool          `json:"internal"`               // Published locally rather than discovered
	LastSeen    time.Time     `json:"last_seen"`
	MaxAge      time.Duration `json:"max_age,omitempty"`
}

// Expired reports whether a discovered advertisement has outlived its max-age.
// Internal advertisements never expire.
func (a Advertisement) Expired(now time.Time) bool {
	if a.Internal {
		return false
	}
	maxAge := a.MaxAge
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return now.Sub(a.LastSeen) > maxAge
}

// Event is delivered to subscribers whenever an advertisement is published
type Event struct {
	Advertisement Advertisement
	New           bool // First time this ID was seen for its protocol and origin
}

// Registry is an in-memory store of advertisements keyed by protocol and ID.
// Internal (locally published) and discovered advertisements are kept apart:
// only internal ones are offered to search requests.
type Registry struct {
	mu         sync.RWMutex
	internal   map[string]map[string]Advertisement
	discovered map[string]map[string]Advertisement
	subs       map[int]func(Event)
	nextSub    int
	now        func() time.Time
}

// New creates an empty registry
func New() *Registry {
	return &Registry{
		internal:   make(map[string]map[string]Advertisement),
		discovered: make(map[string]map[string]Advertisement),
		subs:       make(map[int]func(Event)),
		now:        time.Now,
	}
}

// Publish stores or refreshes an advertisement and notifies subscribers.
// Subscribers are called synchronously after the registry lock is released.
func (r *Registry) Publish(ad Advertisement, internal bool) {
	ad.Internal = internal
	if ad.LastSeen.IsZero() {
		ad.LastSeen = r.now()
	}

	r.mu.Lock()
	set := r.discovered
	if internal {
		set = r.internal
	}
	byID, ok := set[ad.Protocol]
	if !ok {
		byID = make(map[string]Advertisement)
		set[ad.Protocol] = byID
	}
	_, existed := byID[ad.ID]
	byID[ad.ID] = ad

	subs := make([]func(Event), 0, len(r.subs))
	for _, fn := range r.subs {
		subs = append(subs, fn)
	}
	r.mu.Unlock()

	ev := Event{Advertisement: ad, New: !existed}
	for _, fn := range subs {
		fn(ev)
	}
}

// Advertisements returns the internal advertisements for a protocol, sorted by ID
func (r *Registry) Advertisements(protocol string) []Advertisement {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sorted(r.internal[protocol])
}

// Advertisement returns the internal advertisement whose service type equals serviceType
func (r *Registry) Advertisement(protocol, serviceType string) (Advertisement, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	// Iterate in ID order so the match is deterministic when several share a type
	for _, ad := range sorted(r.internal[protocol]) {
		if ad.ServiceType == serviceType {
			return ad, true
		}
	}
	return Advertisement{}, false
}

// Discovered returns the advertisements learned from the network for a protocol, sorted by ID
func (r *Registry) Discovered(protocol string) []Advertisement {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sorted(r.discovered[protocol])
}

// All returns every discovered advertisement across protocols, sorted by protocol then ID
func (r *Registry) All() []Advertisement {
	r.mu.RLock()
	defer r.mu.RUnlock()

	protocols := make([]string, 0, len(r.discovered))
	for p := range r.discovered {
		protocols = append(protocols, p)
	}
	sort.Strings(protocols)

	var out []Advertisement
	for _, p := range protocols {
		out = append(out, sorted(r.discovered[p])...)
	}
	return out
}

// Remove deletes an internal advertisement. It reports whether one was removed.
func (r *Registry) Remove(protocol, id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	byID, ok := r.internal[protocol]
	if !ok {
		return false
	}
	if _, ok := byID[id]; !ok {
		return false
	}
	delete(byID, id)
	return true
}

// Expire drops discovered advertisements that have outlived their max-age and
// returns the number removed
func (r *Registry) Expire(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for _, byID := range r.discovered {
		for id, ad := range byID {
			if ad.Expired(now) {
				delete(byID, id)
				removed++
			}
		}
	}
	return removed
}

// Count returns the number of internal and discovered advertisements for a protocol
func (r *Registry) Count(protocol string) (internal, discovered int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.internal[protocol]), len(r.discovered[protocol])
}

// Subscribe registers fn to be called on every Publish.
// The returned function removes the subscription.
func (r *Registry) Subscribe(fn func(Event)) func() {
	r.mu.Lock()
	id := r.nextSub
	r.nextSub++
	r.subs[id] = fn
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.subs, id)
		r.mu.Unlock()
	}
}

func sorted(byID map[string]Advertisement) []Advertisement {
	out := make([]Advertisement, 0, len(byID))
	for _, ad := range byID {
		out = append(out, ad)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
