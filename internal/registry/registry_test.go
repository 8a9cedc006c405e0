package registry

import (
	"reflect"
	"sync"
	"testing"
	"time"
)

func ad(id, st string) Advertisement {
	return Advertisement{
		ID:          id,
		Protocol:    "ssdp",
		URI:         "http://10.0.0.2/" + id,
		ServiceType: st,
	}
}

func ids(ads []Advertisement) []string {
	out := make([]string, 0, len(ads))
	for _, a := range ads {
		out = append(out, a.ID)
	}
	return out
}

func TestPublish_InternalAndDiscoveredAreSeparate(t *testing.T) {
	r := New()
	r.Publish(ad("u1", "urn:A"), true)
	r.Publish(ad("u2", "urn:B"), false)

	internal := r.Advertisements("ssdp")
	if len(internal) != 1 || internal[0].ID != "u1" || !internal[0].Internal {
		t.Errorf("Advertisements() = %+v, want only internal u1", internal)
	}

	discovered := r.Discovered("ssdp")
	if len(discovered) != 1 || discovered[0].ID != "u2" || discovered[0].Internal {
		t.Errorf("Discovered() = %+v, want only discovered u2", discovered)
	}

	if i, d := r.Count("ssdp"); i != 1 || d != 1 {
		t.Errorf("Count() = (%d, %d), want (1, 1)", i, d)
	}
}

func TestAdvertisements_SortedByID(t *testing.T) {
	r := New()
	for _, id := range []string{"u3", "u1", "u2"} {
		r.Publish(ad(id, "urn:X"), true)
	}

	if got, want := ids(r.Advertisements("ssdp")), []string{"u1", "u2", "u3"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Advertisements() ids = %v, want %v", got, want)
	}
	if got := r.Advertisements("mdns"); len(got) != 0 {
		t.Errorf("Advertisements(mdns) = %v, want none", got)
	}
}

func TestAdvertisement_ExactServiceType(t *testing.T) {
	r := New()
	r.Publish(ad("u1", "urn:schemas-upnp-org:device:MediaServer:1"), true)
	r.Publish(ad("u2", "urn:schemas-upnp-org:device:MediaServer:2"), true)
	r.Publish(ad("u3", "urn:discovered-only"), false)

	tests := []struct {
		name   string
		st     string
		wantID string
		wantOK bool
	}{
		{name: "exact match", st: "urn:schemas-upnp-org:device:MediaServer:2", wantID: "u2", wantOK: true},
		{name: "prefix does not match", st: "urn:schemas-upnp-org:device:MediaServer", wantOK: false},
		{name: "discovered entries are not offered", st: "urn:discovered-only", wantOK: false},
		{name: "unknown", st: "urn:X", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := r.Advertisement("ssdp", tt.st)
			if ok != tt.wantOK {
				t.Errorf("Advertisement(%q) ok = %v, want %v", tt.st, ok, tt.wantOK)
			}
			if got.ID != tt.wantID {
				t.Errorf("Advertisement(%q) id = %q, want %q", tt.st, got.ID, tt.wantID)
			}
		})
	}
}

func TestPublish_RefreshesExisting(t *testing.T) {
	r := New()
	first := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	later := first.Add(time.Minute)

	a := ad("u1", "urn:A")
	a.LastSeen = first
	r.Publish(a, false)
	a.LastSeen = later
	a.URI = "http://10.0.0.3/new"
	r.Publish(a, false)

	got := r.Discovered("ssdp")
	if len(got) != 1 {
		t.Fatalf("Discovered() returned %d entries, want 1", len(got))
	}
	if !got[0].LastSeen.Equal(later) {
		t.Errorf("LastSeen = %v, want %v", got[0].LastSeen, later)
	}
	if got[0].URI != "http://10.0.0.3/new" {
		t.Errorf("URI = %q, want the refreshed location", got[0].URI)
	}
}

func TestSubscribe(t *testing.T) {
	r := New()

	var mu sync.Mutex
	var events []Event
	unsubscribe := r.Subscribe(func(ev Event) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	})

	r.Publish(ad("u1", "urn:A"), false)
	r.Publish(ad("u1", "urn:A"), false)
	unsubscribe()
	r.Publish(ad("u2", "urn:A"), false)

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2 (none after unsubscribe)", len(events))
	}
	if !events[0].New {
		t.Error("first publish should be reported as new")
	}
	if events[1].New || events[1].Advertisement.ID != "u1" {
		t.Errorf("second event = %+v, want refresh of u1", events[1])
	}
}

func TestExpire(t *testing.T) {
	r := New()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	fresh := ad("fresh", "urn:A")
	fresh.LastSeen = now.Add(-10 * time.Second)
	fresh.MaxAge = 90 * time.Second

	stale := ad("stale", "urn:A")
	stale.LastSeen = now.Add(-2 * time.Minute)
	stale.MaxAge = 90 * time.Second

	defaulted := ad("defaulted", "urn:A")
	defaulted.LastSeen = now.Add(-20 * time.Minute)

	local := ad("local", "urn:A")
	local.LastSeen = now.Add(-24 * time.Hour)

	r.Publish(fresh, false)
	r.Publish(stale, false)
	r.Publish(defaulted, false)
	r.Publish(local, true)

	if removed := r.Expire(now); removed != 1 {
		t.Errorf("Expire() removed %d, want 1", removed)
	}
	if got, want := ids(r.Discovered("ssdp")), []string{"defaulted", "fresh"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Discovered() ids = %v, want %v", got, want)
	}
	if got := r.Advertisements("ssdp"); len(got) != 1 {
		t.Errorf("internal advertisements must never expire, got %v", ids(got))
	}
}

func TestRemove(t *testing.T) {
	r := New()
	r.Publish(ad("u1", "urn:A"), true)

	tests := []struct {
		protocol string
		id       string
		want     bool
	}{
		{"ssdp", "missing", false},
		{"mdns", "u1", false},
		{"ssdp", "u1", true},
		{"ssdp", "u1", false},
	}
	for _, tt := range tests {
		if got := r.Remove(tt.protocol, tt.id); got != tt.want {
			t.Errorf("Remove(%q, %q) = %v, want %v", tt.protocol, tt.id, got, tt.want)
		}
	}
	if got := r.Advertisements("ssdp"); len(got) != 0 {
		t.Errorf("Advertisements() = %v, want none", ids(got))
	}
}

func TestAll(t *testing.T) {
	r := New()
	m := ad("m1", "_http._tcp")
	m.Protocol = "mdns"
	r.Publish(ad("s2", "urn:A"), false)
	r.Publish(m, false)
	r.Publish(ad("s1", "urn:A"), false)

	var got []string
	for _, a := range r.All() {
		got = append(got, a.Protocol+"/"+a.ID)
	}
	if want := []string{"mdns/m1", "ssdp/s1", "ssdp/s2"}; !reflect.DeepEqual(got, want) {
		t.Errorf("All() = %v, want %v", got, want)
	}
}
