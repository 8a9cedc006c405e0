package ssdp

import (
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muurk/ssdpd/internal/dispatch"
	"github.com/muurk/ssdpd/internal/registry"
)

var (
	localIP   = net.IPv4(192, 168, 1, 5)
	requester = &net.UDPAddr{IP: net.IPv4(192, 168, 1, 40), Port: 53211}
)

func localAds() []registry.Advertisement {
	return []registry.Advertisement{
		{ID: "uuid:a::urn:A", Protocol: ProtocolID, URI: "http://192.168.1.5:8080/a.xml", ServiceType: "urn:A"},
		{ID: "uuid:b::urn:B", Protocol: ProtocolID, URI: "http://192.168.1.5:8080/b.xml", ServiceType: "urn:B"},
		{ID: "uuid:c::urn:C", Protocol: ProtocolID, URI: "http://192.168.1.5:8080/c.xml", ServiceType: "urn:C"},
		{ID: "mdns-only", Protocol: "mdns", URI: "http://192.168.1.5/", ServiceType: "_http._tcp"},
	}
}

func newTestEngine(sink *fakeSink, sender Sender, exec Executor) *Engine {
	if exec == nil {
		exec = dispatch.Inline{}
	}
	return NewEngine(EngineOptions{
		Sink:     sink,
		Executor: exec,
		Sender:   sender,
		Network:  staticNetwork{ip: localIP},
	})
}

func search(st string) []byte {
	return []byte("M-SEARCH * HTTP/1.1\r\nHOST: 239.255.255.250:1900\r\nMAN: \"ssdp:discover\"\r\nMX: 3\r\nST: " + st + "\r\n\r\n")
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Class
	}{
		{name: "search request", raw: "M-SEARCH * HTTP/1.1\r\nST: ssdp:all\r\n", want: ClassSearch},
		{name: "notify with usn and location", raw: "NOTIFY * HTTP/1.1\r\nUSN: u1\r\nLOCATION: http://h/x\r\n", want: ClassAdvertisement},
		{name: "search response", raw: "HTTP/1.1 200 OK\r\nST: urn:X\r\nUSN: u1\r\nLOCATION: http://h/x\r\n", want: ClassAdvertisement},
		{name: "notify missing location", raw: "NOTIFY * HTTP/1.1\r\nUSN: u1\r\nNTS: ssdp:alive\r\n", want: ClassIgnore},
		{name: "notify missing usn", raw: "NOTIFY * HTTP/1.1\r\nLOCATION: http://h/x\r\n", want: ClassIgnore},
		{name: "search with usn and location is still a search", raw: "M-SEARCH * HTTP/1.1\r\nUSN: u1\r\nLOCATION: http://h/x\r\n", want: ClassSearch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Parse(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, Classify(p))
		})
	}
}

func TestEngine_SearchAllAnswersEveryLocalAdvertisement(t *testing.T) {
	sink := &fakeSink{local: localAds()}
	sender := &recordingSender{}
	e := newTestEngine(sink, sender, nil)

	e.HandleDatagram(requester, search(SearchAll))

	require.Len(t, sender.sent, 3)
	for i, ad := range localAds()[:3] {
		got := sender.sent[i]
		assert.Equal(t, requester.String(), got.dst)

		p, err := Parse(got.data)
		require.NoError(t, err)
		assert.Equal(t, "HTTP/1.1 200 OK", p.StartLine())
		assert.Equal(t, ad.URI, p.Location())
		assert.Equal(t, ad.ID, p.USN())
		assert.Equal(t, SearchAll, p.ST(), "response echoes the requested ST")
		assert.Equal(t, DefaultCacheControl, p.CacheControl())
		assert.Equal(t, DefaultServer, p.Server())
	}
}

func TestEngine_SearchSpecificTarget(t *testing.T) {
	tests := []struct {
		name      string
		st        string
		wantSends int
		wantUSN   string
	}{
		{name: "match", st: "urn:B", wantSends: 1, wantUSN: "uuid:b::urn:B"},
		{name: "no match", st: "urn:X", wantSends: 0},
		{name: "other protocol is not offered", st: "_http._tcp", wantSends: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &fakeSink{local: localAds()}
			sender := &recordingSender{}
			e := newTestEngine(sink, sender, nil)

			assert.NotPanics(t, func() { e.HandleDatagram(requester, search(tt.st)) })

			require.Len(t, sender.sent, tt.wantSends)
			if tt.wantSends == 1 {
				p, err := Parse(sender.sent[0].data)
				require.NoError(t, err)
				assert.Equal(t, tt.wantUSN, p.USN())
				assert.Equal(t, tt.st, p.ST())
				assert.Equal(t, requester.String(), sender.sent[0].dst)
			}
		})
	}
}

func TestEngine_SearchWithoutTargetIsIgnored(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{
			name: "no ST header",
			raw:  "M-SEARCH * HTTP/1.1\r\nHOST: 239.255.255.250:1900\r\nMAN: \"ssdp:discover\"\r\nMX: 3\r\n\r\n",
		},
		{
			name: "empty ST header",
			raw:  "M-SEARCH * HTTP/1.1\r\nHOST: 239.255.255.250:1900\r\nMAN: \"ssdp:discover\"\r\nMX: 3\r\nST: \r\n\r\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// An advertisement with no service type must not match a missing ST
			ads := append(localAds(), registry.Advertisement{
				ID: "uuid:untyped", Protocol: ProtocolID, URI: "http://192.168.1.5:8080/u.xml",
			})
			sink := &fakeSink{local: ads}
			sender := &recordingSender{}
			e := newTestEngine(sink, sender, nil)

			e.HandleDatagram(requester, []byte(tt.raw))

			if sender.calls != 0 {
				t.Errorf("sends = %d, want 0", sender.calls)
			}
			if sink.queries != 0 {
				t.Errorf("sink queries = %d, want 0", sink.queries)
			}
		})
	}
}

func TestEngine_SendFailureDoesNotAbortFanOut(t *testing.T) {
	sink := &fakeSink{local: localAds()}
	sender := &recordingSender{failOn: map[int]error{1: errors.New("host unreachable")}}
	e := newTestEngine(sink, sender, nil)

	e.HandleDatagram(requester, search(SearchAll))

	assert.Equal(t, 3, sender.calls)
	require.Len(t, sender.sent, 2)
	assert.Contains(t, sender.sent[0].data, "USN: uuid:a::urn:A")
	assert.Contains(t, sender.sent[1].data, "USN: uuid:c::urn:C")
}

func TestEngine_RespondWrapsSendError(t *testing.T) {
	boom := errors.New("boom")
	e := newTestEngine(&fakeSink{}, &recordingSender{failOn: map[int]error{0: boom}}, nil)

	err := e.respond(requester, "urn:A", localAds()[0])
	assert.True(t, IsResponseSend(err))
	assert.ErrorIs(t, err, boom)

	e.sender = nil
	assert.True(t, IsResponseSend(e.respond(requester, "urn:A", localAds()[0])))
}

func TestEngine_ServerOverride(t *testing.T) {
	sink := &fakeSink{local: localAds()}
	sender := &recordingSender{}
	e := NewEngine(EngineOptions{
		Sink:     sink,
		Executor: dispatch.Inline{},
		Sender:   sender,
		Server:   "Linux/6.1 UPnP/1.1 mediabox/2.0",
	})

	e.HandleDatagram(requester, search("urn:A"))

	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0].data, "SERVER: Linux/6.1 UPnP/1.1 mediabox/2.0\r\n")
}

func TestEngine_PublishesAdvertisement(t *testing.T) {
	sink := &fakeSink{}
	e := newTestEngine(sink, &recordingSender{}, nil)
	seen := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return seen }

	raw := "NOTIFY * HTTP/1.1\r\nUSN: u1\r\nLOCATION: http://h/x\r\n"
	e.HandleDatagram(requester, []byte(raw))

	require.Len(t, sink.published, 1)
	ad := sink.published[0]
	assert.Equal(t, "u1", ad.ID)
	assert.Equal(t, ProtocolID, ad.Protocol)
	assert.Equal(t, "http://h/x", ad.URI)
	assert.Equal(t, raw, ad.RawData)
	assert.False(t, ad.Internal)
	assert.Equal(t, seen, ad.LastSeen)

	p, ok := ad.Object.(*Packet)
	require.True(t, ok)
	assert.Equal(t, "u1", p.USN())
}

func TestEngine_AdvertisementFields(t *testing.T) {
	sink := &fakeSink{}
	e := newTestEngine(sink, &recordingSender{}, nil)

	e.HandleDatagram(requester, []byte(notifyPayload))
	e.HandleDatagram(requester, []byte(searchResponsePayload))

	require.Len(t, sink.published, 2)
	assert.Equal(t, "upnp:rootdevice", sink.published[0].ServiceType, "NOTIFY uses NT")
	assert.Equal(t, 90*time.Second, sink.published[0].MaxAge)
	assert.Equal(t, "urn:Belkin:service:metainfo:1", sink.published[1].ServiceType, "response uses ST")
	assert.Equal(t, 86400*time.Second, sink.published[1].MaxAge)
}

func TestEngine_IgnoresNotifyWithoutLocation(t *testing.T) {
	sink := &fakeSink{}
	sender := &recordingSender{}
	exec := &queueExecutor{}
	e := newTestEngine(sink, sender, exec)

	e.HandleDatagram(requester, []byte("NOTIFY * HTTP/1.1\r\nUSN: u1\r\nNTS: ssdp:byebye\r\n"))

	assert.Empty(t, exec.tasks)
	assert.Empty(t, sink.published)
}

func TestEngine_DiscardsMalformed(t *testing.T) {
	sink := &fakeSink{}
	exec := &queueExecutor{}
	e := newTestEngine(sink, &recordingSender{}, exec)

	assert.NotPanics(t, func() {
		e.HandleDatagram(requester, nil)
		e.HandleDatagram(requester, []byte("\r\n\r\n"))
	})
	assert.Empty(t, exec.tasks)
}

func TestEngine_SuppressesOwnDatagrams(t *testing.T) {
	tests := []struct {
		name string
		src  net.Addr
		raw  string
	}{
		{name: "own search", src: &net.UDPAddr{IP: localIP, Port: 1900}, raw: string(search(SearchAll))},
		{name: "own notify", src: &net.UDPAddr{IP: localIP, Port: 41000}, raw: "NOTIFY * HTTP/1.1\r\nUSN: u1\r\nLOCATION: http://h/x\r\n"},
		{name: "own address as ip addr", src: &net.IPAddr{IP: localIP}, raw: string(search(SearchAll))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &fakeSink{local: localAds()}
			sender := &recordingSender{}
			exec := &queueExecutor{}
			e := newTestEngine(sink, sender, exec)

			e.HandleDatagram(tt.src, []byte(tt.raw))

			assert.Empty(t, exec.tasks, "self datagrams are never dispatched")
			assert.Zero(t, sink.queries)
			assert.Empty(t, sink.published)
			assert.Empty(t, sender.sent)
		})
	}
}

func TestEngine_SinkAccessHappensOnExecutor(t *testing.T) {
	sink := &fakeSink{local: localAds()}
	sender := &recordingSender{}
	exec := &queueExecutor{}
	e := newTestEngine(sink, sender, exec)

	e.HandleDatagram(requester, search(SearchAll))
	e.HandleDatagram(requester, []byte("NOTIFY * HTTP/1.1\r\nUSN: u9\r\nLOCATION: http://h/9\r\n"))

	// Nothing touches the sink or the socket until the executor runs
	assert.Len(t, exec.tasks, 2)
	assert.Zero(t, sink.queries)
	assert.Empty(t, sink.published)
	assert.Empty(t, sender.sent)

	exec.run()
	assert.Equal(t, 1, sink.queries)
	assert.Len(t, sender.sent, 3)
	require.Len(t, sink.published, 1)
	assert.Equal(t, "u9", sink.published[0].ID)
}

func TestEngine_WithSerialExecutorPreservesOrder(t *testing.T) {
	sink := &fakeSink{}
	exec := dispatch.NewSerial()
	e := newTestEngine(sink, &recordingSender{}, exec)

	for _, id := range []string{"u1", "u2", "u3", "u4"} {
		e.HandleDatagram(requester, []byte("NOTIFY * HTTP/1.1\r\nUSN: "+id+"\r\nLOCATION: http://h/"+id+"\r\n"))
	}
	exec.Close()

	var ids []string
	for _, ad := range sink.published {
		ids = append(ids, ad.ID)
	}
	assert.Equal(t, []string{"u1", "u2", "u3", "u4"}, ids)
}

func TestSourceIP(t *testing.T) {
	tests := []struct {
		name string
		addr net.Addr
		want string
	}{
		{name: "udp", addr: &net.UDPAddr{IP: net.IPv4(10, 1, 2, 3), Port: 1900}, want: "10.1.2.3"},
		{name: "ip", addr: &net.IPAddr{IP: net.IPv4(10, 1, 2, 4)}, want: "10.1.2.4"},
		{name: "nil", addr: nil, want: "<nil>"},
		{name: "other", addr: stringAddr("10.1.2.5:7"), want: "10.1.2.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sourceIP(tt.addr).String())
		})
	}
}

type stringAddr string

func (a stringAddr) Network() string { return "udp" }
func (a stringAddr) String() string  { return string(a) }

func TestService_RespondsThroughManagerSocket(t *testing.T) {
	n := newFakeNetwork()
	sink := &fakeSink{local: localAds()}
	svc := NewService(Options{Manager: ManagerOptions{
		ReceiveTimeout:  20 * time.Millisecond,
		RecreateBackoff: -1,
		Listen:          n.Listen,
	}}, sink, dispatch.Inline{}, staticNetwork{ip: localIP}, nil)

	n.push(readResult{data: search("urn:C"), src: requester})
	n.push(readResult{data: search(SearchAll), src: &net.UDPAddr{IP: localIP, Port: 1900}})

	require.NoError(t, svc.Start(t.Context()))
	require.Eventually(t, func() bool { return len(n.sent()) == 2 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	svc.Stop()
	waitDone(t, svc.Manager)

	sent := n.sent()
	require.Len(t, sent, 2, "probe plus one response; own search is suppressed")
	assert.True(t, strings.HasPrefix(sent[0].data, "M-SEARCH"))
	assert.Equal(t, requester.String(), sent[1].dst)
	assert.Contains(t, sent[1].data, "USN: uuid:c::urn:C\r\n")
	assert.Equal(t, 1, n.listens(), "responses share the group socket")
	assert.NotNil(t, svc.Engine())
}
