package ssdp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const notifyPayload = "NOTIFY * HTTP/1.1\r\n" +
	"HOST: 239.255.255.250:1900\r\n" +
	"CACHE-CONTROL: max-age=90\r\n" +
	"LOCATION: http://192.168.0.13:49153/nmsDescription.xml\r\n" +
	"NT: upnp:rootdevice\r\n" +
	"NTS: ssdp:alive\r\n" +
	"SERVER: Windows2000/0.0 UPnP/1.0 PhilipsIntelSDK/1.4 DLNADOC/1.50\r\n" +
	"X-User-Agent: redsonic\r\n" +
	"USN: uuid:5AFEF00D-BABE-DADA-FA5A-00113215F871::upnp:rootdevice\r\n" +
	"CONTENT-LENGTH: 0\r\n\r\n"

const searchResponsePayload = "HTTP/1.1 200 OK\r\n" +
	"CACHE-CONTROL: max-age=86400\r\n" +
	"DATE: Mon, 08 Dec 2014 13:16:05 GMT\r\n" +
	"EXT:\r\n" +
	"LOCATION: http://192.168.0.179:49153/setup.xml\r\n" +
	"OPT: \"http://schemas.upnp.org/upnp/1/0/\"; ns=01\r\n" +
	"01-NLS: 80587e26-1dd2-11b2-83d0-be74c3b5e86b\r\n" +
	"SERVER: Unspecified, UPnP/1.0, Unspecified\r\n" +
	"X-User-Agent: redsonic\r\n" +
	"ST: urn:Belkin:service:metainfo:1\r\n" +
	"USN: uuid:Insight-1_0-221437K1200D6D::urn:Belkin:service:metainfo:1\r\n\r\n"

func TestParse_Notify(t *testing.T) {
	p, err := Parse(notifyPayload)
	require.NoError(t, err)

	assert.Equal(t, "NOTIFY * HTTP/1.1", p.StartLine())
	assert.Equal(t, MethodNotify, p.Method())
	assert.Equal(t, "239.255.255.250:1900", p.Host())
	assert.Equal(t, "http://192.168.0.13:49153/nmsDescription.xml", p.Location())
	assert.Equal(t, "upnp:rootdevice", p.NT())
	assert.Equal(t, "ssdp:alive", p.NTS())
	assert.Equal(t, "Windows2000/0.0 UPnP/1.0 PhilipsIntelSDK/1.4 DLNADOC/1.50", p.Server())
	assert.Equal(t, "uuid:5AFEF00D-BABE-DADA-FA5A-00113215F871::upnp:rootdevice", p.USN())

	// Unknown headers are retained and retrievable
	ua, ok := p.Header("x-user-agent")
	assert.True(t, ok)
	assert.Equal(t, "redsonic", ua)
}

func TestParse_SearchResponse(t *testing.T) {
	p, err := Parse(searchResponsePayload)
	require.NoError(t, err)

	assert.Equal(t, "HTTP/1.1", p.Method())
	assert.Equal(t, "http://192.168.0.179:49153/setup.xml", p.Location())
	assert.Equal(t, "urn:Belkin:service:metainfo:1", p.ST())
	assert.True(t, p.Has(HeaderExt))
	assert.Equal(t, "", p.Ext())

	// Header value containing colons is split at the first colon only
	opt, ok := p.Header("OPT")
	assert.True(t, ok)
	assert.Equal(t, `"http://schemas.upnp.org/upnp/1/0/"; ns=01`, opt)
}

func TestParse_CaseInsensitiveHeaders(t *testing.T) {
	upper, err := Parse("HTTP/1.1 200 OK\r\nLOCATION: http://192.168.0.179:49153/setup.xml\r\n")
	require.NoError(t, err)
	lower, err := Parse("HTTP/1.1 200 OK\r\nLocation: http://192.168.0.179:49153/setup.xml\r\n")
	require.NoError(t, err)

	assert.Equal(t, upper.Location(), lower.Location())
	assert.Equal(t, upper.Headers(), lower.Headers())

	v, ok := lower.Header("location")
	assert.True(t, ok)
	assert.Equal(t, "http://192.168.0.179:49153/setup.xml", v)
}

func TestParse(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		wantErr    bool
		wantMethod string
		wantUSN    string
	}{
		{
			name:    "empty input",
			raw:     "",
			wantErr: true,
		},
		{
			name:    "blank first line",
			raw:     "\r\nUSN: u1\r\n",
			wantErr: true,
		},
		{
			name:       "start line only, no terminator",
			raw:        "M-SEARCH * HTTP/1.1",
			wantMethod: MethodSearch,
		},
		{
			name:       "bare LF line endings",
			raw:        "NOTIFY * HTTP/1.1\nUSN: u1\nLOCATION: http://h/x\n",
			wantMethod: MethodNotify,
			wantUSN:    "u1",
		},
		{
			name:       "lines without colon are ignored",
			raw:        "NOTIFY * HTTP/1.1\r\ngarbage line\r\nUSN: u2\r\n",
			wantMethod: MethodNotify,
			wantUSN:    "u2",
		},
		{
			name:       "start line without space has no method",
			raw:        "GARBAGE\r\nUSN: u3\r\n",
			wantMethod: "",
			wantUSN:    "u3",
		},
		{
			name:       "surrounding whitespace trimmed",
			raw:        "NOTIFY * HTTP/1.1\r\n  usn :   u4  \r\n",
			wantMethod: MethodNotify,
			wantUSN:    "u4",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Parse(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, IsMalformed(err), "expected MalformedPacket, got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantMethod, p.Method())
			assert.Equal(t, tt.wantUSN, p.USN())
		})
	}
}

func TestParse_MissingHeadersReadAsAbsent(t *testing.T) {
	p, err := Parse("NOTIFY * HTTP/1.1\r\nUSN: u1\r\n")
	require.NoError(t, err)

	assert.False(t, p.Has(HeaderLocation))
	_, ok := p.Header(HeaderLocation)
	assert.False(t, ok)
	assert.Equal(t, "", p.Location())
}

func TestParse_NotifyRoundTrip(t *testing.T) {
	p, err := Parse("NOTIFY * HTTP/1.1\r\nUSN: u1\r\nLOCATION: http://h/x\r\n")
	require.NoError(t, err)

	assert.Equal(t, "u1", p.USN())
	assert.Equal(t, "http://h/x", p.Location())
}

func TestMethod_Search(t *testing.T) {
	p, err := Parse("M-SEARCH * HTTP/1.1\r\nST: ssdp:all\r\n")
	require.NoError(t, err)
	assert.Equal(t, "M-SEARCH", p.Method())
}

func TestNewSearchRequest(t *testing.T) {
	tests := []struct {
		name string
		mx   int
		want string
	}{
		{
			name: "refresh query",
			mx:   RefreshMX,
			want: "M-SEARCH * HTTP/1.1\r\nHOST: 239.255.255.250:1900\r\nMAN: \"ssdp:discover\"\r\nMX: 5\r\nST: ssdp:all\r\n",
		},
		{
			name: "probe query",
			mx:   ProbeMX,
			want: "M-SEARCH * HTTP/1.1\r\nHOST: 239.255.255.250:1900\r\nMAN: \"ssdp:discover\"\r\nMX: 120\r\nST: ssdp:all\r\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewSearchRequest(tt.mx)
			assert.Equal(t, MethodSearch, p.Method())
			assert.Equal(t, tt.want, p.String())
		})
	}
}

func TestNewSearchResponse(t *testing.T) {
	p := NewSearchResponse("http://10.0.0.2:8080/desc.xml", "urn:X", "uuid:abc::urn:X")

	want := "HTTP/1.1 200 OK\r\n" +
		"CACHE-CONTROL: 180\r\n" +
		"EXT: \r\n" +
		"LOCATION: http://10.0.0.2:8080/desc.xml\r\n" +
		"SERVER: " + DefaultServer + "\r\n" +
		"ST: urn:X\r\n" +
		"USN: uuid:abc::urn:X\r\n"
	assert.Equal(t, want, p.String())
	assert.Equal(t, []byte(want), p.Bytes())
}

func TestSerialize_RoundTripKnownHeaders(t *testing.T) {
	packets := map[string]*Packet{
		"search request":  NewSearchRequest(RefreshMX),
		"search response": NewSearchResponse("http://h/x", "urn:Y", "u1"),
	}

	for name, p := range packets {
		t.Run(name, func(t *testing.T) {
			parsed, err := Parse(p.String())
			require.NoError(t, err)
			assert.Equal(t, p.StartLine(), parsed.StartLine())
			for _, h := range serializeOrder {
				want, present := p.Header(h)
				got, ok := parsed.Header(h)
				assert.Equal(t, present, ok, "presence of %s", h)
				assert.Equal(t, want, got, "value of %s", h)
			}
		})
	}
}

func TestSerialize_DropsUnknownHeaders(t *testing.T) {
	p, err := Parse(notifyPayload)
	require.NoError(t, err)

	out := p.String()
	reparsed, err := Parse(out)
	require.NoError(t, err)

	// Extension headers do not survive a serialize cycle
	assert.NotContains(t, out, "X-User-Agent")
	assert.NotContains(t, out, "CONTENT-LENGTH")
	assert.False(t, reparsed.Has("X-USER-AGENT"))

	// Known headers that are serialized do
	assert.Equal(t, p.Location(), reparsed.Location())
	assert.Equal(t, p.USN(), reparsed.USN())
	assert.Equal(t, p.NTS(), reparsed.NTS())
	assert.Equal(t, p.CacheControl(), reparsed.CacheControl())
}

func TestSerialize_CanonicalOrder(t *testing.T) {
	p := newPacket("NOTIFY * HTTP/1.1")
	p.Set("usn", "u1")
	p.Set("Location", "http://h/x")
	p.Set("cache-control", "max-age=10")

	assert.Equal(t, "NOTIFY * HTTP/1.1\r\nCACHE-CONTROL: max-age=10\r\nLOCATION: http://h/x\r\nUSN: u1\r\n", p.String())
}

func TestMaxAge(t *testing.T) {
	tests := []struct {
		name   string
		cc     string
		set    bool
		want   int
		wantOK bool
	}{
		{name: "absent", set: false, wantOK: false},
		{name: "max-age directive", cc: "max-age=90", set: true, want: 90, wantOK: true},
		{name: "mixed directives", cc: "no-cache, max-age = 1800", set: true, want: 1800, wantOK: true},
		{name: "bare number", cc: "180", set: true, want: 180, wantOK: true},
		{name: "garbage", cc: "private", set: true, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPacket("NOTIFY * HTTP/1.1")
			if tt.set {
				p.Set(HeaderCacheControl, tt.cc)
			}
			got, ok := p.MaxAge()
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
