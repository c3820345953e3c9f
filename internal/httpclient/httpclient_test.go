package httpclient

import (
	"net/http"
	"net/http/httptest"
	"net/netip"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	c := New(Options{})
	assert.Equal(t, 60*time.Second, c.Timeout)

	c = New(Options{Timeout: 5 * time.Second, PreferIPv4: true})
	assert.Equal(t, 5*time.Second, c.Timeout)
	tr, ok := c.Transport.(*http.Transport)
	require.True(t, ok)
	assert.NotNil(t, tr.DialContext)
	assert.Equal(t, 20, tr.MaxIdleConnsPerHost)
}

func TestPublicOnlyRefusesLoopback(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	_, err := New(Options{PublicOnly: true, Timeout: 2 * time.Second}).Get(srv.URL + "/latest/meta-data")
	assert.ErrorIs(t, err, ErrNonPublicAddress)
	assert.Equal(t, int32(0), hits.Load())

	res, err := New(Options{Timeout: 2 * time.Second}).Get(srv.URL)
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, int32(1), hits.Load())
}

func TestIsPublicAddr(t *testing.T) {
	tests := []struct {
		addr string
		want bool
	}{
		{"127.0.0.1", false},
		{"::1", false},
		{"10.1.2.3", false},
		{"172.16.0.9", false},
		{"192.168.1.1", false},
		{"169.254.169.254", false},
		{"100.64.0.1", false},
		{"0.0.0.0", false},
		{"fe80::1", false},
		{"fd00::1", false},
		{"::ffff:127.0.0.1", false},
		{"224.0.0.1", false},
		{"8.8.8.8", true},
		{"104.18.2.1", true},
		{"2606:4700::1111", true},
	}
	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			assert.Equal(t, tt.want, IsPublicAddr(netip.MustParseAddr(tt.addr)))
		})
	}
}
