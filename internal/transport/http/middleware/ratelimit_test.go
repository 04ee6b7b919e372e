package middleware

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func send(h http.Handler, remoteAddr, forwardedFor string) int {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = remoteAddr
	if forwardedFor != "" {
		req.Header.Set("X-Forwarded-For", forwardedFor)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr.Code
}

func TestLimit_BlocksAfterBurstPerPeer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := NewRateLimiter(ctx, rate.Limit(0.001), 2).Limit(http.HandlerFunc(okHandler))

	assert.Equal(t, http.StatusOK, send(h, "1.1.1.1:1000", ""))
	assert.Equal(t, http.StatusOK, send(h, "1.1.1.1:2000", ""))
	assert.Equal(t, http.StatusTooManyRequests, send(h, "1.1.1.1:3000", ""))
	assert.Equal(t, http.StatusOK, send(h, "2.2.2.2:1000", ""))
}

func TestLimit_IgnoresForwardedForFromUntrustedPeer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := NewRateLimiter(ctx, rate.Limit(0.001), 10).Limit(http.HandlerFunc(okHandler))

	allowed := 0
	for i := 0; i < 100; i++ {
		if send(h, "203.0.113.9:4000", fmt.Sprintf("10.0.%d.%d", i/250, i%250)) == http.StatusOK {
			allowed++
		}
	}
	assert.Equal(t, 10, allowed)

	// the same rotation through TrustedRealIP with no trusted proxies
	trusted := TrustedRealIP(nil)(NewRateLimiter(ctx, rate.Limit(0.001), 10).Limit(http.HandlerFunc(okHandler)))
	allowed = 0
	for i := 0; i < 100; i++ {
		if send(trusted, "203.0.113.9:4000", fmt.Sprintf("10.0.%d.%d", i/250, i%250)) == http.StatusOK {
			allowed++
		}
	}
	assert.Equal(t, 10, allowed)
}

func TestTrustedRealIP_HonorsHeaderOnlyFromProxy(t *testing.T) {
	proxies, err := ParseTrustedProxies([]string{"10.0.0.0/8", "192.0.2.7"})
	require.NoError(t, err)

	var seen string
	h := TrustedRealIP(proxies)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = clientIP(r.RemoteAddr)
	}))
	serve := func(remoteAddr, xff string) string {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = remoteAddr
		req.Header.Set("X-Forwarded-For", xff)
		h.ServeHTTP(httptest.NewRecorder(), req)
		return seen
	}

	assert.Equal(t, "198.51.100.4", serve("10.1.2.3:5555", "198.51.100.4"))
	assert.Equal(t, "198.51.100.4", serve("192.0.2.7:5555", "198.51.100.4"))
	assert.Equal(t, "203.0.113.9", serve("203.0.113.9:5555", "198.51.100.4"))
}

func TestParseTrustedProxies(t *testing.T) {
	got, err := ParseTrustedProxies([]string{" 10.0.0.0/8 ", "", "::1"})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	_, err = ParseTrustedProxies([]string{"not-an-ip"})
	assert.Error(t, err)
	_, err = ParseTrustedProxies([]string{"10.0.0.0/99"})
	assert.Error(t, err)
}

func TestClientIP(t *testing.T) {
	assert.Equal(t, "192.168.1.1", clientIP("192.168.1.1:54321"))
	assert.Equal(t, "::1", clientIP("[::1]:80"))
	assert.Equal(t, "198.51.100.4", clientIP("198.51.100.4"))
}

func TestRequestLogger_WritesStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&logrus.JSONFormatter{})

	h := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/health", nil))

	assert.Contains(t, buf.String(), `"status":418`)
	assert.Contains(t, buf.String(), `"path":"/v1/health"`)
}
