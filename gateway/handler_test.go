package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/semevents/authz"
	"github.com/c360/semevents/event"
	"github.com/c360/semevents/metric"
	"github.com/c360/semevents/publisher"
)

type sink struct {
	mu   sync.Mutex
	recs []*event.Record
}

func (s *sink) Publish(_ context.Context, rec *event.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = append(s.recs, rec)
	return nil
}

func (s *sink) received() []*event.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*event.Record(nil), s.recs...)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func stream(t *testing.T, recs ...*event.Record) []byte {
	t.Helper()
	var buf bytes.Buffer
	for _, rec := range recs {
		data, err := rec.Serialize()
		require.NoError(t, err)
		buf.Write(data)
	}
	return buf.Bytes()
}

func jsonEvent(t *testing.T, id string) *event.Record {
	t.Helper()
	rec, err := event.New("sensor", event.JSONSyntax, event.RawBody(`{"t":21.5}`),
		event.WithEventID(id), event.WithAggregatorIDs("upstream"),
		event.WithTime(time.Unix(1335169862, 0)))
	require.NoError(t, err)
	return rec
}

func command(t *testing.T, name string) *event.Record {
	t.Helper()
	rec, err := event.NewCommand("sensor", name)
	require.NoError(t, err)
	return rec
}

func newTestHandler(t *testing.T, cfg Config, mgr authz.Manager, pubs []publisher.Publisher, opts ...Option) *Handler {
	t.Helper()
	h, err := NewHandler(cfg, mgr, pubs, append([]Option{WithLogger(quietLogger())}, opts...)...)
	require.NoError(t, err)
	return h
}

func post(h http.Handler, body []byte, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/events/publish", bytes.NewReader(body))
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeResult(t *testing.T, rr *httptest.ResponseRecorder) Result {
	t.Helper()
	var res Result
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	return res
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"empty gets defaults", Config{}, false},
		{"defaults", DefaultConfig(), false},
		{"relative path", Config{Path: "events"}, true},
		{"negative size", Config{MaxRequestSize: -1}, true},
		{"too large", Config{MaxRequestSize: 101 * 1024 * 1024}, true},
		{"negative chunk", Config{ChunkSize: -1}, true},
		{"negative rate", Config{RateLimit: -1}, true},
		{"negative timeout", Config{RelayTimeout: -time.Second}, true},
		{"cors without origins", Config{EnableCORS: true}, true},
		{"cors with origins", Config{EnableCORS: true, CORSOrigins: []string{"*"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}

	cfg := Config{RateLimit: 5}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "/events/publish", cfg.Path)
	assert.Equal(t, int64(1024*1024), cfg.MaxRequestSize)
	assert.Equal(t, 4096, cfg.ChunkSize)
	assert.Equal(t, 10, cfg.RateBurst)
	assert.Equal(t, 30*time.Second, cfg.RelayTimeout)
}

func TestHandler_RelaysEvents(t *testing.T) {
	out := &sink{}
	cfg := DefaultConfig()
	cfg.RelayID = "relay-1"
	cfg.ChunkSize = 7
	h := newTestHandler(t, cfg, nil, []publisher.Publisher{out})

	body := stream(t,
		command(t, event.CommandEventSourceStarted),
		jsonEvent(t, "e1"),
		jsonEvent(t, "e2"),
		command(t, event.CommandEventSourceFinished))

	rr := post(h, body)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))

	res := decodeResult(t, rr)
	assert.Equal(t, Result{Status: "ok", Accepted: 4, Relayed: 2, Commands: 2}, res)

	got := out.received()
	require.Len(t, got, 2)
	assert.Equal(t, "e1", got[0].EventID())
	assert.Equal(t, "e2", got[1].EventID())
	for _, rec := range got {
		assert.False(t, rec.IsCommand())
		assert.Equal(t, []string{"upstream", "relay-1"}, rec.AggregatorIDs())
		text, err := rec.BodyText()
		require.NoError(t, err)
		assert.Equal(t, `{"t":21.5}`, text)
	}
}

func TestHandler_FanOut(t *testing.T) {
	a, b := &sink{}, &sink{}
	failing := publisher.Func(func(context.Context, *event.Record) error {
		return fmt.Errorf("downstream unavailable")
	})
	h := newTestHandler(t, DefaultConfig(), nil, []publisher.Publisher{a, failing, b})

	rr := post(h, stream(t, jsonEvent(t, "e1")))
	require.Equal(t, http.StatusOK, rr.Code)

	res := decodeResult(t, rr)
	assert.Equal(t, 1, res.Accepted)
	assert.Equal(t, 0, res.Relayed)
	assert.Equal(t, 1, res.Failed)
	assert.Len(t, a.received(), 1)
	assert.Len(t, b.received(), 1)
}

func TestHandler_RequestIDEchoed(t *testing.T) {
	h := newTestHandler(t, DefaultConfig(), nil, nil)
	rr := post(h, nil, "X-Request-ID", "abc-123")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "abc-123", rr.Header().Get("X-Request-ID"))
	assert.Equal(t, 0, decodeResult(t, rr).Accepted)
}

func TestHandler_MethodNotAllowed(t *testing.T) {
	h := newTestHandler(t, DefaultConfig(), nil, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/events/publish", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	assert.Equal(t, http.MethodPost, rr.Header().Get("Allow"))
	assert.Contains(t, rr.Body.String(), `"status":405`)
}

func TestHandler_CORS(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnableCORS = true
	cfg.CORSOrigins = []string{"https://dash.example"}
	h := newTestHandler(t, cfg, nil, nil)

	req := httptest.NewRequest(http.MethodOptions, "/events/publish", nil)
	req.Header.Set("Origin", "https://dash.example")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "https://dash.example", rr.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/events/publish", nil)
	req.Header.Set("Origin", "https://evil.example")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestHandler_RateLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RateLimit = 0.001
	cfg.RateBurst = 2
	h := newTestHandler(t, cfg, nil, nil)

	assert.Equal(t, http.StatusOK, post(h, nil).Code)
	assert.Equal(t, http.StatusOK, post(h, nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, post(h, nil).Code)
}

func TestHandler_DenialStatus(t *testing.T) {
	tests := []struct {
		reason    authz.Reason
		status    int
		challenge bool
	}{
		{authz.ReasonOK, http.StatusForbidden, false},
		{authz.ReasonMissingCredentials, http.StatusUnauthorized, true},
		{authz.ReasonBadChallenge, http.StatusUnauthorized, true},
		{authz.ReasonBadCredentials, http.StatusForbidden, false},
	}
	for _, tt := range tests {
		t.Run(tt.reason.String(), func(t *testing.T) {
			out := &sink{}
			mgr := authz.ManagerFunc(func(authz.Request) authz.Decision { return authz.Deny(tt.reason) })
			h := newTestHandler(t, DefaultConfig(), mgr, []publisher.Publisher{out},
				WithChallenge(`Basic realm="events"`))

			rr := post(h, stream(t, jsonEvent(t, "e1")))
			assert.Equal(t, tt.status, rr.Code)
			if tt.challenge {
				assert.Equal(t, `Basic realm="events"`, rr.Header().Get("WWW-Authenticate"))
			} else {
				assert.Empty(t, rr.Header().Get("WWW-Authenticate"))
			}
			assert.Empty(t, out.received())
		})
	}
}

func TestHandler_IPWhitelist(t *testing.T) {
	// httptest requests come from 192.0.2.1
	allowed, err := authz.NewIPManager([]string{"192.0.2.0/24"})
	require.NoError(t, err)
	denied, err := authz.NewIPManager([]string{"10.0.0.1"})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, post(newTestHandler(t, DefaultConfig(), allowed, nil), nil).Code)
	assert.Equal(t, http.StatusForbidden, post(newTestHandler(t, DefaultConfig(), denied, nil), nil).Code)
}

func TestHandler_BasicAuth(t *testing.T) {
	mgr, err := authz.NewBasicManager([]string{"alice:secret"})
	require.NoError(t, err)
	h := newTestHandler(t, DefaultConfig(), mgr, nil, WithChallenge(mgr.Challenge("events")))

	rr := post(h, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, `Basic realm="events"`, rr.Header().Get("WWW-Authenticate"))

	req := httptest.NewRequest(http.MethodPost, "/events/publish", nil)
	req.SetBasicAuth("alice", "wrong")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	req = httptest.NewRequest(http.MethodPost, "/events/publish", nil)
	req.SetBasicAuth("alice", "secret")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestHandler_DigestAuth(t *testing.T) {
	mgr, err := authz.NewDigestManager([]string{"alice:secret"})
	require.NoError(t, err)
	h := newTestHandler(t, DefaultConfig(), mgr, nil, WithChallenge(mgr.Challenge()))

	rr := post(h, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.True(t, strings.HasPrefix(rr.Header().Get("WWW-Authenticate"), "Digest "))

	header := fmt.Sprintf(`Digest username="alice", realm="%s", nonce="%s", uri="/events/publish", response="%s", opaque="%s"`,
		authz.DigestRealm, authz.DigestNonce, mgr.Response("alice", "secret", "POST", "/events/publish"), authz.DigestOpaque)
	assert.Equal(t, http.StatusOK, post(h, nil, "Authorization", header).Code)
}

func TestHandler_MalformedStream(t *testing.T) {
	out := &sink{}
	registry := metric.NewMetricsRegistry()
	h := newTestHandler(t, DefaultConfig(), nil, []publisher.Publisher{out}, WithMetrics(registry))

	rr := post(h, []byte("not a header line\n\n"))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "malformed event stream")
	assert.Empty(t, out.received())

	m := registry.CoreMetrics()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FormatErrors))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GatewayRequests.WithLabelValues("400")))
}

func TestHandler_TruncatedStream(t *testing.T) {
	out := &sink{}
	h := newTestHandler(t, DefaultConfig(), nil, []publisher.Publisher{out})

	body := stream(t, jsonEvent(t, "e1"), jsonEvent(t, "e2"))
	rr := post(h, body[:len(body)-3])
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	got := out.received()
	require.Len(t, got, 1)
	assert.Equal(t, "e1", got[0].EventID())
}

func TestHandler_RequestTooLarge(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxRequestSize = 64
	h := newTestHandler(t, cfg, nil, nil)

	rr := post(h, stream(t, jsonEvent(t, "e1"), jsonEvent(t, "e2")))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
}

func TestHandler_Metrics(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	mgr := authz.ManagerFunc(func(r authz.Request) authz.Decision {
		if r.Header("Authorization") == "" {
			return authz.Deny(authz.ReasonMissingCredentials)
		}
		return authz.Allow()
	})
	h := newTestHandler(t, DefaultConfig(), mgr, nil, WithMetrics(registry))

	post(h, nil)
	post(h, stream(t, jsonEvent(t, "e1"), command(t, event.CommandStreamFinished)), "Authorization", "token")

	m := registry.CoreMetrics()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuthDenied.WithLabelValues("1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GatewayRequests.WithLabelValues("401")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GatewayRequests.WithLabelValues("200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GatewayEvents.WithLabelValues("generic")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GatewayEvents.WithLabelValues("command")))
}

func TestHandler_RegisterHTTPHandlers(t *testing.T) {
	out := &sink{}
	h := newTestHandler(t, DefaultConfig(), nil, []publisher.Publisher{out})
	mux := http.NewServeMux()
	h.RegisterHTTPHandlers("/api/", mux)

	srv := httptest.NewServer(mux)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/events/publish", "application/ztreamy-event",
		bytes.NewReader(stream(t, jsonEvent(t, "e1"))))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, out.received(), 1)
}
