package main

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"io"
	"math/big"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/semevents/config"
	"github.com/c360/semevents/event"
	"github.com/c360/semevents/gateway"
	"github.com/c360/semevents/pkg/tlsutil"
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

// downstream runs a publish endpoint collecting relayed events
func downstream(t *testing.T) (*sink, string) {
	t.Helper()
	out := &sink{}
	h, err := gateway.NewHandler(gateway.DefaultConfig(), nil, []publisher.Publisher{out},
		gateway.WithLogger(quietLogger()))
	require.NoError(t, err)
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return out, srv.URL + "/events/publish"
}

func TestRun_Version(t *testing.T) {
	var stdout bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"-version"}, &stdout, io.Discard))
	assert.Equal(t, "semevents version "+Version+"\n", stdout.String())
}

func TestRun_Validate(t *testing.T) {
	good := writeFile(t, "good.yaml", "source:\n  type: synthetic\nreplay:\n  source_id: s1\n")
	require.NoError(t, run(context.Background(),
		[]string{"-config", good, "-log-level", "error", "validate"}, io.Discard, io.Discard))

	bad := writeFile(t, "bad.yaml", "replay:\n  time_scale: -1\nsource:\n  type: synthetic\n")
	err := run(context.Background(), []string{"-config", bad, "validate"}, io.Discard, io.Discard)
	assert.Error(t, err)

	// replay needs a source; serving does not
	noSource := writeFile(t, "serve.yaml", "gateway:\n  listen: 127.0.0.1:0\n")
	require.NoError(t, run(context.Background(),
		[]string{"-config", noSource, "-log-level", "error", "validate"}, io.Discard, io.Discard))
	err = run(context.Background(), []string{"-config", noSource, "replay"}, io.Discard, io.Discard)
	assert.Error(t, err)
}

func TestRun_Replay(t *testing.T) {
	out, url := downstream(t)
	path := writeFile(t, "replay.json", fmt.Sprintf(`{
		"source": {"type": "synthetic", "synthetic": {"kind": "json", "count": 3, "interval": "100ms", "seed": 7}},
		"replay": {"source_id": "synth-1", "time_scale": 20, "period": "200ms", "startup_delay": "10ms"},
		"publishers": {"http": [{"url": %q, "timeout": "2s"}]},
		"log": {"level": "error"}
	}`, url))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, run(ctx, []string{"-config", path, "replay"}, io.Discard, io.Discard))

	got := out.received()
	require.Len(t, got, 3)
	for _, rec := range got {
		assert.Equal(t, "synth-1", rec.SourceID())
		assert.Equal(t, event.JSONSyntax, rec.Syntax())
	}
}

func TestRun_ReplayInterrupted(t *testing.T) {
	_, url := downstream(t)
	path := writeFile(t, "endless.yaml", fmt.Sprintf(`
source:
  type: synthetic
  synthetic:
    count: 0
    interval: 1s
replay:
  source_id: endless
  startup_delay: 10ms
publishers:
  http:
    - url: %s
`, url))

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	// a deadline is not an interrupt
	err := run(ctx, []string{"-config", path, "-log-level", "error", "replay"}, io.Discard, io.Discard)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	ctx, cancel = context.WithCancel(context.Background())
	time.AfterFunc(300*time.Millisecond, cancel)
	err = run(ctx, []string{"-config", path, "-log-level", "error", "replay"}, io.Discard, io.Discard)
	assert.NoError(t, err)
}

func TestServeGateway_Relays(t *testing.T) {
	out, url := downstream(t)

	cfg := config.Defaults()
	cfg.Gateway.RelayID = "relay-1"
	cfg.Publishers.HTTP = []config.HTTPPublisherConfig{{URL: url}}
	cfg.Authz.IPWhitelist = writeFile(t, "ips.txt", "127.0.0.1\n")

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serveGateway(ctx, cfg, quietLogger(), ln, time.Second) }()

	rec, err := event.New("sensor", event.JSONSyntax, event.RawBody(`{"v":1}`), event.WithEventID("e1"))
	require.NoError(t, err)
	data, err := rec.Serialize()
	require.NoError(t, err)

	endpoint := "http://" + ln.Addr().String() + "/events/publish"
	var resp *http.Response
	require.Eventually(t, func() bool {
		resp, err = http.Post(endpoint, "application/ztreamy-event", bytes.NewReader(data))
		return err == nil
	}, 2*time.Second, 20*time.Millisecond)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	got := out.received()
	require.Len(t, got, 1)
	assert.Equal(t, "e1", got[0].EventID())
	assert.Equal(t, []string{"relay-1"}, got[0].AggregatorIDs())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("gateway did not stop")
	}
}

func TestServeGateway_BadAuthzFile(t *testing.T) {
	cfg := config.Defaults()
	cfg.Authz.BasicFile = "/nonexistent/basic.txt"

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	err = serveGateway(context.Background(), cfg, quietLogger(), ln, time.Second)
	assert.Error(t, err)
}

// selfSigned writes a certificate for 127.0.0.1 that is also its own CA
func selfSigned(t *testing.T) (certFile, keyFile string) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(7),
		Subject:               pkix.Name{CommonName: "relay"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		IPAddresses:           []net.IP{net.ParseIP("127.0.0.1")},
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	certFile = writeFile(t, "relay.pem", string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})))
	keyFile = writeFile(t, "relay-key.pem", string(pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})))
	return certFile, keyFile
}

func TestServeGateway_TLS(t *testing.T) {
	out, url := downstream(t)
	certFile, keyFile := selfSigned(t)

	cfg := config.Defaults()
	cfg.Publishers.HTTP = []config.HTTPPublisherConfig{{URL: url}}
	cfg.Gateway.TLS = tlsutil.ServerConfig{Enabled: true, CertFile: certFile, KeyFile: keyFile}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- serveGateway(ctx, cfg, quietLogger(), ln, time.Second) }()

	clientTLS, err := tlsutil.LoadClientConfig(tlsutil.ClientConfig{CAFiles: []string{certFile}})
	require.NoError(t, err)
	client := &http.Client{Timeout: 2 * time.Second, Transport: &http.Transport{TLSClientConfig: clientTLS}}

	rec, err := event.New("sensor", event.JSONSyntax, event.RawBody(`{"v":2}`), event.WithEventID("tls-1"))
	require.NoError(t, err)
	data, err := rec.Serialize()
	require.NoError(t, err)

	endpoint := "https://" + ln.Addr().String() + "/events/publish"
	var resp *http.Response
	require.Eventually(t, func() bool {
		resp, err = client.Post(endpoint, "application/ztreamy-event", bytes.NewReader(data))
		return err == nil
	}, 2*time.Second, 20*time.Millisecond)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	got := out.received()
	require.Len(t, got, 1)
	assert.Equal(t, "tls-1", got[0].EventID())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("gateway did not stop")
	}
}
