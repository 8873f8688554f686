package supervisor

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"
)

func TestEnsureReadyDetectsAlreadyRunningServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	host, port := splitHostPort(t, srv.URL)
	s := New(Options{Host: host, Port: port, BinaryPath: "/bin/false"})

	if err := s.EnsureReady(context.Background()); err != nil {
		t.Fatalf("EnsureReady: %v", err)
	}
	if s.State() != StateRunningOther {
		t.Errorf("state = %v, want StateRunningOther", s.State())
	}
}

func TestEnsureReadySpawnsWhenNothingListening(t *testing.T) {
	var ready bool
	probe := func(ctx context.Context, addr string) bool { return ready }

	dir := t.TempDir()
	pidPath := filepath.Join(dir, "server.pid")

	s := New(Options{
		BinaryPath:        "/bin/sh",
		Args:              []string{"-c", "sleep 5"},
		PIDFilePath:       pidPath,
		ReadyProbe:        probe,
		ReadyPollInterval: 10 * time.Millisecond,
		ReadyTimeout:      200 * time.Millisecond,
	})

	go func() {
		time.Sleep(30 * time.Millisecond)
		ready = true
	}()

	if err := s.EnsureReady(context.Background()); err != nil {
		t.Fatalf("EnsureReady: %v", err)
	}
	if s.State() != StateReady {
		t.Errorf("state = %v, want StateReady", s.State())
	}
	if _, err := os.Stat(pidPath); err != nil {
		t.Errorf("expected pid file at %s: %v", pidPath, err)
	}

	if err := s.Stop(50 * time.Millisecond); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if _, err := os.Stat(pidPath); !os.IsNotExist(err) {
		t.Errorf("pid file should be removed after Stop")
	}
}

func TestDetermineTransportDefaultsToUDS(t *testing.T) {
	if got := DetermineTransport(TransportArgs{}); got != TransportUnixSocket {
		t.Errorf("got %v, want TransportUnixSocket", got)
	}
}

func TestDetermineTransportHostForcesHTTP(t *testing.T) {
	if got := DetermineTransport(TransportArgs{Host: "127.0.0.1"}); got != TransportHTTP {
		t.Errorf("got %v, want TransportHTTP", got)
	}
}

func TestDetermineTransportWebUIForcesHTTP(t *testing.T) {
	if got := DetermineTransport(TransportArgs{WebUI: true}); got != TransportHTTP {
		t.Errorf("got %v, want TransportHTTP", got)
	}
}

func splitHostPort(t *testing.T, rawURL string) (string, int) {
	t.Helper()
	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("parse %s: %v", rawURL, err)
	}
	host, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		t.Fatalf("split host:port from %s: %v", u.Host, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("parse port %s: %v", portStr, err)
	}
	return host, port
}
