package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/evermem/linekeeper/pkg/gateway/config"
	gatewayserver "github.com/evermem/linekeeper/pkg/gateway/server"
)

func smokeConfig() config.Config {
	return config.Config{
		AuthMode:    config.AuthModeDisabled,
		APIKeys:     map[string]struct{}{},
		StoreDriver: config.StoreMemory,

		MaxCallDuration:         5 * time.Minute,
		AutoAnswer:              true,
		VoiceSpeed:              1.0,
		LiveMaxJSONMessageBytes: 64 * 1024,
		LiveHandshakeTimeout:    5 * time.Second,
		LiveWSWriteTimeout:      5 * time.Second,

		ReadHeaderTimeout:   time.Second,
		ReadTimeout:         time.Second,
		HandlerTimeout:      time.Second,
		ShutdownGracePeriod: time.Second,
	}
}

func TestRunMain_ReturnsNonZeroWhenConfigLoadFails(t *testing.T) {
	t.Parallel()

	var stderr bytes.Buffer
	exitCode := runMain(context.Background(), &stderr, gatewayDeps{
		loadConfig: func() (config.Config, error) {
			return config.Config{}, errors.New("boom")
		},
		newGateway: func(cfg config.Config, deps gatewayserver.Deps) (*gatewayserver.Server, error) {
			t.Fatalf("newGateway should not be called when config load fails")
			return nil, nil
		},
		signalNotify: func(c chan<- os.Signal, sig ...os.Signal) {},
		signalStop:   func(c chan<- os.Signal) {},
	})

	if exitCode != 1 {
		t.Fatalf("exitCode=%d, want 1", exitCode)
	}
	if got := stderr.String(); got == "" {
		t.Fatalf("expected stderr output for startup error")
	}
}

func TestRunGateway_FailsWhenGatewayBuildFails(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	err := runGateway(context.Background(), logger, gatewayDeps{
		loadConfig: func() (config.Config, error) { return smokeConfig(), nil },
		newGateway: func(cfg config.Config, deps gatewayserver.Deps) (*gatewayserver.Server, error) {
			return nil, errors.New("bad store")
		},
		signalNotify: func(c chan<- os.Signal, sig ...os.Signal) {},
		signalStop:   func(c chan<- os.Signal) {},
	})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestBuildHTTPServer_UsesConfiguredAddress(t *testing.T) {
	t.Parallel()

	cfg := config.Config{
		Addr:              "127.0.0.1:9999",
		ReadHeaderTimeout: 2 * time.Second,
		ReadTimeout:       3 * time.Second,
	}

	srv := buildHTTPServer(cfg, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	if srv.Addr != cfg.Addr {
		t.Fatalf("Addr=%q, want %q", srv.Addr, cfg.Addr)
	}
	if srv.ReadHeaderTimeout != cfg.ReadHeaderTimeout {
		t.Fatalf("ReadHeaderTimeout=%v, want %v", srv.ReadHeaderTimeout, cfg.ReadHeaderTimeout)
	}
	if srv.ReadTimeout != cfg.ReadTimeout {
		t.Fatalf("ReadTimeout=%v, want %v", srv.ReadTimeout, cfg.ReadTimeout)
	}
}

func TestGatewayHandlerStack_Smoke(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gw, err := gatewayserver.New(smokeConfig(), gatewayserver.Deps{Logger: logger})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer gw.Close()

	ts := httptest.NewServer(gw.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d", resp.StatusCode)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatal("missing request id header")
	}
}

func TestRunGateway_ShutsDownOnSignal(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := smokeConfig()
	cfg.Addr = "127.0.0.1:0"

	sigCh := make(chan chan<- os.Signal, 1)
	deps := gatewayDeps{
		loadConfig: func() (config.Config, error) { return cfg, nil },
		newGateway: func(cfg config.Config, deps gatewayserver.Deps) (*gatewayserver.Server, error) {
			return gatewayserver.New(cfg, deps)
		},
		signalNotify: func(c chan<- os.Signal, sig ...os.Signal) {
			sigCh <- c
		},
		signalStop: func(c chan<- os.Signal) {},
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- runGateway(context.Background(), logger, deps)
	}()

	select {
	case c := <-sigCh:
		c <- syscall.SIGTERM
	case <-time.After(2 * time.Second):
		t.Fatal("signal channel was never registered")
	}

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("runGateway: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("gateway did not shut down")
	}
}
