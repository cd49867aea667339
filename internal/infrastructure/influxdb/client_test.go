package influxdb_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-aquos/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-aquos/internal/infrastructure/influxdb"
)

// fakeInflux serves the /ping and /api/v2/write endpoints of InfluxDB 2.
type fakeInflux struct {
	*httptest.Server

	mu        sync.Mutex
	lines     []string
	queries   []string
	writeCode int
	pingCode  int
}

func newFakeInflux(t *testing.T) *fakeInflux {
	t.Helper()
	f := &fakeInflux{writeCode: http.StatusNoContent, pingCode: http.StatusNoContent}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeInflux) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.URL.Path {
	case "/ping":
		w.WriteHeader(f.pingCode)
	case "/api/v2/write":
		body, _ := io.ReadAll(r.Body)
		f.queries = append(f.queries, r.URL.RawQuery)
		if f.writeCode != http.StatusNoContent {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(f.writeCode)
			_, _ = w.Write([]byte(`{"code":"invalid","message":"rejected"}`))
			return
		}
		for _, line := range strings.Split(strings.TrimSpace(string(body)), "\n") {
			if line != "" {
				f.lines = append(f.lines, line)
			}
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeInflux) written() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.lines...)
}

func testConfig(url string) config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           url,
		Token:         "aquos-test-token",
		Org:           "graylogic",
		Bucket:        "aquos",
		BatchSize:     100,
		FlushInterval: 60, // tests flush explicitly
	}
}

func connect(t *testing.T, f *fakeInflux) *influxdb.Client {
	t.Helper()
	client, err := influxdb.Connect(testConfig(f.URL), map[string]string{"bridge": "aquos-bridge"})
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestConnect(t *testing.T) {
	client := connect(t, newFakeInflux(t))

	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect()")
	}
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	cfg.Enabled = false

	if _, err := influxdb.Connect(cfg, nil); !errors.Is(err, influxdb.ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	_, err := influxdb.Connect(testConfig("http://127.0.0.1:1"), nil)
	if !errors.Is(err, influxdb.ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestConnect_Unhealthy(t *testing.T) {
	f := newFakeInflux(t)
	f.pingCode = http.StatusServiceUnavailable

	if _, err := influxdb.Connect(testConfig(f.URL), nil); !errors.Is(err, influxdb.ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestConnect_DefaultBatchSettings(t *testing.T) {
	f := newFakeInflux(t)
	cfg := testConfig(f.URL)
	cfg.BatchSize = 0
	cfg.FlushInterval = -1

	client, err := influxdb.Connect(cfg, nil)
	if err != nil {
		t.Fatalf("Connect() with defaulted batch settings error = %v", err)
	}
	client.Close()
}

func TestWriteDeviceMetric(t *testing.T) {
	f := newFakeInflux(t)
	client := connect(t, f)

	client.WriteDeviceMetric("living-room-tv", "poll_duration_ms", 84)
	client.Flush()

	lines := f.written()
	if len(lines) != 1 {
		t.Fatalf("written %d lines, want 1: %v", len(lines), lines)
	}
	for _, want := range []string{
		"device_metrics,",
		"bridge=aquos-bridge",
		"device_id=living-room-tv",
		"measurement=poll_duration_ms",
		"value=84",
	} {
		if !strings.Contains(lines[0], want) {
			t.Errorf("line %q lacks %q", lines[0], want)
		}
	}

	f.mu.Lock()
	query := f.queries[0]
	f.mu.Unlock()
	if !strings.Contains(query, "bucket=aquos") || !strings.Contains(query, "org=graylogic") {
		t.Errorf("write query = %q", query)
	}
}

func TestWritePointWithTime(t *testing.T) {
	f := newFakeInflux(t)
	client := connect(t, f)

	ts := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	client.WritePointWithTime("tv_state",
		map[string]string{"device_id": "living-room-tv"},
		map[string]any{"power": "on", "volume": 0.5, "muted": false},
		ts,
	)
	client.WritePointWithTime("tv_state", nil, map[string]any{}, ts) // no fields: dropped
	client.Flush()

	lines := f.written()
	if len(lines) != 1 {
		t.Fatalf("written %d lines, want 1: %v", len(lines), lines)
	}
	for _, want := range []string{`power="on"`, "volume=0.5", "muted=false"} {
		if !strings.Contains(lines[0], want) {
			t.Errorf("line %q lacks %q", lines[0], want)
		}
	}
	if !strings.HasSuffix(lines[0], " 1772395200000") {
		t.Errorf("line %q lacks millisecond timestamp", lines[0])
	}
}

func TestWritePoint(t *testing.T) {
	f := newFakeInflux(t)
	client := connect(t, f)

	client.WritePoint("bridge_stats", nil, map[string]any{"reconnects": 2})
	client.Flush()

	lines := f.written()
	if len(lines) != 1 || !strings.Contains(lines[0], "reconnects=2i") {
		t.Errorf("lines = %v", lines)
	}
}

func TestWriteErrorsReported(t *testing.T) {
	f := newFakeInflux(t)
	f.writeCode = http.StatusBadRequest
	client := connect(t, f)

	errCh := make(chan error, 1)
	client.SetOnError(func(err error) {
		select {
		case errCh <- err:
		default:
		}
	})

	client.WriteDeviceMetric("living-room-tv", "poll_duration_ms", 1)
	client.Flush()

	select {
	case err := <-errCh:
		if !errors.Is(err, influxdb.ErrWriteFailed) {
			t.Errorf("callback error = %v, want ErrWriteFailed", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no write error reported")
	}
}

func TestClose(t *testing.T) {
	f := newFakeInflux(t)
	client := connect(t, f)

	if err := client.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}
	if err := client.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	// Writes after Close are silently dropped.
	client.WriteDeviceMetric("living-room-tv", "poll_duration_ms", 1)
	client.Flush()
	if len(f.written()) != 0 {
		t.Error("write after Close reached the server")
	}
	if err := client.HealthCheck(context.Background()); !errors.Is(err, influxdb.ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

func TestClose_Nil(t *testing.T) {
	client := &influxdb.Client{}
	if err := client.Close(); err != nil {
		t.Errorf("Close() on zero client error = %v", err)
	}
	client.Flush()
}
