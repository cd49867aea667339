package aquos

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"
)

// MockTransport implements Transport for testing.
// Replies are queued per frame (trimmed of padding and CR LF); the last
// queued reply repeats. Frames without a reply time out.
type MockTransport struct {
	mu       sync.Mutex
	replies  map[string][]string
	frames   []string
	err      error
	closed   bool
	exchange int
}

func NewMockTransport() *MockTransport {
	return &MockTransport{replies: make(map[string][]string)}
}

// Reply queues replies for a frame such as "POWR?".
func (m *MockTransport) Reply(frame string, replies ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies[frame] = append(m.replies[frame], replies...)
}

// Fail makes every exchange return err.
func (m *MockTransport) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *MockTransport) Exchange(_ context.Context, frame []byte) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := strings.TrimRight(string(frame), " \r\n")
	m.frames = append(m.frames, key)
	m.exchange++

	if m.err != nil {
		return nil, m.err
	}

	queue := m.replies[key]
	if len(queue) == 0 {
		return nil, &TimeoutError{}
	}
	reply := queue[0]
	if len(queue) > 1 {
		m.replies[key] = queue[1:]
	}
	return []byte(reply + "\r"), nil
}

func (m *MockTransport) Address() string { return "mock://tv" }

func (m *MockTransport) Stats() TransportStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return TransportStats{
		FramesTx:     uint64(m.exchange),
		Connected:    !m.closed,
		LastActivity: time.Now(),
	}
}

func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Frames returns the trimmed frames sent so far.
func (m *MockTransport) Frames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.frames...)
}

func (m *MockTransport) ClearFrames() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frames = nil
}

// replyUpdate queues one successful update cycle.
func (m *MockTransport) replyUpdate(power, mute, input, volume string) {
	m.Reply("POWR?", power)
	m.Reply("RSPW0", "OK")
	m.Reply("RSPW2", "OK")
	m.Reply("MUTE?", mute)
	m.Reply("IAVD?", input)
	m.Reply("VOLM?", volume)
}

// MockMQTTClient implements MQTTClient for testing.
type MockMQTTClient struct {
	mu            sync.Mutex
	published     []mockPublish
	subscriptions []string
	connected     bool
	handlers      map[string]func(topic string, payload []byte)
}

type mockPublish struct {
	Topic    string
	Payload  []byte
	QoS      byte
	Retained bool
}

func NewMockMQTTClient() *MockMQTTClient {
	return &MockMQTTClient{
		connected: true,
		handlers:  make(map[string]func(topic string, payload []byte)),
	}
}

func (m *MockMQTTClient) Publish(topic string, payload []byte, qos byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, mockPublish{
		Topic:    topic,
		Payload:  payload,
		QoS:      qos,
		Retained: retained,
	})
	return nil
}

func (m *MockMQTTClient) Subscribe(topic string, _ byte, handler func(topic string, payload []byte)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions = append(m.subscriptions, topic)
	m.handlers[topic] = handler
	return nil
}

func (m *MockMQTTClient) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *MockMQTTClient) SetConnected(connected bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = connected
}

func (m *MockMQTTClient) GetPublished() []mockPublish {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mockPublish(nil), m.published...)
}

// PublishedTo returns the payloads published to topic.
func (m *MockMQTTClient) PublishedTo(topic string) []mockPublish {
	var out []mockPublish
	for _, p := range m.GetPublished() {
		if p.Topic == topic {
			out = append(out, p)
		}
	}
	return out
}

func (m *MockMQTTClient) ClearPublished() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = nil
}

// SimulateMessage delivers a message to the handler subscribed with pattern.
func (m *MockMQTTClient) SimulateMessage(pattern, topic string, payload []byte) {
	m.mu.Lock()
	handler, ok := m.handlers[pattern]
	m.mu.Unlock()
	if ok {
		handler(topic, payload)
	}
}

// MockTelemetry implements TelemetryWriter for testing.
type MockTelemetry struct {
	mu      sync.Mutex
	points  []map[string]any
	metrics []string
}

func (m *MockTelemetry) WritePointWithTime(_ string, _ map[string]string, fields map[string]any, _ time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.points = append(m.points, fields)
}

func (m *MockTelemetry) WriteDeviceMetric(_ string, measurement string, _ float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metrics = append(m.metrics, measurement)
}

func (m *MockTelemetry) Points() []map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]map[string]any(nil), m.points...)
}

// newTestClient returns a client over the "us" command map.
func newTestClient(t *testing.T, powerOnEnabled bool) (*Client, *MockTransport) {
	t.Helper()

	table, err := LoadCommandTable("us")
	if err != nil {
		t.Fatalf("LoadCommandTable() error = %v", err)
	}
	tr := NewMockTransport()
	client, err := NewClient(ClientOptions{
		Commands:       table,
		Transport:      tr,
		PowerOnEnabled: powerOnEnabled,
	})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return client, tr
}

func newTestPlayer(t *testing.T, powerOnEnabled bool) (*Player, *MockTransport) {
	t.Helper()

	client, tr := newTestClient(t, powerOnEnabled)
	player, err := NewPlayer(PlayerOptions{Client: client, Retry: RetryPolicy{Attempts: 3}})
	if err != nil {
		t.Fatalf("NewPlayer() error = %v", err)
	}
	return player, tr
}
