package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	coremon "github.com/kilianp07/evbill/core/monitoring"
	"github.com/kilianp07/evbill/core/prediction"
)

type published struct {
	topic   string
	qos     byte
	payload []byte
}

// mockClient implements pahoClient for tests
type mockClient struct {
	mu          sync.Mutex
	opts        *paho.ClientOptions
	handler     paho.MessageHandler
	subscribed  []string
	published   []published
	publishErrs []error
	connected   bool
	// onConnectMsg is routed to the subscription before Connect returns.
	onConnectMsg *mockMessage
}

func (m *mockClient) IsConnected() bool { return m.connected }
func (m *mockClient) Connect() paho.Token {
	m.connected = true
	if m.opts != nil && m.opts.OnConnect != nil {
		m.opts.OnConnect(m)
	}
	if m.onConnectMsg != nil {
		m.mu.Lock()
		h := m.handler
		m.mu.Unlock()
		h(m, *m.onConnectMsg)
	}
	return &dummyToken{}
}
func (m *mockClient) Disconnect(uint) { m.connected = false }
func (m *mockClient) Publish(topic string, qos byte, _ bool, payload interface{}) paho.Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, published{topic, qos, payload.([]byte)})
	if len(m.publishErrs) > 0 {
		err := m.publishErrs[0]
		m.publishErrs = m.publishErrs[1:]
		return &dummyToken{err: err}
	}
	return &dummyToken{}
}
func (m *mockClient) Subscribe(topic string, _ byte, cb paho.MessageHandler) paho.Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribed = append(m.subscribed, topic)
	m.handler = cb
	return &dummyToken{}
}
func (m *mockClient) SubscribeMultiple(map[string]byte, paho.MessageHandler) paho.Token {
	return &dummyToken{}
}
func (m *mockClient) Unsubscribe(...string) paho.Token        { return &dummyToken{} }
func (m *mockClient) AddRoute(string, paho.MessageHandler)    {}
func (m *mockClient) OptionsReader() paho.ClientOptionsReader { return paho.ClientOptionsReader{} }
func (m *mockClient) IsConnectionOpen() bool                  { return true }

func (m *mockClient) waitPublished(t *testing.T, n int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for {
		m.mu.Lock()
		got := len(m.published)
		m.mu.Unlock()
		if got >= n {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected %d publishes, got %d", n, got)
		}
		time.Sleep(time.Millisecond)
	}
}

func (m *mockClient) last(t *testing.T) (string, QuoteResponse) {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.published) == 0 {
		t.Fatalf("nothing published")
	}
	p := m.published[len(m.published)-1]
	var resp QuoteResponse
	if err := json.Unmarshal(p.payload, &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return p.topic, resp
}

type dummyToken struct{ err error }

func (d dummyToken) Wait() bool                     { return true }
func (d dummyToken) WaitTimeout(time.Duration) bool { return true }
func (d dummyToken) Done() <-chan struct{}          { ch := make(chan struct{}); close(ch); return ch }
func (d dummyToken) Error() error                   { return d.err }

type mockMessage struct {
	topic string
	p     []byte
}

func (m mockMessage) Duplicate() bool   { return false }
func (m mockMessage) Qos() byte         { return 0 }
func (m mockMessage) Retained() bool    { return false }
func (m mockMessage) Topic() string     { return m.topic }
func (m mockMessage) MessageID() uint16 { return 0 }
func (m mockMessage) Payload() []byte   { return m.p }
func (m mockMessage) Ack()              {}

func startResponder(t *testing.T, mc *mockClient, engine prediction.Engine, cfg Config) (*QuoteResponder, context.CancelFunc, chan error) {
	t.Helper()
	newMQTTClient = func(o *paho.ClientOptions) pahoClient { mc.opts = o; return mc }
	t.Cleanup(func() { newMQTTClient = func(opts *paho.ClientOptions) pahoClient { return paho.NewClient(opts) } })
	r := NewQuoteResponder(cfg, engine)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	deadline := time.Now().Add(time.Second)
	for {
		mc.mu.Lock()
		ready := mc.handler != nil
		mc.mu.Unlock()
		if ready {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("responder did not subscribe")
		}
		time.Sleep(time.Millisecond)
	}
	return r, cancel, done
}

func TestQuoteResponder_Quote(t *testing.T) {
	mc := &mockClient{}
	engine := &prediction.MockEngine{Cost: 12.34}
	_, cancel, done := startResponder(t, mc, engine, Config{Broker: "tcp://localhost:1883", QoS: 1})

	if len(mc.subscribed) != 1 || mc.subscribed[0] != "evbill/quote/request/+" {
		t.Fatalf("unexpected subscriptions %v", mc.subscribed)
	}
	payload := `{"request_id":"r1","energy_kwh":30,"duration_hours":2,"rate_kw":7.2,"charger_type":"Level 2","time_of_day":"Evening","user_type":"Commuter","temperature_c":18}`
	mc.handler(nil, mockMessage{topic: "evbill/quote/request/car42", p: []byte(payload)})

	topic, resp := mc.last(t)
	if topic != "evbill/quote/response/car42" {
		t.Fatalf("unexpected topic %s", topic)
	}
	if resp.RequestID != "r1" || resp.CostUSD == nil || *resp.CostUSD != 12.34 || resp.Error != "" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.Message != "Estimated Charging Cost: $12.34" {
		t.Fatalf("unexpected message %q", resp.Message)
	}
	if mc.published[0].qos != 1 {
		t.Fatalf("qos not applied")
	}
	reqs := engine.Requests()
	if len(reqs) != 1 || reqs[0].ChargerType != "Level 2" || reqs[0].EnergyKWh != 30 {
		t.Fatalf("engine got %+v", reqs)
	}
	if engine.Sources()[0] != prediction.SourceMQTT {
		t.Fatalf("source not tagged")
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}
	if mc.connected {
		t.Fatalf("expected disconnect on cancel")
	}
}

func TestQuoteResponder_InvalidPayload(t *testing.T) {
	mc := &mockClient{}
	engine := &prediction.MockEngine{Cost: 1}
	_, cancel, _ := startResponder(t, mc, engine, Config{Broker: "tcp://localhost:1883"})
	defer cancel()

	mc.handler(nil, mockMessage{topic: "evbill/quote/request/c1", p: []byte(`{"energy_kwh":"abc"}`)})
	_, resp := mc.last(t)
	if resp.RequestID == "" {
		t.Fatalf("expected generated request id")
	}
	if resp.CostUSD != nil || !strings.Contains(resp.Error, "invalid input") {
		t.Fatalf("unexpected response %+v", resp)
	}
	if len(engine.Requests()) != 0 {
		t.Fatalf("engine should not be called")
	}
}

func TestQuoteResponder_EngineError(t *testing.T) {
	mc := &mockClient{}
	engine := &prediction.MockEngine{Err: errors.New("model offline")}
	_, cancel, _ := startResponder(t, mc, engine, Config{Broker: "tcp://localhost:1883"})
	defer cancel()

	mc.handler(nil, mockMessage{topic: "evbill/quote/request/c1", p: []byte(`{"request_id":"x","energy_kwh":1}`)})
	_, resp := mc.last(t)
	if resp.RequestID != "x" || resp.Error != "model offline" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

type recordMonitor struct {
	mu   sync.Mutex
	err  error
	tags map[string]string
}

func (r *recordMonitor) CaptureException(err error, tags map[string]string) {
	r.mu.Lock()
	r.err = err
	r.tags = tags
	r.mu.Unlock()
}
func (r *recordMonitor) CapturePanic(any)    {}
func (r *recordMonitor) Flush(time.Duration) {}

func TestQuoteResponder_PublishRetryAndCapture(t *testing.T) {
	mon := &recordMonitor{}
	coremon.Init(mon)
	defer coremon.Init(coremon.NopMonitor{})

	fail := errors.New("net fail")
	mc := &mockClient{publishErrs: []error{fail, fail, fail}}
	_, cancel, _ := startResponder(t, mc, &prediction.MockEngine{Cost: 2}, Config{Broker: "tcp://localhost:1883", MaxRetries: 1, BackoffMS: 1})
	defer cancel()

	mc.handler(nil, mockMessage{topic: "evbill/quote/request/c1", p: []byte(`{"request_id":"a"}`)})
	if len(mc.published) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(mc.published))
	}
	if mon.err == nil || mon.tags["module"] != "mqtt" || mon.tags["request_id"] != "a" {
		t.Fatalf("error not captured: %+v", mon)
	}

	mc.handler(nil, mockMessage{topic: "evbill/quote/request/c1", p: []byte(`{"request_id":"b"}`)})
	if _, resp := mc.last(t); resp.RequestID != "b" {
		t.Fatalf("retry did not publish: %+v", resp)
	}
}

func TestQuoteResponder_MessageDuringConnect(t *testing.T) {
	msg := mockMessage{topic: "evbill/quote/request/early", p: []byte(`{"request_id":"e1","energy_kwh":5}`)}
	mc := &mockClient{onConnectMsg: &msg}
	_, cancel, done := startResponder(t, mc, &prediction.MockEngine{Cost: 3}, Config{Broker: "tcp://localhost:1883"})

	mc.waitPublished(t, 1)
	topic, resp := mc.last(t)
	if topic != "evbill/quote/response/early" || resp.RequestID != "e1" || resp.CostUSD == nil {
		t.Fatalf("unexpected reply %s %+v", topic, resp)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestQuoteResponder_BackoffStopsOnCancel(t *testing.T) {
	fail := errors.New("net fail")
	mc := &mockClient{publishErrs: []error{fail, fail, fail, fail}}
	_, cancel, _ := startResponder(t, mc, &prediction.MockEngine{Cost: 2}, Config{Broker: "tcp://localhost:1883", MaxRetries: 3, BackoffMS: 10000})

	handled := make(chan struct{})
	go func() {
		mc.handler(nil, mockMessage{topic: "evbill/quote/request/c1", p: []byte(`{"request_id":"slow"}`)})
		close(handled)
	}()
	mc.waitPublished(t, 1)
	cancel()
	select {
	case <-handled:
	case <-time.After(2 * time.Second):
		t.Fatalf("reply kept backing off after cancel")
	}
	mc.mu.Lock()
	defer mc.mu.Unlock()
	if len(mc.published) != 1 {
		t.Fatalf("expected a single attempt, got %d", len(mc.published))
	}
}
