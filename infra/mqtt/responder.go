package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/kilianp07/evbill/core/model"
	coremon "github.com/kilianp07/evbill/core/monitoring"
	"github.com/kilianp07/evbill/core/prediction"
	"github.com/kilianp07/evbill/infra/logger"
)

// QuoteRequest is the payload accepted on <prefix>/request/<client>.
type QuoteRequest struct {
	RequestID string `json:"request_id,omitempty"`
	model.Request
}

// QuoteResponse is published on <prefix>/response/<client>.
type QuoteResponse struct {
	RequestID string   `json:"request_id"`
	CostUSD   *float64 `json:"cost_usd,omitempty"`
	Message   string   `json:"message,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// QuoteResponder answers charging cost quotes received over MQTT.
type QuoteResponder struct {
	cfg     Config
	engine  prediction.Engine
	mu      sync.Mutex
	cli     pahoClient
	log     logger.Logger
	backoff time.Duration
	ctx     context.Context
}

// NewQuoteResponder prepares a responder. Nothing connects until Run.
func NewQuoteResponder(cfg Config, engine prediction.Engine) *QuoteResponder {
	cfg.SetDefaults()
	return &QuoteResponder{
		cfg:     cfg,
		engine:  engine,
		log:     logger.New("mqtt_responder"),
		backoff: time.Duration(cfg.BackoffMS) * time.Millisecond,
		ctx:     context.Background(),
	}
}

// RequestTopic is the wildcard subscription for incoming quotes.
func (r *QuoteResponder) RequestTopic() string { return r.cfg.TopicPrefix + "/request/+" }

// ResponseTopic returns the reply topic for a client.
func (r *QuoteResponder) ResponseTopic(client string) string {
	return r.cfg.TopicPrefix + "/response/" + client
}

// Run connects, serves quotes until ctx is done and disconnects.
func (r *QuoteResponder) Run(ctx context.Context) error {
	opts, err := NewClientOptions(r.cfg)
	if err != nil {
		return err
	}
	r.ctx = prediction.WithSource(ctx, prediction.SourceMQTT)
	opts.OnConnect = func(c paho.Client) {
		r.log.Infof("MQTT connected, subscribing to %s", r.RequestTopic())
		if token := c.Subscribe(r.RequestTopic(), r.cfg.QoS, r.onRequest); token.Wait() && token.Error() != nil {
			r.log.Errorf("subscribe error: %v", token.Error())
			coremon.CaptureException(token.Error(), map[string]string{"module": "mqtt"})
		}
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		r.log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		r.log.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	// requests may arrive on the router goroutine before Connect returns
	r.setClient(c)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt connect: %w", token.Error())
	}
	<-ctx.Done()
	r.Disconnect()
	return nil
}

func (r *QuoteResponder) onRequest(_ paho.Client, msg paho.Message) {
	defer coremon.Recover()
	client := msg.Topic()[strings.LastIndex(msg.Topic(), "/")+1:]
	resp := r.quote(msg.Payload())
	if err := r.reply(client, resp); err != nil {
		r.log.Errorf("reply %s to %s: %v", resp.RequestID, client, err)
		coremon.CaptureException(err, map[string]string{"module": "mqtt", "request_id": resp.RequestID})
	}
}

func (r *QuoteResponder) quote(payload []byte) QuoteResponse {
	var req QuoteRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		var id struct {
			RequestID string `json:"request_id"`
		}
		_ = json.Unmarshal(payload, &id)
		return QuoteResponse{RequestID: requestID(id.RequestID), Error: fmt.Errorf("%w: %w", prediction.ErrInvalidInput, err).Error()}
	}
	resp := QuoteResponse{RequestID: requestID(req.RequestID)}
	cost, err := r.engine.PredictCost(r.ctx, req.Request)
	if err != nil {
		resp.Error = err.Error()
		return resp
	}
	resp.CostUSD = &cost
	resp.Message = prediction.FormatCost(cost)
	return resp
}

func requestID(id string) string {
	if id == "" {
		return uuid.NewString()
	}
	return id
}

func (r *QuoteResponder) reply(client string, resp QuoteResponse) error {
	payload, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	cli := r.client()
	if cli == nil {
		return errors.New("mqtt client not initialised")
	}
	topic := r.ResponseTopic(client)
	var publishErr error
	for attempt := 0; attempt <= r.cfg.MaxRetries; attempt++ {
		token := cli.Publish(topic, r.cfg.QoS, false, payload)
		token.Wait()
		publishErr = token.Error()
		if publishErr == nil {
			r.log.Debugw("quote sent", map[string]any{"topic": topic, "request_id": resp.RequestID})
			return nil
		}
		r.log.Warnf("publish attempt %d failed: %v", attempt+1, publishErr)
		if attempt < r.cfg.MaxRetries {
			select {
			case <-time.After(r.backoff * time.Duration(1<<attempt)):
			case <-r.ctx.Done():
				return fmt.Errorf("%w (last error: %w)", r.ctx.Err(), publishErr)
			}
		}
	}
	return publishErr
}

// Disconnect gracefully closes the MQTT connection.
func (r *QuoteResponder) Disconnect() {
	if c := r.client(); c != nil && c.IsConnected() {
		c.Disconnect(250)
	}
}

func (r *QuoteResponder) setClient(c pahoClient) {
	r.mu.Lock()
	r.cli = c
	r.mu.Unlock()
}

func (r *QuoteResponder) client() pahoClient {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cli
}
