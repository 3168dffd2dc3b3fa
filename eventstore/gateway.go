package eventstore

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/nikoksr/notify"
	nhttp "github.com/nikoksr/notify/service/http"
	"github.com/nikoksr/notify/service/msteams"
	"github.com/nikoksr/notify/service/slack"
)

// SinkConfig configures one notification backend a Gateway publishes
// events to.
type SinkConfig struct {
	Type     string            `json:"type"` // slack, teams, http
	Token    string            `json:"token,omitempty"`
	Webhook  string            `json:"webhook,omitempty"`
	URL      string            `json:"url,omitempty"`
	Channels []string          `json:"channels,omitempty"`
	Headers  map[string]string `json:"headers,omitempty"`
	Method   string            `json:"method,omitempty"`
}

// Gateway is a Publisher that forwards every Transition, JSON-encoded, to
// one or more configured notification sinks.
type Gateway struct {
	mu    sync.RWMutex
	sinks map[string]SinkConfig
}

// NewGateway constructs a Gateway with the given named sinks.
func NewGateway(sinks map[string]SinkConfig) *Gateway {
	return &Gateway{sinks: sinks}
}

// Publish serializes transition and sends it to every configured sink.
// Per spec, the pub/sub gateway is write-only and best-effort: a partial
// failure across sinks is reported to the caller (eventstore.Store
// swallows it), but every configured sink is attempted.
func (g *Gateway) Publish(ctx context.Context, channel string, transition Transition) error {
	payload, err := json.Marshal(transition)
	if err != nil {
		return fmt.Errorf("could not marshal transition: %w", err)
	}

	g.mu.RLock()
	sinks := g.sinks
	g.mu.RUnlock()

	var firstErr error

	for name, sink := range sinks {
		if err := g.send(ctx, sink, channel, string(payload)); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("sink %q: %w", name, err)
			}
		}
	}

	return firstErr
}

func (g *Gateway) send(ctx context.Context, sink SinkConfig, subject, message string) error {
	sender := notify.New()

	var err error

	switch sink.Type {
	case "slack":
		err = configureSlack(sender, sink)
	case "teams":
		err = configureTeams(sender, sink)
	case "http":
		err = configureHTTP(sender, sink)
	default:
		return fmt.Errorf("unsupported sink type: %s", sink.Type)
	}

	if err != nil {
		return fmt.Errorf("could not configure %s sink: %w", sink.Type, err)
	}

	if err := sender.Send(ctx, subject, message); err != nil {
		return fmt.Errorf("could not send notification: %w", err)
	}

	return nil
}

func configureSlack(sender *notify.Notify, sink SinkConfig) error {
	if sink.Token == "" {
		return fmt.Errorf("slack token is required")
	}

	service := slack.New(sink.Token)

	for _, channel := range sink.Channels {
		service.AddReceivers(channel)
	}

	sender.UseServices(service)

	return nil
}

func configureTeams(sender *notify.Notify, sink SinkConfig) error {
	if sink.Webhook == "" {
		return fmt.Errorf("teams webhook URL is required")
	}

	service := msteams.New()
	service.AddReceivers(sink.Webhook)

	sender.UseServices(service)

	return nil
}

func configureHTTP(sender *notify.Notify, sink SinkConfig) error {
	if sink.URL == "" {
		return fmt.Errorf("HTTP URL is required")
	}

	method := sink.Method
	if method == "" {
		method = http.MethodPost
	}

	service := nhttp.New()
	service.AddReceivers(&nhttp.Webhook{
		URL:         sink.URL,
		Header:      headersToHTTPHeader(sink.Headers),
		ContentType: "application/json",
		Method:      method,
		BuildPayload: func(subject, message string) any {
			return map[string]string{"subject": subject, "message": message}
		},
	})

	sender.UseServices(service)

	return nil
}

func headersToHTTPHeader(headers map[string]string) http.Header {
	h := make(http.Header)
	for k, v := range headers {
		h.Set(k, v)
	}

	return h
}
