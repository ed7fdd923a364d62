package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/CreativeUnicorns/suiteprefs"
)

// Tagger is the analytics egress: a tag-manager style call carrying a command
// ("config", "event", "set"), a target (measurement id or event name) and flat params.
type Tagger interface {
	Tag(ctx context.Context, command, target string, params map[string]any) error
}

// LogTagger writes every call to a Logger at Info level.
type LogTagger struct {
	logger suiteprefs.Logger
}

func NewLogTagger(logger suiteprefs.Logger) *LogTagger {
	return &LogTagger{logger: logger}
}

func (t *LogTagger) Tag(_ context.Context, command, target string, params map[string]any) error {
	t.logger.Info("Analytics tag", "command", command, "target", target, "params", params)
	return nil
}

// TagCall is one call captured by a RecordingTagger.
type TagCall struct {
	Command string
	Target  string
	Params  map[string]any
}

// RecordingTagger keeps every call in memory. Err, when set, is returned from
// Tag after the call is recorded.
type RecordingTagger struct {
	mu    sync.Mutex
	calls []TagCall
	Err   error
}

func (t *RecordingTagger) Tag(_ context.Context, command, target string, params map[string]any) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls = append(t.calls, TagCall{Command: command, Target: target, Params: maps.Clone(params)})
	return t.Err
}

// Calls returns a copy of the recorded calls.
func (t *RecordingTagger) Calls() []TagCall {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]TagCall(nil), t.calls...)
}

// Events returns the targets of the recorded "event" calls, in order.
func (t *RecordingTagger) Events() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var names []string
	for _, c := range t.calls {
		if c.Command == "event" {
			names = append(names, c.Target)
		}
	}
	return names
}

// PrometheusTagger counts calls by command and target.
type PrometheusTagger struct {
	calls *prometheus.CounterVec
}

// NewPrometheusTagger registers its counter with reg.
func NewPrometheusTagger(reg prometheus.Registerer) (*PrometheusTagger, error) {
	calls := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "suiteprefs",
			Subsystem: "analytics",
			Name:      "tags_total",
			Help:      "Total number of analytics tag calls.",
		},
		[]string{"command", "target"},
	)
	if err := reg.Register(calls); err != nil {
		return nil, fmt.Errorf("register analytics counter: %w", err)
	}
	return &PrometheusTagger{calls: calls}, nil
}

func (t *PrometheusTagger) Tag(_ context.Context, command, target string, _ map[string]any) error {
	t.calls.WithLabelValues(command, target).Inc()
	return nil
}

// DefaultExchange is the topic exchange AMQPTagger publishes to.
const DefaultExchange = "suiteprefs.analytics"

// amqpChannel is the part of *amqp.Channel AMQPTagger uses.
type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPTagger publishes every call as a persistent JSON message on a topic exchange,
// routed as analytics.<command>.<target>.
type AMQPTagger struct {
	conn     *amqp.Connection
	channel  amqpChannel
	exchange string
}

type tagMessage struct {
	Command   string         `json:"command"`
	Target    string         `json:"target"`
	Params    map[string]any `json:"params,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// NewAMQPTagger dials uri and declares a durable topic exchange.
func NewAMQPTagger(uri, exchange string) (*AMQPTagger, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}

	conn, err := amqp.Dial(uri)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &AMQPTagger{conn: conn, channel: channel, exchange: exchange}, nil
}

func (t *AMQPTagger) Tag(ctx context.Context, command, target string, params map[string]any) error {
	body, err := json.Marshal(tagMessage{Command: command, Target: target, Params: params, Timestamp: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to marshal tag: %w", err)
	}

	err = t.channel.PublishWithContext(ctx,
		t.exchange,                      // exchange
		"analytics."+command+"."+target, // routing key
		false,                           // mandatory
		false,                           // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
			Headers: amqp.Table{
				"command": command,
				"target":  target,
			},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish tag: %w", err)
	}
	return nil
}

func (t *AMQPTagger) Close() error {
	var errs []error
	if t.channel != nil {
		errs = append(errs, t.channel.Close())
	}
	if t.conn != nil {
		errs = append(errs, t.conn.Close())
	}
	return errors.Join(errs...)
}

// MultiTagger fans every call out to all of its taggers, returning their joined errors.
type MultiTagger []Tagger

func (m MultiTagger) Tag(ctx context.Context, command, target string, params map[string]any) error {
	var errs []error
	for _, t := range m {
		if err := t.Tag(ctx, command, target, params); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
