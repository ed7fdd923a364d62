package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CreativeUnicorns/suiteprefs"
	"github.com/CreativeUnicorns/suiteprefs/internal/testutil"
)

type publishCall struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type fakeChannel struct {
	published []publishCall
	err       error
	closed    bool
}

func (c *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	if c.err != nil {
		return c.err
	}
	c.published = append(c.published, publishCall{exchange: exchange, key: key, msg: msg})
	return nil
}

func (c *fakeChannel) Close() error {
	c.closed = true
	return nil
}

func TestAMQPTagger_Tag(t *testing.T) {
	ch := &fakeChannel{}
	tagger := &AMQPTagger{channel: ch, exchange: DefaultExchange}

	require.NoError(t, tagger.Tag(context.Background(), "event", "theme_toggled", map[string]any{"to": "dark"}))
	require.Len(t, ch.published, 1)

	call := ch.published[0]
	assert.Equal(t, DefaultExchange, call.exchange)
	assert.Equal(t, "analytics.event.theme_toggled", call.key)
	assert.Equal(t, "application/json", call.msg.ContentType)
	assert.Equal(t, amqp.Persistent, call.msg.DeliveryMode)
	assert.Equal(t, "event", call.msg.Headers["command"])

	var body tagMessage
	require.NoError(t, json.Unmarshal(call.msg.Body, &body))
	assert.Equal(t, "theme_toggled", body.Target)
	assert.Equal(t, "dark", body.Params["to"])

	ch.err = errors.New("channel closed")
	assert.ErrorContains(t, tagger.Tag(context.Background(), "event", "x", nil), "failed to publish tag")

	require.NoError(t, tagger.Close())
	assert.True(t, ch.closed)
}

func TestPrometheusTagger(t *testing.T) {
	reg := prometheus.NewRegistry()
	tagger, err := NewPrometheusTagger(reg)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, tagger.Tag(ctx, "event", "page_view", nil))
	require.NoError(t, tagger.Tag(ctx, "event", "page_view", nil))
	require.NoError(t, tagger.Tag(ctx, "config", "G-TEST", nil))

	assert.Equal(t, 2.0, promtest.ToFloat64(tagger.calls.WithLabelValues("event", "page_view")))
	assert.Equal(t, 1.0, promtest.ToFloat64(tagger.calls.WithLabelValues("config", "G-TEST")))

	_, err = NewPrometheusTagger(reg)
	assert.Error(t, err)
}

func TestLogTagger(t *testing.T) {
	logger := &testutil.RecordingLogger{}
	require.NoError(t, NewLogTagger(logger).Tag(context.Background(), "event", "saved", nil))
	assert.True(t, logger.Contains(suiteprefs.LogLevelInfo, "Analytics tag"))
}

func TestMultiTagger(t *testing.T) {
	ok := &RecordingTagger{}
	failing := &RecordingTagger{Err: errors.New("down")}
	multi := MultiTagger{failing, ok}

	err := multi.Tag(context.Background(), "event", "saved", map[string]any{"n": 1})
	assert.ErrorContains(t, err, "down")
	assert.Equal(t, []string{"saved"}, ok.Events())
	assert.Equal(t, []string{"saved"}, failing.Events())
}
