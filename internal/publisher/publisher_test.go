package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Checker-Finance/serasa-adapter/pkg/model"
)

type mockJetStream struct {
	published []*nats.Msg
	fail      bool
}

func (m *mockJetStream) PublishMsg(msg *nats.Msg, opts ...nats.PubOpt) (*nats.PubAck, error) {
	if m.fail {
		return nil, errors.New("mock publish error")
	}
	m.published = append(m.published, msg)
	return &nats.PubAck{Stream: "mock-stream"}, nil
}

type mockChannel struct {
	keys   []string
	msgs   []amqp.Publishing
	fail   bool
	closed bool
}

func (m *mockChannel) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp.Publishing) error {
	if m.fail {
		return errors.New("channel closed")
	}
	m.keys = append(m.keys, key)
	m.msgs = append(m.msgs, msg)
	return nil
}

func (m *mockChannel) Close() error {
	m.closed = true
	return nil
}

func testEnvelope(t *testing.T) *model.Envelope {
	t.Helper()
	env, err := model.NewEnvelope(model.TopicReportFetched, model.EventReportFetched, "tenant-1", "client-1",
		uuid.Nil, map[string]string{"request_id": "r-1"})
	require.NoError(t, err)
	return env
}

func TestPublishEnvelope_Success(t *testing.T) {
	js := &mockJetStream{}
	p := &Publisher{js: js, subject: "evt.default", service: "serasa-adapter"}
	env := testEnvelope(t)

	require.NoError(t, p.PublishEnvelope(context.Background(), "", env))
	require.Len(t, js.published, 1)

	msg := js.published[0]
	assert.Equal(t, model.TopicReportFetched, msg.Subject)
	assert.Equal(t, model.EventReportFetched, msg.Header.Get("event_type"))
	assert.Equal(t, env.CorrelationID.String(), msg.Header.Get("correlation_id"))
	assert.Equal(t, "serasa-adapter", msg.Header.Get("service"))
	assert.Equal(t, "client-1", msg.Header.Get("client_id"))

	var decoded model.Envelope
	require.NoError(t, json.Unmarshal(msg.Data, &decoded))
	assert.Equal(t, env.ID, decoded.ID)
	assert.JSONEq(t, `{"request_id":"r-1"}`, string(decoded.Payload))
}

func TestPublishEnvelope_DefaultSubject(t *testing.T) {
	js := &mockJetStream{}
	p := &Publisher{js: js, subject: "evt.default"}
	env := testEnvelope(t)
	env.Topic = ""

	require.NoError(t, p.PublishEnvelope(context.Background(), "", env))
	assert.Equal(t, "evt.default", js.published[0].Subject)
}

func TestPublishEnvelope_Failure(t *testing.T) {
	p := &Publisher{js: &mockJetStream{fail: true}}
	err := p.PublishEnvelope(context.Background(), "evt.x", testEnvelope(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mock publish error")
}

func TestRabbitPublisher_PublishEnvelope(t *testing.T) {
	ch := &mockChannel{}
	p := &RabbitPublisher{channel: ch, service: "serasa-adapter", logger: zap.NewNop()}
	env := testEnvelope(t)

	require.NoError(t, p.PublishEnvelope(context.Background(), "", env))
	require.Len(t, ch.msgs, 1)
	assert.Equal(t, model.TopicReportFetched, ch.keys[0])

	msg := ch.msgs[0]
	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, env.ID.String(), msg.MessageId)
	assert.Equal(t, env.CorrelationID.String(), msg.CorrelationId)
	assert.Equal(t, model.EventReportFetched, msg.Type)
	assert.Equal(t, "client-1", msg.Headers["client_id"])
}

func TestRabbitPublisher_Failure(t *testing.T) {
	ch := &mockChannel{fail: true}
	p := &RabbitPublisher{channel: ch, logger: zap.NewNop()}
	require.Error(t, p.PublishEnvelope(context.Background(), "evt.x", testEnvelope(t)))

	p.Close()
	assert.True(t, ch.closed)
}

func TestNewEnvelope_KeepsCorrelation(t *testing.T) {
	corr := uuid.New()
	env, err := model.NewEnvelope("t", "e", "", "c", corr, struct{}{})
	require.NoError(t, err)
	assert.Equal(t, corr, env.CorrelationID)
	assert.NotEqual(t, uuid.Nil, env.ID)
	assert.Equal(t, "1.0.0", env.Version)
}
