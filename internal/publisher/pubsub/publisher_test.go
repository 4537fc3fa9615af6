package pubsub

import (
	"context"
	"encoding/json"
	"testing"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/JakeFAU/wikiharvest/internal/crawler"
)

func newFakeClient(t *testing.T) (*pstest.Server, *pubsub.Client) {
	t.Helper()
	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)

	client, err := pubsub.NewClient(context.Background(), "test-project", option.WithGRPCConn(conn))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return srv, client
}

func TestPublishHarvestEvent(t *testing.T) {
	ctx := context.Background()
	srv, client := newFakeClient(t)
	_, err := client.CreateTopic(ctx, "harvests")
	require.NoError(t, err)

	p, err := NewWithClient(ctx, client, "harvests", nil)
	require.NoError(t, err)

	event := crawler.HarvestEvent{RunID: "run-1", BlobURI: "gs://b/ac.0.json", ArticleCount: 3, Level: 2}
	id, err := p.Publish(ctx, "harvest.written", event)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	p.topic.Stop()

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "harvest.written", msgs[0].Attributes[EventAttribute])

	var got crawler.HarvestEvent
	require.NoError(t, json.Unmarshal(msgs[0].Data, &got))
	assert.Equal(t, event.BlobURI, got.BlobURI)
	assert.Equal(t, 3, got.ArticleCount)
}

func TestPublishCarriesTraceContext(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	ctx, span := tp.Tracer("test").Start(context.Background(), "run")
	defer span.End()

	srv, client := newFakeClient(t)
	_, err := client.CreateTopic(ctx, "harvests")
	require.NoError(t, err)
	p, err := NewWithClient(ctx, client, "harvests", nil)
	require.NoError(t, err)

	_, err = p.Publish(ctx, "harvest.written", crawler.HarvestEvent{RunID: "run-1"})
	require.NoError(t, err)
	p.topic.Stop()

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	traceparent := msgs[0].Attributes["traceparent"]
	assert.Contains(t, traceparent, span.SpanContext().TraceID().String())
	assert.Equal(t, "harvest.written", msgs[0].Attributes[EventAttribute])
}

func TestAttributeCarrier(t *testing.T) {
	c := attributeCarrier{}
	c.Set("traceparent", "00-abc")
	assert.Equal(t, "00-abc", c.Get("traceparent"))
	assert.Equal(t, []string{"traceparent"}, c.Keys())
}

func TestNewWithClientMissingTopic(t *testing.T) {
	_, client := newFakeClient(t)
	_, err := NewWithClient(context.Background(), client, "absent", nil)
	assert.ErrorContains(t, err, "does not exist")
}

func TestPublishUnconfigured(t *testing.T) {
	var p *Publisher
	_, err := p.Publish(context.Background(), "x", struct{}{})
	assert.Error(t, err)
	assert.NoError(t, p.Close())
}

func TestNewRequiresTopic(t *testing.T) {
	_, err := New(context.Background(), Config{ProjectID: "p"}, nil)
	assert.Error(t, err)
}
