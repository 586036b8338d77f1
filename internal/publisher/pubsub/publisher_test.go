package pubsub

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/JakeFAU/pitch-ingest/internal/crawler"
)

func newFakeClient(t *testing.T) (*pstest.Server, *pubsub.Client) {
	t.Helper()

	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	client, err := pubsub.NewClient(context.Background(), "pitch-project", option.WithGRPCConn(conn))
	require.NoError(t, err)
	return srv, client
}

func TestPublishBatchEvent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	srv, client := newFakeClient(t)
	_, err := client.CreateTopic(ctx, "pitch-batches")
	require.NoError(t, err)

	pub := NewWithClient(client, "pitch-batches")
	defer func() { _ = pub.Close() }()

	event := crawler.BatchEvent{
		RunID:    "run-1",
		Table:    crawler.TableURLs,
		Year:     "2016",
		Month:    "4",
		Rows:     12,
		Inserted: 10,
		At:       time.Date(2016, 5, 1, 0, 0, 0, 0, time.UTC),
	}
	id, err := pub.Publish(ctx, "", event)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "urls", msgs[0].Attributes["table"])
	assert.Equal(t, "run-1", msgs[0].Attributes["run_id"])

	var decoded crawler.BatchEvent
	require.NoError(t, json.Unmarshal(msgs[0].Data, &decoded))
	assert.Equal(t, event, decoded)
}

func TestPublishRequiresTopic(t *testing.T) {
	t.Parallel()

	_, client := newFakeClient(t)
	pub := NewWithClient(client, "")
	defer func() { _ = pub.Close() }()

	_, err := pub.Publish(context.Background(), "", map[string]string{"k": "v"})
	require.Error(t, err)
}

func TestNewRequiresProject(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Config{Topic: "t"})
	require.Error(t, err)
}
