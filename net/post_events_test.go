package net

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/loyaltyapp/push-server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const testPostEvent = `{"type":"INSERT","table":"posts","record":{"id":42,"title":"Sale","details":"20% off"}}`

func TestHandleMessage(t *testing.T) {
	var received []models.PostRecord
	var handlerErr error
	sub := &PostEventSubscriber{handler: func(ctx context.Context, post models.PostRecord) error {
		received = append(received, post)
		return handlerErr
	}}

	assert.True(t, sub.handleMessage(context.Background(), []byte(testPostEvent)))
	require.Equal(t, 1, len(received))
	assert.Equal(t, models.PostRecord{ID: "42", Title: "Sale", Details: "20% off"}, received[0])

	// Malformed payloads are acked without reaching the handler
	assert.True(t, sub.handleMessage(context.Background(), []byte("{not json")))
	assert.True(t, sub.handleMessage(context.Background(), []byte(`{"type":"INSERT","record":{"title":"no id"}}`)))
	assert.Equal(t, 1, len(received))

	handlerErr = ErrDuplicatePost
	assert.True(t, sub.handleMessage(context.Background(), []byte(testPostEvent)))

	handlerErr = errors.New("db down")
	assert.False(t, sub.handleMessage(context.Background(), []byte(testPostEvent)))
}

func newTestSubscriber(t *testing.T, handler PostHandler) (*PostEventSubscriber, *pubsub.Topic) {
	srv := pstest.NewServer()
	t.Cleanup(func() { srv.Close() })
	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	ctx := context.Background()
	sub, err := NewPostEventSubscriber(ctx, "loyalty-test", "post-events", handler, option.WithGRPCConn(conn))
	require.NoError(t, err)
	topic, err := sub.client.CreateTopic(ctx, "posts")
	require.NoError(t, err)
	_, err = sub.client.CreateSubscription(ctx, "post-events", pubsub.SubscriptionConfig{Topic: topic})
	require.NoError(t, err)
	return sub, topic
}

func TestSubscriberDispatchesPublishedPost(t *testing.T) {
	posts := make(chan models.PostRecord, 1)
	sub, topic := newTestSubscriber(t, func(ctx context.Context, post models.PostRecord) error {
		posts <- post
		return nil
	})
	defer topic.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sub.Start(ctx) }()

	_, err := topic.Publish(ctx, &pubsub.Message{Data: []byte(testPostEvent)}).Get(ctx)
	require.NoError(t, err)

	select {
	case post := <-posts:
		assert.Equal(t, "42", post.ID)
		assert.Equal(t, "Sale", post.Title)
	case <-time.After(10 * time.Second):
		t.Fatal("post event was not delivered")
	}
	cancel()
	assert.NoError(t, <-done)
}

func TestSubscriberMissingSubscription(t *testing.T) {
	srv := pstest.NewServer()
	defer srv.Close()
	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	sub, err := NewPostEventSubscriber(context.Background(), "loyalty-test", "missing", nil, option.WithGRPCConn(conn))
	require.NoError(t, err)
	defer sub.Close()
	assert.Error(t, sub.Start(context.Background()))
}
