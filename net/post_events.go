package net

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"cloud.google.com/go/pubsub"
	"github.com/loyaltyapp/push-server/models"
	"google.golang.org/api/option"
	"k8s.io/klog/v2"
)

// ErrDuplicatePost tells the subscriber a post was already dispatched; the message is acked
var ErrDuplicatePost = errors.New("post already dispatched")

// PostHandler dispatches one post. A returned error nacks the message so Pub/Sub redelivers it.
type PostHandler func(ctx context.Context, post models.PostRecord) error

// PostEventSubscriber receives post insert events (the database webhook body) from Pub/Sub
type PostEventSubscriber struct {
	client       *pubsub.Client
	subscription string
	handler      PostHandler
}

func NewPostEventSubscriber(ctx context.Context, projectID string, subscription string, handler PostHandler, opts ...option.ClientOption) (*PostEventSubscriber, error) {
	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}
	return &PostEventSubscriber{client: client, subscription: subscription, handler: handler}, nil
}

// Start blocks receiving messages until ctx is cancelled
func (s *PostEventSubscriber) Start(ctx context.Context) error {
	sub := s.client.Subscription(s.subscription)
	exists, err := sub.Exists(ctx)
	if err != nil {
		return fmt.Errorf("checking subscription %s: %w", s.subscription, err)
	}
	if !exists {
		return fmt.Errorf("subscription %s does not exist", s.subscription)
	}
	klog.Infof("Listening for post events on subscription %s", s.subscription)
	return sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if s.handleMessage(ctx, msg.Data) {
			msg.Ack()
		} else {
			msg.Nack()
		}
	})
}

func (s *PostEventSubscriber) Close() error {
	return s.client.Close()
}

// handleMessage reports whether the message should be acked. Undecodable
// payloads are acked: redelivery would never fix them.
func (s *PostEventSubscriber) handleMessage(ctx context.Context, data []byte) bool {
	var event models.PostEvent
	if err := json.Unmarshal(data, &event); err != nil {
		klog.Errorf("Dropping undecodable post event: %v", err)
		return true
	}
	post, err := event.Post()
	if err != nil {
		klog.Errorf("Dropping post event: %v", err)
		return true
	}
	if err := s.handler(ctx, post); err != nil {
		if errors.Is(err, ErrDuplicatePost) {
			klog.Infof("Post %s already dispatched, acking", post.ID)
			return true
		}
		klog.Errorf("Error dispatching post %s from pubsub: %v", post.ID, err)
		return false
	}
	return true
}
