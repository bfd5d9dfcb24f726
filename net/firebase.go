package net

import (
	"context"
	"fmt"
	"regexp"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/loyaltyapp/push-server/models"
	"google.golang.org/api/option"
	"k8s.io/klog/v2"
)

// FCM v1 SendEach accepts at most 500 messages per call
const FirebaseChunkLimit = 500

// Registration tokens are long url-safe strings, Expo tokens never match
var firebaseTokenPattern = regexp.MustCompile(`^[A-Za-z0-9_\-]+:[A-Za-z0-9_\-]{20,}$|^[A-Za-z0-9_\-]{100,}$`)

func isFirebaseToken(token string) bool {
	return firebaseTokenPattern.MatchString(token)
}

type firebaseSender interface {
	SendEach(ctx context.Context, messages []*messaging.Message) (*messaging.BatchResponse, error)
}

// FirebaseClient sends through the FCM HTTP v1 API with service account credentials.
// Like legacy FCM there is no receipt phase.
type FirebaseClient struct {
	sender    firebaseSender
	ChunkSize int
}

func NewFirebaseClient(ctx context.Context, credentialsFile string, chunkSize int) (*FirebaseClient, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	app, err := firebase.NewApp(ctx, nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}
	messagingClient, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get messaging client: %w", err)
	}
	if chunkSize <= 0 || chunkSize > FirebaseChunkLimit {
		chunkSize = FirebaseChunkLimit
	}
	return &FirebaseClient{sender: messagingClient, ChunkSize: chunkSize}, nil
}

func (client *FirebaseClient) IsValidToken(token string) bool {
	return isFirebaseToken(token)
}

func (client *FirebaseClient) ChunkMessages(messages []models.PushMessage) [][]models.PushMessage {
	return chunk(messages, client.ChunkSize)
}

func (client *FirebaseClient) ChunkReceiptIDs(ids []string) [][]string {
	return chunk(ids, client.ChunkSize)
}

func (client *FirebaseClient) SendBatch(ctx context.Context, batch []models.PushMessage) ([]models.PushResult, error) {
	messages := make([]*messaging.Message, 0, len(batch))
	for _, msg := range batch {
		messages = append(messages, firebaseMessage(msg))
	}
	resp, err := client.sender.SendEach(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("failed to send FCM batch: %w", err)
	}
	klog.V(3).Infof("FCM batch sent: %d success, %d failures", resp.SuccessCount, resp.FailureCount)

	results := make([]models.PushResult, 0, len(resp.Responses))
	for _, r := range resp.Responses {
		if r.Success {
			results = append(results, models.PushResult{Status: models.PushStatusOk, ID: r.MessageID})
			continue
		}
		message := "unknown error"
		if r.Error != nil {
			message = r.Error.Error()
		}
		reason := "MessagingError"
		if messaging.IsUnregistered(r.Error) {
			reason = models.DeviceNotRegistered
		} else if messaging.IsInvalidArgument(r.Error) {
			reason = "InvalidArgument"
		} else if messaging.IsQuotaExceeded(r.Error) {
			reason = "MessageRateExceeded"
		}
		results = append(results, models.PushResult{
			Status:  models.PushStatusError,
			Message: message,
			Details: &models.PushErrorDetails{Error: reason},
		})
	}
	return results, nil
}

func (client *FirebaseClient) GetReceipts(ctx context.Context, ids []string) (map[string]models.PushResult, error) {
	return acceptedReceipts(ids), nil
}

func firebaseMessage(msg models.PushMessage) *messaging.Message {
	return &messaging.Message{
		Token: msg.To,
		Notification: &messaging.Notification{
			Title: msg.Title,
			Body:  msg.Body,
		},
		Data: msg.Data,
		Android: &messaging.AndroidConfig{
			Priority:     "high",
			Notification: &messaging.AndroidNotification{Sound: msg.Sound},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{Sound: msg.Sound},
			},
		},
	}
}
