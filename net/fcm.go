package net

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/appleboy/go-fcm"
	"github.com/loyaltyapp/push-server/models"
	"k8s.io/klog/v2"
)

// Legacy FCM accepts at most 1000 registration ids per multicast
const FcmChunkLimit = 1000

type fcmSender interface {
	Send(msg *fcm.Message) (*fcm.Response, error)
}

// FcmClient sends through the legacy FCM HTTP API with a server key.
// FCM has no receipt phase: the message id is the ticket and counts as delivered.
type FcmClient struct {
	sender    fcmSender
	ChunkSize int
}

func NewFcmClient(apiKey string, chunkSize int) (*FcmClient, error) {
	client, err := fcm.NewClient(apiKey)
	if err != nil {
		return nil, fmt.Errorf("initiating FCM client: %w", err)
	}
	if chunkSize <= 0 || chunkSize > FcmChunkLimit {
		chunkSize = FcmChunkLimit
	}
	return &FcmClient{sender: client, ChunkSize: chunkSize}, nil
}

func (client *FcmClient) IsValidToken(token string) bool {
	return isFirebaseToken(token)
}

// ChunkMessages groups messages with the same content so each chunk is one multicast
func (client *FcmClient) ChunkMessages(messages []models.PushMessage) [][]models.PushMessage {
	var chunks [][]models.PushMessage
	for _, group := range groupByContent(messages) {
		grouped := make([]models.PushMessage, 0, len(group))
		for _, i := range group {
			grouped = append(grouped, messages[i])
		}
		chunks = append(chunks, chunk(grouped, client.ChunkSize)...)
	}
	return chunks
}

func (client *FcmClient) ChunkReceiptIDs(ids []string) [][]string {
	return chunk(ids, client.ChunkSize)
}

func (client *FcmClient) SendBatch(ctx context.Context, batch []models.PushMessage) ([]models.PushResult, error) {
	results := make([]models.PushResult, len(batch))
	for _, group := range groupByContent(batch) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		first := batch[group[0]]
		registrationIDs := make([]string, 0, len(group))
		for _, i := range group {
			registrationIDs = append(registrationIDs, batch[i].To)
		}
		data := make(map[string]interface{}, len(first.Data))
		for k, v := range first.Data {
			data[k] = v
		}
		resp, err := client.sender.Send(&fcm.Message{
			RegistrationIDs: registrationIDs,
			Priority:        "high",
			Data:            data,
			Notification: &fcm.Notification{
				Title: first.Title,
				Body:  first.Body,
				Sound: first.Sound,
			},
		})
		if err != nil {
			return nil, fmt.Errorf("sending FCM multicast: %w", err)
		}
		klog.V(3).Infof("FCM multicast sent: %d success, %d failures", resp.Success, resp.Failure)
		if len(resp.Results) != len(group) {
			return nil, fmt.Errorf("FCM returned %d results for %d registration ids", len(resp.Results), len(group))
		}
		for j, i := range group {
			results[i] = fcmResult(resp.Results[j])
		}
	}
	return results, nil
}

func (client *FcmClient) GetReceipts(ctx context.Context, ids []string) (map[string]models.PushResult, error) {
	return acceptedReceipts(ids), nil
}

func fcmResult(result fcm.Result) models.PushResult {
	if result.Error == nil {
		return models.PushResult{Status: models.PushStatusOk, ID: result.MessageID}
	}
	reason := result.Error.Error()
	if errors.Is(result.Error, fcm.ErrNotRegistered) {
		reason = models.DeviceNotRegistered
	}
	return models.PushResult{
		Status:  models.PushStatusError,
		Message: result.Error.Error(),
		Details: &models.PushErrorDetails{Error: reason},
	}
}

// groupByContent returns batch positions bucketed by notification content, in first-seen order
func groupByContent(messages []models.PushMessage) [][]int {
	index := map[string]int{}
	var groups [][]int
	for i, msg := range messages {
		// encoding/json sorts map keys, so equal payloads give equal keys
		raw, _ := json.Marshal(models.PushMessage{Title: msg.Title, Body: msg.Body, Sound: msg.Sound, Data: msg.Data})
		key := string(raw)
		g, ok := index[key]
		if !ok {
			g = len(groups)
			index[key] = g
			groups = append(groups, nil)
		}
		groups[g] = append(groups[g], i)
	}
	return groups
}
