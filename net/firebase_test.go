package net

import (
	"context"
	"errors"
	"testing"

	"firebase.google.com/go/v4/messaging"
	"github.com/loyaltyapp/push-server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFirebaseSender struct {
	sent []*messaging.Message
	err  error
}

func (f *fakeFirebaseSender) SendEach(ctx context.Context, messages []*messaging.Message) (*messaging.BatchResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sent = messages
	resp := &messaging.BatchResponse{}
	for i, msg := range messages {
		if i%2 == 0 {
			resp.SuccessCount++
			resp.Responses = append(resp.Responses, &messaging.SendResponse{Success: true, MessageID: "projects/p/messages/" + msg.Token})
		} else {
			resp.FailureCount++
			resp.Responses = append(resp.Responses, &messaging.SendResponse{Error: errors.New("internal error")})
		}
	}
	return resp, nil
}

func TestFirebaseSendBatch(t *testing.T) {
	sender := &fakeFirebaseSender{}
	client := &FirebaseClient{sender: sender, ChunkSize: FirebaseChunkLimit}
	batch := []models.PushMessage{
		{To: "token-a", Title: "Sale", Body: "20% off", Sound: "default", Data: map[string]string{"postId": "p1"}},
		{To: "token-b", Title: "Sale", Body: "20% off", Sound: "default", Data: map[string]string{"postId": "p1"}},
	}

	results, err := client.SendBatch(context.Background(), batch)
	require.NoError(t, err)
	require.Equal(t, 2, len(sender.sent))
	assert.Equal(t, "token-a", sender.sent[0].Token)
	assert.Equal(t, "Sale", sender.sent[0].Notification.Title)
	assert.Equal(t, "default", sender.sent[0].APNS.Payload.Aps.Sound)
	assert.Equal(t, "p1", sender.sent[0].Data["postId"])

	assert.True(t, results[0].Ok())
	assert.Equal(t, "projects/p/messages/token-a", results[0].ID)
	assert.Equal(t, models.PushStatusError, results[1].Status)
	assert.False(t, results[1].DeviceNotRegistered())
}

func TestFirebaseSendBatchError(t *testing.T) {
	sendErr := errors.New("quota")
	client := &FirebaseClient{sender: &fakeFirebaseSender{err: sendErr}, ChunkSize: FirebaseChunkLimit}
	_, err := client.SendBatch(context.Background(), []models.PushMessage{{To: "token-a"}})
	assert.ErrorIs(t, err, sendErr)
}
