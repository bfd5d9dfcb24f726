package push

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/loyaltyapp/push-server/models"
	"github.com/loyaltyapp/push-server/models/dbmodels"
	"github.com/loyaltyapp/push-server/utils/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var salePost = models.PostRecord{ID: "p1", Title: "Sale", Details: "20% off"}

func TestDispatchOneValidOneMalformed(t *testing.T) {
	gateway := mocks.NewGateway()
	tokens := mocks.NewTokenStore("ExponentPushToken[valid]", "not-a-token")
	tickets := mocks.NewTicketStore()

	result, err := NewDispatcher(gateway, tokens, tickets, 0).Dispatch(context.Background(), salePost)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 1, result.Sent)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 1, result.Ticketed)
	assert.Equal(t, 0, result.TokensDeleted)

	require.Equal(t, 1, len(tickets.Tickets))
	ticket := tickets.Tickets[0]
	assert.Equal(t, mocks.TicketID("ExponentPushToken[valid]"), ticket.TicketID)
	assert.Equal(t, "p1", ticket.PostID)
	assert.Equal(t, dbmodels.TicketPendingReceipt, ticket.Status)
	assert.Equal(t, "ExponentPushToken[valid]", ticket.OriginalPushToken)

	// Malformed tokens are skipped, never deleted
	assert.True(t, tokens.Has("not-a-token"))
	assert.Equal(t, 0, tokens.DeleteCalls)

	require.Equal(t, 1, len(gateway.Sent))
	msg := gateway.Sent[0]
	assert.Equal(t, "Sale", msg.Title)
	assert.Equal(t, "20% off", msg.Body)
	assert.Equal(t, "default", msg.Sound)
	assert.Equal(t, map[string]string{"postId": "p1", "type": "new_post"}, msg.Data)
}

func TestDispatchNoTokens(t *testing.T) {
	gateway := mocks.NewGateway()
	tickets := mocks.NewTicketStore()

	result, err := NewDispatcher(gateway, mocks.NewTokenStore(), tickets, 0).Dispatch(context.Background(), salePost)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "No push tokens to send to.", result.Message)
	assert.Equal(t, 0, gateway.SendCalls)
	assert.Equal(t, 0, tickets.CreateCalls)
}

func TestDispatchNoValidTokens(t *testing.T) {
	gateway := mocks.NewGateway()

	result, err := NewDispatcher(gateway, mocks.NewTokenStore("bad-1", "bad-2"), mocks.NewTicketStore(), 0).Dispatch(context.Background(), salePost)
	require.NoError(t, err)
	assert.Equal(t, "No valid push tokens.", result.Message)
	assert.Equal(t, 2, result.Skipped)
	assert.Equal(t, 0, gateway.SendCalls)
}

func TestDispatchDefaultBody(t *testing.T) {
	gateway := mocks.NewGateway()
	post := models.PostRecord{ID: "p2", Title: "Hello"}

	_, err := NewDispatcher(gateway, mocks.NewTokenStore("ExponentPushToken[a]"), mocks.NewTicketStore(), 0).Dispatch(context.Background(), post)
	require.NoError(t, err)
	require.Equal(t, 1, len(gateway.Sent))
	assert.Equal(t, "A new post has been published!", gateway.Sent[0].Body)
}

func TestDispatchDeviceNotRegisteredDeletesTokenWithoutTicket(t *testing.T) {
	gateway := mocks.NewGateway()
	gateway.Rejections["ExponentPushToken[gone]"] = models.DeviceNotRegistered
	gateway.Rejections["ExponentPushToken[throttled]"] = "MessageRateExceeded"
	tokens := mocks.NewTokenStore("ExponentPushToken[ok]", "ExponentPushToken[gone]", "ExponentPushToken[throttled]")
	tickets := mocks.NewTicketStore()

	result, err := NewDispatcher(gateway, tokens, tickets, 0).Dispatch(context.Background(), salePost)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Sent)
	assert.Equal(t, 1, result.Ticketed)
	assert.Equal(t, 2, result.Rejected)
	assert.Equal(t, 1, result.TokensDeleted)

	assert.False(t, tokens.Has("ExponentPushToken[gone]"))
	// Other rejections may be transient; the token stays
	assert.True(t, tokens.Has("ExponentPushToken[throttled]"))
	assert.True(t, tokens.Has("ExponentPushToken[ok]"))

	for _, ticket := range tickets.Tickets {
		assert.Equal(t, "ExponentPushToken[ok]", ticket.OriginalPushToken)
	}
}

func TestDispatchBatchFailureIsIsolated(t *testing.T) {
	gateway := mocks.NewGateway()
	gateway.ChunkSize = 2
	gateway.FailBatchWith["ExponentPushToken[3]"] = errors.New("connection reset")
	var registered []string
	for i := 0; i < 6; i++ {
		registered = append(registered, fmt.Sprintf("ExponentPushToken[%d]", i))
	}
	tokens := mocks.NewTokenStore(registered...)
	tickets := mocks.NewTicketStore()

	result, err := NewDispatcher(gateway, tokens, tickets, 2).Dispatch(context.Background(), salePost)
	require.NoError(t, err)

	assert.Equal(t, 3, gateway.SendCalls)
	assert.Equal(t, 4, result.Sent)
	assert.Equal(t, 2, result.Unsent)
	assert.Equal(t, 4, result.Ticketed)
	assert.Equal(t, 4, len(tickets.Tickets))
	for _, ticket := range tickets.Tickets {
		assert.NotContains(t, []string{"ExponentPushToken[2]", "ExponentPushToken[3]"}, ticket.OriginalPushToken)
	}
	// Nothing is deleted for a failed batch
	assert.Equal(t, 6, len(tokens.Tokens))
}

func TestDispatchOneTicketPerAcceptedMessage(t *testing.T) {
	gateway := mocks.NewGateway()
	gateway.ChunkSize = 3
	var registered []string
	for i := 0; i < 10; i++ {
		registered = append(registered, fmt.Sprintf("ExponentPushToken[%d]", i))
	}
	// The same device registered by a second user
	registered = append(registered, "ExponentPushToken[0]")
	tickets := mocks.NewTicketStore()

	result, err := NewDispatcher(gateway, mocks.NewTokenStore(registered...), tickets, 0).Dispatch(context.Background(), salePost)
	require.NoError(t, err)

	assert.Equal(t, 10, result.Ticketed)
	assert.Equal(t, 1, tickets.CreateCalls)
	seen := map[string]bool{}
	for _, ticket := range tickets.Tickets {
		assert.False(t, seen[ticket.OriginalPushToken], ticket.OriginalPushToken)
		seen[ticket.OriginalPushToken] = true
		assert.Equal(t, dbmodels.TicketPendingReceipt, ticket.Status)
	}
}

func TestDispatchUnmatchedResultsAreSkipped(t *testing.T) {
	gateway := mocks.NewGateway()
	gateway.ExtraResults = 2
	tickets := mocks.NewTicketStore()

	result, err := NewDispatcher(gateway, mocks.NewTokenStore("ExponentPushToken[a]"), tickets, 0).Dispatch(context.Background(), salePost)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Ticketed)
	assert.Equal(t, 1, len(tickets.Tickets))
}

func TestDispatchTokenLoadFailure(t *testing.T) {
	tokens := mocks.NewTokenStore()
	tokens.GetErr = errors.New("db down")

	_, err := NewDispatcher(mocks.NewGateway(), tokens, mocks.NewTicketStore(), 0).Dispatch(context.Background(), salePost)
	assert.ErrorIs(t, err, tokens.GetErr)
}

func TestDispatchTicketWriteFailureStillDeletesTokens(t *testing.T) {
	gateway := mocks.NewGateway()
	gateway.Rejections["ExponentPushToken[gone]"] = models.DeviceNotRegistered
	tokens := mocks.NewTokenStore("ExponentPushToken[ok]", "ExponentPushToken[gone]")
	tickets := mocks.NewTicketStore()
	tickets.CreateErr = errors.New("insert failed")

	_, err := NewDispatcher(gateway, tokens, tickets, 0).Dispatch(context.Background(), salePost)
	assert.ErrorIs(t, err, tickets.CreateErr)
	assert.False(t, tokens.Has("ExponentPushToken[gone]"))
}

func TestDispatchTokenDeleteFailureStillSavesTickets(t *testing.T) {
	gateway := mocks.NewGateway()
	gateway.Rejections["ExponentPushToken[gone]"] = models.DeviceNotRegistered
	tokens := mocks.NewTokenStore("ExponentPushToken[ok]", "ExponentPushToken[gone]")
	tokens.DeleteErr = errors.New("delete failed")
	tickets := mocks.NewTicketStore()

	_, err := NewDispatcher(gateway, tokens, tickets, 0).Dispatch(context.Background(), salePost)
	assert.ErrorIs(t, err, tokens.DeleteErr)
	assert.Equal(t, 1, len(tickets.Tickets))
}
