package push

import (
	"context"
	"errors"
	"fmt"

	"github.com/loyaltyapp/push-server/models"
	"github.com/loyaltyapp/push-server/models/dbmodels"
	"k8s.io/klog/v2"
)

const defaultPostBody = "A new post has been published!"

// Dispatcher fans one new post out to every registered device
type Dispatcher struct {
	Gateway     Gateway
	Tokens      TokenStore
	Tickets     TicketStore
	Concurrency int
}

func NewDispatcher(gateway Gateway, tokens TokenStore, tickets TicketStore, concurrency int) *Dispatcher {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Dispatcher{Gateway: gateway, Tokens: tokens, Tickets: tickets, Concurrency: concurrency}
}

// Dispatch sends the post to all valid tokens. Per-batch gateway failures are
// logged and counted; only storage failures are returned as errors.
func (d *Dispatcher) Dispatch(ctx context.Context, post models.PostRecord) (*models.DispatchResult, error) {
	rows, err := d.Tokens.GetAllTokens(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading push tokens: %w", err)
	}
	result := &models.DispatchResult{Success: true, Tickets: []dbmodels.PushTicket{}}
	if len(rows) == 0 {
		klog.Infof("No push tokens found for post %s", post.ID)
		result.Message = "No push tokens to send to."
		return result, nil
	}

	messages := d.buildMessages(post, rows, result)
	if len(messages) == 0 {
		klog.Infof("No valid push tokens for post %s", post.ID)
		result.Message = "No valid push tokens."
		return result, nil
	}

	batches := d.Gateway.ChunkMessages(messages)
	klog.Infof("Sending post %s to %d devices in %d batches", post.ID, len(messages), len(batches))
	outcomes := fanOut(ctx, batches, d.Concurrency, d.Gateway.SendBatch)

	var tokensToDelete []string
	for _, outcome := range outcomes {
		if outcome.err != nil {
			klog.Errorf("Error sending push batch %d for post %s: %v", outcome.index, post.ID, outcome.err)
			result.Unsent += len(outcome.batch)
			continue
		}
		result.Sent += len(outcome.batch)
		for i, ticket := range outcome.result {
			if i >= len(outcome.batch) {
				// Nothing to tie the ticket back to, so no receipt could ever prune a token
				klog.Warningf("Push batch %d for post %s returned result %d with no matching message, skipping", outcome.index, post.ID, i)
				continue
			}
			token := outcome.batch[i].To
			switch {
			case ticket.Ok() && ticket.ID != "":
				result.Tickets = append(result.Tickets, dbmodels.PushTicket{
					TicketID:          ticket.ID,
					PostID:            post.ID,
					Status:            dbmodels.TicketPendingReceipt,
					OriginalPushToken: token,
				})
			case ticket.Ok():
				klog.Warningf("Push ticket for %s accepted without an id, skipping", shortToken(token))
			case ticket.DeviceNotRegistered():
				klog.Infof("Push token %s is no longer registered", shortToken(token))
				tokensToDelete = append(tokensToDelete, token)
				result.Rejected++
			default:
				klog.Warningf("Push to %s rejected: %s (%s)", shortToken(token), ticket.ErrorReason(), ticket.Message)
				result.Rejected++
			}
		}
	}
	result.Ticketed = len(result.Tickets)

	// Both writes are idempotent and independent; neither failure blocks the other
	var ticketErr, deleteErr error
	if len(result.Tickets) > 0 {
		if ticketErr = d.Tickets.CreateTickets(ctx, result.Tickets); ticketErr != nil {
			ticketErr = fmt.Errorf("saving push tickets: %w", ticketErr)
		} else {
			klog.Infof("%d push tickets saved for post %s", len(result.Tickets), post.ID)
		}
	}
	if len(tokensToDelete) > 0 {
		deleted, err := d.Tokens.DeleteTokens(ctx, tokensToDelete)
		if err != nil {
			deleteErr = fmt.Errorf("deleting unregistered tokens: %w", err)
		} else {
			klog.Infof("Deleted %d unregistered push tokens", deleted)
			result.TokensDeleted = int(deleted)
		}
	}
	if err := errors.Join(ticketErr, deleteErr); err != nil {
		return nil, err
	}
	return result, nil
}

// buildMessages dedupes tokens and drops the ones the gateway could never accept.
// Malformed tokens are not deleted: they were never registered with the gateway.
func (d *Dispatcher) buildMessages(post models.PostRecord, rows []dbmodels.PushToken, result *models.DispatchResult) []models.PushMessage {
	body := post.Details
	if body == "" {
		body = defaultPostBody
	}
	seen := make(map[string]bool, len(rows))
	messages := make([]models.PushMessage, 0, len(rows))
	for _, row := range rows {
		if seen[row.PushToken] {
			continue
		}
		seen[row.PushToken] = true
		if !d.Gateway.IsValidToken(row.PushToken) {
			klog.Warningf("Push token %s is not a valid token for this gateway", shortToken(row.PushToken))
			result.Skipped++
			continue
		}
		messages = append(messages, models.PushMessage{
			To:    row.PushToken,
			Title: post.Title,
			Body:  body,
			Sound: "default",
			Data: map[string]string{
				"postId": post.ID,
				"type":   models.NotificationTypeNewPost,
			},
		})
	}
	return messages
}
