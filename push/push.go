// Package push sends post notifications through a push gateway and later
// reconciles the gateway's delivery receipts.
//
// Both halves run to completion per invocation and keep no state between
// runs: everything they need is read from the token and ticket stores.
package push

import (
	"context"

	"github.com/loyaltyapp/push-server/models"
	"github.com/loyaltyapp/push-server/models/dbmodels"
)

// Gateway is the push provider: Expo, legacy FCM or FCM v1
type Gateway interface {
	IsValidToken(token string) bool
	ChunkMessages(messages []models.PushMessage) [][]models.PushMessage
	// SendBatch returns one result per message, in order
	SendBatch(ctx context.Context, batch []models.PushMessage) ([]models.PushResult, error)
	ChunkReceiptIDs(ids []string) [][]string
	// GetReceipts omits ids the gateway has no receipt for
	GetReceipts(ctx context.Context, ids []string) (map[string]models.PushResult, error)
}

// TokenStore holds the registered device tokens
type TokenStore interface {
	GetAllTokens(ctx context.Context) ([]dbmodels.PushToken, error)
	DeleteTokens(ctx context.Context, tokens []string) (int64, error)
}

// TicketStore holds the push tickets awaiting or holding a receipt
type TicketStore interface {
	CreateTickets(ctx context.Context, tickets []dbmodels.PushTicket) error
	GetTicketsByStatus(ctx context.Context, status dbmodels.TicketStatus) ([]dbmodels.PushTicket, error)
	UpdateTicketStatuses(ctx context.Context, updates []models.TicketUpdate) error
}

// DefaultConcurrency bounds in-flight gateway requests per invocation
const DefaultConcurrency = 4

// shortToken keeps logs from carrying whole device tokens
func shortToken(token string) string {
	if len(token) <= 24 {
		return token
	}
	return token[:24] + "..."
}
