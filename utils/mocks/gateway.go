package mocks

import (
	"context"
	"strings"
	"sync"

	"github.com/loyaltyapp/push-server/models"
)

// Gateway is an in-memory push gateway.
// Tokens starting with "ExponentPushToken[" are valid. Send outcomes and receipts
// are configured per token / ticket id; unknown tokens are accepted.
type Gateway struct {
	mu sync.Mutex

	ChunkSize        int
	ReceiptChunkSize int

	// Rejections maps a token to the error reason returned on submission
	Rejections map[string]string
	// FailBatchWith fails every batch containing the token
	FailBatchWith map[string]error
	// Receipts keyed by ticket id; missing ids get no receipt
	Receipts map[string]models.PushResult
	// FailReceiptsWith fails every receipt query containing the id
	FailReceiptsWith map[string]error
	// ExtraResults appends results with no matching message to every batch
	ExtraResults int

	Sent         []models.PushMessage
	ReceiptCalls int
	SendCalls    int
}

func NewGateway() *Gateway {
	return &Gateway{
		ChunkSize:        100,
		ReceiptChunkSize: 300,
		Rejections:       map[string]string{},
		FailBatchWith:    map[string]error{},
		Receipts:         map[string]models.PushResult{},
		FailReceiptsWith: map[string]error{},
	}
}

func (g *Gateway) IsValidToken(token string) bool {
	return strings.HasPrefix(token, "ExponentPushToken[") && strings.HasSuffix(token, "]")
}

func (g *Gateway) ChunkMessages(messages []models.PushMessage) [][]models.PushMessage {
	return chunk(messages, g.ChunkSize)
}

func (g *Gateway) ChunkReceiptIDs(ids []string) [][]string {
	return chunk(ids, g.ReceiptChunkSize)
}

func (g *Gateway) SendBatch(ctx context.Context, batch []models.PushMessage) ([]models.PushResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.SendCalls++
	for _, msg := range batch {
		if err, ok := g.FailBatchWith[msg.To]; ok {
			return nil, err
		}
	}
	results := make([]models.PushResult, 0, len(batch)+g.ExtraResults)
	for _, msg := range batch {
		g.Sent = append(g.Sent, msg)
		if reason, ok := g.Rejections[msg.To]; ok {
			results = append(results, models.PushResult{
				Status:  models.PushStatusError,
				Message: reason,
				Details: &models.PushErrorDetails{Error: reason},
			})
			continue
		}
		results = append(results, models.PushResult{Status: models.PushStatusOk, ID: TicketID(msg.To)})
	}
	for i := 0; i < g.ExtraResults; i++ {
		results = append(results, models.PushResult{Status: models.PushStatusOk, ID: "orphan"})
	}
	return results, nil
}

func (g *Gateway) GetReceipts(ctx context.Context, ids []string) (map[string]models.PushResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ReceiptCalls++
	for _, id := range ids {
		if err, ok := g.FailReceiptsWith[id]; ok {
			return nil, err
		}
	}
	receipts := map[string]models.PushResult{}
	for _, id := range ids {
		if receipt, ok := g.Receipts[id]; ok {
			receipts[id] = receipt
		}
	}
	return receipts, nil
}

// TicketID is the deterministic ticket id the mock gateway assigns to a token
func TicketID(token string) string {
	return "ticket:" + token
}

func chunk[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = len(items)
	}
	var chunks [][]T
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[start:end])
	}
	return chunks
}
