package net

import (
	"errors"

	"github.com/loyaltyapp/push-server/models"
)

// ErrGatewayStatus wraps any non-2xx answer from a push gateway
var ErrGatewayStatus = errors.New("push gateway returned an error status")

// chunk splits items into slices of at most size elements, preserving order
func chunk[T any](items []T, size int) [][]T {
	if len(items) == 0 {
		return nil
	}
	if size <= 0 {
		size = len(items)
	}
	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[start:end])
	}
	return chunks
}

// acceptedReceipts is the receipt lookup for FCM style gateways, where a
// message id is only issued once the platform push service accepted it.
func acceptedReceipts(ids []string) map[string]models.PushResult {
	receipts := make(map[string]models.PushResult, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		receipts[id] = models.PushResult{Status: models.PushStatusOk}
	}
	return receipts
}
