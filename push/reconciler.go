package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/loyaltyapp/push-server/models"
	"github.com/loyaltyapp/push-server/models/dbmodels"
	"gorm.io/datatypes"
	"k8s.io/klog/v2"
)

// Reconciler resolves pending tickets against the gateway's delivery receipts.
// Tickets with no receipt yet, or whose receipt query failed, stay pending and
// are picked up again on the next run.
type Reconciler struct {
	Gateway     Gateway
	Tokens      TokenStore
	Tickets     TicketStore
	Concurrency int
}

func NewReconciler(gateway Gateway, tokens TokenStore, tickets TicketStore, concurrency int) *Reconciler {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Reconciler{Gateway: gateway, Tokens: tokens, Tickets: tickets, Concurrency: concurrency}
}

type receiptErrorDetails struct {
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

func (r *Reconciler) Reconcile(ctx context.Context) (*models.ReconcileResult, error) {
	pending, err := r.Tickets.GetTicketsByStatus(ctx, dbmodels.TicketPendingReceipt)
	if err != nil {
		return nil, fmt.Errorf("loading pending tickets: %w", err)
	}
	result := &models.ReconcileResult{}
	if len(pending) == 0 {
		result.Message = "No pending tickets to process."
		return result, nil
	}

	ids := make([]string, 0, len(pending))
	for _, ticket := range pending {
		ids = append(ids, ticket.TicketID)
	}
	batches := r.Gateway.ChunkReceiptIDs(ids)
	outcomes := fanOut(ctx, batches, r.Concurrency, r.Gateway.GetReceipts)

	receipts := make(map[string]models.PushResult, len(ids))
	for _, outcome := range outcomes {
		if outcome.err != nil {
			klog.Errorf("Error fetching push receipts batch %d (%d tickets): %v", outcome.index, len(outcome.batch), outcome.err)
			continue
		}
		for id, receipt := range outcome.result {
			receipts[id] = receipt
		}
	}

	var updates []models.TicketUpdate
	var tokensToDelete []string
	for _, ticket := range pending {
		receipt, ok := receipts[ticket.TicketID]
		if !ok {
			result.StillPending++
			continue
		}
		switch receipt.Status {
		case models.PushStatusOk:
			updates = append(updates, models.TicketUpdate{TicketID: ticket.TicketID, Status: dbmodels.TicketOk})
			result.Ok++
		case models.PushStatusError:
			klog.Warningf("Receipt error for ticket %s: %s (%s)", ticket.TicketID, receipt.ErrorReason(), receipt.Message)
			details, _ := json.Marshal(receiptErrorDetails{Error: receipt.ErrorReason(), Message: receipt.Message})
			updates = append(updates, models.TicketUpdate{
				TicketID:     ticket.TicketID,
				Status:       dbmodels.TicketError,
				ErrorDetails: datatypes.JSON(details),
			})
			if receipt.DeviceNotRegistered() && ticket.OriginalPushToken != "" {
				tokensToDelete = append(tokensToDelete, ticket.OriginalPushToken)
			}
			result.Error++
		default:
			klog.Warningf("Unknown receipt status %q for ticket %s, leaving pending", receipt.Status, ticket.TicketID)
			result.StillPending++
		}
	}
	result.Processed = result.Ok + result.Error

	var updateErr, deleteErr error
	if len(updates) > 0 {
		if updateErr = r.Tickets.UpdateTicketStatuses(ctx, updates); updateErr != nil {
			updateErr = fmt.Errorf("updating ticket statuses: %w", updateErr)
		}
	}
	if len(tokensToDelete) > 0 {
		klog.Infof("Deactivating %d invalid push tokens", len(tokensToDelete))
		deleted, err := r.Tokens.DeleteTokens(ctx, tokensToDelete)
		if err != nil {
			deleteErr = fmt.Errorf("deactivating tokens: %w", err)
		} else {
			result.TokensDeactivated = int(deleted)
		}
	}
	if err := errors.Join(updateErr, deleteErr); err != nil {
		return nil, err
	}

	result.Message = fmt.Sprintf("Processed %d tickets (%d ok, %d error). Deactivated %d tokens. %d tickets still pending.",
		result.Processed, result.Ok, result.Error, result.TokensDeactivated, result.StillPending)
	klog.Info(result.Message)
	return result, nil
}
