package models

import (
	"github.com/loyaltyapp/push-server/models/dbmodels"
	"gorm.io/datatypes"
)

// DispatchResult summarises one dispatcher run
type DispatchResult struct {
	Success       bool                  `json:"success"`
	Duplicate     bool                  `json:"duplicate,omitempty"`
	Message       string                `json:"message,omitempty"`
	Sent          int                   `json:"sent"`
	Skipped       int                   `json:"skipped"`
	Ticketed      int                   `json:"ticketed"`
	Rejected      int                   `json:"rejected"`
	Unsent        int                   `json:"unsent"`
	TokensDeleted int                   `json:"tokens_deleted"`
	Tickets       []dbmodels.PushTicket `json:"tickets"`
}

// ReconcileResult summarises one receipt reconciliation run
type ReconcileResult struct {
	Message           string `json:"message"`
	Processed         int    `json:"processed"`
	Ok                int    `json:"ok"`
	Error             int    `json:"error"`
	StillPending      int    `json:"still_pending"`
	TokensDeactivated int    `json:"tokens_deactivated"`
}

// TicketUpdate moves one pending ticket to a terminal status
type TicketUpdate struct {
	TicketID     string
	Status       dbmodels.TicketStatus
	ErrorDetails datatypes.JSON
}
