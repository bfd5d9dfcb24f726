package dbmodels

import (
	"gorm.io/datatypes"
)

type TicketStatus string

const (
	TicketPendingReceipt TicketStatus = "pending_receipt"
	TicketOk             TicketStatus = "ok"
	TicketError          TicketStatus = "error"
)

// Terminal reports whether the ticket already has its receipt outcome
func (s TicketStatus) Terminal() bool {
	return s == TicketOk || s == TicketError
}

// PushTicket tracks one message accepted by the push gateway until its receipt is seen.
// OriginalPushToken is a copy of the destination, not a reference: the token row
// may be gone by the time the receipt arrives.
type PushTicket struct {
	Base
	TicketID          string         `json:"ticket_id" gorm:"uniqueIndex;not null"`
	PostID            string         `json:"post_id" gorm:"index;not null"`
	Status            TicketStatus   `json:"status" gorm:"index;size:32;not null;default:pending_receipt"`
	OriginalPushToken string         `json:"original_expo_push_token" gorm:"column:original_expo_push_token;not null"`
	ErrorDetails      datatypes.JSON `json:"error_details,omitempty" gorm:"type:jsonb"`
}

func (PushTicket) TableName() string {
	return "push_tickets_log"
}
