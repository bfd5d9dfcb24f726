package repository

import (
	"context"

	"github.com/loyaltyapp/push-server/models"
	"github.com/loyaltyapp/push-server/models/dbmodels"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const ticketInsertBatchSize = 500

// Repository for push_tickets_log
type PushTicketRepo struct {
	DB *gorm.DB
}

// CreateTickets inserts all tickets in one write. A ticket id that is already
// logged is left as is, so replaying a dispatch cannot reset a resolved ticket.
func (repo *PushTicketRepo) CreateTickets(ctx context.Context, tickets []dbmodels.PushTicket) error {
	if len(tickets) == 0 {
		return nil
	}
	return repo.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "ticket_id"}},
		DoNothing: true,
	}).CreateInBatches(&tickets, ticketInsertBatchSize).Error
}

func (repo *PushTicketRepo) GetTicketsByStatus(ctx context.Context, status dbmodels.TicketStatus) ([]dbmodels.PushTicket, error) {
	var tickets []dbmodels.PushTicket
	if err := repo.DB.WithContext(ctx).Where("status = ?", status).Order("created_at").Find(&tickets).Error; err != nil {
		return nil, err
	}
	return tickets, nil
}

// UpdateTicketStatuses applies the receipt outcomes in one transaction. Only
// pending tickets move, and only to a terminal status.
func (repo *PushTicketRepo) UpdateTicketStatuses(ctx context.Context, updates []models.TicketUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	var okIDs []string
	var failed []models.TicketUpdate
	for _, update := range updates {
		if !update.Status.Terminal() {
			continue
		}
		if update.Status == dbmodels.TicketOk {
			okIDs = append(okIDs, update.TicketID)
		} else {
			failed = append(failed, update)
		}
	}
	return repo.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		pending := func() *gorm.DB {
			return tx.Model(&dbmodels.PushTicket{}).Where("status = ?", dbmodels.TicketPendingReceipt)
		}
		if len(okIDs) > 0 {
			if err := pending().Where("ticket_id IN ?", okIDs).
				Update("status", dbmodels.TicketOk).Error; err != nil {
				return err
			}
		}
		// Error details differ per ticket
		for _, update := range failed {
			if err := pending().Where("ticket_id = ?", update.TicketID).
				Updates(map[string]interface{}{
					"status":        dbmodels.TicketError,
					"error_details": update.ErrorDetails,
				}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
