package mocks

import (
	"context"
	"sync"

	"github.com/loyaltyapp/push-server/models"
	"github.com/loyaltyapp/push-server/models/dbmodels"
)

// TokenStore is an in-memory user_push_tokens table
type TokenStore struct {
	mu     sync.Mutex
	Tokens []dbmodels.PushToken

	GetErr    error
	DeleteErr error

	DeleteCalls int
}

func NewTokenStore(tokens ...string) *TokenStore {
	store := &TokenStore{}
	for i, token := range tokens {
		store.Tokens = append(store.Tokens, dbmodels.PushToken{UserID: string(rune('a' + i)), PushToken: token})
	}
	return store
}

func (s *TokenStore) GetAllTokens(ctx context.Context) ([]dbmodels.PushToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.GetErr != nil {
		return nil, s.GetErr
	}
	return append([]dbmodels.PushToken{}, s.Tokens...), nil
}

func (s *TokenStore) DeleteTokens(ctx context.Context, tokens []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.DeleteCalls++
	if s.DeleteErr != nil {
		return 0, s.DeleteErr
	}
	remove := map[string]bool{}
	for _, token := range tokens {
		remove[token] = true
	}
	var kept []dbmodels.PushToken
	var deleted int64
	for _, row := range s.Tokens {
		if remove[row.PushToken] {
			deleted++
			continue
		}
		kept = append(kept, row)
	}
	s.Tokens = kept
	return deleted, nil
}

func (s *TokenStore) AddOrUpdateToken(ctx context.Context, userID string, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.Tokens {
		if row.UserID == userID && row.PushToken == token {
			return nil
		}
	}
	s.Tokens = append(s.Tokens, dbmodels.PushToken{UserID: userID, PushToken: token})
	return nil
}

func (s *TokenStore) GetTokensForUser(ctx context.Context, userID string) ([]dbmodels.PushToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.GetErr != nil {
		return nil, s.GetErr
	}
	var found []dbmodels.PushToken
	for _, row := range s.Tokens {
		if row.UserID == userID {
			found = append(found, row)
		}
	}
	return found, nil
}

func (s *TokenStore) Has(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.Tokens {
		if row.PushToken == token {
			return true
		}
	}
	return false
}

// TicketStore is an in-memory push_tickets_log table. Updates only apply to
// pending tickets, like the guarded UPDATE in the gorm repository.
type TicketStore struct {
	mu      sync.Mutex
	Tickets []dbmodels.PushTicket

	CreateErr error
	GetErr    error
	UpdateErr error

	CreateCalls int
	UpdateCalls int
	// Transitions counts status changes per ticket id
	Transitions map[string]int
}

func NewTicketStore(tickets ...dbmodels.PushTicket) *TicketStore {
	return &TicketStore{Tickets: tickets, Transitions: map[string]int{}}
}

func (s *TicketStore) CreateTickets(ctx context.Context, tickets []dbmodels.PushTicket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CreateCalls++
	if s.CreateErr != nil {
		return s.CreateErr
	}
	s.Tickets = append(s.Tickets, tickets...)
	return nil
}

func (s *TicketStore) GetTicketsByStatus(ctx context.Context, status dbmodels.TicketStatus) ([]dbmodels.PushTicket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.GetErr != nil {
		return nil, s.GetErr
	}
	var found []dbmodels.PushTicket
	for _, ticket := range s.Tickets {
		if ticket.Status == status {
			found = append(found, ticket)
		}
	}
	return found, nil
}

func (s *TicketStore) UpdateTicketStatuses(ctx context.Context, updates []models.TicketUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.UpdateCalls++
	if s.UpdateErr != nil {
		return s.UpdateErr
	}
	if s.Transitions == nil {
		s.Transitions = map[string]int{}
	}
	for _, update := range updates {
		if !update.Status.Terminal() {
			continue
		}
		for i := range s.Tickets {
			if s.Tickets[i].TicketID != update.TicketID || s.Tickets[i].Status != dbmodels.TicketPendingReceipt {
				continue
			}
			s.Tickets[i].Status = update.Status
			s.Tickets[i].ErrorDetails = update.ErrorDetails
			s.Transitions[update.TicketID]++
		}
	}
	return nil
}

func (s *TicketStore) Get(ticketID string) (dbmodels.PushTicket, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ticket := range s.Tickets {
		if ticket.TicketID == ticketID {
			return ticket, true
		}
	}
	return dbmodels.PushTicket{}, false
}

// Profiles maps user id to role
type Profiles map[string]string

func (p Profiles) GetRole(ctx context.Context, userID string) (string, error) {
	return p[userID], nil
}
