package services

import (
	"context"
	"strings"

	"vizintel/api/internal/common"
	"vizintel/api/internal/logging"
	"vizintel/api/internal/model"
	"vizintel/api/internal/repository"
)

type Tickets struct {
	tickets repository.TicketRepository
	log     logging.Logger
}

func NewTickets(tickets repository.TicketRepository, log logging.Logger) *Tickets {
	return &Tickets{tickets: tickets, log: log.With("module", "tickets")}
}

// Create files a ticket for submitterID. The id is taken as given.
func (s *Tickets) Create(ctx context.Context, submitterID, message string) (model.Ticket, error) {
	if anyBlank(submitterID, message) {
		return model.Ticket{}, common.Invalid("User ID and message are required")
	}
	ticket := model.Ticket{SubmitterID: strings.TrimSpace(submitterID), Message: message, Status: model.TicketPending}
	if err := s.tickets.CreateTicket(ctx, &ticket); err != nil {
		return model.Ticket{}, err
	}
	s.log.Info(ctx, "ticket created", "ticket_id", ticket.ID, "submitter_id", ticket.SubmitterID)
	return ticket, nil
}

func (s *Tickets) ListBySubmitter(ctx context.Context, submitterID string) ([]model.Ticket, error) {
	return s.tickets.ListTicketsBySubmitter(ctx, submitterID)
}

func (s *Tickets) ListAll(ctx context.Context) ([]model.Ticket, error) {
	return s.tickets.ListTickets(ctx)
}

// SetStatus rejects values outside the three known statuses before touching
// storage.
func (s *Tickets) SetStatus(ctx context.Context, id string, status model.TicketStatus) (model.Ticket, error) {
	if !status.Valid() {
		return model.Ticket{}, common.ErrInvalidStatus
	}
	ticket, err := s.tickets.SetTicketStatus(ctx, id, status)
	if err != nil {
		return model.Ticket{}, err
	}
	s.log.Info(ctx, "ticket status changed", "ticket_id", id, "status", string(status))
	return ticket, nil
}

func (s *Tickets) Delete(ctx context.Context, id string) error {
	if err := s.tickets.DeleteTicket(ctx, id); err != nil {
		return err
	}
	s.log.Info(ctx, "ticket deleted", "ticket_id", id)
	return nil
}
