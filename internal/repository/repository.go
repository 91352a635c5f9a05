// Package repository declares the storage contracts. Implementations live in
// the memory and postgres subpackages. Missing rows and ownership mismatches
// are both reported as common.ErrNotFound.
package repository

import (
	"context"
	"time"

	"vizintel/api/internal/model"
)

type AccountRepository interface {
	// CreateAccount fills in ID and CreatedAt. Duplicate (role, email) yields
	// common.ErrAlreadyExists.
	CreateAccount(ctx context.Context, account *model.Account) error
	// CreateFirstAccount creates account only while no account holds its role,
	// checking and inserting atomically. Otherwise it yields common.ErrForbidden.
	CreateFirstAccount(ctx context.Context, account *model.Account) error
	GetAccountByEmail(ctx context.Context, role model.Role, email string) (model.Account, error)
	GetAccountByID(ctx context.Context, id string) (model.Account, error)
	// SearchAccounts matches case-insensitive substrings; empty filters match all.
	SearchAccounts(ctx context.Context, role model.Role, emailLike, nameLike string) ([]model.Account, error)
	ListAccounts(ctx context.Context, role model.Role) ([]model.Account, error)
	UpdateAccount(ctx context.Context, account model.Account) error
	CountAccounts(ctx context.Context, role model.Role) (int64, error)
}

type RecordRepository interface {
	// CreateRecord fills in ID and, when zero, CreatedAt.
	CreateRecord(ctx context.Context, record *model.Record) error
	ListRecordsByOwner(ctx context.Context, ownerID string) ([]model.Record, error)
	ListRecordSummaries(ctx context.Context) ([]model.RecordSummary, error)
	GetOwnedRecord(ctx context.Context, id, ownerID string) (model.Record, error)
	ReplaceRecordEntries(ctx context.Context, id, ownerID string, entries []model.Entry, at time.Time) (model.Record, error)
	DeleteOwnedRecord(ctx context.Context, id, ownerID string) error
	CountRecords(ctx context.Context) (int64, error)
}

type TicketRepository interface {
	CreateTicket(ctx context.Context, ticket *model.Ticket) error
	ListTicketsBySubmitter(ctx context.Context, submitterID string) ([]model.Ticket, error)
	ListTickets(ctx context.Context) ([]model.Ticket, error)
	SetTicketStatus(ctx context.Context, id string, status model.TicketStatus) (model.Ticket, error)
	DeleteTicket(ctx context.Context, id string) error
}

type TrafficRepository interface {
	IncrementTraffic(ctx context.Context, day time.Time) error
	// TrafficBetween returns days in [from, to], ordered by day.
	TrafficBetween(ctx context.Context, from, to time.Time) ([]model.TrafficDay, error)
	DeleteTrafficBefore(ctx context.Context, day time.Time) (int64, error)
}

// Repositories bundles every store the services need.
type Repositories interface {
	AccountRepository
	RecordRepository
	TicketRepository
	TrafficRepository
}
