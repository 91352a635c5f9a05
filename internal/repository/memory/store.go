// Package memory is an in-process implementation of the repository contracts.
// It backs STORAGE_DRIVER=memory and the service and HTTP tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"vizintel/api/internal/common"
	"vizintel/api/internal/model"
)

type Store struct {
	mu       sync.RWMutex
	accounts map[string]model.Account
	records  map[string]model.Record
	tickets  map[string]model.Ticket
	traffic  map[time.Time]int64
	now      func() time.Time
}

func NewStore() *Store {
	return &Store{
		accounts: map[string]model.Account{},
		records:  map[string]model.Record{},
		tickets:  map[string]model.Ticket{},
		traffic:  map[time.Time]int64{},
		now:      time.Now,
	}
}

// Accounts

func (s *Store) CreateAccount(_ context.Context, account *model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertAccount(account)
}

func (s *Store) CreateFirstAccount(_ context.Context, account *model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.accounts {
		if existing.Role == account.Role {
			return common.ErrForbidden
		}
	}
	return s.insertAccount(account)
}

// insertAccount requires s.mu held for writing.
func (s *Store) insertAccount(account *model.Account) error {
	for _, existing := range s.accounts {
		if existing.Role == account.Role && existing.Email == account.Email {
			return common.ErrAlreadyExists
		}
	}
	account.ID = uuid.NewString()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = s.now().UTC()
	}
	s.accounts[account.ID] = *account
	return nil
}

func (s *Store) GetAccountByEmail(_ context.Context, role model.Role, email string) (model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.accounts {
		if a.Role == role && a.Email == email {
			return a, nil
		}
	}
	return model.Account{}, common.ErrNotFound
}

func (s *Store) GetAccountByID(_ context.Context, id string) (model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return model.Account{}, common.ErrNotFound
	}
	return a, nil
}

func (s *Store) SearchAccounts(_ context.Context, role model.Role, emailLike, nameLike string) ([]model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []model.Account{}
	for _, a := range s.accounts {
		if a.Role != role {
			continue
		}
		if !containsFold(a.Email, emailLike) || !containsFold(a.Name, nameLike) {
			continue
		}
		out = append(out, a)
	}
	sortAccounts(out)
	return out, nil
}

func (s *Store) ListAccounts(ctx context.Context, role model.Role) ([]model.Account, error) {
	return s.SearchAccounts(ctx, role, "", "")
}

func (s *Store) UpdateAccount(_ context.Context, account model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[account.ID]; !ok {
		return common.ErrNotFound
	}
	s.accounts[account.ID] = account
	return nil
}

func (s *Store) CountAccounts(_ context.Context, role model.Role) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, a := range s.accounts {
		if a.Role == role {
			n++
		}
	}
	return n, nil
}

// Records

func (s *Store) CreateRecord(_ context.Context, record *model.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record.ID = uuid.NewString()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = s.now().UTC()
	}
	stored := *record
	stored.Entries = cloneEntries(record.Entries)
	s.records[record.ID] = stored
	return nil
}

func (s *Store) ListRecordsByOwner(_ context.Context, ownerID string) ([]model.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []model.Record{}
	for _, r := range s.records {
		if r.OwnerID == ownerID {
			r.Entries = cloneEntries(r.Entries)
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) ListRecordSummaries(_ context.Context) ([]model.RecordSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []model.RecordSummary{}
	for _, r := range s.records {
		out = append(out, model.RecordSummary{ID: r.ID, OwnerID: r.OwnerID, FileName: r.FileName, CreatedAt: r.CreatedAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) GetOwnedRecord(_ context.Context, id, ownerID string) (model.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	if !ok || r.OwnerID != ownerID {
		return model.Record{}, common.ErrNotFound
	}
	r.Entries = cloneEntries(r.Entries)
	return r, nil
}

func (s *Store) ReplaceRecordEntries(_ context.Context, id, ownerID string, entries []model.Entry, at time.Time) (model.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok || r.OwnerID != ownerID {
		return model.Record{}, common.ErrNotFound
	}
	r.Entries = cloneEntries(entries)
	r.CreatedAt = at.UTC()
	s.records[id] = r
	r.Entries = cloneEntries(r.Entries)
	return r, nil
}

func (s *Store) DeleteOwnedRecord(_ context.Context, id, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok || r.OwnerID != ownerID {
		return common.ErrNotFound
	}
	delete(s.records, id)
	return nil
}

func (s *Store) CountRecords(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.records)), nil
}

// Tickets

func (s *Store) CreateTicket(_ context.Context, ticket *model.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ticket.ID = uuid.NewString()
	if ticket.Status == "" {
		ticket.Status = model.TicketPending
	}
	if ticket.CreatedAt.IsZero() {
		ticket.CreatedAt = s.now().UTC()
	}
	s.tickets[ticket.ID] = *ticket
	return nil
}

func (s *Store) ListTicketsBySubmitter(_ context.Context, submitterID string) ([]model.Ticket, error) {
	return s.listTickets(func(t model.Ticket) bool { return t.SubmitterID == submitterID }), nil
}

func (s *Store) ListTickets(_ context.Context) ([]model.Ticket, error) {
	return s.listTickets(func(model.Ticket) bool { return true }), nil
}

func (s *Store) listTickets(keep func(model.Ticket) bool) []model.Ticket {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []model.Ticket{}
	for _, t := range s.tickets {
		if keep(t) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (s *Store) SetTicketStatus(_ context.Context, id string, status model.TicketStatus) (model.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	if !ok {
		return model.Ticket{}, common.ErrNotFound
	}
	t.Status = status
	s.tickets[id] = t
	return t, nil
}

func (s *Store) DeleteTicket(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tickets[id]; !ok {
		return common.ErrNotFound
	}
	delete(s.tickets, id)
	return nil
}

// Traffic

func (s *Store) IncrementTraffic(_ context.Context, day time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.traffic[model.Day(day)]++
	return nil
}

func (s *Store) TrafficBetween(_ context.Context, from, to time.Time) ([]model.TrafficDay, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []model.TrafficDay{}
	for day, count := range s.traffic {
		if day.Before(from) || day.After(to) {
			continue
		}
		out = append(out, model.TrafficDay{Day: day, Count: count})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day.Before(out[j].Day) })
	return out, nil
}

func (s *Store) DeleteTrafficBefore(_ context.Context, day time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for d := range s.traffic {
		if d.Before(day) {
			delete(s.traffic, d)
			n++
		}
	}
	return n, nil
}

func containsFold(value, sub string) bool {
	if sub == "" {
		return true
	}
	return strings.Contains(strings.ToLower(value), strings.ToLower(sub))
}

func sortAccounts(accounts []model.Account) {
	sort.Slice(accounts, func(i, j int) bool {
		if accounts[i].CreatedAt.Equal(accounts[j].CreatedAt) {
			return accounts[i].Email < accounts[j].Email
		}
		return accounts[i].CreatedAt.Before(accounts[j].CreatedAt)
	})
}

func cloneEntries(entries []model.Entry) []model.Entry {
	if entries == nil {
		return []model.Entry{}
	}
	out := make([]model.Entry, len(entries))
	for i, e := range entries {
		out[i] = append(model.Entry(nil), e...)
	}
	return out
}
