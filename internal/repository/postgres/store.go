// Package postgres implements the repository contracts over a pgx pool.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"vizintel/api/internal/common"
	"vizintel/api/internal/model"
)

const uniqueViolation = "23505"

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const accountColumns = `id::text, name, email, password_hash, school_name, suspended, origin, role, created_at`

func scanAccount(row pgx.Row) (model.Account, error) {
	var a model.Account
	var origin, role string
	err := row.Scan(&a.ID, &a.Name, &a.Email, &a.PasswordHash, &a.SchoolName, &a.Suspended, &origin, &role, &a.CreatedAt)
	a.Origin = model.Origin(origin)
	a.Role = model.Role(role)
	return a, mapErr(err)
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (s *Store) CreateAccount(ctx context.Context, account *model.Account) error {
	return insertAccount(ctx, s.pool, account)
}

// CreateFirstAccount holds a transaction-scoped advisory lock per role so
// concurrent callers cannot both observe an empty role.
func (s *Store) CreateFirstAccount(ctx context.Context, account *model.Account) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1::text))`, "vizintel:first-account:"+string(account.Role)); err != nil {
			return err
		}
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE role = $1)`, string(account.Role)).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return common.ErrForbidden
		}
		return insertAccount(ctx, tx, account)
	})
}

func insertAccount(ctx context.Context, db execer, account *model.Account) error {
	account.ID = uuid.NewString()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}
	_, err := db.Exec(ctx, `
		INSERT INTO accounts (id, name, email, password_hash, school_name, suspended, origin, role, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, account.ID, account.Name, account.Email, account.PasswordHash, account.SchoolName,
		account.Suspended, string(account.Origin), string(account.Role), account.CreatedAt)
	return mapErr(err)
}

func (s *Store) GetAccountByEmail(ctx context.Context, role model.Role, email string) (model.Account, error) {
	return scanAccount(s.pool.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE role = $1 AND email = $2
	`, string(role), email))
}

func (s *Store) GetAccountByID(ctx context.Context, id string) (model.Account, error) {
	if !validID(id) {
		return model.Account{}, common.ErrNotFound
	}
	return scanAccount(s.pool.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE id = $1
	`, id))
}

func (s *Store) SearchAccounts(ctx context.Context, role model.Role, emailLike, nameLike string) ([]model.Account, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE role = $1 AND email ILIKE $2 AND name ILIKE $3
		ORDER BY created_at, email
	`, string(role), likePattern(emailLike), likePattern(nameLike))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) ListAccounts(ctx context.Context, role model.Role) ([]model.Account, error) {
	return s.SearchAccounts(ctx, role, "", "")
}

func (s *Store) UpdateAccount(ctx context.Context, account model.Account) error {
	if !validID(account.ID) {
		return common.ErrNotFound
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE accounts
		SET name = $2, password_hash = $3, school_name = $4, suspended = $5
		WHERE id = $1
	`, account.ID, account.Name, account.PasswordHash, account.SchoolName, account.Suspended)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (s *Store) CountAccounts(ctx context.Context, role model.Role) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM accounts WHERE role = $1`, string(role)).Scan(&n)
	return n, err
}

func (s *Store) CreateRecord(ctx context.Context, record *model.Record) error {
	if !validID(record.OwnerID) {
		return common.ErrNotFound
	}
	raw, err := encodeEntries(record.Entries)
	if err != nil {
		return err
	}
	record.ID = uuid.NewString()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO records (id, owner_id, entries, file_name, source_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, record.ID, record.OwnerID, raw, record.FileName, record.SourceKey, record.CreatedAt)
	return mapErr(err)
}

const recordColumns = `id::text, owner_id::text, entries, file_name, source_key, created_at`

func scanRecord(row pgx.Row) (model.Record, error) {
	var r model.Record
	var raw []byte
	if err := row.Scan(&r.ID, &r.OwnerID, &raw, &r.FileName, &r.SourceKey, &r.CreatedAt); err != nil {
		return r, mapErr(err)
	}
	if err := json.Unmarshal(raw, &r.Entries); err != nil {
		return r, fmt.Errorf("decode entries of record %s: %w", r.ID, err)
	}
	if r.Entries == nil {
		r.Entries = []model.Entry{}
	}
	return r, nil
}

func (s *Store) ListRecordsByOwner(ctx context.Context, ownerID string) ([]model.Record, error) {
	if !validID(ownerID) {
		return []model.Record{}, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+recordColumns+`
		FROM records
		WHERE owner_id = $1
		ORDER BY created_at
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) ListRecordSummaries(ctx context.Context) ([]model.RecordSummary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id::text, owner_id::text, file_name, created_at
		FROM records
		ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.RecordSummary{}
	for rows.Next() {
		var r model.RecordSummary
		if err := rows.Scan(&r.ID, &r.OwnerID, &r.FileName, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) GetOwnedRecord(ctx context.Context, id, ownerID string) (model.Record, error) {
	if !validID(id) || !validID(ownerID) {
		return model.Record{}, common.ErrNotFound
	}
	return scanRecord(s.pool.QueryRow(ctx, `
		SELECT `+recordColumns+`
		FROM records
		WHERE id = $1 AND owner_id = $2
	`, id, ownerID))
}

func (s *Store) ReplaceRecordEntries(ctx context.Context, id, ownerID string, entries []model.Entry, at time.Time) (model.Record, error) {
	if !validID(id) || !validID(ownerID) {
		return model.Record{}, common.ErrNotFound
	}
	raw, err := encodeEntries(entries)
	if err != nil {
		return model.Record{}, err
	}
	return scanRecord(s.pool.QueryRow(ctx, `
		UPDATE records
		SET entries = $3, created_at = $4
		WHERE id = $1 AND owner_id = $2
		RETURNING `+recordColumns, id, ownerID, raw, at.UTC()))
}

func (s *Store) DeleteOwnedRecord(ctx context.Context, id, ownerID string) error {
	if !validID(id) || !validID(ownerID) {
		return common.ErrNotFound
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM records WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (s *Store) CountRecords(ctx context.Context) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM records`).Scan(&n)
	return n, err
}

const ticketColumns = `id::text, submitter_id, message, status, created_at`

func scanTicket(row pgx.Row) (model.Ticket, error) {
	var t model.Ticket
	var status string
	err := row.Scan(&t.ID, &t.SubmitterID, &t.Message, &status, &t.CreatedAt)
	t.Status = model.TicketStatus(status)
	return t, mapErr(err)
}

func (s *Store) CreateTicket(ctx context.Context, ticket *model.Ticket) error {
	ticket.ID = uuid.NewString()
	if ticket.Status == "" {
		ticket.Status = model.TicketPending
	}
	if ticket.CreatedAt.IsZero() {
		ticket.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO tickets (id, submitter_id, message, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, ticket.ID, ticket.SubmitterID, ticket.Message, string(ticket.Status), ticket.CreatedAt)
	return mapErr(err)
}

func (s *Store) listTickets(ctx context.Context, query string, args ...any) ([]model.Ticket, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Ticket{}
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) ListTicketsBySubmitter(ctx context.Context, submitterID string) ([]model.Ticket, error) {
	return s.listTickets(ctx, `
		SELECT `+ticketColumns+`
		FROM tickets
		WHERE submitter_id = $1
		ORDER BY created_at
	`, submitterID)
}

func (s *Store) ListTickets(ctx context.Context) ([]model.Ticket, error) {
	return s.listTickets(ctx, `
		SELECT `+ticketColumns+`
		FROM tickets
		ORDER BY created_at
	`)
}

func (s *Store) SetTicketStatus(ctx context.Context, id string, status model.TicketStatus) (model.Ticket, error) {
	if !validID(id) {
		return model.Ticket{}, common.ErrNotFound
	}
	return scanTicket(s.pool.QueryRow(ctx, `
		UPDATE tickets SET status = $2
		WHERE id = $1
		RETURNING `+ticketColumns, id, string(status)))
}

func (s *Store) DeleteTicket(ctx context.Context, id string) error {
	if !validID(id) {
		return common.ErrNotFound
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM tickets WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (s *Store) IncrementTraffic(ctx context.Context, day time.Time) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO traffic (day, count) VALUES ($1, 1)
		ON CONFLICT (day) DO UPDATE SET count = traffic.count + 1
	`, model.Day(day))
	return err
}

func (s *Store) TrafficBetween(ctx context.Context, from, to time.Time) ([]model.TrafficDay, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT day, count
		FROM traffic
		WHERE day BETWEEN $1 AND $2
		ORDER BY day
	`, model.Day(from), model.Day(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.TrafficDay{}
	for rows.Next() {
		var d model.TrafficDay
		if err := rows.Scan(&d.Day, &d.Count); err != nil {
			return nil, err
		}
		d.Day = model.Day(d.Day)
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) DeleteTrafficBefore(ctx context.Context, day time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM traffic WHERE day < $1`, model.Day(day))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func encodeEntries(entries []model.Entry) ([]byte, error) {
	if entries == nil {
		entries = []model.Entry{}
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("encode entries: %w", err)
	}
	return raw, nil
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return common.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return common.ErrAlreadyExists
	}
	return err
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likePattern(sub string) string {
	return "%" + likeEscaper.Replace(sub) + "%"
}
