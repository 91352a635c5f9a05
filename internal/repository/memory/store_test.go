package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vizintel/api/internal/common"
	"vizintel/api/internal/model"
	"vizintel/api/internal/repository"
)

var _ repository.Repositories = (*Store)(nil)

func TestAccounts_UniquePerRole(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	user := &model.Account{Name: "Ann", Email: "a@x.com", Role: model.RoleUser}
	require.NoError(t, s.CreateAccount(ctx, user))
	assert.NotEmpty(t, user.ID)

	dup := &model.Account{Name: "Ann2", Email: "a@x.com", Role: model.RoleUser}
	assert.ErrorIs(t, s.CreateAccount(ctx, dup), common.ErrAlreadyExists)

	admin := &model.Account{Name: "Ann", Email: "a@x.com", Role: model.RoleSuperAdmin}
	require.NoError(t, s.CreateAccount(ctx, admin))

	_, err := s.GetAccountByEmail(ctx, model.RoleUser, "A@x.com")
	assert.ErrorIs(t, err, common.ErrNotFound, "email lookup is case-sensitive")

	n, err := s.CountAccounts(ctx, model.RoleUser)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestAccounts_SearchCaseInsensitive(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	require.NoError(t, s.CreateAccount(ctx, &model.Account{Name: "Ann Lee", Email: "ann@school.edu", Role: model.RoleUser}))
	require.NoError(t, s.CreateAccount(ctx, &model.Account{Name: "Bob", Email: "bob@school.edu", Role: model.RoleUser}))

	got, err := s.SearchAccounts(ctx, model.RoleUser, "SCHOOL", "")
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = s.SearchAccounts(ctx, model.RoleUser, "", "lee")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Ann Lee", got[0].Name)
}

func TestRecords_OwnershipIsNotFound(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	rec := &model.Record{OwnerID: "owner", Entries: []model.Entry{{{Key: "a", Value: 1.0}}}}
	require.NoError(t, s.CreateRecord(ctx, rec))

	_, err := s.GetOwnedRecord(ctx, rec.ID, "intruder")
	assert.ErrorIs(t, err, common.ErrNotFound)
	_, err = s.ReplaceRecordEntries(ctx, rec.ID, "intruder", nil, time.Now())
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.ErrorIs(t, s.DeleteOwnedRecord(ctx, rec.ID, "intruder"), common.ErrNotFound)

	got, err := s.GetOwnedRecord(ctx, rec.ID, "owner")
	require.NoError(t, err)
	assert.Len(t, got.Entries, 1)
}

func TestRecords_ReplaceIsFull(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	rec := &model.Record{OwnerID: "owner", Entries: []model.Entry{{{Key: "a", Value: 1.0}}, {{Key: "b", Value: 2.0}}}}
	require.NoError(t, s.CreateRecord(ctx, rec))

	at := time.Now().Add(time.Minute)
	updated, err := s.ReplaceRecordEntries(ctx, rec.ID, "owner", []model.Entry{{{Key: "c", Value: "x"}}}, at)
	require.NoError(t, err)
	assert.Len(t, updated.Entries, 1)
	assert.Equal(t, at.UTC(), updated.CreatedAt)

	list, err := s.ListRecordsByOwner(ctx, "owner")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, []string{"c"}, list[0].Entries[0].Keys())
}

func TestTickets_StatusAndDelete(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	tk := &model.Ticket{SubmitterID: "u1", Message: "help"}
	require.NoError(t, s.CreateTicket(ctx, tk))
	assert.Equal(t, model.TicketPending, tk.Status)

	updated, err := s.SetTicketStatus(ctx, tk.ID, model.TicketResolved)
	require.NoError(t, err)
	assert.Equal(t, model.TicketResolved, updated.Status)

	_, err = s.SetTicketStatus(ctx, "missing", model.TicketResolved)
	assert.ErrorIs(t, err, common.ErrNotFound)

	require.NoError(t, s.DeleteTicket(ctx, tk.ID))
	assert.ErrorIs(t, s.DeleteTicket(ctx, tk.ID), common.ErrNotFound)
}

func TestTraffic_IncrementRangeAndPrune(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	today := model.Day(time.Now())
	old := today.AddDate(0, 0, -40)

	require.NoError(t, s.IncrementTraffic(ctx, today.Add(3*time.Hour)))
	require.NoError(t, s.IncrementTraffic(ctx, today.Add(5*time.Hour)))
	require.NoError(t, s.IncrementTraffic(ctx, old))

	days, err := s.TrafficBetween(ctx, today.AddDate(0, 0, -6), today)
	require.NoError(t, err)
	require.Len(t, days, 1)
	assert.Equal(t, int64(2), days[0].Count)

	n, err := s.DeleteTrafficBefore(ctx, today.AddDate(0, 0, -30))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestAccounts_CreateFirstAccountOnlyOncePerRole(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	require.NoError(t, s.CreateFirstAccount(ctx, &model.Account{Name: "Root", Email: "root@x.com", Role: model.RoleSuperAdmin}))
	assert.ErrorIs(t, s.CreateFirstAccount(ctx, &model.Account{Name: "Eve", Email: "eve@x.com", Role: model.RoleSuperAdmin}), common.ErrForbidden)

	require.NoError(t, s.CreateFirstAccount(ctx, &model.Account{Name: "Ann", Email: "a@x.com", Role: model.RoleUser}), "roles are independent")

	n, err := s.CountAccounts(ctx, model.RoleSuperAdmin)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
