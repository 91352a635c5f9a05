package services

import (
	"context"
	"fmt"
	"strings"

	"vizintel/api/internal/common"
	"vizintel/api/internal/crypto"
	"vizintel/api/internal/logging"
	"vizintel/api/internal/model"
	"vizintel/api/internal/repository"
)

// ManageInput carries the admin edits to a user profile. Empty strings and a
// nil Suspend leave the field unchanged.
type ManageInput struct {
	NewPassword   string
	NewName       string
	NewSchoolName string
	Suspend       *bool
}

// Accounts is the admin view over user profiles.
type Accounts struct {
	accounts repository.AccountRepository
	records  repository.RecordRepository
	log      logging.Logger
}

func NewAccounts(accounts repository.AccountRepository, records repository.RecordRepository, log logging.Logger) *Accounts {
	return &Accounts{accounts: accounts, records: records, log: log.With("module", "accounts")}
}

// SearchProfiles returns users whose email and name contain the given
// fragments. No match is ErrNotFound.
func (a *Accounts) SearchProfiles(ctx context.Context, emailLike, nameLike string) ([]model.Account, error) {
	users, err := a.accounts.SearchAccounts(ctx, model.RoleUser, strings.TrimSpace(emailLike), strings.TrimSpace(nameLike))
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, common.ErrNotFound
	}
	return users, nil
}

func (a *Accounts) ListUsers(ctx context.Context) ([]model.Account, error) {
	users, err := a.accounts.ListAccounts(ctx, model.RoleUser)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, common.ErrNotFound
	}
	return users, nil
}

// ManageUser applies in to the single user matching emailLike.
func (a *Accounts) ManageUser(ctx context.Context, emailLike string, in ManageInput) (model.Account, error) {
	users, err := a.accounts.SearchAccounts(ctx, model.RoleUser, strings.TrimSpace(emailLike), "")
	if err != nil {
		return model.Account{}, err
	}
	switch len(users) {
	case 0:
		return model.Account{}, common.ErrNotFound
	case 1:
	default:
		return model.Account{}, common.Invalid("Multiple users found; please specify a unique email")
	}

	patch, err := a.buildPatch(in)
	if err != nil {
		return model.Account{}, err
	}
	user := users[0]
	patch.Apply(&user)
	if err := a.accounts.UpdateAccount(ctx, user); err != nil {
		return model.Account{}, err
	}
	a.log.Info(ctx, "user updated", "account_id", user.ID, "suspended", user.Suspended)
	return user, nil
}

func (a *Accounts) buildPatch(in ManageInput) (model.AccountPatch, error) {
	var patch model.AccountPatch
	if in.NewPassword != "" {
		if err := validatePassword(in.NewPassword); err != nil {
			return patch, err
		}
		hash, err := crypto.HashPassword(in.NewPassword)
		if err != nil {
			return patch, fmt.Errorf("hash password: %w", err)
		}
		patch.PasswordHash = &hash
	}
	if name := strings.TrimSpace(in.NewName); name != "" {
		if err := validateName(name); err != nil {
			return patch, err
		}
		patch.Name = &name
	}
	if in.NewSchoolName != "" {
		school := in.NewSchoolName
		patch.SchoolName = &school
	}
	patch.Suspended = in.Suspend
	return patch, nil
}

func (a *Accounts) CountUsers(ctx context.Context) (int64, error) {
	return a.accounts.CountAccounts(ctx, model.RoleUser)
}

func (a *Accounts) CountRecords(ctx context.Context) (int64, error) {
	return a.records.CountRecords(ctx)
}
