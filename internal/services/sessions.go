package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"vizintel/api/internal/auth"
	"vizintel/api/internal/common"
	"vizintel/api/internal/crypto"
	"vizintel/api/internal/identity"
	"vizintel/api/internal/logging"
	"vizintel/api/internal/model"
	"vizintel/api/internal/repository"
)

// externalSchoolName is assigned to accounts created through the identity provider.
const externalSchoolName = "test"

type Session struct {
	Token   string
	Account model.Account
}

type RegisterInput struct {
	Name       string
	Email      string
	Password   string
	SchoolName string
}

// Sessions verifies credentials and mints session tokens.
type Sessions struct {
	accounts repository.AccountRepository
	verifier identity.Verifier
	secret   string
	log      logging.Logger
	now      func() time.Time
}

func NewSessions(accounts repository.AccountRepository, verifier identity.Verifier, secret string, log logging.Logger) *Sessions {
	return &Sessions{
		accounts: accounts,
		verifier: verifier,
		secret:   secret,
		log:      log.With("module", "sessions"),
		now:      time.Now,
	}
}

func (s *Sessions) Register(ctx context.Context, role model.Role, in RegisterInput) (model.Account, error) {
	return s.register(ctx, role, in, s.accounts.CreateAccount)
}

// RegisterAdmin creates a superadmin. Without an admin session only the first
// admin may be created; the check and the insert happen in one step.
func (s *Sessions) RegisterAdmin(ctx context.Context, in RegisterInput, caller *auth.Claims) (model.Account, error) {
	create := s.accounts.CreateFirstAccount
	if caller.IsAdmin() {
		create = s.accounts.CreateAccount
	}
	return s.register(ctx, model.RoleSuperAdmin, in, create)
}

func (s *Sessions) register(ctx context.Context, role model.Role, in RegisterInput, create func(context.Context, *model.Account) error) (model.Account, error) {
	in.Email = strings.TrimSpace(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	if anyBlank(in.Name, in.Email, in.Password, in.SchoolName) {
		return model.Account{}, common.Invalid("All fields are required")
	}
	if err := validateName(in.Name); err != nil {
		return model.Account{}, err
	}
	if err := validatePassword(in.Password); err != nil {
		return model.Account{}, err
	}

	hash, err := crypto.HashPassword(in.Password)
	if err != nil {
		return model.Account{}, fmt.Errorf("hash password: %w", err)
	}
	account := model.Account{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		SchoolName:   in.SchoolName,
		Origin:       model.OriginManual,
		Role:         role,
	}
	if err := create(ctx, &account); err != nil {
		return model.Account{}, err
	}
	s.log.Info(ctx, "account registered", "account_id", account.ID, "role", string(role))
	return account, nil
}

func (s *Sessions) Login(ctx context.Context, role model.Role, email, password string) (Session, error) {
	account, err := s.accounts.GetAccountByEmail(ctx, role, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return Session{}, common.ErrInvalidCredentials
		}
		return Session{}, err
	}
	if account.Suspended {
		s.log.Warn(ctx, "suspended account login refused", "account_id", account.ID)
		return Session{}, common.ErrAccountSuspended
	}
	if err := crypto.CheckPassword(account.PasswordHash, password); err != nil {
		return Session{}, common.ErrInvalidCredentials
	}
	return s.issue(account)
}

// LoginExternal accepts an identity provider token, creating the account on
// first use.
func (s *Sessions) LoginExternal(ctx context.Context, role model.Role, idToken string) (Session, error) {
	id, err := s.verifier.Verify(ctx, idToken)
	if err != nil {
		return Session{}, err
	}

	account, err := s.accounts.GetAccountByEmail(ctx, role, id.Email)
	switch {
	case errors.Is(err, common.ErrNotFound):
		account, err = s.createExternal(ctx, role, id)
		if err != nil {
			return Session{}, err
		}
	case err != nil:
		return Session{}, err
	}

	if account.Suspended {
		s.log.Warn(ctx, "suspended account login refused", "account_id", account.ID, "origin", string(account.Origin))
		return Session{}, common.ErrAccountSuspended
	}
	return s.issue(account)
}

func (s *Sessions) createExternal(ctx context.Context, role model.Role, id identity.Identity) (model.Account, error) {
	account := model.Account{
		Name:         id.Name,
		Email:        id.Email,
		PasswordHash: crypto.ExternalPlaceholderHash(),
		SchoolName:   externalSchoolName,
		Origin:       model.OriginGoogle,
		Role:         role,
	}
	err := s.accounts.CreateAccount(ctx, &account)
	if errors.Is(err, common.ErrAlreadyExists) {
		// Lost a race with a concurrent first login.
		return s.accounts.GetAccountByEmail(ctx, role, id.Email)
	}
	if err != nil {
		return model.Account{}, err
	}
	s.log.Info(ctx, "external account created", "account_id", account.ID, "role", string(role))
	return account, nil
}

func (s *Sessions) issue(account model.Account) (Session, error) {
	role := ""
	if account.Role == model.RoleSuperAdmin {
		role = auth.RoleSuperAdmin
	}
	token, err := auth.NewSessionToken(s.secret, account.ID, role, s.now())
	if err != nil {
		return Session{}, fmt.Errorf("sign session: %w", err)
	}
	return Session{Token: token, Account: account}, nil
}

// ResetPassword sets a new password for a manually registered user account
// whose school name matches.
func (s *Sessions) ResetPassword(ctx context.Context, email, schoolName, newPassword string) error {
	if anyBlank(email, schoolName, newPassword) {
		return common.Invalid("All fields are required")
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	account, err := s.accounts.GetAccountByEmail(ctx, model.RoleUser, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return common.Invalid("User not found")
		}
		return err
	}
	// Externally created accounts have no password to reset; answer as for a
	// wrong guess so the reply does not reveal how the account signs in.
	if account.Origin != model.OriginManual || !crypto.EqualSecret(account.SchoolName, schoolName) {
		s.log.Warn(ctx, "password reset refused", "account_id", account.ID, "origin", string(account.Origin))
		return common.Invalid("Incorrect security answer")
	}
	hash, err := crypto.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	account.PasswordHash = hash
	if err := s.accounts.UpdateAccount(ctx, account); err != nil {
		return err
	}
	s.log.Info(ctx, "password reset", "account_id", account.ID)
	return nil
}

// Account resolves the account behind a session.
func (s *Sessions) Account(ctx context.Context, claims *auth.Claims) (model.Account, error) {
	return s.accounts.GetAccountByID(ctx, claims.UserID)
}
