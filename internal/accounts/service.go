package accounts

import (
	"context"
	"errors"
	"time"

	"github.com/MarcoPoloResearchLab/jobtracker/internal/auth"
	"github.com/MarcoPoloResearchLab/jobtracker/internal/serviceerr"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	knownAccountCacheSize = 1024

	opServiceNew           = "accounts.service.new"
	opSignUp               = "accounts.sign_up"
	opSignIn               = "accounts.sign_in"
	opGet                  = "accounts.get"
	opUpdateName           = "accounts.update_name"
	opUpdateEmail          = "accounts.update_email"
	opUpdatePassword       = "accounts.update_password"
	opUpdateSuggested      = "accounts.update_suggested_emails"
	opRememberEmail        = "accounts.remember_email"
	opVerifyPassword       = "accounts.verify_password"
	opDelete               = "accounts.delete"
	queryID                = "id = ?"
	queryEmail             = "email = ?"
	fieldAccountID         = "account_id"
	reasonMissingDatabase  = "missing_database"
	reasonInvalid          = "validation_failed"
	reasonQuery            = "query_failed"
	reasonSave             = "save_failed"
	reasonNotFound         = "not_found"
	reasonEmailTaken       = "email_taken"
	reasonCredentials      = "invalid_credentials"
	reasonPasswordMismatch = "password_mismatch"
	reasonHashFailed       = "hash_failed"
)

var (
	// ErrNotFound indicates the account does not exist.
	ErrNotFound = errors.New("accounts: not found")
	// ErrEmailTaken indicates another account already uses the email address.
	ErrEmailTaken = errors.New("accounts: email already in use")
	// ErrInvalidCredentials indicates a failed sign in.
	ErrInvalidCredentials = errors.New("accounts: invalid credentials")
	// ErrPasswordMismatch indicates a re-authentication password did not verify.
	ErrPasswordMismatch = errors.New("accounts: password could not be verified")

	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	noOpLogger           = zap.NewNop()
)

// IDProvider issues account identifiers.
type IDProvider interface {
	NewID() (string, error)
}

// OwnerPurger removes data owned by an account inside the deleting transaction.
type OwnerPurger interface {
	PurgeOwner(tx *gorm.DB, ownerID string) error
}

// ServiceConfig describes the dependencies required for account management.
type ServiceConfig struct {
	Database   *gorm.DB
	Hasher     *auth.PasswordHasher
	IDProvider IDProvider
	Purgers    []OwnerPurger
	Clock      func() time.Time
	Logger     *zap.Logger
}

// Service manages accounts and their credentials.
type Service struct {
	db      *gorm.DB
	hasher  *auth.PasswordHasher
	ids     IDProvider
	purgers []OwnerPurger
	now     func() time.Time
	known   *lru.Cache[string, struct{}]
	logger  *zap.Logger
}

// NewService constructs the account service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, serviceerr.New(opServiceNew, reasonMissingDatabase, errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, serviceerr.New(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}
	hasher := cfg.Hasher
	if hasher == nil {
		hasher = auth.NewPasswordHasher(auth.DefaultBcryptCost)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	known, err := lru.New[string, struct{}](knownAccountCacheSize)
	if err != nil {
		return nil, serviceerr.New(opServiceNew, "cache_init_failed", err)
	}
	return &Service{
		db:      cfg.Database,
		hasher:  hasher,
		ids:     cfg.IDProvider,
		purgers: cfg.Purgers,
		now:     clock,
		known:   known,
		logger:  logger,
	}, nil
}

// AddPurger registers a collaborator whose owned data is removed with the account.
func (s *Service) AddPurger(purger OwnerPurger) {
	if purger != nil {
		s.purgers = append(s.purgers, purger)
	}
}

// SignUp creates an account after validating the input and hashing the password.
func (s *Service) SignUp(ctx context.Context, input SignUpInput) (Account, error) {
	input.Name = normalize(input.Name)
	input.Email = normalizeEmail(input.Email)
	if err := validateSignUp(input); err != nil {
		return Account{}, serviceerr.New(opSignUp, reasonInvalid, err)
	}

	taken, err := s.emailInUse(ctx, opSignUp, input.Email)
	if err != nil {
		return Account{}, err
	}
	if taken {
		return Account{}, serviceerr.New(opSignUp, reasonEmailTaken, ErrEmailTaken)
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		s.logError(opSignUp, reasonHashFailed, err)
		return Account{}, serviceerr.New(opSignUp, reasonHashFailed, err)
	}
	accountID, err := s.ids.NewID()
	if err != nil {
		s.logError(opSignUp, "id_generation_failed", err)
		return Account{}, serviceerr.New(opSignUp, "id_generation_failed", err)
	}

	account := Account{
		ID:                accountID,
		Name:              input.Name,
		Email:             input.Email,
		PasswordHash:      hash,
		SuggestedEmails:   []string{input.Email},
		PasswordUpdatedAt: s.now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&account).Error; err != nil {
		s.logError(opSignUp, reasonSave, err)
		return Account{}, serviceerr.New(opSignUp, reasonSave, err)
	}
	s.known.Add(account.ID, struct{}{})
	return account, nil
}

// SignIn verifies the email and password pair.
func (s *Service) SignIn(ctx context.Context, email, password string) (Account, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return Account{}, serviceerr.New(opSignIn, reasonInvalid, invalidInput("email and password are required"))
	}
	var account Account
	err := s.db.WithContext(ctx).Where(queryEmail, email).Take(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Account{}, serviceerr.New(opSignIn, reasonCredentials, ErrInvalidCredentials)
	}
	if err != nil {
		s.logError(opSignIn, reasonQuery, err)
		return Account{}, serviceerr.New(opSignIn, reasonQuery, err)
	}
	if err := s.hasher.Compare(account.PasswordHash, password); err != nil {
		if !errors.Is(err, auth.ErrPasswordMismatch) {
			s.logError(opSignIn, reasonHashFailed, err, zap.String(fieldAccountID, account.ID))
		}
		return Account{}, serviceerr.New(opSignIn, reasonCredentials, ErrInvalidCredentials)
	}
	s.known.Add(account.ID, struct{}{})
	return account, nil
}

// Get loads one account.
func (s *Service) Get(ctx context.Context, accountID string) (Account, error) {
	return s.find(ctx, opGet, accountID)
}

// Exists reports whether the account is still present. Positive answers are cached.
func (s *Service) Exists(ctx context.Context, accountID string) (bool, error) {
	if accountID == "" {
		return false, nil
	}
	if s.known.Contains(accountID) {
		return true, nil
	}
	_, err := s.find(ctx, opGet, accountID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	s.known.Add(accountID, struct{}{})
	return true, nil
}

// UpdateName changes the display name.
func (s *Service) UpdateName(ctx context.Context, accountID, name string) (Account, error) {
	name = normalize(name)
	if name == "" {
		return Account{}, serviceerr.New(opUpdateName, reasonInvalid, invalidInput("name is required"))
	}
	return s.update(ctx, opUpdateName, accountID, map[string]any{"name": name})
}

// UpdateEmail changes the sign-in email after checking it is free.
func (s *Service) UpdateEmail(ctx context.Context, accountID, email string) (Account, error) {
	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return Account{}, serviceerr.New(opUpdateEmail, reasonInvalid, err)
	}
	taken, err := s.emailInUse(ctx, opUpdateEmail, email)
	if err != nil {
		return Account{}, err
	}
	if taken {
		return Account{}, serviceerr.New(opUpdateEmail, reasonEmailTaken, ErrEmailTaken)
	}
	return s.update(ctx, opUpdateEmail, accountID, map[string]any{"email": email})
}

// UpdatePassword replaces the password after verifying the current one.
func (s *Service) UpdatePassword(ctx context.Context, accountID string, input PasswordChangeInput) (Account, error) {
	if err := validatePasswordChange(input); err != nil {
		return Account{}, serviceerr.New(opUpdatePassword, reasonInvalid, err)
	}
	account, err := s.find(ctx, opUpdatePassword, accountID)
	if err != nil {
		return Account{}, err
	}
	if err := s.hasher.Compare(account.PasswordHash, input.CurrentPassword); err != nil {
		return Account{}, serviceerr.New(opUpdatePassword, reasonPasswordMismatch, ErrPasswordMismatch)
	}
	if input.CurrentPassword == input.NewPassword {
		return Account{}, serviceerr.New(opUpdatePassword, reasonInvalid, invalidInput("new password must be different from the current password"))
	}
	hash, err := s.hasher.Hash(input.NewPassword)
	if err != nil {
		s.logError(opUpdatePassword, reasonHashFailed, err, zap.String(fieldAccountID, accountID))
		return Account{}, serviceerr.New(opUpdatePassword, reasonHashFailed, err)
	}
	return s.update(ctx, opUpdatePassword, accountID, map[string]any{
		"password_hash":       hash,
		"password_updated_at": s.now().UTC(),
	})
}

// UpdateSuggestedEmails replaces the remembered email list. The account email is always kept.
func (s *Service) UpdateSuggestedEmails(ctx context.Context, accountID string, emails []string) (Account, error) {
	account, err := s.find(ctx, opUpdateSuggested, accountID)
	if err != nil {
		return Account{}, err
	}
	cleaned := []string{account.Email}
	for _, raw := range emails {
		email := normalizeEmail(raw)
		if email == "" {
			continue
		}
		if err := validateEmail(email); err != nil {
			return Account{}, serviceerr.New(opUpdateSuggested, reasonInvalid, err)
		}
		cleaned, _ = withSuggestedEmail(cleaned, email)
	}
	account.SuggestedEmails = datatypes.JSONSlice[string](cleaned)
	if err := s.db.WithContext(ctx).Model(&Account{}).Where(queryID, accountID).Update("suggested_emails", account.SuggestedEmails).Error; err != nil {
		s.logError(opUpdateSuggested, reasonSave, err, zap.String(fieldAccountID, accountID))
		return Account{}, serviceerr.New(opUpdateSuggested, reasonSave, err)
	}
	return account, nil
}

// RememberEmail adds email to the suggested list when it is new.
func (s *Service) RememberEmail(ctx context.Context, accountID, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return nil
	}
	account, err := s.find(ctx, opRememberEmail, accountID)
	if err != nil {
		return err
	}
	updated, changed := withSuggestedEmail(account.SuggestedEmails, email)
	if !changed {
		return nil
	}
	if err := s.db.WithContext(ctx).Model(&Account{}).Where(queryID, accountID).Update("suggested_emails", datatypes.JSONSlice[string](updated)).Error; err != nil {
		s.logError(opRememberEmail, reasonSave, err, zap.String(fieldAccountID, accountID))
		return serviceerr.New(opRememberEmail, reasonSave, err)
	}
	return nil
}

// VerifyPassword re-authenticates an already signed-in account.
func (s *Service) VerifyPassword(ctx context.Context, accountID, password string) error {
	if password == "" {
		return serviceerr.New(opVerifyPassword, reasonInvalid, invalidInput("password is required"))
	}
	account, err := s.find(ctx, opVerifyPassword, accountID)
	if err != nil {
		return err
	}
	if err := s.hasher.Compare(account.PasswordHash, password); err != nil {
		return serviceerr.New(opVerifyPassword, reasonPasswordMismatch, ErrPasswordMismatch)
	}
	return nil
}

// Delete removes the account and everything it owns after re-checking the password.
func (s *Service) Delete(ctx context.Context, accountID, password string) (Account, error) {
	if err := s.VerifyPassword(ctx, accountID, password); err != nil {
		return Account{}, err
	}
	var deleted Account
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where(queryID, accountID).Take(&deleted).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return serviceerr.New(opDelete, reasonNotFound, ErrNotFound)
			}
			s.logError(opDelete, reasonQuery, err, zap.String(fieldAccountID, accountID))
			return serviceerr.New(opDelete, reasonQuery, err)
		}
		for _, purger := range s.purgers {
			if err := purger.PurgeOwner(tx, accountID); err != nil {
				return err
			}
		}
		if err := tx.Where(queryID, accountID).Delete(&Account{}).Error; err != nil {
			s.logError(opDelete, reasonSave, err, zap.String(fieldAccountID, accountID))
			return serviceerr.New(opDelete, reasonSave, err)
		}
		return nil
	})
	if txErr != nil {
		return Account{}, txErr
	}
	s.known.Remove(accountID)
	return deleted, nil
}

func (s *Service) find(ctx context.Context, operation, accountID string) (Account, error) {
	if s.db == nil {
		s.logError(operation, reasonMissingDatabase, errMissingDatabase)
		return Account{}, serviceerr.New(operation, reasonMissingDatabase, errMissingDatabase)
	}
	var account Account
	err := s.db.WithContext(ctx).Where(queryID, accountID).Take(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Account{}, serviceerr.New(operation, reasonNotFound, ErrNotFound)
	}
	if err != nil {
		s.logError(operation, reasonQuery, err, zap.String(fieldAccountID, accountID))
		return Account{}, serviceerr.New(operation, reasonQuery, err)
	}
	return account, nil
}

func (s *Service) update(ctx context.Context, operation, accountID string, updates map[string]any) (Account, error) {
	if _, err := s.find(ctx, operation, accountID); err != nil {
		return Account{}, err
	}
	if err := s.db.WithContext(ctx).Model(&Account{}).Where(queryID, accountID).Updates(updates).Error; err != nil {
		s.logError(operation, reasonSave, err, zap.String(fieldAccountID, accountID))
		return Account{}, serviceerr.New(operation, reasonSave, err)
	}
	return s.find(ctx, operation, accountID)
}

func (s *Service) emailInUse(ctx context.Context, operation, email string) (bool, error) {
	if s.db == nil {
		s.logError(operation, reasonMissingDatabase, errMissingDatabase)
		return false, serviceerr.New(operation, reasonMissingDatabase, errMissingDatabase)
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&Account{}).Where(queryEmail, email).Count(&count).Error; err != nil {
		s.logError(operation, reasonQuery, err)
		return false, serviceerr.New(operation, reasonQuery, err)
	}
	return count > 0, nil
}

func (s *Service) loggerOrDefault() *zap.Logger {
	if s == nil || s.logger == nil {
		return noOpLogger
	}
	return s.logger
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.loggerOrDefault().Error("accounts service error", attrs...)
}
