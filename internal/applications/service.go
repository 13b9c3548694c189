package applications

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/jobtracker/internal/history"
	"github.com/MarcoPoloResearchLab/jobtracker/internal/serviceerr"
	"github.com/MarcoPoloResearchLab/jobtracker/internal/stats"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	errMissingPasswords  = errors.New("password verifier is required")
	noOpLogger           = zap.NewNop()
)

const (
	opServiceNew     = "applications.service.new"
	opCreate         = "applications.create"
	opGet            = "applications.get"
	opList           = "applications.list"
	opUpdateDetails  = "applications.update_details"
	opDelete         = "applications.delete"
	opDeleteAll      = "applications.delete_all"
	opAppendStatus   = "applications.append_status"
	opEditStatus     = "applications.edit_status"
	opDeleteStatus   = "applications.delete_status"
	opStatistics     = "applications.statistics"
	opPurgeOwner     = "applications.purge_owner"
	queryID          = "id = ?"
	queryOwner       = "owner_id = ?"
	fieldOwnerID     = "owner_id"
	fieldAppID       = "application_id"
	fieldStatusID    = "status_id"
	reasonMissingDB  = "missing_database"
	reasonQuery      = "query_failed"
	reasonSave       = "save_failed"
	reasonIDFailed   = "id_generation_failed"
	reasonInvalid    = "validation_failed"
	reasonNotFound   = "not_found"
	reasonNotOwner   = "unauthorized"
	reasonLastStatus = "last_status"
	reasonPassword   = "password_rejected"
)

// PasswordVerifier re-authenticates an account before destructive bulk operations.
type PasswordVerifier interface {
	VerifyPassword(ctx context.Context, accountID, password string) error
}

// EmailRecorder remembers the addresses an account has applied with.
type EmailRecorder interface {
	RememberEmail(ctx context.Context, accountID, email string) error
}

// MutationRecorder observes history mutations for metrics.
type MutationRecorder interface {
	RecordHistoryMutation(operation, outcome string)
}

// ServiceConfig describes the collaborators of the application store.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider history.IDProvider
	Passwords  PasswordVerifier
	Emails     EmailRecorder
	Recorder   MutationRecorder
	Aggregator stats.Aggregator
	PageSize   int
	Logger     *zap.Logger
}

// Service persists applications and applies history mutations to them.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider history.IDProvider
	passwords  PasswordVerifier
	emails     EmailRecorder
	recorder   MutationRecorder
	aggregator stats.Aggregator
	pageSize   int
	logger     *zap.Logger
}

// NewService validates the configuration and builds a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, serviceerr.New(opServiceNew, reasonMissingDB, errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, serviceerr.New(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}
	if cfg.Passwords == nil {
		return nil, serviceerr.New(opServiceNew, "missing_password_verifier", errMissingPasswords)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{
		db:         cfg.Database,
		clock:      clock,
		idProvider: cfg.IDProvider,
		passwords:  cfg.Passwords,
		emails:     cfg.Emails,
		recorder:   cfg.Recorder,
		aggregator: cfg.Aggregator,
		pageSize:   pageSize,
		logger:     logger,
	}, nil
}

// CreateInput carries the raw request fields for a new application.
type CreateInput struct {
	CompanyName string
	JobTitle    string
	EmailUsed   string
	Link        string
	Status      string
	Date        string
}

// DetailsInput carries the editable non-history fields.
type DetailsInput struct {
	CompanyName string
	JobTitle    string
	EmailUsed   string
	Link        string
}

// Create stores a new application seeded with one status event.
func (s *Service) Create(ctx context.Context, ownerID string, input CreateInput) (history.Application, error) {
	if s.db == nil {
		s.logError(opCreate, reasonMissingDB, errMissingDatabase)
		return history.Application{}, serviceerr.New(opCreate, reasonMissingDB, errMissingDatabase)
	}
	date, err := history.ParseDate(input.Date)
	if err != nil {
		return history.Application{}, serviceerr.New(opCreate, reasonInvalid, err)
	}
	application, err := history.NewApplication(s.idProvider, history.ApplicationInput{
		OwnerID:     ownerID,
		CompanyName: input.CompanyName,
		JobTitle:    input.JobTitle,
		EmailUsed:   input.EmailUsed,
		Link:        input.Link,
		Status:      input.Status,
		Date:        date,
	})
	if err != nil {
		if errors.Is(err, history.ErrValidation) {
			return history.Application{}, serviceerr.New(opCreate, reasonInvalid, err)
		}
		s.logError(opCreate, reasonIDFailed, err, zap.String(fieldOwnerID, ownerID))
		return history.Application{}, serviceerr.New(opCreate, reasonIDFailed, err)
	}

	if err := s.db.WithContext(ctx).Create(application).Error; err != nil {
		s.logError(opCreate, reasonSave, err, zap.String(fieldOwnerID, ownerID))
		return history.Application{}, serviceerr.New(opCreate, reasonSave, err)
	}
	s.rememberEmail(ctx, ownerID, application.EmailUsed)
	s.record(opCreate, nil)
	return *application, nil
}

// Get returns one application owned by ownerID.
func (s *Service) Get(ctx context.Context, ownerID, applicationID string) (history.Application, error) {
	if s.db == nil {
		s.logError(opGet, reasonMissingDB, errMissingDatabase)
		return history.Application{}, serviceerr.New(opGet, reasonMissingDB, errMissingDatabase)
	}
	if err := validateApplicationID(applicationID); err != nil {
		return history.Application{}, serviceerr.New(opGet, reasonInvalid, err)
	}
	var application history.Application
	if err := s.load(s.db.WithContext(ctx), opGet, ownerID, applicationID, &application); err != nil {
		return history.Application{}, err
	}
	return application, nil
}

// UpdateDetails edits company, title, link and email without touching the history.
func (s *Service) UpdateDetails(ctx context.Context, ownerID, applicationID string, input DetailsInput) (history.Application, error) {
	if err := validateApplicationID(applicationID); err != nil {
		return history.Application{}, serviceerr.New(opUpdateDetails, reasonInvalid, err)
	}
	companyName := strings.TrimSpace(input.CompanyName)
	jobTitle := strings.TrimSpace(input.JobTitle)
	if companyName == "" || jobTitle == "" {
		err := history.Invalidf("company name and job title are required")
		return history.Application{}, serviceerr.New(opUpdateDetails, reasonInvalid, err)
	}

	updated, err := s.mutate(ctx, opUpdateDetails, ownerID, applicationID, func(application *history.Application) error {
		application.CompanyName = companyName
		application.JobTitle = jobTitle
		application.Link = strings.TrimSpace(input.Link)
		application.EmailUsed = strings.TrimSpace(input.EmailUsed)
		return nil
	})
	if err != nil {
		return history.Application{}, err
	}
	s.rememberEmail(ctx, ownerID, updated.EmailUsed)
	return updated, nil
}

// Delete removes one application and its entire history.
func (s *Service) Delete(ctx context.Context, ownerID, applicationID string) (history.Application, error) {
	if s.db == nil {
		s.logError(opDelete, reasonMissingDB, errMissingDatabase)
		return history.Application{}, serviceerr.New(opDelete, reasonMissingDB, errMissingDatabase)
	}
	if err := validateApplicationID(applicationID); err != nil {
		return history.Application{}, serviceerr.New(opDelete, reasonInvalid, err)
	}

	var deleted history.Application
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.load(tx.Clauses(clause.Locking{Strength: "UPDATE"}), opDelete, ownerID, applicationID, &deleted); err != nil {
			return err
		}
		if err := tx.Where(queryID, applicationID).Delete(&history.Application{}).Error; err != nil {
			s.logError(opDelete, reasonSave, err, zap.String(fieldAppID, applicationID))
			return serviceerr.New(opDelete, reasonSave, err)
		}
		return nil
	})
	if txErr != nil {
		return history.Application{}, txErr
	}
	s.record(opDelete, nil)
	return deleted, nil
}

// DeleteAll removes every application owned by ownerID after re-checking the password.
func (s *Service) DeleteAll(ctx context.Context, ownerID, password string) ([]history.Application, error) {
	if s.db == nil {
		s.logError(opDeleteAll, reasonMissingDB, errMissingDatabase)
		return nil, serviceerr.New(opDeleteAll, reasonMissingDB, errMissingDatabase)
	}
	if password == "" {
		err := history.Invalidf("password is required")
		return nil, serviceerr.New(opDeleteAll, reasonInvalid, err)
	}
	if err := s.passwords.VerifyPassword(ctx, ownerID, password); err != nil {
		return nil, serviceerr.New(opDeleteAll, reasonPassword, err)
	}

	var deleted []history.Application
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where(queryOwner, ownerID).Find(&deleted).Error; err != nil {
			s.logError(opDeleteAll, reasonQuery, err, zap.String(fieldOwnerID, ownerID))
			return serviceerr.New(opDeleteAll, reasonQuery, err)
		}
		if err := s.PurgeOwner(tx, ownerID); err != nil {
			return err
		}
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}
	if deleted == nil {
		deleted = []history.Application{}
	}
	return deleted, nil
}

// PurgeOwner deletes every application of ownerID using the supplied transaction.
func (s *Service) PurgeOwner(tx *gorm.DB, ownerID string) error {
	if tx == nil {
		return serviceerr.New(opPurgeOwner, reasonMissingDB, errMissingDatabase)
	}
	if err := tx.Where(queryOwner, ownerID).Delete(&history.Application{}).Error; err != nil {
		s.logError(opPurgeOwner, reasonSave, err, zap.String(fieldOwnerID, ownerID))
		return serviceerr.New(opPurgeOwner, reasonSave, err)
	}
	return nil
}

// Statistics aggregates the owner's current snapshot into the statistics view.
func (s *Service) Statistics(ctx context.Context, ownerID string) (stats.Report, error) {
	if s.db == nil {
		s.logError(opStatistics, reasonMissingDB, errMissingDatabase)
		return stats.Report{}, serviceerr.New(opStatistics, reasonMissingDB, errMissingDatabase)
	}
	var snapshot []history.Application
	if err := s.db.WithContext(ctx).Where(queryOwner, ownerID).Find(&snapshot).Error; err != nil {
		if ctx.Err() != nil {
			return stats.Report{}, serviceerr.New(opStatistics, reasonQuery, ctx.Err())
		}
		s.logError(opStatistics, reasonQuery, err, zap.String(fieldOwnerID, ownerID))
		return stats.Report{}, serviceerr.New(opStatistics, reasonQuery, err)
	}
	return s.aggregator.Build(snapshot, s.clock()), nil
}

// mutate runs a read-modify-write of one application inside a transaction.
// The owner check happens before apply sees the record.
func (s *Service) mutate(ctx context.Context, operation, ownerID, applicationID string, apply func(*history.Application) error) (history.Application, error) {
	if s.db == nil {
		s.logError(operation, reasonMissingDB, errMissingDatabase)
		return history.Application{}, serviceerr.New(operation, reasonMissingDB, errMissingDatabase)
	}

	var updated history.Application
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var application history.Application
		if err := s.load(tx.Clauses(clause.Locking{Strength: "UPDATE"}), operation, ownerID, applicationID, &application); err != nil {
			return err
		}
		if err := apply(&application); err != nil {
			return classify(operation, err)
		}
		if err := tx.Save(&application).Error; err != nil {
			s.logError(operation, reasonSave, err, zap.String(fieldAppID, applicationID))
			return serviceerr.New(operation, reasonSave, err)
		}
		updated = application
		return nil
	})
	if txErr != nil {
		return history.Application{}, txErr
	}
	return updated, nil
}

func (s *Service) load(query *gorm.DB, operation, ownerID, applicationID string, target *history.Application) error {
	err := query.Where(queryID, applicationID).Take(target).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return serviceerr.New(operation, reasonNotFound, fmt.Errorf("%w: application %s", history.ErrNotFound, applicationID))
	}
	if err != nil {
		s.logError(operation, reasonQuery, err, zap.String(fieldAppID, applicationID))
		return serviceerr.New(operation, reasonQuery, err)
	}
	if err := history.CheckOwner(target, ownerID); err != nil {
		s.loggerOrDefault().Info("application ownership check failed",
			zap.String("operation", operation),
			zap.String(fieldAppID, applicationID),
			zap.String(fieldOwnerID, ownerID))
		return serviceerr.New(operation, reasonNotOwner, err)
	}
	return nil
}

func (s *Service) rememberEmail(ctx context.Context, ownerID, email string) {
	if s.emails == nil || email == "" {
		return
	}
	if err := s.emails.RememberEmail(ctx, ownerID, email); err != nil {
		s.loggerOrDefault().Warn("failed to remember email used", zap.String(fieldOwnerID, ownerID), zap.Error(err))
	}
}

func (s *Service) record(operation string, err error) {
	if s.recorder == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = reasonOf(err)
	}
	s.recorder.RecordHistoryMutation(operation, outcome)
}

func classify(operation string, err error) error {
	return serviceerr.New(operation, reasonOf(err), err)
}

func reasonOf(err error) string {
	switch {
	case errors.Is(err, history.ErrValidation):
		return reasonInvalid
	case errors.Is(err, history.ErrNotFound):
		return reasonNotFound
	case errors.Is(err, history.ErrUnauthorized):
		return reasonNotOwner
	case errors.Is(err, history.ErrInvariantViolation):
		return reasonLastStatus
	default:
		return "failed"
	}
}

func validateApplicationID(applicationID string) error {
	if !history.ValidID(applicationID) {
		return history.Invalidf("invalid application id")
	}
	return nil
}

func (s *Service) loggerOrDefault() *zap.Logger {
	if s == nil {
		return noOpLogger
	}
	if s.logger == nil {
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
	s.loggerOrDefault().Error("applications service error", attrs...)
}
