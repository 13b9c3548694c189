package database

import (
	"errors"
	"time"

	"github.com/MarcoPoloResearchLab/jobtracker/internal/accounts"
	"github.com/MarcoPoloResearchLab/jobtracker/internal/history"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	migrationRecomputeCurrentStatus = "2024-04-01_recompute_current_status"
	migrationLowercaseAccountEmails = "2024-04-02_lowercase_account_emails"

	migrationBatchSize = 200
)

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationRecomputeCurrentStatus, apply: recomputeCurrentStatus},
		{name: migrationLowercaseAccountEmails, apply: lowercaseAccountEmails},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := db.Transaction(migration.apply); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// recomputeCurrentStatus re-sorts every stored history and re-derives the
// denormalized status and date columns from it.
func recomputeCurrentStatus(db *gorm.DB) error {
	lastID := ""
	for {
		var batch []history.Application
		if err := db.Where("id > ?", lastID).Order("id").Limit(migrationBatchSize).Find(&batch).Error; err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}
		for index := range batch {
			application := &batch[index]
			if len(application.History) == 0 {
				continue
			}
			status, date := application.Status, application.Date
			history.Recompute(application)
			if application.Status == status && application.Date.Equal(date) {
				continue
			}
			if err := db.Model(&history.Application{}).Where("id = ?", application.ID).Updates(map[string]any{
				"status":  application.Status,
				"date":    application.Date,
				"history": application.History,
			}).Error; err != nil {
				return err
			}
		}
		lastID = batch[len(batch)-1].ID
	}
}

func lowercaseAccountEmails(db *gorm.DB) error {
	return db.Model(&accounts.Account{}).
		Where("email <> LOWER(email)").
		Update("email", gorm.Expr("LOWER(email)")).Error
}
