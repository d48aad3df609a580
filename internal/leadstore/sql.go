package leadstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/waitlist/internal/database"
	"github.com/charlesng35/waitlist/internal/models"
)

// SQLStore persists leads through gorm on SQLite, PostgreSQL or MySQL.
type SQLStore struct {
	db *gorm.DB
}

// NewSQLStore constructs a SQLStore. The schema must already be migrated.
func NewSQLStore(db *gorm.DB) (*SQLStore, error) {
	if db == nil {
		return nil, errors.New("leadstore: sql store requires a database handle")
	}
	return &SQLStore{db: db}, nil
}

// CreateLead runs the cap check and the insert in one transaction. The per-email guard row
// is locked first, so concurrent writers for the same email queue behind each other.
func (s *SQLStore) CreateLead(ctx context.Context, lead *models.Lead, limit int) error {
	if lead == nil {
		return errors.New("leadstore: lead is required")
	}
	defer observe(BackendSQL, "create_lead", time.Now())

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		guard := models.LeadGuard{Email: lead.Email}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&guard).Error; err != nil {
			return fmt.Errorf("leadstore: ensure guard: %w", err)
		}
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("email = ?", lead.Email).
			Take(&guard).Error; err != nil {
			return fmt.Errorf("leadstore: lock guard: %w", err)
		}

		if limit > 0 {
			var ids []string
			if err := tx.Model(&models.Lead{}).
				Where("email = ?", lead.Email).
				Limit(limit).
				Pluck("id", &ids).Error; err != nil {
				return fmt.Errorf("leadstore: count leads: %w", err)
			}
			if len(ids) >= limit {
				return ErrLimitReached
			}
		}

		if err := tx.Create(lead).Error; err != nil {
			if database.IsUniqueConstraintError(err) {
				return fmt.Errorf("%w: %v", ErrDuplicateLead, err)
			}
			return fmt.Errorf("leadstore: insert lead: %w", err)
		}
		return nil
	})
}

// UpsertReferral inserts the referral row or overwrites its source and timestamp.
func (s *SQLStore) UpsertReferral(ctx context.Context, ref *models.LeadReferral) error {
	if ref == nil {
		return errors.New("leadstore: referral is required")
	}
	defer observe(BackendSQL, "upsert_referral", time.Now())

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "email_hash"}},
			DoUpdates: clause.AssignmentColumns([]string{"referral_source", "updated_at"}),
		}).
		Create(ref).Error
	if err != nil {
		return fmt.Errorf("leadstore: upsert referral: %w", err)
	}
	return nil
}

// Ping verifies the database connection.
func (s *SQLStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
