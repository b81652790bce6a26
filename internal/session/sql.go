package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Record is the gorm row backing SQLStore.
type Record struct {
	Key       string `gorm:"column:session_key;primaryKey;size:128"`
	Token     string `gorm:"size:1024"`
	UserID    int
	Email     string `gorm:"size:255"`
	SavedAt   time.Time
	UpdatedAt time.Time
}

// TableName pins the table name regardless of naming strategy.
func (Record) TableName() string { return "client_sessions" }

// SQLStore keeps sessions in a sqlite or postgres table.
type SQLStore struct {
	db  *gorm.DB
	ttl time.Duration
	now func() time.Time
}

// NewSQLStore migrates the sessions table and returns the store.
func NewSQLStore(db *gorm.DB, ttl time.Duration) (*SQLStore, error) {
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("failed to migrate sessions table: %w", err)
	}
	return newSQLStore(db, ttl), nil
}

func newSQLStore(db *gorm.DB, ttl time.Duration) *SQLStore {
	return &SQLStore{db: db, ttl: ttl, now: time.Now}
}

func (s *SQLStore) Load(ctx context.Context, key string) (Session, error) {
	var rec Record
	err := s.db.WithContext(ctx).Where("session_key = ?", key).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("load session %q: %w", key, err)
	}

	sess := Session{Token: rec.Token, UserID: rec.UserID, Email: rec.Email, SavedAt: rec.SavedAt}
	if expired(sess, s.ttl, s.now()) {
		_ = s.Delete(ctx, key)
		return Session{}, ErrNotFound
	}
	return sess, nil
}

func (s *SQLStore) Save(ctx context.Context, key string, sess Session) error {
	if sess.SavedAt.IsZero() {
		sess.SavedAt = s.now()
	}
	rec := Record{
		Key:     key,
		Token:   sess.Token,
		UserID:  sess.UserID,
		Email:   sess.Email,
		SavedAt: sess.SavedAt,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"token", "user_id", "email", "saved_at", "updated_at"}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("save session %q: %w", key, err)
	}
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, key string) error {
	if err := s.db.WithContext(ctx).Where("session_key = ?", key).Delete(&Record{}).Error; err != nil {
		return fmt.Errorf("delete session %q: %w", key, err)
	}
	return nil
}

func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
