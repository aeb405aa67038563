package store

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// UnknownDevice is the sentinel bucket for messages whose device identifier
// was blank after normalization, and for registry entries with no country.
const UnknownDevice = "unknown"

// MaxPageSize caps Recent page sizes to bound response payloads.
const MaxPageSize = 100

const defaultPageSize = 50

type Store struct {
	db  *gorm.DB
	now func() time.Time
}

func New(db *gorm.DB) *Store {
	return &Store{db: db, now: time.Now}
}

func (s *Store) AutoMigrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&Message{}, &Device{})
}
