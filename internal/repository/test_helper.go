package repository

import (
	"testing"

	"github.com/nimasrn/outreach-engine/pkg/pg"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Entities lists every table the engine owns, in dependency order.
func Entities() []interface{} {
	return []interface{}{
		&CampaignEntity{},
		&StepEntity{},
		&AccountEntity{},
		&CampaignAccountEntity{},
		&LeadEntity{},
		&CampaignLeadEntity{},
		&SentEmailEntity{},
		&UnsubscribeEntity{},
		&BounceEntity{},
		&WarmupLogEntity{},
	}
}

// NewTestDB opens an in-memory sqlite database with every table migrated.
// A single connection keeps all callers on the same in-memory database.
func NewTestDB(t testing.TB) *pg.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(Entities()...))
	return pg.Wrap(db, db)
}
