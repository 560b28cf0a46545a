package db

import (
	"strings"
	"testing"

	"github.com/Kimbarona/dream-pack-store-be-sub000/migrations"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// 空白を1つに潰して比較する
func squash(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// AutoMigrate で作ったDBにもマイグレーションと同じ部分一意インデックスを張る
func TestActiveSessionIndexMatchesMigration(t *testing.T) {
	up, err := migrations.FS.ReadFile("000001_init.up.sql")
	require.NoError(t, err)

	want := squash(activeSessionIndexSQL)
	assert.Contains(t, squash(string(up)), want+";")
	assert.Contains(t, want, "WHERE status IN ('pending', 'partial')")
}

func TestCreateActiveSessionIndex_Postgres(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB, PreferSimpleProtocol: true}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	mock.ExpectExec(`CREATE UNIQUE INDEX IF NOT EXISTS ux_payment_sessions_active_order`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, createActiveSessionIndex(gdb))
	assert.NoError(t, mock.ExpectationsWereMet())
}
