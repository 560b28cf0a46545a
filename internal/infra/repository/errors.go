package repository

import (
	"context"
	"errors"
	"fmt"

	repo "github.com/Kimbarona/dream-pack-store-be-sub000/internal/repository"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// postgres のエラーコード
const (
	pgUniqueViolation      = "23505"
	pgLockNotAvailable     = "55P03"
	pgDeadlockDetected     = "40P01"
	pgSerializationFailure = "40001"
)

// mysql のエラー番号
const (
	myDuplicateEntry  = 1062
	myLockWaitTimeout = 1205
	myDeadlockFound   = 1213
)

// translateError はドライバ固有のエラーを repository のエラーに寄せる。
// それ以外のエラーはそのまま返す。
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return repo.ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %v", repo.ErrConflict, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return fmt.Errorf("%w: %s", repo.ErrConflict, pgErr.ConstraintName)
		case pgLockNotAvailable, pgDeadlockDetected, pgSerializationFailure:
			return fmt.Errorf("%w: %s", repo.ErrLockTimeout, pgErr.Message)
		}
	}

	var myErr *mysqldriver.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case myDuplicateEntry:
			return fmt.Errorf("%w: %s", repo.ErrConflict, myErr.Message)
		case myLockWaitTimeout, myDeadlockFound:
			return fmt.Errorf("%w: %s", repo.ErrLockTimeout, myErr.Message)
		}
	}

	// ロック待ちの途中でリクエストの期限が切れた
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", repo.ErrLockTimeout, err)
	}
	return err
}
