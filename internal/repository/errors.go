package repository

import "errors"

var (
	ErrNotFound = errors.New("not found")
	// 一意制約違反
	ErrConflict = errors.New("conflict")
	// ロック待ちのタイムアウト/デッドロック。再試行してよい。
	ErrLockTimeout = errors.New("lock timeout")
)
