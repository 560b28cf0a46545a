// Package migrations は golang-migrate 用の SQL（postgres）。
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
