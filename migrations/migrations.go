// Package migrations содержит SQL-миграции схемы auth-service (goose).
package migrations

import "embed"

// FS: встроенные в бинарь файлы миграций.
//
//go:embed *.sql
var FS embed.FS
