// Package migrations embeds SQL migration files into the binary so a
// deployed hub never depends on loose .sql files on disk.
package migrations

import (
	"embed"

	"github.com/homelink/homelink-core/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
