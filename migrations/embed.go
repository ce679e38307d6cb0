// Package migrations embeds the SQL migration files into the binary so
// coopd can migrate its journal without the files on disk.
package migrations

import (
	"embed"

	"github.com/nerrad567/gamepad-coop/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
