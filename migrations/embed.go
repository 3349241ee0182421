// Package migrations embeds the run history schema into the binary.
package migrations

import (
	"embed"

	"github.com/arach/vif-sub000/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
