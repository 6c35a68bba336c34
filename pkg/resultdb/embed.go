package resultdb

import (
	"embed"
	"io/fs"

	"github.com/perfline/resultdb/internal/migrate"
)

// migrationScripts holds the core variant's migration scripts, one
// subdirectory per engine dialect.
//
//go:embed migrations
var migrationScripts embed.FS

func init() {
	scripts, err := fs.Sub(migrationScripts, "migrations")
	if err != nil {
		panic(err)
	}
	migrate.RegisterFS("core", scripts)
}
