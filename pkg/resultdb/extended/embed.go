package extended

import (
	"embed"
	"io/fs"

	"github.com/perfline/resultdb/internal/migrate"
)

// migrationScripts holds the extension's migration scripts, one
// subdirectory per engine dialect. Versions live above the core range so
// the combined location list stays collision-free.
//
//go:embed migrations
var migrationScripts embed.FS

func init() {
	scripts, err := fs.Sub(migrationScripts, "migrations")
	if err != nil {
		panic(err)
	}
	migrate.RegisterFS("extended", scripts)
}
