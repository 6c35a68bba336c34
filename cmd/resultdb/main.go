// resultdb is a CLI for migrating and inspecting performance result
// databases.
package main

import (
	"os"

	"github.com/perfline/resultdb/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
