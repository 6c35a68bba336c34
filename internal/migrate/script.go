package migrate

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Script is one versioned migration loaded from a location.
type Script struct {
	// Version orders scripts and is the idempotency key per target.
	Version int64

	// Name is the script file name, e.g. "V001__create_core_tables.sql".
	Name string

	// Location is the canonical location string the script came from.
	Location string

	// Checksum is the hex SHA-256 of the script contents.
	Checksum string

	// SQL is the script body.
	SQL string
}

// scriptNamePattern matches V<version>__<description>.sql.
var scriptNamePattern = regexp.MustCompile(`^V(\d+)__[A-Za-z0-9_]+\.sql$`)

// parseScriptVersion extracts the version from a script file name.
func parseScriptVersion(base string) (int64, bool) {
	m := scriptNamePattern.FindStringSubmatch(base)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// loadScripts walks fsys recursively and loads every migration script.
// Files that do not match the naming pattern are ignored.
func loadScripts(fsys fs.FS, location string) ([]Script, error) {
	var scripts []Script

	err := fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		base := d.Name()
		version, ok := parseScriptVersion(base)
		if !ok {
			return nil
		}

		body, err := fs.ReadFile(fsys, path)
		if err != nil {
			return fmt.Errorf("failed to read script %s: %w", path, err)
		}
		sum := sha256.Sum256(body)

		scripts = append(scripts, Script{
			Version:  version,
			Name:     base,
			Location: location,
			Checksum: hex.EncodeToString(sum[:]),
			SQL:      string(body),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan location %s: %w", location, err)
	}
	return scripts, nil
}

// orderScripts sorts scripts by version and rejects duplicate versions
// across the whole resolved set.
func orderScripts(scripts []Script) ([]Script, error) {
	sort.Slice(scripts, func(i, j int) bool { return scripts[i].Version < scripts[j].Version })

	for i := 1; i < len(scripts); i++ {
		if scripts[i].Version == scripts[i-1].Version {
			return nil, fmt.Errorf("duplicate migration version %d: %s (%s) and %s (%s)",
				scripts[i].Version,
				scripts[i-1].Name, scripts[i-1].Location,
				scripts[i].Name, scripts[i].Location)
		}
	}
	return scripts, nil
}

// splitStatements breaks a script body into executable statements.
// Full-line comments are stripped and the remainder splits on ";".
// Procedural bodies with embedded semicolons are not supported.
func splitStatements(sql string) []string {
	var kept []string
	for _, line := range strings.Split(sql, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		kept = append(kept, line)
	}

	var statements []string
	for _, stmt := range strings.Split(strings.Join(kept, "\n"), ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt != "" {
			statements = append(statements, stmt)
		}
	}
	return statements
}
