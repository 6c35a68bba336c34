// Package migrate applies versioned SQL scripts to a database engine.
//
// Scripts are named V<version>__<description>.sql and collected from an
// ordered list of locations. A location is either embedded ("embed:", the
// default scheme, backed by go:embed filesystems the schema packages
// register) or on disk ("filesystem:"). Application is idempotent per
// target: completed versions are recorded in schema_migrations and
// verified by checksum on every later run.
package migrate

import (
	"fmt"
	"strings"
)

// Location schemes.
const (
	SchemeEmbed      = "embed"
	SchemeFilesystem = "filesystem"
)

// engineToken is replaced in location paths with the active engine name,
// so one location list covers every SQL dialect a variant ships.
const engineToken = "{engine}"

// Location is one parsed script source.
type Location struct {
	// Scheme is SchemeEmbed or SchemeFilesystem.
	Scheme string

	// Path is the location path: for embed locations the registered
	// filesystem name optionally followed by a subdirectory; for
	// filesystem locations a directory path.
	Path string
}

// ParseLocation parses a location string. A string without a scheme
// prefix is an embed location.
func ParseLocation(raw string) (Location, error) {
	if raw == "" {
		return Location{}, fmt.Errorf("empty migration location")
	}

	scheme, path, found := strings.Cut(raw, ":")
	if !found {
		return Location{Scheme: SchemeEmbed, Path: raw}, nil
	}

	switch scheme {
	case SchemeEmbed, SchemeFilesystem:
		if path == "" {
			return Location{}, fmt.Errorf("migration location %q has an empty path", raw)
		}
		return Location{Scheme: scheme, Path: path}, nil
	default:
		return Location{}, fmt.Errorf("unknown migration location scheme %q in %q", scheme, raw)
	}
}

// String returns the canonical scheme:path form.
func (l Location) String() string {
	return l.Scheme + ":" + l.Path
}

// expandEngine replaces the {engine} token in the location path.
func (l Location) expandEngine(engineName string) Location {
	l.Path = strings.ReplaceAll(l.Path, engineToken, engineName)
	return l
}
