package migrate

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perfline/resultdb/internal/core"
	"github.com/perfline/resultdb/internal/engine"
)

func testEngine(t *testing.T) core.Engine {
	t.Helper()

	eng, err := engine.Create(core.EngineConfig{
		Type: "sqlite",
		Path: filepath.Join(t.TempDir(), "migrate.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })
	return eng
}

func writeScript(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

const widgetsDDL = `-- widgets base table
CREATE TABLE widgets (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    label TEXT NOT NULL UNIQUE
);
INSERT INTO widgets (label) VALUES ('seed');
`

func TestParseLocation(t *testing.T) {
	cases := []struct {
		raw     string
		want    Location
		wantErr bool
	}{
		{raw: "embed:core/sqlite", want: Location{Scheme: SchemeEmbed, Path: "core/sqlite"}},
		{raw: "core/sqlite", want: Location{Scheme: SchemeEmbed, Path: "core/sqlite"}},
		{raw: "filesystem:/srv/migrations", want: Location{Scheme: SchemeFilesystem, Path: "/srv/migrations"}},
		{raw: "ftp:somewhere", wantErr: true},
		{raw: "embed:", wantErr: true},
		{raw: "", wantErr: true},
	}
	for _, tc := range cases {
		loc, err := ParseLocation(tc.raw)
		if tc.wantErr {
			assert.Error(t, err, "raw=%q", tc.raw)
			continue
		}
		require.NoError(t, err, "raw=%q", tc.raw)
		assert.Equal(t, tc.want, loc)
	}
}

func TestParseScriptVersion(t *testing.T) {
	v, ok := parseScriptVersion("V001__create_core_tables.sql")
	require.True(t, ok)
	assert.Equal(t, int64(1), v)

	v, ok = parseScriptVersion("V101__add_confidence_levels.sql")
	require.True(t, ok)
	assert.Equal(t, int64(101), v)

	for _, bad := range []string{"notes.txt", "V__missing.sql", "V12_single.sql", "V12__bad name.sql"} {
		_, ok := parseScriptVersion(bad)
		assert.False(t, ok, "name=%q", bad)
	}
}

func TestSplitStatements(t *testing.T) {
	statements := splitStatements(widgetsDDL)
	require.Len(t, statements, 2)
	assert.Contains(t, statements[0], "CREATE TABLE widgets")
	assert.Contains(t, statements[1], "INSERT INTO widgets")
}

func TestApplyIsIdempotent(t *testing.T) {
	ctx := context.Background()
	eng := testEngine(t)
	dir := t.TempDir()
	writeScript(t, dir, "V001__create_widgets.sql", widgetsDDL)
	writeScript(t, dir, "V002__add_color.sql", "ALTER TABLE widgets ADD COLUMN color TEXT;")

	var appliedNames []string
	runner := NewRunner(WithAppliedHook(func(s Script, _ time.Duration) {
		appliedNames = append(appliedNames, s.Name)
	}))

	locations := []string{"filesystem:" + dir}
	require.NoError(t, runner.Apply(ctx, eng, locations))
	assert.Equal(t, []string{"V001__create_widgets.sql", "V002__add_color.sql"}, appliedNames)

	var seeded int
	require.NoError(t, eng.QueryRow(ctx, `SELECT COUNT(*) FROM widgets`).Scan(&seeded))
	assert.Equal(t, 1, seeded)

	// Second run applies nothing and changes nothing.
	require.NoError(t, runner.Apply(ctx, eng, locations))
	assert.Len(t, appliedNames, 2)

	var recorded int
	require.NoError(t, eng.QueryRow(ctx, `SELECT COUNT(*) FROM schema_migrations`).Scan(&recorded))
	assert.Equal(t, 2, recorded)
}

func TestApplyDetectsChecksumDrift(t *testing.T) {
	ctx := context.Background()
	eng := testEngine(t)
	dir := t.TempDir()
	writeScript(t, dir, "V001__create_widgets.sql", widgetsDDL)

	runner := NewRunner()
	locations := []string{"filesystem:" + dir}
	require.NoError(t, runner.Apply(ctx, eng, locations))

	writeScript(t, dir, "V001__create_widgets.sql", "CREATE TABLE widgets (id INTEGER PRIMARY KEY);")
	err := runner.Apply(ctx, eng, locations)
	require.ErrorContains(t, err, "checksum mismatch")
}

func TestApplyRejectsDuplicateVersions(t *testing.T) {
	ctx := context.Background()
	eng := testEngine(t)

	dirA := t.TempDir()
	dirB := t.TempDir()
	writeScript(t, dirA, "V001__from_a.sql", "CREATE TABLE a (id INTEGER);")
	writeScript(t, dirB, "V001__from_b.sql", "CREATE TABLE b (id INTEGER);")

	err := NewRunner().Apply(ctx, eng, []string{"filesystem:" + dirA, "filesystem:" + dirB})
	require.ErrorContains(t, err, "duplicate migration version 1")
}

func TestApplyExpandsEngineToken(t *testing.T) {
	ctx := context.Background()
	eng := testEngine(t)

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sqlite"), 0o755))
	writeScript(t, filepath.Join(dir, "sqlite"), "V001__dialect_table.sql",
		"CREATE TABLE dialect_things (id INTEGER PRIMARY KEY AUTOINCREMENT);")

	require.NoError(t, NewRunner().Apply(ctx, eng, []string{"filesystem:" + dir + "/{engine}"}))

	var n int
	require.NoError(t, eng.QueryRow(ctx, `SELECT COUNT(*) FROM dialect_things`).Scan(&n))
	assert.Zero(t, n)
}

func TestApplyUsesDefaultLocations(t *testing.T) {
	ctx := context.Background()
	eng := testEngine(t)
	dir := t.TempDir()
	writeScript(t, dir, "V001__create_widgets.sql", widgetsDDL)

	runner := NewRunner(WithDefaultLocations("filesystem:" + dir))
	require.NoError(t, runner.Apply(ctx, eng, nil))

	var n int
	require.NoError(t, eng.QueryRow(ctx, `SELECT COUNT(*) FROM widgets`).Scan(&n))
	assert.Equal(t, 1, n)

	_, err := NewRunner().Plan(ctx, eng, nil)
	require.ErrorContains(t, err, "no migration locations configured")
}

func TestApplyFromEmbeddedFilesystem(t *testing.T) {
	ctx := context.Background()
	eng := testEngine(t)

	RegisterFS("migratetest", fstest.MapFS{
		"sqlite/V001__embedded_table.sql": &fstest.MapFile{
			Data: []byte("CREATE TABLE embedded_things (id INTEGER PRIMARY KEY AUTOINCREMENT);"),
		},
	})

	require.NoError(t, NewRunner().Apply(ctx, eng, []string{"embed:migratetest/{engine}"}))

	var n int
	require.NoError(t, eng.QueryRow(ctx, `SELECT COUNT(*) FROM embedded_things`).Scan(&n))
	assert.Zero(t, n)
}

func TestRegisterFSRejectsDuplicates(t *testing.T) {
	fsys := fstest.MapFS{}
	RegisterFS("migratetest-dup", fsys)
	assert.PanicsWithValue(t, `script filesystem "migratetest-dup" is already registered`, func() {
		RegisterFS("migratetest-dup", fsys)
	})
	assert.Panics(t, func() { RegisterFS("", fsys) })
	assert.Panics(t, func() { RegisterFS("migratetest-nil", nil) })
}

func TestUnknownEmbedName(t *testing.T) {
	ctx := context.Background()
	eng := testEngine(t)

	err := NewRunner().Apply(ctx, eng, []string{"embed:never-registered"})
	require.ErrorContains(t, err, `no script filesystem registered as "never-registered"`)
}

func TestPlanAndRender(t *testing.T) {
	ctx := context.Background()
	eng := testEngine(t)
	dir := t.TempDir()
	writeScript(t, dir, "V001__create_widgets.sql", widgetsDDL)

	runner := NewRunner()
	locations := []string{"filesystem:" + dir}
	require.NoError(t, runner.Apply(ctx, eng, locations))

	writeScript(t, dir, "V002__add_color.sql", "ALTER TABLE widgets ADD COLUMN color TEXT;")

	entries, err := runner.Plan(ctx, eng, locations)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.True(t, entries[0].Applied)
	assert.False(t, entries[1].Applied)

	g := goldie.New(t)
	g.Assert(t, "plan", []byte(RenderPlan(entries)))
}
