package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swatzat-oss/cs2-dumper/internal/constants"
	"github.com/swatzat-oss/cs2-dumper/internal/lookup"
	"github.com/swatzat-oss/cs2-dumper/internal/modules"
	"github.com/swatzat-oss/cs2-dumper/internal/offsets"
	"github.com/swatzat-oss/cs2-dumper/internal/resolver"
	"github.com/swatzat-oss/cs2-dumper/internal/testutil"
)

// run executes the command line in an isolated config directory.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv(constants.EnvConfigDir, t.TempDir())

	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(testutil.NewTestContext(t))
	return out.String(), err
}

func TestTableCmd(t *testing.T) {
	embedded, err := offsets.Embedded()
	require.NoError(t, err)

	out, err := run(t, "table")
	require.NoError(t, err)
	assert.Contains(t, out, "Generator:    cs2-dumper")
	assert.Contains(t, out, "Interfaces:   131")
	assert.Contains(t, out, fmt.Sprintf("Fingerprint:  %016x", embedded.Fingerprint()))
}

func TestTableListCmd(t *testing.T) {
	out, err := run(t, "table", "list", "Client.dll", "-o", "json")
	require.NoError(t, err)

	var rows []recordRow
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.NotEmpty(t, rows)
	for _, r := range rows {
		assert.Equal(t, "client.dll", r.Module)
	}
	assert.Contains(t, rows, recordRow{Module: "client.dll", Interface: "Source2Client002", Offset: "0x1E2D410"})

	_, err = run(t, "table", "list", "nosuchmodule.dll")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not in the offset table")
}

func TestTableExportCmd(t *testing.T) {
	embedded, err := offsets.Embedded()
	require.NoError(t, err)

	var want bytes.Buffer
	require.NoError(t, embedded.WriteHeader(&want))

	out, err := run(t, "table", "export", "--format", "hpp")
	require.NoError(t, err)
	assert.Equal(t, want.String(), out)

	path := filepath.Join(t.TempDir(), "interfaces.json")
	_, err = run(t, "table", "export", "--format", "json", "--out", path)
	require.NoError(t, err)

	table, err := offsets.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, embedded.Fingerprint(), table.Fingerprint())
}

func TestParsePairs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    []pair
		wantErr bool
	}{
		{
			name: "module then interfaces",
			args: []string{"client.dll", "Source2Client002", "Source2ClientUI001"},
			want: []pair{{"client.dll", "Source2Client002"}, {"client.dll", "Source2ClientUI001"}},
		},
		{
			name: "qualified references",
			args: []string{"client.dll!Source2Client002", "engine2.dll!BugService001"},
			want: []pair{{"client.dll", "Source2Client002"}, {"engine2.dll", "BugService001"}},
		},
		{name: "no arguments", wantErr: true},
		{name: "module only", args: []string{"client.dll"}, wantErr: true},
		{name: "empty interface", args: []string{"client.dll!"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parsePairs(tt.args)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewResultRow(t *testing.T) {
	table, err := offsets.Embedded()
	require.NoError(t, err)

	row := newResultRow(table, "CLIENT.dll", "Source2Client002", resolver.Resolution{Address: 0x7ff601e2d410, Generation: 2}, nil)
	assert.Equal(t, resultRow{
		Module:     "client.dll",
		Interface:  "Source2Client002",
		Offset:     "0x1E2D410",
		Address:    "0x7ff601e2d410",
		Generation: 2,
		Status:     "ok",
	}, row)

	_, lookupErr := table.Resolve("client.dll", "NoSuchInterface999")
	row = newResultRow(table, "client.dll", "NoSuchInterface999", resolver.Resolution{}, lookupErr)
	assert.Equal(t, "UnknownInterface", row.Status)
	assert.Empty(t, row.Offset)
	assert.NotEmpty(t, row.Error)
}

func TestResolveCmd_Self(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("reads /proc")
	}

	exe, err := os.Executable()
	require.NoError(t, err)
	exe, err = filepath.EvalSymlinks(exe)
	require.NoError(t, err)
	module := offsets.CanonicalModule(exe)

	tablePath := filepath.Join(t.TempDir(), "self.yaml")
	require.NoError(t, os.WriteFile(tablePath,
		[]byte("modules:\n  "+module+":\n    SelfTest001: 0x10\n"), 0o644))

	pid := strconv.Itoa(os.Getpid())

	out, err := run(t, "resolve", "--table", tablePath, "--pid", pid, "--log-level", "error",
		"-o", "json", module, "SelfTest001")
	require.NoError(t, err)

	var rows []resultRow
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "ok", rows[0].Status, rows[0].Error)
	assert.Equal(t, "0x10", rows[0].Offset)
	assert.NotEmpty(t, rows[0].Address)
	assert.Equal(t, uint64(1), rows[0].Generation)

	_, err = run(t, "resolve", "--table", tablePath, "--pid", pid, "--log-level", "error",
		"-o", "json", module+"!NoSuchInterface999")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 1 interfaces unavailable")

	out, err = run(t, "modules", "--table", tablePath, "--pid", pid, "--log-level", "error", "-o", "json")
	require.NoError(t, err)
	var modRows []moduleRow
	require.NoError(t, json.Unmarshal([]byte(out), &modRows))
	require.Len(t, modRows, 1)
	assert.Equal(t, module, modRows[0].Module)
	assert.NotEmpty(t, modRows[0].Base)
}

func TestVersionCmd(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "cs2-dumper version")
	assert.Contains(t, out, runtime.Version())
}

func TestFlagNormalization(t *testing.T) {
	out, err := run(t, "table", "--log_level", "warn")
	require.NoError(t, err)
	assert.Contains(t, out, "Generator:")
}

func TestReresolve(t *testing.T) {
	ctx := testutil.NewTestContext(t)
	table, err := offsets.New(offsets.Meta{}, []offsets.Record{
		{Module: "client.dll", Interface: "Source2Client002", Offset: 0x1E2D410},
		{Module: "client.dll", Interface: "Source2ClientUI001", Offset: 0x3000000},
	})
	require.NoError(t, err)

	src := modules.NewStaticSource(modules.Region{Name: "client.dll", Base: 0x7FF600000000, Size: 0x2000000})
	tracker := modules.NewTracker(src, modules.Options{}, zerolog.Nop())
	f, err := lookup.New(lookup.Options{Tables: offsets.NewStore(table), Tracker: tracker}, zerolog.Nop())
	require.NoError(t, err)

	var events []modules.ReloadEvent
	tracker.OnReload(func(ev modules.ReloadEvent) { events = append(events, ev) })

	_, err = f.Resolve(ctx, "client.dll", "Source2Client002")
	require.NoError(t, err)

	src.Load(modules.Region{Name: "client.dll", Base: 0x7FF700000000, Size: 0x2000000})
	_, err = tracker.Refresh(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)

	var buf bytes.Buffer
	reresolve(ctx, f, events[0], zerolog.New(&buf))

	logs := buf.String()
	assert.Contains(t, logs, "Interface re-resolved")
	assert.Contains(t, logs, "0x7ff701e2d410")
	assert.Contains(t, logs, "Interface unavailable after module change")
	assert.Equal(t, uint64(3), f.Stats().Resolutions)
	assert.Equal(t, uint64(1), f.Stats().Failures)
}
