package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/alicebob/miniredis/v2"

	"github.com/evanschultz/laneboard/internal/config"
	"github.com/evanschultz/laneboard/internal/tui"
)

// TestMain sets deterministic environment defaults for CLI tests.
func TestMain(m *testing.M) {
	_ = os.Setenv("LANEBOARD_DEV_MODE", "false")
	os.Exit(m.Run())
}

type fakeProgram struct {
	runErr error
}

func (f fakeProgram) Run() (tea.Model, error) {
	return nil, f.runErr
}

// testEnv is one isolated config and database pair.
type testEnv struct {
	dir     string
	cfgPath string
	dbPath  string
}

func newTestEnv(t *testing.T, cfgContent string) testEnv {
	t.Helper()
	dir := t.TempDir()
	env := testEnv{
		dir:     dir,
		cfgPath: filepath.Join(dir, "config.toml"),
		dbPath:  filepath.Join(dir, "laneboard.db"),
	}
	if err := os.WriteFile(env.cfgPath, []byte(cfgContent), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return env
}

// exec runs one command against env and returns stdout.
func (e testEnv) exec(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out strings.Builder
	full := append([]string{"--config", e.cfgPath, "--db", e.dbPath}, args...)
	err := run(context.Background(), full, &out, io.Discard)
	return out.String(), err
}

func (e testEnv) mustExec(t *testing.T, args ...string) string {
	t.Helper()
	out, err := e.exec(t, args...)
	if err != nil {
		t.Fatalf("run(%v) error = %v", args, err)
	}
	return out
}

func TestRunVersion(t *testing.T) {
	var out strings.Builder
	if err := run(context.Background(), []string{"--version"}, &out, io.Discard); err != nil {
		t.Fatalf("run(--version) error = %v", err)
	}
	if !strings.Contains(out.String(), version) {
		t.Fatalf("expected version output, got %q", out.String())
	}
}

func TestRunStartsProgram(t *testing.T) {
	origFactory := programFactory
	t.Cleanup(func() { programFactory = origFactory })

	var started tea.Model
	programFactory = func(m tea.Model) program {
		started = m
		return fakeProgram{}
	}
	env := newTestEnv(t, "[board]\ndrag_threshold = 2\n")
	if _, err := env.exec(t); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if _, ok := started.(tui.Model); !ok {
		t.Fatalf("expected tui.Model, got %T", started)
	}
	if _, err := os.Stat(env.dbPath); err != nil {
		t.Fatalf("expected sqlite db created, stat error %v", err)
	}
}

func TestRunReportsProgramFailure(t *testing.T) {
	origFactory := programFactory
	t.Cleanup(func() { programFactory = origFactory })
	programFactory = func(tea.Model) program { return fakeProgram{runErr: errors.New("no tty")} }

	env := newTestEnv(t, "")
	_, err := env.exec(t)
	if err == nil || !strings.Contains(err.Error(), "no tty") {
		t.Fatalf("expected program error, got %v", err)
	}
}

func TestRunInvalidFlagAndUnknownCommand(t *testing.T) {
	if err := run(context.Background(), []string{"--definitely-not-a-flag"}, io.Discard, io.Discard); err == nil {
		t.Fatal("expected invalid flag error")
	}
	if err := run(context.Background(), []string{"frobnicate"}, io.Discard, io.Discard); err == nil {
		t.Fatal("expected unknown command error")
	}
}

func TestRunAddMoveAndActivity(t *testing.T) {
	env := newTestEnv(t, "")

	id := strings.TrimSpace(env.mustExec(t, "add", "Write docs", "--description", "the **guide**"))
	if id == "" {
		t.Fatal("expected created task id")
	}
	board := env.mustExec(t, "board")
	if !strings.Contains(board, "To Do (1)") || !strings.Contains(board, id+"  Write docs") {
		t.Fatalf("unexpected board output %q", board)
	}

	out := env.mustExec(t, "move", id, "done")
	if strings.TrimSpace(out) != "Moved to 'Done' successfully" {
		t.Fatalf("unexpected move output %q", out)
	}
	out = env.mustExec(t, "move", id, "3")
	if strings.TrimSpace(out) != "Task is already in 'Done'" {
		t.Fatalf("unexpected no-op output %q", out)
	}
	board = env.mustExec(t, "board")
	if !strings.Contains(board, "To Do (0)") || !strings.Contains(board, "Done (1)") {
		t.Fatalf("expected task in Done, got %q", board)
	}

	activity := env.mustExec(t, "activity", id)
	if !strings.Contains(activity, "move To Do -> Done") || !strings.Contains(activity, "user/cli") {
		t.Fatalf("unexpected activity output %q", activity)
	}
}

func TestRunMoveErrors(t *testing.T) {
	env := newTestEnv(t, "")
	if _, err := env.exec(t, "move", "missing", "done"); err == nil {
		t.Fatal("expected missing task error")
	}
	id := strings.TrimSpace(env.mustExec(t, "add", "Task"))
	if _, err := env.exec(t, "move", id, "archived"); err == nil || !strings.Contains(err.Error(), "archived") {
		t.Fatalf("expected unknown lane error, got %v", err)
	}
	if _, err := env.exec(t, "add", "Task", "--lane", "9"); err == nil {
		t.Fatal("expected invalid initial lane error")
	}
}

func TestRunExportImportRoundTrip(t *testing.T) {
	src := newTestEnv(t, "")
	src.mustExec(t, "add", "First")
	src.mustExec(t, "add", "Second", "--lane", "In Progress")

	yamlPath := filepath.Join(src.dir, "board.yaml")
	if out := src.mustExec(t, "export", "--out", yamlPath); strings.TrimSpace(out) != yamlPath {
		t.Fatalf("expected export path echoed, got %q", out)
	}
	content, err := os.ReadFile(yamlPath)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(content), "tasks:") || !strings.Contains(string(content), "title: Second") {
		t.Fatalf("expected yaml snapshot, got %q", content)
	}

	stdout := src.mustExec(t, "export", "--out", "-", "--format", "json")
	if !strings.HasPrefix(strings.TrimSpace(stdout), "{") {
		t.Fatalf("expected json on stdout, got %q", stdout)
	}

	dst := newTestEnv(t, "")
	if out := dst.mustExec(t, "import", "--in", yamlPath); strings.TrimSpace(out) != "imported 2 tasks" {
		t.Fatalf("unexpected import output %q", out)
	}
	board := dst.mustExec(t, "board")
	if !strings.Contains(board, "To Do (1)") || !strings.Contains(board, "In Progress (1)") {
		t.Fatalf("unexpected imported board %q", board)
	}
}

func TestRunExportDefaultsToExportDir(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	env := newTestEnv(t, "")
	out := strings.TrimSpace(env.mustExec(t, "export"))
	if !strings.HasSuffix(out, ".json") || !strings.Contains(out, filepath.Join("laneboard", "exports")) {
		t.Fatalf("expected file under export dir, got %q", out)
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatalf("expected export file, stat error %v", err)
	}
}

func TestRunImportErrors(t *testing.T) {
	env := newTestEnv(t, "")
	if _, err := env.exec(t, "import"); err == nil || !strings.Contains(err.Error(), "--in is required") {
		t.Fatalf("expected missing --in error, got %v", err)
	}
	bad := filepath.Join(env.dir, "bad.json")
	if err := os.WriteFile(bad, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if _, err := env.exec(t, "import", "--in", bad); err == nil {
		t.Fatal("expected decode error")
	}
	if _, err := env.exec(t, "import", "--in", bad, "--format", "toml"); err == nil {
		t.Fatal("expected unsupported format error")
	}
}

func TestRunRedisDriver(t *testing.T) {
	mr := miniredis.RunT(t)
	env := newTestEnv(t, fmt.Sprintf("[database]\ndriver = \"redis\"\n\n[database.redis]\naddr = %q\nprefix = \"cli:\"\n", mr.Addr()))

	id := strings.TrimSpace(env.mustExec(t, "add", "Cache warmup", "--lane", "2"))
	if !mr.Exists("cli:task:" + id) {
		t.Fatalf("expected task stored in redis, keys %v", mr.Keys())
	}
	board := env.mustExec(t, "board")
	if !strings.Contains(board, "In Progress (1)") {
		t.Fatalf("unexpected redis board %q", board)
	}
	if _, err := os.Stat(env.dbPath); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected no sqlite file for redis driver, stat error %v", err)
	}
}

func TestRunRedisDriverUnreachable(t *testing.T) {
	env := newTestEnv(t, "[database]\ndriver = \"redis\"\n\n[database.redis]\naddr = \"127.0.0.1:1\"\n")
	if _, err := env.exec(t, "board"); err == nil || !strings.Contains(err.Error(), "open redis repository") {
		t.Fatalf("expected redis open error, got %v", err)
	}
}

func TestRunConfigAndDBEnvOverrides(t *testing.T) {
	tmp := t.TempDir()
	dbPath := filepath.Join(tmp, "env.db")
	cfgPath := filepath.Join(tmp, "env.toml")
	if err := os.WriteFile(cfgPath, []byte("[database]\npath = \"/tmp/ignore-me.db\"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	t.Setenv("LANEBOARD_CONFIG", cfgPath)
	t.Setenv("LANEBOARD_DB_PATH", dbPath)

	if err := run(context.Background(), []string{"board"}, io.Discard, io.Discard); err != nil {
		t.Fatalf("run(board with env paths) error = %v", err)
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("expected db created at env path, stat error %v", err)
	}
}

func TestRunPathsCommand(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	var out strings.Builder
	if err := run(context.Background(), []string{"--app", "lanex", "--dev", "paths"}, &out, io.Discard); err != nil {
		t.Fatalf("run(paths) error = %v", err)
	}
	output := out.String()
	for _, want := range []string{"app: lanex", "dev_mode: true", "lanex-dev", "exports:"} {
		if !strings.Contains(output, want) {
			t.Fatalf("expected %q in paths output, got %q", want, output)
		}
	}
}

func TestRunRejectsInvalidLoggingLevelFromConfig(t *testing.T) {
	env := newTestEnv(t, "[logging]\nlevel = \"verbose\"\n")
	_, err := env.exec(t, "board")
	if err == nil || !strings.Contains(err.Error(), "invalid logging.level") {
		t.Fatalf("expected logging level validation error, got %v", err)
	}
}

func TestRunTUIModeWritesRuntimeLogsToFileOnly(t *testing.T) {
	origFactory := programFactory
	t.Cleanup(func() { programFactory = origFactory })
	programFactory = func(tea.Model) program { return fakeProgram{} }

	workspace := t.TempDir()
	t.Chdir(workspace)
	env := newTestEnv(t, "")

	var stderr bytes.Buffer
	args := []string{"--dev", "--config", env.cfgPath, "--db", env.dbPath}
	if err := run(context.Background(), args, io.Discard, &stderr); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if got := strings.TrimSpace(stderr.String()); got != "" {
		t.Fatalf("expected no runtime stderr output in TUI mode, got %q", got)
	}

	logDir := filepath.Join(workspace, ".laneboard", "log")
	entries, err := os.ReadDir(logDir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	var logPath string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".log") {
			logPath = filepath.Join(logDir, entry.Name())
			break
		}
	}
	if logPath == "" {
		t.Fatalf("expected a .log file in %s", logDir)
	}
	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(content), "starting tui program loop") {
		t.Fatalf("expected tui lifecycle entries in log file, got %q", content)
	}
}

func TestCLICommandsLogToConsole(t *testing.T) {
	env := newTestEnv(t, "")
	var stderr bytes.Buffer
	args := []string{"--config", env.cfgPath, "--db", env.dbPath, "board"}
	if err := run(context.Background(), args, io.Discard, &stderr); err != nil {
		t.Fatalf("run(board) error = %v", err)
	}
	if !strings.Contains(stderr.String(), "command flow complete") {
		t.Fatalf("expected console runtime logs, got %q", stderr.String())
	}
}

func TestParseBoolEnv(t *testing.T) {
	t.Setenv("LANEBOARD_BOOL_TEST", "true")
	got, ok := parseBoolEnv("LANEBOARD_BOOL_TEST")
	if !ok || !got {
		t.Fatalf("expected true bool env parse, got value=%t ok=%t", got, ok)
	}
	t.Setenv("LANEBOARD_BOOL_TEST", "not-bool")
	if _, ok := parseBoolEnv("LANEBOARD_BOOL_TEST"); ok {
		t.Fatal("expected invalid bool env to return ok=false")
	}
}

func TestToTUIKeyConfig(t *testing.T) {
	cfg := config.Default("/tmp/laneboard.db").Keys
	cfg.MoveTo = "M"
	got := toTUIKeyConfig(cfg)
	if got.MoveTo != "M" || got.AddTask != "n" || got.MoveTaskRight != "]" {
		t.Fatalf("unexpected key mapping %#v", got)
	}
}

func TestWorkspaceRootFromUsesNearestMarker(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "go.mod"), []byte("module example.com/test\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	nested := filepath.Join(root, "cmd", "laneboard")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if got := workspaceRootFrom(nested); filepath.Clean(got) != filepath.Clean(root) {
		t.Fatalf("expected workspace root %q, got %q", root, got)
	}
}

func TestDevLogFilePathResolvesAgainstWorkspaceRoot(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "go.mod"), []byte("module example.com/test\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	nested := filepath.Join(root, "internal", "tui")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	t.Chdir(nested)

	got, err := devLogFilePath(".laneboard/log", "lane board", time.Date(2026, 2, 22, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("devLogFilePath() error = %v", err)
	}
	normalize := func(p string) string {
		return strings.TrimPrefix(filepath.Clean(p), "/private")
	}
	want := filepath.Join(root, ".laneboard", "log", "lane-board-20260222.log")
	if normalize(got) != normalize(want) {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestSanitizeLogFileStem(t *testing.T) {
	cases := map[string]string{
		"laneboard": "laneboard",
		" a/b:c ":   "a-b-c",
		"///":       "laneboard",
		"":          "laneboard",
		"dev board": "dev-board",
	}
	for input, want := range cases {
		if got := sanitizeLogFileStem(input); got != want {
			t.Fatalf("sanitizeLogFileStem(%q) = %q, want %q", input, got, want)
		}
	}
}
