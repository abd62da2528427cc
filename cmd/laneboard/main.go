package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/fang"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/evanschultz/laneboard/internal/adapters/metrics"
	"github.com/evanschultz/laneboard/internal/adapters/server"
	"github.com/evanschultz/laneboard/internal/adapters/server/common"
	redisstore "github.com/evanschultz/laneboard/internal/adapters/storage/redis"
	"github.com/evanschultz/laneboard/internal/adapters/storage/sqlite"
	"github.com/evanschultz/laneboard/internal/app"
	"github.com/evanschultz/laneboard/internal/config"
	"github.com/evanschultz/laneboard/internal/domain"
	"github.com/evanschultz/laneboard/internal/notify"
	"github.com/evanschultz/laneboard/internal/platform"
	"github.com/evanschultz/laneboard/internal/tui"
)

var version = "dev"

// drainTimeout bounds how long exit waits for in-flight transitions.
const drainTimeout = 5 * time.Second

type program interface {
	Run() (tea.Model, error)
}

var programFactory = func(m tea.Model) program {
	return tea.NewProgram(m)
}

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		os.Exit(1)
	}
}

// run builds the command tree and executes args against it.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	root := newRootCommand(stdout, stderr)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return fang.Execute(ctx, root, fang.WithVersion(version))
}

// globalOptions holds the flags shared by every command.
type globalOptions struct {
	configPath string
	dbPath     string
	appName    string
	devMode    bool
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	opts := &globalOptions{appName: platform.DefaultAppName, devMode: version == "dev"}
	if envDev, ok := parseBoolEnv("LANEBOARD_DEV_MODE"); ok {
		opts.devMode = envDev
	}
	if envApp := strings.TrimSpace(os.Getenv("LANEBOARD_APP_NAME")); envApp != "" {
		opts.appName = envApp
	}

	root := &cobra.Command{
		Use:           "laneboard",
		Short:         "Three-lane task board with drag-and-drop status moves",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTUI(cmd.Context(), opts, stderr)
		},
	}
	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "path to config TOML")
	flags.StringVar(&opts.dbPath, "db", "", "path to sqlite database")
	flags.StringVar(&opts.appName, "app", opts.appName, "application name for config/data path resolution")
	flags.BoolVar(&opts.devMode, "dev", opts.devMode, "use dev mode paths (<app>-dev)")

	root.AddCommand(
		pathsCmd(opts, stdout),
		boardCmd(opts, stdout, stderr),
		addCmd(opts, stdout, stderr),
		moveCmd(opts, stdout, stderr),
		activityCmd(opts, stdout, stderr),
		exportCmd(opts, stdout, stderr),
		importCmd(opts, stdout, stderr),
		serveCmd(opts, stdout, stderr),
	)
	return root
}

func pathsCmd(opts *globalOptions, stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print resolved config and data paths",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			settings, err := resolveSettings(opts)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(stdout, "app: %s\n", opts.appName)
			_, _ = fmt.Fprintf(stdout, "dev_mode: %t\n", opts.devMode)
			_, _ = fmt.Fprintf(stdout, "config: %s\n", settings.configPath)
			_, _ = fmt.Fprintf(stdout, "data_dir: %s\n", settings.paths.DataDir)
			_, _ = fmt.Fprintf(stdout, "db: %s\n", settings.dbPath)
			_, _ = fmt.Fprintf(stdout, "exports: %s\n", settings.paths.ExportDir)
			return nil
		},
	}
}

func boardCmd(opts *globalOptions, stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "board",
		Short: "Print the board grouped by lane",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd.Context(), opts, "board", stderr, func(ctx context.Context, rt *runtimeEnv) error {
				board, err := rt.svc.Board(ctx)
				if err != nil {
					return fmt.Errorf("load board: %w", err)
				}
				writeBoard(stdout, board)
				return nil
			})
		},
	}
}

func addCmd(opts *globalOptions, stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add [title]",
		Short: "Create a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			description, _ := cmd.Flags().GetString("description")
			rawLane, _ := cmd.Flags().GetString("lane")
			lane, err := domain.ParseLane(rawLane)
			if err != nil {
				return fmt.Errorf("lane %q: %w", rawLane, err)
			}
			return withRuntime(cmd.Context(), opts, "add", stderr, func(ctx context.Context, rt *runtimeEnv) error {
				task, err := rt.svc.CreateTask(ctx, app.CreateTaskInput{
					Title:       args[0],
					Description: description,
					Status:      lane.Name(),
				})
				if err != nil {
					return fmt.Errorf("create task: %w", err)
				}
				_, _ = fmt.Fprintln(stdout, task.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringP("description", "d", "", "Task description (markdown)")
	cmd.Flags().StringP("lane", "l", domain.LaneTodo.Name(), "Initial lane (name or 1-3)")
	return cmd
}

func moveCmd(opts *globalOptions, stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "move [task-id] [lane]",
		Short: "Move a task to another lane",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			lane, err := domain.ParseLane(args[1])
			if err != nil {
				return fmt.Errorf("lane %q: %w", args[1], err)
			}
			return withRuntime(cmd.Context(), opts, "move", stderr, func(ctx context.Context, rt *runtimeEnv) error {
				task, err := rt.svc.GetTask(ctx, args[0])
				if err != nil {
					return fmt.Errorf("load task: %w", err)
				}
				req, err := app.NewTransitionRequest(task, lane)
				if err != nil {
					return err
				}
				ctrl := app.NewTransitionController(rt.svc, notify.NewLogSink(rt.logger), app.WithInFlightGuard(rt.cfg.Board.StrictTransitions))
				ctx = app.WithMutationActor(ctx, app.MutationActor{ActorID: "cli", ActorType: domain.ActorTypeUser})
				outcome, err := ctrl.RequestTransition(ctx, req).Wait(ctx)
				if err != nil {
					return fmt.Errorf("wait for move: %w", err)
				}
				if outcome.Err != nil {
					return fmt.Errorf("move task: %w", outcome.Err)
				}
				_, _ = fmt.Fprintln(stdout, outcome.Message)
				return nil
			})
		},
	}
}

func activityCmd(opts *globalOptions, stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "activity [task-id]",
		Short: "List recent changes for a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			return withRuntime(cmd.Context(), opts, "activity", stderr, func(ctx context.Context, rt *runtimeEnv) error {
				events, err := rt.svc.ListChangeEvents(ctx, args[0], limit)
				if err != nil {
					return fmt.Errorf("list activity: %w", err)
				}
				for _, event := range events {
					_, _ = fmt.Fprintln(stdout, formatEvent(event))
				}
				return nil
			})
		},
	}
	cmd.Flags().IntP("limit", "n", 20, "Maximum entries")
	return cmd
}

func exportCmd(opts *globalOptions, stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a snapshot of every task",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			outPath, _ := cmd.Flags().GetString("out")
			formatName, _ := cmd.Flags().GetString("format")
			return withRuntime(cmd.Context(), opts, "export", stderr, func(ctx context.Context, rt *runtimeEnv) error {
				return runExport(ctx, rt, outPath, formatName, stdout)
			})
		},
	}
	cmd.Flags().StringP("out", "o", "", "Output file ('-' for stdout, empty for the export dir)")
	cmd.Flags().StringP("format", "f", "", "Snapshot format: json or yaml (default from extension)")
	return cmd
}

func importCmd(opts *globalOptions, stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load a snapshot, replacing tasks with matching ids",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			inPath, _ := cmd.Flags().GetString("in")
			formatName, _ := cmd.Flags().GetString("format")
			if strings.TrimSpace(inPath) == "" {
				return errors.New("--in is required")
			}
			return withRuntime(cmd.Context(), opts, "import", stderr, func(ctx context.Context, rt *runtimeEnv) error {
				count, err := runImport(ctx, rt.svc, inPath, formatName)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(stdout, "imported %d tasks\n", count)
				return nil
			})
		},
	}
	cmd.Flags().StringP("in", "i", "", "Input snapshot file")
	cmd.Flags().StringP("format", "f", "", "Snapshot format: json or yaml (default from extension)")
	return cmd
}

func serveCmd(opts *globalOptions, stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API, MCP tools, and metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			bind, _ := cmd.Flags().GetString("bind")
			return withRuntime(cmd.Context(), opts, "serve", stderr, func(ctx context.Context, rt *runtimeEnv) error {
				ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
				defer stop()
				return runServe(ctx, rt, bind, stdout)
			})
		},
	}
	cmd.Flags().StringP("bind", "b", "", "Listen address (overrides server.http_bind)")
	return cmd
}

// settings are the resolved config locations for one invocation.
type settings struct {
	paths        platform.Paths
	configPath   string
	dbPath       string
	dbOverridden bool
}

// resolveSettings applies flag, environment, and platform defaults in that order.
func resolveSettings(opts *globalOptions) (settings, error) {
	paths, err := platform.DefaultPathsWithOptions(platform.Options{
		AppName: opts.appName,
		DevMode: opts.devMode,
	})
	if err != nil {
		return settings{}, err
	}
	out := settings{paths: paths, configPath: opts.configPath, dbPath: opts.dbPath}
	if strings.TrimSpace(out.configPath) == "" {
		if envPath := strings.TrimSpace(os.Getenv("LANEBOARD_CONFIG")); envPath != "" {
			out.configPath = envPath
		} else {
			out.configPath = paths.ConfigPath
		}
	}
	out.dbOverridden = strings.TrimSpace(out.dbPath) != ""
	if !out.dbOverridden {
		if envPath := strings.TrimSpace(os.Getenv("LANEBOARD_DB_PATH")); envPath != "" {
			out.dbPath = envPath
			out.dbOverridden = true
		} else {
			out.dbPath = paths.DBPath
		}
	}
	return out, nil
}

// taskRepository is the storage surface every backend provides.
type taskRepository interface {
	app.Repository
	Ping(context.Context) error
	Close() error
}

// runtimeEnv is the opened configuration, logger, and storage for one command.
type runtimeEnv struct {
	settings settings
	cfg      config.Config
	logger   *runtimeLogger
	repo     taskRepository
	svc      *app.Service
}

// openRuntime loads config, configures logging, and opens storage.
func openRuntime(ctx context.Context, opts *globalOptions, command string, stderr io.Writer) (*runtimeEnv, error) {
	resolved, err := resolveSettings(opts)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(resolved.configPath, config.Default(resolved.dbPath))
	if err != nil {
		return nil, fmt.Errorf("load config %q: %w", resolved.configPath, err)
	}
	if resolved.dbOverridden {
		cfg.Database.Path = resolved.dbPath
	}

	logger, err := newRuntimeLogger(stderr, opts.appName, opts.devMode, cfg.Logging, time.Now)
	if err != nil {
		return nil, fmt.Errorf("configure runtime logger: %w", err)
	}
	if command == "tui" {
		// Runtime logs stay in the dev-file sink while the board owns the terminal.
		logger.SetConsoleEnabled(false)
	}
	logger.Info("startup configuration resolved", "app", opts.appName, "dev_mode", opts.devMode, "command", command)
	logger.Debug("runtime paths resolved", "config_path", resolved.configPath, "data_dir", resolved.paths.DataDir, "db_path", resolved.dbPath)
	if devPath := logger.DevLogPath(); devPath != "" {
		logger.Info("dev file logging enabled", "path", devPath)
	}

	repo, err := openRepository(ctx, cfg, logger)
	if err != nil {
		_ = logger.Close()
		return nil, err
	}
	return &runtimeEnv{
		settings: resolved,
		cfg:      cfg,
		logger:   logger,
		repo:     repo,
		svc:      app.NewService(repo, uuid.NewString, nil),
	}, nil
}

// Close releases storage and the dev log file.
func (rt *runtimeEnv) Close(stderr io.Writer) {
	if err := rt.repo.Close(); err != nil {
		rt.logger.Warn("storage close failed", "driver", rt.cfg.DriverName(), "err", err)
	}
	if err := rt.logger.Close(); err != nil && rt.logger.shouldLogToSink(rt.logger.consoleSink) {
		_, _ = fmt.Fprintf(stderr, "warning: close runtime log sink: %v\n", err)
	}
}

// withRuntime opens the runtime, runs fn, and logs the command flow around it.
func withRuntime(ctx context.Context, opts *globalOptions, command string, stderr io.Writer, fn func(context.Context, *runtimeEnv) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	rt, err := openRuntime(ctx, opts, command, stderr)
	if err != nil {
		return err
	}
	defer rt.Close(stderr)

	rt.logger.Info("command flow start", "command", command)
	if err := fn(ctx, rt); err != nil {
		rt.logger.Error("command flow failed", "command", command, "err", err)
		return err
	}
	rt.logger.Info("command flow complete", "command", command)
	return nil
}

// openRepository opens the configured storage backend and checks it responds.
func openRepository(ctx context.Context, cfg config.Config, logger *runtimeLogger) (taskRepository, error) {
	switch cfg.DriverName() {
	case config.DriverRedis:
		redisCfg := cfg.Database.Redis
		logger.Info("opening redis repository", "addr", redisCfg.Addr, "db", redisCfg.DB, "prefix", redisCfg.Prefix)
		repo := redisstore.New(
			redisCfg.Addr,
			redisCfg.Password,
			redisCfg.DB,
			redisstore.WithPrefix(redisCfg.Prefix),
			redisstore.WithEventLimit(redisCfg.EventLimit),
		)
		if err := repo.Ping(ctx); err != nil {
			_ = repo.Close()
			logger.Error("redis ping failed", "addr", redisCfg.Addr, "err", err)
			return nil, fmt.Errorf("open redis repository: %w", err)
		}
		logger.Info("redis repository ready", "addr", redisCfg.Addr)
		return repo, nil
	default:
		logger.Info("opening sqlite repository", "db_path", cfg.Database.Path)
		repo, err := sqlite.Open(cfg.Database.Path)
		if err != nil {
			logger.Error("sqlite open failed", "db_path", cfg.Database.Path, "err", err)
			return nil, fmt.Errorf("open sqlite repository: %w", err)
		}
		logger.Info("sqlite repository ready", "db_path", cfg.Database.Path, "migrations", "ensured")
		return repo, nil
	}
}

// runTUI starts the interactive board.
func runTUI(ctx context.Context, opts *globalOptions, stderr io.Writer) error {
	return withRuntime(ctx, opts, "tui", stderr, func(ctx context.Context, rt *runtimeEnv) error {
		notices := notify.NewChannelSink(32, nil)
		ctrl := app.NewTransitionController(
			rt.svc,
			notify.Multi{notify.NewLogSink(rt.logger), notices},
			app.WithInFlightGuard(rt.cfg.Board.StrictTransitions),
		)
		m := tui.NewModel(
			rt.svc,
			ctrl,
			tui.WithNotices(notices.C()),
			tui.WithShowDescription(rt.cfg.Board.ShowDescription),
			tui.WithDragThreshold(rt.cfg.Board.DragThreshold),
			tui.WithKeyConfig(toTUIKeyConfig(rt.cfg.Keys)),
			tui.WithLogger(rt.logger),
		)
		rt.logger.Info("starting tui program loop")
		_, runErr := programFactory(m).Run()

		drainCtx, cancel := context.WithTimeout(ctx, drainTimeout)
		defer cancel()
		if err := ctrl.Drain(drainCtx); err != nil {
			rt.logger.Warn("pending transitions did not settle before exit", "err", err)
		}
		if dropped := notices.Dropped(); dropped > 0 {
			rt.logger.Debug("notices dropped while the board was busy", "count", dropped)
		}
		if runErr != nil {
			return fmt.Errorf("run tui program: %w", runErr)
		}
		return nil
	})
}

// runServe wires the transports to one transition controller.
func runServe(ctx context.Context, rt *runtimeEnv, bind string, stdout io.Writer) error {
	recorder := metrics.NewRecorder()
	ctrl := app.NewTransitionController(
		rt.svc,
		notify.NewLogSink(rt.logger),
		app.WithInFlightGuard(rt.cfg.Board.StrictTransitions),
		app.WithObserver(recorder),
	)
	cfg := server.Config{
		HTTPBind:        rt.cfg.Server.HTTPBind,
		APIEndpoint:     rt.cfg.Server.APIEndpoint,
		MCPEndpoint:     rt.cfg.Server.MCPEndpoint,
		MetricsEndpoint: rt.cfg.Server.MetricsEndpoint,
		ServerName:      "laneboard",
		ServerVersion:   version,
	}
	if strings.TrimSpace(bind) != "" {
		cfg.HTTPBind = bind
	}
	_, _ = fmt.Fprintf(stdout, "serving on http://%s\n", cfg.HTTPBind)
	rt.logger.Info("server starting", "bind", cfg.HTTPBind, "api", cfg.APIEndpoint, "mcp", cfg.MCPEndpoint, "metrics", cfg.MetricsEndpoint)
	return server.Run(ctx, cfg, server.Dependencies{
		Board:      common.NewAppServiceAdapter(rt.svc, ctrl),
		Metrics:    recorder.Handler(),
		OnShutdown: ctrl.Drain,
	})
}

// runExport encodes every task to outPath, stdout, or a timestamped file in the export dir.
func runExport(ctx context.Context, rt *runtimeEnv, outPath, formatName string, stdout io.Writer) error {
	format, err := app.ParseSnapshotFormat(formatName, outPath)
	if err != nil {
		return err
	}
	snap, err := rt.svc.ExportSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("export snapshot: %w", err)
	}
	if outPath == "-" {
		return app.EncodeSnapshot(stdout, snap, format)
	}
	if strings.TrimSpace(outPath) == "" {
		outPath = rt.settings.paths.ExportFile(time.Now(), string(format))
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create export output dir: %w", err)
	}
	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	if err := app.EncodeSnapshot(f, snap, format); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close export file: %w", err)
	}
	_, _ = fmt.Fprintln(stdout, outPath)
	return nil
}

// runImport decodes inPath and loads it into the store.
func runImport(ctx context.Context, svc *app.Service, inPath, formatName string) (int, error) {
	format, err := app.ParseSnapshotFormat(formatName, inPath)
	if err != nil {
		return 0, err
	}
	f, err := os.Open(inPath)
	if err != nil {
		return 0, fmt.Errorf("read import file: %w", err)
	}
	defer func() { _ = f.Close() }()
	snap, err := app.DecodeSnapshot(f, format)
	if err != nil {
		return 0, err
	}
	if err := svc.ImportSnapshot(ctx, snap); err != nil {
		return 0, fmt.Errorf("import snapshot: %w", err)
	}
	return len(snap.Tasks), nil
}

// writeBoard prints lanes in board order.
func writeBoard(w io.Writer, board app.Board) {
	for _, column := range board.Lanes {
		_, _ = fmt.Fprintf(w, "%s (%d)\n", column.Lane.Name(), len(column.Tasks))
		for _, task := range column.Tasks {
			_, _ = fmt.Fprintf(w, "  %s  %s\n", task.ID, task.Title)
		}
	}
	if board.Hidden > 0 {
		_, _ = fmt.Fprintf(w, "hidden: %d (status matches no lane)\n", board.Hidden)
	}
}

// formatEvent renders one ledger row for the terminal.
func formatEvent(event domain.ChangeEvent) string {
	summary := string(event.Operation)
	if event.Operation == domain.ChangeOperationMove {
		summary = fmt.Sprintf("move %s -> %s", event.Metadata["from_status"], event.Metadata["to_status"])
	}
	return fmt.Sprintf("%s  %s  %s/%s", event.OccurredAt.UTC().Format(time.RFC3339), summary, event.ActorType, event.ActorID)
}

// toTUIKeyConfig maps persisted key overrides into model options.
func toTUIKeyConfig(keys config.KeyConfig) tui.KeyConfig {
	return tui.KeyConfig{
		AddTask:       keys.AddTask,
		DeleteTask:    keys.DeleteTask,
		TaskInfo:      keys.TaskInfo,
		CopyID:        keys.CopyID,
		MoveTo:        keys.MoveTo,
		MoveTaskLeft:  keys.MoveTaskLeft,
		MoveTaskRight: keys.MoveTaskRight,
	}
}

// parseBoolEnv parses input into a normalized form.
func parseBoolEnv(name string) (bool, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
