package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/fang"
	"github.com/google/uuid"
	serveradapter "github.com/hylla/tavla/internal/adapters/server"
	"github.com/hylla/tavla/internal/adapters/storage/memory"
	"github.com/hylla/tavla/internal/adapters/storage/redisstore"
	"github.com/hylla/tavla/internal/adapters/storage/sqlite"
	"github.com/hylla/tavla/internal/app"
	"github.com/hylla/tavla/internal/config"
	"github.com/hylla/tavla/internal/platform"
	"github.com/hylla/tavla/internal/tui"
	"github.com/spf13/cobra"
)

// version stores a package-level helper value.
var version = "dev"

// program represents program data used by this package.
type program interface {
	Run() (tea.Model, error)
}

// programFactory stores a package-level helper value.
var programFactory = func(m tea.Model) program {
	return tea.NewProgram(m)
}

// serveCommandRunner starts the HTTP+MCP serve flow.
var serveCommandRunner = func(ctx context.Context, cfg serveradapter.Config, deps serveradapter.Dependencies) error {
	return serveradapter.Run(ctx, cfg, deps)
}

// main handles main.
func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		os.Exit(1)
	}
}

// run builds the command tree and executes it through fang.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	if args == nil {
		args = []string{}
	}

	root := newRootCommand(stdout, stderr)
	root.SetArgs(args)
	return fang.Execute(ctx, root, fang.WithVersion(version))
}

// rootOptions holds persistent flag values shared by every command.
type rootOptions struct {
	configPath string
	dbPath     string
	storage    string
	appName    string
	devMode    bool
	stderr     io.Writer
}

// newRootCommand wires the persistent flags and every subcommand.
func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	opts := &rootOptions{stderr: stderr}

	defaultDevMode := version == "dev"
	if envDev, ok := parseBoolEnv("TAVLA_DEV_MODE"); ok {
		defaultDevMode = envDev
	}
	defaultApp := platform.DefaultAppName
	if envApp := strings.TrimSpace(os.Getenv("TAVLA_APP_NAME")); envApp != "" {
		defaultApp = envApp
	}

	root := &cobra.Command{
		Use:           "tavla",
		Short:         "Kanban boards in the terminal",
		Long:          "Tavla keeps tasks on named boards, records where each task has been, and lets you drag cards between boards.",
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTUI(cmd.Context(), opts)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "path to config TOML")
	flags.StringVar(&opts.dbPath, "db", "", "path to sqlite database")
	flags.StringVar(&opts.storage, "storage", "", "storage backend (sqlite, redis, memory)")
	flags.StringVar(&opts.appName, "app", defaultApp, "application name for config/data path resolution")
	flags.BoolVar(&opts.devMode, "dev", defaultDevMode, "use dev mode paths (<app>-dev)")

	root.AddCommand(
		newPathsCommand(opts),
		newServeCommand(opts),
		newExportCommand(opts),
		newImportCommand(opts),
		newImportLegacyCommand(opts),
		newBoardCommand(opts),
		newTaskCommand(opts),
	)
	return root
}

// session carries the resolved runtime for one command flow.
type session struct {
	paths      platform.Paths
	configPath string
	cfg        config.Config
	logger     *runtimeLogger
	store      app.Storage
	svc        *app.Service
	closers    []func() error
	stderr     io.Writer
}

// resolvePaths resolves platform paths for the selected app and mode.
func (o *rootOptions) resolvePaths() (platform.Paths, error) {
	return platform.DefaultPathsWithOptions(platform.Options{
		AppName: o.appName,
		DevMode: o.devMode,
	})
}

// open resolves config, logging, storage, and the application service for one command.
func (o *rootOptions) open(ctx context.Context, command string) (*session, error) {
	paths, err := o.resolvePaths()
	if err != nil {
		return nil, err
	}

	configPath := strings.TrimSpace(o.configPath)
	if configPath == "" {
		if envPath := strings.TrimSpace(os.Getenv("TAVLA_CONFIG")); envPath != "" {
			configPath = envPath
		} else {
			configPath = paths.ConfigPath
		}
	}
	dbPath := strings.TrimSpace(o.dbPath)
	dbOverridden := dbPath != ""
	if !dbOverridden {
		if envPath := strings.TrimSpace(os.Getenv("TAVLA_DB_PATH")); envPath != "" {
			dbPath = envPath
			dbOverridden = true
		} else {
			dbPath = paths.DBPath
		}
	}

	cfg, err := config.Load(configPath, config.Default(dbPath))
	if err != nil {
		return nil, fmt.Errorf("load config %q: %w", configPath, err)
	}
	if dbOverridden {
		cfg.Database.Path = dbPath
	}
	backend := strings.TrimSpace(o.storage)
	if backend == "" {
		backend = strings.TrimSpace(os.Getenv("TAVLA_STORAGE"))
	}
	if backend != "" {
		cfg.Storage.Backend = config.StorageBackend(strings.ToLower(backend))
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("storage override %q: %w", backend, err)
		}
	}

	logger, err := newRuntimeLogger(o.stderr, o.appName, o.devMode, cfg.Logging, paths.LogDir, time.Now)
	if err != nil {
		return nil, fmt.Errorf("configure runtime logger: %w", err)
	}
	s := &session{
		paths:      paths,
		configPath: configPath,
		cfg:        cfg,
		logger:     logger,
		stderr:     o.stderr,
	}
	if command == "tui" {
		// Runtime logs stay in the dev-file sink while the board owns the terminal.
		logger.SetConsoleEnabled(false)
	}

	logger.Info("startup configuration resolved", "app", o.appName, "dev_mode", o.devMode, "command", command)
	logger.Debug("runtime paths resolved", "config_path", configPath, "data_dir", paths.DataDir, "db_path", cfg.Database.Path)
	logger.Info("configuration loaded", "config_path", configPath, "storage", cfg.Storage.Backend, "log_level", cfg.Logging.Level)
	if devPath := logger.DevLogPath(); devPath != "" {
		logger.Info("dev file logging enabled", "path", devPath)
	}

	store, closeStore, err := openStorage(ctx, cfg, logger)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.store = store
	s.closers = append(s.closers, closeStore)

	s.svc = app.NewService(store, uuid.NewString, time.Now, app.ServiceConfig{
		DeletePolicy: app.DeletePolicy(cfg.Boards.DeletePolicy),
		UnfiledBoard: cfg.Boards.UnfiledName,
		OnCorrupt: func(key string, err error) {
			logger.Warn("discarding unreadable stored value", "key", key, "err", err)
		},
	})
	if err := s.svc.EnsureDefaultBoards(ctx, cfg.Boards.Defaults); err != nil {
		logger.Error("default boards failed", "err", err)
		s.Close()
		return nil, fmt.Errorf("ensure default boards: %w", err)
	}
	logger.Debug("application service initialized", "delete_policy", cfg.Boards.DeletePolicy, "defaults", cfg.Boards.Defaults)
	return s, nil
}

// Close releases storage and log sinks in reverse order.
func (s *session) Close() {
	if s == nil {
		return
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			s.logger.Warn("close storage failed", "err", err)
		}
	}
	s.closers = nil
	if err := s.logger.Close(); err != nil && s.logger.shouldLogToSink(s.logger.consoleSink) {
		// Keep TUI shutdown quiet when console logging is muted.
		_, _ = fmt.Fprintf(s.stderr, "warning: close runtime log sink: %v\n", err)
	}
}

// openStorage opens the configured key/value backend.
func openStorage(ctx context.Context, cfg config.Config, logger *runtimeLogger) (app.Storage, func() error, error) {
	switch cfg.Storage.Backend {
	case config.BackendRedis:
		logger.Info("opening redis storage", "addr", cfg.Redis.Addr, "db", cfg.Redis.DB, "prefix", cfg.Redis.KeyPrefix)
		store, err := redisstore.Open(ctx, redisstore.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.KeyPrefix,
		})
		if err != nil {
			logger.Error("redis open failed", "addr", cfg.Redis.Addr, "err", err)
			return nil, nil, fmt.Errorf("open redis storage: %w", err)
		}
		return store, store.Close, nil
	case config.BackendMemory:
		logger.Info("using in-memory storage")
		return memory.New(), func() error { return nil }, nil
	default:
		logger.Info("opening sqlite storage", "db_path", cfg.Database.Path)
		repo, err := sqlite.Open(cfg.Database.Path)
		if err != nil {
			logger.Error("sqlite open failed", "db_path", cfg.Database.Path, "err", err)
			return nil, nil, fmt.Errorf("open sqlite storage: %w", err)
		}
		logger.Info("sqlite storage ready", "db_path", cfg.Database.Path, "migrations", "ensured")
		return repo, repo.Close, nil
	}
}

// runTUI starts the interactive board.
func runTUI(ctx context.Context, opts *rootOptions) error {
	s, err := opts.open(ctx, "tui")
	if err != nil {
		return err
	}
	defer s.Close()

	m := tui.NewModel(s.svc,
		tui.WithTimeFormat(s.cfg.Display.TimeFormat),
		tui.WithShowCounts(s.cfg.Display.ShowCounts),
		tui.WithKeyConfig(tui.KeyConfig{
			AddTask:    s.cfg.Keys.AddTask,
			EditTask:   s.cfg.Keys.EditTask,
			DeleteTask: s.cfg.Keys.DeleteTask,
			History:    s.cfg.Keys.History,
			CopyText:   s.cfg.Keys.CopyText,
		}),
	)
	s.logger.Info("starting tui program loop")
	if _, err := programFactory(m).Run(); err != nil {
		s.logger.Error("tui program terminated with error", "err", err)
		return fmt.Errorf("run tui program: %w", err)
	}
	s.logger.Info("tui program loop ended")
	return nil
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
