package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"
	serveradapter "github.com/hylla/tavla/internal/adapters/server"
	servercommon "github.com/hylla/tavla/internal/adapters/server/common"
	"github.com/hylla/tavla/internal/app"
	"github.com/hylla/tavla/internal/domain"
	"github.com/spf13/cobra"
)

// withSession opens one runtime session around fn and logs the flow lifecycle.
func withSession(cmd *cobra.Command, opts *rootOptions, name string, fn func(*session) error) error {
	s, err := opts.open(cmd.Context(), name)
	if err != nil {
		return err
	}
	defer s.Close()

	s.logger.Info("command flow start", "command", name)
	if err := fn(s); err != nil {
		s.logger.Error("command flow failed", "command", name, "err", err)
		return err
	}
	s.logger.Info("command flow complete", "command", name)
	return nil
}

// newPathsCommand prints resolved platform paths.
func newPathsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print resolved config, data, and log paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			paths, err := opts.resolvePaths()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "app: %s\n", opts.appName)
			_, _ = fmt.Fprintf(out, "dev_mode: %t\n", opts.devMode)
			_, _ = fmt.Fprintf(out, "config: %s\n", paths.ConfigPath)
			_, _ = fmt.Fprintf(out, "data_dir: %s\n", paths.DataDir)
			_, _ = fmt.Fprintf(out, "db: %s\n", paths.DBPath)
			_, _ = fmt.Fprintf(out, "log_dir: %s\n", paths.LogDir)
			return nil
		},
	}
}

// newServeCommand starts the HTTP and MCP surfaces.
func newServeCommand(opts *rootOptions) *cobra.Command {
	var (
		httpBind    string
		apiEndpoint string
		mcpEndpoint string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the REST API and MCP tools over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, opts, "serve", func(s *session) error {
				cfg := serveradapter.Config{
					HTTPBind:      firstNonEmpty(httpBind, s.cfg.Server.HTTPBind),
					APIEndpoint:   firstNonEmpty(apiEndpoint, s.cfg.Server.APIEndpoint),
					MCPEndpoint:   firstNonEmpty(mcpEndpoint, s.cfg.Server.MCPEndpoint),
					ServerName:    opts.appName,
					ServerVersion: version,
				}
				adapter := servercommon.NewAppServiceAdapter(s.svc)
				s.logger.Info("serving", "http", cfg.HTTPBind, "api", cfg.APIEndpoint, "mcp", cfg.MCPEndpoint)
				if err := serveCommandRunner(cmd.Context(), cfg, serveradapter.Dependencies{
					Boards:    adapter,
					Snapshots: adapter,
				}); err != nil {
					return fmt.Errorf("run serve command: %w", err)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&httpBind, "http", "", "HTTP listen address (defaults to server.http_bind)")
	cmd.Flags().StringVar(&apiEndpoint, "api-endpoint", "", "REST API base path")
	cmd.Flags().StringVar(&mcpEndpoint, "mcp-endpoint", "", "MCP endpoint path")
	return cmd
}

// newExportCommand writes a snapshot as JSON.
func newExportCommand(opts *rootOptions) *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export boards and tasks as a JSON snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, opts, "export", func(s *session) error {
				snap, err := s.svc.ExportSnapshot(cmd.Context())
				if err != nil {
					return fmt.Errorf("export snapshot: %w", err)
				}
				encoded, err := json.MarshalIndent(snap, "", "  ")
				if err != nil {
					return fmt.Errorf("encode snapshot json: %w", err)
				}
				encoded = append(encoded, '\n')

				if outPath == "-" {
					if _, err := cmd.OutOrStdout().Write(encoded); err != nil {
						return fmt.Errorf("write snapshot to stdout: %w", err)
					}
					return nil
				}
				if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
					return fmt.Errorf("create export output dir: %w", err)
				}
				if err := os.WriteFile(outPath, encoded, 0o644); err != nil {
					return fmt.Errorf("write export file: %w", err)
				}
				s.logger.Info("snapshot exported", "path", outPath, "boards", len(snap.Boards), "tasks", len(snap.Tasks))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&outPath, "out", "-", "output file path ('-' for stdout)")
	return cmd
}

// newImportCommand replaces stored state with a JSON snapshot.
func newImportCommand(opts *rootOptions) *cobra.Command {
	var inPath string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Replace boards and tasks with a JSON snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(inPath) == "" {
				return errors.New("--in is required")
			}
			return withSession(cmd, opts, "import", func(s *session) error {
				content, err := os.ReadFile(inPath)
				if err != nil {
					return fmt.Errorf("read import file: %w", err)
				}
				var snap app.Snapshot
				if err := json.Unmarshal(content, &snap); err != nil {
					return fmt.Errorf("decode snapshot json: %w", err)
				}
				if err := s.svc.ImportSnapshot(cmd.Context(), snap); err != nil {
					return fmt.Errorf("import snapshot: %w", err)
				}
				s.logger.Info("snapshot imported", "path", inPath, "boards", len(snap.Boards), "tasks", len(snap.Tasks))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&inPath, "in", "", "input snapshot JSON file")
	return cmd
}

// newImportLegacyCommand loads a browser storage dump and converts per-board keys.
func newImportLegacyCommand(opts *rootOptions) *cobra.Command {
	var inPath string
	cmd := &cobra.Command{
		Use:   "import-legacy",
		Short: "Import a key/value dump written by older board layouts",
		Long:  "Reads a JSON object of storage keys to string values, writes the per-board keys into storage, and converts them into the current layout.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(inPath) == "" {
				return errors.New("--in is required")
			}
			return withSession(cmd, opts, "import-legacy", func(s *session) error {
				content, err := os.ReadFile(inPath)
				if err != nil {
					return fmt.Errorf("read legacy dump: %w", err)
				}
				values, err := decodeLegacyDump(content)
				if err != nil {
					return err
				}
				keys := make([]string, 0, len(values))
				for key := range values {
					keys = append(keys, key)
				}
				slices.Sort(keys)
				for _, key := range keys {
					if key == app.TasksKey || key == app.BoardsKey {
						s.logger.Warn("skipping current-layout key in legacy dump", "key", key)
						continue
					}
					if err := s.store.SetItem(cmd.Context(), key, values[key]); err != nil {
						return fmt.Errorf("write legacy key %s: %w", key, err)
					}
				}
				report, err := s.svc.MigrateLegacy(cmd.Context())
				if err != nil {
					return fmt.Errorf("migrate legacy keys: %w", err)
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "migrated %d keys: %d boards, %d tasks\n", len(report.Keys), report.Boards, report.Tasks)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&inPath, "in", "", "input JSON object of storage key/value pairs")
	return cmd
}

// decodeLegacyDump accepts string values verbatim and re-encodes any other JSON value.
func decodeLegacyDump(content []byte) (map[string]string, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(content, &raw); err != nil {
		return nil, fmt.Errorf("decode legacy dump: %w", err)
	}
	out := make(map[string]string, len(raw))
	for key, value := range raw {
		var text string
		if err := json.Unmarshal(value, &text); err == nil {
			out[key] = text
			continue
		}
		out[key] = string(value)
	}
	return out, nil
}

// newBoardCommand groups board subcommands.
func newBoardCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "board",
		Short: "Manage boards",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add NAME",
		Short: "Create a board",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts, "board add", func(s *session) error {
				board, err := s.svc.CreateBoard(cmd.Context(), args[0])
				if err != nil {
					return fmt.Errorf("create board: %w", err)
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "created board %s\n", board.Name)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rm NAME",
		Short: "Delete a board and apply the delete policy to its tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts, "board rm", func(s *session) error {
				affected, err := s.svc.DeleteBoard(cmd.Context(), args[0])
				if err != nil {
					return fmt.Errorf("delete board: %w", err)
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "deleted board %s (%d tasks affected)\n", domain.NormalizeBoardName(args[0]), affected)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "ls",
		Short: "List boards with task counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, opts, "board ls", func(s *session) error {
				boards, err := s.svc.ListBoards(cmd.Context())
				if err != nil {
					return fmt.Errorf("list boards: %w", err)
				}
				rows := make([][]string, 0, len(boards))
				for _, b := range boards {
					created := ""
					if !b.Derived {
						created = b.Board.CreatedAt.Local().Format(s.cfg.Display.TimeFormat)
					}
					rows = append(rows, []string{b.Board.Name, strconv.Itoa(len(b.TaskIDs)), created})
				}
				return writeTable(cmd.OutOrStdout(), []string{"Board", "Tasks", "Created"}, rows)
			})
		},
	})
	return cmd
}

// newTaskCommand groups task subcommands.
func newTaskCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage tasks",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add BOARD TEXT...",
		Short: "Create a task on a board",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts, "task add", func(s *session) error {
				task, err := s.svc.CreateTask(cmd.Context(), args[0], strings.Join(args[1:], " "))
				if err != nil {
					return fmt.Errorf("create task: %w", err)
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), task.ID)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "edit ID TEXT...",
		Short: "Replace the text of a task",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts, "task edit", func(s *session) error {
				if _, err := s.svc.EditTask(cmd.Context(), args[0], strings.Join(args[1:], " ")); err != nil {
					return fmt.Errorf("edit task: %w", err)
				}
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rm ID",
		Short: "Delete a task and its history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts, "task rm", func(s *session) error {
				if err := s.svc.DeleteTask(cmd.Context(), args[0]); err != nil {
					return fmt.Errorf("delete task: %w", err)
				}
				return nil
			})
		},
	})

	var position int
	mv := &cobra.Command{
		Use:   "mv ID BOARD",
		Short: "Move a task to a board, optionally at a position",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts, "task mv", func(s *session) error {
				task, err := s.svc.MoveTask(cmd.Context(), args[0], args[1], position)
				if err != nil {
					return fmt.Errorf("move task: %w", err)
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", task.ID, task.CurrentBoard())
				return nil
			})
		},
	}
	mv.Flags().IntVar(&position, "position", -1, "index among the other tasks on the board (-1 appends)")
	cmd.AddCommand(mv)

	cmd.AddCommand(&cobra.Command{
		Use:   "history ID",
		Short: "Show where a task has been",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts, "task history", func(s *session) error {
				entries, err := s.svc.GetHistory(cmd.Context(), args[0])
				if err != nil {
					return fmt.Errorf("task history: %w", err)
				}
				out := cmd.OutOrStdout()
				for _, entry := range entries {
					_, _ = fmt.Fprintf(out, "Moved to %s at %s\n", entry.Board, entry.At.Local().Format(s.cfg.Display.TimeFormat))
				}
				return nil
			})
		},
	})

	var board string
	ls := &cobra.Command{
		Use:   "ls",
		Short: "List tasks in board order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, opts, "task ls", func(s *session) error {
				tasks, err := s.svc.LoadAll(cmd.Context())
				if err != nil {
					return fmt.Errorf("list tasks: %w", err)
				}
				filter := domain.NormalizeBoardName(board)
				rows := make([][]string, 0, len(tasks))
				for _, task := range tasks {
					if filter != "" && task.Board != filter {
						continue
					}
					rows = append(rows, []string{task.ID, task.Board, task.Text, formatSince(task.Since, s.cfg.Display.TimeFormat)})
				}
				return writeTable(cmd.OutOrStdout(), []string{"ID", "Board", "Text", "Since"}, rows)
			})
		},
	}
	ls.Flags().StringVar(&board, "board", "", "only list tasks on this board")
	cmd.AddCommand(ls)
	return cmd
}

// writeTable renders rows as a bordered table, downsampled to the writer's color profile.
func writeTable(w io.Writer, headers []string, rows [][]string) error {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("62"))).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return lipgloss.NewStyle().Bold(true).Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
	if _, err := lipgloss.Fprintln(w, t.String()); err != nil {
		return fmt.Errorf("write table: %w", err)
	}
	return nil
}

// formatSince renders a board-entry time, leaving zero times blank.
func formatSince(at time.Time, layout string) string {
	if at.IsZero() {
		return ""
	}
	return at.Local().Format(layout)
}

// firstNonEmpty returns the first value that is not blank.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
