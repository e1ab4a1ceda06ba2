package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/garyjia/timesheet-ocr/internal/config"
	"github.com/garyjia/timesheet-ocr/internal/container"
	"github.com/garyjia/timesheet-ocr/internal/domain/entity"
	"github.com/garyjia/timesheet-ocr/internal/infrastructure/worker"
	"github.com/garyjia/timesheet-ocr/pkg/utils"
)

type globalOptions struct {
	configPath string
	logLevel   string
}

func newRootCommand() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:           "timesheetctl",
		Short:         "Extract and normalize scanned timesheets",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to the configuration file")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level written to stderr")

	root.AddCommand(
		newProcessCommand(opts),
		newProcessDirCommand(opts),
		newNormalizeCommand(opts),
		newRunsCommand(opts),
		newEntriesCommand(opts),
	)
	return root
}

func newProcessCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "process <image>",
		Short: "Extract a timesheet image or PDF and store the normalized entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}
			mimeType := utils.MimeTypeFromExtension(args[0])
			if err := utils.ValidateUpload(filepath.Base(args[0]), len(data), mimeType, 0); err != nil {
				return err
			}

			return withContainer(cmd, opts, func(c *container.Container) error {
				outcome, err := c.TimesheetService().ProcessImage(cmd.Context(), filepath.Base(args[0]), data, mimeType)
				if outcome != nil {
					if werr := writeJSON(cmd.OutOrStdout(), outcome); werr != nil {
						return werr
					}
				}
				return err
			})
		},
	}
}

func newProcessDirCommand(opts *globalOptions) *cobra.Command {
	batch := worker.DefaultBatchConfig()

	cmd := &cobra.Command{
		Use:   "process-dir <dir>",
		Short: "Extract every image and PDF directly under a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := worker.ListImages(args[0])
			if err != nil {
				return err
			}
			if len(paths) == 0 {
				return fmt.Errorf("no timesheet images found in %s", args[0])
			}

			return withContainer(cmd, opts, func(c *container.Container) error {
				results := worker.NewBatchProcessor(batch, c.TimesheetService(), c.Logger().Named("batch")).
					Run(cmd.Context(), paths)
				if err := writeJSON(cmd.OutOrStdout(), results); err != nil {
					return err
				}

				failed := 0
				for _, r := range results {
					if r.Failed() {
						failed++
					}
				}
				if failed > 0 {
					return fmt.Errorf("%d of %d files failed", failed, len(results))
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&batch.Workers, "workers", "w", batch.Workers, "number of files processed concurrently")
	cmd.Flags().DurationVar(&batch.ProcessTimeout, "timeout", batch.ProcessTimeout, "per-file processing timeout")
	return cmd
}

func newNormalizeCommand(opts *globalOptions) *cobra.Command {
	var (
		dryRun bool
		source string
	)

	cmd := &cobra.Command{
		Use:   "normalize <extraction.json|->",
		Short: "Normalize an extraction document produced by a vision model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			if source == "" {
				source = filepath.Base(args[0])
			}

			return withContainer(cmd, opts, func(c *container.Container) error {
				outcome, err := c.TimesheetService().ProcessExtraction(cmd.Context(), source, content, dryRun)
				if outcome != nil {
					if werr := writeJSON(cmd.OutOrStdout(), outcome); werr != nil {
						return werr
					}
				}
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the result without storing entries or recording the run")
	cmd.Flags().StringVar(&source, "source", "", "source image reference recorded on entries (defaults to the file name)")
	return cmd
}

func newRunsCommand(opts *globalOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs [id]",
		Short: "Show recorded processing runs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd, opts, func(c *container.Container) error {
				svc := c.TimesheetService()
				if len(args) == 1 {
					run, err := svc.GetRun(cmd.Context(), args[0])
					if err != nil {
						return err
					}
					if run == nil {
						return fmt.Errorf("run %s not found", args[0])
					}
					return writeJSON(cmd.OutOrStdout(), run)
				}

				runs, err := svc.ListRuns(cmd.Context(), limit)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), runs)
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to list")
	return cmd
}

func newEntriesCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "entries <resource-key> <week-start>",
		Short: "List stored entries of a resource for the week starting on a Monday (YYYY-MM-DD)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			weekStart, err := time.Parse(entity.DateLayout, args[1])
			if err != nil {
				return fmt.Errorf("invalid week start %q: %w", args[1], err)
			}

			return withContainer(cmd, opts, func(c *container.Container) error {
				entries, err := c.TimesheetService().ListEntries(cmd.Context(), args[0], weekStart)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), entries)
			})
		},
	}
}

// withContainer loads configuration, starts the container and closes it after fn
func withContainer(cmd *cobra.Command, opts *globalOptions, fn func(*container.Container) error) error {
	_ = gotenv.Load()

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	// The drop folder belongs to the server
	cfg.Inbox.Enabled = false

	logger, err := utils.NewCLILogger(opts.logLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	c, err := container.NewContainer(cfg, logger)
	if err != nil {
		return err
	}
	if err := c.Start(cmd.Context()); err != nil {
		return err
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Warn("Failed to close container", zap.Error(err))
		}
	}()

	return fn(c)
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, fmt.Errorf("%s is empty", path)
	}
	return data, nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
