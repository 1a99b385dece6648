package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yuanying/bits2mets/internal/config"
	"github.com/yuanying/bits2mets/internal/converter"
	"github.com/yuanying/bits2mets/internal/processlog"
)

const (
	defaultRetries = 3
	maxRetries     = 10
)

// cliOptions holds the parsed command line of a conversion run.
type cliOptions struct {
	Convert     converter.ConvertOptions
	ConfigPath  string
	JournalPath string
	Logger      *slog.Logger
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bits2mets <process-dir>",
		Short: "Map BITS book metadata onto a METS document",
		Long: `bits2mets reads the BITS XML file of a digitized book, extracts the
metadata of the book and its parts, and merges it into the METS file of the
process directory.

Parts whose page range matches an existing structure element enrich that
element; the others are added as new elements linked to their page images.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runConvert,
	}

	cmd.PersistentFlags().StringP("config", "c", "", "Config file (default: ./bits2mets.yaml or $HOME/.bits2mets/bits2mets.yaml)")
	cmd.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn, error")
	cmd.PersistentFlags().String("log-format", "text", "Log format: text, json")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose output (same as --log-level debug)")

	cmd.Flags().String("mets", "", "METS file to update (default: <process-dir>/meta.xml)")
	cmd.Flags().StringP("output", "o", "", "Output file path (default: overwrite the METS file)")
	cmd.Flags().String("journal", "", "Write the process log as JSON lines to this file")
	cmd.Flags().Uint("retries", defaultRetries, "Attempts for reading the XML source (1-10)")

	cmd.AddCommand(newExtractCmd())
	return cmd
}

func readCLIOptions(cmd *cobra.Command, args []string) (*cliOptions, error) {
	dir := args[0]
	metsPath, _ := cmd.Flags().GetString("mets")
	outputPath, _ := cmd.Flags().GetString("output")
	journalPath, _ := cmd.Flags().GetString("journal")
	retries, _ := cmd.Flags().GetUint("retries")

	if retries < 1 || retries > maxRetries {
		return nil, fmt.Errorf("--retries must be between 1 and %d, got %d", maxRetries, retries)
	}

	logger, err := readLogger(cmd, os.Stderr)
	if err != nil {
		return nil, err
	}
	configPath, _ := cmd.Flags().GetString("config")

	if metsPath == "" {
		metsPath = filepath.Join(dir, "meta.xml")
	}

	return &cliOptions{
		Convert: converter.ConvertOptions{
			ProcessDir: dir,
			METSPath:   metsPath,
			OutputPath: outputPath,
			Retries:    retries,
		},
		ConfigPath:  configPath,
		JournalPath: journalPath,
		Logger:      logger,
	}, nil
}

// readLogger validates the logging flags and builds the logger.
func readLogger(cmd *cobra.Command, w io.Writer) (*slog.Logger, error) {
	logLevel, _ := cmd.Flags().GetString("log-level")
	logFormat, _ := cmd.Flags().GetString("log-format")
	verbose, _ := cmd.Flags().GetBool("verbose")

	switch strings.ToLower(logLevel) {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("--log-level must be one of debug, info, warn, error, got %q", logLevel)
	}
	switch strings.ToLower(logFormat) {
	case "text", "json":
	default:
		return nil, fmt.Errorf("--log-format must be text or json, got %q", logFormat)
	}
	if verbose {
		logLevel = "debug"
	}
	return buildLogger(w, logLevel, logFormat), nil
}

func buildLogger(w io.Writer, level, format string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handlerOpts := &slog.HandlerOptions{Level: lvl}
	if strings.ToLower(format) == "json" {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}

func runConvert(cmd *cobra.Command, args []string) error {
	opts, err := readCLIOptions(cmd, args)
	if err != nil {
		return err
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}

	journal := processlog.NewJournal(opts.Logger, "")
	opts.Convert.Config = cfg
	opts.Convert.Log = journal

	logger := opts.Logger.With("run_id", journal.RunID())
	logger.Info("Converting", "dir", opts.Convert.ProcessDir, "mets", opts.Convert.METSPath)

	result, convErr := converter.NewPipeline(opts.Convert).Convert(cmd.Context())

	if opts.JournalPath != "" {
		if err := writeJournal(opts.JournalPath, journal); err != nil {
			logger.Warn("failed to write journal", "path", opts.JournalPath, "error", err)
		}
	}
	if convErr != nil {
		logger.Error("conversion failed", "error", convErr)
		return fmt.Errorf("conversion failed: %w", convErr)
	}

	counts := journal.Counts()
	logger.Info("Done",
		"output", result.OutputPath,
		"created_document", result.Created,
		"matched", result.Reconcile.Matched,
		"created", result.Reconcile.Created,
		"failed", result.Reconcile.Failed,
		"skipped", result.Extract.Skipped(),
		"warnings", counts[processlog.Warn],
		"errors", counts[processlog.Error],
	)
	return nil
}

func writeJournal(path string, j *processlog.Journal) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create journal: %w", err)
	}
	if err := j.WriteJSONLines(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cmd := newRootCmd()
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
