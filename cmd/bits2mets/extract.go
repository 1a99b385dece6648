package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/segmentio/encoding/json"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/yuanying/bits2mets/internal/bits"
	"github.com/yuanying/bits2mets/internal/config"
)

// extraction is what the extract command prints.
type extraction struct {
	Source string            `json:"source" yaml:"source"`
	Stats  bits.ExtractStats `json:"stats" yaml:"stats"`
	Book   *bits.Book        `json:"book" yaml:"book"`
}

func newExtractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract <xml-file>",
		Short: "Print the metadata extracted from a BITS XML file",
		Long: `extract runs only the metadata extraction of bits2mets and prints the
book, its parts, and the number of parts skipped for missing or invalid page
numbers. No METS file is read or written.`,
		Args: cobra.ExactArgs(1),
		RunE: runExtract,
	}
	cmd.Flags().StringP("format", "f", "yaml", "Output format: yaml, json")
	return cmd
}

func runExtract(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	format = strings.ToLower(format)
	if format != "yaml" && format != "json" {
		return fmt.Errorf("--format must be yaml or json, got %q", format)
	}

	logger, err := readLogger(cmd, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	rules, err := cfg.Rules()
	if err != nil {
		return err
	}

	doc, err := bits.Open(args[0], bits.ReadOptions{AllowDoctype: cfg.AllowDoctype})
	if err != nil {
		return err
	}
	book, stats := bits.NewExtractor(rules).Extract(doc)
	if n := stats.Skipped(); n > 0 {
		logger.Warn("book parts skipped", "missing_pages", stats.MissingPages, "invalid_pages", stats.InvalidPages)
	}

	return writeExtraction(cmd.OutOrStdout(), format, extraction{Source: args[0], Stats: stats, Book: book})
}

func writeExtraction(w io.Writer, format string, e extraction) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(e)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(e); err != nil {
		return err
	}
	return enc.Close()
}
