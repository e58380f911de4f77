package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"
)

const (
	ansiReset = "\x1b[0m"
	ansiRed   = "\x1b[31m"
	ansiGreen = "\x1b[32m"
)

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeYAML(cmd *cobra.Command, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

// writeFormatted renders v in the requested machine format. It reports false
// for "table" so the caller can render its own view.
func writeFormatted(cmd *cobra.Command, format string, v any) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "table":
		return false, nil
	case "json":
		return true, writeJSON(cmd, v)
	case "yaml", "yml":
		return true, writeYAML(cmd, v)
	default:
		return true, fmt.Errorf("unsupported format %q (want table, json, or yaml)", format)
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func shouldColorize(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isTerminal(w)
}

func colorStatus(status string, ok bool, colorize bool) string {
	if !colorize {
		return status
	}
	if ok {
		return ansiGreen + status + ansiReset
	}
	return ansiRed + status + ansiReset
}
