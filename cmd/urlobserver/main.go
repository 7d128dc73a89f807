package main

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/vango-dev/urlobserver/internal/config"
	"github.com/vango-dev/urlobserver/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		asJSON, _ := cmd.PersistentFlags().GetBool("json-errors")
		reportError(os.Stderr, err, asJSON)
		os.Exit(1)
	}
}

// reportError prints err for a terminal, or as a single JSON line.
func reportError(w io.Writer, err error, asJSON bool) {
	if !asJSON {
		errors.PrintError(w, err)
		return
	}
	var e *errors.Error
	if !stderrors.As(err, &e) {
		e = &errors.Error{Message: err.Error()}
	}
	fmt.Fprintln(w, e.FormatJSON())
}

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "urlobserver",
		Short: "Route-aware navigation observer",
		Long: `urlobserver turns browser tab navigation into an audited stream
of route changes.

It matches URLs against regular-expression routes, replays scripted
navigation sessions, and hosts observers for remote tabs over WebSocket.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (YAML or JSON)")
	rootCmd.PersistentFlags().Bool("json-errors", false, "Print errors as JSON on stderr")

	load := func() (*config.Config, error) {
		return config.Load(configPath)
	}

	rootCmd.AddCommand(
		matchCmd(load),
		replayCmd(load),
		serveCmd(load),
		codesCmd(),
		versionCmd(),
	)
	return rootCmd
}

type loader func() (*config.Config, error)

// encode writes v as indented JSON or YAML.
func encode(w io.Writer, format string, v any) error {
	switch format {
	case "", "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q (want json or yaml)", format)
	}
}
