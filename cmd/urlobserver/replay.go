package main

import (
	"os"

	"github.com/spf13/cobra"

	urlobserver "github.com/vango-dev/urlobserver"
	"github.com/vango-dev/urlobserver/internal/errors"
	"github.com/vango-dev/urlobserver/internal/scenario"
)

func replayCmd(load loader) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "replay SCENARIO",
		Short: "Replay a navigation scenario against an in-memory tab",
		Long: `Replay a YAML scenario of clicks, history traversal and programmatic
navigation, then print the audit entries, the resulting history stack and
the dispatched route events.

Routes and observer settings come from the config file; the scenario may
add routes and before-route guards of its own.

Examples:
  urlobserver replay -c urlobserver.yaml session.yaml
  urlobserver replay session.yaml --format yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			patterns, err := cfg.Patterns()
			if err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return errors.New("E103").WithDetail("%s", args[0]).Wrap(err)
			}
			defer f.Close()

			sc, err := scenario.Parse(f)
			if err != nil {
				return err
			}

			res, err := scenario.Run(cmd.Context(), sc, patterns,
				urlobserver.WithDwellTime(cfg.Observer.DwellTime),
				urlobserver.WithEncodeSpaceAsPlus(cfg.Observer.EncodeSpaceAsPlus),
				urlobserver.WithLogger(cfg.Logging.NewLogger(cmd.ErrOrStderr())),
				urlobserver.WithID("replay"),
			)
			if err != nil {
				return err
			}
			return encode(cmd.OutOrStdout(), format, res)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "json", "Output format: json or yaml")

	return cmd
}
