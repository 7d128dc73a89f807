package main

import (
	"github.com/spf13/cobra"

	"github.com/vango-dev/urlobserver/internal/config"
	"github.com/vango-dev/urlobserver/pkg/registry"
	"github.com/vango-dev/urlobserver/pkg/routematch"
)

type matchResult struct {
	Path    string            `json:"path" yaml:"path"`
	Found   bool              `json:"found" yaml:"found"`
	Params  map[string]string `json:"params" yaml:"params"`
	Pattern string            `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	Name    string            `json:"name,omitempty" yaml:"name,omitempty"`
}

func matchCmd(load loader) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "match PATH...",
		Short: "Resolve paths against the configured routes",
		Long: `Resolve each path against the routes in the config file and print
the winning pattern and its parameters.

Examples:
  urlobserver match -c routes.yaml /users/42
  urlobserver match -c routes.yaml /users/42 /about --format yaml`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			results, err := matchPaths(cfg, args)
			if err != nil {
				return err
			}
			return encode(cmd.OutOrStdout(), format, results)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "json", "Output format: json or yaml")

	return cmd
}

func matchPaths(cfg *config.Config, paths []string) ([]matchResult, error) {
	patterns, err := cfg.Patterns()
	if err != nil {
		return nil, err
	}
	reg := registry.New()
	for _, p := range patterns {
		reg.Add(p, nil, "")
	}
	routes := reg.Routes()

	out := make([]matchResult, 0, len(paths))
	for _, path := range paths {
		res := routematch.Find(routes, path, routematch.NamedGroups)
		out = append(out, matchResult{
			Path:    path,
			Found:   res.Found,
			Params:  res.Params,
			Pattern: res.Pattern(),
			Name:    cfg.RouteName(res.Pattern()),
		})
	}
	return out, nil
}
