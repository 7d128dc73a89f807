package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vango-dev/urlobserver/internal/errors"
)

type codeInfo struct {
	Code       string          `json:"code" yaml:"code"`
	Category   errors.Category `json:"category" yaml:"category"`
	Message    string          `json:"message" yaml:"message"`
	Suggestion string          `json:"suggestion,omitempty" yaml:"suggestion,omitempty"`
}

func codesCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "codes [CODE...]",
		Short: "List error codes",
		Long: `List the error codes urlobserver reports, with their category,
message and suggestion. With arguments, only those codes are shown.

Examples:
  urlobserver codes
  urlobserver codes E200 E201 --format yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := lookupCodes(args)
			if err != nil {
				return err
			}
			return encode(cmd.OutOrStdout(), format, out)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "json", "Output format: json or yaml")

	return cmd
}

func lookupCodes(codes []string) ([]codeInfo, error) {
	if len(codes) == 0 {
		codes = errors.GetAllCodes()
	}
	out := make([]codeInfo, 0, len(codes))
	for _, code := range codes {
		tmpl, ok := errors.GetTemplate(code)
		if !ok {
			return nil, fmt.Errorf("unknown error code %q", code)
		}
		out = append(out, codeInfo{
			Code:       code,
			Category:   tmpl.Category,
			Message:    tmpl.Message,
			Suggestion: tmpl.Suggestion,
		})
	}
	return out, nil
}
