package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
)

func newShowCmd(opts *options) *cobra.Command {
	var (
		panel  string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "show TOKEN",
		Short: "Print a stored profile as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, release, err := opts.storage()
			if err != nil {
				return err
			}
			defer release()

			p, err := s.Read(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}

			var v any = p
			if panel != "" {
				data, ok := p.Collector(panel)
				if !ok {
					return fmt.Errorf("profile %s has no %q panel (have %s)",
						p.Token, panel, strings.Join(p.CollectorNames(), ", "))
				}
				v = data
			}
			return write(cmd.OutOrStdout(), v, asJSON)
		},
	}
	cmd.Flags().StringVarP(&panel, "panel", "p", "", "only print this collector's data")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of YAML")
	return cmd
}

func write(w io.Writer, v any, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	b, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	_, err = w.Write(b)
	return err
}
