package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/DrSkyle/bridgestore/pkg/filter"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// listing is the structured form of ls output.
type listing struct {
	Path  string   `json:"path" yaml:"path"`
	Count int      `json:"count" yaml:"count"`
	Keys  []string `json:"keys" yaml:"keys"`
}

func newLsCmd(a *app) *cobra.Command {
	var (
		expr   string
		output string
	)

	cmd := &cobra.Command{
		Use:   "ls [path]",
		Short: "List object keys",
		Example: `  bridgestore ls runs/42
  bridgestore ls --filter 'name.endsWith(".log")' -o json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}

			var f *filter.Filter
			if expr != "" {
				var err error
				if f, err = filter.Compile(expr); err != nil {
					return err
				}
			}

			d, err := a.open(cmd.Context())
			if err != nil {
				return err
			}

			keys, err := d.ListObjects(cmd.Context(), path)
			if err != nil {
				return err
			}
			if f != nil {
				if keys, err = f.Apply(keys); err != nil {
					return err
				}
			}

			return writeListing(cmd.OutOrStdout(), output, listing{Path: path, Count: len(keys), Keys: keys})
		},
	}

	cmd.Flags().StringVar(&expr, "filter", "", "CEL expression over key, name and dir")
	cmd.Flags().StringVarP(&output, "output", "o", "text", "Output format: text, json or yaml")
	return cmd
}

func writeListing(w io.Writer, format string, l listing) error {
	switch format {
	case "text", "":
		for _, k := range l.Keys {
			if _, err := fmt.Fprintln(w, k); err != nil {
				return err
			}
		}
		return nil
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(l)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(l); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q (want text, json or yaml)", format)
	}
}
