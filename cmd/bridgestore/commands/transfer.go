package commands

import (
	"fmt"

	"github.com/DrSkyle/bridgestore/pkg/filter"
	"github.com/DrSkyle/bridgestore/pkg/transfer"
	"github.com/spf13/cobra"
)

func transferFlags(cmd *cobra.Command, opts *transfer.Options) {
	cmd.Flags().StringVar(&opts.Path, "path", "", "Logical path objects live under")
	cmd.Flags().BoolVar(&opts.Compressed, "compressed", false, "Use zstd-compressed objects")
	cmd.Flags().IntVar(&opts.Concurrency, "concurrency", 16, "Maximum concurrent driver calls")
}

func newPushCmd(a *app) *cobra.Command {
	var opts transfer.Options

	cmd := &cobra.Command{
		Use:     "push <dir>",
		Short:   "Upload a directory tree",
		Example: `  bridgestore push ./artifacts --path runs/42 --compressed`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.open(cmd.Context())
			if err != nil {
				return err
			}

			opts.Logger = a.logger
			res, err := transfer.Push(cmd.Context(), d, args[0], opts)
			fmt.Fprintf(cmd.OutOrStdout(), "pushed %d objects (%d bytes)\n", res.Objects, res.Bytes)
			return err
		},
	}
	transferFlags(cmd, &opts)
	return cmd
}

func newPullCmd(a *app) *cobra.Command {
	var (
		opts transfer.Options
		expr string
	)

	cmd := &cobra.Command{
		Use:     "pull <dir>",
		Short:   "Download every object under a path",
		Example: `  bridgestore pull ./restore --path runs/42 --filter 'name.endsWith(".json")'`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if expr != "" {
				f, err := filter.Compile(expr)
				if err != nil {
					return err
				}
				opts.Filter = f
			}

			d, err := a.open(cmd.Context())
			if err != nil {
				return err
			}

			opts.Logger = a.logger
			res, err := transfer.Pull(cmd.Context(), d, args[0], opts)
			fmt.Fprintf(cmd.OutOrStdout(), "pulled %d objects (%d bytes)\n", res.Objects, res.Bytes)
			return err
		},
	}
	transferFlags(cmd, &opts)
	cmd.Flags().StringVar(&expr, "filter", "", "CEL expression selecting keys to pull")
	return cmd
}
