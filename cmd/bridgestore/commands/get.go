package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newGetCmd(a *app) *cobra.Command {
	var (
		path       string
		compressed bool
		out        string
	)

	cmd := &cobra.Command{
		Use:   "get <name>",
		Short: "Fetch an object",
		Example: `  bridgestore get report.json --path runs/42
  bridgestore get dump.bin --compressed --out dump.bin`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.open(cmd.Context())
			if err != nil {
				return err
			}

			var data []byte
			if compressed {
				var size int
				data, size, err = d.FetchCompressedObject(cmd.Context(), args[0], path)
				if err != nil {
					return err
				}
				a.logger.Debug("Fetched compressed object", "name", args[0], "stored_bytes", size)
			} else {
				text, err := d.FetchObject(cmd.Context(), args[0], path)
				if err != nil {
					return err
				}
				data = []byte(text)
			}

			if out == "" || out == "-" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", out, err)
			}
			fmt.Fprintln(cmd.ErrOrStderr(), okStyle.Render(fmt.Sprintf("wrote %d bytes to %s", len(data), out)))
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "Logical path the object lives under")
	cmd.Flags().BoolVar(&compressed, "compressed", false, "Object was stored with put --compressed")
	cmd.Flags().StringVar(&out, "out", "", "Write to a file instead of stdout")
	return cmd
}
