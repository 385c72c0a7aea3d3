package commands

import (
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"github.com/DrSkyle/bridgestore/pkg/datastore"
	"github.com/spf13/cobra"
)

func newPutCmd(a *app) *cobra.Command {
	var (
		path       string
		compressed bool
	)

	cmd := &cobra.Command{
		Use:   "put <name> [file|-]",
		Short: "Upload an object",
		Example: `  bridgestore put report.json ./report.json --path runs/42
  cat dump.bin | bridgestore put dump.bin --compressed`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			var (
				data []byte
				err  error
			)
			if len(args) == 1 || args[1] == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(args[1])
			}
			if err != nil {
				return fmt.Errorf("reading input: %w", err)
			}
			if !compressed && !utf8.Valid(data) {
				return fmt.Errorf("%s is not UTF-8 text; upload it with --compressed", name)
			}

			d, err := a.open(cmd.Context())
			if err != nil {
				return err
			}

			var n int
			if compressed {
				n, err = d.UploadCompressedObject(cmd.Context(), name, data, path)
			} else {
				n, err = d.UploadObject(cmd.Context(), name, string(data), path)
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s %d bytes\n", datastore.DeriveKey(path, name), n)
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "Logical path to store the object under")
	cmd.Flags().BoolVar(&compressed, "compressed", false, "Compress with zstd before uploading")
	return cmd
}
