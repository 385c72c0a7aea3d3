package commands

import (
	"fmt"
	"io"

	"github.com/DrSkyle/bridgestore/pkg/storage"
	"github.com/spf13/cobra"
)

func newBackendsCmd(a *app) *cobra.Command {
	var verify bool

	cmd := &cobra.Command{
		Use:   "backends",
		Short: "Show backend candidates and which one is selected",
		Long: `Probe every backend candidate in selection order and report whether it is
configured. The first usable candidate is the one other commands use.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			w := cmd.OutOrStdout()

			candidates, err := storage.Candidates(a.cfg)
			if err != nil {
				return err
			}

			selected := ""
			for _, c := range candidates {
				b, ok, err := c.Probe(ctx, a.cfg, a.logger)
				status := ""
				switch {
				case err != nil:
					status = warnStyle.Render("error: " + err.Error())
				case !ok:
					status = flagStyle.Render("not configured")
				case selected == "":
					selected = c.Name
					status = okStyle.Render("selected")
				default:
					status = "available"
				}
				if closer, isCloser := b.(io.Closer); isCloser {
					_ = closer.Close()
				}
				fmt.Fprintf(w, "  %-10s %s\n", c.Name, status)
			}

			if selected == "" {
				return storage.ErrNoBackend
			}

			if verify && a.cfg.AWS.AccessKeyID != "" {
				awsCfg := storage.NewAWSConfig(a.cfg.AWS, a.cfg.Verbose, a.logger)
				account, err := storage.VerifyIdentity(ctx, awsCfg)
				if err != nil {
					return fmt.Errorf("verifying AWS credentials: %w", err)
				}
				fmt.Fprintf(w, "\n  AWS account %s\n", okStyle.Render(account))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&verify, "verify", false, "Check AWS credentials against STS")
	return cmd
}
