// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jasonmcalpin/ollama-chat/internal/store"
	"github.com/jasonmcalpin/ollama-chat/internal/ui/styles"
)

func newMigrateCommand(o *rootOptions) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Move sessions saved by older releases to the current key",
		Long: `Move sessions stored under the legacy key to the current key.

This also happens automatically whenever sessions are opened. The legacy
key is only read when the current key is absent.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := o.cfg
			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			w := cmd.OutOrStdout()
			primary, legacy := cfg.Storage.Key, cfg.Storage.LegacyKey
			if legacy == "" {
				fmt.Fprintln(w, styles.RenderMuted("no legacy key configured"))
				return nil
			}

			if dryRun {
				_, hasPrimary, err := st.Load(primary)
				if err != nil {
					return err
				}
				_, hasLegacy, err := st.Load(legacy)
				if err != nil {
					return err
				}
				switch {
				case hasPrimary:
					fmt.Fprintf(w, "%q exists; nothing to migrate\n", primary)
				case hasLegacy:
					fmt.Fprintf(w, "would copy %q to %q\n", legacy, primary)
				default:
					fmt.Fprintln(w, "no stored sessions")
				}
				return nil
			}

			res, err := store.Migrate(st, primary, legacy)
			switch res {
			case store.MigrationCopied:
				fmt.Fprintln(w, styles.RenderSuccess(fmt.Sprintf("moved %q to %q", legacy, primary)))
			case store.MigrationCopiedKeptLegacy:
				fmt.Fprintln(w, styles.RenderWarning(fmt.Sprintf("copied %q to %q but could not erase the legacy key", legacy, primary)))
			default:
				if err == nil {
					fmt.Fprintln(w, styles.RenderMuted("nothing to migrate"))
				}
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would happen without changing anything")
	return cmd
}
