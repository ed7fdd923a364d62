package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var rekeyCmd = &cobra.Command{
	Use:   "rekey",
	Short: "Re-encrypt stored preferences under the active encryption key",
	Long: `rekey rewrites every encrypted slot that was sealed under a retired key.
Put the old key in SUITEPREFS_ENCRYPTION_RETIRED_KEYS and the new one in
SUITEPREFS_ENCRYPTION_KEY, run rekey, then drop the retired key.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		if !a.cfg.Encryption.Enabled {
			return errors.New("rekey: encryption.enabled is false")
		}
		n, err := a.store.Reseal(cmd.Context())
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "resealed %d preferences\n", n)
		return err
	},
}
