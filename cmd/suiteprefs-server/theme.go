package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var themeCmd = &cobra.Command{
	Use:   "theme",
	Short: "Export or import the stored theme",
}

var themeExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Print the active theme as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		out, err := a.theme.ExportTheme()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
		return err
	},
}

var themeImportCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Apply a theme exported earlier; reads stdin when no file is given",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			payload []byte
			err     error
		)
		if len(args) == 1 {
			payload, err = os.ReadFile(args[0])
		} else {
			payload, err = io.ReadAll(cmd.InOrStdin())
		}
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		if !a.theme.ImportTheme(cmd.Context(), string(payload)) {
			return errors.New("theme import rejected")
		}
		st := a.theme.State()
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "theme set to %s (%s)\n", st.Mode, st.Effective)
		return err
	},
}

func init() {
	themeCmd.AddCommand(themeExportCmd)
	themeCmd.AddCommand(themeImportCmd)
}
