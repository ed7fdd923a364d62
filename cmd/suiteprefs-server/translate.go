package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/CreativeUnicorns/suiteprefs/i18n"
)

var (
	translateLang   string
	translateParams []string
)

// translateCmd resolves one key through the same fallback chain the API uses.
var translateCmd = &cobra.Command{
	Use:   "translate <key>",
	Short: "Translate a key in the stored or given language",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		params := make(map[string]any, len(translateParams))
		for _, p := range translateParams {
			name, value, ok := strings.Cut(p, "=")
			if !ok {
				return fmt.Errorf("invalid param %q: want name=value", p)
			}
			params[name] = value
		}

		a, err := newApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		if translateLang != "" && !a.i18n.SetLanguage(cmd.Context(), i18n.Language(translateLang)) {
			return fmt.Errorf("unsupported language %q", translateLang)
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), a.i18n.T(args[0], params))
		return err
	},
}

func init() {
	translateCmd.Flags().StringVarP(&translateLang, "lang", "l", "", "Language to translate into (persisted as the active language)")
	translateCmd.Flags().StringArrayVarP(&translateParams, "param", "p", nil, "Interpolation parameter as name=value (repeatable)")
}
