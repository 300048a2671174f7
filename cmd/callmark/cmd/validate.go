package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MrWong99/callmark/internal/dictionary"
)

func newValidateCmd(c *cli) *cobra.Command {
	var dictPath string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration and a dictionary file",
		Long: "Loads the configuration (--config) and the dictionary file and reports every problem found. " +
			"Exits non-zero when either is invalid.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := c.dictionariesPath(dictPath)
			if err != nil {
				return err
			}
			dicts, err := dictionary.Load(path)
			if err != nil {
				return err
			}
			phrases := 0
			for _, d := range dicts {
				phrases += len(d.Phrases)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "ok: %s: %d dictionaries, %d phrases\n", path, len(dicts), phrases)
			return err
		},
	}
	cmd.Flags().StringVar(&dictPath, "dictionaries", "", "dictionary YAML file (default: dictionaries.path from the config)")
	return cmd
}
