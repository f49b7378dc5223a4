package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/selectorkit/internal/shared/paths"
)

func newChainCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "chain <file>",
		Short: "Print the resolved inheritance chain of a configuration file",
		Long: `Chain prints the ancestors of a file, nearest first, together with the
merged context defaults, validation defaults and strategy templates the
file sees.

The file must lie under one of the configured roots.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := paths.Normalize(args[0])
			if err != nil {
				return err
			}

			reg, _, err := opts.open(cmd, nil, nil)
			if err != nil {
				return err
			}

			chain, err := reg.Chain(path)
			if err != nil {
				if lerr, ok := reg.LoadErrors()[path]; ok {
					return fmt.Errorf("%s did not load: %w", path, lerr)
				}
				return err
			}
			return opts.print(cmd.OutOrStdout(), chain)
		},
	}
}
