package main

import (
	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/selectorkit/internal/domain/resolver"
	"github.com/GriffinCanCode/selectorkit/internal/domain/selector"
)

func newResolveCmd(opts *globalOptions) *cobra.Command {
	var rc selector.ResolutionContext

	cmd := &cobra.Command{
		Use:   "resolve <name>",
		Short: "Resolve a selector for a page and print its plan",
		Example: `  selectorctl resolve submit --roots ./selectors/shop --page auth --section login
  selectorctl resolve search_box --history home,results`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, logger, err := opts.open(cmd, nil, nil)
			if err != nil {
				return err
			}
			res := resolver.New(reg, resolver.Options{
				Logger:  logger.Component("resolver"),
				Metrics: reg.Metrics(),
			})

			result, err := res.Resolve(args[0], rc)
			if err != nil {
				return err
			}
			return opts.print(cmd.OutOrStdout(), result)
		},
	}

	f := cmd.Flags()
	f.StringVar(&rc.CurrentPage, "page", "", "current page")
	f.StringVar(&rc.CurrentSection, "section", "", "current section within the page")
	f.StringVar(&rc.TabContext, "tab", "", "active tab within the section")
	f.StringSliceVar(&rc.NavigationHistory, "history", nil, "pages visited, oldest first")
	return cmd
}
