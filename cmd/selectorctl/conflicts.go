package main

import (
	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/selectorkit/internal/domain/index"
)

type conflictReport struct {
	Conflicts  []conflictEntry          `json:"conflicts"`
	Duplicates []index.DuplicateWarning `json:"duplicates"`
}

type conflictEntry struct {
	Name     string   `json:"name"`
	Contexts []string `json:"contexts"`
	Files    []string `json:"files"`
}

func newConflictsCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "conflicts",
		Short: "List selector names defined in more than one context",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, _, err := opts.open(cmd, nil, nil)
			if err != nil {
				return err
			}

			report := conflictReport{
				Conflicts:  []conflictEntry{},
				Duplicates: reg.DuplicateWarnings(),
			}
			for _, c := range reg.Conflicts() {
				entry := conflictEntry{Name: c.Name, Contexts: c.Contexts()}
				for _, e := range c.Entries {
					entry.Files = append(entry.Files, e.SourceFile)
				}
				report.Conflicts = append(report.Conflicts, entry)
			}
			if report.Duplicates == nil {
				report.Duplicates = []index.DuplicateWarning{}
			}
			return opts.print(cmd.OutOrStdout(), report)
		},
	}
}
