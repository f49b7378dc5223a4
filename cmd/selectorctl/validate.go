package main

import (
	"errors"
	"sort"

	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/selectorkit/internal/domain/index"
	"github.com/GriffinCanCode/selectorkit/internal/domain/registry"
	"github.com/GriffinCanCode/selectorkit/internal/domain/selector"
)

type fileError struct {
	Path    string           `json:"path"`
	Message string           `json:"message"`
	Issues  []selector.Issue `json:"issues,omitempty"`
}

type fileWarnings struct {
	Path     string           `json:"path"`
	Warnings []selector.Issue `json:"warnings"`
}

type dependencyProblem struct {
	Selector   string `json:"selector"`
	Template   string `json:"template"`
	SourceFile string `json:"source_file"`
	Reason     string `json:"reason"`
}

type validationReport struct {
	Roots        []string                 `json:"roots"`
	Files        int                      `json:"files"`
	Valid        int                      `json:"valid"`
	Errors       []fileError              `json:"errors"`
	Warnings     []fileWarnings           `json:"warnings"`
	Dependencies []dependencyProblem      `json:"dependencies"`
	Duplicates   []index.DuplicateWarning `json:"duplicates"`
	OK           bool                     `json:"ok"`
}

func newValidateCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <dir>...",
		Short: "Load every configuration under the given roots and report problems",
		Long: `Validate loads every configuration file under each root, resolves
inheritance and template references, and prints a JSON report.

The exit status is 1 when any file fails to load or any template reference
does not resolve.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, _, err := opts.open(cmd, args, nil)
			if err != nil {
				return err
			}
			report := buildReport(reg)
			if err := opts.print(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			if !report.OK {
				return &exitError{code: 1}
			}
			return nil
		},
	}
}

func buildReport(reg *registry.Registry) validationReport {
	configs := reg.Configurations()
	loadErrors := reg.LoadErrors()

	report := validationReport{
		Roots:        reg.Roots(),
		Files:        len(configs) + len(loadErrors),
		Valid:        len(configs),
		Errors:       []fileError{},
		Warnings:     []fileWarnings{},
		Dependencies: []dependencyProblem{},
		Duplicates:   reg.DuplicateWarnings(),
	}

	for path, err := range loadErrors {
		fe := fileError{Path: path, Message: err.Error()}
		var verr *selector.SchemaValidationError
		if errors.As(err, &verr) {
			fe.Issues = verr.Issues
		}
		report.Errors = append(report.Errors, fe)
	}
	sort.Slice(report.Errors, func(i, j int) bool { return report.Errors[i].Path < report.Errors[j].Path })

	for path, cfg := range configs {
		if len(cfg.Warnings) > 0 {
			report.Warnings = append(report.Warnings, fileWarnings{Path: path, Warnings: cfg.Warnings})
		}
	}
	sort.Slice(report.Warnings, func(i, j int) bool { return report.Warnings[i].Path < report.Warnings[j].Path })

	for _, dep := range reg.CheckDependencies() {
		report.Dependencies = append(report.Dependencies, dependencyProblem{
			Selector:   dep.Selector,
			Template:   dep.Template,
			SourceFile: dep.SourceFile,
			Reason:     dep.Reason,
		})
	}
	if report.Duplicates == nil {
		report.Duplicates = []index.DuplicateWarning{}
	}

	report.OK = len(report.Errors) == 0 && len(report.Dependencies) == 0
	return report
}
