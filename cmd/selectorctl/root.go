package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/selectorkit/internal/api/http"
	"github.com/GriffinCanCode/selectorkit/internal/domain/registry"
	"github.com/GriffinCanCode/selectorkit/internal/infrastructure/config"
	"github.com/GriffinCanCode/selectorkit/internal/infrastructure/logging"
	"github.com/GriffinCanCode/selectorkit/internal/infrastructure/server"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	roots      []string
	strict     bool
	verbose    bool
	compact    bool
}

// exitError ends the process with code after the command printed its own
// report.
type exitError struct {
	code int
}

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

func (e *exitError) ExitCode() int { return e.code }

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:           "selectorctl",
		Short:         "Inspect and exercise selector configuration trees",
		Version:       apihttp.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetVersionTemplate("{{printf \"%s\\n\" .Version}}")

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "TOML configuration file")
	flags.StringSliceVarP(&opts.roots, "roots", "r", nil, "selector configuration roots (overrides config)")
	flags.BoolVar(&opts.strict, "strict", false, "treat validation warnings as errors")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging on stderr")
	flags.BoolVar(&opts.compact, "compact", false, "single-line JSON output")

	root.AddCommand(
		newValidateCmd(opts),
		newResolveCmd(opts),
		newConflictsCmd(opts),
		newChainCmd(opts),
		newWatchCmd(opts),
	)
	return root
}

// settings loads configuration the way the server does, then applies the
// persistent flags. Hot reload stays off unless a command turns it on.
func (o *globalOptions) settings(cmd *cobra.Command, roots []string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if o.configPath != "" {
		cfg, err = config.LoadFile(o.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	switch {
	case len(roots) > 0:
		cfg.Selectors.Roots = roots
	case cmd.Flags().Changed("roots"):
		cfg.Selectors.Roots = o.roots
	}
	if cmd.Flags().Changed("strict") {
		cfg.Selectors.Strict = o.strict
	}
	cfg.Selectors.HotReload = false

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// open builds a registry for the command and loads it.
func (o *globalOptions) open(cmd *cobra.Command, roots []string, mutate func(*config.Config)) (*registry.Registry, *logging.Logger, error) {
	cfg, err := o.settings(cmd, roots)
	if err != nil {
		return nil, nil, err
	}
	if mutate != nil {
		mutate(cfg)
	}

	logger, err := logging.New(logging.CLIConfig(o.verbose))
	if err != nil {
		return nil, nil, err
	}

	reg, err := registry.New(server.RegistryOptions(cfg.Selectors, logger.Component("registry"), nil))
	if err != nil {
		return nil, nil, err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()
	if err := reg.Load(ctx); err != nil {
		return nil, nil, err
	}
	logger.Debug("Loaded configuration tree",
		zap.Strings("roots", reg.Roots()),
		zap.Duration("duration", time.Since(start)))
	return reg, logger, nil
}

// print writes v as JSON. Map keys are sorted so output is stable.
func (o *globalOptions) print(w io.Writer, v any) error {
	var (
		data []byte
		err  error
	)
	if o.compact {
		data, err = sonic.ConfigStd.Marshal(v)
	} else {
		data, err = sonic.ConfigStd.MarshalIndent(v, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}
