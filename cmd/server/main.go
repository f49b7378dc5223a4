package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	apihttp "github.com/GriffinCanCode/selectorkit/internal/api/http"
	"github.com/GriffinCanCode/selectorkit/internal/infrastructure/config"
	"github.com/GriffinCanCode/selectorkit/internal/infrastructure/server"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := parseFlags(args, config.Load, config.LoadFile)
	if err != nil {
		return err
	}

	srv, err := server.NewServer(cfg)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	defer srv.Close()

	// Handle graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return srv.Run(ctx)
}

// parseFlags builds the configuration: defaults, then environment, then
// the TOML file named by --config, then any flag set explicitly.
func parseFlags(args []string, fromEnv func() (*config.Config, error), fromFile func(string) (*config.Config, error)) (*config.Config, error) {
	fs := pflag.NewFlagSet("selectorkit-server", pflag.ContinueOnError)
	configPath := fs.StringP("config", "c", "", "TOML configuration file")
	port := fs.StringP("port", "p", "", "HTTP port")
	host := fs.String("host", "", "HTTP listen host")
	roots := fs.StringSlice("roots", nil, "selector configuration roots")
	strict := fs.Bool("strict", false, "treat validation warnings as errors")
	hotReload := fs.Bool("hot-reload", true, "watch roots and reload changed files")
	forcePolling := fs.Bool("force-polling", false, "poll instead of native file notifications")
	logLevel := fs.String("log-level", "", "log level (debug, info, warn, error)")
	dev := fs.Bool("dev", false, "development logging")
	version := fs.Bool("version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if *version {
		fmt.Println("selectorkit-server", apihttp.Version)
		return nil, pflag.ErrHelp
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}

	var (
		cfg *config.Config
		err error
	)
	if *configPath != "" {
		cfg, err = fromFile(*configPath)
	} else {
		cfg, err = fromEnv()
	}
	if err != nil {
		return nil, err
	}

	if fs.Changed("port") {
		cfg.Server.Port = *port
	}
	if fs.Changed("host") {
		cfg.Server.Host = *host
	}
	if fs.Changed("roots") {
		cfg.Selectors.Roots = *roots
	}
	if fs.Changed("strict") {
		cfg.Selectors.Strict = *strict
	}
	if fs.Changed("hot-reload") {
		cfg.Selectors.HotReload = *hotReload
	}
	if fs.Changed("force-polling") {
		cfg.Selectors.ForcePolling = *forcePolling
	}
	if fs.Changed("log-level") {
		cfg.Logging.Level = *logLevel
	}
	if fs.Changed("dev") {
		cfg.Logging.Development = *dev
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
