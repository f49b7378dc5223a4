package main

import (
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/selectorkit/internal/domain/registry"
	"github.com/GriffinCanCode/selectorkit/internal/infrastructure/config"
)

func newWatchCmd(opts *globalOptions) *cobra.Command {
	var (
		poll      bool
		interval  time.Duration
		debounce  time.Duration
		maxEvents int
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Hot reload the configuration tree and print change events",
		Long: `Watch loads the configuration tree, then prints one JSON line per
change event until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, logger, err := opts.open(cmd, nil, func(cfg *config.Config) {
				cfg.Selectors.HotReload = true
				if cmd.Flags().Changed("poll") {
					cfg.Selectors.ForcePolling = poll
				}
				if cmd.Flags().Changed("interval") {
					cfg.Selectors.PollInterval = interval
				}
				if cmd.Flags().Changed("debounce") {
					cfg.Selectors.Debounce = debounce
				}
			})
			if err != nil {
				return err
			}

			events := make(chan registry.EventRecord, 64)
			sub := reg.Subscribe(func(ev registry.ChangeEvent) {
				select {
				case events <- ev.Record():
				default:
					logger.Warn("Dropped change event", zap.String("path", ev.Path))
				}
			})
			defer sub.Unsubscribe()

			ctx := cmd.Context()
			if err := reg.Start(ctx); err != nil {
				return err
			}
			defer reg.Stop()

			health := reg.Health()
			logger.Info("Watching configuration tree",
				zap.Strings("roots", reg.Roots()),
				zap.String("health", string(health.Status)),
				zap.Int("configurations", health.Configurations))

			out := cmd.OutOrStdout()
			for seen := 0; maxEvents <= 0 || seen < maxEvents; seen++ {
				select {
				case <-ctx.Done():
					return nil
				case rec := <-events:
					line, err := sonic.ConfigStd.Marshal(rec)
					if err != nil {
						return fmt.Errorf("failed to encode event: %w", err)
					}
					if _, err := fmt.Fprintln(out, string(line)); err != nil {
						return err
					}
				}
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.BoolVar(&poll, "poll", false, "use the polling watcher instead of filesystem notifications")
	f.DurationVar(&interval, "interval", 2*time.Second, "polling interval")
	f.DurationVar(&debounce, "debounce", 0, "coalesce bursts of events on one path")
	f.IntVarP(&maxEvents, "count", "n", 0, "exit after this many events (0 watches until interrupted)")
	return cmd
}
