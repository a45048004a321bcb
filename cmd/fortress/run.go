package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var flagRunOnStart bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run scheduled scans and wheel cycles until interrupted",
	Long: `Start the cron scheduler (schedule.scan_cron, schedule.wheel_cron) and, when Telegram is
configured, listen for /scan, /wheel, /positions and /cache chat commands.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		log := a.log

		if err := a.sched.RegisterAll(a.cfg.Schedule.ScanCron, a.cfg.Schedule.WheelCron); err != nil {
			return err
		}
		a.sched.Start()
		defer a.sched.Stop()

		if a.telegram != nil {
			go a.telegram.StartPolling(ctx, a.sched.HandleCommand)
			log.Info("telegram polling started")
		}

		if flagRunOnStart || os.Getenv("RUN_ON_START") == "true" {
			log.Info("running scan on start")
			go func() {
				if _, err := a.sched.RunScan(ctx, ""); err != nil {
					log.Error("startup scan failed", zap.Error(err))
				}
			}()
		}

		log.Info("fortress is running", zap.String("scan_cron", a.cfg.Schedule.ScanCron), zap.String("wheel_cron", a.cfg.Schedule.WheelCron))

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-sigCh:
			log.Info("shutdown signal received, stopping")
		case <-ctx.Done():
		}
		cancel()
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&flagRunOnStart, "run-on-start", false, "run a scan immediately after starting")
}
