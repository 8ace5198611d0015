package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/FlexMeasures/flexmeasures-sub003/app"
	"github.com/FlexMeasures/flexmeasures-sub003/config"
	"github.com/FlexMeasures/flexmeasures-sub003/core/scheduling"
	"github.com/FlexMeasures/flexmeasures-sub003/infra/logger"
	"github.com/FlexMeasures/flexmeasures-sub003/pkg/export"
)

var (
	scheduleFormat string
	schedulePlan   string
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule [asset-id]",
	Short: "Compute a schedule for one asset and print it",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSchedule,
}

func init() {
	scheduleCmd.Flags().StringVar(&scheduleFormat, "format", "json", "output format (json or csv)")
	scheduleCmd.Flags().StringVar(&schedulePlan, "plan", "", "standalone planning config file (json or yaml)")
	rootCmd.AddCommand(scheduleCmd)
}

func runSchedule(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("schedule-command").Errorf("service close: %v", err)
		}
	}()

	var sched *scheduling.Schedule
	switch {
	case schedulePlan != "":
		plan, err := scheduling.LoadConfig(schedulePlan)
		if err != nil {
			return fmt.Errorf("load plan: %w", err)
		}
		if len(args) == 1 {
			plan.AssetID = args[0]
		}
		sched, err = svc.ComputePlan(ctx, plan)
		if err != nil {
			return err
		}
	case len(args) == 1:
		sched, err = svc.ComputeNow(ctx, args[0])
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("an asset id or --plan is required")
	}
	switch scheduleFormat {
	case "json":
		return export.WriteScheduleJSON(cmd.OutOrStdout(), sched)
	case "csv":
		return export.WriteScheduleCSV(cmd.OutOrStdout(), sched)
	default:
		return fmt.Errorf("unknown format %q", scheduleFormat)
	}
}
