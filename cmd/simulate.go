package cmd

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/FlexMeasures/flexmeasures-sub003/infra/logger"
	"github.com/FlexMeasures/flexmeasures-sub003/simulator"
)

var simCfg simulator.Config

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run simulated battery assets against a broker",
	RunE:  runSimulate,
}

func init() {
	simulateCmd.Flags().StringVar(&simCfg.Broker, "broker", "tcp://localhost:1883", "MQTT broker URL")
	simulateCmd.Flags().IntVar(&simCfg.Count, "count", 1, "number of assets")
	simulateCmd.Flags().DurationVar(&simCfg.Interval, "interval", 30*time.Second, "meter reading interval")
	simulateCmd.Flags().DurationVar(&simCfg.AckLatency, "ack-latency", 0, "ack latency")
	simulateCmd.Flags().Float64Var(&simCfg.DropRate, "drop-rate", 0, "ack drop rate")
	simulateCmd.Flags().Float64Var(&simCfg.CapacityKWh, "capacity", 40, "battery capacity kWh")
	simulateCmd.Flags().Float64Var(&simCfg.ChargeRateKW, "charge-rate", 7, "charge rate kW")
	simulateCmd.Flags().Float64Var(&simCfg.DischargeRateKW, "discharge-rate", 10, "discharge rate kW")
	simulateCmd.Flags().Float64Var(&simCfg.SoC, "soc", 0.8, "initial state of charge")
	rootCmd.AddCommand(simulateCmd)
}

func runSimulate(cmd *cobra.Command, args []string) error {
	if err := simCfg.Validate(); err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.New("simulator")
	assets := simulator.GenerateFleet(simCfg)
	var wg sync.WaitGroup
	for _, a := range assets {
		wg.Add(1)
		go func(a *simulator.SimulatedAsset) {
			defer wg.Done()
			if err := a.Run(ctx); err != nil {
				log.Errorf("%s: %v", a.ID, err)
			}
		}(a)
	}
	wg.Wait()
	return nil
}
