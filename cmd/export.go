package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/FlexMeasures/flexmeasures-sub003/config"
	"github.com/FlexMeasures/flexmeasures-sub003/core/store"
	"github.com/FlexMeasures/flexmeasures-sub003/pkg/export"
)

var (
	exportStart string
	exportEnd   string
)

var exportCmd = &cobra.Command{
	Use:   "export <sensor-id>",
	Short: "Export a sensor's beliefs as CSV",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportStart, "start", "", "window start (RFC3339)")
	exportCmd.Flags().StringVar(&exportEnd, "end", "", "window end (RFC3339)")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	st, err := store.New(cfg.Store)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	defer func() { _ = st.Close() }()

	params := store.SearchParams{SensorID: args[0]}
	if exportStart != "" {
		params.EventStart, err = time.Parse(time.RFC3339, exportStart)
		if err != nil {
			return fmt.Errorf("invalid start: %w", err)
		}
	}
	if exportEnd != "" {
		params.EventEnd, err = time.Parse(time.RFC3339, exportEnd)
		if err != nil {
			return fmt.Errorf("invalid end: %w", err)
		}
	}
	beliefs, err := st.Search(cmd.Context(), params)
	if err != nil {
		return err
	}
	return export.WriteBeliefsCSV(cmd.OutOrStdout(), beliefs)
}
