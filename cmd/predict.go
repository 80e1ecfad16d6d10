package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/evbill/app"
	"github.com/kilianp07/evbill/core/prediction"
	"github.com/kilianp07/evbill/infra/logger"
)

var raw prediction.RawRequest

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Train the model and estimate the cost of one session",
	RunE:  predict,
}

func init() {
	f := predictCmd.Flags()
	f.StringVar(&raw.EnergyKWh, "energy", "", "energy consumed (kWh)")
	f.StringVar(&raw.DurationHours, "duration", "", "charging duration (hours)")
	f.StringVar(&raw.RateKW, "rate", "", "charging rate (kW)")
	f.StringVar(&raw.TemperatureC, "temperature", "", "temperature (°C)")
	f.StringVar(&raw.ChargerType, "charger", "", "charger type")
	f.StringVar(&raw.TimeOfDay, "time", "", "time of day")
	f.StringVar(&raw.UserType, "user", "", "user type")
	rootCmd.AddCommand(predictCmd)
}

func predict(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logg := logger.New("predict")
	m, err := app.Train(cfg, logg)
	if err != nil {
		return err
	}
	engine := prediction.NewService(m.Pipeline, prediction.WithLogger(logg))
	ctx := prediction.WithSource(context.Background(), prediction.SourceCLI)
	_, cost, err := engine.PredictRaw(ctx, raw)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), prediction.FormatCost(cost))
	return nil
}
