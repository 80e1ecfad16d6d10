package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/kilianp07/evbill/app"
	"github.com/kilianp07/evbill/infra/logger"
	"github.com/kilianp07/evbill/pkg/export"
)

var (
	evalCSV   string
	evalJSON  string
	evalChart string
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Train the model and report held-out error",
	RunE:  evaluate,
}

func init() {
	evaluateCmd.Flags().StringVar(&evalCSV, "csv", "", "write held-out rows as CSV")
	evaluateCmd.Flags().StringVar(&evalJSON, "json", "", "write held-out rows as JSON")
	evaluateCmd.Flags().StringVar(&evalChart, "chart", "", "write an actual vs predicted HTML chart")
	rootCmd.AddCommand(evaluateCmd)
}

func evaluate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	m, err := app.Train(cfg, logger.New("evaluate"))
	if err != nil {
		return err
	}
	rep := m.Report
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "rows: %d (dropped %d), train: %d, test: %d\n", m.Stats.Rows, m.Stats.Dropped, len(m.Train), len(m.Test))
	fmt.Fprintf(out, "MAE: %.4f\nRMSE: %.4f\nR²: %.4f\n", rep.MAE, rep.RMSE, rep.R2)

	if evalCSV != "" {
		if err := writeFile(evalCSV, func(w io.Writer) error { return export.WriteCSV(w, rep.Data) }); err != nil {
			return err
		}
	}
	if evalJSON != "" {
		if err := writeFile(evalJSON, func(w io.Writer) error { return export.WriteJSON(w, rep.Data) }); err != nil {
			return err
		}
	}
	if evalChart != "" {
		if err := writeFile(evalChart, func(w io.Writer) error { return export.WriteChart(w, rep) }); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
