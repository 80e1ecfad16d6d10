package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/kilianp07/evbill/simulator"
)

var (
	genCfg     simulator.Config
	genOut     string
	genTariffs string
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Write a synthetic charging session dataset",
	RunE:  generate,
}

func init() {
	f := generateCmd.Flags()
	f.IntVar(&genCfg.Rows, "rows", 1000, "number of sessions")
	f.Uint64Var(&genCfg.Seed, "seed", 42, "random seed")
	f.Float64Var(&genCfg.MissingRate, "missing", 0.02, "fraction of rows with one blank cell")
	f.Float64Var(&genCfg.CommuterPct, "commuters", 0.45, "share of commuter sessions")
	f.StringVar(&genTariffs, "tariffs", "", "JSON file of per-kWh prices by time of day")
	f.StringVarP(&genOut, "out", "o", "ev_charging_patterns.csv", "output file, - for stdout")
	rootCmd.AddCommand(generateCmd)
}

func generate(cmd *cobra.Command, args []string) error {
	cfg := genCfg
	if genTariffs != "" {
		data, err := os.ReadFile(genTariffs)
		if err != nil {
			return err
		}
		if cfg.Tariffs, err = simulator.LoadTariffs(data); err != nil {
			return fmt.Errorf("tariffs: %w", err)
		}
	}
	rows, err := simulator.Generate(cfg)
	if err != nil {
		return err
	}
	if genOut == "-" {
		return simulator.WriteCSV(cmd.OutOrStdout(), rows)
	}
	if err := writeFile(genOut, func(w io.Writer) error { return simulator.WriteCSV(w, rows) }); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %d sessions to %s\n", len(rows), genOut)
	return nil
}
