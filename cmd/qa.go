package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/evbill/app"
	"github.com/kilianp07/evbill/core/prediction"
	"github.com/kilianp07/evbill/infra/logger"
	"github.com/kilianp07/evbill/qa/scenarios"
)

var qaCmd = &cobra.Command{
	Use:   "qa <scenario.yaml>...",
	Short: "Train the model and check pricing scenarios",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runQA,
}

func init() {
	rootCmd.AddCommand(qaCmd)
}

func runQA(cmd *cobra.Command, args []string) error {
	scs := make([]*scenarios.Scenario, 0, len(args))
	for _, path := range args {
		sc, err := scenarios.Load(path)
		if err != nil {
			return err
		}
		scs = append(scs, sc)
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	m, err := app.Train(cfg, logger.New("qa"))
	if err != nil {
		return err
	}
	res := scenarios.RunAll(context.Background(), prediction.NewService(m.Pipeline), scs)
	out := cmd.OutOrStdout()
	for _, f := range res.Failures {
		fmt.Fprintln(out, "FAIL", f)
	}
	fmt.Fprintf(out, "%d/%d cases passed\n", res.Cases-len(res.Failures), res.Cases)
	if !res.Passed() {
		return fmt.Errorf("%d scenario cases failed", len(res.Failures))
	}
	return nil
}
