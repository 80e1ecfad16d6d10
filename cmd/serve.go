package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/kilianp07/evbill/app"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Train the model and serve the web form and APIs",
	RunE:  serve,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(cmd *cobra.Command, args []string) error {
	return withService(func(ctx context.Context, svc *app.Service) error {
		return svc.Run(ctx)
	})
}
