package cmd

import (
	"context"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/kilianp07/evbill/app"
	"github.com/kilianp07/evbill/infra/logger"
)

var desktopCmd = &cobra.Command{
	Use:   "desktop",
	Short: "Train the model and open the terminal form",
	RunE:  runDesktop,
}

func init() {
	rootCmd.AddCommand(desktopCmd)
}

func runDesktop(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	// the form owns the terminal
	var out io.Writer = io.Discard
	if cfg.Logging.File != "" {
		lj := &lumberjack.Logger{Filename: cfg.Logging.File, MaxSize: cfg.Logging.MaxSizeMB}
		defer lj.Close()
		out = lj
	}
	logger.SetOutput(out)

	return withService(func(ctx context.Context, svc *app.Service) error {
		return svc.RunDesktop(ctx)
	})
}
