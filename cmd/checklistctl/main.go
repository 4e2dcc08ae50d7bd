// checklistctl drives a checklist from a terminal through the same session
// engine a field device uses.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/engine"
	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/config"
	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/shared/apiclient"
)

var (
	serverURL string
	token     string
	timeout   time.Duration
	verbose   bool
	lat, lng  float64
	noGPS     bool

	locationTimeout time.Duration
)

var rootCmd = &cobra.Command{
	Use:           "checklistctl",
	Short:         "Fill in and finalize service order checklists",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if !cmd.Flags().Changed("server") {
			serverURL = cfg.Client.BaseURL
		}
		if !cmd.Flags().Changed("token") {
			token = cfg.Client.Token
		}
		if !cmd.Flags().Changed("timeout") && cfg.Client.Timeout > 0 {
			timeout = cfg.Client.Timeout
		}
		locationTimeout = cfg.Checklist.LocationTimeout
		if serverURL == "" {
			return fmt.Errorf("no server url, set --server or CHECKLIST_API_URL")
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "Checklist API base url (or CHECKLIST_API_URL)")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "Bearer token (or CHECKLIST_API_TOKEN)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "HTTP timeout")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	signCmd.Flags().Float64Var(&lat, "lat", 0, "Latitude of the signing place")
	signCmd.Flags().Float64Var(&lng, "lng", 0, "Longitude of the signing place")
	signCmd.Flags().BoolVar(&noGPS, "no-gps", false, "Treat location services as disabled")

	rootCmd.AddCommand(showCmd, answerCmd, photoCmd, signCmd, finalizeCmd, finishCmd)
}

func newLogger() *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}
	l, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return l
}

func newClient(logger *zap.Logger) *apiclient.Client {
	c := apiclient.NewClient(serverURL, token, timeout)
	c.SetLogger(logger)
	return c
}

// openSession loads the order's checklist with terminal-backed capabilities.
func openSession(ctx context.Context, cmd *cobra.Command, orderID string, files []string) (*engine.Session, error) {
	logger := newLogger()
	dev := terminal{in: cmd.InOrStdin(), out: cmd.OutOrStdout()}
	cfg := engine.Config{
		Picker:          &filePicker{files: files},
		Locator:         fixedLocator{lat: lat, lng: lng, set: cmd.Flags().Changed("lat") && cmd.Flags().Changed("lng"), disabled: noGPS},
		Prompter:        dev,
		LocationTimeout: locationTimeout,
		Logger:          logger,
	}
	return engine.Open(ctx, newClient(logger), orderID, cfg)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
