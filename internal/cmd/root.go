package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/denzyldick/mediasafe/internal/config"
	"github.com/denzyldick/mediasafe/internal/logging"
	"github.com/denzyldick/mediasafe/internal/ui"
	"github.com/denzyldick/mediasafe/internal/version"
	"github.com/spf13/cobra"
)

var (
	flagRelayURL   string
	flagDomain     string
	flagSTUN       string
	flagTURN       string
	flagTURNUser   string
	flagTURNPass   string
	flagForceRelay bool
	flagTimeout    time.Duration
	flagPlain      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "mediasafe",
	Short: "Pair two mediasafe devices over a direct WebRTC channel",
	Long: `mediasafe pairs two devices of a personal photo vault through a short shared code.
One device runs "pair" and shows four words; the other runs "join" with those words.
A signaling relay brokers the WebRTC handshake, after which the devices talk directly.`,
	Version: version.Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init(slog.LevelError)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		ui.PrintError(err.Error())
		stop()
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(config.Options{
		RelayURL:           flagRelayURL,
		Domain:             flagDomain,
		STUNServer:         flagSTUN,
		TURNServer:         flagTURN,
		TURNUser:           flagTURNUser,
		TURNPass:           flagTURNPass,
		ForceRelay:         flagForceRelay,
		NegotiationTimeout: flagTimeout,
	})
	if err != nil {
		return nil, err
	}
	if cfg.ForceRelay && cfg.GetTURNServers() == nil {
		ui.PrintWarning("Relay mode needs a TURN server; using direct candidates")
	}
	return cfg, nil
}

// addConnectionFlags registers the relay and ICE flags on commands that negotiate.
func addConnectionFlags(c *cobra.Command) {
	c.Flags().StringVar(&flagRelayURL, "relay", "", "Relay base URL (ws:// or wss://)")
	c.Flags().StringVarP(&flagDomain, "domain", "d", "", "Relay domain, used as wss://<domain>")
	c.Flags().StringVarP(&flagSTUN, "stun", "s", "", "Custom STUN server")
	c.Flags().StringVarP(&flagTURN, "turn", "t", "", "Custom TURN server")
	c.Flags().StringVarP(&flagTURNUser, "turn-user", "u", "", "TURN username")
	c.Flags().StringVarP(&flagTURNPass, "turn-pass", "p", "", "TURN password")
	c.Flags().BoolVarP(&flagForceRelay, "force-relay", "r", false, "Only use TURN relay candidates")
	c.Flags().DurationVar(&flagTimeout, "timeout", 0, "Negotiation timeout (default 30s)")
	c.Flags().BoolVar(&flagPlain, "plain", false, "Disable the live status view")
}
