package cmd

import (
	"fmt"
	"strings"

	"github.com/denzyldick/mediasafe/internal/negotiation"
	"github.com/denzyldick/mediasafe/internal/pairing"
	"github.com/spf13/cobra"
)

var joinCmd = &cobra.Command{
	Use:     "join <code>",
	Aliases: []string{"j"},
	Short:   "Join a pairing started on another device",
	Long: `Join the room derived from a pairing code and answer the initiator's offer.

The code may be the four words, separated by spaces or hyphens, or the UUID form.

Examples:
  mediasafe join abandon ability able about
  mediasafe join abandon-ability-able-about`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		input := strings.Join(args, " ")
		normalized := pairing.Normalize(input)
		if !pairing.IsPassphrase(normalized) && strings.Contains(normalized, "-") {
			return fmt.Errorf("pairing code must have %d words, got %q", pairing.PassphraseWords, normalized)
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return runSession(cmd.Context(), cfg, negotiation.Responder, pairing.Hash(input))
	},
}

func init() {
	rootCmd.AddCommand(joinCmd)
	addConnectionFlags(joinCmd)
}
