package cmd

import (
	"fmt"

	"github.com/denzyldick/mediasafe/internal/negotiation"
	"github.com/denzyldick/mediasafe/internal/pairing"
	"github.com/denzyldick/mediasafe/internal/ui"
	"github.com/spf13/cobra"
)

var pairCmd = &cobra.Command{
	Use:     "pair",
	Aliases: []string{"p"},
	Short:   "Show a pairing code and wait for the other device",
	Long: `Generate a pairing code, display it and negotiate a direct channel as the initiator.

Examples:
  mediasafe pair
  mediasafe pair --relay ws://localhost:9489
  mediasafe pair --force-relay --turn turn.example.com`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		code, err := pairing.Generate()
		if err != nil {
			return err
		}

		fmt.Println()
		fmt.Println(ui.CodeView(code.Phrase(), code.UUID))
		ui.PrintInfof("On the other device run: mediasafe join %s", code.Phrase())

		return runSession(cmd.Context(), cfg, negotiation.Initiator, code.RoomID())
	},
}

func init() {
	rootCmd.AddCommand(pairCmd)
	addConnectionFlags(pairCmd)
}
