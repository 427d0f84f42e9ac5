package cmd

import (
	"fmt"

	"github.com/denzyldick/mediasafe/internal/pairing"
	"github.com/denzyldick/mediasafe/internal/ui"
	"github.com/spf13/cobra"
)

var codeCmd = &cobra.Command{
	Use:   "code",
	Short: "Generate a pairing code without connecting",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		code, err := pairing.Generate()
		if err != nil {
			return err
		}

		fmt.Println(ui.CodeView(code.Phrase(), code.UUID))
		fmt.Println(ui.DetailsTable("Pairing code", [][2]string{
			{"Passphrase", code.Phrase()},
			{"UUID", code.UUID},
			{"Room ID", code.RoomID()},
		}))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(codeCmd)
}
