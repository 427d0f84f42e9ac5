package cmd

import (
	"fmt"
	"strings"

	"github.com/denzyldick/mediasafe/internal/pairing"
	"github.com/denzyldick/mediasafe/internal/ui"
	"github.com/spf13/cobra"
)

var flagQuiet bool

var hashCmd = &cobra.Command{
	Use:   "hash <code>",
	Short: "Print the room id for a passphrase or UUID",
	Long: `Print the room id both devices meet in.

The code may be the four words, joined by spaces or hyphens, or the UUID form.

Examples:
  mediasafe hash abandon ability able about
  mediasafe hash 6162616e646f6e2d...`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		input := strings.Join(args, " ")
		roomID := pairing.Hash(input)

		if flagQuiet {
			fmt.Println(roomID)
			return nil
		}

		normalized := pairing.Normalize(input)
		form := "uuid"
		if pairing.IsPassphrase(normalized) {
			form = "passphrase"
		}
		fmt.Println(ui.DetailsTable("Room", [][2]string{
			{"Input", normalized},
			{"Form", form},
			{"Room ID", roomID},
		}))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(hashCmd)
	hashCmd.Flags().BoolVarP(&flagQuiet, "quiet", "q", false, "Print only the room id")
}
