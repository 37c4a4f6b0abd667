package cmd

import (
	"fmt"

	"github.com/ardanlabs/powchain/foundation/blockchain/chain"
	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check the integrity of the stored chain.",
	RunE:  verifyRun,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}

func verifyRun(cmd *cobra.Command, args []string) error {
	records, err := readRecords(dbPath)
	if err != nil {
		return err
	}

	blocks, err := chain.ToBlocks(records)
	if err != nil {
		return err
	}

	if _, err := chain.Restore(chain.Config{}, blocks); err != nil {
		if ve := chain.GetValidationError(err); ve != nil {
			fmt.Printf("INVALID: block %d: %s\n", ve.Index, ve.Err)
		}
		return err
	}

	fmt.Printf("VALID: %d blocks\n", len(records))

	return nil
}
