package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ardanlabs/powchain/foundation/blockchain/block"
	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show [hash]",
	Short: "Print the stored chain or a single block by hash.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  showRun,
}

func init() {
	rootCmd.AddCommand(showCmd)
}

func showRun(cmd *cobra.Command, args []string) error {
	records, err := readRecords(dbPath)
	if err != nil {
		return err
	}

	if len(args) == 0 {
		return printJSON(records)
	}

	hash, err := block.ParseHash(args[0])
	if err != nil {
		return err
	}

	for i, rec := range records {
		if rec.Hash == hash {
			fmt.Printf("Block: %d\n", i)
			return printJSON(rec)
		}
	}

	return fmt.Errorf("block %s not found", hash)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	return enc.Encode(v)
}
