// Package cmd contains the admin commands.
package cmd

import (
	"fmt"
	"os"

	"github.com/ardanlabs/powchain/foundation/blockchain/chain"
	"github.com/ardanlabs/powchain/foundation/blockchain/storage/disk"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	log    *zap.SugaredLogger
	dbPath string
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db-path", "d", "zblock/blocks", "Path to the directory with the stored blocks.")
}

var rootCmd = &cobra.Command{
	Use:           "admin",
	Short:         "Administrative tasks for the ledger",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the command specified on the command line.
func Execute(l *zap.SugaredLogger) error {
	log = l
	return rootCmd.Execute()
}

// readRecords reads every stored block from the database path in order.
func readRecords(path string) ([]chain.Record, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("opening storage: %q is not a directory", path)
	}

	d, err := disk.New(path)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}
	defer d.Close()

	var records []chain.Record
	iter := d.ForEach()
	for rec, err := iter.Next(); !iter.Done(); rec, err = iter.Next() {
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("no blocks found in %q", path)
	}

	return records, nil
}
