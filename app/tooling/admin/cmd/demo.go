package cmd

import (
	"context"
	"fmt"

	"github.com/ardanlabs/powchain/foundation/blockchain/block"
	"github.com/ardanlabs/powchain/foundation/blockchain/chain"
	"github.com/ardanlabs/powchain/foundation/blockchain/storage/disk"
	"github.com/spf13/cobra"
)

var (
	demoInterval float64
	demoSave     bool
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Mine a small chain of example transfers and print it.",
	RunE:  demoRun,
}

func init() {
	rootCmd.AddCommand(demoCmd)
	demoCmd.Flags().Float64VarP(&demoInterval, "interval", "i", chain.DefaultTargetInterval, "Target interval between blocks in seconds.")
	demoCmd.Flags().BoolVarP(&demoSave, "save", "s", false, "Write the chain to the database path.")
}

func demoRun(cmd *cobra.Command, args []string) error {
	ev := func(v string, args ...any) {
		log.Infow(fmt.Sprintf(v, args...))
	}

	ch := chain.New(chain.Config{
		TargetInterval: demoInterval,
		EvHandler:      ev,
	})

	transfer, err := block.NewRecord(map[string]any{
		"from":   "Petya",
		"to":     "Vasya",
		"amount": 100,
	})
	if err != nil {
		return err
	}

	payloads := []block.Payload{
		block.Text("Vasya -> Pety: 10$"),
		block.Text("Vasya -> Olya: 12$"),
		block.Text("Pety <- Vasya: 10$"),
		transfer,
	}

	for _, p := range payloads {
		if err := ch.Append(context.Background(), block.New(nil, p)); err != nil {
			return fmt.Errorf("appending block: %w", err)
		}
	}

	if err := ch.Validate(); err != nil {
		return err
	}

	fmt.Println(ch.String())

	if !demoSave {
		return nil
	}

	d, err := disk.New(dbPath)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer d.Close()

	if err := d.Reset(); err != nil {
		return err
	}

	for i, rec := range ch.Export() {
		if err := d.Write(uint64(i), rec); err != nil {
			return fmt.Errorf("writing block %d: %w", i, err)
		}
	}

	log.Infow("demo", "status", "chain saved", "path", dbPath, "blocks", ch.Len())

	return nil
}
