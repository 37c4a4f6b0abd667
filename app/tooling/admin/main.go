// This program performs administrative tasks for the ledger.
package main

import (
	"fmt"
	"os"

	"github.com/ardanlabs/powchain/app/tooling/admin/cmd"
	"github.com/ardanlabs/powchain/foundation/logger"
)

func main() {

	// Construct the application logger. Output goes to stderr so the chain
	// can be piped from stdout.
	log, err := logger.New("ADMIN", "stderr")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := cmd.Execute(log); err != nil {
		log.Errorw("admin", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}
