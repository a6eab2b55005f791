// Command cosmongo translates Cosmos DB SQL to MongoDB and runs item
// operations against a MongoDB or SQLite backend.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/cosmongo/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		// Commands report their own failures; errors from cobra itself
		// (unknown command, bad flag) are printed here.
		if _, ok := err.(*cli.ExitError); !ok {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
