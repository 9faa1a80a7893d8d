// Command mgesched runs the mobile grid extension scheduler: a standalone
// SEAS/RL-Repl scheduling service fronted by an admin HTTP API and CLI.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
