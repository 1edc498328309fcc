// Command tradefin is the operator CLI for a tradefin ledger.
package main

import (
	"fmt"
	"os"

	"github.com/xraph/tradefin/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
