// Command historiador is the entry point for the history chatbot backend.
//
// All application logic lives in the cmd package; main stays minimal
// so it remains trivially testable.
package main

import (
	"fmt"
	"os"

	"github.com/MariDenig/chatBot-hist/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
