// Package cli implements the pdfval command line: a validate subcommand
// that prints a document verdict as JSON and a scan subcommand that
// prints a safety report.
package cli

import (
	"fmt"
	"os"
)

// osExit is swapped out in tests.
var osExit = os.Exit

func Usage() {
	fmt.Printf("Usage: %s <command> [options] <args>\n\n", os.Args[0])
	fmt.Println("Commands:")
	fmt.Println("  validate  Validate the digital signatures of a PDF file")
	fmt.Println("  scan      Check a PDF file for structural and content hazards")
	fmt.Println("")
	fmt.Printf("Use '%s <command> -h' for command-specific help\n", os.Args[0])
	osExit(1)
}
