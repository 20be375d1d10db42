package cli

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"go.uber.org/zap"

	"github.com/validbr/pdfval/scanner"
)

func ScanCommand() {
	scanFlags := flag.NewFlagSet("scan", flag.ExitOnError)

	var maxSize int64
	var maxPages int

	scanFlags.Int64Var(&maxSize, "max-size", 0, "Largest accepted file in bytes (0 for the built-in limit)")
	scanFlags.IntVar(&maxPages, "max-pages", 0, "Largest accepted page count (0 for the built-in limit)")

	scanFlags.Usage = func() {
		fmt.Printf("Usage: %s scan [options] <input.pdf>\n\n", os.Args[0])
		fmt.Println("Check a PDF file for structural and content hazards")
		fmt.Println("\nOptions:")
		scanFlags.PrintDefaults()
		fmt.Println("\nExamples:")
		fmt.Printf("  %s scan document.pdf\n", os.Args[0])
		fmt.Printf("  %s scan -max-pages 50 document.pdf\n", os.Args[0])
	}

	if err := scanFlags.Parse(os.Args[2:]); err != nil {
		log.Printf("Failed to parse scan flags: %v", err)
		osExit(1)
	}

	if len(scanFlags.Args()) < 1 {
		scanFlags.Usage()
		osExit(1)
		return
	}

	ScanPDF(scanFlags.Arg(0), scanner.Limits{MaxFileSize: maxSize, MaxPages: maxPages})
}

// ScanPDF is replaceable for tests.
var ScanPDF = scanPDFImpl

// scanPDFImpl scans one file and prints the report as JSON. The exit
// code reports whether the document passed the structural checks.
func scanPDFImpl(input string, limits scanner.Limits) {
	inputFile, err := os.Open(input)
	if err != nil {
		log.Printf("%v", err)
		osExit(1)
		return
	}
	defer func() {
		if err := inputFile.Close(); err != nil {
			log.Printf("Warning: failed to close input file: %v", err)
		}
	}()

	fi, err := inputFile.Stat()
	if err != nil {
		log.Printf("%v", err)
		osExit(1)
		return
	}

	report := scanner.New(limits, zap.NewNop()).Scan(inputFile, fi.Size())

	jsonData, err := json.Marshal(report)
	if err != nil {
		fmt.Println(err)
		osExit(1)
		return
	}
	fmt.Println(string(jsonData))
	if !report.Safe {
		osExit(1)
	}
}
