package cli

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/validbr/pdfval"
	"github.com/validbr/pdfval/config"
)

func ValidateCommand() {
	validateFlags := flag.NewFlagSet("validate", flag.ExitOnError)

	var configPath string
	var anchorPaths string
	var policy string
	var workers int
	var scan bool
	var external bool
	var httpTimeout time.Duration

	validateFlags.StringVar(&configPath, "config", "", "Path to a TOML config file (default ./pdfval.conf when present)")
	validateFlags.StringVar(&anchorPaths, "anchors", "", "Comma-separated PEM files with trusted issuing certificates")
	validateFlags.StringVar(&policy, "policy", "any", "Document verdict policy: any or all")
	validateFlags.IntVar(&workers, "workers", 1, "Number of signatures validated concurrently")
	validateFlags.BoolVar(&scan, "scan", false, "Run the safety scan before validating")
	validateFlags.BoolVar(&external, "external", false, "Enable external OCSP and CRL checking")
	validateFlags.DurationVar(&httpTimeout, "http-timeout", 10*time.Second, "Timeout for external revocation checking requests")

	validateFlags.Usage = func() {
		fmt.Printf("Usage: %s validate [options] <input.pdf>\n\n", os.Args[0])
		fmt.Println("Validate the digital signatures of a PDF file")
		fmt.Println("\nOptions:")
		validateFlags.PrintDefaults()
		fmt.Println("\nExamples:")
		fmt.Printf("  %s validate document.pdf\n", os.Args[0])
		fmt.Printf("  %s validate -anchors icpbrasil.pem -policy all document.pdf\n", os.Args[0])
		fmt.Printf("  %s validate -external -http-timeout=30s document.pdf\n", os.Args[0])
	}

	if err := validateFlags.Parse(os.Args[2:]); err != nil {
		log.Printf("Failed to parse validate flags: %v", err)
		osExit(1)
	}

	if len(validateFlags.Args()) < 1 {
		validateFlags.Usage()
		osExit(1)
		return
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		log.Printf("%v", err)
		osExit(1)
		return
	}

	// Flags override the config file only when given on the command line.
	set := make(map[string]bool)
	validateFlags.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if set["policy"] {
		cfg.Policy = policy
	}
	if set["workers"] {
		cfg.Workers = workers
	}
	if set["scan"] {
		cfg.Scan.Enabled = scan
	}
	if set["external"] {
		cfg.Revocation.HTTP = external
	}
	if set["http-timeout"] {
		cfg.Revocation.TimeoutSeconds = int(httpTimeout / time.Second)
	}
	if anchorPaths != "" {
		cfg.Anchors = append(cfg.Anchors, strings.Split(anchorPaths, ",")...)
	}

	ValidatePDF(validateFlags.Arg(0), cfg)
}

// ValidatePDF is replaceable for tests.
var ValidatePDF = validatePDFImpl

// validatePDFImpl validates one file under the given configuration and
// prints the verdict as JSON. The exit code reports document validity;
// a file that cannot be opened still produces a verdict.
func validatePDFImpl(input string, cfg *config.Config) {
	logger, err := cfg.BuildLogger()
	if err != nil {
		log.Printf("%v", err)
		osExit(1)
		return
	}
	defer func() { _ = logger.Sync() }()

	anchors, err := pdfval.LoadAnchors(cfg.Anchors...)
	if err != nil {
		log.Printf("%v", err)
		osExit(1)
		return
	}

	doc, err := pdfval.OpenFile(input)
	if err != nil {
		printVerdict(&pdfval.Verdict{
			Filename:          filepath.Base(input),
			Policy:            pdfval.Policy(cfg.Policy),
			Error:             err.Error(),
			ValidSignatures:   []*pdfval.SignatureResult{},
			InvalidSignatures: []*pdfval.SignatureResult{},
		})
		osExit(1)
		return
	}
	defer func() {
		if err := doc.Close(); err != nil {
			logger.Warn("failed to close input file", zap.Error(err))
		}
	}()

	builder := doc.Validate().
		Policy(pdfval.Policy(cfg.Policy)).
		Workers(cfg.Workers).
		Logger(logger)
	if len(anchors) > 0 {
		builder.Anchors(anchors...)
	}
	if checker := cfg.Checker(); checker != nil {
		builder.Revocation(checker)
	}
	if cfg.Scan.Enabled {
		builder.Scan(cfg.Limits())
	}

	verdict, _ := builder.Run()
	printVerdict(verdict)
	if !verdict.Valid {
		osExit(1)
	}
}

func printVerdict(v *pdfval.Verdict) {
	jsonData, err := json.Marshal(v)
	if err != nil {
		fmt.Println(err)
		osExit(1)
		return
	}
	fmt.Println(string(jsonData))
}

// loadConfig resolves the effective configuration. An explicit path must
// load; the default location is used when present, built-ins otherwise.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	if _, err := os.Stat(config.DefaultLocation); err == nil {
		return config.Load(config.DefaultLocation)
	}
	return config.Default(), nil
}
