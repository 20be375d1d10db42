package cli

import (
	"crypto/x509"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/validbr/pdfval/config"
	"github.com/validbr/pdfval/internal/testpki"
	"github.com/validbr/pdfval/scanner"
)

// stubExit replaces osExit with a recorder. The returned function
// reports the last exit code, or -1 when no exit happened.
func stubExit(t *testing.T) func() int {
	t.Helper()
	origExit := osExit
	t.Cleanup(func() { osExit = origExit })

	code := -1
	osExit = func(c int) { code = c }
	return func() int { return code }
}

func TestUsage(t *testing.T) {
	exitCode := stubExit(t)
	Usage()
	if exitCode() != 1 {
		t.Errorf("Usage exit code = %d, want 1", exitCode())
	}
}

func TestValidateCommandFlagParsing(t *testing.T) {
	origArgs := os.Args
	origValidate := ValidatePDF
	defer func() {
		os.Args = origArgs
		ValidatePDF = origValidate
	}()

	called := false
	ValidatePDF = func(input string, cfg *config.Config) {
		called = true
		if input != "input.pdf" {
			t.Errorf("input = %q, want %q", input, "input.pdf")
		}
		if cfg.Policy != "all" {
			t.Errorf("Policy = %q, want %q", cfg.Policy, "all")
		}
		if cfg.Workers != 4 {
			t.Errorf("Workers = %d, want 4", cfg.Workers)
		}
		if !cfg.Scan.Enabled {
			t.Error("Scan.Enabled = false, want true")
		}
		if !cfg.Revocation.HTTP {
			t.Error("Revocation.HTTP = false, want true")
		}
		if cfg.Revocation.TimeoutSeconds != 30 {
			t.Errorf("TimeoutSeconds = %d, want 30", cfg.Revocation.TimeoutSeconds)
		}
		if len(cfg.Anchors) != 2 || cfg.Anchors[0] != "raiz.pem" || cfg.Anchors[1] != "intermediaria.pem" {
			t.Errorf("Anchors = %v, want [raiz.pem intermediaria.pem]", cfg.Anchors)
		}
	}

	os.Args = []string{"pdfval", "validate",
		"-policy", "all", "-workers", "4", "-scan",
		"-external", "-http-timeout", "30s",
		"-anchors", "raiz.pem,intermediaria.pem",
		"input.pdf"}
	ValidateCommand()
	if !called {
		t.Error("ValidatePDF was not called for valid args")
	}
}

func TestValidateCommandConfigFile(t *testing.T) {
	origArgs := os.Args
	origValidate := ValidatePDF
	defer func() {
		os.Args = origArgs
		ValidatePDF = origValidate
	}()

	path := filepath.Join(t.TempDir(), "pdfval.conf")
	content := []byte("policy = \"all\"\nworkers = 8\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	var got *config.Config
	ValidatePDF = func(input string, cfg *config.Config) { got = cfg }

	// Config file settings apply when the flag is not given.
	os.Args = []string{"pdfval", "validate", "-config", path, "input.pdf"}
	ValidateCommand()
	if got == nil {
		t.Fatal("ValidatePDF was not called")
	}
	if got.Policy != "all" || got.Workers != 8 {
		t.Errorf("config file not applied: policy %q workers %d", got.Policy, got.Workers)
	}

	// An explicit flag overrides the file.
	got = nil
	os.Args = []string{"pdfval", "validate", "-config", path, "-policy", "any", "input.pdf"}
	ValidateCommand()
	if got == nil {
		t.Fatal("ValidatePDF was not called")
	}
	if got.Policy != "any" {
		t.Errorf("Policy = %q, want flag override %q", got.Policy, "any")
	}
	if got.Workers != 8 {
		t.Errorf("Workers = %d, want file value 8", got.Workers)
	}
}

func TestValidateCommandMissingInput(t *testing.T) {
	origArgs := os.Args
	origValidate := ValidatePDF
	defer func() {
		os.Args = origArgs
		ValidatePDF = origValidate
	}()
	exitCode := stubExit(t)

	called := false
	ValidatePDF = func(input string, cfg *config.Config) { called = true }

	os.Args = []string{"pdfval", "validate"}
	ValidateCommand()
	if exitCode() != 1 {
		t.Errorf("exit code = %d, want 1", exitCode())
	}
	if called {
		t.Error("ValidatePDF called without an input argument")
	}
}

func TestValidateCommandBadConfigPath(t *testing.T) {
	origArgs := os.Args
	origValidate := ValidatePDF
	defer func() {
		os.Args = origArgs
		ValidatePDF = origValidate
	}()
	exitCode := stubExit(t)

	called := false
	ValidatePDF = func(input string, cfg *config.Config) { called = true }

	os.Args = []string{"pdfval", "validate", "-config", filepath.Join(t.TempDir(), "nao-existe.conf"), "input.pdf"}
	ValidateCommand()
	if exitCode() != 1 {
		t.Errorf("exit code = %d, want 1", exitCode())
	}
	if called {
		t.Error("ValidatePDF called despite unreadable config")
	}
}

func TestScanCommandFlagParsing(t *testing.T) {
	origArgs := os.Args
	origScan := ScanPDF
	defer func() {
		os.Args = origArgs
		ScanPDF = origScan
	}()

	called := false
	ScanPDF = func(input string, limits scanner.Limits) {
		called = true
		if input != "laudo.pdf" {
			t.Errorf("input = %q, want %q", input, "laudo.pdf")
		}
		if limits.MaxFileSize != 1024 || limits.MaxPages != 5 {
			t.Errorf("limits = %+v, want {1024 5}", limits)
		}
	}

	os.Args = []string{"pdfval", "scan", "-max-size", "1024", "-max-pages", "5", "laudo.pdf"}
	ScanCommand()
	if !called {
		t.Error("ScanPDF was not called for valid args")
	}
}

func TestScanCommandMissingInput(t *testing.T) {
	origArgs := os.Args
	origScan := ScanPDF
	defer func() {
		os.Args = origArgs
		ScanPDF = origScan
	}()
	exitCode := stubExit(t)

	called := false
	ScanPDF = func(input string, limits scanner.Limits) { called = true }

	os.Args = []string{"pdfval", "scan"}
	ScanCommand()
	if exitCode() != 1 {
		t.Errorf("exit code = %d, want 1", exitCode())
	}
	if called {
		t.Error("ScanPDF called without an input argument")
	}
}

func TestScanPDF(t *testing.T) {
	exitCode := stubExit(t)

	path := filepath.Join(t.TempDir(), "limpo.pdf")
	if err := os.WriteFile(path, testpki.BuildPlainPDF(t), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	scanPDFImpl(path, scanner.Limits{})
	if exitCode() != -1 {
		t.Errorf("exit code = %d, want no exit for a safe document", exitCode())
	}
}

func TestScanPDFUnsafe(t *testing.T) {
	exitCode := stubExit(t)

	path := filepath.Join(t.TempDir(), "suspeito.pdf")
	if err := os.WriteFile(path, []byte("not a pdf"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	scanPDFImpl(path, scanner.Limits{})
	if exitCode() != 1 {
		t.Errorf("exit code = %d, want 1 for an unsafe document", exitCode())
	}
}

func TestScanPDFMissingFile(t *testing.T) {
	exitCode := stubExit(t)

	scanPDFImpl(filepath.Join(t.TempDir(), "nao-existe.pdf"), scanner.Limits{})
	if exitCode() != 1 {
		t.Errorf("exit code = %d, want 1 for a missing file", exitCode())
	}
}

func TestValidatePDF(t *testing.T) {
	exitCode := stubExit(t)

	a := testpki.NewAuthority(t)
	key, cert := a.IssuePerson("Maria Souza", "12345678909")
	data := testpki.BuildSignedPDF(t, key, cert, testpki.DocumentSpec{
		SignerName:  "Maria Souza",
		SigningTime: time.Now().UTC().Truncate(time.Second),
		Chain:       []*x509.Certificate{a.Cert},
	})

	dir := t.TempDir()
	pdfPath := filepath.Join(dir, "contrato.pdf")
	if err := os.WriteFile(pdfPath, data, 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	anchorPath := filepath.Join(dir, "ac.pem")
	if err := os.WriteFile(anchorPath, a.CertPEM(), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg := config.Default()
	cfg.Anchors = []string{anchorPath}
	validatePDFImpl(pdfPath, cfg)
	if exitCode() != -1 {
		t.Errorf("exit code = %d, want no exit for a valid document", exitCode())
	}
}

func TestValidatePDFInvalidDocument(t *testing.T) {
	exitCode := stubExit(t)

	path := filepath.Join(t.TempDir(), "limpo.pdf")
	if err := os.WriteFile(path, testpki.BuildPlainPDF(t), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	validatePDFImpl(path, config.Default())
	if exitCode() != 1 {
		t.Errorf("exit code = %d, want 1 for an unsigned document", exitCode())
	}
}

func TestValidatePDFMissingFile(t *testing.T) {
	exitCode := stubExit(t)

	validatePDFImpl(filepath.Join(t.TempDir(), "nao-existe.pdf"), config.Default())
	if exitCode() != 1 {
		t.Errorf("exit code = %d, want 1 for a missing file", exitCode())
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pdfval.conf")
	if err := os.WriteFile(path, []byte("policy = \"all\"\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	// Explicit path.
	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Policy != "all" {
		t.Errorf("Policy = %q, want %q", cfg.Policy, "all")
	}

	// Explicit path that does not exist.
	if _, err := loadConfig(filepath.Join(dir, "nao-existe.conf")); err == nil {
		t.Error("expected error for a missing explicit config path")
	}

	// Default location present.
	origLocation := config.DefaultLocation
	defer func() { config.DefaultLocation = origLocation }()
	config.DefaultLocation = path

	cfg, err = loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Policy != "all" {
		t.Errorf("Policy = %q, want default location value %q", cfg.Policy, "all")
	}

	// No config anywhere falls back to the built-ins.
	config.DefaultLocation = filepath.Join(dir, "outro.conf")
	cfg, err = loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Policy != "any" {
		t.Errorf("Policy = %q, want built-in default %q", cfg.Policy, "any")
	}
}
