package cmd

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/apiharvest/apiharvest/internal/config"
	"github.com/apiharvest/apiharvest/internal/target"
)

func TestSetVersionInfo(t *testing.T) {
	version := "1.2.3"
	buildTime := "2023-12-01T10:00:00Z"

	SetVersionInfo(version, buildTime)

	expected := "1.2.3 (built 2023-12-01T10:00:00Z)"
	if rootCmd.Version != expected {
		t.Errorf("Expected version %s, got %s", expected, rootCmd.Version)
	}
}

func TestExecute(t *testing.T) {
	// Save original args
	origArgs := os.Args
	defer func() { os.Args = origArgs }()

	// Test help command
	os.Args = []string{"apiharvest", "--help"}
	err := Execute()
	// Help should exit with ErrHelp, but cobra handles this internally
	// and returns nil for help commands
	if err != nil {
		t.Logf("Execute with help returned: %v", err)
	}
}

func TestInitConfig(t *testing.T) {
	// Create a temporary config file
	tempDir := t.TempDir()
	configFile := filepath.Join(tempDir, "config.yaml")

	configContent := `
workers: 5
request_delay: 2s
user_agent: "TestAgent/1.0"
`

	err := os.WriteFile(configFile, []byte(configContent), 0644)
	if err != nil {
		t.Fatalf("Failed to create test config file: %v", err)
	}

	// Set config file
	cfgFile = configFile

	// Initialize config
	initConfig()

	// Check if config was loaded
	if viper.ConfigFileUsed() != configFile {
		t.Errorf("Expected config file %s, got %s", configFile, viper.ConfigFileUsed())
	}

	// Reset for other tests
	cfgFile = ""
	viper.Reset()
}

func TestRootCmd(t *testing.T) {
	// Test that rootCmd is properly initialized
	if rootCmd.Use != "apiharvest [target-id...]" {
		t.Errorf("Expected use 'apiharvest [target-id...]', got %s", rootCmd.Use)
	}

	if rootCmd.Short != "A declarative crawler for paginated JSON APIs" {
		t.Errorf("Unexpected short description: %s", rootCmd.Short)
	}

	if rootCmd.RunE == nil {
		t.Error("RunE should be set to runHarvest")
	}
}

func TestFlagBinding(t *testing.T) {
	// This tests that the init() function properly sets up flags
	flags := rootCmd.Flags()

	// Test that essential flags exist
	expectedFlags := []string{
		"targets",
		"strategy",
		"workers",
		"detail-workers",
		"batch-size",
		"start-page",
		"page-size",
		"empty-page-limit",
		"timeout",
		"delay",
		"user-agent",
		"backoff-base",
		"backoff-jitter",
		"backoff-cap",
		"failure-keywords",
		"format",
		"out-dir",
		"db",
		"status-file",
		"metrics-addr",
		"log-level",
		"log-file",
	}

	for _, flagName := range expectedFlags {
		if flags.Lookup(flagName) == nil {
			t.Errorf("Expected flag %s to be defined", flagName)
		}
	}

	// Test persistent flags
	persistentFlags := rootCmd.PersistentFlags()
	if persistentFlags.Lookup("config") == nil {
		t.Error("Expected persistent flag 'config' to be defined")
	}
}

func TestGenerateUserAgent(t *testing.T) {
	origVersion := version
	defer func() { version = origVersion }()

	tests := []struct {
		name     string
		version  string
		expected string
	}{
		{"release version", "1.4.0", "apiharvest/1.4.0"},
		{"dev version", "dev", "apiharvest/dev"},
		{"empty version", "", "apiharvest/dev"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			version = tt.version
			if got := generateUserAgent(); got != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestShowCurrentConfig(t *testing.T) {
	if err := showCurrentConfig(nil); err == nil {
		t.Error("Expected error for nil configuration")
	}

	if err := showCurrentConfig(config.DefaultConfig()); err != nil {
		t.Errorf("Expected no error for default configuration, got: %v", err)
	}
}

// writeTargetsFile writes a two-target file and returns its path.
func writeTargetsFile(t *testing.T, dir, listURL string) string {
	t.Helper()

	content := fmt.Sprintf(`targets:
  - id: expo
    mode: single
    name_field: company
    list:
      url: %s/companies
      query:
        page: "{page}"
        size: "{pageSize}"
      items_path: items
      fields:
        - name: company
          path: name
        - name: phone
          path: phone
  - id: fair
    mode: single
    list:
      url: %s/fairs
      query:
        page: "{page}"
      items_path: items
      fields:
        - name: fair
          path: title
`, listURL, listURL)

	path := filepath.Join(dir, "targets.yml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write targets file: %v", err)
	}
	return path
}

func TestResolveTargets(t *testing.T) {
	tempDir := t.TempDir()
	path := writeTargetsFile(t, tempDir, "https://api.example.com")

	store, err := target.LoadFile(path)
	if err != nil {
		t.Fatalf("Failed to load targets file: %v", err)
	}

	t.Run("AllTargetsWhenNoArgs", func(t *testing.T) {
		targets, err := resolveTargets(store, nil)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if len(targets) != 2 {
			t.Fatalf("Expected 2 targets, got %d", len(targets))
		}
		if targets[0].ID != "expo" || targets[1].ID != "fair" {
			t.Errorf("Expected file order [expo fair], got [%s %s]", targets[0].ID, targets[1].ID)
		}
	})

	t.Run("ArgumentOrderPreserved", func(t *testing.T) {
		targets, err := resolveTargets(store, []string{"fair", "expo"})
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if len(targets) != 2 {
			t.Fatalf("Expected 2 targets, got %d", len(targets))
		}
		if targets[0].ID != "fair" || targets[1].ID != "expo" {
			t.Errorf("Expected argument order [fair expo], got [%s %s]", targets[0].ID, targets[1].ID)
		}
	})

	t.Run("UnknownTarget", func(t *testing.T) {
		_, err := resolveTargets(store, []string{"nope"})
		if err == nil {
			t.Fatal("Expected error for unknown target id")
		}
		if !strings.Contains(err.Error(), "unknown target") {
			t.Errorf("Expected unknown target error, got: %v", err)
		}
	})
}

func TestRunHarvestValidation(t *testing.T) {
	t.Run("MissingTargetsFile", func(t *testing.T) {
		viper.Reset()
		defer viper.Reset()

		viper.Set("targets_path", filepath.Join(t.TempDir(), "missing.yml"))
		viper.Set("logging.level", "error")

		cmd := &cobra.Command{}
		cmd.Flags().Bool("show-config", false, "")

		err := runHarvest(cmd, []string{})
		if err == nil {
			t.Fatal("Expected error for missing targets file")
		}
		if !strings.Contains(err.Error(), "failed to load targets") {
			t.Errorf("Expected targets load error, got: %v", err)
		}
	})

	t.Run("InvalidStrategy", func(t *testing.T) {
		viper.Reset()
		defer viper.Reset()

		viper.Set("strategy", "bogus")

		cmd := &cobra.Command{}
		cmd.Flags().Bool("show-config", false, "")

		err := runHarvest(cmd, []string{})
		if err == nil {
			t.Fatal("Expected error for invalid strategy")
		}
		if !strings.Contains(err.Error(), "invalid configuration") {
			t.Errorf("Expected configuration error, got: %v", err)
		}
	})

	t.Run("UnknownTargetArgument", func(t *testing.T) {
		viper.Reset()
		defer viper.Reset()

		tempDir := t.TempDir()
		viper.Set("targets_path", writeTargetsFile(t, tempDir, "https://api.example.com"))
		viper.Set("logging.level", "error")

		cmd := &cobra.Command{}
		cmd.Flags().Bool("show-config", false, "")

		err := runHarvest(cmd, []string{"nope"})
		if err == nil {
			t.Fatal("Expected error for unknown target argument")
		}
		if !strings.Contains(err.Error(), "unknown target") {
			t.Errorf("Expected unknown target error, got: %v", err)
		}
	})

	t.Run("ShowConfigSkipsHarvest", func(t *testing.T) {
		viper.Reset()
		defer viper.Reset()

		// A missing targets file proves show-config returns before loading
		viper.Set("targets_path", filepath.Join(t.TempDir(), "missing.yml"))

		cmd := &cobra.Command{}
		cmd.Flags().Bool("show-config", true, "")

		if err := runHarvest(cmd, []string{}); err != nil {
			t.Errorf("Expected no error from show-config, got: %v", err)
		}
	})
}

func TestRunHarvestEndToEnd(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("page") == "1" {
			fmt.Fprint(w, `{"items":[{"name":"Acme","phone":"111"},{"name":"Globex","phone":"222"}]}`)
			return
		}
		fmt.Fprint(w, `{"items":[]}`)
	}))
	defer server.Close()

	tempDir := t.TempDir()
	outDir := filepath.Join(tempDir, "out")
	statusFile := filepath.Join(tempDir, "status.json")

	// Stale output from a previous run must be replaced, not appended to.
	if err := os.MkdirAll(outDir, 0755); err != nil {
		t.Fatalf("Failed to create output dir: %v", err)
	}
	staleCSV := filepath.Join(outDir, "expo.csv")
	if err := os.WriteFile(staleCSV, []byte("stale,data\n"), 0644); err != nil {
		t.Fatalf("Failed to write stale output: %v", err)
	}

	viper.Reset()
	defer viper.Reset()

	viper.Set("targets_path", writeTargetsFile(t, tempDir, server.URL))
	viper.Set("strategy", "sequential")
	viper.Set("workers", 1)
	viper.Set("empty_page_limit", 2)
	viper.Set("format", "csv")
	viper.Set("output_dir", outDir)
	viper.Set("status_file", statusFile)
	viper.Set("logging.level", "error")
	viper.Set("logging.console", false)

	cmd := &cobra.Command{}
	cmd.Flags().Bool("show-config", false, "")
	cmd.SetContext(context.Background())

	if err := runHarvest(cmd, []string{"expo"}); err != nil {
		t.Fatalf("Expected harvest to succeed, got: %v", err)
	}

	// The CSV output holds the header plus the two mapped records.
	f, err := os.Open(staleCSV)
	if err != nil {
		t.Fatalf("Failed to open output file: %v", err)
	}
	defer func() { _ = f.Close() }()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("Failed to read output CSV: %v", err)
	}
	want := [][]string{
		{"company", "phone"},
		{"Acme", "111"},
		{"Globex", "222"},
	}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("Expected CSV rows %v, got %v", want, rows)
	}

	// The status file carries the final session state.
	data, err := os.ReadFile(statusFile)
	if err != nil {
		t.Fatalf("Failed to read status file: %v", err)
	}
	var status struct {
		Target  string `json:"target"`
		Records int    `json:"records"`
		State   string `json:"state"`
	}
	if err := json.Unmarshal(data, &status); err != nil {
		t.Fatalf("Failed to decode status file: %v", err)
	}
	if status.Target != "expo" {
		t.Errorf("Expected status target expo, got %s", status.Target)
	}
	if status.Records != 2 {
		t.Errorf("Expected 2 records in status, got %d", status.Records)
	}
	if status.State != "end_of_data" {
		t.Errorf("Expected state end_of_data, got %s", status.State)
	}
}
