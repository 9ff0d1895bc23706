package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/nao1215/bankrotscan/internal/config"
	"github.com/nao1215/bankrotscan/internal/log"
	"github.com/nao1215/bankrotscan/internal/model"
	"github.com/nao1215/bankrotscan/internal/registry"
	"github.com/nao1215/bankrotscan/internal/report"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), ".bankrotscan")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestNewCollectCmd(t *testing.T) {
	t.Parallel()

	cmd := NewCollectCmd()
	if cmd.Use != "collect" {
		t.Errorf("expected use 'collect', got %q", cmd.Use)
	}

	flags := []struct {
		name      string
		shorthand string
		defValue  string
	}{
		{"target", "n", "50"},
		{"page-size", "", "15"},
		{"pace", "", "1.5s"},
		{"output", "o", config.DefaultOutput},
		{"kinds", "", "[legal,individual]"},
		{"timeout", "t", config.DefaultTimeout.String()},
		{"attempts", "", "4"},
		{"proxy", "", ""},
		{"kind-concurrency", "", "1"},
		{"config", "c", ""},
		{"env-file", "", ""},
		{"no-db", "", "false"},
		{"json", "j", "false"},
		{"markdown", "m", "false"},
		{"report", "r", ""},
	}
	for _, tt := range flags {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			flag := cmd.Flags().Lookup(tt.name)
			if flag == nil {
				t.Fatalf("expected %s flag", tt.name)
			}
			if flag.Shorthand != tt.shorthand {
				t.Errorf("shorthand = %q, want %q", flag.Shorthand, tt.shorthand)
			}
			if flag.DefValue != tt.defValue {
				t.Errorf("default = %q, want %q", flag.DefValue, tt.defValue)
			}
		})
	}
}

func TestBuildConfig(t *testing.T) {
	t.Parallel()

	configPath := writeConfig(t, "target: 3\npageSize: 5\noutput: from-file.xlsx\nkinds: [legal]\n")
	envPath := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(envPath, []byte("BANKROTSCAN_ATTEMPTS=5\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Run("file and env values", func(t *testing.T) {
		t.Parallel()

		cmd := NewCollectCmd()
		if err := cmd.ParseFlags([]string{"--config", configPath, "--env-file", envPath}); err != nil {
			t.Fatal(err)
		}
		cfg, err := buildConfig(cmd)
		if err != nil {
			t.Fatalf("buildConfig() error = %v", err)
		}
		if cfg.Target != 3 || cfg.PageSize != 5 || cfg.Output != "from-file.xlsx" {
			t.Errorf("file values not applied: %+v", cfg)
		}
		if len(cfg.Kinds) != 1 || cfg.Kinds[0] != model.KindLegal {
			t.Errorf("Kinds = %v, want [legal]", cfg.Kinds)
		}
		if os.Getenv("BANKROTSCAN_ATTEMPTS") == "" && cfg.MaxAttempts != 5 {
			t.Errorf("MaxAttempts = %d, want 5 from env file", cfg.MaxAttempts)
		}
		if !cfg.SaveToDB {
			t.Error("expected SaveToDB by default")
		}
	})

	t.Run("explicit flags win", func(t *testing.T) {
		t.Parallel()

		cmd := NewCollectCmd()
		err := cmd.ParseFlags([]string{
			"--config", configPath, "--env-file", envPath,
			"-n", "7", "--kinds", "individual", "--pace", "0s", "--attempts", "1",
			"--no-db", "-j", "-r", "out/report.json",
		})
		if err != nil {
			t.Fatal(err)
		}
		cfg, err := buildConfig(cmd)
		if err != nil {
			t.Fatalf("buildConfig() error = %v", err)
		}
		if cfg.Target != 7 || cfg.Pace != 0 || cfg.MaxAttempts != 1 {
			t.Errorf("flags not applied: %+v", cfg)
		}
		if cfg.PageSize != 5 {
			t.Errorf("PageSize = %d, unset flag must keep the file value", cfg.PageSize)
		}
		if len(cfg.Kinds) != 1 || cfg.Kinds[0] != model.KindIndividual {
			t.Errorf("Kinds = %v, want [individual]", cfg.Kinds)
		}
		if cfg.SaveToDB || !cfg.JSONReport || cfg.ReportFile != "out/report.json" {
			t.Errorf("output flags not applied: %+v", cfg)
		}
	})

	t.Run("unknown kind", func(t *testing.T) {
		t.Parallel()

		cmd := NewCollectCmd()
		if err := cmd.ParseFlags([]string{"--config", configPath, "--env-file", envPath, "--kinds", "trust"}); err != nil {
			t.Fatal(err)
		}
		if _, err := buildConfig(cmd); err == nil {
			t.Error("expected error for unknown kind")
		}
	})

	t.Run("missing config file", func(t *testing.T) {
		t.Parallel()

		cmd := NewCollectCmd()
		if err := cmd.ParseFlags([]string{"--config", filepath.Join(t.TempDir(), "absent.yaml")}); err != nil {
			t.Fatal(err)
		}
		if _, err := buildConfig(cmd); err == nil {
			t.Error("expected error for missing config file")
		}
	})
}

// registryServer emulates the list and detail resources of the registry
// with one company and one person.
func registryServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/bankrupts", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html></html>"))
	})
	page := func(items string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			data := items
			if r.URL.Query().Get("offset") != "0" {
				data = ""
			}
			writeJSON(w, `{"pageData":[`+data+`]}`)
		}
	}
	mux.HandleFunc("/list/cmpbankrupts", page(`{
		"guid": "c1",
		"name": "ООО \"РОМАШКА\"",
		"inn": "7700000001",
		"ogrn": "1027700000001",
		"region": "г. Москва",
		"lastLegalCase": {
			"number": "А40-1/2024",
			"arbitrManagerFio": "Петров Петр Петрович",
			"status": {"code": "Конкурсное производство", "description": "Признан банкротом"}
		}
	}`))
	mux.HandleFunc("/list/prsnbankrupts", page(`{
		"guid": "p1",
		"fio": "Иванов Иван Иванович",
		"inn": "770000000002",
		"lastLegalCase": {"number": "А40-2/2024"}
	}`))
	mux.HandleFunc("/detail/companies/c1", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, `{"fullName": "ООО \"РОМАШКА\"", "kpp": "770001001", "dateReg": "2002-07-01T00:00:00"}`)
	})
	mux.HandleFunc("/detail/biddings", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, `{"pageData": []}`)
	})
	mux.HandleFunc("/detail/persons/p1", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, `{"birthdateBankruptcy": "1980-01-02T00:00:00", "address": "г. Москва"}`)
	})
	mux.HandleFunc("/detail/", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, `{}`)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func writeJSON(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(body))
}

func testConfig(t *testing.T, serverURL string) *config.Config {
	t.Helper()

	dir := t.TempDir()
	cfg := config.NewConfig()
	cfg.Target = 5
	cfg.Pace = 0
	cfg.MaxAttempts = 1
	cfg.BaseBackoff = 0
	cfg.MaxJitter = 0
	cfg.Timeout = 5 * time.Second
	cfg.Output = filepath.Join(dir, "out.xlsx")
	cfg.DBDir = filepath.Join(dir, "db")
	cfg.JSONReport = true
	cfg.Endpoints = registry.Endpoints{
		ListBase:    serverURL + "/list",
		ListReferer: serverURL + "/bankrupts",
		DetailBase:  serverURL + "/detail",
		SiteBase:    "https://fedresurs.ru",
	}
	return cfg
}

func decodeReport(t *testing.T, data []byte) report.JSONReport {
	t.Helper()

	var rep report.JSONReport
	if err := json.Unmarshal(data, &rep); err != nil {
		t.Fatalf("invalid JSON report: %v\n%s", err, data)
	}
	return rep
}

func TestRunCollect(t *testing.T) {
	t.Parallel()

	server := registryServer(t)
	cfg := testConfig(t, server.URL)
	cfg.ReportFile = filepath.Join(t.TempDir(), "reports", "run.json")

	var out bytes.Buffer
	if err := runCollect(context.Background(), cfg, nil, log.Discard(), &out); err != nil {
		t.Fatalf("runCollect() error = %v", err)
	}

	rep := decodeReport(t, out.Bytes())
	if rep.Status != "complete" || rep.Added != 2 || rep.Skipped != 0 {
		t.Errorf("first run report = status %s, added %d, skipped %d", rep.Status, rep.Added, rep.Skipped)
	}
	saved, err := os.ReadFile(cfg.ReportFile)
	if err != nil {
		t.Fatalf("report file not written: %v", err)
	}
	if !bytes.Equal(saved, out.Bytes()) {
		t.Error("report file differs from stdout report")
	}

	f, err := excelize.OpenFile(cfg.Output)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	legalRows, err := f.GetRows(model.SheetLegal)
	if err != nil {
		t.Fatal(err)
	}
	personRows, err := f.GetRows(model.SheetIndividual)
	if err != nil {
		t.Fatal(err)
	}
	_ = f.Close()

	if len(legalRows) != 2 || len(personRows) != 2 {
		t.Fatalf("rows = %d legal, %d individual, want 2 each", len(legalRows), len(personRows))
	}
	if got := legalRows[1][len(legalRows[1])-1]; got != "https://fedresurs.ru/company/c1" {
		t.Errorf("legal key = %q", got)
	}
	if !strings.Contains(legalRows[1][0], "РОМАШКА") {
		t.Errorf("legal name = %q", legalRows[1][0])
	}
	if got := personRows[1][len(personRows[1])-1]; got != "https://fedresurs.ru/person/p1" {
		t.Errorf("individual key = %q", got)
	}

	t.Run("second run skips known records", func(t *testing.T) {
		var out bytes.Buffer
		if err := runCollect(context.Background(), cfg, nil, log.Discard(), &out); err != nil {
			t.Fatalf("second runCollect() error = %v", err)
		}
		rep := decodeReport(t, out.Bytes())
		if rep.Added != 0 || rep.Skipped != 2 {
			t.Errorf("second run added %d, skipped %d, want 0 and 2", rep.Added, rep.Skipped)
		}

		var history bytes.Buffer
		if err := runHistory(context.Background(), historyOptions{dbDir: cfg.DBDir, limit: 10, records: true, json: true}, &history); err != nil {
			t.Fatalf("runHistory() error = %v", err)
		}
		var got report.History
		if err := json.Unmarshal(history.Bytes(), &got); err != nil {
			t.Fatalf("invalid history JSON: %v", err)
		}
		if len(got.Runs) != 2 {
			t.Errorf("ledger runs = %d, want 2", len(got.Runs))
		}
		if got.Totals[model.KindLegal].Records != 1 || got.Totals[model.KindIndividual].Records != 1 {
			t.Errorf("ledger totals = %+v", got.Totals)
		}
	})
}

func TestRunCollect_StopBeforeStart(t *testing.T) {
	t.Parallel()

	server := registryServer(t)
	cfg := testConfig(t, server.URL)
	cfg.SaveToDB = false

	stop := make(chan struct{})
	close(stop)

	var out bytes.Buffer
	if err := runCollect(context.Background(), cfg, stop, log.Discard(), &out); err != nil {
		t.Fatalf("runCollect() error = %v", err)
	}
	rep := decodeReport(t, out.Bytes())
	if rep.Status != "interrupted" || rep.Added != 0 {
		t.Errorf("report = status %s, added %d", rep.Status, rep.Added)
	}
	if _, err := os.Stat(cfg.DBDir); !os.IsNotExist(err) {
		t.Error("ledger must not be created with SaveToDB disabled")
	}
}

func TestRunCollect_PersistFailure(t *testing.T) {
	t.Parallel()

	server := registryServer(t)
	cfg := testConfig(t, server.URL)
	cfg.Output = t.TempDir() // a directory is not a workbook

	var out bytes.Buffer
	if err := runCollect(context.Background(), cfg, nil, log.Discard(), &out); err == nil {
		t.Fatal("expected persist error")
	}
	rep := decodeReport(t, out.Bytes())
	if rep.Status != "failed" {
		t.Errorf("status = %s, want failed", rep.Status)
	}

	var history bytes.Buffer
	if err := runHistory(context.Background(), historyOptions{dbDir: cfg.DBDir, json: true}, &history); err != nil {
		t.Fatalf("runHistory() error = %v", err)
	}
	if !strings.Contains(history.String(), `"status": "failed"`) {
		t.Errorf("failed run not recorded in ledger:\n%s", history.String())
	}
}

func TestOutputReport_Markdown(t *testing.T) {
	t.Parallel()

	cfg := config.NewConfig()
	cfg.MarkdownReport = true

	run := model.NewRun("out.xlsx")
	run.StatsFor(model.KindLegal).Added = 3
	run.Finish()

	var out bytes.Buffer
	if err := outputReport(cfg, run, &out); err != nil {
		t.Fatalf("outputReport() error = %v", err)
	}
	if !strings.HasPrefix(out.String(), "# ") {
		t.Errorf("expected Markdown heading, got:\n%s", out.String())
	}
}
