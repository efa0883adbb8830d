package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Lengi96/ai-qa-framework/internal/config"
	"github.com/Lengi96/ai-qa-framework/internal/history"
	"github.com/Lengi96/ai-qa-framework/internal/probe"
	"github.com/Lengi96/ai-qa-framework/internal/provider"
	"github.com/Lengi96/ai-qa-framework/internal/telemetry"
)

// Report is the run output written by -out and -format json.
type Report struct {
	RunID       string         `json:"run_id"`
	Provider    string         `json:"provider"`
	Model       string         `json:"model"`
	GeneratedAt string         `json:"generated_at"`
	Records     []probe.Record `json:"records"`
	Summary     probe.Summary  `json:"summary"`
}

func main() {
	configPath := flag.String("config", envOr("QA_PROBE_CONFIG", ""), "Path to YAML or JSON config file")
	providerName := flag.String("provider", "", "LLM provider: anthropic|openai|google")
	model := flag.String("model", "", "Model ID (defaults per provider)")
	apiKey := flag.String("api-key", "", "API key (prefer the provider env var)")
	baseURL := flag.String("base-url", "", "Override provider base URL")
	timeout := flag.Float64("timeout", 0, "Per-request timeout in seconds")
	maxRetries := flag.Int("max-retries", -1, "Retries after a retryable failure")
	rpm := flag.Int("rpm", 0, "Outbound request rate limit per minute (0=off)")
	categories := flag.String("categories", "", "Comma-separated categories: security,consistency,hallucination,performance,bias,grounding")
	bankPath := flag.String("bank", "", "Path to a custom case bank (YAML or JSON); empty runs the built-in bank")
	workers := flag.Int("workers", 0, "Concurrent test cases")
	format := flag.String("format", "", "Output format: text|json")
	outputPath := flag.String("out", "", "Write full report JSON to this file")
	historyPath := flag.String("history-path", "", "JSON snapshot file for run history")
	historyDSN := flag.String("history-dsn", "", "Postgres DSN for run history")
	otlpEndpoint := flag.String("otlp-endpoint", "", "OTLP gRPC endpoint for traces (empty disables export)")
	strict := flag.Bool("strict", false, "Exit non-zero if any case fails or errors")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(log)

	cfg, err := config.Load(*configPath)
	if err != nil {
		exitWith(err.Error())
	}
	cfg.ApplyEnv()
	applyFlags(cfg, flagValues{
		provider:     *providerName,
		model:        *model,
		apiKey:       *apiKey,
		baseURL:      *baseURL,
		timeout:      *timeout,
		maxRetries:   *maxRetries,
		rpm:          *rpm,
		categories:   *categories,
		bankPath:     *bankPath,
		workers:      *workers,
		format:       *format,
		outputPath:   *outputPath,
		historyPath:  *historyPath,
		historyDSN:   *historyDSN,
		otlpEndpoint: *otlpEndpoint,
		strict:       *strict,
	})
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		exitWith(err.Error())
	}

	ctx := context.Background()

	obs, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		exitWith("telemetry setup: " + err.Error())
	}
	defer obs.Shutdown(context.Background())

	bank := probe.DefaultBank()
	if cfg.BankPath != "" {
		bank, err = probe.LoadBank(cfg.BankPath)
		if err != nil {
			exitWith(err.Error())
		}
	}
	cases := probe.FilterByCategory(bank.Cases, cfg.WantedCategories())
	if len(cases) == 0 {
		exitWith("no test cases match the category filter")
	}

	client, err := provider.New(cfg.Provider)
	if err != nil {
		exitWith(err.Error())
	}
	caller := provider.NewCaller(client, cfg.Provider, obs)
	runner := probe.NewRunner(caller, cfg.Workers, obs, log)

	runID := uuid.NewString()
	log.Info("run started",
		"run_id", runID,
		"provider", cfg.Provider.Provider,
		"model", cfg.Provider.Model,
		"cases", len(cases),
		"workers", cfg.Workers,
	)

	records, err := runner.Run(ctx, cases)
	if err != nil {
		exitWith("run aborted: " + err.Error())
	}
	summary := probe.Summarize(records)

	report := Report{
		RunID:       runID,
		Provider:    string(cfg.Provider.Provider),
		Model:       cfg.Provider.Model,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Records:     records,
		Summary:     summary,
	}

	if store := openStore(ctx, cfg, log); store != nil {
		defer store.Close()
		entries := history.NewEntries(runID, string(cfg.Provider.Provider), cfg.Provider.Model, records)
		if err := store.Append(ctx, entries); err != nil {
			log.Error("history append failed", "error", err)
		}
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "json":
		printJSON(report)
	default:
		printText(report)
	}

	if cfg.OutPath != "" {
		if err := writeReport(cfg.OutPath, report); err != nil {
			exitWith("failed to write report: " + err.Error())
		}
	}

	if cfg.Strict && (summary.Failed > 0 || summary.Errors > 0) {
		os.Exit(1)
	}
}

type flagValues struct {
	provider     string
	model        string
	apiKey       string
	baseURL      string
	timeout      float64
	maxRetries   int
	rpm          int
	categories   string
	bankPath     string
	workers      int
	format       string
	outputPath   string
	historyPath  string
	historyDSN   string
	otlpEndpoint string
	strict       bool
}

func applyFlags(cfg *config.Config, fv flagValues) {
	if fv.provider != "" {
		cfg.Provider.Provider = provider.ID(strings.ToLower(strings.TrimSpace(fv.provider)))
	}
	if fv.model != "" {
		cfg.Provider.Model = fv.model
	}
	if fv.apiKey != "" {
		cfg.Provider.APIKey = fv.apiKey
	}
	if fv.baseURL != "" {
		cfg.Provider.BaseURL = fv.baseURL
	}
	if fv.timeout > 0 {
		cfg.Provider.TimeoutSeconds = fv.timeout
	}
	if fv.maxRetries >= 0 {
		cfg.Provider.MaxRetries = fv.maxRetries
	}
	if fv.rpm > 0 {
		cfg.Provider.RequestsPerMinute = fv.rpm
	}
	if fv.categories != "" {
		cfg.Categories = splitList(fv.categories)
	}
	if fv.bankPath != "" {
		cfg.BankPath = fv.bankPath
	}
	if fv.workers > 0 {
		cfg.Workers = fv.workers
	}
	if fv.format != "" {
		cfg.Format = fv.format
	}
	if fv.outputPath != "" {
		cfg.OutPath = fv.outputPath
	}
	if fv.historyPath != "" {
		cfg.History.Path = fv.historyPath
	}
	if fv.historyDSN != "" {
		cfg.History.DSN = fv.historyDSN
	}
	if fv.otlpEndpoint != "" {
		cfg.Telemetry.OTLPEndpoint = fv.otlpEndpoint
	}
	if fv.strict {
		cfg.Strict = true
	}
}

func openStore(ctx context.Context, cfg *config.Config, log *slog.Logger) history.Store {
	switch {
	case cfg.History.DSN != "":
		store, err := history.NewPgStore(ctx, cfg.History.DSN)
		if err != nil {
			log.Error("history database unavailable, continuing without history", "error", err)
			return nil
		}
		return store
	case cfg.History.Path != "":
		store, err := history.NewMemoryFileStore(cfg.History.Path)
		if err != nil {
			log.Error("history snapshot unavailable, continuing without history", "error", err)
			return nil
		}
		return store
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envOr(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func printText(report Report) {
	fmt.Printf("Run: %s\n", report.RunID)
	fmt.Printf("Provider: %s (%s)\n", report.Provider, report.Model)
	fmt.Printf("Generated: %s\n\n", report.GeneratedAt)

	for _, rec := range report.Records {
		status := "FAIL"
		switch {
		case rec.Error != "":
			status = "ERROR"
		case rec.Verdict.Passed:
			status = "PASS"
		}
		fmt.Printf("[%s] %s (%s, %dms)\n", status, rec.TestID, rec.Category, rec.DurationMS)
		if rec.Error != "" {
			fmt.Printf("  error: %s\n", rec.Error)
			fmt.Println()
			continue
		}
		fmt.Printf("  score %.2f: %s\n", rec.Verdict.Score, rec.Verdict.Reason)
		if len(rec.Verdict.Measured) > 0 {
			measuredJSON, _ := json.Marshal(rec.Verdict.Measured)
			fmt.Printf("  measured: %s\n", measuredJSON)
		}
		fmt.Println()
	}

	fmt.Printf("Totals: pass=%d fail=%d error=%d of %d\n",
		report.Summary.Passed, report.Summary.Failed, report.Summary.Errors, report.Summary.Total)
	for cat, n := range report.Summary.ByCategory {
		fmt.Printf("  failed in %s: %d\n", cat, n)
	}
}

func printJSON(report Report) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		exitWith("failed to encode report JSON: " + err.Error())
	}
	fmt.Println(string(data))
}

func writeReport(path string, report Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Clean(path), data, 0o644)
}

func exitWith(message string) {
	fmt.Fprintln(os.Stderr, "error:", message)
	os.Exit(2)
}
