// Command eval-client runs every test case of an experiment against a
// running web API and prints the per-model summary.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/wzyjerry/llm-arena/internal/client"
	"github.com/wzyjerry/llm-arena/internal/model"
	"github.com/wzyjerry/llm-arena/internal/pkg/config"
	"github.com/wzyjerry/llm-arena/internal/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	baseURL := flag.String("url", "", "web API base URL (default from config)")
	experimentID := flag.String("experiment", "", "experiment id to run")
	workers := flag.Int("workers", 0, "concurrent test cases (default from config)")
	flag.Parse()

	if *experimentID == "" {
		fmt.Fprintln(os.Stderr, "usage: eval-client -experiment <id> [-url http://host:port] [-workers n]")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.Output); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	if *baseURL == "" {
		host := cfg.WebService.Host
		if host == "" || host == "0.0.0.0" {
			host = "127.0.0.1"
		}
		*baseURL = fmt.Sprintf("http://%s:%d", host, cfg.WebService.Port)
	}
	if *workers <= 0 {
		*workers = cfg.Evaluation.BulkWorkers
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := client.New(*baseURL, nil)
	runner := client.NewBulkRunner(c, *workers)
	report, err := runner.Run(ctx, *experimentID, func(done, total int) {
		fmt.Printf("\r%d/%d test cases", done, total)
	})
	fmt.Println()
	if err != nil {
		zap.L().Fatal("Bulk run failed", zap.Error(err))
	}

	fmt.Printf("Test cases: %d, results stored: %d, failed requests: %d, model errors: %d\n",
		report.TestCases, report.Persisted, report.Failed, report.ModelErrors)

	summary, err := c.Summary(ctx, *experimentID)
	if err != nil {
		zap.L().Fatal("Failed to load summary", zap.Error(err))
	}
	printSummary(summary)
}

func printSummary(summary []model.ModelSummary) {
	for _, s := range summary {
		fmt.Printf("\n%s  %d/%d successful\n", s.Model, s.SuccessfulTests, s.TotalTests)
		metrics := make([]string, 0, len(s.Averages))
		for m := range s.Averages {
			metrics = append(metrics, string(m))
		}
		sort.Strings(metrics)
		for _, m := range metrics {
			fmt.Printf("  %-18s %.3f\n", m, s.Averages[model.MetricKind(m)])
		}
	}
}
