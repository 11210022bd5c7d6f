package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"indexcheck-go/internal/app"
	"indexcheck-go/internal/config"
	"indexcheck-go/pkg/checker"
	"indexcheck-go/pkg/export"
	"indexcheck-go/pkg/logger"
	"indexcheck-go/pkg/parser"
)

// getEnvOrDefault returns environment variable value or default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	var (
		input      = flag.String("input", getEnvOrDefault("INPUT_FILE", "input.txt"), "File with one URL per line (env: INPUT_FILE)")
		output     = flag.String("output", getEnvOrDefault("OUTPUT_FILE", "output.xlsx"), "Result file (env: OUTPUT_FILE)")
		format     = flag.String("format", getEnvOrDefault("OUTPUT_FORMAT", ""), "Output format: xlsx, csv, pdf, text or json; defaults to the output extension (env: OUTPUT_FORMAT)")
		configPath = flag.String("config", getEnvOrDefault("INDEXCHECK_CONFIG", ""), "Optional configuration file (env: INDEXCHECK_CONFIG)")
		delay      = flag.String("delay", getEnvOrDefault("BATCH_DELAY", ""), "Minimum delay between lookups, e.g. 1s (env: BATCH_DELAY)")
		policy     = flag.String("policy", getEnvOrDefault("MATCH_POLICY", ""), "URL matching policy: exact or host (env: MATCH_POLICY)")
		debug      = flag.Bool("debug", os.Getenv("DEBUG") == "true", "Enable debug logging (env: DEBUG)")
		help       = flag.Bool("help", false, "Show help message")
	)
	flag.Parse()

	if *help {
		printUsage()
		return
	}

	if err := run(*input, *output, *format, *configPath, *delay, *policy, *debug); err != nil {
		logger.GetLogger().WithError(err).Error("Index check failed")
		os.Exit(1)
	}
}

// Local runs are not bound by the bot's batch cap.
const (
	cliMaxURLs  = 1 << 20
	cliMaxBytes = 256 << 20
)

func run(input, output, format, configPath, delay, policy string, debug bool) error {
	opts := []config.ManagerOption{
		config.WithOverride("telegram.enabled", false),
		config.WithOverride("server.enabled", false),
		config.WithOverride("batch.max_urls", cliMaxURLs),
	}
	if delay != "" {
		opts = append(opts, config.WithOverride("batch.delay", delay))
	}
	if policy != "" {
		opts = append(opts, config.WithOverride("matching.policy", policy))
	}
	if debug {
		opts = append(opts, config.WithOverride("logger.level", "debug"))
	}

	cfg, err := config.NewManager(opts...).Load(configPath)
	if err != nil {
		return err
	}
	logger.SetLogger(logger.New(cfg.Logger))
	log := logger.GetLogger().WithField("component", "cli")

	if format == "" {
		f, err := export.FormatFromFilename(output)
		if err != nil {
			return fmt.Errorf("cannot infer format from %s: %w", output, err)
		}
		format = string(f)
	}
	renderer, err := export.ForFormat(format)
	if err != nil {
		return err
	}

	file, err := os.Open(input)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	p := parser.NewTXTParser()
	p.SetLimits(cliMaxURLs, cliMaxBytes)
	urls, err := p.Parse(context.Background(), file)
	file.Close()
	if err != nil {
		return fmt.Errorf("read %s: %w", input, err)
	}

	a, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.WithFields(map[string]interface{}{
		"input": input,
		"urls":  len(urls),
	}).Info("Checking URLs")

	batch, err := a.Service.Check(ctx, urls, func(done, total int, result checker.LookupResult) {
		log.Info(fmt.Sprintf("%s => %s", result.URL, result.Display()))
	})
	if err != nil {
		return err
	}

	data, err := renderer.Render(batch.Results)
	if err != nil {
		return err
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	log.WithFields(map[string]interface{}{
		"output":      output,
		"indexed":     batch.Summary.Indexed,
		"not_indexed": batch.Summary.NotIndexed,
		"errors":      batch.Summary.Unknown,
		"cancelled":   batch.Cancelled,
		"duration":    batch.Duration.String(),
	}).Info("Results written")
	return nil
}

func printUsage() {
	fmt.Println("indexcheck - check whether URLs are in the search index")
	fmt.Println("")
	fmt.Println("USAGE:")
	fmt.Println("    ./indexcheck [-input input.txt] [-output output.xlsx] [OPTIONS]")
	fmt.Println("")
	fmt.Println("OPTIONS:")
	flag.PrintDefaults()
	fmt.Println("")
	fmt.Println("CREDENTIALS:")
	fmt.Println("    INDEXCHECK_API_KEYS    Comma-separated search API keys")
	fmt.Println("    SERPAPI_KEY_1..N       One SerpAPI key per variable")
	fmt.Println("")
	fmt.Println("EXAMPLES:")
	fmt.Println("    export SERPAPI_KEY_1=...")
	fmt.Println("    ./indexcheck -input urls.txt -output results.csv -delay 2s")
}
