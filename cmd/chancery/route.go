package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vsh-labs/chancery/internal/catalog"
	"github.com/vsh-labs/chancery/internal/engine"
	"github.com/vsh-labs/chancery/internal/lemma"
	"github.com/vsh-labs/chancery/internal/letter"
	"github.com/vsh-labs/chancery/internal/llm"
	"github.com/vsh-labs/chancery/internal/model"
	"github.com/vsh-labs/chancery/internal/schema"
	"github.com/vsh-labs/chancery/internal/score"
)

func routeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "route <letter.json | directory>",
		Short: "Route letters to departments",
		Long: `Route one extracted letter (or a directory of them) against the
department catalog and emit a decision record per letter.

Examples:
  chancery route letter.json --catalog departments.json
  chancery route letters/ --catalog departments.json --output decisions/
  chancery route letter.json --catalog departments.json --mode llm_assisted --llm-provider ollama`,
		Args: cobra.ExactArgs(1),
		RunE: runRoute,
	}

	// Flags
	cmd.Flags().StringP("catalog", "c", "", "department catalog file (required)")
	cmd.Flags().String("schema", "", "JSON Schema to validate decision records against")
	cmd.Flags().StringP("mode", "m", "heuristic_only", "routing mode (heuristic_only, llm_assisted)")
	cmd.Flags().StringP("output", "o", "", "output file or directory (default: stdout for single letters)")
	cmd.Flags().IntP("workers", "w", 4, "concurrent workers for directory input")
	cmd.Flags().Bool("watch", false, "hot-reload the catalog on file changes")
	cmd.Flags().String("llm-provider", "", "LLM provider (ollama, openai)")
	cmd.Flags().String("llm-url", "", "LLM base URL")
	cmd.Flags().String("llm-model", "", "LLM model name")
	cmd.Flags().String("llm-api-key", "", "LLM API key")
	cmd.Flags().Float64("llm-temperature", 0.1, "LLM sampling temperature")
	cmd.Flags().Int("llm-topk", 5, "candidates offered to the LLM")
	cmd.Flags().Bool("llm-force", false, "escalate every letter regardless of confidence")
	_ = cmd.MarkFlagRequired("catalog")

	// Bind to viper (errors are rare and can be ignored in practice)
	_ = viper.BindPFlag("routing.catalog", cmd.Flags().Lookup("catalog"))
	_ = viper.BindPFlag("routing.schema", cmd.Flags().Lookup("schema"))
	_ = viper.BindPFlag("routing.mode", cmd.Flags().Lookup("mode"))
	_ = viper.BindPFlag("routing.workers", cmd.Flags().Lookup("workers"))
	_ = viper.BindPFlag("routing.watch", cmd.Flags().Lookup("watch"))
	_ = viper.BindPFlag("llm.provider", cmd.Flags().Lookup("llm-provider"))
	_ = viper.BindPFlag("llm.url", cmd.Flags().Lookup("llm-url"))
	_ = viper.BindPFlag("llm.model", cmd.Flags().Lookup("llm-model"))
	_ = viper.BindPFlag("llm.api_key", cmd.Flags().Lookup("llm-api-key"))
	_ = viper.BindPFlag("llm.temperature", cmd.Flags().Lookup("llm-temperature"))
	_ = viper.BindPFlag("llm.topk", cmd.Flags().Lookup("llm-topk"))
	_ = viper.BindPFlag("llm.force", cmd.Flags().Lookup("llm-force"))

	return cmd
}

func runRoute(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	input := args[0]
	output, _ := cmd.Flags().GetString("output")

	eng, cleanup, err := buildEngine(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	info, err := os.Stat(input)
	if err != nil {
		return fmt.Errorf("failed to stat input: %w", err)
	}
	if info.IsDir() {
		return routeDirectory(ctx, eng, input, output)
	}
	return routeFile(ctx, eng, input, output)
}

// buildEngine assembles the routing engine from the flag/config surface.
// The returned cleanup stops the catalog watcher when one was started.
func buildEngine(ctx context.Context) (*engine.Engine, func(), error) {
	cleanup := func() {}

	normalizer := lemma.NewSnowball("russian")
	loader := catalog.NewLoader(normalizer, slog.Default())
	catalogPath := viper.GetString("routing.catalog")

	var provider engine.CatalogProvider
	if viper.GetBool("routing.watch") {
		watcher, err := catalog.NewWatcher(catalogPath, loader, slog.Default())
		if err != nil {
			return nil, cleanup, fmt.Errorf("failed to load catalog: %w", err)
		}
		if err := watcher.Start(ctx); err != nil {
			return nil, cleanup, fmt.Errorf("failed to watch catalog: %w", err)
		}
		cleanup = func() {
			if closeErr := watcher.Close(); closeErr != nil {
				slog.Error("Failed to close catalog watcher", "error", closeErr)
			}
		}
		provider = watcher
	} else {
		loaded, err := loader.Load(catalogPath)
		if err != nil {
			return nil, cleanup, fmt.Errorf("failed to load catalog: %w", err)
		}
		provider = engine.NewStaticCatalog(loaded)
	}

	mode := model.RoutingMode(viper.GetString("routing.mode"))

	var escalator *engine.Escalator
	llmModel := viper.GetString("llm.model")
	if mode == model.ModeLLMAssisted {
		client, err := llm.NewClient(llm.Config{
			Provider:    viper.GetString("llm.provider"),
			BaseURL:     viper.GetString("llm.url"),
			APIKey:      viper.GetString("llm.api_key"),
			Model:       llmModel,
			Temperature: viper.GetFloat64("llm.temperature"),
			Timeout:     90 * time.Second,
			MaxRetries:  2,
			RetryDelay:  500 * time.Millisecond,
		}, slog.Default())
		if err != nil {
			return nil, cleanup, fmt.Errorf("failed to create LLM client: %w", err)
		}
		escalator = engine.NewEscalator(client, engine.EscalatorConfig{
			TopK:  viper.GetInt("llm.topk"),
			Force: viper.GetBool("llm.force"),
		}, slog.Default())
	}

	var validator engine.RecordValidator
	if schemaPath := viper.GetString("routing.schema"); schemaPath != "" {
		compiled, err := schema.NewValidator(schemaPath)
		if err != nil {
			return nil, cleanup, err
		}
		validator = compiled
	}

	eng, err := engine.New(engine.Options{
		Normalizer: normalizer,
		Weights:    scoreWeights(),
		Catalogs:   provider,
		Escalator:  escalator,
		Validator:  validator,
		Mode:       mode,
		ModelName:  llmModel,
		Logger:     slog.Default(),
	})
	if err != nil {
		return nil, cleanup, err
	}
	return eng, cleanup, nil
}

// scoreWeights starts from the defaults and applies any overrides from the
// config file's weights section.
func scoreWeights() score.Weights {
	weights := score.DefaultWeights()
	if viper.IsSet("weights.high_precision") {
		weights.HighPrecision = viper.GetFloat64("weights.high_precision")
	}
	if viper.IsSet("weights.medium_precision") {
		weights.MediumPrecision = viper.GetFloat64("weights.medium_precision")
	}
	if viper.IsSet("weights.structural") {
		weights.Structural = viper.GetFloat64("weights.structural")
	}
	if viper.IsSet("weights.out_of_scope") {
		weights.OutOfScope = viper.GetFloat64("weights.out_of_scope")
	}
	if viper.IsSet("weights.negative_context") {
		weights.NegativeContext = viper.GetFloat64("weights.negative_context")
	}
	if viper.IsSet("weights.score_floor") {
		weights.ScoreFloor = viper.GetFloat64("weights.score_floor")
	}
	return weights
}

func routeFile(ctx context.Context, eng *engine.Engine, input, output string) error {
	doc, err := letter.Load(input)
	if err != nil {
		return err
	}

	record, err := eng.Route(ctx, doc)
	if err != nil {
		return fmt.Errorf("failed to route %s: %w", input, err)
	}

	payload, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal decision record: %w", err)
	}

	if output == "" {
		fmt.Println(string(payload))
		return nil
	}
	if err := os.WriteFile(output, payload, 0o600); err != nil {
		return fmt.Errorf("failed to write decision record: %w", err)
	}
	slog.Info("Decision record written", "path", output)
	return nil
}

func routeDirectory(ctx context.Context, eng *engine.Engine, input, output string) error {
	entries, err := os.ReadDir(input)
	if err != nil {
		return fmt.Errorf("failed to read input directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		files = append(files, filepath.Join(input, entry.Name()))
	}
	if len(files) == 0 {
		return fmt.Errorf("no .json letters found in %s", input)
	}

	if output == "" {
		output = "decisions"
	}
	if err := os.MkdirAll(output, 0o750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	workers := viper.GetInt("routing.workers")
	if workers < 1 {
		workers = 1
	}

	bar := progressbar.NewOptions(len(files),
		progressbar.OptionSetDescription("Routing letters"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionClearOnFinish(),
	)

	jobs := make(chan string)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var failed []string

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				if err := routeOne(ctx, eng, path, output); err != nil {
					slog.Error("Failed to route letter", "path", path, "error", err)
					mu.Lock()
					failed = append(failed, path)
					mu.Unlock()
				}
				_ = bar.Add(1)
			}
		}()
	}

	for _, path := range files {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return ctx.Err()
		case jobs <- path:
		}
	}
	close(jobs)
	wg.Wait()

	slog.Info("Batch routing complete",
		"total", len(files),
		"succeeded", len(files)-len(failed),
		"failed", len(failed))
	if len(failed) > 0 {
		return fmt.Errorf("%d of %d letters failed", len(failed), len(files))
	}
	return nil
}

func routeOne(ctx context.Context, eng *engine.Engine, path, outputDir string) error {
	doc, err := letter.Load(path)
	if err != nil {
		return err
	}

	record, err := eng.Route(ctx, doc)
	if err != nil {
		return err
	}

	payload, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal decision record: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(path), ".json")
	target := filepath.Join(outputDir, base+".decision.json")
	if err := os.WriteFile(target, payload, 0o600); err != nil {
		return fmt.Errorf("failed to write decision record: %w", err)
	}
	return nil
}
