// Copyright 2026 Quest Analytics
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/questanalytics/questa"
	"github.com/questanalytics/questa/ai"
	"github.com/questanalytics/questa/reindex"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "questa",
		Usage: "Document question answering over a local hybrid index",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "ingest",
				Usage:     "Extract, chunk, embed and index documents",
				ArgsUsage: "FILE [FILE...]",
				Action:    ingestCommand,
				Flags: append(engineFlags(),
					&cli.BoolFlag{
						Name:  "clear",
						Usage: "Replace the current index contents instead of appending",
					},
				),
			},
			{
				Name:      "ask",
				Usage:     "Answer a question from the indexed documents",
				ArgsUsage: "QUESTION",
				Action:    askCommand,
				Flags: append(engineFlags(),
					&cli.IntFlag{
						Name:    "top-k",
						Aliases: []string{"k"},
						Usage:   "Number of context chunks to retrieve",
						Value:   5,
					},
					&cli.BoolFlag{
						Name:  "show-context",
						Usage: "Print the retrieved chunks with their scores",
					},
				),
			},
			{
				Name:   "health",
				Usage:  "Probe every configured model and report its state",
				Action: healthCommand,
				Flags:  engineFlags(),
			},
			{
				Name:   "reindex",
				Usage:  "Re-embed every indexed chunk with the configured embedding model",
				Action: reindexCommand,
				Flags: append(engineFlags(),
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of chunks to embed in each batch",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N chunks",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for failed embedding calls",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
				),
			},
			{
				Name:   "watch",
				Usage:  "Watch a directory and ingest documents as they appear",
				Action: watchCommand,
				Flags: append(engineFlags(),
					&cli.StringFlag{
						Name:     "dir",
						Usage:    "Directory to watch for new or changed documents",
						Required: true,
					},
					&cli.DurationFlag{
						Name:  "settle",
						Usage: "How long a file must be quiet before it is ingested",
						Value: 2 * time.Second,
					},
				),
			},
		},
	}
}

// engineFlags are the flags every command needs to open the index and
// reach the AI services.
func engineFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "db",
			Aliases:  []string{"d"},
			Usage:    "Path to the index directory",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "host",
			Usage: "OpenAI-compatible service host URL for embeddings and chat",
			Value: "http://localhost:11434/v1",
		},
		&cli.StringFlag{
			Name:  "embedding-model",
			Usage: "Embedding model name",
			Value: "embeddinggemma",
		},
		&cli.StringSliceFlag{
			Name:  "chat-model",
			Usage: "Chat model in priority order; repeat for fallbacks",
			Value: cli.NewStringSlice("qwen2.5:7b", "qwen2.5:3b"),
		},
		&cli.StringFlag{
			Name:  "ocr-host",
			Usage: "OCR sidecar host URL; empty disables the OCR fallback",
		},
		&cli.DurationFlag{
			Name:  "request-timeout",
			Usage: "Timeout for a single model invocation",
			Value: 60 * time.Second,
		},
	}
}

// openEngine assembles an Engine from the command's flags.
func openEngine(c *cli.Context) (*questa.Engine, error) {
	aiConfig := ai.NewConfig(
		ai.WithHost(c.String("host")),
		ai.WithEmbeddingModel(c.String("embedding-model")),
		ai.WithChatModels(c.StringSlice("chat-model")...),
		ai.WithOCRHost(c.String("ocr-host")),
		ai.WithRequestTimeout(c.Duration("request-timeout")),
	)

	engine, err := questa.NewEngine(c.String("db"), questa.WithAIConfig(aiConfig))
	if err != nil {
		return nil, fmt.Errorf("failed to open engine: %w", err)
	}
	return engine, nil
}

func ingestCommand(c *cli.Context) error {
	paths := c.Args().Slice()
	if len(paths) == 0 {
		return fmt.Errorf("at least one document path is required")
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	report, err := engine.Ingest(context.Background(), paths, c.Bool("clear"))
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	for source, docErr := range report.DocumentErrors {
		fmt.Fprintf(os.Stderr, "skipped %s: %v\n", source, docErr)
	}
	fmt.Printf("Indexed %d chunks (%d already present, %d failed) in generation %d\n",
		report.ChunksWritten, report.ChunksSkipped, report.ChunksFailed, report.Generation)

	if len(report.DocumentErrors) > 0 {
		return fmt.Errorf("%d of %d documents could not be ingested",
			len(report.DocumentErrors), len(paths))
	}
	return nil
}

func askCommand(c *cli.Context) error {
	question := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if question == "" {
		return fmt.Errorf("a question is required")
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	response, err := engine.Ask(context.Background(), question, c.Int("top-k"))
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}

	if c.Bool("show-context") {
		for _, result := range response.Results {
			fmt.Fprintf(os.Stderr, "[%d] fused=%.4f sparse=%.4f dense=%.4f %s\n",
				result.Rank, result.FusedScore, result.SparseScore, result.DenseScore,
				result.Chunk.Metadata["source"])
			fmt.Fprintln(os.Stderr, result.Chunk.Text)
			fmt.Fprintln(os.Stderr)
		}
	}

	fmt.Println(response.Answer.Text)
	fmt.Println()
	fmt.Printf("Answered by %s\n", response.Answer.ModelID)
	if len(response.Answer.Citations) > 0 {
		fmt.Println("Sources:")
		seen := make(map[string]bool)
		for _, citation := range response.Answer.Citations {
			label := citation.Title
			if label == "" {
				label = citation.Source
			}
			if citation.Page > 0 {
				label = fmt.Sprintf("%s (page %d)", label, citation.Page)
			}
			if seen[label] {
				continue
			}
			seen[label] = true
			fmt.Printf("  - %s\n", label)
		}
	}
	return nil
}

func healthCommand(c *cli.Context) error {
	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	fmt.Fprintln(os.Stderr, "Probing models...")
	table := engine.CheckHealth(context.Background())

	fmt.Printf("%-30s %-12s %-10s %s\n", "MODEL", "STATE", "FAILURES", "LATENCY")
	for _, health := range table {
		fmt.Printf("%-30s %-12s %-10d %v\n",
			health.ModelID, health.State, health.ConsecutiveFailures,
			health.LastLatency.Round(time.Millisecond))
	}
	return nil
}

func reindexCommand(c *cli.Context) error {
	config := &reindex.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
	}
	if config.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if config.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if config.MaxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	fmt.Fprintf(os.Stderr, "Index: %s\n", c.String("db"))
	fmt.Fprintf(os.Stderr, "Embedding model: %s\n", c.String("embedding-model"))
	fmt.Fprintln(os.Stderr)

	if err := engine.Reindex(context.Background(), config, os.Stderr); err != nil {
		return fmt.Errorf("reindexing failed: %w", err)
	}
	return nil
}

func watchCommand(c *cli.Context) error {
	dir := c.String("dir")
	settle := c.Duration("settle")

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// A file being copied in fires many Write events; ingest only after
	// it has been quiet for the settle period.
	var mu sync.Mutex
	pending := make(map[string]*time.Timer)

	ingest := func(path string) {
		report, err := engine.Ingest(ctx, []string{path}, false)
		if err != nil {
			slog.Error("ingestion failed", "path", path, "err", err)
			return
		}
		if docErr, ok := report.DocumentErrors[path]; ok {
			slog.Warn("document not ingested", "path", path, "err", docErr)
			return
		}
		slog.Info("document indexed",
			"path", path,
			"written", report.ChunksWritten,
			"skipped", report.ChunksSkipped)
	}

	slog.Info("watching for documents", "dir", dir)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) {
				continue
			}
			if !supportedDocument(event.Name) {
				continue
			}
			path := event.Name
			mu.Lock()
			if timer, exists := pending[path]; exists {
				timer.Stop()
			}
			pending[path] = time.AfterFunc(settle, func() {
				mu.Lock()
				delete(pending, path)
				mu.Unlock()
				ingest(path)
			})
			mu.Unlock()
		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watcher error", "err", watchErr)
		}
	}
}

// supportedDocument reports whether the ingestor can handle the file.
func supportedDocument(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf", ".docx", ".txt", ".md", ".text", ".markdown":
		return true
	}
	return false
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
