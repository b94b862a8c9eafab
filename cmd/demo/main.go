// Command demo ingests a small fixed sample set and runs one question
// end to end, printing the answer and which chunks supported it.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/jpcarvalho/askdocs/internal/app"
	"github.com/jpcarvalho/askdocs/internal/config"
	"github.com/jpcarvalho/askdocs/internal/rag"
)

var samples = []rag.Document{
	{
		Source:   "samples/bridges.txt",
		Modality: rag.ModalityText,
		Content:  "The Golden Gate Bridge is a suspension bridge in San Francisco.",
	},
	{
		Source:   "samples/towers.txt",
		Modality: rag.ModalityText,
		Content:  "The Eiffel Tower is a wrought-iron lattice tower in Paris.",
	},
}

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	cfg := config.Load()
	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("failed to build app: %v", err)
	}
	defer a.Close()

	report, err := a.Pipeline.Ingest(ctx, samples)
	if err != nil {
		log.Fatalf("sample ingestion failed: %v", err)
	}
	fmt.Printf("ingested %d sample chunks (%d failed)\n\n", report.Succeeded, report.Failed)

	question := rag.Query{
		Modality: rag.ModalityText,
		Content:  "What bridge is in San Francisco?",
		TopK:     1,
	}

	answer, err := a.Service.Ask(ctx, question)
	if err != nil {
		log.Fatalf("question failed: %v", err)
	}

	fmt.Printf("Q: %s\n", question.Content)
	fmt.Printf("A: %s\n\n", answer.Text)
	fmt.Printf("sources: %v\n", answer.Sources)
	fmt.Printf("used context: %v, elapsed: %v\n", answer.UsedContext, answer.Elapsed)
}
