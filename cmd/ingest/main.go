// Command ingest imports local documents and images into the vector store.
// Text files (.md/.txt/.html/.pdf) are chunked and embedded; image files are
// ingested by reference.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jpcarvalho/askdocs/internal/app"
	"github.com/jpcarvalho/askdocs/internal/config"
	"github.com/jpcarvalho/askdocs/internal/rag"
	"github.com/jpcarvalho/askdocs/internal/source"
)

func main() {
	pathFlag := flag.String("path", "", "directory with files to import")
	withImages := flag.Bool("images", false, "also ingest image files by reference")
	flag.Parse()

	if *pathFlag == "" {
		log.Fatal("required: --path")
	}

	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg := config.Load()
	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("failed to build app: %v", err)
	}
	defer a.Close()

	docs, err := collect(*pathFlag, *withImages)
	if err != nil {
		log.Fatalf("failed to read documents: %v", err)
	}
	if len(docs) == 0 {
		log.Fatal("no ingestable files found")
	}

	report, err := a.Pipeline.Ingest(ctx, docs)
	if err != nil {
		log.Fatalf("ingestion failed: %v", err)
	}

	log.Printf("ingestion done: %d chunks stored, %d failed", report.Succeeded, report.Failed)
	for _, f := range report.Failures {
		log.Printf("  failed %s position=%d: %s", f.Source, f.Position, f.Reason)
	}
	if report.Failed > 0 {
		os.Exit(1)
	}
}

func collect(root string, withImages bool) ([]rag.Document, error) {
	var docs []rag.Document

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		switch {
		case source.IsText(path):
			content, loadErr := source.FromFile(path)
			if loadErr != nil {
				return loadErr
			}
			if content == "" {
				return nil
			}
			docs = append(docs, rag.Document{
				Source:   path,
				Modality: rag.ModalityText,
				Content:  content,
			})

		case withImages && source.IsImage(path):
			docs = append(docs, rag.Document{
				Source:   path,
				Modality: rag.ModalityImage,
				Content:  path,
			})
		}
		return nil
	})
	return docs, err
}
