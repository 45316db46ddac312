package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nexobotics/nova/internal/app"
	"github.com/nexobotics/nova/internal/config"
	"github.com/nexobotics/nova/internal/knowledge"
	"github.com/nexobotics/nova/internal/loader"
	"github.com/nexobotics/nova/internal/log"
)

var (
	ingestDir        string
	ingestURLs       []string
	ingestBuiltin    bool
	ingestRebuild    bool
	ingestCollection string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Load knowledge into the vector store",
	Long: `Ingest loads documents into a knowledge collection: the built-in
company knowledge, .txt files from a directory (chunked on blank lines),
or the readable text of web pages.

Document ids are derived from the source, so re-running the same ingest
updates documents in place. --rebuild drops the collection first.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runIngest(cmd.Context())
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestDir, "dir", "", "directory of .txt files to ingest")
	ingestCmd.Flags().StringArrayVar(&ingestURLs, "url", nil, "web page to ingest (repeatable)")
	ingestCmd.Flags().BoolVar(&ingestBuiltin, "builtin", false, "ingest the built-in company knowledge")
	ingestCmd.Flags().BoolVar(&ingestRebuild, "rebuild", false, "drop the collection before ingesting")
	ingestCmd.Flags().StringVar(&ingestCollection, "collection", "", "target collection (defaults to config)")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(ctx context.Context) error {
	logger := newLogger()

	if ingestDir == "" && len(ingestURLs) == 0 && !ingestBuiltin && !ingestRebuild {
		return fmt.Errorf("nothing to do: pass --builtin, --dir, --url, or --rebuild")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	collection := ingestCollection
	if collection == "" {
		collection = cfg.Collection
	}

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	docs, err := collectDocuments(ctx, logger)
	if err != nil {
		return err
	}

	getPipeline := func(ctx context.Context, name string) (loader.Ingestor, error) {
		return a.Pipelines.Get(ctx, name)
	}
	if err := ingestDocuments(ctx, a.Knowledge.Drop, getPipeline, collection, ingestRebuild, docs, logger); err != nil {
		return err
	}

	col, _, err := a.Knowledge.Ensure(ctx, collection)
	if err == nil {
		if count, countErr := a.Knowledge.Count(ctx, col); countErr == nil {
			logger.Info("ingest complete", "collection", collection, "added", len(docs), "total", count)
			return nil
		}
	}
	logger.Info("ingest complete", "collection", collection, "added", len(docs))
	return nil
}

// ingestDocuments runs the ingest flow against the target collection:
// optionally drop it, construct its pipeline, and add the batch.
//
// The pipeline is constructed even when the batch is empty, so a rebuild
// with no sources still leaves a fresh (and, per config, bootstrap-seeded)
// collection behind instead of nothing.
func ingestDocuments(
	ctx context.Context,
	drop func(context.Context, string) error,
	getPipeline func(context.Context, string) (loader.Ingestor, error),
	collection string,
	rebuild bool,
	docs []knowledge.Document,
	logger log.Logger,
) error {
	if rebuild {
		if err := drop(ctx, collection); err != nil {
			return fmt.Errorf("dropping collection %q: %w", collection, err)
		}
		logger.Info("dropped collection", "collection", collection)
	}

	pipeline, err := getPipeline(ctx, collection)
	if err != nil {
		return fmt.Errorf("initializing pipeline: %w", err)
	}

	if len(docs) == 0 {
		logger.Info("no documents to ingest", "collection", collection)
		return nil
	}

	if err := pipeline.AddDocuments(ctx, docs); err != nil {
		return fmt.Errorf("ingesting documents: %w", err)
	}
	return nil
}

// collectDocuments gathers documents from every requested source.
func collectDocuments(ctx context.Context, logger log.Logger) ([]knowledge.Document, error) {
	var docs []knowledge.Document

	if ingestBuiltin {
		docs = append(docs, loader.Builtin()...)
	}

	l := loader.New(nil, logger)
	if ingestDir != "" {
		fileDocs, err := l.FromDir(ingestDir)
		if err != nil {
			return nil, fmt.Errorf("loading directory: %w", err)
		}
		docs = append(docs, fileDocs...)
	}

	for _, u := range ingestURLs {
		urlDocs, err := l.FromURL(ctx, u)
		if err != nil {
			return nil, fmt.Errorf("loading url: %w", err)
		}
		docs = append(docs, urlDocs...)
	}

	logger.Info("collected documents", "count", len(docs))
	return docs, nil
}
