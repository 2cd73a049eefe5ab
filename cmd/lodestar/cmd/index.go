package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/lodestar-search/lodestar/internal/chunk"
	"github.com/lodestar-search/lodestar/internal/output"
	"github.com/lodestar-search/lodestar/retrieval"
)

// indexOptions holds CLI flags for index.
type indexOptions struct {
	text         string
	id           string
	metadata     []string // key=value pairs
	keywords     []string
	chunkSize    int
	chunkOverlap int
}

func newIndexCmd() *cobra.Command {
	var opts indexOptions

	cmd := &cobra.Command{
		Use:   "index [file...]",
		Short: "Index documents",
		Long: `Index documents into the search index.

Each file becomes one document with its path recorded as metadata source.
With --text, the given text is indexed instead of files. Reading from
stdin is supported via '-'.

With --chunk-size, each document is split into overlapping chunks before
indexing; every chunk records its position and a shared parent uuid in
metadata.

Examples:
  lodestar index notes/*.md
  lodestar index --chunk-size 1500 --chunk-overlap 200 manual.txt
  lodestar index --text "hybrid retrieval combines lexical and dense search"
  cat doc.txt | lodestar index -`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(cmd.Context(), cmd, args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.text, "text", "", "Index the given text instead of files")
	cmd.Flags().StringVar(&opts.id, "id", "", "Document id (single document only, default: generated)")
	cmd.Flags().StringSliceVarP(&opts.metadata, "meta", "m", nil, "Metadata as key=value (repeatable)")
	cmd.Flags().StringSliceVarP(&opts.keywords, "keywords", "k", nil, "Keywords stored in metadata (repeatable)")
	cmd.Flags().IntVar(&opts.chunkSize, "chunk-size", 0, "Split documents into chunks of this many characters (0 disables)")
	cmd.Flags().IntVar(&opts.chunkOverlap, "chunk-overlap", chunk.DefaultChunkOverlap, "Characters of overlap between adjacent chunks")

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, args []string, opts indexOptions) error {
	out := output.New(cmd.OutOrStdout())

	texts, metadatas, err := collectDocuments(cmd.InOrStdin(), args, opts)
	if err != nil {
		return err
	}
	if len(texts) == 0 {
		return fmt.Errorf("nothing to index: pass files, --text, or '-' for stdin")
	}
	if opts.id != "" && len(texts) > 1 {
		return fmt.Errorf("--id requires exactly one document, got %d", len(texts))
	}
	if opts.chunkSize > 0 {
		if opts.id != "" {
			return fmt.Errorf("--id cannot be combined with --chunk-size")
		}
		texts, metadatas = chunkDocuments(texts, metadatas, opts)
	}

	eng, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer eng.close()

	addOpts := []retrieval.AddOption{retrieval.WithMetadatas(metadatas)}
	if opts.id != "" {
		addOpts = append(addOpts, retrieval.WithIDs([]string{opts.id}))
	}

	ids, err := eng.store.AddTexts(ctx, texts, addOpts...)
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	out.Successf("Indexed %d documents into %q", len(ids), eng.store.IndexName())
	for i, id := range ids {
		if source, ok := metadatas[i]["source"].(string); ok && source != "" {
			out.Statusf("", "%s  (%s)", id, source)
		} else {
			out.Status("", id)
		}
	}
	return nil
}

// collectDocuments gathers document texts and metadata from flags, files,
// and stdin.
func collectDocuments(stdin io.Reader, args []string, opts indexOptions) ([]string, []map[string]any, error) {
	base, err := parseKeyValues(opts.metadata)
	if err != nil {
		return nil, nil, err
	}

	newMetadata := func(source string) map[string]any {
		m := make(map[string]any, len(base)+2)
		for k, v := range base {
			m[k] = v
		}
		if source != "" {
			m["source"] = source
		}
		if len(opts.keywords) > 0 {
			m[retrieval.FilterKeywordsKey] = opts.keywords
		}
		return m
	}

	var texts []string
	var metadatas []map[string]any

	if opts.text != "" {
		texts = append(texts, opts.text)
		metadatas = append(metadatas, newMetadata(""))
	}
	for _, arg := range args {
		if arg == "-" {
			data, err := io.ReadAll(stdin)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to read stdin: %w", err)
			}
			texts = append(texts, string(data))
			metadatas = append(metadatas, newMetadata(""))
			continue
		}
		data, err := os.ReadFile(arg)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read %s: %w", arg, err)
		}
		texts = append(texts, string(data))
		metadatas = append(metadatas, newMetadata(arg))
	}
	return texts, metadatas, nil
}

// chunkDocuments splits each document into chunks. Chunks inherit the
// document metadata plus their position and a parent uuid shared across
// the document's chunks.
func chunkDocuments(texts []string, metadatas []map[string]any, opts indexOptions) ([]string, []map[string]any) {
	splitter := chunk.NewSplitter(chunk.Options{
		ChunkSize:    opts.chunkSize,
		ChunkOverlap: opts.chunkOverlap,
	})

	var outTexts []string
	var outMetadatas []map[string]any
	for i, text := range texts {
		parent := uuid.NewString()
		for _, piece := range splitter.Split(text) {
			m := make(map[string]any, len(metadatas[i])+2)
			for k, v := range metadatas[i] {
				m[k] = v
			}
			m["index"] = piece.Index
			m["uuid"] = parent
			outTexts = append(outTexts, piece.Text)
			outMetadatas = append(outMetadatas, m)
		}
	}
	return outTexts, outMetadatas
}
