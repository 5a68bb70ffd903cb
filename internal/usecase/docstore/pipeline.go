package docstore

import (
	"context"
	"fmt"
	"maps"
	"strings"

	"github.com/tmc/langchaingo/documentloaders"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/textsplitter"

	"github.com/viola622/Flowise/internal/domain"
)

// MetadataSource is the metadata key naming where a document was loaded from.
const MetadataSource = "source"

// loadDocuments runs the loader component against the store folder and returns raw documents.
func (s *Service) loadDocuments(ctx context.Context, storeName string, req ProcessRequest) ([]schema.Document, error) {
	extra, err := configObject(req.LoaderConfig, "metadata")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidSchema, err)
	}

	var (
		loader documentloaders.Loader
		source string
	)
	switch req.LoaderID {
	case LoaderPlainText:
		text := configString(req.LoaderConfig, "text")
		if strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("%w: text is required", domain.ErrInvalidSchema)
		}
		loader = documentloaders.NewText(strings.NewReader(text))
		source = "None"
	case LoaderTextFile, LoaderCSVFile, LoaderHTMLFile:
		fileName := configString(req.LoaderConfig, "fileName")
		if fileName == "" {
			return nil, fmt.Errorf("%w: fileName is required", domain.ErrInvalidSchema)
		}
		f, err := s.folders.OpenFile(storeName, fileName)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", fileName, err)
		}
		defer func() { _ = f.Close() }()

		switch req.LoaderID {
		case LoaderTextFile:
			loader = documentloaders.NewText(f)
		case LoaderCSVFile:
			columns, err := configStrings(req.LoaderConfig, "columns")
			if err != nil {
				return nil, fmt.Errorf("%w: %w", domain.ErrInvalidSchema, err)
			}
			loader = documentloaders.NewCSV(f, columns...)
		default:
			loader = documentloaders.NewHTML(f)
		}
		source = fileName
	default:
		return nil, fmt.Errorf("loader %q: %w", req.LoaderID, domain.ErrUnknownComponent)
	}

	docs, err := loader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", req.LoaderID, err)
	}
	for i := range docs {
		meta := make(map[string]any, len(docs[i].Metadata)+len(extra)+1)
		maps.Copy(meta, docs[i].Metadata)
		maps.Copy(meta, extra)
		if _, ok := meta[MetadataSource]; !ok {
			meta[MetadataSource] = source
		}
		docs[i].Metadata = meta
	}
	return docs, nil
}

// newSplitter builds the configured splitter. An empty id means no splitting.
func newSplitter(id string, cfg map[string]any) (textsplitter.TextSplitter, error) {
	if id == "" {
		return nil, nil
	}
	if _, ok := findComponent(splitterComponents, id); !ok {
		return nil, fmt.Errorf("splitter %q: %w", id, domain.ErrUnknownComponent)
	}

	size, err := configInt(cfg, "chunkSize", DefaultChunkSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidSchema, err)
	}
	overlap, err := configInt(cfg, "chunkOverlap", DefaultChunkOverlap)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidSchema, err)
	}
	if size <= 0 {
		return nil, fmt.Errorf("%w: chunkSize must be positive", domain.ErrInvalidSchema)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: chunkOverlap must be in [0, chunkSize)", domain.ErrInvalidSchema)
	}
	opts := []textsplitter.Option{
		textsplitter.WithChunkSize(size),
		textsplitter.WithChunkOverlap(overlap),
	}

	if id == SplitterMarkdown {
		return textsplitter.NewMarkdownTextSplitter(opts...), nil
	}
	separators, err := configStrings(cfg, "separators")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidSchema, err)
	}
	if len(separators) > 0 {
		opts = append(opts, textsplitter.WithSeparators(separators))
	}
	return textsplitter.NewRecursiveCharacter(opts...), nil
}

// runPipeline loads and optionally splits, dropping blank chunks.
func (s *Service) runPipeline(ctx context.Context, storeName string, req ProcessRequest) ([]schema.Document, error) {
	if _, ok := findComponent(loaderComponents, req.LoaderID); !ok {
		return nil, fmt.Errorf("loader %q: %w", req.LoaderID, domain.ErrUnknownComponent)
	}
	splitter, err := newSplitter(req.SplitterID, req.SplitterConfig)
	if err != nil {
		return nil, err
	}
	docs, err := s.loadDocuments(ctx, storeName, req)
	if err != nil {
		return nil, err
	}
	if splitter != nil {
		docs, err = textsplitter.SplitDocuments(splitter, docs)
		if err != nil {
			return nil, fmt.Errorf("split documents: %w", err)
		}
	}

	out := docs[:0]
	for _, d := range docs {
		if strings.TrimSpace(d.PageContent) != "" {
			out = append(out, d)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: loader produced no content", domain.ErrInvalidSchema)
	}
	return out, nil
}
