package domain

import "errors"

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists signals a duplicate resource.
	ErrAlreadyExists = errors.New("already exists")
	// ErrInvalidSchema signals an invalid request or configuration shape.
	ErrInvalidSchema = errors.New("invalid schema")
	// ErrLoaderNotFound signals a missing loader inside a document store.
	ErrLoaderNotFound = errors.New("loader not found")
	// ErrChunkNotFound signals a missing chunk.
	ErrChunkNotFound = errors.New("chunk not found")
	// ErrUnknownComponent signals an unregistered loader or splitter name.
	ErrUnknownComponent = errors.New("unknown component")

	// ErrRateLimited signals a rate limit hit.
	ErrRateLimited = errors.New("rate limited")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrSearchIndexError signals a search index failure.
	ErrSearchIndexError = errors.New("search index error")
	// ErrNotImplemented signals an unimplemented feature.
	ErrNotImplemented = errors.New("not implemented")
)
