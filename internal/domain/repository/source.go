package repository

import "context"

// FetchResult describes a fetched source tree.
type FetchResult struct {
	Dir      string
	Revision string
}

// SourceFetcher clones or updates a remote source into a local directory.
// Timeouts come from ctx.
type SourceFetcher interface {
	// Fetch clones location into dir, or updates dir when it already holds a checkout.
	Fetch(ctx context.Context, location, dir string) (FetchResult, error)

	// RemoteRevision returns the revision the remote default branch points to.
	RemoteRevision(ctx context.Context, location string) (string, error)
}

// BuildRequest describes one image build.
type BuildRequest struct {
	ContextDir string
	Dockerfile string
	Tag        string
}

// ImageBuilder builds an image from a source tree and returns its reference.
type ImageBuilder interface {
	Build(ctx context.Context, req BuildRequest) (string, error)
}
