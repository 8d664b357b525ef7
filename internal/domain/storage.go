package domain

import "context"

// DedupIndex remembers which asset first produced a content digest.
type DedupIndex interface {
	Lookup(ctx context.Context, digest string) (assetID string, found bool, err error)
	// Remember records digest for assetID unless another asset already owns it,
	// in which case that asset ID is returned with created=false.
	Remember(ctx context.Context, digest string, assetID string) (owner string, created bool, err error)
}

type DedupResult struct {
	Digest      string `json:"digest"`
	Duplicate   bool   `json:"duplicate"`
	DuplicateOf string `json:"duplicateOf,omitempty"`
}
