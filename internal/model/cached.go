package model

import "rss_glue/internal/media"

// Cached is a reference whose embedded media points at local copies.
type Cached struct {
	Ref
	// Media maps original media URLs to their cached URLs.
	Media map[string]string
}

// CachedDoc is the persisted form of a Cached item.
type CachedDoc struct {
	RefDoc
	Media  map[string]string `json:"media,omitempty"`
	Failed []string          `json:"failed,omitempty"`
}

func (c Cached) Render() string {
	return media.Rewrite(c.Ref.Render(), c.OriginURL, c.Media)
}
