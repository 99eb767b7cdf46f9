package storage

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"rss_glue/internal/model"
)

// LRU is a read-through cache of recently read documents in front of
// another Cache. Key listings always go to the underlying cache.
type LRU struct {
	Cache
	docs *lru.Cache[model.Key, model.Document]
}

// NewLRU wraps inner with an in-memory cache holding up to size documents.
func NewLRU(inner Cache, size int) (*LRU, error) {
	docs, err := lru.New[model.Key, model.Document](size)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}
	return &LRU{Cache: inner, docs: docs}, nil
}

// Get serves from memory when possible. Absent keys are not remembered.
func (c *LRU) Get(ctx context.Context, namespace, key string) (model.Document, bool, error) {
	k := model.Key{Namespace: namespace, ID: key}
	if doc, ok := c.docs.Get(k); ok {
		return doc, true, nil
	}
	doc, ok, err := c.Cache.Get(ctx, namespace, key)
	if err != nil || !ok {
		return doc, ok, err
	}
	c.docs.Add(k, doc)
	return doc, true, nil
}

// Set writes through and invalidates the remembered copy.
func (c *LRU) Set(ctx context.Context, namespace, key string, doc model.Document) error {
	c.docs.Remove(model.Key{Namespace: namespace, ID: key})
	return c.Cache.Set(ctx, namespace, key, doc)
}

// Delete writes through and invalidates the remembered copy.
func (c *LRU) Delete(ctx context.Context, namespace, key string) error {
	c.docs.Remove(model.Key{Namespace: namespace, ID: key})
	return c.Cache.Delete(ctx, namespace, key)
}
