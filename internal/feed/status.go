package feed

import (
	"context"
	"fmt"
	"time"
)

// Status summarizes a feed for operators.
type Status struct {
	Namespace   string
	Title       string
	Locked      bool
	LastUpdated time.Time
	Next        time.Time
	Due         bool
}

// Describe collects f's operator-facing status without updating it.
func Describe(ctx context.Context, f Feed) (Status, error) {
	st := Status{Namespace: f.Namespace(), Title: f.Title()}
	var err error
	if st.Locked, err = f.Locked(ctx); err != nil {
		return st, fmt.Errorf("read lock: %w", err)
	}
	if st.LastUpdated, err = f.LastUpdated(ctx); err != nil {
		return st, fmt.Errorf("read last updated: %w", err)
	}
	if st.Next, st.Due, err = f.NextUpdate(ctx, false); err != nil {
		return st, fmt.Errorf("read next update: %w", err)
	}
	return st, nil
}
