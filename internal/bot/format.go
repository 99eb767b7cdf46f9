package bot

import (
	"fmt"
	"strings"
	"time"

	"rss_glue/internal/feed"
	"rss_glue/internal/model"
	"rss_glue/internal/scheduler"
)

const lockMarker = "🔒"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.UTC().Format("2006-01-02 15:04 UTC")
}

// FormatNext describes when a feed will next update on its own.
func FormatNext(st feed.Status) string {
	switch {
	case st.Locked:
		return "locked"
	case st.Due:
		return "due now"
	case st.Next.IsZero():
		return "manual"
	default:
		return formatTime(st.Next)
	}
}

// FormatFeedList formats feed statuses for display.
func FormatFeedList(statuses []feed.Status) string {
	if len(statuses) == 0 {
		return "No feeds configured."
	}
	var b strings.Builder
	b.WriteString("Feeds:\n")
	for _, st := range statuses {
		marker := ""
		if st.Locked {
			marker = lockMarker + " "
		}
		fmt.Fprintf(&b, "\n%s%s  %s\n", marker, st.Namespace, st.Title)
		fmt.Fprintf(&b, "   updated %s, next %s\n", formatTime(st.LastUpdated), FormatNext(st))
	}
	return b.String()
}

// FormatFeedInfo formats detailed information about a single feed.
func FormatFeedInfo(st feed.Status, sources []string) string {
	var b strings.Builder
	if st.Locked {
		b.WriteString(lockMarker + " ")
	}
	fmt.Fprintf(&b, "%s\n", st.Namespace)
	fmt.Fprintf(&b, "Title: %s\n", st.Title)
	if len(sources) > 0 {
		fmt.Fprintf(&b, "Sources: %s\n", strings.Join(sources, ", "))
	}
	fmt.Fprintf(&b, "Last updated: %s\n", formatTime(st.LastUpdated))
	fmt.Fprintf(&b, "Next update: %s\n", FormatNext(st))
	return b.String()
}

// FormatPosts formats the newest posts of a feed.
func FormatPosts(ns string, posts []model.Item) string {
	if len(posts) == 0 {
		return fmt.Sprintf("No posts in %s.", ns)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Newest posts in %s:\n", ns)
	for i, p := range posts {
		info := p.Info()
		fmt.Fprintf(&b, "\n%d. %s\n", i+1, info.Title)
		fmt.Fprintf(&b, "   %s\n", formatTime(info.PostedTime))
		if info.OriginURL != "" {
			fmt.Fprintf(&b, "   %s\n", info.OriginURL)
		}
	}
	return b.String()
}

// FormatOutcome formats the result of a forced update.
func FormatOutcome(o scheduler.Outcome) string {
	switch o.Status {
	case scheduler.StatusFailed:
		return fmt.Sprintf("%s %s failed and is now locked: %v", lockMarker, o.Namespace, o.Err)
	case scheduler.StatusUpdated:
		return fmt.Sprintf("%s updated in %s.", o.Namespace, o.Duration.Round(time.Millisecond))
	case scheduler.StatusUnchanged:
		return fmt.Sprintf("%s checked, nothing new.", o.Namespace)
	default:
		return fmt.Sprintf("%s skipped.", o.Namespace)
	}
}
