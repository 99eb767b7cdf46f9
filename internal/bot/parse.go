package bot

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	defaultPosts = 5
	maxPosts     = 50
)

// ParseNamespaceArg extracts a feed namespace from a command argument string.
func ParseNamespaceArg(args string) (string, error) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return "", fmt.Errorf("feed namespace is required")
	}
	return fields[0], nil
}

// ParsePostsArgs extracts a namespace and an optional post count.
func ParsePostsArgs(args string) (string, int, error) {
	fields := strings.Fields(args)
	if len(fields) == 0 || len(fields) > 2 {
		return "", 0, fmt.Errorf("usage: /posts <ns> [n]")
	}
	n := defaultPosts
	if len(fields) == 2 {
		var err error
		n, err = strconv.Atoi(fields[1])
		if err != nil || n < 1 || n > maxPosts {
			return "", 0, fmt.Errorf("post count must be between 1 and %d", maxPosts)
		}
	}
	return fields[0], n, nil
}
