// Package filter implements the keyword and regex item matching engine.
package filter

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"rss_glue/internal/model"
)

// Kind defines the type of filter rule.
type Kind string

// Supported filter kinds.
const (
	Include   Kind = "include"
	Exclude   Kind = "exclude"
	IncludeRe Kind = "include_re"
	ExcludeRe Kind = "exclude_re"
)

// Scope defines which part of an item a rule matches against.
type Scope string

// Supported filter scopes.
const (
	ScopeTitle   Scope = "title"
	ScopeContent Scope = "content"
	ScopeAll     Scope = "all"
)

// Rule is a single filtering rule.
type Rule struct {
	Kind  Kind   `yaml:"kind"`
	Scope Scope  `yaml:"scope"`
	Value string `yaml:"value"`
}

// Text is the matchable text of an item.
type Text struct {
	Title   string
	Content string
}

// TextOf extracts the matchable text from an item.
func TextOf(item model.Item) Text {
	return Text{Title: item.Info().Title, Content: item.Render()}
}

// Match checks whether an item passes the given set of rules.
// If no rules are provided, the item always passes.
// Include rules use OR logic (at least one must match).
// Exclude rules use AND logic (none must match).
func Match(item Text, rules []Rule) bool {
	if len(rules) == 0 {
		return true
	}

	hasIncludes := false
	anyIncludeMatched := false

	for _, r := range rules {
		switch r.Kind {
		case Include, IncludeRe:
			hasIncludes = true
			if matchesRule(item, r) {
				anyIncludeMatched = true
			}
		case Exclude, ExcludeRe:
			if matchesRule(item, r) {
				return false
			}
		}
	}

	if hasIncludes && !anyIncludeMatched {
		return false
	}
	return true
}

func matchesRule(item Text, r Rule) bool {
	text := textForScope(item, r.Scope)
	switch r.Kind {
	case Include, Exclude:
		return strings.Contains(text, strings.ToLower(r.Value))
	case IncludeRe, ExcludeRe:
		re, err := regexp.Compile("(?i)" + r.Value)
		if err != nil {
			return false
		}
		return re.MatchString(text)
	}
	return false
}

func textForScope(item Text, scope Scope) string {
	switch scope {
	case ScopeTitle:
		return strings.ToLower(item.Title)
	case ScopeContent:
		return strings.ToLower(item.Content)
	default:
		return strings.ToLower(item.Title + " " + item.Content)
	}
}

// ValidateRegex checks whether a pattern is a valid regular expression.
func ValidateRegex(pattern string) error {
	_, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return fmt.Errorf("invalid regex: %w", err)
	}
	return nil
}

// Validate checks every rule's kind, scope and pattern.
func Validate(rules []Rule) error {
	var errs []error
	for i, r := range rules {
		switch r.Kind {
		case Include, Exclude:
		case IncludeRe, ExcludeRe:
			if err := ValidateRegex(r.Value); err != nil {
				errs = append(errs, fmt.Errorf("rule %d: %w", i, err))
			}
		default:
			errs = append(errs, fmt.Errorf("rule %d: unknown kind %q", i, r.Kind))
		}
		switch r.Scope {
		case "", ScopeTitle, ScopeContent, ScopeAll:
		default:
			errs = append(errs, fmt.Errorf("rule %d: unknown scope %q", i, r.Scope))
		}
		if r.Value == "" {
			errs = append(errs, fmt.Errorf("rule %d: empty value", i))
		}
	}
	return errors.Join(errs...)
}

// Rules judges items by keyword and regex rules.
type Rules []Rule

// Judge returns an include verdict when the item passes the rules.
func (rs Rules) Judge(_ context.Context, item model.Item) (model.Judgement, error) {
	if Match(TextOf(item), rs) {
		return model.Judgement{Verdict: model.VerdictInclude}, nil
	}
	return model.Judgement{Verdict: model.VerdictExclude, Reason: "rules"}, nil
}
