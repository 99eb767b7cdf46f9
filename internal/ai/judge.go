package ai

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/net/html"

	"rss_glue/internal/model"
)

const promptTemplate = `Please take a look at the following bit of content from an RSS feed:

Title: %s
Author: %s
URL: %s
Posted time: %s
Content: %s

Decide if the post above is relevant based on the criteria expressed below:

"%s"

Is this content relevant? Say 'yes' if the post is relevant, 'no' if it is not.
Don't say anything else.`

// DefaultContentLimit caps how much item text is sent with each prompt.
const DefaultContentLimit = 1000

// Judge asks a completion model whether an item matches a criteria prompt.
type Judge struct {
	client       Completer
	criteria     string
	contentLimit int
}

// NewJudge creates a Judge. A non-positive contentLimit uses DefaultContentLimit.
func NewJudge(client Completer, criteria string, contentLimit int) *Judge {
	if contentLimit <= 0 {
		contentLimit = DefaultContentLimit
	}
	return &Judge{client: client, criteria: criteria, contentLimit: contentLimit}
}

// Judge returns the model's verdict for item along with its token cost.
func (j *Judge) Judge(ctx context.Context, item model.Item) (model.Judgement, error) {
	resp, err := j.client.Complete(ctx, j.Prompt(item))
	if err != nil {
		return model.Judgement{}, fmt.Errorf("complete prompt: %w", err)
	}
	jd := model.Judgement{Verdict: ParseVerdict(resp.Text), Cost: resp.Tokens}
	if jd.Verdict == model.VerdictUnparseable {
		jd.Reason = truncate(strings.TrimSpace(resp.Text), 200)
	}
	return jd, nil
}

// Prompt renders the question sent for item.
func (j *Judge) Prompt(item model.Item) string {
	rec := item.Info()
	return fmt.Sprintf(promptTemplate,
		rec.Title,
		rec.Author,
		rec.OriginURL,
		rec.PostedTime.UTC().Format("2006-01-02 15:04 MST"),
		truncate(PlainText(item.Render()), j.contentLimit),
		j.criteria,
	)
}

// ParseVerdict reads the first yes or no word in a reply.
func ParseVerdict(text string) model.Verdict {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	for _, w := range words {
		switch w {
		case "yes":
			return model.VerdictInclude
		case "no":
			return model.VerdictExclude
		}
	}
	return model.VerdictUnparseable
}

// PlainText strips markup from an HTML fragment, keeping only text nodes.
func PlainText(fragment string) string {
	z := html.NewTokenizer(strings.NewReader(fragment))
	var sb strings.Builder
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.Join(strings.Fields(sb.String()), " ")
		case html.TextToken:
			sb.Write(z.Text())
			sb.WriteByte(' ')
		}
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
