package output

import (
	"context"
	"encoding/xml"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/afero"
)

// DefaultOPMLPath is where the subscription list is written when unset.
const DefaultOPMLPath = "index.opml"

// OPML is a subscription list document.
type OPML struct {
	XMLName xml.Name `xml:"opml"`
	Version string   `xml:"version,attr"`
	Head    OPMLHead `xml:"head"`
	Body    OPMLBody `xml:"body"`
}

// OPMLHead is the head of an OPML document.
type OPMLHead struct {
	Title       string `xml:"title"`
	DateCreated string `xml:"dateCreated,omitempty"`
}

// OPMLBody holds the outlines.
type OPMLBody struct {
	Outlines []Outline `xml:"outline"`
}

// Outline is one OPML entry. Leaves point at a feed file.
type Outline struct {
	Text     string    `xml:"text,attr"`
	Title    string    `xml:"title,attr,omitempty"`
	Type     string    `xml:"type,attr,omitempty"`
	XMLURL   string    `xml:"xmlUrl,attr,omitempty"`
	Outlines []Outline `xml:"outline"`
}

// Index writes an OPML list of every published output.
type Index struct {
	fs      afero.Fs
	path    string
	title   string
	baseURL string
	outputs []Published
	log     *slog.Logger
}

// NewIndex creates an Index of outputs written to name under fs.
func NewIndex(fs afero.Fs, name, title, baseURL string, outputs []Published, log *slog.Logger) *Index {
	if name == "" {
		name = DefaultOPMLPath
	}
	if title == "" {
		title = "RSS Glue Feeds"
	}
	if log == nil {
		log = slog.Default()
	}
	return &Index{
		fs:      fs,
		path:    cleanPath(name),
		title:   title,
		baseURL: trimBase(baseURL),
		outputs: outputs,
		log:     log.With("output", name),
	}
}

func (x *Index) Name() string { return x.path }

// Generate rewrites the list when its content differs from the file.
func (x *Index) Generate(ctx context.Context) error {
	doc, last, err := x.Render(ctx)
	if err != nil {
		return err
	}
	data, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode opml: %w", err)
	}
	data = append([]byte(xml.Header), data...)

	if unchanged(x.fs, x.path, data) {
		x.log.Debug("output up to date")
		return nil
	}
	if err := writeFile(x.fs, x.path, data, last); err != nil {
		return err
	}
	x.log.Info("output generated", "feeds", len(x.outputs))
	return nil
}

// Render builds the document. The creation date is the newest
// LastUpdated of the listed feeds, which is also returned.
func (x *Index) Render(ctx context.Context) (OPML, time.Time, error) {
	var last time.Time
	group := Outline{Text: x.title, Title: x.title}
	for _, o := range x.outputs {
		src := o.Source()
		t, err := src.LastUpdated(ctx)
		if err != nil {
			return OPML{}, time.Time{}, fmt.Errorf("last updated %s: %w", src.Namespace(), err)
		}
		if t.After(last) {
			last = t
		}
		group.Outlines = append(group.Outlines, Outline{
			Text:   src.Title(),
			Title:  src.Title(),
			Type:   "rss",
			XMLURL: x.baseURL + "/" + o.Name(),
		})
	}

	doc := OPML{
		Version: "2.0",
		Head:    OPMLHead{Title: x.title},
		Body:    OPMLBody{Outlines: []Outline{group}},
	}
	if !last.IsZero() {
		doc.Head.DateCreated = last.UTC().Format(time.RFC1123Z)
	}
	return doc, last, nil
}
