package corpus

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"regexp"
	"strings"

	"github.com/JakeFAU/svt-crawler/internal/crawler"
)

var paragraphType = regexp.MustCompile(`^(p|h\d)$`)

var mediaTypes = map[string]struct{}{
	"svt-image":        {},
	"svt-video":        {},
	"svt-scribblefeed": {},
}

// Element is a node of the structured lead or body of an article.
type Element struct {
	Type     string    `json:"type"`
	Content  string    `json:"content"`
	Children []Element `json:"children"`
}

type named struct {
	Name string `json:"name"`
}

// Article is the subset of an article entry used for conversion.
type Article struct {
	ID                 crawler.ArticleID `json:"id"`
	Published          string            `json:"published"`
	Modified           string            `json:"modified"`
	SectionDisplayName string            `json:"sectionDisplayName"`
	Title              string            `json:"title"`
	Subtitle           string            `json:"subtitle"`
	URL                string            `json:"url"`
	Authors            []named           `json:"authors"`
	Tags               []named           `json:"tags"`
	StructuredLead     []Element         `json:"structuredLead"`
	StructuredBody     []Element         `json:"structuredBody"`
}

type paragraph struct {
	Type string `xml:"type,attr,omitempty"`
	Text string `xml:",chardata"`
}

// Renderer turns article entries into <text> elements.
type Renderer struct {
	SitePrefix  string
	CurrentYear int
	MinYear     int
}

// Render converts one raw article entry.
func (r Renderer) Render(raw json.RawMessage) (string, error) {
	var a Article
	if err := json.Unmarshal(raw, &a); err != nil {
		return "", fmt.Errorf("decode article: %w", err)
	}
	return r.RenderArticle(a)
}

// RenderArticle converts a decoded article. Media elements are dropped,
// p and h* elements become paragraphs and empty paragraphs are omitted.
func (r Renderer) RenderArticle(a Article) (string, error) {
	start := xml.StartElement{Name: xml.Name{Local: "text"}, Attr: r.attributes(a)}

	paras := []paragraph{{Type: "title", Text: strings.TrimSpace(a.Title)}}
	for _, el := range a.StructuredLead {
		if isMedia(el.Type) {
			continue
		}
		paras = append(paras, paragraph{Type: "lead", Text: collectText(el)})
	}
	for _, el := range a.StructuredBody {
		paras = appendBody(paras, el)
	}

	var buf bytes.Buffer
	enc := xml.NewEncoder(&buf)
	if err := enc.EncodeToken(start); err != nil {
		return "", err
	}
	for _, p := range paras {
		if strings.TrimSpace(p.Text) == "" {
			continue
		}
		if err := enc.EncodeElement(p, xml.StartElement{Name: xml.Name{Local: "p"}}); err != nil {
			return "", fmt.Errorf("encode paragraph: %w", err)
		}
	}
	if err := enc.EncodeToken(start.End()); err != nil {
		return "", err
	}
	if err := enc.Flush(); err != nil {
		return "", err
	}
	return strings.ReplaceAll(buf.String(), "\u00a0", " "), nil
}

func (r Renderer) attributes(a Article) []xml.Attr {
	var attrs []xml.Attr
	set := func(name, value string) {
		if value = strings.TrimSpace(value); value != "" {
			attrs = append(attrs, xml.Attr{Name: xml.Name{Local: name}, Value: value})
		}
	}

	stamp := a.Published
	if stamp == "" {
		stamp = a.Modified
	}
	if crawler.YearBucket(stamp, "", r.CurrentYear, r.MinYear) != crawler.NoDate {
		set("date", stamp)
	}
	set("id", string(a.ID))
	set("section", a.SectionDisplayName)
	set("title", a.Title)
	set("subtitle", a.Subtitle)
	set("url", r.absoluteURL(strings.TrimSpace(a.URL)))
	set("authors", joinNames(a.Authors))
	set("tags", joinNames(a.Tags))
	return attrs
}

func (r Renderer) absoluteURL(u string) string {
	switch {
	case u == "", strings.HasPrefix(u, "http"):
		return u
	case strings.HasPrefix(u, "www."):
		return "https://" + u
	default:
		return r.SitePrefix + u
	}
}

// joinNames renders names as |a|b|, or "" when there are none.
func joinNames(items []named) string {
	var names []string
	for _, it := range items {
		if n := strings.TrimSpace(it.Name); n != "" {
			names = append(names, n)
		}
	}
	if len(names) == 0 {
		return ""
	}
	return "|" + strings.Join(names, "|") + "|"
}

func appendBody(paras []paragraph, el Element) []paragraph {
	if isMedia(el.Type) {
		return paras
	}
	if paragraphType.MatchString(el.Type) {
		return append(paras, paragraph{Text: collectText(el)})
	}
	if strings.TrimSpace(el.Content) != "" {
		paras = append(paras, paragraph{Text: strings.TrimSpace(el.Content)})
	}
	for _, child := range el.Children {
		paras = appendBody(paras, child)
	}
	return paras
}

// collectText joins the text of el and its descendants with single spaces.
func collectText(el Element) string {
	var parts []string
	var walk func(Element)
	walk = func(e Element) {
		if isMedia(e.Type) {
			return
		}
		if s := strings.TrimSpace(e.Content); s != "" {
			parts = append(parts, s)
		}
		for _, c := range e.Children {
			walk(c)
		}
	}
	walk(el)
	return strings.Join(parts, " ")
}

func isMedia(t string) bool {
	_, ok := mediaTypes[t]
	return ok
}
