package crawler

import (
	"fmt"
	"slices"
	"strings"
)

// Topic is a content section path such as "sport" or "nyheter/lokalt/stockholm".
type Topic string

// Name is the last path segment, used to group stored articles.
func (t Topic) Name() string {
	s := strings.Trim(string(t), "/")
	if i := strings.LastIndex(s, "/"); i >= 0 {
		return s[i+1:]
	}
	return s
}

// IsLocal reports whether the topic is a regional news area.
func (t Topic) IsLocal() bool {
	return strings.HasPrefix(strings.Trim(string(t), "/"), "nyheter/lokalt/")
}

// LocalAreas lists the regional news areas.
var LocalAreas = []string{
	"blekinge",
	"dalarna",
	"gavleborg",
	"halland",
	"helsingborg",
	"jamtland",
	"jonkoping",
	"norrbotten",
	"skane",
	"smaland",
	"stockholm",
	"sodertalje",
	"sormland",
	"uppsala",
	"varmland",
	"vast",
	"vasterbotten",
	"vasternorrland",
	"vastmanland",
	"orebro",
	"ost",
}

var nationalTopics = []Topic{
	"nyheter/ekonomi",
	"nyheter/granskning",
	"nyheter/inrikes",
	"nyheter/svtforum",
	"nyheter/nyhetstecken",
	"nyheter/vetenskap",
	"nyheter/konsument",
	"nyheter/utrikes",
	"sport",
	"vader",
	"kultur",
}

// DefaultTopics returns the compiled-in topic list: national sections
// followed by every local area.
func DefaultTopics() []Topic {
	topics := slices.Clone(nationalTopics)
	for _, area := range LocalAreas {
		topics = append(topics, Topic("nyheter/lokalt/"+area))
	}
	return topics
}

// IsLocalArea reports whether name is one of the regional areas.
func IsLocalArea(name string) bool {
	return slices.Contains(LocalAreas, name)
}

// ParseTopics converts configured topic strings, falling back to the
// default list when none are given.
func ParseTopics(raw []string) []Topic {
	var topics []Topic
	for _, r := range raw {
		r = strings.Trim(strings.TrimSpace(r), "/")
		if r != "" {
			topics = append(topics, Topic(r))
		}
	}
	if len(topics) == 0 {
		return DefaultTopics()
	}
	return topics
}

// TopicFromURL recovers the storage topic name from a queued URL.
// Listing URLs are first reduced to their path below apiBase. Local news
// nests one level deeper than other sections:
//
//	/nyheter/lokalt/<area>/... -> <area>
//	/nyheter/<section>/...     -> <section>
//	/<section>/...             -> <section>
//
// It returns "" when the URL does not have enough segments.
func TopicFromURL(rawURL, apiBase string) string {
	short := rawURL
	apiBase = strings.TrimRight(apiBase, "/")
	if apiBase != "" && strings.HasPrefix(short, apiBase+"/") {
		short = short[len(apiBase):]
	}
	segments := strings.Split(short, "/")
	idx := 1
	switch {
	case strings.HasPrefix(short, "/nyheter/lokalt"):
		idx = 3
	case strings.HasPrefix(short, "/nyheter"):
		idx = 2
	}
	if idx >= len(segments) {
		return ""
	}
	return segments[idx]
}

// URLBuilder derives API and site URLs.
type URLBuilder struct {
	APIBase    string
	SitePrefix string
	PageSize   int
}

// ListingURL returns the API URL for one page of a topic listing.
func (b URLBuilder) ListingURL(topic Topic, page int) string {
	return fmt.Sprintf("%s/%s/?q=auto&limit=%d&page=%d",
		strings.TrimRight(b.APIBase, "/"), strings.Trim(string(topic), "/"), b.PageSize, page)
}

// ArticleURL returns the API URL for an article short URL.
func (b URLBuilder) ArticleURL(shortURL string) string {
	return fmt.Sprintf("%s%s?q=articles", strings.TrimRight(b.APIBase, "/"), shortURL)
}

// IsListingURL reports whether a queued URL points at the listing endpoint.
func (b URLBuilder) IsListingURL(raw string) bool {
	return strings.HasPrefix(raw, strings.TrimRight(b.APIBase, "/"))
}

// ShortURL strips the absolute site prefix from an article URL.
func (b URLBuilder) ShortURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if b.SitePrefix != "" && strings.HasPrefix(raw, b.SitePrefix) {
		return raw[len(b.SitePrefix):]
	}
	return raw
}
