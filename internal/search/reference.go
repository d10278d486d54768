package search

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"articleforge/internal/core"
	"articleforge/internal/logger"
)

// Candidate is an external page accepted as a possible reference
type Candidate struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
	Source  string `json:"source"`
}

// ReferenceConfig controls topic derivation, filtering and pacing
type ReferenceConfig struct {
	// BrandTerms are stripped from titles before searching
	BrandTerms []string
	// OwnDomains are never accepted as references
	OwnDomains []string
	// QueryDelay is the pause between query variants
	QueryDelay time.Duration
	// RawResults is how many raw hits to request per query
	RawResults int
	Language   string
}

// DefaultReferenceConfig returns the configuration used for the BeyondChats blog
func DefaultReferenceConfig() ReferenceConfig {
	return ReferenceConfig{
		BrandTerms: []string{"beyondchats", "beyond chats", "beyondchat"},
		OwnDomains: []string{"beyondchats.com"},
		QueryDelay: 500 * time.Millisecond,
		RawResults: googleMaxResults,
		Language:   "en",
	}
}

var (
	excludedURLPatterns = []string{
		"youtube.com",
		"youtu.be",
		".pdf",
		"facebook.com",
		"twitter.com",
		"linkedin.com",
		"instagram.com",
		"/category/",
		"/tag/",
		"/author/",
		"wikipedia.org",
	}

	articlePathPatterns = []string{
		"/blog",
		"/article",
		"/post",
		"/guide",
		"/news",
		"/insights",
		"/resources",
	}

	articleTitleWords = []string{"guide", "how to", "what is", "tips", "best"}

	yearSegment = regexp.MustCompile(`/\d{4}/`)
	numericID   = regexp.MustCompile(`[-_]\d+`)
	whitespace  = regexp.MustCompile(`\s+`)

	// a hyphen only separates clauses when spaced, so "AI-Powered" stays whole
	clauseSeparator = regexp.MustCompile(`\s+-\s+|\s*[–—|:]\s*`)
)

// Raw hits ranked above this index are accepted even without an article signal
const lastResortRank = 5

// ReferenceSearch turns an article title into a short list of external references
type ReferenceSearch struct {
	provider  Provider
	config    ReferenceConfig
	brandTerm *regexp.Regexp
	wait      func(context.Context, time.Duration) error
}

// NewReferenceSearch creates a reference search over provider. A nil provider
// is allowed and means search credentials are not configured.
func NewReferenceSearch(provider Provider, config ReferenceConfig) *ReferenceSearch {
	if config.RawResults <= 0 {
		config.RawResults = googleMaxResults
	}

	r := &ReferenceSearch{provider: provider, config: config, wait: core.Wait}

	if alt := brandAlternation(config.BrandTerms); alt != "" {
		r.brandTerm = regexp.MustCompile(`(?i)(?:` + alt + `)`)
	}
	return r
}

// brandAlternation quotes the terms and orders them longest first so that a
// longer term is never shadowed by one of its prefixes.
func brandAlternation(terms []string) string {
	quoted := make([]string, 0, len(terms))
	for _, t := range terms {
		if t = strings.TrimSpace(t); t != "" {
			quoted = append(quoted, regexp.QuoteMeta(t))
		}
	}
	sort.SliceStable(quoted, func(i, j int) bool { return len(quoted[i]) > len(quoted[j]) })
	return strings.Join(quoted, "|")
}

// Topic strips the trailing brand clause and any remaining brand names from
// title. When nothing is left the original title is returned.
func (r *ReferenceSearch) Topic(title string) string {
	topic := title
	if r.brandTerm != nil {
		topic = r.brandTerm.ReplaceAllString(r.dropBrandClause(topic), "")
	}
	topic = strings.Trim(whitespace.ReplaceAllString(topic, " "), " -–—|:")
	if topic == "" {
		return title
	}
	return topic
}

// dropBrandClause cuts title at the separator before the last clause that
// names the brand. The leading clause is never dropped.
func (r *ReferenceSearch) dropBrandClause(title string) string {
	seps := clauseSeparator.FindAllStringIndex(title, -1)
	for i := len(seps) - 1; i >= 0; i-- {
		end := len(title)
		if i+1 < len(seps) {
			end = seps[i+1][0]
		}
		if r.brandTerm.MatchString(title[seps[i][1]:end]) {
			return title[:seps[i][0]]
		}
	}
	return title
}

// Queries returns the query variants for topic, in the order they are tried
func Queries(topic string) []string {
	return []string{
		fmt.Sprintf("%s blog article guide", topic),
		fmt.Sprintf("%s best practices tips", topic),
		fmt.Sprintf("what is %s guide", topic),
	}
}

// Find returns at most n de-duplicated candidates for title. Per-query failures
// are logged and skipped; the only error returned is context cancellation.
func (r *ReferenceSearch) Find(ctx context.Context, title string, n int) ([]Candidate, error) {
	topic := r.Topic(title)
	logger.Info("Searching for references", "topic", topic)

	if r.provider == nil {
		logger.Warn("Search credentials not configured, continuing without references")
		return []Candidate{}, nil
	}
	if n <= 0 {
		return []Candidate{}, nil
	}

	accepted := make([]Candidate, 0, n)
	seen := make(map[string]bool)

	for i, query := range Queries(topic) {
		if len(accepted) >= n {
			break
		}
		if i > 0 {
			if err := r.wait(ctx, r.config.QueryDelay); err != nil {
				return accepted, err
			}
		}

		results, err := r.provider.Search(ctx, query, Config{MaxResults: r.config.RawResults, Language: r.config.Language})
		if err != nil {
			if ctx.Err() != nil {
				return accepted, ctx.Err()
			}
			logger.Warn("Search query failed", "query", query, "error", err.Error())
			continue
		}
		logger.Debug("Search query returned", "query", query, "raw_results", len(results))

		for _, c := range r.Filter(results) {
			if len(accepted) >= n {
				break
			}
			if seen[c.URL] {
				continue
			}
			seen[c.URL] = true
			accepted = append(accepted, c)
		}
	}

	logger.Info("Reference search completed", "topic", topic, "found", len(accepted))
	return accepted, nil
}

// Filter applies the exclusion and inclusion rules to one page of raw results,
// preserving their order.
func (r *ReferenceSearch) Filter(results []Result) []Candidate {
	var out []Candidate
	for i, res := range results {
		if res.URL == "" || r.excluded(res.URL) {
			continue
		}
		if !looksLikeArticle(res) && i >= lastResortRank {
			continue
		}
		out = append(out, Candidate{
			Title:   res.Title,
			URL:     res.URL,
			Snippet: res.Snippet,
			Source:  Hostname(res.URL),
		})
	}
	return out
}

func (r *ReferenceSearch) excluded(rawURL string) bool {
	u := strings.ToLower(rawURL)
	for _, p := range excludedURLPatterns {
		if strings.Contains(u, p) {
			return true
		}
	}
	for _, d := range r.config.OwnDomains {
		if d != "" && strings.Contains(u, strings.ToLower(d)) {
			return true
		}
	}
	return false
}

func looksLikeArticle(res Result) bool {
	u := strings.ToLower(res.URL)
	for _, p := range articlePathPatterns {
		if strings.Contains(u, p) {
			return true
		}
	}
	if yearSegment.MatchString(u) || numericID.MatchString(u) {
		return true
	}
	title := strings.ToLower(res.Title)
	for _, w := range articleTitleWords {
		if strings.Contains(title, w) {
			return true
		}
	}
	return false
}
