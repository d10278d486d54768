package fetch

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"gopkg.in/yaml.v3"
)

// Strategy extracts candidate text from a cleaned document. It must not modify doc.
type Strategy interface {
	Name() string
	Extract(doc *goquery.Document) (string, bool)
}

// Strategy kinds accepted in a cascade file
const (
	KindSelector    = "selector"
	KindReadability = "readability"
)

// StrategyConfig describes one strategy in a cascade file
type StrategyConfig struct {
	Kind     string   `yaml:"kind"`
	Selector string   `yaml:"selector,omitempty"`
	Strip    []string `yaml:"strip,omitempty"`
}

// CascadeConfig is the externally configurable extraction cascade
type CascadeConfig struct {
	MinLength  int              `yaml:"min_length"`
	MaxLength  int              `yaml:"max_length"`
	Remove     []string         `yaml:"remove"`
	Strategies []StrategyConfig `yaml:"strategies"`
	Fallback   StrategyConfig   `yaml:"fallback"`
}

var defaultStrip = []string{
	"script", "style", "nav", "header", "footer", ".sidebar", ".widget", ".navigation",
	".breadcrumb", ".share-buttons", ".ct-header", ".ct-footer", "form", ".cookie-notice",
}

// DefaultCascadeConfig returns the built-in cascade, ordered from theme-specific
// containers down to generic ones, with body as the fallback.
func DefaultCascadeConfig() CascadeConfig {
	selectors := []string{
		"#main-container #main.site-main",
		"#main-container .site-main",
		"#main.site-main",
		"main.site-main",
		"#main-container main",
		".elementor-widget-theme-post-content .elementor-widget-container",
		`[data-elementor-type="single-post"] .elementor-section`,
		".elementor-widget-text-editor .elementor-widget-container",
		"article",
		".post-content",
		".entry-content",
		".article-content",
		".blog-content",
		".content-area",
		"main .content",
		".single-post-content",
		`[role="main"]`,
		"main",
		"#main-container",
	}

	strategies := make([]StrategyConfig, 0, len(selectors))
	for _, s := range selectors {
		strategies = append(strategies, StrategyConfig{Kind: KindSelector, Selector: s, Strip: defaultStrip})
	}

	return CascadeConfig{
		MinLength: 200,
		MaxLength: 5000,
		Remove: []string{
			"script", "style", "nav", "header", "footer", "aside", ".sidebar", ".advertisement",
			".ads", ".social-share", ".comments", ".related-posts", ".newsletter", ".popup",
			".modal", ".cookie-notice", "#cookie-notice", ".share-buttons", ".author-bio",
			"form", "iframe", ".navigation", ".breadcrumb",
		},
		Strategies: strategies,
		Fallback: StrategyConfig{
			Kind:     KindSelector,
			Selector: "body",
			Strip: []string{
				"script", "style", "nav", "header", "footer", ".sidebar", ".widget",
				".navigation", ".ct-header", ".ct-footer",
			},
		},
	}
}

// LoadCascade reads a YAML cascade file. Zero length bounds take the defaults.
func LoadCascade(path string) (*Cascade, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read cascade file %s: %w", path, err)
	}

	var cfg CascadeConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse cascade file %s: %w", path, err)
	}

	def := DefaultCascadeConfig()
	if cfg.MinLength == 0 {
		cfg.MinLength = def.MinLength
	}
	if cfg.MaxLength == 0 {
		cfg.MaxLength = def.MaxLength
	}
	if cfg.Fallback.Kind == "" {
		cfg.Fallback = def.Fallback
	}
	return NewCascade(cfg)
}

// Cascade evaluates strategies in order and accepts the first whose text is
// longer than MinLength. The fallback is accepted without a threshold.
type Cascade struct {
	minLength  int
	maxLength  int
	remove     string
	strategies []Strategy
	fallback   Strategy
}

// NewCascade builds a cascade from cfg
func NewCascade(cfg CascadeConfig) (*Cascade, error) {
	c := &Cascade{
		minLength: cfg.MinLength,
		maxLength: cfg.MaxLength,
		remove:    strings.Join(cfg.Remove, ", "),
	}

	for i, sc := range cfg.Strategies {
		s, err := buildStrategy(sc)
		if err != nil {
			return nil, fmt.Errorf("strategy %d: %w", i, err)
		}
		c.strategies = append(c.strategies, s)
	}

	fb, err := buildStrategy(cfg.Fallback)
	if err != nil {
		return nil, fmt.Errorf("fallback: %w", err)
	}
	c.fallback = fb
	return c, nil
}

// MustDefaultCascade returns the built-in cascade
func MustDefaultCascade() *Cascade {
	c, err := NewCascade(DefaultCascadeConfig())
	if err != nil {
		panic(err)
	}
	return c
}

func buildStrategy(sc StrategyConfig) (Strategy, error) {
	switch sc.Kind {
	case KindSelector:
		if strings.TrimSpace(sc.Selector) == "" {
			return nil, fmt.Errorf("selector strategy requires a selector")
		}
		return selectorStrategy{selector: sc.Selector, strip: strings.Join(sc.Strip, ", ")}, nil
	case KindReadability:
		return readabilityStrategy{}, nil
	default:
		return nil, fmt.Errorf("unknown strategy kind %q", sc.Kind)
	}
}

// Run removes boilerplate from doc in place, then evaluates the strategies.
// It returns the normalized, truncated text and the name of the strategy that produced it.
func (c *Cascade) Run(doc *goquery.Document) (string, string) {
	if c.remove != "" {
		doc.Find(c.remove).Remove()
	}

	for _, s := range c.strategies {
		text, ok := s.Extract(doc)
		if !ok {
			continue
		}
		text = NormalizeText(text)
		if utf8.RuneCountInString(text) > c.minLength {
			return Truncate(text, c.maxLength), s.Name()
		}
	}

	text, _ := c.fallback.Extract(doc)
	return Truncate(NormalizeText(text), c.maxLength), c.fallback.Name()
}

type selectorStrategy struct {
	selector string
	strip    string
}

func (s selectorStrategy) Name() string { return "selector:" + s.selector }

func (s selectorStrategy) Extract(doc *goquery.Document) (string, bool) {
	sel := doc.Find(s.selector)
	if sel.Length() == 0 {
		return "", false
	}
	clone := sel.Clone()
	if s.strip != "" {
		clone.Find(s.strip).Remove()
	}
	return SelectionText(clone), true
}

// readabilityStrategy runs the readability algorithm over the whole document
type readabilityStrategy struct{}

func (readabilityStrategy) Name() string { return KindReadability }

func (readabilityStrategy) Extract(doc *goquery.Document) (string, bool) {
	markup, err := doc.Html()
	if err != nil {
		return "", false
	}
	article, err := readability.FromReader(strings.NewReader(markup), doc.Url)
	if err != nil || article.TextContent == "" {
		return "", false
	}
	return article.TextContent, true
}
