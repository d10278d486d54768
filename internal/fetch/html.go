package fetch

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// HTMLOptions controls full-article extraction that keeps markup
type HTMLOptions struct {
	// Containers are tried in order; each entry may be a selector group whose
	// first match is used
	Containers []string
	// Strip is removed from the chosen container
	Strip     []string
	MinLength int
}

// DefaultHTMLOptions returns the container cascade for WordPress and Elementor blogs
func DefaultHTMLOptions() HTMLOptions {
	return HTMLOptions{
		Containers: []string{
			"#main-container #main #content, #main #content, #content",
			`[data-elementor-type="single-post"]`,
			"#main-container #main, #main, main",
			"article",
		},
		Strip: []string{
			"script", "style", "noscript", ".social-share", ".share-buttons", ".related-posts",
			".comments", "form", ".cookie-notice", ".popup", ".modal", ".advertisement", ".ads",
		},
		MinLength: 200,
	}
}

const responsiveImageStyle = "max-width: 100%; height: auto; display: block; margin: 1rem auto;"

// SelectHTML returns the cleaned inner HTML of the first container whose
// cleaned markup reaches MinLength. When none does, the last non-empty
// candidate is returned. doc is not modified.
func SelectHTML(doc *goquery.Document, base *url.URL, opts HTMLOptions) string {
	strip := strings.Join(opts.Strip, ", ")

	var content string
	for _, container := range opts.Containers {
		sel := doc.Find(container).First()
		if sel.Length() == 0 {
			continue
		}
		candidate := CleanHTML(sel.Clone(), base, strip)
		if candidate != "" {
			content = candidate
		}
		if len(content) >= opts.MinLength {
			break
		}
	}
	return content
}

// CleanHTML strips chrome from sel and rewrites it for re-publishing: URLs
// become absolute, images lazy-load at responsive size and links open safely
// in a new tab. sel is modified.
func CleanHTML(sel *goquery.Selection, base *url.URL, strip string) string {
	if strip != "" {
		sel.Find(strip).Remove()
	}

	sel.Find("img").Each(func(_ int, img *goquery.Selection) {
		src := firstAttr(img, "src", "data-src", "data-lazy-src")
		if src != "" {
			img.SetAttr("src", AbsoluteURL(base, src))
			img.RemoveAttr("data-src")
			img.RemoveAttr("data-lazy-src")
		}
		img.SetAttr("style", responsiveImageStyle)
		img.SetAttr("loading", "lazy")
	})

	sel.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if href == "" {
			return
		}
		a.SetAttr("href", AbsoluteURL(base, href))
		a.SetAttr("target", "_blank")
		a.SetAttr("rel", "noopener noreferrer")
	})

	sel.Find("[srcset]").Each(func(_ int, el *goquery.Selection) {
		srcset, _ := el.Attr("srcset")
		if srcset != "" {
			el.SetAttr("srcset", absoluteSrcset(base, srcset))
		}
	})

	markup, err := sel.Html()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(markup)
}

// AbsoluteURL resolves ref against base. Protocol-relative references get https.
func AbsoluteURL(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	if strings.HasPrefix(ref, "//") {
		return "https:" + ref
	}
	if base == nil {
		return ref
	}
	u, err := base.Parse(ref)
	if err != nil {
		return ref
	}
	return u.String()
}

func absoluteSrcset(base *url.URL, srcset string) string {
	parts := strings.Split(srcset, ",")
	for i, part := range parts {
		fields := strings.Fields(part)
		if len(fields) == 0 {
			continue
		}
		fields[0] = AbsoluteURL(base, fields[0])
		parts[i] = strings.Join(fields, " ")
	}
	return strings.Join(parts, ", ")
}

func firstAttr(sel *goquery.Selection, names ...string) string {
	for _, name := range names {
		if v, ok := sel.Attr(name); ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
