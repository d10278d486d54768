package fetch

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// UnknownTitle is returned when a page carries no usable title
const UnknownTitle = "Unknown Title"

// Title returns the first h1, else the document title up to its first "|",
// else UnknownTitle.
func Title(doc *goquery.Document) string {
	return TitleFrom(doc, []string{"h1"}, UnknownTitle)
}

// TitleFrom tries each selector's first match in order, then the document
// title, then fallback.
func TitleFrom(doc *goquery.Document, selectors []string, fallback string) string {
	for _, sel := range selectors {
		if t := collapse(doc.Find(sel).First().Text()); t != "" {
			return t
		}
	}

	docTitle := doc.Find("title").First().Text()
	if before, _, _ := strings.Cut(docTitle, "|"); collapse(before) != "" {
		return collapse(before)
	}
	return fallback
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
