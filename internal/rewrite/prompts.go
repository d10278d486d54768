package rewrite

import (
	"fmt"
	"strings"

	"articleforge/internal/core"
)

const systemInstruction = "You are an expert content writer who creates engaging, well-structured, SEO-optimized articles. You always respond with valid JSON."

const enhancePromptTemplate = `You are an expert content writer and SEO specialist. Your task is to rewrite and enhance the following article to make it more engaging, well-structured, and SEO-optimized.

ORIGINAL ARTICLE:
Title: %s
Content: %s

%s
INSTRUCTIONS:
1. Rewrite the article with improved structure, clear headings (H2, H3), and better formatting
2. Match the professional, informative tone of top-ranking articles
3. Make the content more engaging and valuable for readers
4. Optimize for SEO with relevant keywords naturally integrated
5. IMPORTANT: Do NOT copy sentences from the references - rephrase everything in your own words
6. Add bullet points, numbered lists, or tables where appropriate
7. Keep the core message and key points from the original
8. Make the content comprehensive but concise
9. Write in HTML format with proper semantic tags

OUTPUT FORMAT:
Provide the rewritten article in the following JSON structure:
{
  "title": "Improved SEO-friendly title",
  "content": "<article>Your rewritten HTML content here</article>",
  "meta_description": "A compelling 150-160 character meta description",
  "keywords": ["keyword1", "keyword2", "keyword3", "keyword4", "keyword5"]
}

Respond ONLY with the JSON object, no additional text.`

// buildPrompt renders the rewrite prompt. body must already be plain text and bounded.
func buildPrompt(title, body string, refs []core.ExtractedPage, refLimit int) string {
	var refBlock string
	if len(refs) > 0 {
		var b strings.Builder
		b.WriteString("REFERENCE ARTICLES FOR STYLE AND TONE INSPIRATION:\n")
		for i, ref := range refs {
			if i > 0 {
				b.WriteString("\n\n")
			}
			fmt.Fprintf(&b, "Reference Article %d (from %s):\nTitle: %s\nContent Summary: %s",
				i+1, ref.Source, ref.Title, truncate(ref.Content, refLimit))
		}
		b.WriteString("\n")
		refBlock = b.String()
	}
	return fmt.Sprintf(enhancePromptTemplate, title, body, refBlock)
}
