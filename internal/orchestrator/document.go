package orchestrator

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/blogforge/blogforge/internal/models"
)

var (
	imgPlaceholderRe = regexp.MustCompile(`<img\b[^>]*>`)
	imgAltRe         = regexp.MustCompile(`alt="([^"]*)"`)
	headingRe        = regexp.MustCompile(`(?is)<h[12][^>]*>(.*?)</h[12]>`)
	innerTagRe       = regexp.MustCompile(`<[^>]*>`)
)

// fallbackTitle names a generation whose document carries no heading.
const fallbackTitle = "Untitled Article"

// buildPrompt assembles the text-generation prompt: the topic, the
// formatting contract, and a novelty instruction over the user's recent
// titles. The title list is capped so the prompt cannot grow without bound.
func buildPrompt(description string, includeImages bool, priorTitles models.TitleList, noveltyCap int) string {
	var b strings.Builder
	b.WriteString("Write a complete blog article in HTML about the following topic.\n\n")
	b.WriteString("Topic: ")
	b.WriteString(strings.TrimSpace(description))
	b.WriteString("\n\nUse an <h1> tag for the article title and <h2> tags for section headings.")
	if includeImages {
		b.WriteString(" Where an illustration would help the reader, insert an <img> tag whose alt attribute describes the desired image.")
	}
	if len(priorTitles) > 0 {
		recent := priorTitles.Tail(noveltyCap)
		b.WriteString("\n\nThe article must cover a fresh angle. Do not repeat any of these previously written titles:\n")
		for _, title := range recent {
			b.WriteString("- ")
			b.WriteString(title)
			b.WriteString("\n")
		}
	}
	return b.String()
}

// trimIncompleteSentence cuts trailing text after the last sentence
// terminator or closing tag, so a completion truncated by the token budget
// does not end mid-sentence.
func trimIncompleteSentence(text string) string {
	trimmed := strings.TrimSpace(text)
	idx := strings.LastIndexAny(trimmed, ".!?>")
	if idx < 0 {
		return trimmed
	}
	return trimmed[:idx+1]
}

// extractTitle returns the text of the first h1 or h2 heading, or a generic
// placeholder when the document has none.
func extractTitle(document string) string {
	match := headingRe.FindStringSubmatch(document)
	if match == nil {
		return fallbackTitle
	}
	title := strings.TrimSpace(html.UnescapeString(innerTagRe.ReplaceAllString(match[1], "")))
	if title == "" {
		return fallbackTitle
	}
	return title
}

// placeholder is one <img> marker found in the generated text.
type placeholder struct {
	start int
	end   int
	alt   string // Description from the alt attribute, may be empty.
}

// findPlaceholders locates every image placeholder in document order.
func findPlaceholders(document string) []placeholder {
	locs := imgPlaceholderRe.FindAllStringIndex(document, -1)
	out := make([]placeholder, 0, len(locs))
	for _, loc := range locs {
		tag := document[loc[0]:loc[1]]
		var alt string
		if m := imgAltRe.FindStringSubmatch(tag); m != nil {
			alt = strings.TrimSpace(html.UnescapeString(m[1]))
		}
		out = append(out, placeholder{start: loc[0], end: loc[1], alt: alt})
	}
	return out
}

// replacePlaceholders rewrites the document, substituting a rendered image
// tag for every placeholder whose URL is non-empty. Placeholders with no URL
// keep their original text.
func replacePlaceholders(document string, marks []placeholder, urls []string) string {
	if len(marks) == 0 {
		return document
	}
	var b strings.Builder
	prev := 0
	for i, mark := range marks {
		b.WriteString(document[prev:mark.start])
		if i < len(urls) && urls[i] != "" {
			b.WriteString(renderImageTag(urls[i], mark.alt))
		} else {
			b.WriteString(document[mark.start:mark.end])
		}
		prev = mark.end
	}
	b.WriteString(document[prev:])
	return b.String()
}

// renderImageTag renders one generated illustration.
func renderImageTag(url, alt string) string {
	return fmt.Sprintf(`<img src=%q alt=%q>`, url, alt)
}

// appendImageSection adds a standalone illustration to the end of the
// document; used for top-up images that have no placeholder to occupy.
func appendImageSection(document, url, alt string) string {
	return strings.TrimRight(document, "\n") + "\n<p>" + renderImageTag(url, alt) + "</p>"
}
