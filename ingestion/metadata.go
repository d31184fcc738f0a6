package ingestion

import (
	"path/filepath"
	"regexp"
	"strings"
)

// Pattern matching is limited to the first pages; titles, author lists,
// and identifiers live on the front matter of papers and reports.
const metadataPageWindow = 2

var (
	arxivPattern = regexp.MustCompile(`(?i)arxiv:\s*(\d{4}\.\d{4,5}(?:v\d+)?)`)
	doiPattern   = regexp.MustCompile(`(?i)\b(10\.\d{4,9}/[-._;()/:a-z0-9]+)`)

	// A plausible author line: capitalized names separated by commas or "and".
	authorsPattern = regexp.MustCompile(`^(?:[A-Z][\p{L}.'-]+(?:\s+[A-Z][\p{L}.'-]+)+)(?:\s*(?:,|and)\s*[A-Z][\p{L}.'-]+(?:\s+[A-Z][\p{L}.'-]+)+)+[.]?$`)
)

// inferMetadata derives document-level metadata from the leading pages.
// Absence of any field is not an error; the map always carries at least
// source and title.
func inferMetadata(source string, pages []Page) map[string]string {
	metadata := map[string]string{
		"source": source,
		"title":  titleFromPages(source, pages),
	}

	window := leadingText(pages)

	if m := arxivPattern.FindStringSubmatch(window); m != nil {
		metadata["arxiv_id"] = m[1]
	}
	if m := doiPattern.FindStringSubmatch(window); m != nil {
		metadata["doi"] = strings.TrimRight(m[1], ".,;")
	}
	if authors := authorsFromPages(pages); authors != "" {
		metadata["authors"] = authors
	}

	return metadata
}

// titleFromPages takes the first plausible line of the first page; when
// nothing qualifies the file stem serves as the title.
func titleFromPages(source string, pages []Page) string {
	if len(pages) > 0 {
		for _, line := range strings.Split(pages[0].Text, "\n") {
			line = strings.TrimSpace(line)
			if len(line) < 4 || len(line) > 200 {
				continue
			}
			if arxivPattern.MatchString(line) || doiPattern.MatchString(line) {
				continue
			}
			return line
		}
	}

	stem := filepath.Base(source)
	return strings.TrimSuffix(stem, filepath.Ext(stem))
}

// authorsFromPages scans the first page for a line shaped like an author
// list, skipping the line already taken as the title.
func authorsFromPages(pages []Page) string {
	if len(pages) == 0 {
		return ""
	}

	seenTitle := false
	for _, line := range strings.Split(pages[0].Text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !seenTitle {
			seenTitle = true
			continue
		}
		if authorsPattern.MatchString(line) {
			return line
		}
	}
	return ""
}

// leadingText concatenates the text of the metadata window.
func leadingText(pages []Page) string {
	limit := metadataPageWindow
	if len(pages) < limit {
		limit = len(pages)
	}
	var builder strings.Builder
	for _, page := range pages[:limit] {
		builder.WriteString(page.Text)
		builder.WriteString("\n")
	}
	return builder.String()
}
