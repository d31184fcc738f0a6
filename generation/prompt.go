package generation

import (
	"fmt"
	"strings"

	"github.com/questanalytics/questa/core"
)

const systemPrompt = `You are a document assistant. Answer the question using only the provided context passages. Cite passages as [Doc N]. If the context does not contain the answer, say so instead of guessing.`

// buildPrompt assembles the user prompt from the question and the
// retrieved context, one labeled block per chunk.
func buildPrompt(question string, results []*core.RetrievalResult) string {
	var builder strings.Builder

	builder.WriteString("Context:\n")
	for i, result := range results {
		chunk := result.Chunk
		title := chunk.Metadata["title"]
		if title == "" {
			title = chunk.Metadata["source"]
		}
		if chunk.Page > 0 {
			fmt.Fprintf(&builder, "[Doc %d] %s (page %d)\n%s\n\n", i+1, title, chunk.Page, chunk.Text)
		} else {
			fmt.Fprintf(&builder, "[Doc %d] %s\n%s\n\n", i+1, title, chunk.Text)
		}
	}

	builder.WriteString("Question: ")
	builder.WriteString(question)
	return builder.String()
}

// citationsFrom maps the retrieved context to the citation list attached
// to the answer, in context order.
func citationsFrom(results []*core.RetrievalResult) []core.Citation {
	citations := make([]core.Citation, len(results))
	for i, result := range results {
		chunk := result.Chunk
		citations[i] = core.Citation{
			ChunkId: chunk.Id,
			Source:  chunk.Metadata["source"],
			Title:   chunk.Metadata["title"],
			Page:    chunk.Page,
		}
	}
	return citations
}
