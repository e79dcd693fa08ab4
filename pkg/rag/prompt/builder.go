package prompt

import (
	"fmt"
	"strings"

	"geogli-chatbot-be/pkg/store"
)

// GroundedBuilder builds prompts that constrain the model to retrieved
// reference material about land-degradation indicators.
type GroundedBuilder struct {
	query     string
	documents []store.Document
}

// NewGroundedBuilder creates a new grounded prompt builder
func NewGroundedBuilder(query string, documents []store.Document) *GroundedBuilder {
	return &GroundedBuilder{
		query:     query,
		documents: documents,
	}
}

// Build creates a prompt that keeps the answer strictly within the
// retrieved documents.
func (b *GroundedBuilder) Build() string {
	var prompt strings.Builder

	b.writeReferenceMaterial(&prompt)
	b.writeTask(&prompt)
	b.writeGuidelines(&prompt)
	b.writeUserQuery(&prompt)

	return prompt.String()
}

func (b *GroundedBuilder) writeReferenceMaterial(prompt *strings.Builder) {
	if len(b.documents) == 0 {
		return
	}

	prompt.WriteString("<reference_material>\n")
	for i, doc := range b.documents {
		prompt.WriteString(fmt.Sprintf("[Document %d] (source: %s)\n", i+1, doc.Source))
		prompt.WriteString(doc.Text)
		prompt.WriteString("\n\n")
	}
	prompt.WriteString("</reference_material>\n\n")
}

func (b *GroundedBuilder) writeTask(prompt *strings.Builder) {
	prompt.WriteString("<task>\n")
	prompt.WriteString("You are an assistant for questions about land-degradation indicators (land productivity, soil organic carbon, land cover, restoration commitments).\n")
	prompt.WriteString("Answer the user's question using the reference material above.\n")
	prompt.WriteString("</task>\n\n")
}

func (b *GroundedBuilder) writeGuidelines(prompt *strings.Builder) {
	prompt.WriteString("<guidelines>\n")
	prompt.WriteString("1. Base your answer strictly on the reference material provided\n")
	prompt.WriteString("2. Cite the document numbers you used, e.g. [Document 2]\n")
	prompt.WriteString("3. Keep figures, years, and country names exactly as they appear in the material\n")
	prompt.WriteString("4. If the material does not contain what is being asked, say so honestly\n")
	prompt.WriteString("5. Be concise and well-organized\n")
	prompt.WriteString("</guidelines>\n\n")
}

func (b *GroundedBuilder) writeUserQuery(prompt *strings.Builder) {
	prompt.WriteString("<user_question>\n")
	prompt.WriteString(b.query)
	prompt.WriteString("\n</user_question>\n\n")
	prompt.WriteString("Now provide your complete response based on the reference material:")
}

// FallbackPrompt wraps the raw query for ungrounded generation. Used when
// retrieval produced nothing usable; the caller prepends a disclaimer to
// whatever comes back.
func FallbackPrompt(query string) string {
	var prompt strings.Builder
	prompt.WriteString("<task>\n")
	prompt.WriteString("You are an assistant for questions about land-degradation indicators.\n")
	prompt.WriteString("No internal reference material matched this question, so answer from general knowledge.\n")
	prompt.WriteString("Keep the answer short and note any uncertainty.\n")
	prompt.WriteString("</task>\n\n")
	prompt.WriteString("<user_question>\n")
	prompt.WriteString(query)
	prompt.WriteString("\n</user_question>\n")
	return prompt.String()
}
