package interview

import (
	"context"
	"log"
	"strings"
)

// Retriever is the retrieval collaborator contract. An uninitialized or
// failing retriever means "no context", never a user-visible error.
type Retriever interface {
	TopK(ctx context.Context, query string, k int) ([]string, error)
}

const (
	// ContextSnippets is the number of snippets requested per question.
	ContextSnippets = 3
	// ContextCharBudget caps the concatenated snippet text.
	ContextCharBudget = 2000
)

// contextKeywords marks question topics where retrieved document context is
// worth attaching: technical, systems, integration and compliance themes.
// Soft role themes (personal assessment, collaboration) stay context-free.
var contextKeywords = []string{
	"system",
	"schnittstelle",
	"integration",
	"technisch",
	"technik",
	"infrastruktur",
	"api",
	"software",
	"deployment",
	"monitoring",
	"protokoll",
	"security",
	"sicherheit",
	"compliance",
	"audit",
	"regel",
	"workflow",
	"prozessablauf",
}

// ShouldAttachContext decides whether retrieved document context should be
// requested for a role-phase question. The engine never consults the policy
// during intake: intake questions are kept free of document context so
// retrieval cannot bias the classification signal.
func ShouldAttachContext(themeID, hint string) bool {
	haystack := strings.ToLower(themeID) + " " + strings.ToLower(hint)
	for _, kw := range contextKeywords {
		if strings.Contains(haystack, kw) {
			return true
		}
	}
	return false
}

// BuildContext fetches up to ContextSnippets snippets for query and joins
// them under the character budget. Errors degrade to an empty context.
func BuildContext(ctx context.Context, retriever Retriever, query string) string {
	if retriever == nil {
		return ""
	}
	snippets, err := retriever.TopK(ctx, query, ContextSnippets)
	if err != nil {
		log.Printf("context retrieval failed, continuing without context: %v", err)
		return ""
	}
	if len(snippets) == 0 {
		return ""
	}
	joined := strings.Join(snippets, "\n\n---\n\n")
	runes := []rune(joined)
	if len(runes) > ContextCharBudget {
		joined = string(runes[:ContextCharBudget])
	}
	return joined
}
