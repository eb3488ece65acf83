package llm

import (
	"strings"

	"google.golang.org/genai"
)

// geminiConversation is the history sent with each continuation request
type geminiConversation struct {
	history []*genai.Content
}

// with returns the history followed by the new user turn, without recording it
func (c *geminiConversation) with(prompt string) []*genai.Content {
	contents := make([]*genai.Content, 0, len(c.history)+1)
	contents = append(contents, c.history...)
	return append(contents, genai.NewContentFromText(prompt, genai.RoleUser))
}

// record appends a completed exchange. Apologies are recorded too so the model sees
// what the user heard.
func (c *geminiConversation) record(prompt, reply string) {
	c.history = append(c.history,
		genai.NewContentFromText(prompt, genai.RoleUser),
		genai.NewContentFromText(reply, genai.RoleModel))
}

func (c *geminiConversation) len() int {
	return len(c.history)
}

// responseText joins the text parts of the first candidate
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			b.WriteString(part.Text)
		}
	}
	return strings.TrimSpace(b.String())
}
