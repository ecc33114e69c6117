package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/benvon/portfolio-chat/internal/models"
	"github.com/benvon/portfolio-chat/internal/validation"
)

// NoProjectData stands in for an empty project context.
const NoProjectData = "No project data available."

// Conversation is the assembled upstream payload.
type Conversation struct {
	// System carries the persona and context instructions.
	System string
	// Acknowledgement is the model's synthetic reply to System.
	Acknowledgement string
	History         []models.ChatTurn
	Message         string
}

// Turns returns the full turn sequence for upstreams without a system channel:
// System as a user turn, Acknowledgement as a model turn, the history in order, then Message as the final user turn.
func (c Conversation) Turns() []models.ChatTurn {
	turns := make([]models.ChatTurn, 0, len(c.History)+3)
	turns = append(turns,
		models.ChatTurn{Role: models.RoleUser, Text: c.System},
		models.ChatTurn{Role: models.RoleModel, Text: c.Acknowledgement},
	)
	turns = append(turns, c.History...)
	return append(turns, models.ChatTurn{Role: models.RoleUser, Text: c.Message})
}

// BuildConversation assembles a conversation. It has no side effects.
func BuildConversation(systemText, acknowledgement string, history []models.ChatTurn, message string) Conversation {
	h := make([]models.ChatTurn, len(history))
	copy(h, history)
	return Conversation{
		System:          systemText,
		Acknowledgement: acknowledgement,
		History:         h,
		Message:         message,
	}
}

// FilterHistory keeps entries whose role is exactly "user" or "model" and whose text is a JSON string.
// Anything else is dropped without error; order is preserved.
func FilterHistory(raw []json.RawMessage) []models.ChatTurn {
	out := make([]models.ChatTurn, 0, len(raw))
	for _, entry := range raw {
		var fields struct {
			Role json.RawMessage `json:"role"`
			Text json.RawMessage `json:"text"`
		}
		if err := json.Unmarshal(entry, &fields); err != nil {
			continue
		}
		var role, text string
		if !decodeString(fields.Role, &role) || !decodeString(fields.Text, &text) {
			continue
		}
		turn := models.ChatTurn{Role: role, Text: text}
		if validation.Validate.Struct(&turn) != nil {
			continue
		}
		out = append(out, turn)
	}
	return out
}

// decodeString reports whether raw is a JSON string and stores it in dst.
func decodeString(raw json.RawMessage, dst *string) bool {
	raw = json.RawMessage(strings.TrimSpace(string(raw)))
	if len(raw) == 0 || raw[0] != '"' {
		return false
	}
	return json.Unmarshal(raw, dst) == nil
}

// BuildSystemPrompt renders the persona with the resume and project context.
func BuildSystemPrompt(owner, resumeContext, projectContext string) string {
	if strings.TrimSpace(projectContext) == "" {
		projectContext = NoProjectData
	}
	var b strings.Builder
	b.WriteString("SYSTEM_INSTRUCTION:\n")
	fmt.Fprintf(&b, "You are an AI Assistant for %s's Portfolio.\n\n", owner)
	b.WriteString("RESUME / BIO CONTEXT:\n")
	b.WriteString(resumeContext)
	b.WriteString("\n\nPROJECTS CONTEXT:\n")
	b.WriteString(projectContext)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Your Goal: Answer questions about %s based on the above information.\n", owner)
	b.WriteString("Be concise, professional, and friendly.")
	return b.String()
}

// Acknowledgement is the synthetic model reply that follows the system turn.
func Acknowledgement(owner string) string {
	return "Understood. I have reviewed the resume and projects. I am ready to answer questions about " + owner + "."
}
