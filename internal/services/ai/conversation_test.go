package ai

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/benvon/portfolio-chat/internal/models"
)

func TestFilterHistory(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		entries []string
		want    []models.ChatTurn
	}{
		{
			name:    "keeps well-formed entries in order",
			entries: []string{`{"role":"user","text":"a"}`, `{"role":"model","text":"b"}`, `{"role":"user","text":"c"}`},
			want:    []models.ChatTurn{{Role: "user", Text: "a"}, {Role: "model", Text: "b"}, {Role: "user", Text: "c"}},
		},
		{
			name:    "drops unknown role and missing text",
			entries: []string{`{"role":"user","text":"hi"}`, `{"role":"system","text":"x"}`, `{"role":"model"}`},
			want:    []models.ChatTurn{{Role: "user", Text: "hi"}},
		},
		{
			name:    "role match is exact",
			entries: []string{`{"role":"User","text":"a"}`, `{"role":"assistant","text":"b"}`, `{"role":" user","text":"c"}`},
			want:    []models.ChatTurn{},
		},
		{
			name:    "text must be a string",
			entries: []string{`{"role":"user","text":42}`, `{"role":"user","text":null}`, `{"role":"user","text":["a"]}`, `{"role":"user","text":""}`},
			want:    []models.ChatTurn{{Role: "user", Text: ""}},
		},
		{
			name:    "non-object entries",
			entries: []string{`"hello"`, `null`, `[1,2]`, `7`, `{"role":"model","text":"ok"}`},
			want:    []models.ChatTurn{{Role: "model", Text: "ok"}},
		},
		{
			name:    "extra fields ignored",
			entries: []string{`{"role":"user","text":"a","ts":123}`},
			want:    []models.ChatTurn{{Role: "user", Text: "a"}},
		},
		{
			name: "empty",
			want: []models.ChatTurn{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			in := make([]json.RawMessage, len(tt.entries))
			for i, e := range tt.entries {
				in[i] = json.RawMessage(e)
			}
			got := FilterHistory(in)
			if len(got) != len(tt.want) {
				t.Fatalf("FilterHistory() = %+v, want %+v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("FilterHistory()[%d] = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestBuildSystemPrompt(t *testing.T) {
	t.Parallel()

	prompt := BuildSystemPrompt("Ada", "Ten years in distributed systems.", "portfolio-chat: a Go chat proxy")
	for _, want := range []string{"Ada's Portfolio", "Ten years in distributed systems.", "portfolio-chat: a Go chat proxy", "questions about Ada"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("BuildSystemPrompt() missing %q", want)
		}
	}
	if strings.Contains(prompt, NoProjectData) {
		t.Error("fallback should not appear when project context is present")
	}

	for _, empty := range []string{"", "   "} {
		if p := BuildSystemPrompt("Ada", "", empty); !strings.Contains(p, NoProjectData) {
			t.Errorf("BuildSystemPrompt(context=%q) should contain %q", empty, NoProjectData)
		}
	}
}

func TestConversationTurns(t *testing.T) {
	t.Parallel()

	history := []models.ChatTurn{{Role: "user", Text: "h1"}, {Role: "model", Text: "h2"}}
	conv := BuildConversation("SYS", "ACK", history, "final")
	history[0].Text = "mutated"

	turns := conv.Turns()
	want := []models.ChatTurn{
		{Role: "user", Text: "SYS"},
		{Role: "model", Text: "ACK"},
		{Role: "user", Text: "h1"},
		{Role: "model", Text: "h2"},
		{Role: "user", Text: "final"},
	}
	if len(turns) != len(want) {
		t.Fatalf("Turns() length = %d, want %d", len(turns), len(want))
	}
	for i := range want {
		if turns[i] != want[i] {
			t.Errorf("Turns()[%d] = %+v, want %+v", i, turns[i], want[i])
		}
	}
}

func TestAcknowledgement(t *testing.T) {
	t.Parallel()
	want := "Understood. I have reviewed the resume and projects. I am ready to answer questions about Ada."
	if got := Acknowledgement("Ada"); got != want {
		t.Errorf("Acknowledgement() = %q, want %q", got, want)
	}
}
