package services

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type fakeFreeformCompleter struct {
	response   string
	err        error
	lastSystem string
	lastUser   string
}

func (f *fakeFreeformCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	f.lastSystem = system
	f.lastUser = user
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{
			name:  "bare object",
			input: `{"a": 1}`,
			want:  `{"a": 1}`,
		},
		{
			name:  "conversational wrapping",
			input: "Sure! Here is your quiz:\n```json\n{\"questions\": []}\n```\nLet me know if you need more.",
			want:  `{"questions": []}`,
		},
		{
			name:  "nested objects",
			input: `prefix {"a": {"b": {"c": 2}}} suffix`,
			want:  `{"a": {"b": {"c": 2}}}`,
		},
		{
			name:  "braces inside strings",
			input: `{"code": "func main() { fmt.Println(\"}\") }"} trailing`,
			want:  `{"code": "func main() { fmt.Println(\"}\") }"}`,
		},
		{
			name:  "stops at first top-level object",
			input: `{"first": true} {"second": true}`,
			want:  `{"first": true}`,
		},
		{
			name:    "no object",
			input:   "I'm sorry, I can't produce that.",
			wantErr: true,
		},
		{
			name:    "unterminated object",
			input:   `{"a": 1`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSONObject(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrNoJSONObject) {
					t.Fatalf("expected ErrNoJSONObject, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStudioAgentSelectsToolPrompt(t *testing.T) {
	llm := &fakeFreeformCompleter{response: `{"questions": []}`}
	agent := NewStudioAgent(llm)

	if _, err := agent.Generate(context.Background(), ToolQuiz, "some context"); err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if !strings.Contains(llm.lastSystem, "Instructional Designer") {
		t.Error("quiz prompt not selected")
	}
	if !strings.Contains(llm.lastUser, "some context") {
		t.Error("context missing from user prompt")
	}
}

func TestStudioAgentUnknownToolFallsBack(t *testing.T) {
	llm := &fakeFreeformCompleter{response: `{"title": "t", "summary": "s"}`}
	agent := NewStudioAgent(llm)

	content, err := agent.Generate(context.Background(), ToolKind("karaoke"), "ctx")
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if !strings.Contains(llm.lastSystem, "Summarize the context") {
		t.Error("fallback prompt not used for unknown tool")
	}
	if content["title"] != "t" {
		t.Errorf("unexpected content: %v", content)
	}
}

func TestStudioAgentParsesWrappedJSON(t *testing.T) {
	llm := &fakeFreeformCompleter{
		response: "Here you go!\n{\"flashcards\": [{\"front\": \"Q\", \"back\": \"A\"}]}\nEnjoy!",
	}
	agent := NewStudioAgent(llm)

	content, err := agent.Generate(context.Background(), ToolFlashcards, "ctx")
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if _, ok := content["flashcards"]; !ok {
		t.Errorf("flashcards key missing: %v", content)
	}
}

func TestStudioAgentMalformedOutput(t *testing.T) {
	for _, response := range []string{
		"no json here at all",
		`{"broken": `,
	} {
		agent := NewStudioAgent(&fakeFreeformCompleter{response: response})
		content, err := agent.Generate(context.Background(), ToolQuiz, "ctx")
		if !errors.Is(err, ErrMalformedStudioOutput) {
			t.Errorf("response %q: expected ErrMalformedStudioOutput, got %v", response, err)
		}
		if content != nil {
			t.Errorf("response %q: content must be nil on failure", response)
		}
	}
}

func TestKnownTool(t *testing.T) {
	for _, id := range []string{"audio", "video", "mindmap", "reports", "flashcards", "quiz", "infographic", "slides", "datatable", "notes"} {
		if !KnownTool(id) {
			t.Errorf("tool %q should be known", id)
		}
	}
	if KnownTool("karaoke") {
		t.Error("unexpected tool recognized")
	}
}
