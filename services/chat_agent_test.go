package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	genai "github.com/google/generative-ai-go/genai"
)

type fakeStructuredCompleter struct {
	response   string
	err        error
	lastSystem string
	lastUser   string
}

func (f *fakeStructuredCompleter) StructuredComplete(ctx context.Context, system, user string, schema *genai.Schema) ([]byte, error) {
	f.lastSystem = system
	f.lastUser = user
	if f.err != nil {
		return nil, f.err
	}
	return []byte(f.response), nil
}

const validAnswerJSON = `{
	"intent": "learning",
	"blocks": [
		{"type": "answer", "text": "The policy covers remote work arrangements in detail."},
		{"type": "explanation", "title": "Background", "text": "Several sections describe eligibility. The criteria span tenure and role. Approval flows through the manager."},
		{"type": "key_points", "list": ["Eligibility requires 6 months tenure", "Approval is manager-led"]},
		{"type": "follow_up", "list": ["What about contractors?"]}
	],
	"confidence": 0.82
}`

func TestChatAgentRunValid(t *testing.T) {
	llm := &fakeStructuredCompleter{response: validAnswerJSON}
	agent := NewChatAgent(llm)

	answer, err := agent.Run(context.Background(), "What is the policy?", "The policy says remote work is allowed.")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if answer.Intent != "learning" {
		t.Errorf("intent: got %q", answer.Intent)
	}
	if len(answer.Blocks) != 4 {
		t.Errorf("blocks: got %d", len(answer.Blocks))
	}
	if !strings.Contains(llm.lastUser, "What is the policy?") {
		t.Error("question missing from user prompt")
	}
	if !strings.Contains(llm.lastUser, "The policy says remote work is allowed.") {
		t.Error("context missing from user prompt")
	}
}

func TestChatAgentRejectsShortQuestion(t *testing.T) {
	agent := NewChatAgent(&fakeStructuredCompleter{response: validAnswerJSON})

	for _, q := range []string{"", "   ", "hey", "abc "} {
		if _, err := agent.Run(context.Background(), q, "some context"); !errors.Is(err, ErrQuestionTooShort) {
			t.Errorf("question %q: expected ErrQuestionTooShort, got %v", q, err)
		}
	}
}

func TestChatAgentEmptyContextIsExplicit(t *testing.T) {
	llm := &fakeStructuredCompleter{response: validAnswerJSON}
	agent := NewChatAgent(llm)

	if _, err := agent.Run(context.Background(), "What is covered?", ""); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if !strings.Contains(llm.lastUser, "No context available") {
		t.Error("empty context was not stated explicitly in the prompt")
	}
}

func TestChatAgentRejectsTooFewBlocks(t *testing.T) {
	twoBlocks := `{
		"intent": "learning",
		"blocks": [
			{"type": "answer", "text": "short"},
			{"type": "limitations", "text": "no context"}
		],
		"confidence": 0.5
	}`
	agent := NewChatAgent(&fakeStructuredCompleter{response: twoBlocks})

	_, err := agent.Run(context.Background(), "What is the policy?", "ctx")
	if !errors.Is(err, ErrMalformedAgentOutput) {
		t.Fatalf("expected ErrMalformedAgentOutput, got %v", err)
	}
}

func TestChatAgentRejectsUnknownIntent(t *testing.T) {
	badIntent := strings.Replace(validAnswerJSON, `"learning"`, `"gossip"`, 1)
	agent := NewChatAgent(&fakeStructuredCompleter{response: badIntent})

	if _, err := agent.Run(context.Background(), "What is the policy?", "ctx"); !errors.Is(err, ErrMalformedAgentOutput) {
		t.Fatalf("expected ErrMalformedAgentOutput, got %v", err)
	}
}

func TestChatAgentRejectsUnknownBlockType(t *testing.T) {
	badBlock := strings.Replace(validAnswerJSON, `"type": "answer"`, `"type": "poem"`, 1)
	agent := NewChatAgent(&fakeStructuredCompleter{response: badBlock})

	if _, err := agent.Run(context.Background(), "What is the policy?", "ctx"); !errors.Is(err, ErrMalformedAgentOutput) {
		t.Fatalf("expected ErrMalformedAgentOutput, got %v", err)
	}
}

func TestChatAgentRejectsOutOfRangeConfidence(t *testing.T) {
	badConfidence := strings.Replace(validAnswerJSON, "0.82", "1.7", 1)
	agent := NewChatAgent(&fakeStructuredCompleter{response: badConfidence})

	if _, err := agent.Run(context.Background(), "What is the policy?", "ctx"); !errors.Is(err, ErrMalformedAgentOutput) {
		t.Fatalf("expected ErrMalformedAgentOutput, got %v", err)
	}
}

func TestChatAgentRejectsInvalidJSON(t *testing.T) {
	agent := NewChatAgent(&fakeStructuredCompleter{response: "I couldn't help with that."})

	if _, err := agent.Run(context.Background(), "What is the policy?", "ctx"); !errors.Is(err, ErrMalformedAgentOutput) {
		t.Fatalf("expected ErrMalformedAgentOutput, got %v", err)
	}
}

func TestChatAgentPropagatesLLMError(t *testing.T) {
	wantErr := errors.New("upstream timeout")
	agent := NewChatAgent(&fakeStructuredCompleter{err: wantErr})

	if _, err := agent.Run(context.Background(), "What is the policy?", "ctx"); !errors.Is(err, wantErr) {
		t.Fatalf("expected upstream error, got %v", err)
	}
}
