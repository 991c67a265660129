package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	genai "github.com/google/generative-ai-go/genai"

	"docchat-platform/models"
)

var (
	// ErrQuestionTooShort rejects input before any model call is made.
	ErrQuestionTooShort = errors.New("question must be at least 5 characters")

	// ErrMalformedAgentOutput marks a model response that violates the
	// structured answer contract. Fatal for that call; never padded or
	// repaired.
	ErrMalformedAgentOutput = errors.New("model returned a malformed structured answer")
)

const minQuestionLength = 5

// minBlocks is the hard floor on answer blocks; the prompt asks for 4-6.
const minBlocks = 3

const chatSystemPrompt = `You are an expert-level AI Knowledge Agent specialized in providing deep, structured explanations.

CRITICAL REQUIREMENTS:
- Answers MUST be long, detailed, and explanatory.
- Provide a minimum of 4-6 content blocks.
- Each explanation/answer block MUST be thorough (at least 4-6 sentences).
- Use diverse block types: 'explanation', 'steps', 'example', 'key_points', 'code', etc.
- Assume the user wants a DEEP understanding of the topic.

CONTEXT RULES:
- Use ONLY the provided context from the vector database.
- Do NOT hallucinate facts or use external training data.
- If context is missing for a specific sub-query, use the 'limitations' block to explain why.

TASK:
1. Analyze the question and context carefully.
2. Infer user intent.
3. Plan a multi-section response using the provided block types.
4. Finalize the structured response.`

// answerSchema constrains the model response to the StructuredAnswer
// shape at generation time. Validation below still runs on the result;
// schema constraints are a mechanism, not a guarantee.
var answerSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"intent": {
			Type:        genai.TypeString,
			Enum:        models.AnswerIntents,
			Description: "Detected user intent",
		},
		"blocks": {
			Type:        genai.TypeArray,
			Description: "A series of content blocks providing deep information",
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"type": {
						Type: genai.TypeString,
						Enum: models.BlockTypes,
					},
					"title": {Type: genai.TypeString},
					"text":  {Type: genai.TypeString},
					"list": {
						Type:  genai.TypeArray,
						Items: &genai.Schema{Type: genai.TypeString},
					},
					"steps": {
						Type: genai.TypeArray,
						Items: &genai.Schema{
							Type: genai.TypeObject,
							Properties: map[string]*genai.Schema{
								"step": {Type: genai.TypeInteger},
								"text": {Type: genai.TypeString},
							},
							Required: []string{"step", "text"},
						},
					},
				},
				Required: []string{"type"},
			},
		},
		"confidence": {
			Type:        genai.TypeNumber,
			Description: "Model confidence score between 0 and 1",
		},
	},
	Required: []string{"intent", "blocks", "confidence"},
}

// StructuredCompleter is the schema-constrained completion capability.
type StructuredCompleter interface {
	StructuredComplete(ctx context.Context, system, user string, schema *genai.Schema) ([]byte, error)
}

// ChatAgent forces one LLM call into the validated block answer schema.
type ChatAgent struct {
	llm StructuredCompleter
}

func NewChatAgent(llm StructuredCompleter) *ChatAgent {
	return &ChatAgent{llm: llm}
}

// Run answers a question from the supplied context only. An empty
// context is stated explicitly in the prompt so the model reaches for
// its limitations block instead of fabricating sources.
func (a *ChatAgent) Run(ctx context.Context, question, retrievedContext string) (*models.StructuredAnswer, error) {
	question = strings.TrimSpace(question)
	if len(question) < minQuestionLength {
		return nil, ErrQuestionTooShort
	}

	contextBlock := retrievedContext
	if strings.TrimSpace(contextBlock) == "" {
		contextBlock = "No context available"
	}

	userPrompt := fmt.Sprintf("QUESTION:\n%s\n\nCONTEXT:\n%s", question, contextBlock)

	raw, err := a.llm.StructuredComplete(ctx, chatSystemPrompt, userPrompt, answerSchema)
	if err != nil {
		return nil, err
	}

	var answer models.StructuredAnswer
	if err := json.Unmarshal(raw, &answer); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedAgentOutput, err)
	}
	if err := validateAnswer(&answer); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedAgentOutput, err)
	}
	return &answer, nil
}

func validateAnswer(a *models.StructuredAnswer) error {
	if !contains(models.AnswerIntents, a.Intent) {
		return fmt.Errorf("unknown intent %q", a.Intent)
	}
	if len(a.Blocks) < minBlocks {
		return fmt.Errorf("got %d blocks, need at least %d", len(a.Blocks), minBlocks)
	}
	for i, b := range a.Blocks {
		if !contains(models.BlockTypes, b.Type) {
			return fmt.Errorf("block %d has unknown type %q", i, b.Type)
		}
	}
	if a.Confidence < 0 || a.Confidence > 1 {
		return fmt.Errorf("confidence %v out of range", a.Confidence)
	}
	return nil
}

func contains(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
