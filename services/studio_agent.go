package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrMalformedStudioOutput marks a model response from which no valid
	// JSON artifact could be parsed. The artifact is never persisted.
	ErrMalformedStudioOutput = errors.New("model returned malformed studio content")

	// ErrNoJSONObject is the extraction-specific failure: no top-level
	// {...} span was found in the response text.
	ErrNoJSONObject = errors.New("no JSON object found in text")
)

// ToolKind identifies one studio generator. The set is closed; anything
// else falls back to a generic summary prompt.
type ToolKind string

const (
	ToolAudio       ToolKind = "audio"
	ToolVideo       ToolKind = "video"
	ToolMindmap     ToolKind = "mindmap"
	ToolReports     ToolKind = "reports"
	ToolFlashcards  ToolKind = "flashcards"
	ToolQuiz        ToolKind = "quiz"
	ToolInfographic ToolKind = "infographic"
	ToolSlides      ToolKind = "slides"
	ToolDatatable   ToolKind = "datatable"
	ToolNotes       ToolKind = "notes"
)

const fallbackPrompt = "Summarize the context. Return JSON: { title: string, summary: string }"

// toolPrompts maps each tool to its instruction template. Every prompt
// declares the JSON shape the tool's artifact must take.
var toolPrompts = map[ToolKind]string{
	ToolQuiz: `Act as an Instructional Designer. Create a 10-question quiz from the context.
- Mix: 3 Recall (Easy), 4 Application (Medium), 3 Analysis (Hard).
- Distractors must use common misconceptions.
- If the context is too short, generate fewer but higher-quality questions.
Return JSON: {
  metadata: { total_questions: number, average_difficulty: string },
  questions: [{ id: number, question: string, options: string[], answer: string, explanation: string, difficulty: 'Easy'|'Medium'|'Hard' }]
}`,

	ToolMindmap: `Act as a Knowledge Architect. Map the conceptual landscape of the text.
- Root: Central Theme.
- Level 1: Key Pillars.
- Level 2: Supporting Details.
- Level 3: Specific Examples or Data.
Return JSON: { title: string, children: [{ title: string, note: string, children: [{ title: string, children: [] }] }] }`,

	ToolReports: `Act as a Senior Business Analyst. Synthesize a professional report.
- Extract 'Quantifiable Metrics' and 'Qualitative Insights'.
- Use a neutral, objective tone.
Return JSON: { title: string, summary: string, key_findings: [{ insight: string, evidence: string }], recommendations: string[], risk_factors: string[], conclusion: string }`,

	ToolFlashcards: `Act as a Memory Specialist (using Spaced Repetition principles).
- Create 'Concept-to-Definition' and 'Problem-to-Solution' pairs.
- Ensure each card is atomized (one concept per card).
Return JSON: { flashcards: [{ front: string, back: string, category: string, study_hint: string }] }`,

	ToolAudio: `Act as a Radio Producer. Create a 2-minute podcast script.
- Include [Sound Effect] markers (e.g., [Upbeat Music Intro]).
- Use a 'Hook, Meat, Summary' structure.
Return JSON: { title: string, script: string, segments: [{ timestamp: string, topic: string, content: string }] }`,

	ToolVideo: `Act as a Creative Director. Create a storyboard for a 60-second explainer video.
- Balance 'Talking Head' shots with 'Motion Graphic' descriptions.
Return JSON: { title: string, storyboard: [{ scene_number: number, visual: string, narration: string, on_screen_text: string, duration: number }] }`,

	ToolInfographic: `Act as a Data Visualizer. Extract data for a high-impact dashboard.
- Select icons that match Lucide-react naming conventions.
- Group data into 'Core Stats' and 'Process Steps'.
Return JSON: { title: string, data_points: [{ label: string, value: string, trend: 'up'|'down'|'neutral', icon_key: string }], process_steps: string[] }`,

	ToolSlides: `Act as a Presentation Coach. Create a narrative-driven slide deck.
- Apply the '10/20/30' rule (10 slides, 20 mins, 30pt font equivalents).
- Slide 1: Title, Slide 10: Q&A/Contact.
Return JSON: { title: string, deck: [{ slide_no: number, header: string, bullets: string[], image_prompt: string, speaker_notes: string }] }`,

	ToolDatatable: `Act as a Data Engineer. Extract all entities and numerical data.
- Identify 'Columns' based on recurring patterns in the text.
- Sanitize all numerical strings (e.g., $100 -> 100).
Return JSON: { title: string, schema: [{ key: string, label: string, type: 'string'|'number'|'date' }], rows: [object] }`,

	ToolNotes: `Act as an Academic Tutor. Use the Cornell Note-Taking System.
- 'Cues' section for keywords.
- 'Notes' section for detailed content.
- 'Summary' section for synthesis.
Return JSON: { title: string, sections: [{ heading: string, cues: string[], content: string[] }], final_summary: string }`,
}

// KnownTool reports whether id names one of the fixed studio tools.
func KnownTool(id string) bool {
	_, ok := toolPrompts[ToolKind(id)]
	return ok
}

// FreeformCompleter is the unconstrained completion capability. Output
// may contain conversational wrapping around the JSON payload.
type FreeformCompleter interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// StudioAgent runs one tool-specific prompt against retrieved context
// and parses the response into the tool's artifact shape.
type StudioAgent struct {
	llm FreeformCompleter
}

func NewStudioAgent(llm FreeformCompleter) *StudioAgent {
	return &StudioAgent{llm: llm}
}

func (a *StudioAgent) Generate(ctx context.Context, tool ToolKind, retrievedContext string) (map[string]any, error) {
	prompt, ok := toolPrompts[tool]
	if !ok {
		prompt = fallbackPrompt
	}

	system := fmt.Sprintf("You are a specialized content creator. %s Ensure the output is strictly valid JSON and based ONLY on the provided context.", prompt)
	user := fmt.Sprintf("CONTEXT:\n%s", retrievedContext)

	response, err := a.llm.Complete(ctx, system, user)
	if err != nil {
		return nil, err
	}

	raw, err := ExtractJSONObject(response)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedStudioOutput, err)
	}

	var content map[string]any
	if err := json.Unmarshal([]byte(raw), &content); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedStudioOutput, err)
	}
	return content, nil
}

// ExtractJSONObject returns the first top-level {...} span in s. It
// tracks brace depth outside string literals, so braces inside JSON
// strings do not confuse the scan.
func ExtractJSONObject(s string) (string, error) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			if start >= 0 {
				inString = true
			}
		case '{':
			if start < 0 {
				start = i
			}
			depth++
		case '}':
			if start < 0 {
				continue
			}
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}
	return "", ErrNoJSONObject
}
