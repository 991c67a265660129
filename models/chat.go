package models

import "time"

// Chat groups a user's uploaded documents and the message history built
// from asking questions against them.
type Chat struct {
	ID        string        `bson:"_id" json:"id"`
	Title     string        `bson:"title" json:"title"`
	UserID    string        `bson:"user_id" json:"user_id"`
	PDFIDs    []string      `bson:"pdf_ids" json:"pdf_ids"`
	Messages  []ChatMessage `bson:"messages" json:"messages"`
	CreatedAt time.Time     `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time     `bson:"updated_at" json:"updated_at"`
}

// ChatMessage is one turn of the conversation. Content is a plain string
// for user turns and a StructuredAnswer for assistant turns.
type ChatMessage struct {
	Role      string     `bson:"role" json:"role"`
	Content   any        `bson:"content" json:"content"`
	Citations []Citation `bson:"citations,omitempty" json:"citations,omitempty"`
	Timestamp time.Time  `bson:"timestamp" json:"timestamp"`
}

// Citation points an answer back at the retrieved chunk it was grounded on.
type Citation struct {
	ID           string `bson:"id" json:"id"`
	DocumentName string `bson:"document_name" json:"documentName"`
	PageNumber   int    `bson:"page_number" json:"pageNumber"`
	SectionTitle string `bson:"section_title" json:"sectionTitle"`
}

// Answer intents the agent may classify a question as.
var AnswerIntents = []string{"learning", "exam", "coding", "explanation", "revision"}

// Content block types the agent may emit.
var BlockTypes = []string{
	"answer", "explanation", "steps", "key_points", "example",
	"code", "warning", "limitations", "follow_up",
}

// StructuredAnswer is the block-based answer contract enforced on every
// model response. Blocks carries at least three entries.
type StructuredAnswer struct {
	Intent     string         `bson:"intent" json:"intent"`
	Blocks     []ContentBlock `bson:"blocks" json:"blocks"`
	Confidence float64        `bson:"confidence" json:"confidence"`
}

// ContentBlock holds one section of an answer. Which optional fields are
// populated depends on Type: text for answer/explanation/code, List for
// key_points/follow_up, Steps for steps.
type ContentBlock struct {
	Type  string       `bson:"type" json:"type"`
	Title string       `bson:"title,omitempty" json:"title,omitempty"`
	Text  string       `bson:"text,omitempty" json:"text,omitempty"`
	List  []string     `bson:"list,omitempty" json:"list,omitempty"`
	Steps []AnswerStep `bson:"steps,omitempty" json:"steps,omitempty"`
}

// AnswerStep is a 1-based ordered step inside a steps block.
type AnswerStep struct {
	Step int    `bson:"step" json:"step"`
	Text string `bson:"text" json:"text"`
}
