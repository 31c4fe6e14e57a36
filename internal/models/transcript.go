// Package models defines the data structures shared by the transcription proxy.
package models

// DefaultSpeaker is the label used when a provider omits a speaker.
const DefaultSpeaker = "speaker"

// Word is a single recognized word with timing and speaker information.
type Word struct {
	Word    string  `json:"word"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Score   float64 `json:"score"`
	Speaker string  `json:"speaker"`
}

// Segment is a contiguous span of transcript attributed to one speaker.
// Start and End are seconds from the beginning of the media.
type Segment struct {
	ID         int     `json:"id"`
	Text       string  `json:"text"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	AvgLogprob float64 `json:"avg_logprob"`
	Language   string  `json:"language"`
	Speaker    string  `json:"speaker"`
	Words      []Word  `json:"words"`
}

// Timestamp bounds a conversation turn in seconds.
type Timestamp struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// ConversationTurn is one entry of the structured conversation derived from segments.
type ConversationTurn struct {
	Role      string     `json:"role"`
	Text      string     `json:"text"`
	Timestamp *Timestamp `json:"timestamp,omitempty"`
}

// TranscriptionResult is the transcript returned to clients.
type TranscriptionResult struct {
	Text                   string             `json:"text"`
	Segments               []Segment          `json:"segments"`
	StructuredConversation []ConversationTurn `json:"structuredConversation,omitempty"`
	Error                  string             `json:"error,omitempty"`
}
