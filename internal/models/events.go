package models

const (
	EventTypeAccepted  = "transcription.accepted"
	EventTypeCompleted = "transcription.completed"
)

// TranscriptionAccepted is emitted when the provider accepts an asynchronous task.
type TranscriptionAccepted struct {
	EventType string `json:"eventType"`
	ResultID  string `json:"resultId"`
	Provider  string `json:"provider"`
	Source    string `json:"source"`
	Timestamp int64  `json:"timestamp"`
}

// TranscriptionCompleted is emitted when a callback result lands in the store.
type TranscriptionCompleted struct {
	EventType    string `json:"eventType"`
	ResultID     string `json:"resultId"`
	TextLength   int    `json:"textLength"`
	SegmentCount int    `json:"segmentCount"`
	Degraded     bool   `json:"degraded"`
	Timestamp    int64  `json:"timestamp"`
}
