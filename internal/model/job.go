package model

const (
	JobTypeIndexDocument = "index_document"
	JobTypeAnswerQuery   = "answer_query"
)

const (
	JobStatusQueued     = "queued"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

type Job struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Payload     string `json:"payload"`
	Status      string `json:"status"`
	Attempts    int    `json:"attempts"`
	MaxAttempts int    `json:"max_attempts"`
	Progress    int    `json:"progress"`
	Stage       string `json:"stage"`
	Result      string `json:"result"`
	Error       string `json:"error"`
	AvailableAt int64  `json:"available_at"`
	Ctime       int64  `json:"ctime"`
	Mtime       int64  `json:"mtime"`
}

type IndexDocumentPayload struct {
	DocumentID string `json:"document_id"`
}

type AnswerQueryPayload struct {
	SessionID string `json:"session_id"`
	Question  string `json:"question"`
	Style     string `json:"style"`
}

// QueueState is a per-status snapshot of the job table.
type QueueState struct {
	Queued     int `json:"queued"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}
