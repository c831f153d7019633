package model

// Chunk is a slice of document text paired with its embedding vector.
// (DocumentID, IdemKey) is unique so re-indexing a document can never
// duplicate a chunk.
type Chunk struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	SessionID  string    `json:"session_id"`
	Content    string    `json:"content"`
	Embedding  []float32 `json:"embedding"`
	Dims       int       `json:"dims"`
	IdemKey    string    `json:"idem_key"`
	Ctime      int64     `json:"ctime"`
}

// Candidate is an ephemeral retrieval result, consumed immediately by
// the answering path and never persisted.
type Candidate struct {
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	Content    string  `json:"content"`
	Score      float64 `json:"score"`
}
