package model

const (
	DocumentStatusProcessing = "processing"
	DocumentStatusIndexed    = "indexed"
	DocumentStatusFailed     = "failed"
)

type Document struct {
	ID         string `json:"id"`
	SessionID  string `json:"session_id"`
	Name       string `json:"name"`
	FileKey    string `json:"file_key"`
	DocType    string `json:"doc_type"`
	Status     string `json:"status"`
	ChunkCount int    `json:"chunk_count"`
	Ctime      int64  `json:"ctime"`
	Mtime      int64  `json:"mtime"`
}
