package model

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Citation maps a bracket marker in assistant text back to the chunk it
// cites. Index is the 1-based marker the text contains, e.g. [1].
type Citation struct {
	Index    int    `json:"index"`
	ChunkID  string `json:"chunk_id"`
	SourceID string `json:"source_id"`
	Excerpt  string `json:"excerpt"`
}

type ChatSession struct {
	ID         string `json:"id"`
	NotebookID string `json:"notebook_id"`
	UserID     string `json:"user_id"`
	Title      string `json:"title"`
	Ctime      int64  `json:"ctime"`
	Mtime      int64  `json:"mtime"`
}

// Message rows are append-only. Interrupted marks an assistant message whose
// stream failed after the first token; the partial content is kept.
type Message struct {
	ID          string     `json:"id"`
	SessionID   string     `json:"session_id"`
	Role        string     `json:"role"`
	Content     string     `json:"content"`
	Citations   []Citation `json:"citations"`
	Grounded    bool       `json:"grounded"`
	Interrupted bool       `json:"interrupted,omitempty"`
	Ctime       int64      `json:"ctime"`
}
