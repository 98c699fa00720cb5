package model

type SourceKind string

const (
	SourceKindPDF      SourceKind = "pdf"
	SourceKindDocx     SourceKind = "docx"
	SourceKindText     SourceKind = "text"
	SourceKindMarkdown SourceKind = "markdown"
	SourceKindWeb      SourceKind = "web"
	SourceKindVideo    SourceKind = "video"
	SourceKindImage    SourceKind = "image"
)

func (k SourceKind) Valid() bool {
	switch k {
	case SourceKindPDF, SourceKindDocx, SourceKindText, SourceKindMarkdown,
		SourceKindWeb, SourceKindVideo, SourceKindImage:
		return true
	}
	return false
}

const (
	SourceStatusPending    = "pending"
	SourceStatusProcessing = "processing"
	SourceStatusReady      = "ready"
	SourceStatusError      = "error"
)

// Source is an ingested document within a notebook. raw_text is empty for
// pure-image sources; version increments on every re-ingestion and chunk rows
// are keyed by (source id, version).
type Source struct {
	ID         string     `json:"id"`
	NotebookID string     `json:"notebook_id"`
	Title      string     `json:"title"`
	Kind       SourceKind `json:"kind"`
	RawText    string     `json:"raw_text,omitempty"`
	URL        string     `json:"url,omitempty"`
	Status     string     `json:"status"`
	StatusMsg  string     `json:"status_msg,omitempty"`
	IsActive   bool       `json:"is_active"`
	Version    int64      `json:"version"`
	Ctime      int64      `json:"ctime"`
	Mtime      int64      `json:"mtime"`
}
