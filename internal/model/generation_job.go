package model

import "encoding/json"

type ArtifactType string

const (
	ArtifactMindmap     ArtifactType = "mindmap"
	ArtifactSlideDeck   ArtifactType = "slide_deck"
	ArtifactInfographic ArtifactType = "infographic"
)

func (t ArtifactType) Valid() bool {
	switch t {
	case ArtifactMindmap, ArtifactSlideDeck, ArtifactInfographic:
		return true
	}
	return false
}

const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusReady      = "ready"
	JobStatusError      = "error"
)

func JobStatusTerminal(status string) bool {
	return status == JobStatusReady || status == JobStatusError
}

// JobParams is the serialized generation request. SourceIDs empty means all
// active sources of the notebook.
type JobParams struct {
	Title        string   `json:"title,omitempty"`
	SourceIDs    []string `json:"source_ids,omitempty"`
	FocusTopic   string   `json:"focus_topic,omitempty"`
	Theme        string   `json:"theme,omitempty"`
	TemplateType string   `json:"template_type,omitempty"`
	Language     string   `json:"language,omitempty"`
}

// GenerationJob status moves pending -> processing -> ready|error and never
// leaves a terminal state. At most one non-terminal job may exist per
// (notebook_id, params_fingerprint).
type GenerationJob struct {
	ID                string          `json:"id"`
	NotebookID        string          `json:"notebook_id"`
	ArtifactType      ArtifactType    `json:"artifact_type"`
	Params            JobParams       `json:"params"`
	ParamsFingerprint string          `json:"params_fingerprint"`
	Status            string          `json:"status"`
	Result            json.RawMessage `json:"result,omitempty"`
	Error             string          `json:"error,omitempty"`
	CancelRequested   bool            `json:"cancel_requested,omitempty"`
	Ctime             int64           `json:"ctime"`
	Mtime             int64           `json:"mtime"`
}
