package model

// Chunk is a bounded, ordered unit of source text carrying one embedding
// vector. Ordinals are zero-based and contiguous within (source id, version).
type Chunk struct {
	ID            string    `json:"id"`
	SourceID      string    `json:"source_id"`
	SourceVersion int64     `json:"source_version"`
	Ordinal       int       `json:"ordinal"`
	Text          string    `json:"text"`
	TokenCount    int       `json:"token_count"`
	Embedding     []float32 `json:"-"`
}

// RetrievalResult is ephemeral scoring output, never persisted.
type RetrievalResult struct {
	ChunkID     string  `json:"chunk_id"`
	SourceID    string  `json:"source_id"`
	SourceTitle string  `json:"source_title"`
	Ordinal     int     `json:"ordinal"`
	Text        string  `json:"text"`
	Similarity  float64 `json:"similarity_score"`
}
