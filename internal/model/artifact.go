package model

// MindmapNode / MindmapEdge form the concept graph payload. A valid payload
// is a tree: one root, every other node has exactly one incoming edge.
type MindmapNode struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

type MindmapEdge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

type MindmapResult struct {
	Title string        `json:"title"`
	Nodes []MindmapNode `json:"nodes"`
	Edges []MindmapEdge `json:"edges"`
}

type Slide struct {
	Title   string   `json:"title"`
	Bullets []string `json:"bullets"`
	Notes   string   `json:"notes,omitempty"`
}

type SlideDeckResult struct {
	Title    string  `json:"title"`
	Theme    string  `json:"theme,omitempty"`
	Slides   []Slide `json:"slides"`
	FilePath string  `json:"file_path,omitempty"`
}

type InfographicItem struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

type InfographicSection struct {
	Heading string            `json:"heading"`
	Items   []InfographicItem `json:"items"`
}

type InfographicResult struct {
	Title        string               `json:"title"`
	TemplateType string               `json:"template_type"`
	Sections     []InfographicSection `json:"sections"`
	FilePath     string               `json:"file_path,omitempty"`
}
