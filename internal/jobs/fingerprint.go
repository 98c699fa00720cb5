package jobs

import (
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/notebase-ai/notebase/internal/model"
)

// NormalizeParams canonicalizes a request so that logically identical
// submissions hash identically: fields are trimmed and source ids are
// deduplicated and sorted.
func NormalizeParams(p model.JobParams) model.JobParams {
	p.Title = strings.TrimSpace(p.Title)
	p.FocusTopic = strings.TrimSpace(p.FocusTopic)
	p.Theme = strings.TrimSpace(p.Theme)
	p.TemplateType = strings.TrimSpace(p.TemplateType)
	p.Language = strings.TrimSpace(p.Language)
	if len(p.SourceIDs) > 0 {
		seen := make(map[string]struct{}, len(p.SourceIDs))
		ids := make([]string, 0, len(p.SourceIDs))
		for _, id := range p.SourceIDs {
			id = strings.TrimSpace(id)
			if id == "" {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
		sort.Strings(ids)
		p.SourceIDs = ids
	}
	return p
}

// Fingerprint hashes the artifact type together with the normalized params.
// Equal fingerprints mean an identical generation request.
func Fingerprint(artifactType model.ArtifactType, p model.JobParams) string {
	payload, _ := json.Marshal(struct {
		Type   model.ArtifactType `json:"type"`
		Params model.JobParams    `json:"params"`
	}{Type: artifactType, Params: NormalizeParams(p)})
	sum := blake2b.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
