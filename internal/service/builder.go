package service

import (
	"encoding/json"
	"fmt"

	"github.com/hotosm/tm-extractor/internal/domain"
)

// BuildSnapshotConfig derives a per-project extraction request from the shared
// template: dataset identifiers rewritten to reference the project, categories
// filtered to the requested canonical names, geometry attached verbatim.
//
// The template is never written to. Requested names are deduplicated, output
// order follows the template, and requested names with no template entry are
// silently omitted.
func BuildSnapshotConfig(tmpl *domain.Template, projectID int, mappingTypes []string, geometry json.RawMessage) *domain.SnapshotConfig {
	requested := make(map[string]bool, len(mappingTypes))
	for _, name := range mappingTypes {
		requested[name] = true
	}

	categories := make([]domain.Category, 0, len(requested))
	for _, cat := range tmpl.Categories {
		if requested[cat.Name] {
			categories = append(categories, cat)
			delete(requested, cat.Name)
		}
	}

	dataset := domain.Dataset{
		DatasetPrefix: fmt.Sprintf("hotosm_project_%d", projectID),
		// the historical spelling is kept: published dataset titles carry it
		DatasetTitle: fmt.Sprintf("Tasking Manger Project %d", projectID),
		Extra:        make(map[string]json.RawMessage, len(tmpl.Dataset.Extra)),
	}
	for key, value := range tmpl.Dataset.Extra {
		dataset.Extra[key] = value
	}

	extra := make(map[string]json.RawMessage, len(tmpl.Extra))
	for key, value := range tmpl.Extra {
		extra[key] = value
	}

	return &domain.SnapshotConfig{
		Dataset:    dataset,
		Categories: categories,
		Geometry:   geometry,
		Extra:      extra,
	}
}
