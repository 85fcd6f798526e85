package domain

import "encoding/json"

// ProjectFeature is a GeoJSON-style feature describing one Tasking Manager
// project: its boundary geometry and the mapping types requested for it.
// Produced by the project resolver and consumed once by the submission pipeline.
type ProjectFeature struct {
	Type       string            `json:"type"`
	Properties ProjectProperties `json:"properties"`
	Geometry   json.RawMessage   `json:"geometry"`
}

// ProjectProperties carries the subset of project metadata the pipeline uses.
// MappingTypes entries are either category names or 1-based ordinals, exactly
// as the Tasking Manager returns them.
type ProjectProperties struct {
	ProjectID    int           `json:"project_id"`
	MappingTypes []interface{} `json:"mapping_types"`
}
