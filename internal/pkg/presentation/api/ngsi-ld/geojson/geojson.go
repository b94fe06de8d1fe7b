package geojson

import (
	"encoding/json"

	"github.com/diwise/temporal-context-broker/internal/pkg/application/temporal"
)

const (
	ContentType             string = "application/geo+json"
	DefaultGeometryProperty string = "location"
)

type GeoJSONFeatureCollection struct {
	Type     string           `json:"type"`
	Features []GeoJSONFeature `json:"features"`
	Context  []string         `json:"@context,omitempty"`
}

func NewFeatureCollection(contexts []string) *GeoJSONFeatureCollection {
	return &GeoJSONFeatureCollection{
		Type:     "FeatureCollection",
		Features: []GeoJSONFeature{},
		Context:  contexts,
	}
}

type GeoJSONFeature struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Geometry   json.RawMessage `json:"geometry"`
	Properties map[string]any  `json:"properties"`
	Context    []string        `json:"@context,omitempty"`
}

// ConvertEntity renders the temporal members of an entity as the properties
// of a feature. The geometry is the most recent value of geometryProperty, or
// null when the entity has no such attribute.
func ConvertEntity(e temporal.CompactedEntity, geometryProperty string) GeoJSONFeature {
	if geometryProperty == "" {
		geometryProperty = DefaultGeometryProperty
	}

	properties := e.Members()

	if len(e.Types) == 1 {
		properties["type"] = e.Types[0]
	} else {
		properties["type"] = e.Types
	}

	geometry := json.RawMessage("null")
	if v, ok := e.LatestValue(geometryProperty); ok && len(v) > 0 {
		geometry = v
	}

	return GeoJSONFeature{
		ID:         e.ID,
		Type:       "Feature",
		Geometry:   geometry,
		Properties: properties,
	}
}

func ConvertEntities(entities []temporal.CompactedEntity, geometryProperty string, contexts []string) *GeoJSONFeatureCollection {
	fc := NewFeatureCollection(contexts)

	for _, e := range entities {
		fc.Features = append(fc.Features, ConvertEntity(e, geometryProperty))
	}

	return fc
}
