package geojson

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/diwise/temporal-context-broker/internal/pkg/application/temporal"
	"github.com/matryer/is"
)

func TestConvertEntityUsesLatestLocationAsGeometry(t *testing.T) {
	is := is.New(t)

	feature := ConvertEntity(vehicle(), "")

	is.Equal(feature.ID, "urn:ngsi-ld:Vehicle:A1")
	is.Equal(feature.Type, "Feature")
	is.Equal(string(feature.Geometry), `{"type":"Point","coordinates":[17.3,62.4]}`)
	is.Equal(feature.Properties["type"], "Vehicle")

	location, ok := feature.Properties["location"].([]any)
	is.True(ok)
	is.Equal(len(location), 2) // all instances are kept among the properties
}

func TestConvertEntityWithoutGeometry(t *testing.T) {
	is := is.New(t)

	feature := ConvertEntity(vehicle(), "position")

	b, err := json.Marshal(feature)
	is.NoErr(err)

	doc := map[string]any{}
	is.NoErr(json.Unmarshal(b, &doc))
	is.Equal(doc["geometry"], nil)
}

func TestConvertEntities(t *testing.T) {
	is := is.New(t)

	fc := ConvertEntities([]temporal.CompactedEntity{vehicle(), vehicle()}, "location", []string{"https://example.org/context.jsonld"})

	is.Equal(fc.Type, "FeatureCollection")
	is.Equal(len(fc.Features), 2)
	is.Equal(fc.Context, []string{"https://example.org/context.jsonld"})
}

func vehicle() temporal.CompactedEntity {
	t0 := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	return temporal.CompactedEntity{
		ID:             "urn:ngsi-ld:Vehicle:A1",
		Types:          []string{"Vehicle"},
		Representation: temporal.Normalized,
		TimeProperty:   temporal.ObservedAt,
		Series: []temporal.Series{
			{
				Name: "location",
				Type: temporal.GeoProperty,
				Instances: []temporal.InstanceResult{
					temporal.FullInstance{
						Payload:      json.RawMessage(`{"type":"GeoProperty","value":{"type":"Point","coordinates":[17.2,62.3]}}`),
						Time:         t0,
						TimeProperty: temporal.ObservedAt,
					},
					temporal.FullInstance{
						Payload:      json.RawMessage(`{"type":"GeoProperty","value":{"type":"Point","coordinates":[17.3,62.4]}}`),
						Time:         t0.Add(time.Minute),
						TimeProperty: temporal.ObservedAt,
					},
				},
			},
		},
	}
}
