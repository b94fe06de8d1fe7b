package ngsild

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/matryer/is"
)

func TestParseContentRange(t *testing.T) {
	is := is.New(t)

	cr, err := ParseContentRange("date-time 2020-01-01T00:01:00Z-2020-01-01T00:02:00.5Z/*")
	is.NoErr(err)

	is.Equal(cr.Start, time.Date(2020, 1, 1, 0, 1, 0, 0, time.UTC))
	is.Equal(cr.End, time.Date(2020, 1, 1, 0, 2, 0, 500000000, time.UTC))
	is.True(!cr.HasSize())
}

func TestParseContentRangeWithSize(t *testing.T) {
	is := is.New(t)

	cr, err := ParseContentRange("date-time 2020-01-01T00:03:00Z-2020-01-01T00:02:00Z/2")
	is.NoErr(err)
	is.Equal(cr.Size, 2)
}

func TestParseMalformedContentRange(t *testing.T) {
	is := is.New(t)

	for _, header := range []string{"", "bytes 0-100/200", "date-time 2020-01-01T00:01:00Z", "date-time 2020-01-01-2020-01-02/*", "date-time 2020-01-01T00:01:00Z-2020-01-01T00:02:00Z/many"} {
		_, err := ParseContentRange(header)
		is.True(err != nil) // header should be rejected
	}
}

func TestTemporalEntityWithSeveralTypes(t *testing.T) {
	is := is.New(t)

	e := TemporalEntity{}
	is.NoErr(json.Unmarshal([]byte(`{"id":"urn:ngsi-ld:Vehicle:A1","type":["Vehicle","Car"]}`), &e))

	is.Equal(e.ID(), "urn:ngsi-ld:Vehicle:A1")
	is.Equal(e.Types(), []string{"Vehicle", "Car"})

	instances, err := e.Instances("speed")
	is.NoErr(err)
	is.Equal(len(instances), 0)
}
