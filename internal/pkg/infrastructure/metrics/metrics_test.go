package metrics

import (
	"testing"

	"github.com/matryer/is"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveResponseCountsPerStatusAndRepresentation(t *testing.T) {
	is := is.New(t)

	before := testutil.ToFloat64(TemporalResponsesTotal.WithLabelValues("206", "temporalValues"))

	ObserveResponse(206, "temporalValues", 3)
	ObserveResponse(206, "temporalValues", 1)

	is.Equal(testutil.ToFloat64(TemporalResponsesTotal.WithLabelValues("206", "temporalValues")), before+2)
}
