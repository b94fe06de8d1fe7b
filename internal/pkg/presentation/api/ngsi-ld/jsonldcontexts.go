package ngsild

import (
	"net/http"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
)

const DefaultContextID string = "default-context.jsonld"

// NewServeContextHandler serves the JSON-LD context document that describes
// the terms this broker compacts attribute names and types with
func NewServeContextHandler(document []byte) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contextID := r.PathValue("contextId")

		if contextID != DefaultContextID {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		logging.GetFromContext(r.Context()).Debug("default context requested from client")

		w.Header().Add("Content-Type", "application/ld+json")
		w.WriteHeader(http.StatusOK)
		w.Write(document)
	})
}
