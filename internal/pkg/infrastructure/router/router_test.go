package router

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/matryer/is"
)

func TestRouterServesMetrics(t *testing.T) {
	is := is.New(t)

	r := New("test")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	is.Equal(w.Code, http.StatusOK)
}

func TestRouterAllowsCrossOriginPreflight(t *testing.T) {
	is := is.New(t)

	r := New("test")
	r.Get("/ngsi-ld/v1/temporal/entities", func(w http.ResponseWriter, r *http.Request) {})

	req := httptest.NewRequest(http.MethodOptions, "/ngsi-ld/v1/temporal/entities", nil)
	req.Header.Set("Origin", "https://example.org")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	is.Equal(w.Header().Get("Access-Control-Allow-Origin"), "https://example.org")
}

func TestRouterWritesAccessLog(t *testing.T) {
	is := is.New(t)

	accessLog := &bytes.Buffer{}

	r := newRouter("temporal-test", accessLog)
	r.Get("/ngsi-ld/v1/temporal/entities", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ngsi-ld/v1/temporal/entities?type=Vehicle", nil))

	is.Equal(w.Code, http.StatusTeapot)
	is.True(strings.Contains(accessLog.String(), "/ngsi-ld/v1/temporal/entities")) // request should be logged
	is.True(strings.Contains(accessLog.String(), `"service":"temporal-test"`))
	is.True(strings.Contains(accessLog.String(), "418"))
}

func TestRouterRecoversFromPanics(t *testing.T) {
	is := is.New(t)

	accessLog := &bytes.Buffer{}

	r := newRouter("temporal-test", accessLog)
	r.Get("/boom", func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	is.Equal(w.Code, http.StatusInternalServerError)
	is.True(strings.Contains(accessLog.String(), "/boom"))
}
