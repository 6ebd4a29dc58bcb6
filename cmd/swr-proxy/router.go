package main

import (
	"encoding/json"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/always-cache/swr"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

const statsPath = "/.swr/stats"

// newRouter serves the stats endpoint and proxies everything else to origin through client.
func newRouter(client *swr.Client, origin *url.URL) http.Handler {
	proxy := &httputil.ReverseProxy{
		Rewrite: func(r *httputil.ProxyRequest) {
			r.SetURL(origin)
			r.SetXForwarded()
		},
		Transport: client,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			log.Warn().Err(err).Str("method", r.Method).Str("url", r.URL.String()).Msg("Origin request failed")
			w.WriteHeader(http.StatusBadGateway)
		},
	}

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Get(statsPath, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(client.Stats()); err != nil {
			log.Error().Err(err).Msg("Could not write stats")
		}
	})
	router.Handle("/*", proxy)
	return router
}
