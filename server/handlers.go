package server

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/chrisvdg/tourneyfilter/cache"
	"github.com/chrisvdg/tourneyfilter/criteria"
	"github.com/chrisvdg/tourneyfilter/scheduler"
)

// RequestIDHeader carries the ID assigned to every request
const RequestIDHeader = "X-Request-ID"

// CacheHeader reports whether a listing was served from the cache
const CacheHeader = "X-Cache"

func newHandlers(p scheduler.Provider, results *cache.Cache) *handlers {
	return &handlers{
		provider: p,
		cache:    results,
	}
}

type handlers struct {
	provider scheduler.Provider
	cache    *cache.Cache
}

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

type cacheEntry struct {
	Key     string         `json:"key"`
	Created cache.JSONTime `json:"created"`
	Records int            `json:"records"`
	Total   int            `json:"total"`
}

// ListHandler serves the result set for the criteria in the query string
func (h *handlers) ListHandler(res http.ResponseWriter, req *http.Request) {
	c, err := criteria.Parse(req.URL.Query())
	if err != nil {
		resp := errorResponse{Error: err.Error()}
		var verr *criteria.ValidationError
		if errors.As(err, &verr) {
			resp.Field = verr.Field
		}
		writeJSON(res, http.StatusBadRequest, resp)
		return
	}

	key := c.Key()
	rs, ok := h.cache.Get(key)
	if ok {
		res.Header().Set(CacheHeader, "HIT")
		writeJSON(res, http.StatusOK, rs)
		return
	}

	rs, err = h.provider.Lookup(req.Context(), c)
	if err != nil {
		log.WithField("request", res.Header().Get(RequestIDHeader)).Errorf("Lookup for %s failed: %s", c, err)
		writeJSON(res, http.StatusBadGateway, errorResponse{Error: "tournament lookup failed"})
		return
	}
	h.cache.Put(key, rs)
	res.Header().Set(CacheHeader, "MISS")
	writeJSON(res, http.StatusOK, rs)
}

// CacheHandler lists the cached result sets
func (h *handlers) CacheHandler(res http.ResponseWriter, req *http.Request) {
	entries := h.cache.Entries()
	out := make([]cacheEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, cacheEntry{
			Key:     e.Key,
			Created: e.Created,
			Records: e.Results.Len(),
			Total:   e.Results.Total(),
		})
	}
	writeJSON(res, http.StatusOK, out)
}

// InvalidateHandler empties the result cache
func (h *handlers) InvalidateHandler(res http.ResponseWriter, req *http.Request) {
	h.cache.InvalidateAll()
	res.WriteHeader(http.StatusNoContent)
}

// HealthHandler reports that the server is up
func (h *handlers) HealthHandler(res http.ResponseWriter, req *http.Request) {
	writeJSON(res, http.StatusOK, map[string]string{"status": "ok"})
}

// requestID tags every request with an ID, echoed in the response headers
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(res http.ResponseWriter, req *http.Request) {
		id := req.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		res.Header().Set(RequestIDHeader, id)
		log.WithField("request", id).Debugf("%s %s", req.Method, req.URL.RequestURI())
		next.ServeHTTP(res, req)
	})
}

func writeJSON(res http.ResponseWriter, status int, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Errorf("Failed to encode response: %s", err)
		res.WriteHeader(http.StatusInternalServerError)
		return
	}
	res.Header().Set("Content-Type", "application/json")
	res.WriteHeader(status)
	res.Write(data)
}
