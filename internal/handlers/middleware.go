package handlers

import (
	"encoding/json"
	"net/http"
	"net/url"
)

const (
	maxSSEQuery   = 10000
	maxSSESignals = 8192
)

// allowedSSEParams is the whitelist of query parameters for stream endpoints
var allowedSSEParams = map[string]bool{
	"datastar": true, // sent by datastar with the client's signals
}

// allowedDatastarSignals are the signal names a page may send back
var allowedDatastarSignals = map[string]bool{
	"theme": true,

	// patched by the stream
	"room":     true,
	"playerId": true,
	"status":   true,
	"error":    true,

	// form state
	"name":     true,
	"code":     true,
	"clue":     true,
	"targetId": true,
	"settings": true,
	"busy":     true,
}

// ValidateSSERequest rejects stream requests with unknown parameters or
// oversized datastar state
func ValidateSSERequest(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if len(r.URL.RawQuery) > maxSSEQuery {
			http.Error(w, "Query string too large", http.StatusRequestURITooLong)
			return
		}

		params, err := url.ParseQuery(r.URL.RawQuery)
		if err != nil {
			http.Error(w, "Invalid query parameters", http.StatusBadRequest)
			return
		}

		for key, values := range params {
			if !allowedSSEParams[key] {
				http.Error(w, "Invalid parameter", http.StatusBadRequest)
				return
			}
			if key != "datastar" {
				continue
			}
			if len(values) != 1 {
				http.Error(w, "Invalid datastar parameter", http.StatusBadRequest)
				return
			}
			if len(values[0]) > maxSSESignals {
				http.Error(w, "Datastar state too large", http.StatusBadRequest)
				return
			}
			if values[0] == "" {
				continue
			}

			var signals map[string]any
			if err := json.Unmarshal([]byte(values[0]), &signals); err != nil {
				http.Error(w, "Invalid datastar JSON", http.StatusBadRequest)
				return
			}
			for name := range signals {
				if !allowedDatastarSignals[name] {
					http.Error(w, "Invalid signal in datastar", http.StatusBadRequest)
					return
				}
			}
		}

		next(w, r)
	}
}
