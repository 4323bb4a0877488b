package httpx

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/target/hotelease-portal/internal/domain/event"
)

// parseIntQuery returns the integer value of a query param or a default.
// It is tolerant of missing/invalid values.
func parseIntQuery(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

// parseLimit reads ?limit= and clamps it to [1, maxLimit].
func parseLimit(r *http.Request, defLimit, maxLimit int) int {
	if maxLimit < 1 {
		maxLimit = 1
	}
	return min(max(parseIntQuery(r, "limit", defLimit), 1), maxLimit)
}

// parseTypes reads a comma-separated ?types= list, dropping blanks.
func parseTypes(r *http.Request) []event.Type {
	raw := r.URL.Query().Get("types")
	if raw == "" {
		return nil
	}
	var out []event.Type
	for part := range strings.SplitSeq(raw, ",") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, event.Type(t))
		}
	}
	return out
}
