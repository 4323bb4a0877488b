package httpx

import (
	"net/http"

	"github.com/target/hotelease-portal/internal/service"
)

type healthResponse struct {
	Status  string `json:"status"`
	Portals int    `json:"portals"`
}

// HealthHandlers serves readiness and liveness checks.
type HealthHandlers struct {
	Registry *service.PortalRegistry
}

// Check returns 200 with the number of live portals.
// GET|HEAD /healthz.
func (h *HealthHandlers) Check(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	if h != nil && h.Registry != nil {
		resp.Portals = h.Registry.Len()
	}
	if r.Method == http.MethodHead {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		return
	}
	WriteJSON(w, http.StatusOK, resp)
}
