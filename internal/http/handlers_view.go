package httpx

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/target/hotelease-portal/internal/domain/view"
)

// maxViewWait bounds GET /api/view?wait=true while the portal is still initializing.
const maxViewWait = 10 * time.Second

// ViewHandlers serves the portal's current screen and navigation requests.
type ViewHandlers struct {
	Logger *slog.Logger
}

func (h *ViewHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// Get returns the current view state.
// GET /api/view[?wait=true].
func (h *ViewHandlers) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := PortalFromContext(r.Context())
	if !ok {
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "portal_missing", Err: errPortalMissing})
		return
	}

	if r.URL.Query().Get("wait") == "true" {
		timer := time.NewTimer(maxViewWait)
		defer timer.Stop()
		select {
		case <-p.Arbitrator.Ready():
		case <-timer.C:
		case <-r.Context().Done():
			return
		}
	}
	WriteJSON(w, http.StatusOK, p.Arbitrator.Snapshot())
}

type navigateRequest struct {
	View string `json:"view"`
}

// Navigate asks the arbitrator to move to another view.
// POST /api/navigate {"view": "..."}.
func (h *ViewHandlers) Navigate(w http.ResponseWriter, r *http.Request) {
	p, ok := PortalFromContext(r.Context())
	if !ok {
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "portal_missing", Err: errPortalMissing})
		return
	}

	var req navigateRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	target, err := view.Parse(req.View)
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_view", Err: err})
		return
	}

	snap, err := p.Arbitrator.RequestNavigate(target)
	if err != nil {
		h.logger().DebugContext(r.Context(), "navigation rejected",
			"portal_id", p.ID, "target", target, "role", snap.Role)
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, snap)
}
