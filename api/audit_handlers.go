package api

import (
	"net/http"
	"strconv"

	"github.com/devaulthq/devault/audit"
)

// AuditListResponse is returned from GET /audit.
type AuditListResponse struct {
	Entries []*audit.Entry `json:"entries"`
	Total   int            `json:"total"`
	Page    int            `json:"page"`
	Limit   int            `json:"limit"`
}

// ListAuditEntries handles GET /audit: the caller's own trail, newest first,
// filterable by action and project.
func (a *API) ListAuditEntries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := audit.Filter{
		Action:    audit.Action(q.Get("action")),
		ProjectID: q.Get("projectId"),
	}
	filter.Page, _ = strconv.Atoi(q.Get("page"))
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 || filter.Limit > 200 {
		filter.Limit = 50
	}

	user := currentUser(r.Context())
	entries, total, err := a.trail.List(r.Context(), user.ID, filter)
	if err != nil {
		a.mapError(w, r, err)
		return
	}
	if entries == nil {
		entries = []*audit.Entry{}
	}
	writeJSON(w, http.StatusOK, AuditListResponse{Entries: entries, Total: total, Page: filter.Page, Limit: filter.Limit})
}
