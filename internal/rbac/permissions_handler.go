package rbac

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/alfozan/insights/internal/platform/httpx"
)

// PermissionsHandler exposes the role mapping as JSON.
type PermissionsHandler struct {
	logger *slog.Logger
	table  *Table
}

// NewPermissionsHandler builds PermissionsHandler instance.
func NewPermissionsHandler(logger *slog.Logger, table *Table) *PermissionsHandler {
	if table == nil {
		table = DefaultTable()
	}
	return &PermissionsHandler{logger: logger, table: table}
}

// MountRoutes registers permission routes. Callers wrap the route group with
// the access gate.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.Get("/", h.listPermissions)
}

type rolePermissions struct {
	Role    Role     `json:"role"`
	Actions []Action `json:"actions"`
}

func (h *PermissionsHandler) listPermissions(w http.ResponseWriter, r *http.Request) {
	roles := Roles()
	out := make([]rolePermissions, 0, len(roles))
	for _, role := range roles {
		out = append(out, rolePermissions{Role: role, Actions: h.table.Actions(role).Sorted()})
	}
	httpx.JSON(w, http.StatusOK, httpx.Envelope{Success: true, Data: out})
}
