package system

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/digital-twin/backend/pkg/utils"
)

// RootMessage is returned by GET /.
const RootMessage = "AI Digital Twin API with Memory"

// Handler serves the liveness endpoints.
type Handler struct{}

// New creates the system handler.
func New() *Handler {
	return &Handler{}
}

// RegisterRoutes 注册根路径与健康检查
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.handleRoot)
	r.Get("/health", h.handleHealth)
}

func (h *Handler) handleRoot(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]string{"message": RootMessage})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}
