package server

import (
	"net/http"

	"github.com/brifyai/pptx/internal/server/handler"
	"github.com/brifyai/pptx/internal/server/middleware"
)

func NewMux(h *handler.TemplateHandler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/clone", h.HandleClone)
	mux.HandleFunc("POST /api/analyze", h.HandleAnalyze)
	mux.HandleFunc("POST /api/analyze-template", h.HandleAnalyzeTemplate)
	mux.HandleFunc("POST /api/update-mapping", h.HandleUpdateMapping)
	mux.HandleFunc("GET /api/templates", h.HandleListTemplates)
	mux.HandleFunc("GET /api/template/{hash}", h.HandleGetTemplate)
	mux.HandleFunc("DELETE /api/template/{hash}", h.HandleDeleteTemplate)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	return middleware.CORS(middleware.Recover(mux))
}
