package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/zhouzirui/digital-twin/backend/internal/handler/chat"
	"github.com/zhouzirui/digital-twin/backend/internal/handler/system"
	chatService "github.com/zhouzirui/digital-twin/backend/internal/service/chat"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(chatSvc *chatService.Service, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch,
			http.MethodDelete, http.MethodOptions, http.MethodHead,
		},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	system.New().RegisterRoutes(r)
	chat.New(chatSvc).RegisterRoutes(r)

	return r
}
