package chat

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/digital-twin/backend/internal/model/chat"
	chatService "github.com/zhouzirui/digital-twin/backend/internal/service/chat"
	"github.com/zhouzirui/digital-twin/backend/internal/store"
	"github.com/zhouzirui/digital-twin/backend/pkg/utils"
)

// Handler 聊天服务的HTTP处理器
type Handler struct {
	chatSvc *chatService.Service
}

// New 创建聊天处理器
func New(chatSvc *chatService.Service) *Handler {
	return &Handler{chatSvc: chatSvc}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.handleChat)
	r.Get("/sessions", h.handleListSessions)
}

type chatRequest struct {
	Message   *string `json:"message"`
	SessionID *string `json:"session_id"`
}

type chatResponse struct {
	Response  string `json:"response"`
	SessionID string `json:"session_id"`
}

type sessionsResponse struct {
	Sessions []chat.SessionSummary `json:"sessions"`
}

// handleChat 处理一轮对话
func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var payload chatRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if payload.Message == nil {
		utils.RespondError(w, http.StatusUnprocessableEntity, "message is required")
		return
	}

	req := chatService.Request{Message: *payload.Message}
	if payload.SessionID != nil {
		req.SessionID = *payload.SessionID
	}

	reply, err := h.chatSvc.Chat(r.Context(), req)
	if err != nil {
		respondChatError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, chatResponse{
		Response:  reply.Response,
		SessionID: reply.SessionID,
	})
}

// handleListSessions 列出所有会话
func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.chatSvc.Sessions(r.Context())
	if err != nil {
		respondChatError(w, err)
		return
	}
	if sessions == nil {
		sessions = []chat.SessionSummary{}
	}

	utils.RespondJSON(w, http.StatusOK, sessionsResponse{Sessions: sessions})
}

// respondChatError 将内部错误转换为统一的响应，不向调用方暴露错误细节
func respondChatError(w http.ResponseWriter, err error) {
	var storeErr *store.Error
	switch {
	case errors.Is(err, chatService.ErrValidation):
		utils.RespondError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, chatService.ErrProvider):
		utils.RespondError(w, http.StatusInternalServerError, "language model request failed")
	case errors.As(err, &storeErr):
		utils.RespondError(w, http.StatusInternalServerError, "conversation storage failed")
	default:
		utils.RespondError(w, http.StatusInternalServerError, "internal error")
	}
}
