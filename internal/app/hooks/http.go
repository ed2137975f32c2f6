package hooks

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/felixge/httpsnoop"
	"github.com/go-chi/chi/v5"
	"github.com/intend-hooks/service/internal/platform/metrics"
)

type Handler struct {
	Service       *Service
	AllowedOrigin string
}

func NewHandler(service *Service, allowedOrigin string) *Handler {
	return &Handler{
		Service:       service,
		AllowedOrigin: allowedOrigin,
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(h.corsMiddleware)
	r.Use(requestMiddleware)
	r.Options("/*", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("intend-hooks webhook receiver"))
	})
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})

	r.Post("/webhook", h.handleWebhook)
	r.Get("/users/{userID}/tasks", h.handleListTasks)
	r.Get("/users/{userID}/currentTask", h.handleCurrentTask)
	r.Post("/users/{userID}/tasks/{taskName}/speedRating", h.handleSpeedRating)
	r.Post("/users/{userID}/tasks/{taskName}/message", h.handleMessage)

	return r
}

func (h *Handler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "unreadable request body")
		return
	}
	event, err := DecodeEvent(payload)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	kind := event.Key
	if event.TaskChange == nil && event.TimerEnd == nil {
		// Unbounded label values would blow up the metric.
		kind = "other"
	}
	metrics.WebhookEvents.WithLabelValues(kind).Inc()

	resp, err := h.Service.ProcessEvent(r.Context(), event)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleListTasks(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	tasks, err := h.Service.ListUserTasks(r.Context(), userID)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, tasks)
}

func (h *Handler) handleCurrentTask(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	task, err := h.Service.GetCurrentTask(r.Context(), userID)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, task)
}

func (h *Handler) handleSpeedRating(w http.ResponseWriter, r *http.Request) {
	taskName := taskNameParam(r)
	var rating int
	if err := json.NewDecoder(r.Body).Decode(&rating); err != nil {
		h.writeError(w, http.StatusBadRequest, "body must be a JSON integer")
		return
	}
	task, err := h.Service.UpdateSpeedRating(r.Context(), taskName, rating)
	if err != nil {
		if errors.Is(err, ErrTaskNotFound) {
			h.writeError(w, http.StatusNotFound, "task not found")
			return
		}
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, task)
}

func (h *Handler) handleMessage(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	taskName := taskNameParam(r)
	var message string
	if err := json.NewDecoder(r.Body).Decode(&message); err != nil {
		h.writeError(w, http.StatusBadRequest, "body must be a JSON string")
		return
	}
	task, err := h.Service.UpdateMessage(r.Context(), userID, taskName, message)
	if err != nil {
		if errors.Is(err, ErrTaskNotFound) {
			h.writeError(w, http.StatusNotFound, "task not found")
			return
		}
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, task)
}

// taskNameParam unescapes the taskName path segment. Task names are display
// text and routinely carry spaces.
func taskNameParam(r *http.Request) string {
	raw := chi.URLParam(r, "taskName")
	name, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return name
}

func requestMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)
		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = r.URL.Path
		}
		metrics.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(m.Code)).Inc()
		log.Printf("handled %s %s status=%d duration=%s", r.Method, r.URL.Path, m.Code, m.Duration)
	})
}

func (h *Handler) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Vary", "Origin, Access-Control-Request-Headers")
		w.Header().Set("Access-Control-Allow-Origin", h.allowedOriginForRequest(r.Header.Get("Origin")))
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")

		requestHeaders := strings.TrimSpace(r.Header.Get("Access-Control-Request-Headers"))
		if requestHeaders != "" {
			w.Header().Set("Access-Control-Allow-Headers", requestHeaders)
		} else {
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Accept")
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) allowedOriginForRequest(requestOrigin string) string {
	allowed := strings.TrimSpace(h.AllowedOrigin)
	if allowed == "" {
		return "*"
	}
	if allowed == "*" {
		return allowed
	}

	origin := strings.TrimSpace(requestOrigin)
	if origin == "" {
		return allowed
	}
	if origin == allowed {
		return origin
	}
	if isEquivalentLoopbackOrigin(origin, allowed) {
		return origin
	}
	return allowed
}

func isEquivalentLoopbackOrigin(originA, originB string) bool {
	a, err := url.Parse(originA)
	if err != nil {
		return false
	}
	b, err := url.Parse(originB)
	if err != nil {
		return false
	}
	if !isLoopbackHost(a.Hostname()) || !isLoopbackHost(b.Hostname()) {
		return false
	}
	if a.Port() != b.Port() {
		return false
	}
	return strings.EqualFold(a.Scheme, b.Scheme)
}

func isLoopbackHost(host string) bool {
	switch strings.ToLower(strings.TrimSpace(host)) {
	case "localhost", "127.0.0.1", "::1":
		return true
	default:
		return false
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}
