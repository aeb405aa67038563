package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"smsrelay/internal/dto"
	"smsrelay/internal/hub"
	"smsrelay/internal/media"
	"smsrelay/internal/observability/middleware"
	"smsrelay/internal/service"
)

type Options struct {
	RateLimitPerMin int
	CORSOrigins     []string
	MaxUploadBytes  int64
	UploadDir       string
}

type Handler struct {
	svc       *service.Service
	hub       *hub.Hub
	media     *media.Store
	maxUpload int64
}

func NewRouter(svc *service.Service, h *hub.Hub, m *media.Store, opts Options) http.Handler {
	handler := &Handler{svc: svc, hub: h, media: m, maxUpload: opts.MaxUploadBytes}

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	if opts.RateLimitPerMin > 0 {
		r.Use(httprate.LimitByIP(opts.RateLimitPerMin, 1*time.Minute))
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   originsIfSet(opts.CORSOrigins),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/api/incoming", handler.handleIncoming)
	r.Get("/api/messages", handler.handleMessages)
	r.Post("/api/devices", handler.handleRegisterDevice)
	r.Get("/api/devices", handler.handleDevices)
	r.Get("/ws", h.Handle)

	if opts.UploadDir != "" {
		fs := http.StripPrefix("/uploads/", http.FileServer(http.Dir(opts.UploadDir)))
		r.Handle("/uploads/*", fs)
	}

	return r
}

// handleIncoming accepts a JSON submission or, for MMS, a multipart form with
// an image under the "media" field.
func (h *Handler) handleIncoming(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())
	traceID := middleware.TraceIDFromContext(r.Context())

	var in service.SubmitInput
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		parsed, err := h.parseMultipart(r)
		if err != nil {
			status := http.StatusBadRequest
			if errors.Is(err, media.ErrTooLarge) {
				status = http.StatusRequestEntityTooLarge
			}
			http.Error(w, err.Error(), status)
			slog.Warn("incoming multipart rejected", "error", err, "request_id", reqID, "trace_id", traceID)
			return
		}
		in = parsed
	} else {
		var req dto.IncomingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			slog.Warn("incoming decode failed", "error", err, "request_id", reqID, "trace_id", traceID)
			return
		}
		in = service.SubmitInput{
			DeviceID: req.DeviceID,
			Sender:   req.From,
			Body:     req.Body,
			MediaRef: req.MediaRef,
		}
	}

	msg, err := h.svc.Submit(r.Context(), in)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRequest) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			slog.Warn("incoming rejected", "error", err, "request_id", reqID, "trace_id", traceID)
			return
		}
		http.Error(w, "storage error", http.StatusInternalServerError)
		slog.Error("incoming store failed", "error", err, "request_id", reqID, "trace_id", traceID)
		return
	}

	slog.Info("message stored", "id", msg.ID, "device_id", msg.DeviceID, "request_id", reqID, "trace_id", traceID)
	writeJSON(w, http.StatusCreated, dto.FromStoreMessage(msg))
}

func (h *Handler) parseMultipart(r *http.Request) (service.SubmitInput, error) {
	if err := r.ParseMultipartForm(h.maxUpload + 1<<20); err != nil {
		return service.SubmitInput{}, err
	}

	deviceID := r.FormValue("deviceId")
	if deviceID == "" {
		deviceID = r.FormValue("device_id")
	}
	from := r.FormValue("from")
	if from == "" {
		from = r.FormValue("phone_number")
	}
	body := r.FormValue("body")

	in := service.SubmitInput{DeviceID: deviceID, Sender: from, Body: &body}

	file, header, err := r.FormFile("media")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		return in, nil
	case err != nil:
		return service.SubmitInput{}, err
	}
	defer file.Close()

	ref, err := h.media.Save(header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		return service.SubmitInput{}, err
	}
	in.MediaRef = &ref
	return in, nil
}

func (h *Handler) handleMessages(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	msgs, err := h.svc.Recent(r.Context(), limit, offset)
	if err != nil {
		http.Error(w, "storage error", http.StatusInternalServerError)
		slog.Error("recent messages failed", "error", err, "request_id", middleware.RequestIDFromContext(r.Context()))
		return
	}

	out := make([]dto.RecentMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, dto.RecentMessage{
			Message:     dto.FromStoreMessage(m),
			DisplayText: dto.DisplayText(m.Body),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleRegisterDevice(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	var req dto.RegisterDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		slog.Warn("device registration decode failed", "error", err, "request_id", reqID)
		return
	}
	if err := h.svc.RegisterDevice(r.Context(), req.PhoneNumber, req.Country, req.Carrier); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, service.ErrInvalidRequest) {
			status = http.StatusBadRequest
		}
		http.Error(w, err.Error(), status)
		slog.Warn("device registration failed", "error", err, "request_id", reqID)
		return
	}
	slog.Info("device registered", "phone_number", req.PhoneNumber, "request_id", reqID)
	writeJSON(w, http.StatusCreated, req)
}

func (h *Handler) handleDevices(w http.ResponseWriter, r *http.Request) {
	grouped, err := h.svc.DevicesByCountry(r.Context())
	if err != nil {
		http.Error(w, "storage error", http.StatusInternalServerError)
		slog.Error("device listing failed", "error", err, "request_id", middleware.RequestIDFromContext(r.Context()))
		return
	}
	out := make(map[string][]dto.Device, len(grouped))
	for country, bucket := range grouped {
		out[country] = dto.DevicesFromStore(bucket)
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func originsIfSet(origins []string) []string {
	cleaned := make([]string, 0, len(origins))
	for _, o := range origins {
		if o = strings.TrimSpace(o); o != "" {
			cleaned = append(cleaned, o)
		}
	}
	if len(cleaned) == 0 {
		return []string{"*"}
	}
	return cleaned
}
