// Package httpapi exposes the chat gateway over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"hypnosd/internal/gateway"
	"hypnosd/pkg/types"
)

// DroppedTurnsHeader carries the number of history turns the prompt left out.
const DroppedTurnsHeader = "X-Dropped-Turns"

// Service defines the methods required by the HTTP API layer.
type Service interface {
	Ready() bool
	Chat(ctx context.Context, req types.ChatRequest) (gateway.ChatResult, error)
	Reset() types.ResetResponse
}

// Options configures NewMux.
type Options struct {
	// APIKey is the bearer secret for protected routes.
	APIKey string
	// MaxBodyBytes limits JSON request bodies; <= 0 means 1 MiB.
	MaxBodyBytes int64
	// CORSOrigins enables CORS for the listed origins. Empty disables it.
	CORSOrigins []string
	// WebInterface is the HTML file served at "/".
	WebInterface string
	Logger       zerolog.Logger
	// LogLevel is the default per-request log level ("off", "error", "info", "debug").
	LogLevel string
}

// NewMux builds the router. Protected routes require a bearer token equal to
// opts.APIKey.
func NewMux(svc Service, opts Options) http.Handler {
	maxBody := opts.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 1 << 20
	}
	log := opts.Logger

	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	r.Use(MetricsMiddleware)
	r.Use(requestLogger(log, parseLevel(opts.LogLevel)))
	if len(opts.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
			ExposedHeaders: []string{DroppedTurnsHeader},
			MaxAge:         300,
		}))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		now := time.Now()
		writeJSON(w, http.StatusOK, types.HealthResponse{
			Status:          "healthy",
			TextModelLoaded: svc.Ready(),
			Timestamp:       float64(now.UnixNano()) / 1e9,
		})
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("loading"))
	})

	r.Get("/", webInterface(opts.WebInterface))

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(opts.APIKey, log))

		r.Post("/chat", func(w http.ResponseWriter, r *http.Request) {
			if !svc.Ready() {
				writeJSONError(w, http.StatusServiceUnavailable, gateway.ErrNotReady.Error())
				return
			}
			req, err := decodeChat(w, r, maxBody)
			if err != nil {
				writeJSONError(w, statusOf(err), err.Error())
				return
			}
			res, err := svc.Chat(r.Context(), req)
			if err != nil {
				status := statusOf(err)
				if status >= http.StatusInternalServerError {
					ev := log.Error().Int("status", status).Str("gen_id", res.GenerationID)
					if rid := middleware.GetReqID(r.Context()); rid != "" {
						ev = ev.Str("request_id", rid)
					}
					ev.Err(err).Msg("chat failed")
				}
				writeJSONError(w, status, err.Error())
				return
			}
			w.Header().Set(DroppedTurnsHeader, strconv.Itoa(res.Dropped))
			writeJSON(w, http.StatusOK, res.Response)
		})

		r.Post("/reset", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, svc.Reset())
		})

		r.Post("/process_image", func(w http.ResponseWriter, r *http.Request) {
			if !svc.Ready() {
				writeJSONError(w, http.StatusServiceUnavailable, gateway.ErrNotReady.Error())
				return
			}
			writeJSON(w, http.StatusOK, types.ImageResponse{
				Message:     "Image processing not implemented",
				Implemented: false,
			})
		})
	})

	return r
}

// decodeChat parses a /chat body. Unknown roles and missing required fields
// come back as gateway.ValidationError.
func decodeChat(w http.ResponseWriter, r *http.Request, maxBody int64) (types.ChatRequest, error) {
	var req types.ChatRequest
	ct := r.Header.Get("Content-Type")
	if ct != "" && !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		return req, unsupportedMediaType{}
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return req, gateway.ValidationError{Msg: "request body too large"}
		}
		var re *types.RoleError
		if errors.As(err, &re) {
			return req, gateway.ValidationError{Msg: re.Error()}
		}
		// An empty body means no message at all.
		if errors.Is(err, io.EOF) {
			return req, gateway.ValidationError{Msg: gateway.MissingMessage}
		}
		return req, gateway.ValidationError{Msg: "invalid JSON body"}
	}
	return req, nil
}

type unsupportedMediaType struct{}

func (unsupportedMediaType) Error() string   { return "Content-Type must be application/json" }
func (unsupportedMediaType) StatusCode() int { return http.StatusUnsupportedMediaType }
