package gateway

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/c360/semevents/authz"
	"github.com/c360/semevents/errors"
	"github.com/c360/semevents/event"
	"github.com/c360/semevents/metric"
	"github.com/c360/semevents/publisher"
	"github.com/c360/semevents/scheduler"
	"github.com/c360/semevents/wire"
)

// Result is the body of a successful publish response.
type Result struct {
	Status   string `json:"status"`
	Accepted int    `json:"accepted"`
	Relayed  int    `json:"relayed"`
	Commands int    `json:"commands"`
	Failed   int    `json:"failed"`
}

// Handler accepts serialized event streams over HTTP and relays them.
type Handler struct {
	config     Config
	manager    authz.Manager
	publishers []publisher.Publisher
	registry   *event.Registry
	challenge  string
	limiter    *rate.Limiter
	logger     *slog.Logger
	metrics    *metric.Metrics
}

// Option configures a Handler
type Option func(*Handler)

// WithLogger sets the handler logger
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithMetrics records gateway metrics in registry
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(h *Handler) {
		h.metrics = registry.CoreMetrics()
	}
}

// WithChallenge sets the WWW-Authenticate value sent on 401 responses
func WithChallenge(challenge string) Option {
	return func(h *Handler) {
		h.challenge = challenge
	}
}

// WithRegistry sets the event registry used to build records
func WithRegistry(reg *event.Registry) Option {
	return func(h *Handler) {
		if reg != nil {
			h.registry = reg
		}
	}
}

// NewHandler creates a publish handler. A nil manager allows every request.
func NewHandler(cfg Config, manager authz.Manager, pubs []publisher.Publisher, opts ...Option) (*Handler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if manager == nil {
		manager = authz.ManagerFunc(func(authz.Request) authz.Decision { return authz.Allow() })
	}

	h := &Handler{
		config:     cfg,
		manager:    manager,
		publishers: pubs,
		registry:   event.DefaultRegistry(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With("component", "gateway")

	if cfg.RateLimit > 0 {
		h.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst)
	}
	return h, nil
}

// Path returns the endpoint the handler serves
func (h *Handler) Path() string {
	return h.config.Path
}

// RegisterHTTPHandlers registers the handler on mux at prefix + Path()
func (h *Handler) RegisterHTTPHandlers(prefix string, mux *http.ServeMux) {
	path := strings.TrimSuffix(prefix, "/") + h.config.Path
	mux.Handle(path, h)
	h.logger.Info("Publish endpoint registered", "path", path, "publishers", len(h.publishers))
}

// ServeHTTP implements http.Handler
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	w.Header().Set("X-Request-ID", requestID)
	logger := h.logger.With("request_id", requestID)

	if h.config.EnableCORS {
		h.applyCORS(w, r)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if h.limiter != nil && !h.limiter.Allow() {
		h.writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	decision := h.manager.Authorize(authz.FromHTTP(r))
	if !decision.Allowed {
		if h.metrics != nil {
			h.metrics.RecordAuthDenied(int(decision.Reason))
		}
		logger.Warn("Publish denied", "remote", r.RemoteAddr, "reason", decision.Reason.String())
		h.deny(w, decision.Reason)
		return
	}

	result, err := h.consume(r, logger)
	if err != nil {
		status := h.mapErrorToHTTPStatus(err)
		logger.Warn("Publish rejected", "error", err, "status", status,
			"accepted", result.Accepted, "relayed", result.Relayed)
		h.writeError(w, status, h.sanitizeError(status))
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// consume reads the body, relaying every event as soon as it is parsed.
func (h *Handler) consume(r *http.Request, logger *slog.Logger) (Result, error) {
	result := Result{Status: "ok"}
	body := http.MaxBytesReader(nil, r.Body, h.config.MaxRequestSize)
	defer body.Close()

	ctx, cancel := context.WithTimeout(r.Context(), h.config.RelayTimeout)
	defer cancel()

	d := wire.NewDeserializer(h.registry)
	buf := make([]byte, h.config.ChunkSize)
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			recs, err := d.Deserialize(buf[:n], wire.DeferBody())
			h.relay(ctx, recs, &result, logger)
			if err != nil {
				return result, h.formatError(err)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			var tooLarge *http.MaxBytesError
			if stderrors.As(readErr, &tooLarge) {
				return result, errors.WrapInvalid(readErr, "Handler", "consume", "read body")
			}
			return result, errors.WrapTransient(readErr, "Handler", "consume", "read body")
		}
	}

	recs, err := d.Deserialize(nil, wire.DeferBody(), wire.Complete())
	h.relay(ctx, recs, &result, logger)
	if err != nil {
		return result, h.formatError(err)
	}

	logger.Debug("Publish accepted", "accepted", result.Accepted,
		"relayed", result.Relayed, "commands", result.Commands, "failed", result.Failed)
	return result, nil
}

func (h *Handler) formatError(err error) error {
	if h.metrics != nil {
		h.metrics.RecordFormatError()
	}
	return errors.WrapInvalid(err, "Handler", "consume", "parse event stream")
}

// relay consumes commands and fans every other record out to the publishers.
func (h *Handler) relay(ctx context.Context, recs []*event.Record, result *Result, logger *slog.Logger) {
	for _, rec := range recs {
		result.Accepted++
		if h.metrics != nil {
			h.metrics.RecordEvent(rec.Kind().String())
		}

		if rec.IsCommand() {
			result.Commands++
			logger.Info("Command received", "source", rec.SourceID(), "command", rec.Command())
			continue
		}

		if h.config.RelayID != "" {
			rec.AppendAggregatorID(h.config.RelayID)
		}
		if len(h.publishers) == 0 {
			continue
		}
		if err := scheduler.NewPublishTask(rec, h.publishers).Run(ctx); err != nil {
			result.Failed++
			logger.Error("Relay failed", "event_id", rec.EventID(), "error", err)
			continue
		}
		result.Relayed++
	}
}

// deny writes the response selected by a denial reason.
func (h *Handler) deny(w http.ResponseWriter, reason authz.Reason) {
	switch reason {
	case authz.ReasonMissingCredentials, authz.ReasonBadChallenge:
		if h.challenge != "" {
			w.Header().Set("WWW-Authenticate", h.challenge)
		}
		h.writeError(w, http.StatusUnauthorized, "authorization required")
	default:
		h.writeError(w, http.StatusForbidden, "access denied")
	}
}

// applyCORS applies CORS headers based on configuration
func (h *Handler) applyCORS(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	allowed := false
	for _, o := range h.config.CORSOrigins {
		if o == "*" || o == origin {
			allowed = true
			break
		}
	}
	if !allowed {
		return
	}
	if origin == "" {
		origin = "*"
	}
	w.Header().Set("Access-Control-Allow-Origin", origin)
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
}

// mapErrorToHTTPStatus maps consume errors to HTTP status codes
func (h *Handler) mapErrorToHTTPStatus(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case stderrors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.IsInvalid(err):
		return http.StatusBadRequest
	case errors.IsTransient(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// sanitizeError returns a safe error message for external clients
func (h *Handler) sanitizeError(status int) string {
	switch status {
	case http.StatusRequestEntityTooLarge:
		return "request too large"
	case http.StatusBadRequest:
		return "malformed event stream"
	case http.StatusServiceUnavailable:
		return "service temporarily unavailable"
	default:
		return "internal server error"
	}
}

// writeError writes an error response
func (h *Handler) writeError(w http.ResponseWriter, statusCode int, message string) {
	if h.metrics != nil {
		h.metrics.RecordRequest(statusCode)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	data, _ := json.Marshal(map[string]any{
		"error":  message,
		"status": statusCode,
	})
	_, _ = w.Write(data)
}

func (h *Handler) writeJSON(w http.ResponseWriter, statusCode int, v any) {
	if h.metrics != nil {
		h.metrics.RecordRequest(statusCode)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}
