package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"moneybot/internal/amqp"
	applog "moneybot/internal/log"
	"moneybot/internal/middleware/ratelimit"
	"moneybot/internal/middleware/security"
	"moneybot/internal/middleware/trace"
	"moneybot/internal/services"
)

const defaultMaxBodyBytes = 64 << 10

// MessageHandler answers one chat message synchronously.
type MessageHandler interface {
	Handle(ctx context.Context, msg services.Message) services.Reply
}

// Enqueuer hands a chat message to the worker queue.
type Enqueuer interface {
	PublishInbound(ctx context.Context, msg *amqp.InboundMessage) error
}

type Options struct {
	// Limiter bounds webhook calls per sender. Nil disables limiting.
	Limiter *ratelimit.Limiter
	// Enqueuer, when set, makes the webhook queue messages and answer 202
	// instead of replying inline.
	Enqueuer       Enqueuer
	TrustedProxies []string
	MaxBodyBytes   int64
	Logger         *applog.Logger
	Now            func() time.Time
}

type Server struct {
	http.Server
	bot      MessageHandler
	enqueuer Enqueuer
	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware
	maxBody  int64
	now      func() time.Time
	logger   *applog.Logger

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, bot MessageHandler, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = applog.Wrap(slog.Default(), applog.ComponentHTTP)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}

	detector := security.NewDetector()
	for _, cidr := range opts.TrustedProxies {
		if err := detector.AddTrustedProxy(cidr); err != nil {
			logger.Warn("Ignoring trusted proxy", applog.FieldError, err)
		}
	}

	s := &Server{
		bot:      bot,
		enqueuer: opts.Enqueuer,
		limiter:  opts.Limiter,
		detector: detector,
		tracer:   trace.NewMiddleware(detector.ExtractClientIP),
		maxBody:  opts.MaxBodyBytes,
		now:      opts.Now,
		logger:   logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", handleIndex)
	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleReady)
	mux.HandleFunc("/webhook", s.handleWebhook)

	var handler http.Handler = mux
	handler = detector.Middleware(handler)
	handler = applog.RequestIDMiddleware(trace.RequestID)(handler)
	handler = s.tracer.Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = applog.Middleware(logger)(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Shutdown gracefully shuts down the server and its limiter.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.limiter != nil {
			s.limiter.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		ErrorResponse(http.StatusNotFound, "not found").Write(w)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("moneybot is running"))
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
