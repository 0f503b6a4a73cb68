// Package health serves liveness and build information over HTTP.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/m3rciful/pagebot/core/buildinfo"
	"github.com/m3rciful/pagebot/core/dispatch"
	"github.com/m3rciful/pagebot/core/logger"
)

const pingTimeout = 2 * time.Second

// Pinger checks the durable store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DispatchStats exposes the dispatcher counters.
type DispatchStats interface {
	Stats() dispatch.Stats
}

// SenderStats exposes outbound call counters.
type SenderStats interface {
	Sent() uint64
	Failed() uint64
}

// Options lists what /healthz reports on. Nil fields are left out.
type Options struct {
	Store      Pinger
	Dispatcher DispatchStats
	Sender     SenderStats
}

// Report is the /healthz body.
type Report struct {
	Status     string          `json:"status"`
	DB         string          `json:"db"`
	Err        string          `json:"err,omitempty"`
	Dispatcher *dispatch.Stats `json:"dispatcher,omitempty"`
	Sender     *SenderReport   `json:"sender,omitempty"`
}

// SenderReport is the outbound part of Report.
type SenderReport struct {
	Sent   uint64 `json:"sent"`
	Failed uint64 `json:"failed"`
}

// NewRouter builds the health routes.
func NewRouter(opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		rep := check(req.Context(), opts)
		code := http.StatusOK
		if rep.Status != "ok" {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, rep)
	})
	r.Get("/version", func(w http.ResponseWriter, _ *http.Request) {
		info := buildinfo.Read()
		if info.Go == "" {
			info.Go = runtime.Version()
		}
		writeJSON(w, http.StatusOK, info)
	})
	return r
}

func check(ctx context.Context, opts Options) Report {
	rep := Report{Status: "ok", DB: "skip"}
	if opts.Store != nil {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		if err := opts.Store.Ping(pingCtx); err != nil {
			rep.Status, rep.DB, rep.Err = "fail", "fail", err.Error()
		} else {
			rep.DB = "ok"
		}
	}
	if opts.Dispatcher != nil {
		st := opts.Dispatcher.Stats()
		rep.Dispatcher = &st
	}
	if opts.Sender != nil {
		rep.Sender = &SenderReport{Sent: opts.Sender.Sent(), Failed: opts.Sender.Failed()}
	}
	return rep
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		ctx := logger.WithTrace(r.Context(), chimiddleware.GetReqID(r.Context()))
		attrs := []slog.Attr{
			slog.String("handler", r.URL.Path),
			slog.Int("code", ww.Status()),
			slog.Duration("duration", logger.Took(start)),
		}
		if ww.Status() >= http.StatusInternalServerError {
			logger.Warn(ctx, logger.CompHTTP, "http.request", append(attrs, slog.String("status", "fail"))...)
			return
		}
		logger.Debug(ctx, logger.CompHTTP, "http.request", append(attrs, slog.String("status", "ok"))...)
	})
}

// Server runs the health router on its own listener.
type Server struct {
	srv *http.Server
}

// NewServer binds h to listen, e.g. ":8081".
func NewServer(listen string, h http.Handler) *Server {
	return &Server{srv: &http.Server{
		Addr:              listen,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}}
}

// Start listens and serves in the background. It fails fast if the address is taken.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	logger.Info(context.Background(), logger.CompHTTP, "http.listen",
		slog.String("status", "ok"),
		slog.String("listen", ln.Addr().String()),
	)
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(context.Background(), logger.CompHTTP, "http.serve",
				slog.String("status", "fail"),
				slog.String("err", err.Error()),
			)
		}
	}()
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
