package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/sheetsync/internal/engine"
)

// MaxBodyBytes bounds a request body. A full-screen Gray8 bitmap is a few
// megabytes before base64.
const MaxBodyBytes = 64 << 20

// Server serves Service over HTTP.
type Server struct {
	svc Service

	// Now stamps press requests. Defaults to time.Now.
	Now func() time.Time
	// NewName names transients uploaded without one.
	NewName func() string
}

// NewServer creates a server dispatching to svc.
func NewServer(svc Service) *Server {
	return &Server{
		svc:     svc,
		Now:     time.Now,
		NewName: func() string { return "transient-" + uuid.NewString() },
	}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	route(mux, PathFocusedWindow, func(ctx context.Context, r *http.Request) (any, error) {
		var req FocusedWindowRequest
		if err := decode(r, &req); err != nil {
			return nil, err
		}
		return ack(s.svc.FocusedWindow(ctx, req.info()))
	})

	route(mux, PathScreenInfo, func(ctx context.Context, r *http.Request) (any, error) {
		si, err := s.svc.ScreenInfo(ctx)
		if err != nil {
			return nil, err
		}
		return screenInfoResponse(si), nil
	})

	route(mux, PathContentInfo, func(ctx context.Context, r *http.Request) (any, error) {
		return s.svc.ContentInfo(ctx)
	})

	route(mux, PathUploadEntry, func(ctx context.Context, r *http.Request) (any, error) {
		var req UploadEntryRequest
		if err := decode(r, &req); err != nil {
			return nil, err
		}
		name, err := NormalizeName(req.Name)
		if err != nil {
			return nil, err
		}
		img, err := DecodeBitmap(req.Image)
		if err != nil {
			return nil, err
		}
		for i, t := range req.Tags {
			if t == "" {
				return nil, engine.ProtocolError("tag %d is empty", i)
			}
		}
		return ack(s.svc.UploadEntry(ctx, name, img, req.Tags))
	})

	route(mux, PathRemoveEntry, func(ctx context.Context, r *http.Request) (any, error) {
		var req NameRequest
		if err := decode(r, &req); err != nil {
			return nil, err
		}
		name, err := NormalizeName(req.Name)
		if err != nil {
			return nil, err
		}
		return ack(s.svc.RemoveEntry(ctx, name))
	})

	route(mux, PathUploadTransient, func(ctx context.Context, r *http.Request) (any, error) {
		var req UploadTransientRequest
		if err := decode(r, &req); err != nil {
			return nil, err
		}
		img, err := DecodeBitmap(req.Image)
		if err != nil {
			return nil, err
		}
		name := req.Name
		if name == "" {
			name = s.NewName()
		}
		return ack(s.svc.UploadTransient(ctx, name, img))
	})

	route(mux, PathClearTransient, func(ctx context.Context, r *http.Request) (any, error) {
		return ack(s.svc.ClearTransient(ctx))
	})

	route(mux, PathAddEntryTags, func(ctx context.Context, r *http.Request) (any, error) {
		var req EntryTagsRequest
		if err := decode(r, &req); err != nil {
			return nil, err
		}
		name, err := NormalizeName(req.Name)
		if err != nil {
			return nil, err
		}
		if err := ValidateTags(req.Tags); err != nil {
			return nil, err
		}
		return ack(s.svc.AddEntryTags(ctx, name, req.Tags))
	})

	route(mux, PathRemoveEntryTags, func(ctx context.Context, r *http.Request) (any, error) {
		var req EntryTagsRequest
		if err := decode(r, &req); err != nil {
			return nil, err
		}
		name, err := NormalizeName(req.Name)
		if err != nil {
			return nil, err
		}
		sel, err := Selector(req.Tags, req.All)
		if err != nil {
			return nil, err
		}
		return ack(s.svc.RemoveEntryTags(ctx, name, sel))
	})

	route(mux, PathAddWmClassTags, func(ctx context.Context, r *http.Request) (any, error) {
		var req WmClassTagsRequest
		if err := decode(r, &req); err != nil {
			return nil, err
		}
		if err := ValidateWmClass(req.WmClass); err != nil {
			return nil, err
		}
		if err := ValidateTags(req.Tags); err != nil {
			return nil, err
		}
		return ack(s.svc.AddWmClassTags(ctx, req.WmClass, req.Tags))
	})

	route(mux, PathRemoveWmClassTags, func(ctx context.Context, r *http.Request) (any, error) {
		var req WmClassTagsRequest
		if err := decode(r, &req); err != nil {
			return nil, err
		}
		if err := ValidateWmClass(req.WmClass); err != nil {
			return nil, err
		}
		sel, err := Selector(req.Tags, req.All)
		if err != nil {
			return nil, err
		}
		return ack(s.svc.RemoveWmClassTags(ctx, req.WmClass, sel))
	})

	route(mux, PathInput, func(ctx context.Context, r *http.Request) (any, error) {
		var req InputRequest
		if err := decode(r, &req); err != nil {
			return nil, err
		}
		events, err := DecodeEvents(req, s.Now())
		if err != nil {
			return nil, err
		}
		return ack(s.svc.Input(ctx, events...))
	})

	return mux
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errc := make(chan error, 1)
	go func() {
		slog.Info("transport listening", "addr", ln.Addr().String())
		errc <- srv.Serve(ln)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		slog.Info("transport stopped")
		return nil
	}
}

type handlerFunc func(ctx context.Context, r *http.Request) (any, error)

func route(mux *http.ServeMux, path string, h handlerFunc) {
	mux.HandleFunc("POST "+path, func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
		resp, err := h(r.Context(), r)
		if err != nil {
			status, body := errorResponse(err)
			level := slog.LevelWarn
			if status >= 500 {
				level = slog.LevelError
			}
			slog.Log(r.Context(), level, "request failed", "path", path, "status", status, "error", err)
			writeJSON(w, status, body)
			return
		}
		slog.Debug("request served", "path", path)
		writeJSON(w, http.StatusOK, resp)
	})
}

func decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return engine.ProtocolError("decode body: %v", err)
	}
	return nil
}

func ack(err error) (any, error) {
	if err != nil {
		return nil, err
	}
	return Ack{OK: true}, nil
}

// errorResponse maps err to a status and wire body.
func errorResponse(err error) (int, ErrorBody) {
	switch engine.Classify(err) {
	case engine.CodeInternalProtocol:
		return http.StatusBadRequest, ErrorBody{Code: CodeInvalidArgument, Message: err.Error()}
	case engine.CodeNotFound:
		return http.StatusNotFound, ErrorBody{Code: CodeNotFound, Message: err.Error()}
	default:
		return http.StatusInternalServerError, ErrorBody{Code: CodeInternal, Message: err.Error()}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("write response", "error", err)
	}
}
