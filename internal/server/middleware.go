package server

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const maxBodyBytes = 1 << 20

// captureBody buffers the request body so handlers can tell an empty body
// from a missing one. Bodies over limit are refused with 413.
func captureBody(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
			if err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					respondStatusError(w, newAPIError(http.StatusRequestEntityTooLarge, "body_too_large", "request body too large", map[string]any{"limit": limit}))
					return
				}
				respondStatusError(w, newAPIError(http.StatusBadRequest, "bad_request", "unreadable body", nil))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(data))
			ctx := context.WithValue(r.Context(), requestKey{}, r)
			ctx = context.WithValue(ctx, bodyBytesKey{}, data)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type responseData struct {
	status int
	size   int
}

type loggingResponseWriter struct {
	http.ResponseWriter
	responseData *responseData
}

func (r *loggingResponseWriter) Write(b []byte) (int, error) {
	size, err := r.ResponseWriter.Write(b)
	r.responseData.size += size
	return size, err
}

func (r *loggingResponseWriter) WriteHeader(statusCode int) {
	r.ResponseWriter.WriteHeader(statusCode)
	r.responseData.status = statusCode
}

// requestLogger logs one line per request.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			data := &responseData{status: http.StatusOK}
			lw := loggingResponseWriter{ResponseWriter: w, responseData: data}
			next.ServeHTTP(&lw, r)
			level := slog.LevelInfo
			if data.status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			logger.Log(r.Context(), level, "request",
				"uri", r.RequestURI,
				"method", r.Method,
				"status", data.status,
				"duration", time.Since(start),
				"size", data.size,
			)
		})
	}
}
