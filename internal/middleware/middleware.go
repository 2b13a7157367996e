package middleware

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"sitecheckout/internal/logger"
)

// Request context keys
type contextKey string

const (
	RequestIDKey contextKey = "request_id"
)

// Standard API error response
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   string `json:"details,omitempty"`
	RequestID string `json:"request_id"`
}

// Standard API success response
type APIResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	RequestID string      `json:"request_id"`
}

// Middleware chain for API endpoints
func APIMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return RequestID(
		Logging(
			ErrorHandling(next),
		),
	)
}

// RequestID middleware adds a unique request ID to each request
func RequestID(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := generateRequestID()
		ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

// Logging middleware logs all API requests with consistent format
func Logging(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := GetRequestID(r.Context())

		logger.LogInfo("API request started [%s] %s %s from %s", requestID, r.Method, r.URL.Path, logger.GetClientIP(r))

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		duration := time.Since(start)
		logger.LogInfo("API request completed [%s] status=%d in %dms", requestID, rw.statusCode, duration.Milliseconds())
	}
}

// ErrorHandling middleware provides panic recovery and consistent error responses
func ErrorHandling(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				logger.LogError("Panic in API handler [%s] %s %s: %v", GetRequestID(r.Context()), r.Method, r.URL.Path, err)
				WriteAPIError(w, r, http.StatusInternalServerError, "internal_error",
					"An internal error occurred", "")
			}
		}()
		next.ServeHTTP(w, r)
	}
}

func generateRequestID() string {
	bytes := make([]byte, 8)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

// GetRequestID returns the ID set by RequestID, or "".
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// WriteAPIError writes a standardized error response
func WriteAPIError(w http.ResponseWriter, r *http.Request, statusCode int, code, message, details string) {
	response := APIError{
		Code:      code,
		Message:   message,
		Details:   details,
		RequestID: GetRequestID(r.Context()),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(response)
}

// WriteAPISuccess writes a standardized success response
func WriteAPISuccess(w http.ResponseWriter, r *http.Request, data interface{}) {
	response := APIResponse{
		Success:   true,
		Data:      data,
		RequestID: GetRequestID(r.Context()),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// ParseJSONRequest parses JSON request body into the provided struct
func ParseJSONRequest(r *http.Request, v interface{}) error {
	if !strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		return fmt.Errorf("content-type must be application/json")
	}

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}
