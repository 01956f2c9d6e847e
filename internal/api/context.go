package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/terra-clan/staffing-engine/internal/models"
)

type contextKey string

const clientContextKey contextKey = "api_client"

// ClientFromContext returns the authenticated API client, or nil when the
// request was not authenticated
func ClientFromContext(ctx context.Context) *models.ApiClient {
	client, ok := ctx.Value(clientContextKey).(*models.ApiClient)
	if !ok {
		return nil
	}
	return client
}

// ContextWithClient attaches the authenticated API client to ctx
func ContextWithClient(ctx context.Context, client *models.ApiClient) context.Context {
	return context.WithValue(ctx, clientContextKey, client)
}

// requestLogger scopes the server logger to one request: its id, route and
// the calling client when auth has run
func (s *Server) requestLogger(r *http.Request) *zap.Logger {
	fields := []zap.Field{
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
	}
	if client := ClientFromContext(r.Context()); client != nil {
		fields = append(fields,
			zap.String("client_id", client.ID),
			zap.String("client", client.Name),
		)
	}
	return s.logger.With(fields...)
}
