package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"bifrost-graphql/internal/logging"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// GraphQLTracingMiddleware instruments GraphQL execution with an inner span.
// The span carries the operation shape so per-table resolver spans nest
// under a single graphql.execute parent.
func GraphQLTracingMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			query, operationName := extractGraphQLRequest(r)
			if strings.TrimSpace(query) == "" {
				next.ServeHTTP(w, r)
				return
			}

			tracer := otel.Tracer("bifrost-graphql/graphql")
			ctx, span := tracer.Start(r.Context(), "graphql.execute")
			defer span.End()

			if spanCtx := span.SpanContext(); spanCtx.IsValid() {
				reqLogger := logging.FromContext(ctx).WithFields(
					slog.String("trace_id", spanCtx.TraceID().String()),
					slog.String("span_id", spanCtx.SpanID().String()),
				)
				ctx = logging.WithLogger(ctx, reqLogger)
			}

			if span.IsRecording() {
				attrs := make([]attribute.KeyValue, 0, 5)
				if operationName != "" {
					attrs = append(attrs, attribute.String("graphql.operation.name", operationName))
				}
				if metadata, err := extractQueryMetadata(query, operationName); err == nil && metadata != nil {
					attrs = append(attrs,
						attribute.String("graphql.operation.type", metadata.operationType),
						attribute.Int("graphql.query.field_count", metadata.fieldCount),
						attribute.Int("graphql.query.depth", metadata.selectionDepth),
						attribute.Int("graphql.query.variable_count", metadata.variableCount),
					)
				}
				span.SetAttributes(attrs...)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
