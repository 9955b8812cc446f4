package obs

import (
	"context"
	"crypto/tls"
	"strings"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
)

// defaultCollectorEndpoint is the conventional local OTLP/gRPC collector.
const defaultCollectorEndpoint = "localhost:4317"

// collectorDialTimeout bounds the blocking gRPC dial so a missing collector
// fails over to OTLP/HTTP instead of stalling client startup.
const collectorDialTimeout = 10 * time.Second

// newOTLPExporter connects to the collector over gRPC and falls back to
// OTLP/HTTP when the gRPC endpoint cannot be reached in time. The gRPC
// error is the one reported when both transports fail.
func newOTLPExporter(ctx context.Context, opts Options) (sdktrace.SpanExporter, error) {
	endpoint, insecure := collectorTarget(opts)

	ctx, cancel := context.WithTimeout(ctx, collectorDialTimeout)
	defer cancel()

	exporter, grpcErr := otlpGRPC(ctx, endpoint, insecure, opts.Headers)
	if grpcErr == nil {
		return exporter, nil
	}
	exporter, httpErr := otlpHTTP(ctx, endpoint, insecure, opts.Headers)
	if httpErr != nil {
		return nil, grpcErr
	}
	return exporter, nil
}

// collectorTarget normalizes the configured endpoint. Config files often
// carry a full URL where the exporters want host:port; an http scheme also
// implies an insecure connection.
func collectorTarget(opts Options) (string, bool) {
	endpoint := strings.TrimSpace(opts.Endpoint)
	switch {
	case endpoint == "":
		return defaultCollectorEndpoint, opts.Insecure
	case strings.HasPrefix(endpoint, "http://"):
		return strings.TrimSuffix(strings.TrimPrefix(endpoint, "http://"), "/"), true
	case strings.HasPrefix(endpoint, "https://"):
		return strings.TrimSuffix(strings.TrimPrefix(endpoint, "https://"), "/"), opts.Insecure
	}
	return endpoint, opts.Insecure
}

func otlpGRPC(ctx context.Context, endpoint string, insecure bool, headers map[string]string) (sdktrace.SpanExporter, error) {
	grpcOpts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithDialOption(grpc.WithBlock()),
	}
	if insecure {
		grpcOpts = append(grpcOpts, otlptracegrpc.WithInsecure())
	} else {
		grpcOpts = append(grpcOpts, otlptracegrpc.WithTLSCredentials(credentials.NewTLS(&tls.Config{})))
	}
	if len(headers) > 0 {
		grpcOpts = append(grpcOpts, otlptracegrpc.WithHeaders(headers))
	}
	return otlptracegrpc.New(ctx, grpcOpts...)
}

func otlpHTTP(ctx context.Context, endpoint string, insecure bool, headers map[string]string) (sdktrace.SpanExporter, error) {
	httpOpts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(endpoint)}
	if insecure {
		httpOpts = append(httpOpts, otlptracehttp.WithInsecure())
	}
	if len(headers) > 0 {
		httpOpts = append(httpOpts, otlptracehttp.WithHeaders(headers))
	}
	return otlptracehttp.New(ctx, httpOpts...)
}
