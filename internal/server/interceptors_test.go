package server

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// stubHandler is a no-op gRPC handler used in interceptor tests.
func stubHandler(_ context.Context, _ any) (any, error) {
	return "ok", nil
}

var testInfo = &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}

func TestUnaryObserve_PassesThrough(t *testing.T) {
	ts := newTestServer(t)
	resp, err := ts.unaryObserve(context.Background(), nil, testInfo, stubHandler)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if resp != "ok" {
		t.Fatalf("expected 'ok', got %v", resp)
	}
	if got := testutil.ToFloat64(ts.metrics.RPCsTotal.WithLabelValues(testInfo.FullMethod, "OK")); got != 1 {
		t.Fatalf("OK count = %v, want 1", got)
	}
}

func TestUnaryObserve_ReturnsHandlerError(t *testing.T) {
	ts := newTestServer(t)
	want := status.Error(codes.Unavailable, "down")
	_, err := ts.unaryObserve(context.Background(), nil, testInfo, func(context.Context, any) (any, error) {
		return nil, want
	})
	if !errors.Is(err, want) {
		t.Fatalf("expected handler error, got %v", err)
	}
	if got := testutil.ToFloat64(ts.metrics.RPCsTotal.WithLabelValues(testInfo.FullMethod, "Unavailable")); got != 1 {
		t.Fatalf("Unavailable count = %v, want 1", got)
	}
}

func TestUnaryRecover_NoPanic(t *testing.T) {
	ts := newTestServer(t)
	resp, err := ts.unaryRecover(context.Background(), nil, testInfo, stubHandler)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if resp != "ok" {
		t.Fatalf("expected 'ok', got %v", resp)
	}
}

func TestUnaryRecover_Panic(t *testing.T) {
	ts := newTestServer(t)
	_, err := ts.unaryRecover(context.Background(), nil, testInfo, func(context.Context, any) (any, error) {
		panic("boom")
	})
	if status.Code(err) != codes.Internal {
		t.Fatalf("expected Internal, got %v", err)
	}
}
