package grpc

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/academyhub/internal/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestRecoveryInterceptor_ConvertsPanic(t *testing.T) {
	s := NewGRPCServer("", logging.Discard(), nil)
	info := &grpc.UnaryServerInfo{FullMethod: "/pkg.Service/Method"}

	_, err := s.recoveryInterceptor(context.Background(), nil, info, func(context.Context, any) (any, error) {
		panic("boom")
	})
	if status.Code(err) != codes.Internal {
		t.Fatalf("expected Internal, got %v", status.Code(err))
	}
}

func TestLoggingInterceptor_PassesThrough(t *testing.T) {
	s := NewGRPCServer("", logging.Discard(), nil)
	info := &grpc.UnaryServerInfo{FullMethod: "/pkg.Service/Method"}

	resp, err := s.loggingInterceptor(context.Background(), "req", info, func(_ context.Context, req any) (any, error) {
		return req.(string) + "-ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp != "req-ok" {
		t.Fatalf("unexpected resp: %v", resp)
	}
}
