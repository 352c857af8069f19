package log

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type correlationIDType int

const (
	requestIDKey correlationIDType = iota
	peerIDKey
)

// WithRequestID returns a context which knows its request ID.
// A request ID tracks the lifecycle of a single request across goroutines,
// e.g. an incoming message received over the network.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// WithNewRequestID does the same thing as WithRequestID but generates a new, random requestID.
func WithNewRequestID(ctx context.Context) context.Context {
	return WithRequestID(ctx, uuid.NewString())
}

// ExtractRequestID extracts the request id from a context object.
func ExtractRequestID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey).(string)
	return id, ok
}

// WithPeer annotates the context with the remote peer that caused the request.
func WithPeer(ctx context.Context, peer string) context.Context {
	return context.WithValue(ctx, peerIDKey, peer)
}

// ZContext adds the correlation fields stored in ctx to a log entry.
func ZContext(ctx context.Context) zap.Field {
	return zap.Inline(contextFields{ctx})
}

type contextFields struct {
	ctx context.Context
}

func (c contextFields) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	if id, ok := ExtractRequestID(c.ctx); ok {
		enc.AddString("request_id", id)
	}
	if peer, ok := c.ctx.Value(peerIDKey).(string); ok {
		enc.AddString("peer_id", peer)
	}
	return nil
}
