package middleware

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	vxerrors "github.com/sbalabanov/vx/internal/errors"
	"github.com/sbalabanov/vx/internal/logging"
)

func observed() (*logging.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return &logging.Logger{Logger: zap.New(core)}, logs
}

func TestRunTagsOperation(t *testing.T) {
	logger, logs := observed()

	err := Run(context.Background(), logger, "commit", func(ctx context.Context) error {
		logger.For(ctx).Info("inside")
		return nil
	})
	require.NoError(t, err)

	entries := logs.All()
	require.Len(t, entries, 2)
	fields := entries[0].ContextMap()
	assert.Equal(t, "commit", fields["op"])
	_, err = uuid.Parse(fields["op_id"].(string))
	assert.NoError(t, err)

	// the completion record shares the id
	assert.Equal(t, fields["op_id"], entries[1].ContextMap()["op_id"])
	assert.Equal(t, "operation completed", entries[1].Message)
}

func TestRunLogsFailureKind(t *testing.T) {
	logger, logs := observed()

	err := Run(context.Background(), logger, "checkout", func(ctx context.Context) error {
		return vxerrors.NotFound("commit.get", "main:9")
	})
	assert.True(t, vxerrors.Is(err, vxerrors.ErrorTypeNotFound))

	entries := logs.FilterMessage("operation failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "NOT_FOUND", entries[0].ContextMap()["kind"])
}

func TestRecoverReturnsError(t *testing.T) {
	logger, logs := observed()

	err := Run(context.Background(), logger, "status", func(ctx context.Context) error {
		panic("boom")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, 1, logs.FilterMessage("panic recovered").Len())
}

func TestChainOrder(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next Handler) Handler {
			return func(ctx context.Context) error {
				order = append(order, name)
				return next(ctx)
			}
		}
	}

	h := Chain(func(context.Context) error {
		order = append(order, "handler")
		return nil
	}, mark("inner"), mark("outer"))
	require.NoError(t, h(context.Background()))
	assert.Equal(t, []string{"outer", "inner", "handler"}, order)
}
