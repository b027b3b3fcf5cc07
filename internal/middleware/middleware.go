package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	vxerrors "github.com/sbalabanov/vx/internal/errors"
	"github.com/sbalabanov/vx/internal/logging"
)

// Handler is one top-level repository operation.
type Handler func(ctx context.Context) error

type Middleware func(Handler) Handler

func Chain(h Handler, middlewares ...Middleware) Handler {
	for _, m := range middlewares {
		h = m(h)
	}
	return h
}

// OperationID tags ctx with the operation name and a fresh id.
func OperationID(name string) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context) error {
			ctx = logging.WithFields(ctx,
				zap.String("op", name),
				zap.String("op_id", uuid.New().String()))
			return next(ctx)
		}
	}
}

func Logger(logger *logging.Logger) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context) error {
			start := time.Now()
			err := next(ctx)

			log := logger.For(ctx)
			if err != nil {
				log.Info("operation failed",
					zap.String("kind", string(vxerrors.KindOf(err))),
					zap.Duration("duration", time.Since(start)),
					zap.Error(err))
				return err
			}
			log.Debug("operation completed", zap.Duration("duration", time.Since(start)))
			return nil
		}
	}
}

// Recover turns a panic into an error so storage is still closed cleanly.
func Recover(logger *logging.Logger) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					logger.For(ctx).Error("panic recovered", zap.Any("error", r), zap.Stack("stack"))
					err = fmt.Errorf("panic: %v", r)
				}
			}()
			return next(ctx)
		}
	}
}

// Run executes h as the named operation with the standard chain.
func Run(ctx context.Context, logger *logging.Logger, name string, h Handler) error {
	return Chain(h, Recover(logger), Logger(logger), OperationID(name))(ctx)
}
