package wrap

import (
	"context"
	"errors"
)

// Error wraps err with the LogCtx currently carried in ctx. Wrapping
// an already-wrapped error refreshes its context.
func Error(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}

	lc, _ := ctx.Value(LogCtxKey).(LogCtx)

	var e *errorWithLogCtx
	if errors.As(err, &e) {
		e.logCtx = lc
		return err
	}

	return &errorWithLogCtx{err: err, logCtx: lc}
}
