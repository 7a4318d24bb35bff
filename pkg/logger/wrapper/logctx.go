package wrap

import "context"

type (
	// LogCtx holds the contextual fields attached to log records.
	LogCtx struct {
		Action string
		UserID string
		RideID string
	}

	logCtxKeyStruct struct{}
)

// LogCtxKey is the context key under which a LogCtx travels.
var LogCtxKey = &logCtxKeyStruct{}

// WithAction adds or updates the Action in the context's LogCtx.
func WithAction(ctx context.Context, action string) context.Context {
	lc, _ := ctx.Value(LogCtxKey).(LogCtx)
	lc.Action = action
	return context.WithValue(ctx, LogCtxKey, lc)
}

// WithUserID adds or updates the UserID in the context's LogCtx.
func WithUserID(ctx context.Context, userID string) context.Context {
	lc, _ := ctx.Value(LogCtxKey).(LogCtx)
	lc.UserID = userID
	return context.WithValue(ctx, LogCtxKey, lc)
}

// WithRideID adds or updates the RideID in the context's LogCtx.
func WithRideID(ctx context.Context, rideID string) context.Context {
	lc, _ := ctx.Value(LogCtxKey).(LogCtx)
	lc.RideID = rideID
	return context.WithValue(ctx, LogCtxKey, lc)
}
