package httpapi

import "context"

// serverBaseCtx is canceled when the process starts shutting down. Handlers
// derive their work contexts from it so shutdown stops running generations.
var serverBaseCtx = context.Background()

// SetBaseContext sets the process-level context; nil resets to Background.
func SetBaseContext(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	serverBaseCtx = ctx
}

// shuttingDown reports whether the base context is done.
func shuttingDown() bool { return serverBaseCtx.Err() != nil }

// joinContexts derives a context from a that is also canceled when b is
// done. The cancel func must be called when the handler ends.
func joinContexts(a, b context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(a)
	stop := context.AfterFunc(b, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
