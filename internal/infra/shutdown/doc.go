// Package shutdown stops long-running commands cleanly.
//
// Usage:
//
//	ctx, cancel := shutdown.WithSignals(context.Background())
//	defer cancel()
//	h := shutdown.NewHandler(2 * time.Second)
//	h.OnShutdown(func(context.Context) error { return w.Stop() })
//	return h.Wait(ctx)
package shutdown
