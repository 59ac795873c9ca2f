package contxt

import (
	"context"
	"os"
	"time"
)

// NewContext returns a background context bounded by timeout; scheduled
// jobs use it so a hung cloud call cannot wedge the cron goroutine.
func NewContext(timeout time.Duration) context.Context {
	if os.Getenv("CONTEXT_TEST") != "" {
		return context.Background()
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	go func() {
		<-ctx.Done()
		cancel()
	}()
	return ctx
}
