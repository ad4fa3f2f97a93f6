package bot

import (
	"time"

	"github.com/gotd/contrib/middleware/floodwait"
	"github.com/gotd/contrib/middleware/ratelimit"
	"github.com/gotd/td/telegram"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// GetFloodMiddleware returns the RPC middlewares applied to every Telegram
// client the gateway opens, home and foreign alike. The waiter absorbs short
// FLOOD_WAITs transparently; longer ones surface to the streamer, which
// owns the back-off bookkeeping.
func GetFloodMiddleware(log *zap.Logger) []telegram.Middleware {
	waiter := floodwait.NewSimpleWaiter().WithMaxRetries(10)
	// 30 req/s sustained with bursts up to 15; block fetches are 1 MiB each
	// so this is plenty for many parallel streams.
	ratelimiter := ratelimit.New(rate.Every(time.Millisecond*33), 15)
	return []telegram.Middleware{
		waiter,
		ratelimiter,
	}
}
