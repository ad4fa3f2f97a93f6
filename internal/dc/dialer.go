package dc

import (
	"context"
	"fmt"
	"time"

	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/dcs"
	"go.uber.org/zap"
)

// dialReadyTimeout bounds transport + auth-key creation for a foreign DC.
const dialReadyTimeout = 30 * time.Second

// GotdDialer opens foreign-DC connections with plain gotd clients. Sessions
// are in-memory only: on restart they are rebuilt via export/import, which
// is cheap compared to persisting per-DC auth keys.
type GotdDialer struct {
	log         *zap.Logger
	apiID       int
	apiHash     string
	testMode    bool
	middlewares []telegram.Middleware
}

func NewGotdDialer(log *zap.Logger, apiID int, apiHash string, testMode bool, middlewares []telegram.Middleware) *GotdDialer {
	return &GotdDialer{
		log:         log.Named("Dialer"),
		apiID:       apiID,
		apiHash:     apiHash,
		testMode:    testMode,
		middlewares: middlewares,
	}
}

// Dial connects to the given DC and waits until the client is initialized
// (transport up, auth key negotiated). The returned session runs on its own
// background context until stopped, so it outlives the request that
// triggered its creation.
func (d *GotdDialer) Dial(ctx context.Context, dcID int) (*MediaSession, error) {
	list := dcs.Prod()
	if d.testMode {
		list = dcs.Test()
	}

	client := telegram.NewClient(d.apiID, d.apiHash, telegram.Options{
		DC:          dcID,
		DCList:      list,
		NoUpdates:   true,
		Middlewares: d.middlewares,
		Logger:      d.log.Named(fmt.Sprintf("dc%d", dcID)),
	})

	runCtx, cancel := context.WithCancel(context.Background())
	ready := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- client.Run(runCtx, func(ctx context.Context) error {
			close(ready)
			<-ctx.Done()
			return ctx.Err()
		})
	}()

	waitCtx, waitCancel := context.WithTimeout(ctx, dialReadyTimeout)
	defer waitCancel()

	select {
	case <-ready:
	case err := <-done:
		cancel()
		if err == nil {
			err = fmt.Errorf("client for DC %d exited before becoming ready", dcID)
		}
		return nil, err
	case <-waitCtx.Done():
		cancel()
		<-done
		return nil, fmt.Errorf("connecting to DC %d: %w", dcID, waitCtx.Err())
	}

	stop := func() {
		cancel()
		<-done
	}
	return NewMediaSession(dcID, false, client.API(), stop), nil
}
