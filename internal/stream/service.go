package stream

import (
	"AkhilTG/tvsb/config"
	"AkhilTG/tvsb/internal/bot"
	"AkhilTG/tvsb/internal/cache"
	"AkhilTG/tvsb/internal/dc"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/celestix/gotgproto"
	"github.com/gotd/td/tgerr"
	"go.uber.org/zap"
)

var ErrNotReady = errors.New("bot is not connected yet")

const startAttempts = 3

// Service owns the whole streaming engine lifecycle: it connects the home
// bot in the background, wires up the registry, cache and streamer, and
// gates requests until everything is ready. The HTTP listener goes live
// before Start finishes; until then Streamer() returns ErrNotReady.
type Service struct {
	log *zap.Logger

	mu       sync.RWMutex
	streamer *ByteStreamer
	client   *gotgproto.Client
	status   string

	activeStreams atomic.Int64
}

func NewService(log *zap.Logger) *Service {
	return &Service{
		log:    log.Named("Service"),
		status: "Starting...",
	}
}

// Start connects the home bot and assembles the engine. Meant to run in its
// own goroutine; retries a few times since first connects are where
// Telegram hands out login flood waits.
func (s *Service) Start() {
	for attempt := 1; attempt <= startAttempts; attempt++ {
		err := s.start()
		if err == nil {
			return
		}

		s.setStatus("Failed to start: " + err.Error())
		if wait, ok := tgerr.AsFloodWait(err); ok {
			s.log.Sugar().Warnf("Flood wait of %s while starting, attempt %d/%d", wait, attempt, startAttempts)
			time.Sleep(wait)
			continue
		}
		s.log.Error("Failed to start bot", zap.Int("attempt", attempt), zap.Error(err))
		time.Sleep(5 * time.Second)
	}
	s.log.Error("Giving up on bot startup; requests will keep failing with 503")
}

func (s *Service) start() error {
	client, err := bot.StartClient(s.log)
	if err != nil {
		return err
	}

	homeDC := client.Config().ThisDC
	if homeDC == 0 {
		homeDC = config.ValueOf.HomeDC
	}
	s.log.Sugar().Infof("Home DC is %d", homeDC)

	home := dc.NewMediaSession(homeDC, true, client.API(), nil)
	dialer := dc.NewGotdDialer(
		s.log,
		int(config.ValueOf.ApiID),
		config.ValueOf.ApiHash,
		config.ValueOf.TestMode,
		bot.GetFloodMiddleware(s.log),
	)
	registry := dc.NewRegistry(s.log, homeDC, home, client.API(), dialer)
	streamer := NewByteStreamer(
		s.log,
		client.API(),
		client.PeerStorage,
		registry,
		cache.New(s.log),
		dc.NewFileMap(s.log),
		time.Duration(config.ValueOf.FloodWaitCapSeconds)*time.Second,
	)

	s.mu.Lock()
	s.client = client
	s.streamer = streamer
	s.status = "Connected"
	s.mu.Unlock()

	s.log.Sugar().Infof("Streaming engine ready (bot @%s)", client.Self.Username)
	return nil
}

// SetStreamer installs an externally assembled engine, marking the service
// ready. The normal path is Start; this exists for embedders and tests that
// manage the Telegram client themselves.
func (s *Service) SetStreamer(streamer *ByteStreamer) {
	s.mu.Lock()
	s.streamer = streamer
	s.status = "Connected"
	s.mu.Unlock()
}

// Streamer returns the engine, or ErrNotReady while the bot is still
// connecting (or failed to connect).
func (s *Service) Streamer() (*ByteStreamer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.streamer == nil {
		return nil, ErrNotReady
	}
	return s.streamer, nil
}

func (s *Service) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.streamer != nil
}

func (s *Service) Status() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *Service) setStatus(status string) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
}

// StreamStarted / StreamEnded book-keep the active stream gauge for the
// status route.
func (s *Service) StreamStarted() { s.activeStreams.Add(1) }
func (s *Service) StreamEnded()   { s.activeStreams.Add(-1) }
func (s *Service) ActiveStreams() int64 {
	return s.activeStreams.Load()
}

// Stop tears down every foreign session and the handle cache sweeper.
func (s *Service) Stop() {
	s.mu.Lock()
	streamer := s.streamer
	client := s.client
	s.streamer = nil
	s.client = nil
	s.status = "Stopped"
	s.mu.Unlock()

	if streamer != nil {
		streamer.Registry().Close()
		streamer.Handles().Close()
	}
	if client != nil {
		client.Stop()
	}
	s.log.Info("Streaming engine stopped")
}
