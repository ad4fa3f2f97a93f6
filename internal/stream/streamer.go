package stream

import (
	"AkhilTG/tvsb/internal/cache"
	"AkhilTG/tvsb/internal/dc"
	"AkhilTG/tvsb/internal/types"
	"AkhilTG/tvsb/internal/utils"
	"context"
	"io"
	"time"

	"github.com/celestix/gotgproto/storage"
	"go.uber.org/zap"
)

// ByteStreamer holds the cache of decoded file handles and the per-DC
// session registry, and produces the lazy byte sequences the HTTP layer
// pipes to clients.
type ByteStreamer struct {
	log          *zap.Logger
	api          utils.MessageAPI
	peers        *storage.PeerStorage
	registry     *dc.Registry
	handles      *cache.Cache
	files        *dc.FileMap
	floodWaitCap time.Duration
}

func NewByteStreamer(
	log *zap.Logger,
	api utils.MessageAPI,
	peers *storage.PeerStorage,
	registry *dc.Registry,
	handles *cache.Cache,
	files *dc.FileMap,
	floodWaitCap time.Duration,
) *ByteStreamer {
	if floodWaitCap <= 0 {
		floodWaitCap = 30 * time.Second
	}
	return &ByteStreamer{
		log:          log.Named("ByteStreamer"),
		api:          api,
		peers:        peers,
		registry:     registry,
		handles:      handles,
		files:        files,
		floodWaitCap: floodWaitCap,
	}
}

// GetFileHandle returns the decoded handle for a message's media, from
// cache when possible.
func (b *ByteStreamer) GetFileHandle(ctx context.Context, key types.Key) (*types.FileHandle, error) {
	var cached types.FileHandle
	if err := b.handles.Get(key, &cached); err == nil {
		b.log.Debug("Using cached file handle", zap.String("key", key.String()))
		return &cached, nil
	}
	return b.fetchHandle(ctx, key)
}

// RefreshHandle drops any cached handle and refetches it from the message.
// Used when the backend reports FILE_REFERENCE_EXPIRED.
func (b *ByteStreamer) RefreshHandle(ctx context.Context, key types.Key) (*types.FileHandle, error) {
	b.handles.Delete(key)
	return b.fetchHandle(ctx, key)
}

func (b *ByteStreamer) fetchHandle(ctx context.Context, key types.Key) (*types.FileHandle, error) {
	b.log.Debug("Fetching file handle from message", zap.String("key", key.String()))
	msg, err := utils.GetMessage(ctx, b.api, b.peers, key.ChatID, key.MessageID)
	if err != nil {
		return nil, err
	}
	handle, err := utils.HandleFromMessage(msg)
	if err != nil {
		return nil, err
	}
	if err := b.handles.Set(key, handle); err != nil {
		b.log.Warn("Failed to cache file handle (continuing without cache)", zap.Error(err))
	}
	return handle, nil
}

// NewReader builds the lazy byte sequence for one range plan. The sequence
// is finite, single-pass and non-restartable; ctx cancellation (client
// disconnect) aborts it between block fetches.
func (b *ByteStreamer) NewReader(ctx context.Context, key types.Key, handle *types.FileHandle, plan Plan) (io.ReadCloser, error) {
	return newReader(ctx, b, key, handle, plan)
}

func (b *ByteStreamer) Registry() *dc.Registry { return b.registry }
func (b *ByteStreamer) FileMap() *dc.FileMap   { return b.files }
func (b *ByteStreamer) Handles() *cache.Cache  { return b.handles }
