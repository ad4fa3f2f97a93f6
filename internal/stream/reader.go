package stream

import (
	"AkhilTG/tvsb/internal/dc"
	"AkhilTG/tvsb/internal/types"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"time"

	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
	"go.uber.org/zap"
)

const (
	// blockFetchTimeout is the sanity timeout on each individual block
	// fetch. The stream as a whole has no deadline.
	blockFetchTimeout = 30 * time.Second

	migrateRetries    = 3
	refExpiredRetries = 2
	transientRetries  = 5
)

// reader is the lazy, single-pass byte sequence for one range request.
// Blocks are fetched strictly in increasing offset order, trimmed per the
// plan, and handed to Read as the downstream socket drains them. There is
// no prefetch: back-pressure flows from the client through here into the
// backend.
type reader struct {
	ctx      context.Context
	log      *zap.Logger
	streamer *ByteStreamer
	key      types.Key
	handle   *types.FileHandle
	plan     Plan

	session  *dc.MediaSession
	location tg.InputFileLocationClass

	part      int64 // 1-based index of the next part to fetch
	offset    int64
	buffer    []byte
	i         int64
	bytesread int64
}

func newReader(ctx context.Context, streamer *ByteStreamer, key types.Key, handle *types.FileHandle, plan Plan) (*reader, error) {
	r := &reader{
		ctx:      ctx,
		log:      streamer.log.Named("Reader"),
		streamer: streamer,
		key:      key,
		handle:   handle,
		plan:     plan,
		part:     1,
		offset:   plan.AlignedOffset,
	}

	session, err := r.pickSession(ctx)
	if err != nil {
		return nil, err
	}
	r.session = session

	location, err := BuildLocation(handle)
	if err != nil {
		return nil, err
	}
	r.location = location
	return r, nil
}

// pickSession chooses the initial DC: the memoised mapping wins, then the
// handle's own DC, then home. A live back-off on that DC falls back to the
// home session once rather than failing the stream outright.
func (r *reader) pickSession(ctx context.Context) (*dc.MediaSession, error) {
	registry := r.streamer.registry
	dcID, ok := r.streamer.files.Get(r.key)
	if !ok {
		dcID = r.handle.DC
	}
	if dcID == 0 {
		dcID = registry.HomeDC()
	}

	session, err := registry.Session(ctx, dcID)
	if err != nil {
		if dc.IsBackoffActive(err) && dcID != registry.HomeDC() {
			r.log.Warn("DC in back-off, falling back to home session",
				zap.Int("dc", dcID), zap.String("key", r.key.String()))
			return registry.Home(), nil
		}
		return nil, err
	}
	return session, nil
}

func (r *reader) Close() error {
	return nil
}

func (r *reader) Read(p []byte) (n int, err error) {
	if r.bytesread >= r.plan.RequestedLength {
		return 0, io.EOF
	}

	if r.i >= int64(len(r.buffer)) {
		r.buffer, err = r.next()
		if err != nil {
			return 0, err
		}
		r.i = 0
	}

	n = copy(p, r.buffer[r.i:])
	r.i += int64(n)
	r.bytesread += int64(n)
	return n, nil
}

// next fetches the next block and returns its trimmed slice.
func (r *reader) next() ([]byte, error) {
	if r.part > r.plan.PartCount {
		return nil, io.EOF
	}

	chunk, err := r.fetchBlock()
	if err != nil {
		return nil, err
	}
	if len(chunk) == 0 {
		// Upstream ran out of bytes before the plan did.
		return nil, io.EOF
	}

	if r.part == 1 {
		r.streamer.files.Set(r.key, r.session.DC())
	}

	trimmed := r.trim(chunk)
	r.part++
	r.offset += r.plan.ChunkSize
	if len(trimmed) == 0 {
		return nil, io.EOF
	}
	return trimmed, nil
}

func (r *reader) trim(chunk []byte) []byte {
	first := min64(r.plan.FirstCut, int64(len(chunk)))
	last := min64(r.plan.LastCut, int64(len(chunk)))
	switch {
	case r.plan.PartCount == 1:
		return chunk[first:last]
	case r.part == 1:
		return chunk[first:]
	case r.part == r.plan.PartCount:
		return chunk[:last]
	}
	return chunk
}

// fetchBlock retrieves one aligned block, absorbing the recoverable error
// kinds in-loop: DC migration re-routes and retries the same offset,
// short flood waits sleep, an expired file reference refreshes the handle,
// transient transport errors retry with linear delay. Migration, reference
// refresh and transient errors each have their own retry budget; exhausting
// any of them aborts the stream. Flood waits within the cap are slept
// through with no count limit; a longer one aborts the stream.
func (r *reader) fetchBlock() ([]byte, error) {
	var migrates, refreshes, transients int

	for {
		if err := r.ctx.Err(); err != nil {
			return nil, err
		}

		callCtx, cancel := context.WithTimeout(r.ctx, blockFetchTimeout)
		res, err := r.session.API().UploadGetFile(callCtx, &tg.UploadGetFileRequest{
			Location: r.location,
			Offset:   r.offset,
			Limit:    int(r.plan.ChunkSize),
		})
		cancel()

		if err == nil {
			file, ok := res.(*tg.UploadFile)
			if !ok {
				return nil, fmt.Errorf("unexpected response type %T", res)
			}
			return file.Bytes, nil
		}

		if r.ctx.Err() != nil {
			// Client went away; surface the cancellation untouched.
			return nil, r.ctx.Err()
		}

		switch {
		case isMigrate(err):
			target := migrateTarget(err)
			migrates++
			if migrates > migrateRetries {
				return nil, fmt.Errorf("giving up after %d migrations at offset %d: %w", migrateRetries, r.offset, err)
			}
			if mErr := r.migrate(target); mErr != nil {
				return nil, mErr
			}

		case isFloodWait(err):
			wait, _ := tgerr.AsFloodWait(err)
			if wait > r.streamer.floodWaitCap {
				r.streamer.registry.SetBackoff(r.session.DC(), wait)
				return nil, fmt.Errorf("flood wait of %s exceeds cap on DC %d: %w", wait, r.session.DC(), err)
			}
			r.log.Warn("Flood wait mid-stream, sleeping",
				zap.Duration("wait", wait), zap.Int("dc", r.session.DC()))
			if sErr := r.sleep(wait); sErr != nil {
				return nil, sErr
			}

		case tgerr.Is(err, "FILE_REFERENCE_EXPIRED"):
			refreshes++
			if refreshes > refExpiredRetries {
				return nil, fmt.Errorf("file reference still expired after %d refreshes: %w", refExpiredRetries, err)
			}
			if rErr := r.refreshHandle(); rErr != nil {
				return nil, rErr
			}

		case isTransient(err):
			transients++
			if transients > transientRetries {
				return nil, fmt.Errorf("transport error persisted through %d retries at offset %d: %w", transientRetries, r.offset, err)
			}
			r.log.Debug("Transient transport error, retrying",
				zap.Int("attempt", transients), zap.Error(err))
			if sErr := r.sleep(time.Duration(transients) * time.Second); sErr != nil {
				return nil, sErr
			}

		default:
			return nil, err
		}
	}
}

// migrate re-routes the stream to the DC named by FILE_MIGRATE and records
// the mapping so later requests start there directly.
func (r *reader) migrate(target int) error {
	r.log.Info("File migrated mid-stream",
		zap.String("key", r.key.String()),
		zap.Int("from", r.session.DC()),
		zap.Int("to", target))

	r.streamer.files.Set(r.key, target)
	session, err := r.streamer.registry.Session(r.ctx, target)
	if err != nil {
		return fmt.Errorf("migrating to DC %d: %w", target, err)
	}
	r.session = session

	location, err := BuildLocation(r.handle)
	if err != nil {
		return err
	}
	r.location = location
	return nil
}

// refreshHandle drops the cached handle, refetches it from the message and
// rebuilds the location with the fresh file reference.
func (r *reader) refreshHandle() error {
	r.log.Info("File reference expired, refreshing handle", zap.String("key", r.key.String()))
	handle, err := r.streamer.RefreshHandle(r.ctx, r.key)
	if err != nil {
		return fmt.Errorf("refreshing expired handle: %w", err)
	}
	r.handle = handle

	location, err := BuildLocation(handle)
	if err != nil {
		return err
	}
	r.location = location
	return nil
}

func (r *reader) sleep(d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-r.ctx.Done():
		return r.ctx.Err()
	}
}

func isMigrate(err error) bool {
	_, ok := tgerr.AsType(err, "FILE_MIGRATE")
	return ok
}

func migrateTarget(err error) int {
	rpcErr, ok := tgerr.AsType(err, "FILE_MIGRATE")
	if !ok {
		return 0
	}
	return rpcErr.Argument
}

func isFloodWait(err error) bool {
	_, ok := tgerr.AsFloodWait(err)
	return ok
}

func isTransient(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.ETIMEDOUT) {
		return true
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
