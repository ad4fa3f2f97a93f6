package dc

import (
	"context"

	"github.com/gotd/td/tg"
)

// FileAPI is the slice of a Telegram RPC client a media session exposes:
// block fetches plus the import half of the cross-DC authorization dance.
// *tg.Client satisfies it; tests substitute fakes.
type FileAPI interface {
	UploadGetFile(ctx context.Context, request *tg.UploadGetFileRequest) (tg.UploadFileClass, error)
	AuthImportAuthorization(ctx context.Context, request *tg.AuthImportAuthorizationRequest) (tg.AuthAuthorizationClass, error)
}

// AuthExporter is the export half, only ever invoked on the home session.
type AuthExporter interface {
	AuthExportAuthorization(ctx context.Context, dcid int) (*tg.AuthExportedAuthorization, error)
}

// MediaSession is an immutable handle to one live per-DC connection. The
// registry owns its lifecycle; callers only invoke RPCs through API().
type MediaSession struct {
	dcID int
	home bool
	api  FileAPI
	stop func()
}

// NewMediaSession wraps an already-running connection. stop may be nil for
// sessions whose lifecycle is owned elsewhere (the home client).
func NewMediaSession(dcID int, home bool, api FileAPI, stop func()) *MediaSession {
	return &MediaSession{dcID: dcID, home: home, api: api, stop: stop}
}

func (s *MediaSession) DC() int      { return s.dcID }
func (s *MediaSession) Home() bool   { return s.home }
func (s *MediaSession) API() FileAPI { return s.api }

// Stop tears the session down. Safe to call on the home session; it is a
// no-op there since the bot client owns that connection.
func (s *MediaSession) Stop() {
	if s.stop != nil {
		s.stop()
	}
}
