package dc

import (
	"context"

	"github.com/cenkalti/backoff/v4"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
	"go.uber.org/zap"
)

// importAttempts bounds the export/import dance: Telegram occasionally
// rejects freshly exported bytes with AUTH_BYTES_INVALID and a re-export
// fixes it.
const importAttempts = 5

// authorize installs the home authorization onto a foreign-DC session.
// Each attempt re-exports, since rejected bytes are not worth re-importing.
// The caller tears the session down on failure.
func authorize(ctx context.Context, log *zap.Logger, exporter AuthExporter, session *MediaSession) error {
	attempt := 0
	op := func() error {
		attempt++
		exported, err := exporter.AuthExportAuthorization(ctx, session.DC())
		if err != nil {
			return backoff.Permanent(err)
		}
		_, err = session.API().AuthImportAuthorization(ctx, &tg.AuthImportAuthorizationRequest{
			ID:    exported.ID,
			Bytes: exported.Bytes,
		})
		if err != nil {
			if tgerr.Is(err, "AUTH_BYTES_INVALID") {
				log.Debug("Invalid auth bytes, re-exporting",
					zap.Int("dc", session.DC()),
					zap.Int("attempt", attempt))
				return err
			}
			return backoff.Permanent(err)
		}
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(&backoff.ZeroBackOff{}, importAttempts-1), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return err
	}
	log.Debug("Imported authorization", zap.Int("dc", session.DC()))
	return nil
}
