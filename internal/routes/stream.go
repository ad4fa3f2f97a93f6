package routes

import (
	"AkhilTG/tvsb/internal/dc"
	"AkhilTG/tvsb/internal/stream"
	"AkhilTG/tvsb/internal/types"
	"AkhilTG/tvsb/internal/utils"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gotd/td/tgerr"
	range_parser "github.com/quantumsheep/range-parser"
	"go.uber.org/zap"
)

// LoadStream registers the streaming route. Chat IDs are BotAPI-style
// signed integers (channels are large negatives), so the route parses them
// by hand instead of leaning on gin's unsigned param helpers.
func (e *allRoutes) LoadStream(r *Route) {
	streamLog := e.log.Named("Stream")
	defer streamLog.Info("Loaded stream route")
	handler := getStreamRoute(streamLog, e.svc)
	r.Engine.GET("/stream/:chatID/:messageID", handler)
	r.Engine.HEAD("/stream/:chatID/:messageID", handler)
}

func getStreamRoute(logger *zap.Logger, svc *stream.Service) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		w := ctx.Writer
		r := ctx.Request

		streamer, err := svc.Streamer()
		if err != nil {
			ctx.JSON(http.StatusServiceUnavailable, gin.H{
				"error": "Bot Unavailable: " + svc.Status(),
			})
			return
		}

		chatID, err := strconv.ParseInt(ctx.Param("chatID"), 10, 64)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat ID"})
			return
		}
		messageID, err := strconv.Atoi(ctx.Param("messageID"))
		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid message ID"})
			return
		}
		key := types.Key{ChatID: chatID, MessageID: messageID}

		handle, err := streamer.GetFileHandle(r.Context(), key)
		if err != nil {
			if errors.Is(err, utils.ErrNoMedia) || errors.Is(err, utils.ErrMessageNotFound) {
				logger.Debug("No streamable media",
					zap.String("key", key.String()), zap.Error(err))
				ctx.JSON(http.StatusNotFound, gin.H{"error": "message not found or has no media"})
				return
			}
			logger.Error("Failed to resolve file handle",
				zap.String("key", key.String()), zap.Error(err))
			ctx.JSON(http.StatusBadGateway, gin.H{"error": "failed to fetch file from Telegram"})
			return
		}
		if handle.FileSize <= 0 {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "message not found or has no media"})
			return
		}
		fileSize := handle.FileSize

		var start, end int64
		status := http.StatusOK
		rangeHeader := r.Header.Get("Range")
		if rangeHeader == "" {
			start = 0
			end = fileSize - 1
		} else {
			ranges, err := range_parser.Parse(fileSize, rangeHeader)
			if err != nil || len(ranges) == 0 {
				writeRangeNotSatisfiable(ctx, fileSize)
				return
			}
			start = ranges[0].Start
			end = ranges[0].End
			status = http.StatusPartialContent
		}

		plan, err := stream.ComputePlan(fileSize, start, end)
		if err != nil {
			writeRangeNotSatisfiable(ctx, fileSize)
			return
		}

		disposition := "inline"
		if ctx.Query("d") == "true" {
			disposition = "attachment"
		}

		ctx.Header("Accept-Ranges", "bytes")
		ctx.Header("Content-Type", mimeTypeFor(handle))
		ctx.Header("Content-Length", strconv.FormatInt(plan.RequestedLength, 10))
		ctx.Header("Content-Disposition", fmt.Sprintf("%s; filename=%q", disposition, handle.FileName))
		if status == http.StatusPartialContent {
			ctx.Header("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, fileSize))
		}

		if r.Method == http.MethodHead {
			w.WriteHeader(status)
			return
		}

		svc.StreamStarted()
		defer svc.StreamEnded()

		lr, err := streamer.NewReader(r.Context(), key, handle, plan)
		if err != nil {
			writeStreamOpenError(ctx, logger, key, err)
			return
		}
		defer lr.Close()

		// Prime the first block before committing a status line, so cold-path
		// failures (session acquisition, back-off) can still answer 503.
		first := make([]byte, 64*1024)
		n, err := lr.Read(first)
		if err != nil && err != io.EOF {
			writeStreamOpenError(ctx, logger, key, err)
			return
		}

		w.WriteHeader(status)
		if n > 0 {
			if _, wErr := w.Write(first[:n]); wErr != nil {
				logger.Warn("Client disconnected before streaming started",
					zap.String("key", key.String()))
				return
			}
		}
		bytesWritten, err := io.CopyN(w, lr, plan.RequestedLength-int64(n))
		bytesWritten += int64(n)
		if err != nil {
			// Once bytes flow there is no status code left to send; the
			// client sees a truncated body against the committed length.
			if r.Context().Err() != nil {
				logger.Warn("Client disconnected during stream",
					zap.String("key", key.String()),
					zap.Int64("bytesWritten", bytesWritten),
					zap.Int64("expectedBytes", plan.RequestedLength))
				return
			}
			logger.Error("Stream aborted",
				zap.String("key", key.String()),
				zap.Int64("bytesWritten", bytesWritten),
				zap.Int64("expectedBytes", plan.RequestedLength),
				zap.Error(err))
			return
		}

		logger.Debug("Stream completed",
			zap.String("key", key.String()),
			zap.String("filename", handle.FileName),
			zap.Int64("bytesStreamed", bytesWritten))
	}
}

// writeStreamOpenError maps a failure that happened before any byte was
// committed to the wire. Rate-limit shaped failures are retryable, so they
// answer 503; everything else is a hard 500.
func writeStreamOpenError(ctx *gin.Context, logger *zap.Logger, key types.Key, err error) {
	if _, flood := tgerr.AsFloodWait(err); flood || dc.IsBackoffActive(err) {
		logger.Warn("Stream rejected by rate limiting", zap.String("key", key.String()), zap.Error(err))
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": "backend is rate limited, retry later"})
		return
	}
	logger.Error("Failed to open stream", zap.String("key", key.String()), zap.Error(err))
	ctx.JSON(http.StatusInternalServerError, gin.H{"error": "failed to open stream"})
}

func writeRangeNotSatisfiable(ctx *gin.Context, fileSize int64) {
	ctx.Header("Content-Range", fmt.Sprintf("bytes */%d", fileSize))
	ctx.Status(http.StatusRequestedRangeNotSatisfiable)
}

// mimeTypeFor prefers the declared MIME unless it is the generic fallback,
// then guesses from the filename extension.
func mimeTypeFor(handle *types.FileHandle) string {
	declared := handle.MimeType
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	if guessed := mime.TypeByExtension(filepath.Ext(handle.FileName)); guessed != "" {
		return guessed
	}
	return "application/octet-stream"
}
