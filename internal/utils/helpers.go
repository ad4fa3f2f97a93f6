package utils

import (
	"AkhilTG/tvsb/internal/types"
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"

	"github.com/celestix/gotgproto/storage"
	"github.com/gotd/td/constant"
	"github.com/gotd/td/tg"
)

// MessageAPI is the slice of *tg.Client the message helpers need. Narrowed
// so tests can fake the backend.
type MessageAPI interface {
	ChannelsGetMessages(ctx context.Context, request *tg.ChannelsGetMessagesRequest) (tg.MessagesMessagesClass, error)
	ChannelsGetChannels(ctx context.Context, id []tg.InputChannelClass) (tg.MessagesChatsClass, error)
	MessagesGetMessages(ctx context.Context, id []tg.InputMessageClass) (tg.MessagesMessagesClass, error)
}

var (
	ErrNoMedia         = errors.New("message has no streamable media")
	ErrMessageNotFound = errors.New("message not found")
)

// GetMessage fetches a single message. The chat ID is BotAPI-style as it
// appears in stream URLs: large negatives (-100…) are channels, everything
// else resolves through messages.getMessages.
func GetMessage(ctx context.Context, api MessageAPI, peers *storage.PeerStorage, chatID int64, messageID int) (*tg.Message, error) {
	tdID := constant.TDLibPeerID(chatID)

	var (
		res tg.MessagesMessagesClass
		err error
	)
	if tdID.IsChannel() {
		channel, cErr := GetChannelPeer(ctx, api, peers, chatID)
		if cErr != nil {
			return nil, cErr
		}
		res, err = api.ChannelsGetMessages(ctx, &tg.ChannelsGetMessagesRequest{
			Channel: channel,
			ID:      []tg.InputMessageClass{&tg.InputMessageID{ID: messageID}},
		})
	} else {
		res, err = api.MessagesGetMessages(ctx, []tg.InputMessageClass{&tg.InputMessageID{ID: messageID}})
	}
	if err != nil {
		return nil, err
	}

	modified, ok := res.AsModified()
	if !ok || len(modified.GetMessages()) == 0 {
		return nil, fmt.Errorf("message %d in chat %d: %w", messageID, chatID, ErrMessageNotFound)
	}
	message, ok := modified.GetMessages()[0].(*tg.Message)
	if !ok {
		return nil, fmt.Errorf("message %d was deleted or is not accessible: %w", messageID, ErrMessageNotFound)
	}
	return message, nil
}

// GetChannelPeer resolves an InputChannel for a BotAPI-style channel ID.
// PeerStorage acts as an in-memory cache; once a channel is seen it stays
// resolved for the session lifetime.
func GetChannelPeer(ctx context.Context, api MessageAPI, peers *storage.PeerStorage, chatID int64) (*tg.InputChannel, error) {
	cachedInputPeer := peers.GetInputPeerById(chatID)
	switch peer := cachedInputPeer.(type) {
	case *tg.InputPeerEmpty:
		break
	case *tg.InputPeerChannel:
		return &tg.InputChannel{
			ChannelID:  peer.ChannelID,
			AccessHash: peer.AccessHash,
		}, nil
	default:
		return nil, errors.New("unexpected type of input peer")
	}

	rawID := constant.TDLibPeerID(chatID).ToPlain()
	channels, err := api.ChannelsGetChannels(ctx, []tg.InputChannelClass{&tg.InputChannel{ChannelID: rawID}})
	if err != nil {
		return nil, err
	}
	if len(channels.GetChats()) == 0 {
		return nil, errors.New("no channels found")
	}
	channel, ok := channels.GetChats()[0].(*tg.Channel)
	if !ok {
		return nil, errors.New("type assertion to *tg.Channel failed")
	}

	peers.AddPeer(channel.GetID(), channel.AccessHash, storage.TypeChannel, "")
	return channel.AsInput(), nil
}

// HandleFromMessage extracts a FileHandle from a message's media payload.
func HandleFromMessage(msg *tg.Message) (*types.FileHandle, error) {
	media, ok := msg.GetMedia()
	if !ok {
		return nil, ErrNoMedia
	}
	return HandleFromMedia(media)
}

// HandleFromMedia decodes a media attachment into the flat handle the
// streaming engine works with.
func HandleFromMedia(media tg.MessageMediaClass) (*types.FileHandle, error) {
	switch media := media.(type) {
	case *tg.MessageMediaDocument:
		document, ok := media.Document.AsNotEmpty()
		if !ok {
			return nil, ErrNoMedia
		}
		handle := &types.FileHandle{
			Kind:          types.MediaDocument,
			MediaID:       document.ID,
			AccessHash:    document.AccessHash,
			FileReference: document.FileReference,
			DC:            document.DCID,
			FileSize:      document.Size,
			MimeType:      document.MimeType,
			FileName:      documentFileName(document),
			UniqueID:      shortHash(document.ID, document.AccessHash),
		}
		return handle, nil
	case *tg.MessageMediaPhoto:
		photo, ok := media.Photo.AsNotEmpty()
		if !ok {
			return nil, ErrNoMedia
		}
		thumbType, size, err := largestPhotoSize(photo.Sizes)
		if err != nil {
			return nil, err
		}
		return &types.FileHandle{
			Kind:          types.MediaPhoto,
			MediaID:       photo.ID,
			AccessHash:    photo.AccessHash,
			FileReference: photo.FileReference,
			DC:            photo.DCID,
			ThumbSize:     thumbType,
			FileSize:      size,
			MimeType:      "image/jpeg",
			FileName:      fmt.Sprintf("photo_%d.jpg", photo.ID),
			UniqueID:      shortHash(photo.ID, photo.AccessHash),
		}, nil
	}
	return nil, ErrNoMedia
}

func documentFileName(document *tg.Document) string {
	var video, audio bool
	for _, attribute := range document.Attributes {
		switch attr := attribute.(type) {
		case *tg.DocumentAttributeFilename:
			return attr.FileName
		case *tg.DocumentAttributeVideo:
			video = true
		case *tg.DocumentAttributeAudio:
			audio = true
		}
	}
	if video {
		return "video.mp4"
	}
	if audio {
		return "audio.mp3"
	}
	return "file"
}

// largestPhotoSize picks the biggest rendition, which is what gets
// streamed. Progressive sizes report cumulative byte counts; the last one is
// the full image.
func largestPhotoSize(sizes []tg.PhotoSizeClass) (string, int64, error) {
	if len(sizes) == 0 {
		return "", 0, errors.New("photo has no sizes")
	}
	for i := len(sizes) - 1; i >= 0; i-- {
		switch size := sizes[i].(type) {
		case *tg.PhotoSize:
			return size.Type, int64(size.Size), nil
		case *tg.PhotoSizeProgressive:
			if len(size.Sizes) == 0 {
				continue
			}
			return size.Type, int64(size.Sizes[len(size.Sizes)-1]), nil
		}
	}
	return "", 0, errors.New("photo has no usable size")
}

func shortHash(id, accessHash int64) string {
	hasher := md5.New()
	hasher.Write([]byte(strconv.FormatInt(id, 10)))
	hasher.Write([]byte(strconv.FormatInt(accessHash, 10)))
	return hex.EncodeToString(hasher.Sum(nil))[:16]
}

// https://stackoverflow.com/a/70802740/15807350
func Contains[T comparable](s []T, e T) bool {
	for _, v := range s {
		if v == e {
			return true
		}
	}
	return false
}

func TimeFormat(seconds uint64) string {
	days := seconds / 86400
	hours := (seconds % 86400) / 3600
	minutes := (seconds % 3600) / 60
	secs := seconds % 60
	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, secs)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, secs)
	}
	if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, secs)
	}
	return fmt.Sprintf("%ds", secs)
}
