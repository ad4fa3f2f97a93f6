package stream

import (
	"AkhilTG/tvsb/internal/types"
	"fmt"

	"github.com/gotd/td/constant"
	"github.com/gotd/td/tg"
)

// BuildLocation turns a file handle into the InputFileLocation variant the
// block fetch needs, discriminated by the media kind.
func BuildLocation(handle *types.FileHandle) (tg.InputFileLocationClass, error) {
	switch handle.Kind {
	case types.MediaDocument:
		return &tg.InputDocumentFileLocation{
			ID:            handle.MediaID,
			AccessHash:    handle.AccessHash,
			FileReference: handle.FileReference,
			ThumbSize:     handle.ThumbSize,
		}, nil
	case types.MediaPhoto:
		return &tg.InputPhotoFileLocation{
			ID:            handle.MediaID,
			AccessHash:    handle.AccessHash,
			FileReference: handle.FileReference,
			ThumbSize:     handle.ThumbSize,
		}, nil
	case types.MediaChatPhoto:
		return &tg.InputPeerPhotoFileLocation{
			Peer:    chatPhotoPeer(handle),
			PhotoID: handle.MediaID,
			Big:     handle.Big,
		}, nil
	}
	return nil, fmt.Errorf("unsupported media kind %s", handle.Kind)
}

// chatPhotoPeer picks the peer discriminant for a chat photo: positive IDs
// are users, legacy chats carry no access hash, everything else is a
// channel.
func chatPhotoPeer(handle *types.FileHandle) tg.InputPeerClass {
	if handle.ChatID > 0 {
		return &tg.InputPeerUser{
			UserID:     handle.ChatID,
			AccessHash: handle.ChatAccessHash,
		}
	}
	if handle.ChatAccessHash == 0 {
		return &tg.InputPeerChat{ChatID: -handle.ChatID}
	}
	return &tg.InputPeerChannel{
		ChannelID:  constant.TDLibPeerID(handle.ChatID).ToPlain(),
		AccessHash: handle.ChatAccessHash,
	}
}
