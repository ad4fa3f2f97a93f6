package stream

import (
	"AkhilTG/tvsb/internal/types"
	"testing"

	"github.com/gotd/td/tg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildLocationDocument(t *testing.T) {
	loc, err := BuildLocation(&types.FileHandle{
		Kind:          types.MediaDocument,
		MediaID:       11,
		AccessHash:    22,
		FileReference: []byte("ref"),
	})
	require.NoError(t, err)

	docLoc, ok := loc.(*tg.InputDocumentFileLocation)
	require.True(t, ok)
	assert.Equal(t, int64(11), docLoc.ID)
	assert.Equal(t, int64(22), docLoc.AccessHash)
	assert.Equal(t, []byte("ref"), docLoc.FileReference)
}

func TestBuildLocationPhoto(t *testing.T) {
	loc, err := BuildLocation(&types.FileHandle{
		Kind:          types.MediaPhoto,
		MediaID:       33,
		AccessHash:    44,
		FileReference: []byte("ref"),
		ThumbSize:     "y",
	})
	require.NoError(t, err)

	photoLoc, ok := loc.(*tg.InputPhotoFileLocation)
	require.True(t, ok)
	assert.Equal(t, int64(33), photoLoc.ID)
	assert.Equal(t, "y", photoLoc.ThumbSize)
}

func TestBuildLocationChatPhotoPeers(t *testing.T) {
	// User photo: positive chat ID.
	loc, err := BuildLocation(&types.FileHandle{
		Kind:           types.MediaChatPhoto,
		MediaID:        55,
		ChatID:         12345,
		ChatAccessHash: 99,
		Big:            true,
	})
	require.NoError(t, err)
	peerLoc, ok := loc.(*tg.InputPeerPhotoFileLocation)
	require.True(t, ok)
	assert.True(t, peerLoc.Big)
	user, ok := peerLoc.Peer.(*tg.InputPeerUser)
	require.True(t, ok)
	assert.Equal(t, int64(12345), user.UserID)

	// Legacy group: negative ID, no access hash.
	loc, err = BuildLocation(&types.FileHandle{
		Kind:    types.MediaChatPhoto,
		MediaID: 56,
		ChatID:  -678,
	})
	require.NoError(t, err)
	peerLoc = loc.(*tg.InputPeerPhotoFileLocation)
	chat, ok := peerLoc.Peer.(*tg.InputPeerChat)
	require.True(t, ok)
	assert.Equal(t, int64(678), chat.ChatID)

	// Channel: BotAPI-style -100 prefix with an access hash.
	loc, err = BuildLocation(&types.FileHandle{
		Kind:           types.MediaChatPhoto,
		MediaID:        57,
		ChatID:         -1001234567890,
		ChatAccessHash: 77,
	})
	require.NoError(t, err)
	peerLoc = loc.(*tg.InputPeerPhotoFileLocation)
	channel, ok := peerLoc.Peer.(*tg.InputPeerChannel)
	require.True(t, ok)
	assert.Equal(t, int64(1234567890), channel.ChannelID)
	assert.Equal(t, int64(77), channel.AccessHash)
}

func TestBuildLocationRejectsUnknownKind(t *testing.T) {
	_, err := BuildLocation(&types.FileHandle{Kind: types.MediaKind(99)})
	assert.Error(t, err)
}
