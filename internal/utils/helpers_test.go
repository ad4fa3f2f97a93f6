package utils

import (
	"AkhilTG/tvsb/internal/types"
	"testing"

	"github.com/gotd/td/tg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleFromMediaDocument(t *testing.T) {
	doc := &tg.Document{
		ID:            100,
		AccessHash:    200,
		FileReference: []byte("ref"),
		DCID:          4,
		Size:          3_000_000,
		MimeType:      "video/x-matroska",
		Attributes: []tg.DocumentAttributeClass{
			&tg.DocumentAttributeFilename{FileName: "movie.mkv"},
		},
	}
	media := &tg.MessageMediaDocument{}
	media.SetDocument(doc)

	handle, err := HandleFromMedia(media)
	require.NoError(t, err)
	assert.Equal(t, types.MediaDocument, handle.Kind)
	assert.Equal(t, int64(100), handle.MediaID)
	assert.Equal(t, 4, handle.DC)
	assert.Equal(t, int64(3_000_000), handle.FileSize)
	assert.Equal(t, "movie.mkv", handle.FileName)
	assert.Equal(t, "video/x-matroska", handle.MimeType)
	assert.Len(t, handle.UniqueID, 16)
}

func TestHandleFromMediaDocumentDefaultNames(t *testing.T) {
	cases := []struct {
		name string
		attr tg.DocumentAttributeClass
		want string
	}{
		{"video", &tg.DocumentAttributeVideo{}, "video.mp4"},
		{"audio", &tg.DocumentAttributeAudio{}, "audio.mp3"},
		{"bare", &tg.DocumentAttributeAnimated{}, "file"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			media := &tg.MessageMediaDocument{}
			media.SetDocument(&tg.Document{
				ID:         1,
				Size:       10,
				Attributes: []tg.DocumentAttributeClass{tc.attr},
			})
			handle, err := HandleFromMedia(media)
			require.NoError(t, err)
			assert.Equal(t, tc.want, handle.FileName)
		})
	}
}

func TestHandleFromMediaPhoto(t *testing.T) {
	photo := &tg.Photo{
		ID:            300,
		AccessHash:    400,
		FileReference: []byte("ref"),
		DCID:          5,
		Sizes: []tg.PhotoSizeClass{
			&tg.PhotoSize{Type: "m", Size: 1000},
			&tg.PhotoSize{Type: "y", Size: 50_000},
		},
	}
	media := &tg.MessageMediaPhoto{}
	media.SetPhoto(photo)

	handle, err := HandleFromMedia(media)
	require.NoError(t, err)
	assert.Equal(t, types.MediaPhoto, handle.Kind)
	assert.Equal(t, "y", handle.ThumbSize)
	assert.Equal(t, int64(50_000), handle.FileSize)
	assert.Equal(t, "image/jpeg", handle.MimeType)
	assert.Equal(t, "photo_300.jpg", handle.FileName)
}

func TestHandleFromMediaPhotoProgressiveSizes(t *testing.T) {
	photo := &tg.Photo{
		ID: 301,
		Sizes: []tg.PhotoSizeClass{
			&tg.PhotoSizeProgressive{Type: "w", Sizes: []int{1000, 20_000, 90_000}},
		},
	}
	media := &tg.MessageMediaPhoto{}
	media.SetPhoto(photo)

	handle, err := HandleFromMedia(media)
	require.NoError(t, err)
	assert.Equal(t, int64(90_000), handle.FileSize)
	assert.Equal(t, "w", handle.ThumbSize)
}

func TestHandleFromMediaRejectsUnsupported(t *testing.T) {
	_, err := HandleFromMedia(&tg.MessageMediaGeo{})
	assert.ErrorIs(t, err, ErrNoMedia)
}

func TestHandleFromMessageWithoutMedia(t *testing.T) {
	_, err := HandleFromMessage(&tg.Message{ID: 1})
	assert.ErrorIs(t, err, ErrNoMedia)
}

func TestTimeFormat(t *testing.T) {
	assert.Equal(t, "42s", TimeFormat(42))
	assert.Equal(t, "2m 3s", TimeFormat(123))
	assert.Equal(t, "1h 0m 1s", TimeFormat(3601))
	assert.Equal(t, "1d 1h 0m 0s", TimeFormat(90000))
}
