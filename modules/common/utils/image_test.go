package utils

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestDataURI_RoundTrip(t *testing.T) {
	uri := DataURI("image/jpeg", []byte("hello"))
	assert.Equal(t, "data:image/jpeg;base64,aGVsbG8=", uri)

	mimeType, data, err := ParseDataURI(uri)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", mimeType)
	assert.Equal(t, "hello", string(data))
}

func TestDataURI_DetectsMIME(t *testing.T) {
	uri := DataURI("", pngHeader)
	assert.Contains(t, uri, "data:image/png;base64,")
}

func TestParseDataURI_Errors(t *testing.T) {
	for _, in := range []string{
		"https://example.com/a.png",
		"data:image/png;base64",
		"data:image/png,plain",
		"data:image/png;base64,@@@",
	} {
		_, _, err := ParseDataURI(in)
		assert.Error(t, err, in)
	}
}

func TestCompressToWebP_RejectsGarbage(t *testing.T) {
	_, err := CompressToWebP([]byte("not an image"), 80)
	assert.Error(t, err)
}

func TestCompressToWebP_DecodesWebPInput(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: uint8(x * 40), B: uint8(y * 40), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	first, err := CompressToWebP(buf.Bytes(), 80)
	require.NoError(t, err)
	assert.Equal(t, "image/webp", DetectMIME(first))

	// webp 패키지 import만으로 WebP 디코더가 등록됨
	_, format, err := image.DecodeConfig(bytes.NewReader(first))
	require.NoError(t, err)
	assert.Equal(t, "webp", format)

	second, err := CompressToWebP(first, 80)
	require.NoError(t, err)
	assert.NotEmpty(t, second)
}
