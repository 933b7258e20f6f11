package image_test

import (
	"bytes"
	"testing"

	"github.com/loomtale/dnxvm/image"
	"github.com/stretchr/testify/require"
)

func sampleImage() *image.Image {
	return &image.Image{
		Scenes: map[uint32][]int32{
			1: {0},
		},
		Functions: map[uint32][]int32{
			2: {10, 20, 30, 40, 50},
		},
		Definitions: map[uint32]image.Definition{
			3: {StringRef: image.EncodeStringRef(false, 0), BytecodeOffset: -1},
			4: {StringRef: image.EncodeStringRef(true, 1), BytecodeOffset: 5},
		},
		Instructions:      []byte{0x01, 0x02, 0x03},
		StringTable:       []string{"hello", "world", "coins"},
		TranslationTable:  []string{"Bonjour", "Monde"},
		ExternalFunctions: []uint32{7, 8},
	}
}

func TestRoundTripUncompressed(t *testing.T) {
	src := sampleImage()
	var buf bytes.Buffer
	require.NoError(t, image.Save(&buf, src, image.SaveOptions{InternalTranslation: true}))

	got, err := image.Load(&buf)
	require.NoError(t, err)

	require.Equal(t, src.Scenes, got.Scenes)
	require.Equal(t, src.Functions, got.Functions)
	require.Equal(t, src.Definitions, got.Definitions)
	require.Equal(t, src.Instructions, got.Instructions)
	require.Equal(t, src.StringTable, got.StringTable)
	require.Equal(t, src.TranslationTable, got.TranslationTable)
	require.Equal(t, src.ExternalFunctions, got.ExternalFunctions)
	require.True(t, got.TranslationLoaded)
}

func TestRoundTripCompressed(t *testing.T) {
	src := sampleImage()
	var buf bytes.Buffer
	require.NoError(t, image.Save(&buf, src, image.SaveOptions{Compress: true}))

	got, err := image.Load(&buf)
	require.NoError(t, err)
	require.Equal(t, src.Instructions, got.Instructions)
	require.Equal(t, src.StringTable, got.StringTable)
	require.False(t, got.TranslationLoaded, "translation flag not set, even though table is present")
}

func TestLoadInvalidSignature(t *testing.T) {
	_, err := image.Load(bytes.NewReader([]byte("XYZ\x01\x00\x00\x00\x00\x00")))
	require.Error(t, err)
}

func TestLoadUnsupportedVersion(t *testing.T) {
	_, err := image.Load(bytes.NewReader([]byte("DNX\x09\x00\x00\x00\x00\x00")))
	require.Error(t, err)
}

func TestLoadTruncated(t *testing.T) {
	_, err := image.Load(bytes.NewReader([]byte("DNX\x01\x00")))
	require.Error(t, err)
}

func TestDecodeStringRef(t *testing.T) {
	isT, idx := image.DecodeStringRef(image.EncodeStringRef(true, 42))
	require.True(t, isT)
	require.Equal(t, uint32(42), idx)

	isT, idx = image.DecodeStringRef(image.EncodeStringRef(false, 7))
	require.False(t, isT)
	require.Equal(t, uint32(7), idx)
}
