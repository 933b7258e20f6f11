package image

import (
	"bytes"
	"compress/flate"
	"encoding/binary"
	"io"
)

// SaveOptions controls Save's wire-format choices.
type SaveOptions struct {
	// Compress writes the body as a raw-DEFLATE payload prefixed with a
	// 2-byte zlib header placeholder, matching what Load expects to skip
	// (spec.md §4.8).
	Compress bool
	// InternalTranslation sets the "internal translation file present" flag
	// bit. It does not change what is written; Load derives
	// TranslationLoaded from this bit together with a non-empty table.
	InternalTranslation bool
}

// Save serializes img to w using the wire format described in spec.md
// §4.8. It is the encode-side counterpart to Load, used for round-trip
// tests and by tooling that produces fixtures without a full external
// compiler.
func Save(w io.Writer, img *Image, opts SaveOptions) error {
	body := encodeBody(img)

	var flags byte
	if opts.Compress {
		flags |= flagCompressed
	}
	if opts.InternalTranslation {
		flags |= flagInternalTranslation
	}

	if _, err := w.Write([]byte(signature)); err != nil {
		return err
	}
	if _, err := w.Write([]byte{supportedMajor, flags}); err != nil {
		return err
	}

	if opts.Compress {
		compressed, err := deflateZlibPayload(body)
		if err != nil {
			return err
		}
		if err := writeU32(w, uint32(len(body))); err != nil {
			return err
		}
		if err := writeU32(w, uint32(len(compressed))); err != nil {
			return err
		}
		_, err = w.Write(compressed)
		return err
	}

	if err := writeU32(w, uint32(len(body))); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}

func deflateZlibPayload(body []byte) ([]byte, error) {
	var buf bytes.Buffer
	// placeholder 2-byte zlib header; Load only skips it, never validates
	// its contents.
	buf.Write([]byte{0x78, 0x9c})
	fw, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		return nil, err
	}
	if _, err := fw.Write(body); err != nil {
		return nil, err
	}
	if err := fw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeBody(img *Image) []byte {
	var buf bytes.Buffer
	writeSymbolTable(&buf, img.Scenes)
	writeSymbolTable(&buf, img.Functions)

	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(img.Definitions)))
	for symbolID, def := range img.Definitions {
		_ = binary.Write(&buf, binary.LittleEndian, symbolID)
		_ = binary.Write(&buf, binary.LittleEndian, def.StringRef)
		_ = binary.Write(&buf, binary.LittleEndian, def.BytecodeOffset)
	}

	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(img.Instructions)))
	buf.Write(img.Instructions)

	writeStringList(&buf, img.StringTable)
	writeStringList(&buf, img.TranslationTable)

	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(img.ExternalFunctions)))
	for _, id := range img.ExternalFunctions {
		_ = binary.Write(&buf, binary.LittleEndian, id)
	}

	return buf.Bytes()
}

func writeSymbolTable(buf *bytes.Buffer, table map[uint32][]int32) {
	_ = binary.Write(buf, binary.LittleEndian, uint32(len(table)))
	for symbolID, offsets := range table {
		_ = binary.Write(buf, binary.LittleEndian, symbolID)
		_ = binary.Write(buf, binary.LittleEndian, uint16(len(offsets)))
		for _, off := range offsets {
			_ = binary.Write(buf, binary.LittleEndian, off)
		}
	}
}

func writeStringList(buf *bytes.Buffer, strs []string) {
	_ = binary.Write(buf, binary.LittleEndian, uint32(len(strs)))
	for _, s := range strs {
		buf.WriteString(s)
		buf.WriteByte(0)
	}
}

func writeU32(w io.Writer, v uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	_, err := w.Write(b[:])
	return err
}
