package image

import (
	"bytes"
	"compress/flate"
	"encoding/binary"
	"io"

	"github.com/loomtale/dnxvm/vmerr"
)

const (
	signature      = "DNX"
	supportedMajor = 1

	flagCompressed          = 1 << 0
	flagInternalTranslation = 1 << 1
)

// Load parses a complete binary image from r (spec.md §4.8). Invalid
// signature, unsupported version, or a truncated stream all report a
// vmerr.KindLoad error.
func Load(r io.Reader) (*Image, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, vmerr.LoadWrap(err, "reading image stream")
	}

	br := &byteReader{buf: raw}

	sig, ok := br.take(3)
	if !ok {
		return nil, vmerr.Load("truncated header: missing signature")
	}
	if string(sig) != signature {
		return nil, vmerr.Load("invalid signature %q, want %q", sig, signature)
	}

	version, ok := br.byte1()
	if !ok {
		return nil, vmerr.Load("truncated header: missing version")
	}
	if version != supportedMajor {
		return nil, vmerr.Load("unsupported image version %d, want %d", version, supportedMajor)
	}

	flags, ok := br.byte1()
	if !ok {
		return nil, vmerr.Load("truncated header: missing flags")
	}

	var body []byte
	if flags&flagCompressed != 0 {
		decompSize, ok := br.u32()
		if !ok {
			return nil, vmerr.Load("truncated header: missing decompressed size")
		}
		compSize, ok := br.u32()
		if !ok {
			return nil, vmerr.Load("truncated header: missing compressed size")
		}
		compBytes, ok := br.take(int(compSize))
		if !ok {
			return nil, vmerr.Load("truncated compressed payload: want %d bytes", compSize)
		}
		body, err = inflateZlibPayload(compBytes, int(decompSize))
		if err != nil {
			return nil, vmerr.LoadWrap(err, "decompressing image body")
		}
	} else {
		size, ok := br.u32()
		if !ok {
			return nil, vmerr.Load("truncated header: missing body size")
		}
		body, ok = br.take(int(size))
		if !ok {
			return nil, vmerr.Load("truncated body: want %d bytes", size)
		}
	}

	img, err := parseBody(body)
	if err != nil {
		return nil, err
	}
	img.TranslationLoaded = flags&flagInternalTranslation != 0 && len(img.TranslationTable) > 0
	return img, nil
}

// inflateZlibPayload skips the 2-byte zlib header and inflates the
// remaining raw DEFLATE stream (spec.md §4.8: "the 2-byte zlib header must
// be skipped").
func inflateZlibPayload(compressed []byte, decompSize int) ([]byte, error) {
	if len(compressed) < 2 {
		return nil, vmerr.Load("compressed payload too short for zlib header")
	}
	fr := flate.NewReader(bytes.NewReader(compressed[2:]))
	defer fr.Close()
	out := make([]byte, 0, decompSize)
	buf := bytes.NewBuffer(out)
	if _, err := io.Copy(buf, fr); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func parseBody(body []byte) (*Image, error) {
	br := &byteReader{buf: body}
	img := &Image{
		Scenes:      map[uint32][]int32{},
		Functions:   map[uint32][]int32{},
		Definitions: map[uint32]Definition{},
	}

	var err error
	if img.Scenes, err = readSymbolTable(br); err != nil {
		return nil, err
	}
	if img.Functions, err = readSymbolTable(br); err != nil {
		return nil, err
	}

	defCount, ok := br.u32()
	if !ok {
		return nil, vmerr.Load("truncated body: missing definition count")
	}
	for i := uint32(0); i < defCount; i++ {
		symbolID, ok := br.u32()
		if !ok {
			return nil, vmerr.Load("truncated body: definition %d symbol id", i)
		}
		stringRef, ok := br.u32()
		if !ok {
			return nil, vmerr.Load("truncated body: definition %d string ref", i)
		}
		bcOff, ok := br.i32()
		if !ok {
			return nil, vmerr.Load("truncated body: definition %d bytecode offset", i)
		}
		img.Definitions[symbolID] = Definition{StringRef: stringRef, BytecodeOffset: bcOff}
	}

	bcBytes, ok := br.u32()
	if !ok {
		return nil, vmerr.Load("truncated body: missing bytecode size")
	}
	instr, ok := br.take(int(bcBytes))
	if !ok {
		return nil, vmerr.Load("truncated body: want %d instruction bytes", bcBytes)
	}
	img.Instructions = append([]byte(nil), instr...)

	if img.StringTable, err = readStringList(br); err != nil {
		return nil, err
	}
	if img.TranslationTable, err = readStringList(br); err != nil {
		return nil, err
	}

	extCount, ok := br.u32()
	if !ok {
		return nil, vmerr.Load("truncated body: missing external function count")
	}
	img.ExternalFunctions = make([]uint32, extCount)
	for i := range img.ExternalFunctions {
		id, ok := br.u32()
		if !ok {
			return nil, vmerr.Load("truncated body: external function %d", i)
		}
		img.ExternalFunctions[i] = id
	}

	return img, nil
}

func readSymbolTable(br *byteReader) (map[uint32][]int32, error) {
	count, ok := br.u32()
	if !ok {
		return nil, vmerr.Load("truncated body: missing symbol count")
	}
	table := make(map[uint32][]int32, count)
	for i := uint32(0); i < count; i++ {
		symbolID, ok := br.u32()
		if !ok {
			return nil, vmerr.Load("truncated body: symbol %d id", i)
		}
		offCount, ok := br.u16()
		if !ok {
			return nil, vmerr.Load("truncated body: symbol %d offset count", i)
		}
		offsets := make([]int32, offCount)
		for j := range offsets {
			off, ok := br.i32()
			if !ok {
				return nil, vmerr.Load("truncated body: symbol %d offset %d", i, j)
			}
			offsets[j] = off
		}
		table[symbolID] = offsets
	}
	return table, nil
}

func readStringList(br *byteReader) ([]string, error) {
	count, ok := br.u32()
	if !ok {
		return nil, vmerr.Load("truncated body: missing string count")
	}
	out := make([]string, count)
	for i := range out {
		s, ok := br.cstring()
		if !ok {
			return nil, vmerr.Load("truncated body: string %d", i)
		}
		out[i] = s
	}
	return out, nil
}

// byteReader is a small little-endian cursor over a byte slice, used in
// place of encoding/binary.Read so that truncation is reported as (false)
// rather than a wrapped io.ErrUnexpectedEOF at every call site.
type byteReader struct {
	buf []byte
	pos int
}

func (r *byteReader) take(n int) ([]byte, bool) {
	if n < 0 || r.pos+n > len(r.buf) {
		return nil, false
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, true
}

func (r *byteReader) byte1() (byte, bool) {
	b, ok := r.take(1)
	if !ok {
		return 0, false
	}
	return b[0], true
}

func (r *byteReader) u16() (uint16, bool) {
	b, ok := r.take(2)
	if !ok {
		return 0, false
	}
	return binary.LittleEndian.Uint16(b), true
}

func (r *byteReader) u32() (uint32, bool) {
	b, ok := r.take(4)
	if !ok {
		return 0, false
	}
	return binary.LittleEndian.Uint32(b), true
}

func (r *byteReader) i32() (int32, bool) {
	v, ok := r.u32()
	return int32(v), ok
}

func (r *byteReader) cstring() (string, bool) {
	start := r.pos
	for r.pos < len(r.buf) {
		if r.buf[r.pos] == 0 {
			s := string(r.buf[start:r.pos])
			r.pos++
			return s, true
		}
		r.pos++
	}
	return "", false
}
