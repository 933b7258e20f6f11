// Package image implements the dnxvm binary program format (spec.md §4.8):
// parsing a compiled dialogue program into an immutable in-memory Image, and
// serializing one back out for round-trip testing and tooling.
package image

// Definition is a named string resolution entry (spec.md §3): a tagged
// string reference plus an optional bytecode offset that, when present, is
// run to produce interpolation arguments for the resolved template.
type Definition struct {
	StringRef      uint32 // high bit set => translation table, low 31 bits => index; high bit clear => string table index
	BytecodeOffset int32  // -1 means absent
}

// HasBytecode reports whether this definition carries a sub-execution
// offset (spec.md §4.7).
func (d Definition) HasBytecode() bool { return d.BytecodeOffset >= 0 }

const translationRefBit = uint32(1) << 31

// DecodeStringRef splits a tagged string reference into which table it
// names and the index within that table (spec.md §3).
func DecodeStringRef(ref uint32) (translation bool, index uint32) {
	if ref&translationRefBit != 0 {
		return true, ref &^ translationRefBit
	}
	return false, ref
}

// EncodeStringRef builds a tagged string reference.
func EncodeStringRef(translation bool, index uint32) uint32 {
	if translation {
		return index | translationRefBit
	}
	return index
}

// Image is a parsed, mostly-immutable dialogue program (spec.md §3).
// Everything is immutable after Load except TranslationTable, which may be
// replaced wholesale by a translation-file reload.
type Image struct {
	StringTable       []string // internal strings: symbol names, external-function names, binary string literals
	TranslationTable  []string // user-facing dialogue strings
	TranslationLoaded bool

	Instructions []byte // raw instruction byte buffer; ip values are offsets into this

	// Scenes and Functions map a symbol ID to an ordered sequence of byte
	// offsets: offset[0] is the entry point; subsequent offsets come in
	// (flag-value-expr, flag-name-expr) pairs (spec.md §3, §4.3).
	Scenes    map[uint32][]int32
	Functions map[uint32][]int32

	Definitions map[uint32]Definition

	ExternalFunctions []uint32 // symbol IDs, informational only
}

// SceneOffsets returns the offset list for the named scene symbol, or false
// if unknown.
func (img *Image) SceneOffsets(symbolID uint32) ([]int32, bool) {
	offs, ok := img.Scenes[symbolID]
	return offs, ok
}

// FunctionOffsets returns the offset list for the named function symbol, or
// false if unknown.
func (img *Image) FunctionOffsets(symbolID uint32) ([]int32, bool) {
	offs, ok := img.Functions[symbolID]
	return offs, ok
}

// String returns the internal string table entry at index, or "" if out of
// range.
func (img *Image) String(index uint32) string {
	if int(index) >= len(img.StringTable) {
		return ""
	}
	return img.StringTable[index]
}

// Translation returns the translation table entry at index, or "" if out of
// range or translations are not loaded.
func (img *Image) Translation(index uint32) string {
	if !img.TranslationLoaded || int(index) >= len(img.TranslationTable) {
		return ""
	}
	return img.TranslationTable[index]
}

// ResolveStringRef looks up a tagged string reference in the appropriate
// table.
func (img *Image) ResolveStringRef(ref uint32) string {
	isTranslation, idx := DecodeStringRef(ref)
	if isTranslation {
		return img.Translation(idx)
	}
	return img.String(idx)
}
