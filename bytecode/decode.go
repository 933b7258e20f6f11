package bytecode

import (
	"encoding/binary"
	"math"

	"github.com/loomtale/dnxvm/vmerr"
)

// Instruction is one decoded instruction: its opcode and its operands
// (interpreted according to Op.Shape()).
type Instruction struct {
	Op     Opcode
	I32    [2]int32 // valid entries depend on Op.Shape(): 0, 1, or 2
	F64    float64  // valid iff Op.Shape() == ShapeOneF64
	Offset int      // byte offset of Op within the instruction stream
	Next   int      // byte offset of the following instruction
}

// Decode reads exactly one instruction from code starting at offset. It
// returns the decoded instruction; Next is the offset to resume decoding
// from, and is also the base for relative jump targets (spec.md §4.1: "byte
// offsets relative to the first byte after the encoded operand(s)").
func Decode(code []byte, offset int) (Instruction, error) {
	if offset < 0 || offset >= len(code) {
		return Instruction{}, vmerr.Bounds("", offset, "instruction pointer out of range")
	}
	op := Opcode(code[offset])
	if !op.Valid() {
		return Instruction{}, vmerr.Lookup("", offset, "unknown opcode byte 0x%02x", code[offset])
	}

	instr := Instruction{Op: op, Offset: offset}
	pos := offset + 1
	shape := op.Shape()
	need := shape.OperandBytes()
	if pos+need > len(code) {
		return Instruction{}, vmerr.Load("truncated instruction stream decoding %s at offset %d", op, offset)
	}

	switch shape {
	case ShapeNone:
		// nothing to read
	case ShapeOneI32:
		instr.I32[0] = readI32(code, pos)
		pos += 4
	case ShapeTwoI32:
		instr.I32[0] = readI32(code, pos)
		pos += 4
		instr.I32[1] = readI32(code, pos)
		pos += 4
	case ShapeOneF64:
		bits := binary.LittleEndian.Uint64(code[pos : pos+8])
		instr.F64 = math.Float64frombits(bits)
		pos += 8
	}

	instr.Next = pos
	return instr, nil
}

func readI32(code []byte, pos int) int32 {
	return int32(binary.LittleEndian.Uint32(code[pos : pos+4]))
}

// Encode appends the wire encoding of op with operands args (interpreted
// according to op.Shape(), matching Decode's layout) to dst and returns the
// extended slice. It is the encode-side counterpart to Decode, used by
// tests to build instruction streams without a full external compiler.
func Encode(dst []byte, op Opcode, args ...int32) []byte {
	dst = append(dst, byte(op))
	switch op.Shape() {
	case ShapeNone:
	case ShapeOneI32:
		dst = appendI32(dst, args[0])
	case ShapeTwoI32:
		dst = appendI32(dst, args[0])
		dst = appendI32(dst, args[1])
	case ShapeOneF64:
		panic("bytecode: Encode called with int32 args for a float64 opcode; use EncodeF64")
	}
	return dst
}

// EncodeF64 appends a ShapeOneF64 instruction (PushDouble) to dst.
func EncodeF64(dst []byte, op Opcode, f float64) []byte {
	dst = append(dst, byte(op))
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(f))
	return append(dst, buf[:]...)
}

func appendI32(dst []byte, v int32) []byte {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(v))
	return append(dst, buf[:]...)
}
