package bytecode

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeNoOperand(t *testing.T) {
	code := Encode(nil, Nop)
	instr, err := Decode(code, 0)
	require.NoError(t, err)
	require.Equal(t, Nop, instr.Op)
	require.Equal(t, 1, instr.Next)
}

func TestDecodeOneI32(t *testing.T) {
	code := Encode(nil, PushInt, 42)
	instr, err := Decode(code, 0)
	require.NoError(t, err)
	require.Equal(t, PushInt, instr.Op)
	require.Equal(t, int32(42), instr.I32[0])
	require.Equal(t, 5, instr.Next)
}

func TestDecodeTwoI32(t *testing.T) {
	code := Encode(nil, Call, 3, 2)
	instr, err := Decode(code, 0)
	require.NoError(t, err)
	require.Equal(t, int32(3), instr.I32[0])
	require.Equal(t, int32(2), instr.I32[1])
	require.Equal(t, 9, instr.Next)
}

func TestDecodeF64(t *testing.T) {
	code := EncodeF64(nil, PushDouble, 3.5)
	instr, err := Decode(code, 0)
	require.NoError(t, err)
	require.Equal(t, PushDouble, instr.Op)
	require.Equal(t, 3.5, instr.F64)
	require.Equal(t, 9, instr.Next)
}

func TestDecodeSequenceAdvancesByOperandWidth(t *testing.T) {
	var code []byte
	code = Encode(code, PushInt, 1)
	code = Encode(code, PushInt, 2)
	code = Encode(code, Addition)

	offset := 0
	var ops []Opcode
	for offset < len(code) {
		instr, err := Decode(code, offset)
		require.NoError(t, err)
		ops = append(ops, instr.Op)
		offset = instr.Next
	}
	require.Equal(t, []Opcode{PushInt, PushInt, Addition}, ops)
}

func TestDecodeUnknownOpcode(t *testing.T) {
	_, err := Decode([]byte{0xFF}, 0)
	require.Error(t, err)
}

func TestDecodeTruncated(t *testing.T) {
	_, err := Decode([]byte{byte(PushInt), 0x01, 0x02}, 0)
	require.Error(t, err)
}

func TestDecodeOutOfRange(t *testing.T) {
	_, err := Decode([]byte{byte(Nop)}, 5)
	require.Error(t, err)
}

// TestJumpTargetIsRelativeToNext documents spec.md §4.1: jump targets are byte offsets
// relative to instr.Next (the position right after the operand), not to the
// opcode's own address.
func TestJumpTargetIsRelativeToNext(t *testing.T) {
	code := Encode(nil, JumpTruthy, 10)
	instr, err := Decode(code, 0)
	require.NoError(t, err)
	target := instr.Next + int(instr.I32[0])
	require.Equal(t, 15, target)
}
