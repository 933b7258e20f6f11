// Package bytecode defines the dnxvm instruction set: the opcode enum, the
// operand shape each opcode carries, and a decoder that reads exactly one
// instruction from a byte stream (spec.md §4.1).
package bytecode

import "fmt"

// Opcode is a single-byte instruction tag.
type Opcode byte

// Operand shapes, per spec.md §4.1. Jump targets decoded with ShapeOneI32 for
// the jump family are byte offsets relative to the position of ip
// immediately after the operand is decoded (spec.md §4.1 note).
const ( //nolint:revive
	// no operand
	Nop Opcode = iota
	Save
	Load
	PushUndefined
	PushArrayIndex
	SetArrayIndex
	Pop
	Duplicate
	Duplicate2
	Addition
	Subtraction
	Multiply
	Divide
	Modulo
	Negate
	Invert
	BitLeftShift
	BitRightShift
	BitAnd
	BitOr
	BitXor
	BitNegate
	Power
	CompareEq
	CompareGt
	CompareLt
	CompareGte
	CompareLte
	CompareNeq
	Exit
	Return
	ChoiceBegin
	ChoiceSelect
	ChooseSel
	TextRun

	// one i32 operand
	FreeLocal
	PushInt
	PushString
	PushBinaryString
	MakeArray
	SetVarGlobal
	SetVarLocal
	PushVarGlobal
	PushVarLocal
	Jump
	JumpTruthy
	JumpFalsey
	ChoiceAdd
	ChoiceAddTruthy
	ChooseAdd
	ChooseAddTruthy

	// two i32 operands
	PushInterpolatedString
	PushBinaryInterpolatedString
	Call
	CallExternal

	// one f64 operand
	PushDouble

	opcodeMax = PushDouble
)

// Shape describes how many operand bytes follow an opcode byte.
type Shape byte

const (
	ShapeNone   Shape = iota // 0 bytes
	ShapeOneI32              // 4 bytes
	ShapeTwoI32              // 8 bytes
	ShapeOneF64              // 8 bytes
)

// OperandBytes returns how many bytes of operand follow this opcode.
func (s Shape) OperandBytes() int {
	switch s {
	case ShapeNone:
		return 0
	case ShapeOneI32:
		return 4
	case ShapeTwoI32:
		return 8
	case ShapeOneF64:
		return 8
	default:
		return 0
	}
}

var shapes = [opcodeMax + 1]Shape{
	FreeLocal:                    ShapeOneI32,
	PushInt:                      ShapeOneI32,
	PushString:                   ShapeOneI32,
	PushBinaryString:             ShapeOneI32,
	MakeArray:                    ShapeOneI32,
	SetVarGlobal:                 ShapeOneI32,
	SetVarLocal:                  ShapeOneI32,
	PushVarGlobal:                ShapeOneI32,
	PushVarLocal:                 ShapeOneI32,
	Jump:                         ShapeOneI32,
	JumpTruthy:                   ShapeOneI32,
	JumpFalsey:                   ShapeOneI32,
	ChoiceAdd:                    ShapeOneI32,
	ChoiceAddTruthy:              ShapeOneI32,
	ChooseAdd:                    ShapeOneI32,
	ChooseAddTruthy:              ShapeOneI32,
	PushInterpolatedString:       ShapeTwoI32,
	PushBinaryInterpolatedString: ShapeTwoI32,
	Call:                         ShapeTwoI32,
	CallExternal:                 ShapeTwoI32,
	PushDouble:                   ShapeOneF64,
}

// Shape returns the operand shape for op. Opcodes beyond the known set
// (including op > opcodeMax) report ShapeNone; Decode independently
// validates the opcode byte itself.
func (op Opcode) Shape() Shape {
	if int(op) >= len(shapes) {
		return ShapeNone
	}
	return shapes[op]
}

var opcodeNames = [opcodeMax + 1]string{
	Nop:                          "nop",
	Save:                         "save",
	Load:                         "load",
	PushUndefined:                "push_undefined",
	PushArrayIndex:               "push_array_index",
	SetArrayIndex:                "set_array_index",
	Pop:                          "pop",
	Duplicate:                    "duplicate",
	Duplicate2:                   "duplicate2",
	Addition:                     "addition",
	Subtraction:                  "subtraction",
	Multiply:                     "multiply",
	Divide:                       "divide",
	Modulo:                       "modulo",
	Negate:                       "negate",
	Invert:                       "invert",
	BitLeftShift:                 "bit_left_shift",
	BitRightShift:                "bit_right_shift",
	BitAnd:                       "bit_and",
	BitOr:                        "bit_or",
	BitXor:                       "bit_xor",
	BitNegate:                    "bit_negate",
	Power:                        "power",
	CompareEq:                    "compare_eq",
	CompareGt:                    "compare_gt",
	CompareLt:                    "compare_lt",
	CompareGte:                   "compare_gte",
	CompareLte:                   "compare_lte",
	CompareNeq:                   "compare_neq",
	Exit:                         "exit",
	Return:                       "return",
	ChoiceBegin:                  "choice_begin",
	ChoiceSelect:                 "choice_select",
	ChooseSel:                    "choose_sel",
	TextRun:                      "text_run",
	FreeLocal:                    "free_local",
	PushInt:                      "push_int",
	PushString:                   "push_string",
	PushBinaryString:             "push_binary_string",
	MakeArray:                    "make_array",
	SetVarGlobal:                 "set_var_global",
	SetVarLocal:                  "set_var_local",
	PushVarGlobal:                "push_var_global",
	PushVarLocal:                 "push_var_local",
	Jump:                         "jump",
	JumpTruthy:                   "jump_truthy",
	JumpFalsey:                   "jump_falsey",
	ChoiceAdd:                    "choice_add",
	ChoiceAddTruthy:              "choice_add_truthy",
	ChooseAdd:                    "choose_add",
	ChooseAddTruthy:              "choose_add_truthy",
	PushInterpolatedString:       "push_interpolated_string",
	PushBinaryInterpolatedString: "push_binary_interpolated_string",
	Call:                         "call",
	CallExternal:                 "call_external",
	PushDouble:                   "push_double",
}

// String returns the opcode's mnemonic, or "?unknown?" if out of range.
func (op Opcode) String() string {
	if int(op) >= len(opcodeNames) || opcodeNames[op] == "" {
		return "?unknown?"
	}
	return opcodeNames[op]
}

// Valid reports whether op is a recognized instruction.
func (op Opcode) Valid() bool {
	return int(op) < len(opcodeNames) && opcodeNames[op] != ""
}

func init() {
	// catch a missing name/shape entry at package init rather than at
	// first use deep in a decode loop.
	for op := Opcode(0); op <= opcodeMax; op++ {
		if opcodeNames[op] == "" {
			panic(fmt.Sprintf("bytecode: opcode %d has no mnemonic", op))
		}
	}
}
