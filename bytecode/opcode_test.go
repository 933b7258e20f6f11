package bytecode

import (
	"strings"
	"testing"
)

func TestOpcodeString(t *testing.T) {
	for op := Opcode(0); op <= opcodeMax; op++ {
		if s := op.String(); strings.Contains(s, "unknown") {
			t.Errorf("missing string representation of opcode %d", op)
		}
	}
	if s := Opcode(255).String(); !strings.Contains(s, "unknown") {
		t.Errorf("expected unknown opcode marker, got %q", s)
	}
}

func TestOpcodeShapes(t *testing.T) {
	noOperand := []Opcode{Nop, Save, Load, Pop, Duplicate, Duplicate2, Addition, Exit, Return, ChoiceBegin, ChoiceSelect, ChooseSel, TextRun}
	for _, op := range noOperand {
		if got := op.Shape().OperandBytes(); got != 0 {
			t.Errorf("%s: want 0 operand bytes, got %d", op, got)
		}
	}

	oneI32 := []Opcode{FreeLocal, PushInt, Jump, JumpTruthy, ChoiceAdd, ChooseAdd}
	for _, op := range oneI32 {
		if got := op.Shape().OperandBytes(); got != 4 {
			t.Errorf("%s: want 4 operand bytes, got %d", op, got)
		}
	}

	twoI32 := []Opcode{PushInterpolatedString, Call, CallExternal}
	for _, op := range twoI32 {
		if got := op.Shape().OperandBytes(); got != 8 {
			t.Errorf("%s: want 8 operand bytes, got %d", op, got)
		}
	}

	if got := PushDouble.Shape().OperandBytes(); got != 8 {
		t.Errorf("PushDouble: want 8 operand bytes, got %d", got)
	}
}
