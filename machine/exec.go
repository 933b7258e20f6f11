package machine

import (
	"github.com/loomtale/dnxvm/bytecode"
	"github.com/loomtale/dnxvm/value"
	"github.com/loomtale/dnxvm/vmerr"
)

func (vm *VM) push(v value.Value) {
	vm.stack = append(vm.stack, v)
}

func (vm *VM) pop(op string) (value.Value, error) {
	if len(vm.stack) == 0 {
		return value.Undef, vmerr.Bounds(op, vm.ip, "pop from empty stack")
	}
	n := len(vm.stack) - 1
	v := vm.stack[n]
	vm.stack = vm.stack[:n]
	return v, nil
}

// checkTag returns a vmerr.Type error if v's tag isn't want, describing
// what the mistyped operand was for (spec.md §9: operators are total
// functions that fail rather than panic across the dispatch loop).
func (vm *VM) checkTag(v value.Value, want value.Tag, op string, ip int, what string) error {
	if v.Tag() != want {
		return vmerr.Type(op, ip, "%s must be %s, got %s", what, want, v.Tag())
	}
	return nil
}

func (vm *VM) peek(op string) (value.Value, error) {
	if len(vm.stack) == 0 {
		return value.Undef, vmerr.Bounds(op, vm.ip, "peek on empty stack")
	}
	return vm.stack[len(vm.stack)-1], nil
}

// popBinary pops rhs then lhs, matching spec.md §4.2: "the second operand
// popped is the left-hand side".
func (vm *VM) popBinary(op string) (lhs, rhs value.Value, err error) {
	rhs, err = vm.pop(op)
	if err != nil {
		return value.Undef, value.Undef, err
	}
	lhs, err = vm.pop(op)
	if err != nil {
		return value.Undef, value.Undef, err
	}
	return lhs, rhs, nil
}

// execOne decodes and runs exactly one instruction at the current
// activation (vm.ip/stack/locals). It is shared by the host-facing
// Update() and by the nested sub-execution driver (runSub).
func (vm *VM) execOne() error {
	vm.steps++
	if vm.maxSteps != 0 && vm.steps > vm.maxSteps {
		return vmerr.State("execute", vm.ip, "step budget exceeded")
	}

	instr, err := vm.opcodeAt()
	if err != nil {
		return err
	}
	op := instr.Op.String()
	next := instr.Next

	switch instr.Op {
	case bytecode.Nop:
		vm.ip = next

	case bytecode.Save:
		v, err := vm.peek(op)
		if err != nil {
			return err
		}
		vm.save = v
		vm.ip = next

	case bytecode.Load:
		vm.push(vm.save)
		vm.ip = next

	case bytecode.PushUndefined:
		vm.push(value.Undef)
		vm.ip = next

	case bytecode.PushInt:
		vm.push(value.NewInt(instr.I32[0]))
		vm.ip = next

	case bytecode.PushDouble:
		vm.push(value.NewDouble(instr.F64))
		vm.ip = next

	case bytecode.PushString:
		idx := uint32(instr.I32[0])
		if !vm.img.TranslationLoaded {
			vm.warnf("%s at ip=%d executed without loaded translations", op, instr.Offset)
			return vmerr.State(op, instr.Offset, "translations not loaded")
		}
		vm.push(value.NewString(vm.img.Translation(idx)))
		vm.ip = next

	case bytecode.PushBinaryString:
		idx := uint32(instr.I32[0])
		vm.push(value.NewString(vm.img.String(idx)))
		vm.ip = next

	case bytecode.PushInterpolatedString:
		if err := vm.execPushInterpolated(instr, true); err != nil {
			return err
		}
		vm.ip = next

	case bytecode.PushBinaryInterpolatedString:
		if err := vm.execPushInterpolated(instr, false); err != nil {
			return err
		}
		vm.ip = next

	case bytecode.MakeArray:
		n := int(instr.I32[0])
		if n < 0 || n > len(vm.stack) {
			return vmerr.Bounds(op, instr.Offset, "MakeArray %d exceeds stack depth %d", n, len(vm.stack))
		}
		elems := make([]value.Value, n)
		for i := 0; i < n; i++ {
			v, err := vm.pop(op)
			if err != nil {
				return err
			}
			elems[i] = v // element 0 is the first value popped (top of stack)
		}
		vm.push(value.NewArray(elems))
		vm.ip = next

	case bytecode.PushArrayIndex:
		idxV, err := vm.pop(op)
		if err != nil {
			return err
		}
		arr, err := vm.pop(op)
		if err != nil {
			return err
		}
		if arr.Tag() != value.Array {
			return vmerr.Type(op, instr.Offset, "PushArrayIndex on non-array %s", arr.Tag())
		}
		if idxV.Tag() != value.Int {
			return vmerr.Type(op, instr.Offset, "array index must be int, got %s", idxV.Tag())
		}
		idx := idxV.Int32()
		if idx < 0 || int(idx) >= arr.Len() {
			return vmerr.Bounds(op, instr.Offset, "array index %d out of range [0,%d)", idx, arr.Len())
		}
		elem, err := arr.Index(int(idx))
		if err != nil {
			return vmerr.Bounds(op, instr.Offset, "%v", err)
		}
		vm.push(elem)
		vm.ip = next

	case bytecode.SetArrayIndex:
		v, err := vm.pop(op)
		if err != nil {
			return err
		}
		idxV, err := vm.pop(op)
		if err != nil {
			return err
		}
		arr, err := vm.pop(op)
		if err != nil {
			return err
		}
		if arr.Tag() != value.Array {
			return vmerr.Type(op, instr.Offset, "SetArrayIndex on non-array %s", arr.Tag())
		}
		if idxV.Tag() != value.Int {
			return vmerr.Type(op, instr.Offset, "array index must be int, got %s", idxV.Tag())
		}
		idx := idxV.Int32()
		if idx < 0 || int(idx) >= arr.Len() {
			return vmerr.Bounds(op, instr.Offset, "array index %d out of range [0,%d)", idx, arr.Len())
		}
		if err := arr.SetIndex(int(idx), v); err != nil {
			return vmerr.Bounds(op, instr.Offset, "%v", err)
		}
		vm.push(arr)
		vm.ip = next

	case bytecode.Pop:
		if _, err := vm.pop(op); err != nil {
			return err
		}
		vm.ip = next

	case bytecode.Duplicate:
		v, err := vm.peek(op)
		if err != nil {
			return err
		}
		vm.push(v)
		vm.ip = next

	case bytecode.Duplicate2:
		if len(vm.stack) < 2 {
			return vmerr.Bounds(op, instr.Offset, "Duplicate2 needs 2 values, have %d", len(vm.stack))
		}
		a, b := vm.stack[len(vm.stack)-2], vm.stack[len(vm.stack)-1]
		vm.push(a)
		vm.push(b)
		vm.ip = next

	case bytecode.Addition, bytecode.Subtraction, bytecode.Multiply, bytecode.Divide, bytecode.Modulo,
		bytecode.BitLeftShift, bytecode.BitRightShift, bytecode.BitAnd, bytecode.BitOr, bytecode.BitXor, bytecode.Power:
		lhs, rhs, err := vm.popBinary(op)
		if err != nil {
			return err
		}
		result, err := vm.binaryArith(instr.Op, lhs, rhs, instr.Offset)
		if err != nil {
			return err
		}
		vm.push(result)
		vm.ip = next

	case bytecode.Negate:
		v, err := vm.pop(op)
		if err != nil {
			return err
		}
		r, err := value.Negate(v)
		if err != nil {
			return vmerr.Type(op, instr.Offset, "%v", err)
		}
		vm.push(r)
		vm.ip = next

	case bytecode.Invert:
		v, err := vm.pop(op)
		if err != nil {
			return err
		}
		r, err := value.Invert(v)
		if err != nil {
			return vmerr.Type(op, instr.Offset, "%v", err)
		}
		vm.push(r)
		vm.ip = next

	case bytecode.BitNegate:
		v, err := vm.pop(op)
		if err != nil {
			return err
		}
		r, err := value.BitNegate(v)
		if err != nil {
			return vmerr.Type(op, instr.Offset, "%v", err)
		}
		vm.push(r)
		vm.ip = next

	case bytecode.CompareEq, bytecode.CompareNeq, bytecode.CompareGt, bytecode.CompareLt, bytecode.CompareGte, bytecode.CompareLte:
		lhs, rhs, err := vm.popBinary(op)
		if err != nil {
			return err
		}
		result, err := vm.compare(instr.Op, lhs, rhs, instr.Offset)
		if err != nil {
			return err
		}
		vm.push(result)
		vm.ip = next

	case bytecode.FreeLocal:
		vm.locals.free(int(instr.I32[0]))
		vm.ip = next

	case bytecode.SetVarLocal:
		v, err := vm.pop(op)
		if err != nil {
			return err
		}
		vm.locals.set(vm, int(instr.I32[0]), v)
		vm.ip = next

	case bytecode.PushVarLocal:
		v, err := vm.locals.get(vm, int(instr.I32[0]))
		if err != nil {
			return err
		}
		vm.push(v)
		vm.ip = next

	case bytecode.SetVarGlobal:
		v, err := vm.pop(op)
		if err != nil {
			return err
		}
		name := vm.img.String(uint32(instr.I32[0]))
		vm.globals.set(name, v)
		vm.ip = next

	case bytecode.PushVarGlobal:
		name := vm.img.String(uint32(instr.I32[0]))
		vm.push(vm.globals.get(name))
		vm.ip = next

	case bytecode.Jump:
		vm.ip = next + int(instr.I32[0])

	case bytecode.JumpTruthy:
		v, err := vm.pop(op)
		if err != nil {
			return err
		}
		if v.Truth() {
			vm.ip = next + int(instr.I32[0])
		} else {
			vm.ip = next
		}

	case bytecode.JumpFalsey:
		v, err := vm.pop(op)
		if err != nil {
			return err
		}
		if !v.Truth() {
			vm.ip = next + int(instr.I32[0])
		} else {
			vm.ip = next
		}

	case bytecode.Exit:
		vm.execExit()

	case bytecode.Return:
		if err := vm.execReturn(op); err != nil {
			return err
		}

	case bytecode.Call:
		if err := vm.execCall(instr, next); err != nil {
			return err
		}

	case bytecode.CallExternal:
		if err := vm.execCallExternal(instr, next); err != nil {
			return err
		}

	case bytecode.ChoiceBegin:
		if vm.inChoice {
			return vmerr.State(op, instr.Offset, "ChoiceBegin while already in a choice")
		}
		vm.inChoice = true
		vm.choices = nil
		vm.ip = next

	case bytecode.ChoiceAdd:
		if err := vm.execChoiceAdd(op, instr.Offset, next, instr.I32[0], false); err != nil {
			return err
		}

	case bytecode.ChoiceAddTruthy:
		if err := vm.execChoiceAdd(op, instr.Offset, next, instr.I32[0], true); err != nil {
			return err
		}

	case bytecode.ChoiceSelect:
		if !vm.inChoice {
			return vmerr.State(op, instr.Offset, "ChoiceSelect outside a choice")
		}
		if len(vm.choices) == 0 {
			return vmerr.State(op, instr.Offset, "ChoiceSelect with no accumulated choices")
		}
		vm.selectChoice = true
		vm.paused = true
		vm.ip = next

	case bytecode.ChooseAdd:
		if err := vm.execChooseAdd(op, instr.Offset, next, instr.I32[0], false); err != nil {
			return err
		}

	case bytecode.ChooseAddTruthy:
		if err := vm.execChooseAdd(op, instr.Offset, next, instr.I32[0], true); err != nil {
			return err
		}

	case bytecode.ChooseSel:
		if err := vm.execChooseSel(op, instr.Offset); err != nil {
			return err
		}

	case bytecode.TextRun:
		s, err := vm.pop(op)
		if err != nil {
			return err
		}
		if s.Tag() != value.String {
			return vmerr.Type(op, instr.Offset, "TextRun on non-string %s", s.Tag())
		}
		vm.currentText = s.Str()
		vm.runningText = true
		vm.paused = true
		vm.ip = next

	default:
		return vmerr.Load("unhandled opcode %s at ip=%d", op, instr.Offset)
	}

	return nil
}

func (vm *VM) binaryArith(op bytecode.Opcode, lhs, rhs value.Value, ip int) (value.Value, error) {
	var r value.Value
	var err error
	switch op {
	case bytecode.Addition:
		r, err = value.Add(lhs, rhs)
	case bytecode.Subtraction:
		r, err = value.Sub(lhs, rhs)
	case bytecode.Multiply:
		r, err = value.Mul(lhs, rhs)
	case bytecode.Divide:
		r, err = value.Div(lhs, rhs)
	case bytecode.Modulo:
		r, err = value.Mod(lhs, rhs)
	case bytecode.BitLeftShift:
		r, err = value.BitLeftShift(lhs, rhs)
	case bytecode.BitRightShift:
		r, err = value.BitRightShift(lhs, rhs)
	case bytecode.BitAnd:
		r, err = value.BitAnd(lhs, rhs)
	case bytecode.BitOr:
		r, err = value.BitOr(lhs, rhs)
	case bytecode.BitXor:
		r, err = value.BitXor(lhs, rhs)
	case bytecode.Power:
		r, err = value.Power(lhs, rhs)
	}
	if err != nil {
		return value.Undef, vmerr.Type(op.String(), ip, "%v", err)
	}
	return r, nil
}

func (vm *VM) compare(op bytecode.Opcode, lhs, rhs value.Value, ip int) (value.Value, error) {
	if op == bytecode.CompareEq || op == bytecode.CompareNeq {
		eq := value.Equal(lhs, rhs)
		if op == bytecode.CompareNeq {
			eq = !eq
		}
		return value.NewInt(boolToInt(eq)), nil
	}
	cmp, err := value.Cmp(lhs, rhs)
	if err != nil {
		return value.Undef, vmerr.Type(op.String(), ip, "%v", err)
	}
	var result bool
	switch op {
	case bytecode.CompareGt:
		result = cmp > 0
	case bytecode.CompareLt:
		result = cmp < 0
	case bytecode.CompareGte:
		result = cmp >= 0
	case bytecode.CompareLte:
		result = cmp <= 0
	}
	return value.NewInt(boolToInt(result)), nil
}

func boolToInt(b bool) int32 {
	if b {
		return 1
	}
	return 0
}
