package machine

import (
	"github.com/loomtale/dnxvm/bytecode"
	"github.com/loomtale/dnxvm/value"
	"github.com/loomtale/dnxvm/vmerr"
)

// execExit implements spec.md §4.2's Exit: clears locals; if call_stack is
// empty, finishes the activation; otherwise it behaves like a Return of
// Undefined.
func (vm *VM) execExit() {
	vm.locals = newLocals()
	if len(vm.callStack) == 0 {
		vm.ip = -1
		vm.paused = true
		vm.sceneCompleted = true
		return
	}
	vm.popFrame(value.Undef)
}

// execReturn implements spec.md §4.2's Return: pops a return value,
// restores the top frame, and pushes the return value.
func (vm *VM) execReturn(op string) error {
	v, err := vm.pop(op)
	if err != nil {
		return err
	}
	if len(vm.callStack) == 0 {
		// No caller to return to: behaves like a top-level Exit, the value
		// is discarded along with the rest of this activation's state.
		vm.locals = newLocals()
		vm.ip = -1
		vm.paused = true
		vm.sceneCompleted = true
		return nil
	}
	vm.popFrame(v)
	return nil
}

// popFrame restores the top saved frame and pushes result onto its stack,
// completing a Call/sub-execution (spec.md §4.2, §4.3).
func (vm *VM) popFrame(result value.Value) {
	n := len(vm.callStack) - 1
	f := vm.callStack[n]
	vm.callStack = vm.callStack[:n]
	vm.ip = f.ip
	vm.stack = f.stack
	vm.locals = f.locals
	vm.push(result)
}

// execCall implements spec.md §4.2's Call: pops argc values into locals
// 0..argc-1 (first popped becomes local[0]), saves the current frame, runs
// the callee's flag preamble, then enters at its offset[0].
func (vm *VM) execCall(instr bytecode.Instruction, next int) error {
	fnIndex := uint32(instr.I32[0])
	argc := int(instr.I32[1])

	offsets, ok := vm.img.FunctionOffsets(fnIndex)
	if !ok {
		return vmerr.Lookup("Call", instr.Offset, "unknown function symbol %d", fnIndex)
	}
	if len(offsets) == 0 {
		return vmerr.Load("function symbol %d has no entry offset", fnIndex)
	}
	if argc < 0 || argc > len(vm.stack) {
		return vmerr.Bounds("Call", instr.Offset, "argc %d exceeds stack depth %d", argc, len(vm.stack))
	}

	args := make([]value.Value, argc)
	for i := 0; i < argc; i++ {
		v, err := vm.pop("Call")
		if err != nil {
			return err
		}
		args[i] = v // first popped is local[0]
	}

	vm.callStack = append(vm.callStack, frame{ip: next, stack: vm.stack, locals: vm.locals})

	callee := newLocals()
	for i, a := range args {
		callee.set(vm, i, a)
	}
	vm.locals = callee
	vm.stack = nil

	if err := vm.evalFlagPreamble(offsets[1:]); err != nil {
		return err
	}

	vm.ip = int(offsets[0])
	return nil
}

// execCallExternal implements spec.md §4.2's CallExternal: pops argc
// values (first popped = args[0]), invokes the host registry by name, and
// pushes its returned Value.
func (vm *VM) execCallExternal(instr bytecode.Instruction, next int) error {
	nameID := uint32(instr.I32[0])
	argc := int(instr.I32[1])
	name := vm.img.String(nameID)

	if argc < 0 || argc > len(vm.stack) {
		return vmerr.Bounds("CallExternal", instr.Offset, "argc %d exceeds stack depth %d", argc, len(vm.stack))
	}
	args := make([]value.Value, argc)
	for i := 0; i < argc; i++ {
		v, err := vm.pop("CallExternal")
		if err != nil {
			return err
		}
		args[i] = v
	}

	if vm.registry == nil {
		return vmerr.Lookup("CallExternal", instr.Offset, "no function registry bound, cannot call %q", name)
	}
	result, err := vm.registry.Invoke(name, args)
	if err != nil {
		return vmerr.Host("CallExternal", instr.Offset, err, "external call %q failed", name)
	}
	vm.push(result)
	vm.ip = next
	return nil
}

// runSub runs a bounded, self-contained sub-execution starting at offset
// until it returns or exits, used by the flag preamble (§4.3) and
// definition interpolation (§4.7). It drives execOne in a tight loop
// rather than pacing with host ticks (Design Notes §9: "a bounded inner
// driver").
//
// It reuses the Call/Return machinery: pushing a frame makes Return/Exit's
// existing popFrame logic restore the caller transparently. If the
// sub-execution instead tries to suspend (TextRun/ChoiceSelect), that is
// undefined behavior per spec.md §4.3; runSub aborts the drive and forces
// the outer frame back without corrupting it.
func (vm *VM) runSub(offset int) (value.Value, error) {
	baseDepth := len(vm.callStack)
	vm.callStack = append(vm.callStack, frame{ip: vm.ip, stack: vm.stack, locals: vm.locals})
	vm.ip = offset
	vm.stack = nil
	vm.locals = newLocals()

	for len(vm.callStack) > baseDepth {
		if vm.runningText || vm.selectChoice {
			return vm.abortSub(baseDepth)
		}
		if err := vm.execOne(); err != nil {
			f := vm.callStack[baseDepth]
			vm.callStack = vm.callStack[:baseDepth]
			vm.ip = f.ip
			vm.stack = f.stack
			vm.locals = f.locals
			return value.Undef, err
		}
	}

	return vm.pop("sub-execution")
}

// abortSub forcibly unwinds back to baseDepth after a sub-execution tried
// to suspend, restoring the outer activation without running its own
// remaining instructions.
func (vm *VM) abortSub(baseDepth int) (value.Value, error) {
	vm.warnf("sub-execution attempted to suspend; aborting without a result")
	if len(vm.callStack) <= baseDepth {
		return value.Undef, nil
	}
	f := vm.callStack[baseDepth]
	vm.callStack = vm.callStack[:baseDepth]
	vm.ip = f.ip
	vm.stack = f.stack
	vm.locals = f.locals
	vm.runningText = false
	vm.selectChoice = false
	vm.paused = false
	return value.Undef, nil
}
