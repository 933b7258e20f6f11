package machine

import "github.com/loomtale/dnxvm/value"

// locals is the per-activation local-variable store: a dense slice of
// slots overlaid with a sparse flag-name binding (spec.md §3, §4.2, Design
// Notes §9). Reads of a flag-bound slot route through the VM's persistent
// flag store instead of the slot itself.
type locals struct {
	slots   []value.Value
	flagMap map[int]string // slot index -> bound flag name, only for flag-preamble slots
}

func newLocals() *locals {
	return &locals{}
}

// get returns the value at index, dereferencing through the flag store if
// the slot is flag-bound.
func (l *locals) get(vm *VM, index int) (value.Value, error) {
	if name, bound := l.flagMap[index]; bound {
		return vm.flags.get(name), nil
	}
	if index < 0 || index >= len(l.slots) {
		return value.Undef, nil
	}
	return l.slots[index], nil
}

// set writes v at index. If id is beyond the current slot count, the slots
// are padded with Undefined up to index-1 before appending (spec.md §4.2).
// Writes to a flag-bound slot update the flag store instead of the slot.
func (l *locals) set(vm *VM, index int, v value.Value) {
	if name, bound := l.flagMap[index]; bound {
		vm.flags.set(name, v)
		return
	}
	for len(l.slots) <= index {
		l.slots = append(l.slots, value.Undef)
	}
	l.slots[index] = v
}

// free removes a slot (or, if bound, its flag binding) per spec.md §4.2's
// FreeLocal semantics.
func (l *locals) free(index int) {
	if _, bound := l.flagMap[index]; bound {
		delete(l.flagMap, index)
		return
	}
	if index >= 0 && index < len(l.slots) {
		// shrink only from the tail to avoid renumbering live indices;
		// an interior free just clears the slot.
		if index == len(l.slots)-1 {
			l.slots = l.slots[:index]
		} else {
			l.slots[index] = value.Undef
		}
	}
}

// bindFlag records that slot index is bound to the named persistent flag
// (spec.md §4.3).
func (l *locals) bindFlag(index int, name string) {
	if l.flagMap == nil {
		l.flagMap = make(map[int]string)
	}
	l.flagMap[index] = name
}

// frame is a saved activation on the call stack: the caller's instruction
// pointer, operand stack, and locals, restored when the callee returns
// (spec.md §3: "call_stack: LIFO of saved frames (ip, stack, locals)").
type frame struct {
	ip     int
	stack  []value.Value
	locals *locals
}
