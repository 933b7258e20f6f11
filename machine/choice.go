package machine

import (
	"github.com/loomtale/dnxvm/value"
	"github.com/loomtale/dnxvm/vmerr"
)

// execChoiceAdd implements ChoiceAdd/ChoiceAddTruthy (spec.md §4.4). Values
// pop top-first: chance, text, and (if truthy-gated) guard. rel is the
// jump target relative to next (the offset right after the operand).
func (vm *VM) execChoiceAdd(op string, ip, next int, rel int32, truthy bool) error {
	if !vm.inChoice {
		return vmerr.State(op, ip, "%s outside a choice", op)
	}

	chanceV, err := vm.pop(op)
	if err != nil {
		return err
	}
	textV, err := vm.pop(op)
	if err != nil {
		return err
	}

	accept := true
	if truthy {
		guard, err := vm.pop(op)
		if err != nil {
			return err
		}
		accept = guard.Truth()
	}

	if err := vm.checkTag(chanceV, value.Double, op, ip, "chance"); err != nil {
		return err
	}
	if err := vm.checkTag(textV, value.String, op, ip, "text"); err != nil {
		return err
	}

	if accept && vm.chance(chanceV.Float64()) {
		vm.choices = append(vm.choices, choiceEntry{target: next + int(rel), text: textV.Str()})
	}
	vm.ip = next
	return nil
}

// execChooseAdd implements ChooseAdd/ChooseAddTruthy (spec.md §4.4).
func (vm *VM) execChooseAdd(op string, ip, next int, rel int32, truthy bool) error {
	if truthy {
		guard, err := vm.pop(op)
		if err != nil {
			return err
		}
		chance, err := vm.pop(op)
		if err != nil {
			return err
		}
		if err := vm.checkTag(chance, value.Double, op, ip, "chance"); err != nil {
			return err
		}
		if guard.Truth() {
			vm.chooseOptions = append(vm.chooseOptions, chooseOption{weight: chance.Float64(), target: next + int(rel)})
		}
		vm.ip = next
		return nil
	}
	chance, err := vm.pop(op)
	if err != nil {
		return err
	}
	if err := vm.checkTag(chance, value.Double, op, ip, "chance"); err != nil {
		return err
	}
	vm.chooseOptions = append(vm.chooseOptions, chooseOption{weight: chance.Float64(), target: next + int(rel)})
	vm.ip = next
	return nil
}

// execChooseSel implements ChooseSel (spec.md §4.4): invokes the weighted
// callback over the accumulated choose_options' weights and jumps to the
// selected option's target.
func (vm *VM) execChooseSel(op string, ip int) error {
	if len(vm.chooseOptions) == 0 {
		return vmerr.State(op, ip, "ChooseSel with no accumulated choose options")
	}
	weights := make([]float64, len(vm.chooseOptions))
	for i, c := range vm.chooseOptions {
		weights[i] = c.weight
	}
	idx, err := vm.weighted(weights)
	if err != nil {
		return vmerr.State(op, ip, "weighted callback failed: %v", err)
	}
	if idx < 0 || idx >= len(vm.chooseOptions) {
		return vmerr.State(op, ip, "weighted callback returned out-of-range index %d", idx)
	}
	vm.ip = vm.chooseOptions[idx].target
	vm.chooseOptions = nil
	return nil
}

// ChooseChoice implements the host API of the same name (spec.md §4.4,
// §6): selects choices[i], jumps to its target, and clears choice state.
func (vm *VM) ChooseChoice(i int) error {
	if !vm.selectChoice {
		return vmerr.State("ChooseChoice", vm.ip, "not awaiting a choice selection")
	}
	if i < 0 || i >= len(vm.choices) {
		return vmerr.Bounds("ChooseChoice", vm.ip, "choice index %d out of range [0,%d)", i, len(vm.choices))
	}
	vm.ip = vm.choices[i].target
	vm.selectChoice = false
	vm.inChoice = false
	vm.choices = nil
	vm.paused = false
	return nil
}
