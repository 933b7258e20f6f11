package machine

import "github.com/loomtale/dnxvm/value"

// evalFlagPreamble implements spec.md §4.3: pairs is [v0, n0, v1, n1, ...].
// For each pair, it runs a sub-execution at vi for the default value and
// at ni for the flag name, stores the default under that name only if
// absent (first-write-wins), and records the local-slot binding.
func (vm *VM) evalFlagPreamble(pairs []int32) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		slot := i / 2

		def, err := vm.runSub(int(pairs[i]))
		if err != nil {
			return err
		}
		nameV, err := vm.runSub(int(pairs[i+1]))
		if err != nil {
			return err
		}
		if err := vm.checkTag(nameV, value.String, "flag_preamble", vm.ip, "flag name"); err != nil {
			return err
		}
		name := nameV.Str()

		vm.flags.setIfAbsent(name, def)
		vm.locals.bindFlag(slot, name)
	}
	return nil
}
