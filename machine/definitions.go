package machine

import (
	"github.com/loomtale/dnxvm/image"
	"github.com/loomtale/dnxvm/value"
	"github.com/loomtale/dnxvm/vmerr"
)

// GetDefinition implements spec.md §4.7 and §6: resolves a named
// definition to a string, running its bytecode offset (if present) as a
// sub-execution whose result becomes the positional interpolation
// argument for the decoded template. Results are cached once translations
// are loaded; the cache is invalidated by LoadTranslationFile.
func (vm *VM) GetDefinition(name string) (string, error) {
	id, ok := vm.defByName[name]
	if !ok {
		return "", vmerr.Lookup("get_definition", vm.ip, "unknown definition %q", name)
	}

	if vm.img.TranslationLoaded {
		if cached, ok := vm.definitionsCache[id]; ok {
			return cached, nil
		}
	}

	def := vm.img.Definitions[id]
	isTranslation, idx := image.DecodeStringRef(def.StringRef)
	var template string
	if isTranslation {
		template = vm.img.Translation(idx)
	} else {
		template = vm.img.String(idx)
	}

	var args []value.Value
	if def.HasBytecode() {
		// spec.md §4.7 runs the offset as the same bounded sub-execution
		// used by the flag preamble (§4.3, Design Notes §9); its single
		// result is the definition's interpolation argument.
		result, err := vm.runSub(int(def.BytecodeOffset))
		if err != nil {
			return "", err
		}
		args = []value.Value{result}
	}

	resolved := interpolate(template, args)

	if vm.img.TranslationLoaded {
		vm.definitionsCache[id] = resolved
	}
	return resolved, nil
}
