package machine

import (
	"regexp"
	"strconv"

	"github.com/loomtale/dnxvm/bytecode"
	"github.com/loomtale/dnxvm/value"
	"github.com/loomtale/dnxvm/vmerr"
)

var dollarBraceRe = regexp.MustCompile(`\\?\$\{[^}]*\}`)
var positionalRe = regexp.MustCompile(`\{(\d+)\}`)

// interpolate implements spec.md §4.6's two-step template transform plus
// positional substitution: literal ${expr} becomes {expr}; escaped
// \${expr} becomes literal ${expr}; then {i} is replaced by args[i]'s
// rendered text. Any {...} not preceded by $ passes through step one
// untouched (and is still eligible for positional substitution if its
// contents are a bare integer).
func interpolate(template string, args []value.Value) string {
	transformed := dollarBraceRe.ReplaceAllStringFunc(template, func(m string) string {
		if m[0] == '\\' {
			return m[1:] // escaped: keep the literal ${expr} text
		}
		return "{" + m[2:len(m)-1] + "}" // ${expr} -> {expr}
	})

	return positionalRe.ReplaceAllStringFunc(transformed, func(m string) string {
		sub := positionalRe.FindStringSubmatch(m)
		idx, err := strconv.Atoi(sub[1])
		if err != nil || idx < 0 || idx >= len(args) {
			return m
		}
		return args[idx].String()
	})
}

// execPushInterpolated implements PushInterpolatedString/
// PushBinaryInterpolatedString (spec.md §4.6): pops n values (first
// popped substitutes {0}), resolves the template from the translation or
// string table, and pushes the interpolated text.
func (vm *VM) execPushInterpolated(instr bytecode.Instruction, translatable bool) error {
	op := instr.Op.String()
	idx := uint32(instr.I32[0])
	n := int(instr.I32[1])

	if n < 0 || n > len(vm.stack) {
		return vmerr.Bounds(op, instr.Offset, "%s pops %d but stack depth is %d", op, n, len(vm.stack))
	}
	args := make([]value.Value, n)
	for i := 0; i < n; i++ {
		v, err := vm.pop(op)
		if err != nil {
			return err
		}
		args[i] = v
	}

	var template string
	if translatable {
		if !vm.img.TranslationLoaded {
			vm.warnf("%s at ip=%d executed without loaded translations", op, instr.Offset)
			return vmerr.State(op, instr.Offset, "translations not loaded")
		}
		template = vm.img.Translation(idx)
	} else {
		template = vm.img.String(idx)
	}

	vm.push(value.NewString(interpolate(template, args)))
	return nil
}
