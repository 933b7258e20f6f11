// Package disasm formats a parsed binary image as human-readable
// assembly text, walking the flat instruction stream the way
// lang/ast.Printer walks a tree (spec.md §4.1, §9: "disassembly is
// informative and not part of the VM contract").
package disasm

import (
	"fmt"
	"io"
	"strings"

	"github.com/loomtale/dnxvm/bytecode"
	"github.com/loomtale/dnxvm/image"
)

// Printer controls disassembly output, mirroring lang/ast.Printer's
// Output/options shape.
type Printer struct {
	Output io.Writer
	// Addresses includes each instruction's byte offset as a left column.
	Addresses bool
}

// Print writes, for each scene and function, the instructions from its
// entry offset up to the first Return or Exit, followed by its flag-preamble
// offset pairs, to p.Output. Instructions outside those linear runs (the
// preamble expressions, code reached only by jumps) are not printed.
func (p *Printer) Print(img *image.Image) error {
	w := p.Output

	for _, name := range []string{"scenes", "functions"} {
		table := img.Scenes
		if name == "functions" {
			table = img.Functions
		}
		for symbolID, offsets := range table {
			if len(offsets) == 0 {
				continue
			}
			fmt.Fprintf(w, "%s %s (symbol %d):\n", strings.TrimSuffix(name, "s"), img.String(symbolID), symbolID)
			if err := p.printRange(img, int(offsets[0])); err != nil {
				return err
			}
			for i := 1; i+1 < len(offsets); i += 2 {
				fmt.Fprintf(w, "  flag preamble pair %d: value@%d name@%d\n", i/2, offsets[i], offsets[i+1])
			}
		}
	}
	return nil
}

// printRange decodes and writes instructions starting at offset until a
// Return, Exit, or decode error is reached.
func (p *Printer) printRange(img *image.Image, offset int) error {
	ip := offset
	for ip >= 0 && ip < len(img.Instructions) {
		instr, err := bytecode.Decode(img.Instructions, ip)
		if err != nil {
			return err
		}
		p.printInstruction(instr)
		if instr.Op == bytecode.Return || instr.Op == bytecode.Exit {
			return nil
		}
		ip = instr.Next
	}
	return nil
}

func (p *Printer) printInstruction(instr bytecode.Instruction) {
	w := p.Output
	if p.Addresses {
		fmt.Fprintf(w, "  %6d  ", instr.Offset)
	} else {
		fmt.Fprint(w, "  ")
	}

	switch instr.Op.Shape() {
	case bytecode.ShapeNone:
		fmt.Fprintf(w, "%s\n", instr.Op)
	case bytecode.ShapeOneI32:
		fmt.Fprintf(w, "%s %d\n", instr.Op, instr.I32[0])
	case bytecode.ShapeTwoI32:
		fmt.Fprintf(w, "%s %d, %d\n", instr.Op, instr.I32[0], instr.I32[1])
	case bytecode.ShapeOneF64:
		fmt.Fprintf(w, "%s %g\n", instr.Op, instr.F64)
	}
}

// Format is a convenience wrapper returning the disassembly as a string.
func Format(img *image.Image) (string, error) {
	var sb strings.Builder
	p := Printer{Output: &sb, Addresses: true}
	if err := p.Print(img); err != nil {
		return "", err
	}
	return sb.String(), nil
}
