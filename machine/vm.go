// Package machine implements the dnxvm execution core: opcode dispatch,
// the call/flag/local-variable machinery, the choice/choose state machine,
// and the text-pause protocol (spec.md §4.2-§4.7).
package machine

import (
	"fmt"
	"io"
	"math/rand/v2"
	"os"

	"github.com/loomtale/dnxvm/bytecode"
	"github.com/loomtale/dnxvm/image"
	"github.com/loomtale/dnxvm/translation"
	"github.com/loomtale/dnxvm/value"
	"github.com/loomtale/dnxvm/vmerr"
)

// FunctionRegistry is the host-function bridge the VM consumes (spec.md
// §6): lookup by name, invoke with a value slice, return a Value.
type FunctionRegistry interface {
	Invoke(name string, args []value.Value) (value.Value, error)
}

// ChanceFunc decides whether a single choice/choose option is offered.
type ChanceFunc func(p float64) bool

// WeightedFunc picks an index among weighted choose options.
type WeightedFunc func(weights []float64) (int, error)

// choiceEntry is one accepted ChoiceAdd/ChoiceAddTruthy option.
type choiceEntry struct {
	target int
	text   string
}

// chooseOption is one accepted ChooseAdd/ChooseAddTruthy option.
type chooseOption struct {
	weight float64
	target int
}

// VM is a single dialogue-program interpreter instance (spec.md §3).
// It is not safe for concurrent use; the host drives it from one
// goroutine via Update/Resume/ChooseChoice.
type VM struct {
	img      *image.Image
	registry FunctionRegistry
	chance   ChanceFunc
	weighted WeightedFunc
	rng      *rand.Rand

	ip     int
	stack  []value.Value
	save   value.Value
	locals *locals

	callStack []frame

	chooseOptions []chooseOption
	choices       []choiceEntry

	paused         bool
	inChoice       bool
	selectChoice   bool
	runningText    bool
	sceneCompleted bool

	currentText  string
	currentScene string

	globals *store
	flags   *store

	definitionsCache map[uint32]string
	sceneByName      map[string]uint32
	funcByName       map[string]uint32
	defByName        map[string]uint32

	steps    uint64
	maxSteps uint64

	// Stderr receives the warnings required by spec.md §7 (executing a
	// dialogue opcode while translations are not loaded).
	Stderr io.Writer
}

// Option configures a VM constructed by New.
type Option func(*VM)

// WithChance overrides the default chance callback.
func WithChance(fn ChanceFunc) Option { return func(vm *VM) { vm.chance = fn } }

// WithWeighted overrides the default weighted-chance callback.
func WithWeighted(fn WeightedFunc) Option { return func(vm *VM) { vm.weighted = fn } }

// WithSeed pins the VM's single RNG, used by the default chance callbacks
// and by ChooseSel's default sampling (Design Notes §9).
func WithSeed(seed uint64) Option {
	return func(vm *VM) { vm.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) }
}

// WithMaxSteps caps the number of instructions executed between two Update
// calls, counting those run by nested sub-executions (flag preambles,
// definition interpolation), so a miscompiled or adversarial image cannot
// hang a host tick. The count restarts at each Update.
func WithMaxSteps(n uint64) Option { return func(vm *VM) { vm.maxSteps = n } }

// New constructs a paused VM bound to img and registry (spec.md §6).
func New(img *image.Image, registry FunctionRegistry, opts ...Option) *VM {
	vm := &VM{
		img:              img,
		registry:         registry,
		locals:           newLocals(),
		globals:          newStore(),
		flags:            newStore(),
		definitionsCache: make(map[uint32]string),
		paused:           true,
		maxSteps:         1_000_000,
		Stderr:           os.Stderr,
	}
	vm.rng = rand.New(rand.NewPCG(1, 2))
	vm.chance = vm.defaultChance
	vm.weighted = vm.defaultWeighted

	for _, opt := range opts {
		opt(vm)
	}
	vm.indexSymbols()
	return vm
}

// defaultChance implements spec.md §6's default: d == 1 ∨ uniform(0,1) < d.
func (vm *VM) defaultChance(p float64) bool {
	if p == 1 {
		return true
	}
	return vm.rng.Float64() < p
}

// defaultWeighted samples proportional to weights using the VM's single
// RNG (Design Notes §9: never construct a fresh RNG per call).
func (vm *VM) defaultWeighted(weights []float64) (int, error) {
	var sum float64
	for _, w := range weights {
		sum += w
	}
	if sum <= 0 {
		return 0, vmerr.State("ChooseSel", vm.ip, "no positive-weight choose options")
	}
	// uniform(0, sum), cumulative threshold (Design Notes §9: fixes the
	// oldest revision's (sum-1) scaling bug).
	r := vm.rng.Float64() * sum
	var cum float64
	for i, w := range weights {
		cum += w
		if r < cum {
			return i, nil
		}
	}
	return len(weights) - 1, nil
}

// indexSymbols builds name->symbolID lookup tables for scenes, functions
// and definitions; RunScene and GetDefinition read them. Symbol
// IDs are string-table indices naming the scene/function/definition
// (spec.md §3's string_table holds "symbol names").
func (vm *VM) indexSymbols() {
	vm.sceneByName = make(map[string]uint32, len(vm.img.Scenes))
	for id := range vm.img.Scenes {
		vm.sceneByName[vm.img.String(id)] = id
	}
	vm.funcByName = make(map[string]uint32, len(vm.img.Functions))
	for id := range vm.img.Functions {
		vm.funcByName[vm.img.String(id)] = id
	}
	vm.defByName = make(map[string]uint32, len(vm.img.Definitions))
	for id := range vm.img.Definitions {
		vm.defByName[vm.img.String(id)] = id
	}
}

// RunScene locates the named scene, runs its flag preamble, positions ip
// at its entry, and unpauses (spec.md §6).
func (vm *VM) RunScene(name string) error {
	id, ok := vm.sceneByName[name]
	if !ok {
		return vmerr.Lookup("run_scene", vm.ip, "unknown scene %q", name)
	}
	offsets := vm.img.Scenes[id]
	if len(offsets) == 0 {
		return vmerr.Load("scene %q has no entry offset", name)
	}

	vm.stack = nil
	vm.save = value.Undef
	vm.locals = newLocals()
	vm.callStack = nil
	vm.chooseOptions = nil
	vm.choices = nil
	vm.inChoice = false
	vm.selectChoice = false
	vm.runningText = false
	vm.sceneCompleted = false
	vm.currentText = ""
	vm.currentScene = name

	if err := vm.evalFlagPreamble(offsets[1:]); err != nil {
		return err
	}

	vm.ip = int(offsets[0])
	vm.paused = false
	return nil
}

// Update decodes and executes exactly one instruction at ip (spec.md
// §4.2). It is a no-op if paused is already set.
func (vm *VM) Update() error {
	if vm.paused {
		return nil
	}
	vm.steps = 0
	return vm.execOne()
}

// Resume clears running_text and unpauses, unless select_choice is also
// set (spec.md §4.5, §6).
func (vm *VM) Resume() {
	vm.runningText = false
	if !vm.selectChoice {
		vm.paused = false
	}
}

// GetFlag reads a persistent flag by name; absent flags read as
// Undefined.
func (vm *VM) GetFlag(name string) value.Value { return vm.flags.get(name) }

// SetFlag writes a persistent flag by name.
func (vm *VM) SetFlag(name string, v value.Value) { vm.flags.set(name, v) }

// GetGlobal reads a persistent global by name.
func (vm *VM) GetGlobal(name string) value.Value { return vm.globals.get(name) }

// SetGlobal writes a persistent global by name.
func (vm *VM) SetGlobal(name string, v value.Value) { vm.globals.set(name, v) }

// LoadTranslationFile replaces the image's translation table and
// invalidates the definitions cache (spec.md §4.7, §6).
func (vm *VM) LoadTranslationFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return vmerr.LoadWrap(err, "opening translation file %s", path)
	}
	defer f.Close()
	return vm.loadTranslation(f)
}

func (vm *VM) loadTranslation(r io.Reader) error {
	lines, err := translation.Load(r)
	if err != nil {
		return err
	}
	vm.img.TranslationTable = lines
	vm.img.TranslationLoaded = true
	vm.definitionsCache = make(map[uint32]string)
	return nil
}

// Observables (spec.md §6, read-only).
func (vm *VM) CurrentText() string  { return vm.currentText }
func (vm *VM) Paused() bool         { return vm.paused }
func (vm *VM) RunningText() bool    { return vm.runningText }
func (vm *VM) SelectChoice() bool   { return vm.selectChoice }
func (vm *VM) SceneCompleted() bool { return vm.sceneCompleted }
func (vm *VM) CurrentScene() string { return vm.currentScene }
func (vm *VM) InChoice() bool       { return vm.inChoice }
func (vm *VM) IP() int              { return vm.ip }

func (vm *VM) Choices() []string {
	out := make([]string, len(vm.choices))
	for i, c := range vm.choices {
		out[i] = c.text
	}
	return out
}

func (vm *VM) warnf(format string, args ...any) {
	fmt.Fprintf(vm.Stderr, "dnxvm: warning: "+format+"\n", args...)
}

// opcodeAt decodes the instruction at vm.ip without advancing it, used by
// execOne.
func (vm *VM) opcodeAt() (bytecode.Instruction, error) {
	return bytecode.Decode(vm.img.Instructions, vm.ip)
}
