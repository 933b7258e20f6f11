// Package hostcmd implements the dnxvm sample CLI host: a thin driver
// loop around machine.VM, built the way internal/maincmd drives the
// nenuphar compiler's subcommands (flag parsing via mna/mainer, reflection
// dispatch over exported methods).
package hostcmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mna/mainer"

	"github.com/loomtale/dnxvm/config"
	"github.com/loomtale/dnxvm/disasm"
	"github.com/loomtale/dnxvm/image"
	"github.com/loomtale/dnxvm/machine"
	"github.com/loomtale/dnxvm/registry"
	"github.com/loomtale/dnxvm/value"
)

const binName = "dnxvm"

var (
	shortUsage = fmt.Sprintf(`
usage: %s [<option>...] <command> <image-path> [<scene>]
Run '%[1]s --help' for details.
`, binName)

	longUsage = fmt.Sprintf(`usage: %s [<option>...] <command> <image-path> [<scene>]
       %[1]s -h|--help
       %[1]s -v|--version

Loads and runs compiled dnxvm binary images.

The <command> can be one of:
       run                       Run <scene> (default "main") to
                                 completion, printing dialogue lines and
                                 prompting for choices on stdin.
       disasm                    Print a disassembly of <image-path> and
                                 exit.

Valid flag options are:
       -h --help                 Show this help and exit.
       -v --version              Print version and exit.
       --translation <path>      Load a translation file before running.
       --seed <n>                Pin the VM's RNG seed.

More information: https://github.com/loomtale/dnxvm
`, binName)
)

// Cmd is the dnxvm CLI's top-level flag and subcommand holder, parsed by
// mna/mainer.Parser the same way internal/maincmd.Cmd is.
type Cmd struct {
	BuildVersion string
	BuildDate    string

	Help        bool   `flag:"h,help"`
	Version     bool   `flag:"v,version"`
	Translation string `flag:"translation"`
	Seed        uint64 `flag:"seed"`

	args  []string
	flags map[string]bool
	cmdFn func(context.Context, mainer.Stdio, []string) error
}

func (c *Cmd) SetArgs(args []string)          { c.args = args }
func (c *Cmd) SetFlags(flags map[string]bool) { c.flags = flags }

func (c *Cmd) Validate() error {
	if c.Help || c.Version {
		return nil
	}
	if len(c.args) == 0 {
		return errors.New("no command specified")
	}

	cmdName := c.args[0]
	commands := buildCmds(c)
	c.cmdFn = commands[cmdName]
	if c.cmdFn == nil {
		return fmt.Errorf("unknown command: %s", cmdName)
	}
	if len(c.args[1:]) == 0 {
		return fmt.Errorf("%s: an image path is required", cmdName)
	}
	return nil
}

// Main is the CLI entry point invoked from cmd/dnxvm/main.go.
func (c *Cmd) Main(args []string, stdio mainer.Stdio) mainer.ExitCode {
	p := mainer.Parser{
		EnvVars:   true,
		EnvPrefix: strings.ToUpper(binName) + "_",
	}
	if err := p.Parse(args, c); err != nil {
		fmt.Fprintf(stdio.Stderr, "invalid arguments: %s\n%s", err, shortUsage)
		return mainer.InvalidArgs
	}

	switch {
	case c.Help:
		fmt.Fprint(stdio.Stdout, longUsage)
		return mainer.Success
	case c.Version:
		fmt.Fprintf(stdio.Stdout, "%s %s %s\n", binName, c.BuildVersion, c.BuildDate)
		return mainer.Success
	}

	ctx := mainer.CancelOnSignal(context.Background(), os.Interrupt)
	if err := c.cmdFn(ctx, stdio, c.args[1:]); err != nil {
		fmt.Fprintln(stdio.Stderr, err)
		return mainer.Failure
	}
	return mainer.Success
}

// Disasm implements the "disasm" subcommand.
func (c *Cmd) Disasm(_ context.Context, stdio mainer.Stdio, args []string) error {
	img, err := loadImage(args[0])
	if err != nil {
		return err
	}
	text, err := disasm.Format(img)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(stdio.Stdout, text)
	return err
}

// Run implements the "run" subcommand: it drives a VM to completion,
// printing dialogue lines and reading choice selections from stdin.
func (c *Cmd) Run(_ context.Context, stdio mainer.Stdio, args []string) error {
	img, err := loadImage(args[0])
	if err != nil {
		return err
	}

	sceneName := "main"
	if len(args) > 1 {
		sceneName = args[1]
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	var opts []machine.Option
	seed := c.Seed
	if seed == 0 {
		seed = cfg.RNGSeed
	}
	if seed != 0 {
		opts = append(opts, machine.WithSeed(seed))
	}
	if cfg.MaxSteps != 0 {
		opts = append(opts, machine.WithMaxSteps(cfg.MaxSteps))
	}

	fns := registry.NewMap(0)
	if err := registry.Bind(fns, builtins{stdio: stdio}); err != nil {
		return err
	}

	vm := machine.New(img, fns, opts...)
	vm.Stderr = stdio.Stderr

	translationPath := c.Translation
	if translationPath == "" {
		translationPath = cfg.TranslationPath
	}
	if translationPath != "" {
		if err := vm.LoadTranslationFile(translationPath); err != nil {
			return err
		}
	}

	if err := vm.RunScene(sceneName); err != nil {
		return err
	}

	in := bufio.NewScanner(stdio.Stdin)
	for !vm.SceneCompleted() {
		if err := vm.Update(); err != nil {
			return err
		}
		switch {
		case vm.RunningText():
			fmt.Fprintln(stdio.Stdout, vm.CurrentText())
			vm.Resume()
		case vm.SelectChoice():
			choices := vm.Choices()
			for i, text := range choices {
				fmt.Fprintf(stdio.Stdout, "  %d) %s\n", i, text)
			}
			fmt.Fprint(stdio.Stdout, "> ")
			if !in.Scan() {
				return nil
			}
			idx, err := strconv.Atoi(strings.TrimSpace(in.Text()))
			if err != nil {
				return fmt.Errorf("invalid choice input: %w", err)
			}
			if err := vm.ChooseChoice(idx); err != nil {
				return err
			}
		}
	}
	return nil
}

// builtins is the sample host's minimal external-function set, bound via
// registry.Bind (spec.md §6's FunctionRegistry, SPEC_FULL.md §4.9): a
// "log" call for host-side diagnostics and a "wait" call that blocks the
// (single-threaded, cooperative) driver loop for the given duration.
type builtins struct {
	stdio mainer.Stdio
}

// Log prints every argument's rendered text, space-separated, to stdout.
func (b builtins) Log(args []value.Value) (value.Value, error) {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.String()
	}
	fmt.Fprintln(b.stdio.Stdout, strings.Join(parts, " "))
	return value.Undef, nil
}

// Wait blocks for seconds, then returns it unchanged so a dialogue script
// can chain it into an expression.
func (b builtins) Wait(seconds float64) (float64, error) {
	time.Sleep(time.Duration(seconds * float64(time.Second)))
	return seconds, nil
}

func loadImage(path string) (*image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return image.Load(f)
}

// buildCmds mirrors internal/maincmd's reflection-based subcommand
// discovery: any exported method with the shape
// func(context.Context, mainer.Stdio, []string) error is registered under
// its lower-cased name.
func buildCmds(v interface{}) map[string]func(context.Context, mainer.Stdio, []string) error {
	cmds := make(map[string]func(context.Context, mainer.Stdio, []string) error)

	vv := reflect.ValueOf(v)
	vt := vv.Type()
	for i := 0; i < vt.NumMethod(); i++ {
		m := vt.Method(i)
		mt := m.Type

		if mt.NumIn() != 4 || mt.NumOut() != 1 {
			continue
		}
		if rt := mt.Out(0); rt.Kind() != reflect.Interface || rt.Name() != "error" {
			continue
		}
		if p0 := mt.In(0); p0.Kind() != reflect.Ptr || p0.Elem().Name() != "Cmd" {
			continue
		}
		if p1 := mt.In(1); p1.Kind() != reflect.Interface || p1.Name() != "Context" {
			continue
		}
		if p2 := mt.In(2); p2.Kind() != reflect.Struct || p2.Name() != "Stdio" {
			continue
		}
		if p3 := mt.In(3); p3.Kind() != reflect.Slice || p3.Elem().Name() != "string" {
			continue
		}
		cmds[strings.ToLower(m.Name)] = vv.Method(i).Interface().(func(context.Context, mainer.Stdio, []string) error)
	}
	return cmds
}
