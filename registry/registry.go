// Package registry implements the host-function bridge the machine
// package consumes as a machine.FunctionRegistry (spec.md §6, "out of
// scope: host-function registry and reflection-based auto-binding").
package registry

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/loomtale/dnxvm/value"
	"github.com/loomtale/dnxvm/vmerr"
)

// Func is a single host-callable external function.
type Func func(args []value.Value) (value.Value, error)

// Map is a simple name-keyed FunctionRegistry implementation.
type Map struct {
	fns map[string]Func
}

// NewMap returns an empty registry with room for size functions.
func NewMap(size int) *Map {
	return &Map{fns: make(map[string]Func, size)}
}

// Register adds or replaces the function bound to name.
func (m *Map) Register(name string, fn Func) {
	m.fns[name] = fn
}

// Invoke implements machine.FunctionRegistry.
func (m *Map) Invoke(name string, args []value.Value) (value.Value, error) {
	fn, ok := m.fns[name]
	if !ok {
		return value.Undef, vmerr.Lookup("CallExternal", -1, "no external function registered for %q", name)
	}
	return fn(args)
}

var (
	valueType = reflect.TypeOf(value.Value{})
	sliceType = reflect.TypeOf([]value.Value{})
	errType   = reflect.TypeOf((*error)(nil)).Elem()
)

// Bind auto-discovers external functions from recv's exported methods by
// reflection, the way internal/hostcmd's Cmd dispatch discovers
// subcommands, and registers each under dest. A candidate method returns
// exactly (T, error) where T is value.Value, int64, float64, or string; its
// parameters are either a single []value.Value (whole-args passthrough) or
// any number of value.Value/int64/float64/string positional arguments,
// marshalled from/to the corresponding dnxvm Value on every call. Methods
// that don't return (T, error) at all are silently skipped — they're not
// external-function candidates. Methods that do but use a parameter or
// return type Bind cannot marshal are a registration-time error, per
// spec.md §4.9: not a call-time panic.
func Bind(dest *Map, recv any) error {
	rv := reflect.ValueOf(recv)
	rt := rv.Type()

	for i := 0; i < rt.NumMethod(); i++ {
		m := rt.Method(i)
		mt := m.Type

		if mt.NumOut() != 2 || mt.Out(1) != errType {
			continue
		}
		outType := mt.Out(0)
		if outType == sliceType || !marshalable(outType) {
			return fmt.Errorf("registry: %s.%s: unsupported return type %s", rt.Name(), m.Name, outType)
		}

		numParams := mt.NumIn() - 1 // exclude receiver
		wholeArgs := numParams == 1 && mt.In(1) == sliceType
		if !wholeArgs {
			for p := 1; p < mt.NumIn(); p++ {
				if mt.In(p) == sliceType {
					return fmt.Errorf("registry: %s.%s: []value.Value must be the sole parameter", rt.Name(), m.Name)
				}
				if !marshalable(mt.In(p)) {
					return fmt.Errorf("registry: %s.%s: unsupported parameter type %s", rt.Name(), m.Name, mt.In(p))
				}
			}
		}

		name := strings.ToLower(m.Name)
		method := rv.Method(i)
		dest.Register(name, bindMethod(name, method, mt, outType, numParams, wholeArgs))
	}
	return nil
}

func bindMethod(name string, method reflect.Value, mt reflect.Type, outType reflect.Type, numParams int, wholeArgs bool) Func {
	return func(args []value.Value) (value.Value, error) {
		var in []reflect.Value
		if wholeArgs {
			in = []reflect.Value{reflect.ValueOf(args)}
		} else {
			if len(args) != numParams {
				return value.Undef, vmerr.Lookup(name, -1, "%s expects %d argument(s), got %d", name, numParams, len(args))
			}
			in = make([]reflect.Value, numParams)
			for p := 0; p < numParams; p++ {
				rv, err := toGo(args[p], mt.In(p+1))
				if err != nil {
					return value.Undef, vmerr.Type(name, -1, "argument %d: %v", p, err)
				}
				in[p] = rv
			}
		}

		out := method.Call(in)
		if errV, _ := out[1].Interface().(error); errV != nil {
			return value.Undef, errV
		}
		return fromGo(out[0], outType)
	}
}

func marshalable(t reflect.Type) bool {
	switch {
	case t == valueType, t == sliceType:
		return true
	case t.Kind() == reflect.Int64, t.Kind() == reflect.Float64, t.Kind() == reflect.String:
		return true
	default:
		return false
	}
}

func toGo(v value.Value, t reflect.Type) (reflect.Value, error) {
	switch {
	case t == valueType:
		return reflect.ValueOf(v), nil
	case t.Kind() == reflect.Int64:
		if v.Tag() != value.Int {
			return reflect.Value{}, fmt.Errorf("want int, have %s", v.Tag())
		}
		return reflect.ValueOf(int64(v.Int32())), nil
	case t.Kind() == reflect.Float64:
		if v.Tag() != value.Double {
			return reflect.Value{}, fmt.Errorf("want double, have %s", v.Tag())
		}
		return reflect.ValueOf(v.Float64()), nil
	case t.Kind() == reflect.String:
		if v.Tag() != value.String {
			return reflect.Value{}, fmt.Errorf("want string, have %s", v.Tag())
		}
		return reflect.ValueOf(v.Str()), nil
	default:
		return reflect.Value{}, fmt.Errorf("unsupported Go parameter type %s", t)
	}
}

func fromGo(rv reflect.Value, t reflect.Type) (value.Value, error) {
	switch {
	case t == valueType:
		return rv.Interface().(value.Value), nil
	case t.Kind() == reflect.Int64:
		return value.NewInt(int32(rv.Int())), nil
	case t.Kind() == reflect.Float64:
		return value.NewDouble(rv.Float()), nil
	case t.Kind() == reflect.String:
		return value.NewString(rv.String()), nil
	default:
		return value.Undef, fmt.Errorf("unsupported Go return type %s", t)
	}
}
