package registry_test

import (
	"testing"

	"github.com/loomtale/dnxvm/registry"
	"github.com/loomtale/dnxvm/value"
	"github.com/stretchr/testify/require"
)

type hostAPI struct{}

func (hostAPI) Shout(args []value.Value) (value.Value, error) {
	return value.NewString(args[0].Str() + "!"), nil
}

func (hostAPI) Add(a, b int64) (int64, error) { return a + b, nil }

func (hostAPI) Greet(name string) (string, error) { return "hi " + name, nil }

func (hostAPI) Ignored(x int) int { return x } // wrong shape, must not be bound

func TestBindDiscoversMatchingMethods(t *testing.T) {
	m := registry.NewMap(0)
	require.NoError(t, registry.Bind(m, hostAPI{}))

	out, err := m.Invoke("shout", []value.Value{value.NewString("hi")})
	require.NoError(t, err)
	require.Equal(t, "hi!", out.Str())

	_, err = m.Invoke("ignored", nil)
	require.Error(t, err)
}

func TestBindMarshalsPositionalArguments(t *testing.T) {
	m := registry.NewMap(0)
	require.NoError(t, registry.Bind(m, hostAPI{}))

	out, err := m.Invoke("add", []value.Value{value.NewInt(2), value.NewInt(3)})
	require.NoError(t, err)
	require.Equal(t, int32(5), out.Int32())

	out, err = m.Invoke("greet", []value.Value{value.NewString("world")})
	require.NoError(t, err)
	require.Equal(t, "hi world", out.Str())
}

func TestBindRejectsArityMismatchAtCallTime(t *testing.T) {
	m := registry.NewMap(0)
	require.NoError(t, registry.Bind(m, hostAPI{}))

	_, err := m.Invoke("add", []value.Value{value.NewInt(1)})
	require.Error(t, err)
}

func TestMapInvokeUnknown(t *testing.T) {
	m := registry.NewMap(0)
	_, err := m.Invoke("nope", nil)
	require.Error(t, err)
}
