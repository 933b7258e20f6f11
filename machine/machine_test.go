package machine

import (
	"testing"

	"github.com/loomtale/dnxvm/bytecode"
	"github.com/loomtale/dnxvm/image"
	"github.com/loomtale/dnxvm/value"
	"github.com/stretchr/testify/require"
)

// buildImage constructs a minimal image with a single scene named "main"
// whose body is code; callers add any extra scene/function/definition/string
// entries to the returned image.
func buildImage(code []byte) *image.Image {
	return &image.Image{
		StringTable:  []string{"main"},
		Scenes:       map[uint32][]int32{0: {0}},
		Functions:    map[uint32][]int32{},
		Definitions:  map[uint32]image.Definition{},
		Instructions: code,
	}
}

func runToCompletion(t *testing.T, vm *VM) {
	t.Helper()
	for i := 0; i < 10_000 && !vm.SceneCompleted() && !vm.paused; i++ {
		require.NoError(t, vm.Update())
	}
}

func TestArithmeticAndPromotion(t *testing.T) {
	var code []byte
	code = bytecode.Encode(code, bytecode.PushInt, 3)
	code = bytecode.Encode(code, bytecode.PushInt, 4)
	code = bytecode.Encode(code, bytecode.Addition)
	code = bytecode.Encode(code, bytecode.Exit)

	vm := New(buildImage(code), nil)
	require.NoError(t, vm.RunScene("main"))
	for !vm.SceneCompleted() {
		require.NoError(t, vm.Update())
	}

	require.Len(t, vm.stack, 1)
	require.Equal(t, value.Int, vm.stack[0].Tag())
	require.Equal(t, int32(7), vm.stack[0].Int32())
	require.True(t, vm.SceneCompleted())
}

func TestMixedPromotionAndInterpolation(t *testing.T) {
	var code []byte
	code = bytecode.Encode(code, bytecode.PushInt, 3)
	code = bytecode.EncodeF64(code, bytecode.PushDouble, 0.5)
	code = bytecode.Encode(code, bytecode.Addition)
	code = bytecode.Encode(code, bytecode.PushBinaryInterpolatedString, 1, 1)
	code = bytecode.Encode(code, bytecode.TextRun)

	img := buildImage(code)
	img.StringTable = append(img.StringTable, "{0}")

	vm := New(img, nil)
	require.NoError(t, vm.RunScene("main"))
	runToCompletion(t, vm)

	require.Equal(t, "3.5", vm.CurrentText())
	require.True(t, vm.RunningText())
	require.True(t, vm.Paused())
}

func TestChoiceHappyPath(t *testing.T) {
	var code []byte
	code = bytecode.Encode(code, bytecode.ChoiceBegin)
	code = bytecode.Encode(code, bytecode.PushBinaryString, 1) // "A"
	code = bytecode.EncodeF64(code, bytecode.PushDouble, 1.0)
	code = bytecode.Encode(code, bytecode.ChoiceAdd, 10)
	code = bytecode.Encode(code, bytecode.PushBinaryString, 2) // "B"
	code = bytecode.EncodeF64(code, bytecode.PushDouble, 1.0)
	secondAddOperandEnd := len(code) + 1 + 4 // opcode byte + i32 operand of the ChoiceAdd below
	code = bytecode.Encode(code, bytecode.ChoiceAdd, 20)
	code = bytecode.Encode(code, bytecode.ChoiceSelect)
	code = bytecode.Encode(code, bytecode.Exit)

	img := buildImage(code)
	img.StringTable = append(img.StringTable, "A", "B")

	vm := New(img, nil, WithChance(func(float64) bool { return true }))
	require.NoError(t, vm.RunScene("main"))
	runToCompletion(t, vm)

	require.True(t, vm.SelectChoice())
	require.Equal(t, []string{"A", "B"}, vm.Choices())

	require.Equal(t, secondAddOperandEnd+20, vm.choices[1].target)
	require.NoError(t, vm.ChooseChoice(1))
	require.Equal(t, secondAddOperandEnd+20, vm.ip)
	require.False(t, vm.SelectChoice())
	require.False(t, vm.inChoice)
	require.False(t, vm.Paused())
}

func TestTruthyChoiceFiltered(t *testing.T) {
	var code []byte
	code = bytecode.Encode(code, bytecode.ChoiceBegin)
	code = bytecode.Encode(code, bytecode.PushInt, 0) // guard: falsey
	code = bytecode.Encode(code, bytecode.PushBinaryString, 1)
	code = bytecode.EncodeF64(code, bytecode.PushDouble, 1.0)
	code = bytecode.Encode(code, bytecode.ChoiceAddTruthy, 5)
	code = bytecode.Encode(code, bytecode.PushInt, 1) // guard: truthy
	code = bytecode.Encode(code, bytecode.PushBinaryString, 2)
	code = bytecode.EncodeF64(code, bytecode.PushDouble, 1.0)
	code = bytecode.Encode(code, bytecode.ChoiceAddTruthy, 5)
	code = bytecode.Encode(code, bytecode.ChoiceSelect)
	code = bytecode.Encode(code, bytecode.Exit)

	img := buildImage(code)
	img.StringTable = append(img.StringTable, "Omitted", "Kept")

	vm := New(img, nil, WithChance(func(float64) bool { return true }))
	require.NoError(t, vm.RunScene("main"))
	runToCompletion(t, vm)

	require.Equal(t, []string{"Kept"}, vm.Choices())
}

func TestWeightedChoose(t *testing.T) {
	var code []byte
	code = bytecode.EncodeF64(code, bytecode.PushDouble, 1.0)
	code = bytecode.Encode(code, bytecode.ChooseAdd, 30)
	code = bytecode.EncodeF64(code, bytecode.PushDouble, 3.0)
	code = bytecode.Encode(code, bytecode.ChooseAdd, 20)
	code = bytecode.Encode(code, bytecode.ChooseSel)
	code = bytecode.Encode(code, bytecode.Exit)

	img := buildImage(code)
	vm := New(img, nil, WithWeighted(func(weights []float64) (int, error) { return 1, nil }))
	require.NoError(t, vm.RunScene("main"))

	// Capture the second option's target before ChooseSel clears it.
	require.NoError(t, vm.Update()) // PushDouble
	require.NoError(t, vm.Update()) // ChooseAdd
	require.NoError(t, vm.Update()) // PushDouble
	require.NoError(t, vm.Update()) // ChooseAdd
	secondTarget := vm.chooseOptions[1].target

	require.NoError(t, vm.Update()) // ChooseSel
	require.Equal(t, secondTarget, vm.ip)
	require.Empty(t, vm.chooseOptions)
}

func TestFlagDefaultWins(t *testing.T) {
	// Scene "main" with one flag pair: value-expr pushes 0, name-expr pushes
	// "coins". Both sub-expressions end with Return.
	var valueExpr, nameExpr, body []byte
	valueExpr = bytecode.Encode(valueExpr, bytecode.PushInt, 0)
	valueExpr = bytecode.Encode(valueExpr, bytecode.Return)
	nameExpr = bytecode.Encode(nameExpr, bytecode.PushBinaryString, 1) // "coins"
	nameExpr = bytecode.Encode(nameExpr, bytecode.Return)
	body = bytecode.Encode(body, bytecode.Exit)

	valueOff := 0
	nameOff := len(valueExpr)
	entryOff := nameOff + len(nameExpr)

	var code []byte
	code = append(code, valueExpr...)
	code = append(code, nameExpr...)
	code = append(code, body...)

	img := buildImage(code)
	img.StringTable = append(img.StringTable, "coins")
	img.Scenes[0] = []int32{int32(entryOff), int32(valueOff), int32(nameOff)}

	vm := New(img, nil)
	vm.SetFlag("coins", value.NewInt(42)) // host pre-sets before run_scene

	require.NoError(t, vm.RunScene("main"))
	require.Equal(t, int32(42), vm.GetFlag("coins").Int32())
	require.Len(t, vm.locals.flagMap, 1)
}

func TestInterpolationIdempotence(t *testing.T) {
	out := interpolate("no placeholders here", nil)
	require.Equal(t, "no placeholders here", out)
}

func TestInterpolationEscapedDollar(t *testing.T) {
	out := interpolate(`\${not a placeholder} then {0}`, []value.Value{value.NewInt(9)})
	require.Equal(t, "${not a placeholder} then 9", out)
}

func TestIPAdvancesByOperandWidth(t *testing.T) {
	var code []byte
	code = bytecode.Encode(code, bytecode.PushInt, 5)
	code = bytecode.Encode(code, bytecode.Exit)

	vm := New(buildImage(code), nil)
	require.NoError(t, vm.RunScene("main"))
	require.NoError(t, vm.Update())
	require.Equal(t, 5, vm.ip) // 1 opcode byte + 4 operand bytes
}

func TestBinaryOpcodeDecreasesStackDepthByOne(t *testing.T) {
	var code []byte
	code = bytecode.Encode(code, bytecode.PushInt, 1)
	code = bytecode.Encode(code, bytecode.PushInt, 2)
	code = bytecode.Encode(code, bytecode.Addition)
	code = bytecode.Encode(code, bytecode.Exit)

	vm := New(buildImage(code), nil)
	require.NoError(t, vm.RunScene("main"))
	require.NoError(t, vm.Update())
	require.NoError(t, vm.Update())
	require.Len(t, vm.stack, 2)
	require.NoError(t, vm.Update())
	require.Len(t, vm.stack, 1)
}
