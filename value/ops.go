package value

import "github.com/loomtale/dnxvm/vmerr"

// Add, Sub, Mul, Div, Mod implement the promoting binary arithmetic
// operators. Numeric binary operations produce Double if either operand is
// Double, else Int (spec.md §3). lhs is the left-hand operand, rhs is the
// right-hand operand (the value that was on top of the stack).
func Add(lhs, rhs Value) (Value, error) { return arith("+", lhs, rhs, func(a, b int32) int32 { return a + b }, func(a, b float64) float64 { return a + b }) }
func Sub(lhs, rhs Value) (Value, error) {
	return arith("-", lhs, rhs, func(a, b int32) int32 { return a - b }, func(a, b float64) float64 { return a - b })
}
func Mul(lhs, rhs Value) (Value, error) {
	return arith("*", lhs, rhs, func(a, b int32) int32 { return a * b }, func(a, b float64) float64 { return a * b })
}

// Div follows the host numeric semantics per tag (spec.md §4.2): integer
// division by zero is a TypeError-class runtime fault; double division
// follows IEEE-754 (±Inf/NaN, never an error).
func Div(lhs, rhs Value) (Value, error) {
	if !isNumeric(lhs.tag) || !isNumeric(rhs.tag) {
		return Undef, vmerr.Type("/", -1, "cannot divide %s by %s", lhs.tag, rhs.tag)
	}
	if lhs.tag == Int && rhs.tag == Int {
		if rhs.i == 0 {
			return Undef, vmerr.Type("/", -1, "integer division by zero")
		}
		return NewInt(lhs.i / rhs.i), nil
	}
	return NewDouble(asFloat(lhs) / asFloat(rhs)), nil
}

// Mod implements the remainder operator. Like Div, integer modulo by zero is
// a runtime fault; double modulo follows math.Mod's IEEE-754 semantics.
func Mod(lhs, rhs Value) (Value, error) {
	if !isNumeric(lhs.tag) || !isNumeric(rhs.tag) {
		return Undef, vmerr.Type("%", -1, "cannot modulo %s by %s", lhs.tag, rhs.tag)
	}
	if lhs.tag == Int && rhs.tag == Int {
		if rhs.i == 0 {
			return Undef, vmerr.Type("%", -1, "integer modulo by zero")
		}
		return NewInt(lhs.i % rhs.i), nil
	}
	return NewDouble(floatMod(asFloat(lhs), asFloat(rhs))), nil
}

func arith(op string, lhs, rhs Value, intOp func(a, b int32) int32, fltOp func(a, b float64) float64) (Value, error) {
	if !isNumeric(lhs.tag) || !isNumeric(rhs.tag) {
		return Undef, vmerr.Type(op, -1, "cannot apply %s to %s and %s", op, lhs.tag, rhs.tag)
	}
	if lhs.tag == Int && rhs.tag == Int {
		return NewInt(intOp(lhs.i, rhs.i)), nil
	}
	return NewDouble(fltOp(asFloat(lhs), asFloat(rhs))), nil
}

// Negate implements unary minus.
func Negate(x Value) (Value, error) {
	switch x.tag {
	case Int:
		return NewInt(-x.i), nil
	case Double:
		return NewDouble(-x.f), nil
	default:
		return Undef, vmerr.Type("neg", -1, "cannot negate %s", x.tag)
	}
}

// Invert implements the "!" operator: on Undefined it fails; on a numeric it
// negates truthiness, on a string/array it reports emptiness as 1, else 0.
func Invert(x Value) (Value, error) {
	if x.tag == Undefined {
		return Undef, vmerr.Type("!", -1, "cannot invert undefined")
	}
	if x.Truth() {
		return NewInt(0), nil
	}
	return NewInt(1), nil
}

// Power promotes both operands to Double (spec.md §4.2).
func Power(lhs, rhs Value) (Value, error) {
	if !isNumeric(lhs.tag) || !isNumeric(rhs.tag) {
		return Undef, vmerr.Type("^", -1, "cannot raise %s to %s", lhs.tag, rhs.tag)
	}
	return NewDouble(floatPow(asFloat(lhs), asFloat(rhs))), nil
}

// bitwise operators require both operands to be Int.
func bitwise(op string, lhs, rhs Value, fn func(a, b int32) int32) (Value, error) {
	if lhs.tag != Int || rhs.tag != Int {
		return Undef, vmerr.Type(op, -1, "bitwise %s requires int operands, got %s and %s", op, lhs.tag, rhs.tag)
	}
	return NewInt(fn(lhs.i, rhs.i)), nil
}

func BitAnd(lhs, rhs Value) (Value, error) { return bitwise("&", lhs, rhs, func(a, b int32) int32 { return a & b }) }
func BitOr(lhs, rhs Value) (Value, error)  { return bitwise("|", lhs, rhs, func(a, b int32) int32 { return a | b }) }
func BitXor(lhs, rhs Value) (Value, error) {
	return bitwise("^", lhs, rhs, func(a, b int32) int32 { return a ^ b })
}
func BitLeftShift(lhs, rhs Value) (Value, error) {
	return bitwise("<<", lhs, rhs, func(a, b int32) int32 { return a << uint32(b) })
}
func BitRightShift(lhs, rhs Value) (Value, error) {
	return bitwise(">>", lhs, rhs, func(a, b int32) int32 { return a >> uint32(b) })
}

// BitNegate implements unary bitwise complement; requires an Int operand.
func BitNegate(x Value) (Value, error) {
	if x.tag != Int {
		return Undef, vmerr.Type("~", -1, "bitwise negate requires int, got %s", x.tag)
	}
	return NewInt(^x.i), nil
}

// Cmp returns a three-way comparison result (-1, 0, +1). Ordering requires
// both operands to be numeric (spec.md §4.2).
func Cmp(lhs, rhs Value) (int, error) {
	if !isNumeric(lhs.tag) || !isNumeric(rhs.tag) {
		return 0, vmerr.Type("cmp", -1, "cannot order %s and %s", lhs.tag, rhs.tag)
	}
	a, b := asFloat(lhs), asFloat(rhs)
	switch {
	case a < b:
		return -1, nil
	case a > b:
		return 1, nil
	default:
		return 0, nil
	}
}
