package safemath

import "errors"

var ErrOverflow = errors.New("number overflow")

// Unsigned is any built-in unsigned integer type.
type Unsigned interface {
	~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

// Integer is any built-in integer type.
type Integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

func signed[T Integer]() bool {
	var zero T
	return ^zero < 0
}

// Add returns a+b and whether the result is exact.
func Add[T Integer](a, b T) (T, bool) {
	c := a + b
	if signed[T]() {
		return c, (b >= 0) == (c >= a)
	}
	return c, c >= a
}

// Sub returns a-b and whether the result is exact.
func Sub[T Integer](a, b T) (T, bool) {
	c := a - b
	if signed[T]() {
		return c, (b >= 0) == (c <= a)
	}
	return c, a >= b
}

// Mul returns a*b and whether the result is exact.
func Mul[T Integer](a, b T) (T, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	c := a * b
	if signed[T]() {
		// -1 * MinInt wraps back to MinInt and survives the division check.
		negOne := ^T(0)
		if a == negOne {
			return c, c != b
		}
		if b == negOne {
			return c, c != a
		}
	}
	return c, c/b == a
}

// SaturatingSub returns a-b, or zero when b > a.
func SaturatingSub[T Unsigned](a, b T) T {
	if b > a {
		return 0
	}
	return a - b
}
