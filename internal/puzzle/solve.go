package puzzle

import (
	"strconv"
	"strings"

	"github.com/playperu/digitduel/internal/digitduel"
)

// Solve returns the first expression, in a fixed search order, that builds
// target from all digits using only the binary operators in ops. Digit
// orderings are visited in lexicographic index order and operator tuples in
// odometer order over ops, so the answer is stable for a given input.
func Solve(digits []int, ops []digitduel.Operator, target int) (string, bool) {
	binary := binaryOps(ops)
	if len(digits) == 0 || len(binary) == 0 && len(digits) > 1 {
		return "", false
	}

	slots := len(digits) - 1
	tuple := make([]digitduel.Operator, slots)
	idx := make([]int, slots)
	vals := make([]float64, len(digits))

	var found string
	permute(digits, func(perm []int) bool {
		for i, d := range perm {
			vals[i] = float64(d)
		}
		clear(idx)
		for {
			for i, j := range idx {
				tuple[i] = binary[j]
			}
			if v, err := evalChain(vals, tuple); err == nil {
				if n, ok := asInt(v); ok && n == target {
					found = format(perm, tuple)
					return true
				}
			}
			if !odometer(idx, len(binary)) {
				return false
			}
		}
	})
	return found, found != ""
}

// permute calls visit with each ordering of digits until visit returns true.
func permute(digits []int, visit func([]int) bool) {
	n := len(digits)
	used := make([]bool, n)
	perm := make([]int, 0, n)

	var walk func() bool
	walk = func() bool {
		if len(perm) == n {
			return visit(perm)
		}
		for i := range n {
			if used[i] {
				continue
			}
			used[i] = true
			perm = append(perm, digits[i])
			if walk() {
				return true
			}
			perm = perm[:len(perm)-1]
			used[i] = false
		}
		return false
	}
	walk()
}

// odometer advances idx with the rightmost position changing fastest.
func odometer(idx []int, base int) bool {
	if base == 0 {
		return false
	}
	for i := len(idx) - 1; i >= 0; i-- {
		idx[i]++
		if idx[i] < base {
			return true
		}
		idx[i] = 0
	}
	return false
}

// evalChain evaluates v0 op0 v1 op1 ... with × and ÷ binding tighter than + and -.
func evalChain(vals []float64, ops []digitduel.Operator) (float64, error) {
	terms := []float64{vals[0]}
	signs := []float64{1}
	for i, op := range ops {
		next := vals[i+1]
		last := len(terms) - 1
		switch op {
		case digitduel.OpMul:
			terms[last] *= next
		case digitduel.OpDiv:
			if next == 0 {
				return 0, ErrDivideByZero
			}
			terms[last] /= next
		case digitduel.OpAdd:
			terms = append(terms, next)
			signs = append(signs, 1)
		case digitduel.OpSub:
			terms = append(terms, next)
			signs = append(signs, -1)
		default:
			return 0, ErrSyntax
		}
	}
	var sum float64
	for i, t := range terms {
		sum += signs[i] * t
	}
	return sum, nil
}

func format(digits []int, ops []digitduel.Operator) string {
	var b strings.Builder
	for i, d := range digits {
		if i > 0 {
			b.WriteString(string(ops[i-1]))
		}
		b.WriteString(strconv.Itoa(d))
	}
	return b.String()
}

func binaryOps(ops []digitduel.Operator) []digitduel.Operator {
	out := make([]digitduel.Operator, 0, len(ops))
	for _, op := range ops {
		if op != digitduel.OpSqrt {
			out = append(out, op)
		}
	}
	return out
}
