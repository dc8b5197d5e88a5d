package puzzle

import (
	"errors"
	"math/rand/v2"
	"slices"

	"github.com/playperu/digitduel/internal/digitduel"
)

var ErrUnknownMode = errors.New("unknown mode")

// DigitCount is the number of digits in every puzzle.
const DigitCount = 5

// Rules describes what a mode's puzzles may use.
type Rules struct {
	Operators []digitduel.Operator
	// DisabledPerRound operators are switched off at random each round.
	DisabledPerRound int
}

// DefaultRules is the built-in mode catalog.
func DefaultRules() map[digitduel.Mode]Rules {
	return map[digitduel.Mode]Rules{
		digitduel.ModeEasy: {
			Operators: []digitduel.Operator{digitduel.OpAdd, digitduel.OpSub, digitduel.OpMul, digitduel.OpDiv},
		},
		digitduel.ModeHard: {
			Operators:        []digitduel.Operator{digitduel.OpAdd, digitduel.OpSub, digitduel.OpMul, digitduel.OpDiv, digitduel.OpSqrt},
			DisabledPerRound: 1,
		},
	}
}

// Generator produces puzzles. It is not safe for concurrent use.
type Generator struct {
	rng      *rand.Rand
	rules    map[digitduel.Mode]Rules
	attempts int
}

func NewGenerator(rng *rand.Rand, rules map[digitduel.Mode]Rules) *Generator {
	return &Generator{rng: rng, rules: rules, attempts: 200}
}

// Disable picks the operators to switch off for the next round of mode.
func (g *Generator) Disable(mode digitduel.Mode) []digitduel.Operator {
	r, ok := g.rules[mode]
	if !ok || r.DisabledPerRound <= 0 {
		return nil
	}
	n := min(r.DisabledPerRound, len(r.Operators)-1)
	pool := slices.Clone(r.Operators)
	g.rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	return pool[:n]
}

// Generate builds a problem whose target is a positive integer reachable
// with the operators of mode minus disabled. When the attempt budget runs
// out it falls back to addition only, which always succeeds.
func (g *Generator) Generate(mode digitduel.Mode, disabled []digitduel.Operator) (digitduel.Problem, error) {
	r, ok := g.rules[mode]
	if !ok {
		return digitduel.Problem{}, ErrUnknownMode
	}

	allowed := make([]digitduel.Operator, 0, len(r.Operators))
	for _, op := range r.Operators {
		if !slices.Contains(disabled, op) {
			allowed = append(allowed, op)
		}
	}
	binary := binaryOps(allowed)
	sqrt := slices.Contains(allowed, digitduel.OpSqrt)

	if len(binary) > 0 {
		for range g.attempts {
			digits, target, expr, ok := g.try(binary, sqrt)
			if !ok {
				continue
			}
			slices.Sort(digits)
			solution, found := Solve(digits, binary, target)
			if !found {
				solution = expr
			}
			return digitduel.Problem{
				Digits:    digits,
				Operators: slices.Clone(r.Operators),
				Disabled:  slices.Clone(disabled),
				Target:    target,
				Solution:  solution,
			}, nil
		}
	}

	return g.relaxed(r.Operators), nil
}

func (g *Generator) try(binary []digitduel.Operator, sqrt bool) ([]int, int, string, bool) {
	digits := g.digits()
	ops := make([]digitduel.Operator, DigitCount-1)
	for i := range ops {
		ops[i] = binary[g.rng.IntN(len(binary))]
	}

	vals := make([]float64, DigitCount)
	for i, d := range digits {
		vals[i] = float64(d)
	}

	rooted := -1
	if sqrt && g.rng.IntN(3) == 0 {
		for i, d := range digits {
			if d == 4 || d == 9 {
				rooted = i
				break
			}
		}
	}
	if rooted >= 0 {
		vals[rooted] = float64(isqrt(digits[rooted]))
	}

	v, err := evalChain(vals, ops)
	if err != nil {
		return nil, 0, "", false
	}
	target, ok := asInt(v)
	if !ok || target <= 0 {
		return nil, 0, "", false
	}

	expr := format(digits, ops)
	if rooted >= 0 {
		expr = rootAt(digits, ops, rooted)
	}
	return digits, target, expr, true
}

// relaxed is the fail-closed fallback: a sum of five digits.
func (g *Generator) relaxed(ops []digitduel.Operator) digitduel.Problem {
	digits := g.digits()
	slices.Sort(digits)
	target := 0
	for _, d := range digits {
		target += d
	}
	plus := []digitduel.Operator{digitduel.OpAdd}
	solution, _ := Solve(digits, plus, target)

	var disabled []digitduel.Operator
	for _, op := range ops {
		if op != digitduel.OpAdd {
			disabled = append(disabled, op)
		}
	}
	return digitduel.Problem{
		Digits:    digits,
		Operators: slices.Clone(ops),
		Disabled:  disabled,
		Target:    target,
		Solution:  solution,
	}
}

func (g *Generator) digits() []int {
	d := make([]int, DigitCount)
	for i := range d {
		d[i] = 1 + g.rng.IntN(9)
	}
	return d
}

func isqrt(d int) int {
	switch d {
	case 4:
		return 2
	case 9:
		return 3
	}
	return 1
}

func rootAt(digits []int, ops []digitduel.Operator, at int) string {
	s := ""
	for i, d := range digits {
		if i > 0 {
			s += string(ops[i-1])
		}
		if i == at {
			s += string(digitduel.OpSqrt)
		}
		s += string(rune('0' + d))
	}
	return s
}
