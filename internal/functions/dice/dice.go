// Package dice provides the built-in "roll" chat function, which evaluates
// dice expressions such as "2d6+3" or "d20".
//
// Randomness comes from [math/rand/v2]; the function is safe for concurrent
// use.
package dice

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"regexp"
	"strconv"
	"strings"

	"github.com/thearyanag/llamachat/pkg/llamachat"
)

// Name is the function name registered with a chat client.
const Name = "roll"

// Limits keep a single call's output bounded.
const (
	MaxDice  = 100
	MaxSides = 1000
)

var exprPattern = regexp.MustCompile(`^(\d*)d(\d+)(?:([+-])(\d+))?$`)

// Expression is a parsed dice expression: Count dice with Sides faces each,
// plus Modifier.
type Expression struct {
	Count    int
	Sides    int
	Modifier int
}

// String renders e in canonical NdS[+M] form.
func (e Expression) String() string {
	switch {
	case e.Modifier > 0:
		return fmt.Sprintf("%dd%d+%d", e.Count, e.Sides, e.Modifier)
	case e.Modifier < 0:
		return fmt.Sprintf("%dd%d%d", e.Count, e.Sides, e.Modifier)
	default:
		return fmt.Sprintf("%dd%d", e.Count, e.Sides)
	}
}

// Parse parses NdS, NdS+M or NdS-M. N defaults to 1 when omitted. Input is
// case-insensitive and may contain spaces.
func Parse(s string) (Expression, error) {
	norm := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", ""))
	m := exprPattern.FindStringSubmatch(norm)
	if m == nil {
		return Expression{}, fmt.Errorf("dice: invalid expression %q: want NdS, NdS+M or NdS-M", s)
	}

	e := Expression{Count: 1}
	var err error
	if m[1] != "" {
		if e.Count, err = strconv.Atoi(m[1]); err != nil {
			return Expression{}, fmt.Errorf("dice: invalid dice count in %q: %w", s, err)
		}
	}
	if e.Sides, err = strconv.Atoi(m[2]); err != nil {
		return Expression{}, fmt.Errorf("dice: invalid sides in %q: %w", s, err)
	}
	if m[4] != "" {
		if e.Modifier, err = strconv.Atoi(m[4]); err != nil {
			return Expression{}, fmt.Errorf("dice: invalid modifier in %q: %w", s, err)
		}
		if m[3] == "-" {
			e.Modifier = -e.Modifier
		}
	}

	if e.Count < 1 || e.Count > MaxDice {
		return Expression{}, fmt.Errorf("dice: dice count must be between 1 and %d, got %d", MaxDice, e.Count)
	}
	if e.Sides < 1 || e.Sides > MaxSides {
		return Expression{}, fmt.Errorf("dice: sides must be between 1 and %d, got %d", MaxSides, e.Sides)
	}
	return e, nil
}

// Result is the outcome of one roll.
type Result struct {
	Expression string `json:"expression"`
	Rolls      []int  `json:"rolls"`
	Modifier   int    `json:"modifier,omitempty"`
	Total      int    `json:"total"`
}

// Roll evaluates e. intN returns a value in [0, n); nil uses rand.IntN.
func Roll(e Expression, intN func(n int) int) Result {
	if intN == nil {
		intN = rand.IntN
	}
	res := Result{
		Expression: e.String(),
		Rolls:      make([]int, e.Count),
		Modifier:   e.Modifier,
		Total:      e.Modifier,
	}
	for i := range e.Count {
		r := intN(e.Sides) + 1
		res.Rolls[i] = r
		res.Total += r
	}
	return res
}

type rollArgs struct {
	Expression string `json:"expression" jsonschema:"dice expression such as 2d6+3 or d20"`
}

// Function returns the "roll" chat function. Its result is a JSON-encoded
// [Result].
func Function() llamachat.Function {
	return llamachat.MustFunction(Name, "Roll dice. Returns each die and the total.",
		func(_ context.Context, a rollArgs) (string, error) {
			e, err := Parse(a.Expression)
			if err != nil {
				return "", err
			}
			out, err := json.Marshal(Roll(e, nil))
			if err != nil {
				return "", fmt.Errorf("dice: encode result: %w", err)
			}
			return string(out), nil
		})
}
