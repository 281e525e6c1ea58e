package builtin

import (
	"context"
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculatorExecute(t *testing.T) {
	cases := []struct {
		name       string
		expression string
		want       float64
	}{
		{"addition", "2 + 2", 4},
		{"precedence", "10 * 5 + 3", 53},
		{"parentheses", "(2 + 3) * 4", 20},
		{"modulo", "10 % 3", 1},
		{"caret exponent", "2 ^ 10", 1024},
		{"python exponent", "2 ** 8", 256},
		{"right assoc exponent", "2 ^ 3 ^ 2", 512},
		{"unary minus", "-3 + 5", 2},
		{"sqrt", "sqrt(16)", 4},
		{"nested functions", "sqrt(abs(-16))", 4},
		{"pow two args", "pow(2, 5)", 32},
		{"min variadic", "min(3, 1, 2)", 1},
		{"max variadic", "max(3, 1, 2)", 3},
		{"pi constant", "pi", math.Pi},
		{"scientific notation", "1.5e3 + 500", 2000},
		{"percent change", "(105.5 - 100) / 100 * 100", 5.5},
	}

	tool := &CalculatorTool{}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input, err := json.Marshal(map[string]string{"expression": tc.expression})
			require.NoError(t, err)

			raw, err := tool.Execute(context.Background(), input)
			require.NoError(t, err)

			var resp struct {
				Expression string  `json:"expression"`
				Result     float64 `json:"result"`
			}
			require.NoError(t, json.Unmarshal(raw, &resp))
			assert.Equal(t, tc.expression, resp.Expression)
			assert.InDelta(t, tc.want, resp.Result, 1e-9)
		})
	}
}

func TestCalculatorExecute_Errors(t *testing.T) {
	cases := []struct {
		name       string
		expression string
		contains   string
	}{
		{"division by zero", "1 / 0", "division by zero"},
		{"modulo by zero", "5 % 0", "division by zero"},
		{"sqrt negative", "sqrt(-4)", "sqrt of negative"},
		{"log non-positive", "log(0)", "log of non-positive"},
		{"unknown function", "frob(3)", "unknown function"},
		{"unknown identifier", "x + 1", "unknown identifier"},
		{"unbalanced parens", "(2 + 3", "missing closing parenthesis"},
		{"trailing garbage", "2 + 3 )", "unexpected character"},
		{"empty expression", "   ", "expression is required"},
		{"wrong arity", "pow(2)", "pow expects 2 arguments"},
	}

	tool := &CalculatorTool{}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input, err := json.Marshal(map[string]string{"expression": tc.expression})
			require.NoError(t, err)

			_, err = tool.Execute(context.Background(), input)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.contains)
		})
	}
}
