package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	toolcore "github.com/harunnryd/kabu/internal/tool"
)

func init() {
	toolcore.RegisterBuiltin("calculator", func(options toolcore.BuiltinOptions) (toolcore.Tool, error) {
		return &CalculatorTool{}, nil
	})
}

// CalculatorTool evaluates arithmetic expressions with a small
// recursive-descent parser. No code execution, just math.
type CalculatorTool struct{}

func (t *CalculatorTool) Name() string { return "calculator" }

func (t *CalculatorTool) Description() string {
	return "Perform mathematical calculations. Supports basic arithmetic (+, -, *, /, %), exponents (^ or **), parentheses, constants pi and e, and functions like sqrt, sin, cos, tan, log, log10, exp, abs, floor, ceil, round, min, max, pow."
}

func (t *CalculatorTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"expression": map[string]interface{}{
				"type":        "string",
				"description": "Mathematical expression to evaluate (e.g., '2 + 2', '10 * 5 + 3', 'sqrt(16)')",
			},
		},
		"required": []string{"expression"},
	}
}

func (t *CalculatorTool) Execute(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	_ = ctx

	var args struct {
		Expression string `json:"expression"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	if strings.TrimSpace(args.Expression) == "" {
		return nil, fmt.Errorf("expression is required")
	}

	value, err := evaluate(args.Expression)
	if err != nil {
		return nil, err
	}

	return json.Marshal(map[string]interface{}{
		"expression": args.Expression,
		"result":     value,
	})
}

// parser holds the tokenizer position. Grammar:
//
//	expr    = term   {("+" | "-") term}
//	term    = power  {("*" | "/" | "%") power}
//	power   = unary  ["^" power]            (right associative)
//	unary   = ["-" | "+"] atom
//	atom    = number | constant | func "(" expr {"," expr} ")" | "(" expr ")"
type parser struct {
	input string
	pos   int
}

func evaluate(expression string) (float64, error) {
	// Normalize the python-style exponent so both spellings work.
	expression = strings.ReplaceAll(expression, "**", "^")

	p := &parser{input: expression}
	value, err := p.parseExpr()
	if err != nil {
		return 0, err
	}
	p.skipSpaces()
	if p.pos < len(p.input) {
		return 0, fmt.Errorf("unexpected character %q at position %d", p.input[p.pos], p.pos)
	}
	if math.IsInf(value, 0) {
		return 0, fmt.Errorf("division by zero")
	}
	if math.IsNaN(value) {
		return 0, fmt.Errorf("result is not a number")
	}
	return value, nil
}

func (p *parser) parseExpr() (float64, error) {
	left, err := p.parseTerm()
	if err != nil {
		return 0, err
	}
	for {
		p.skipSpaces()
		switch {
		case p.accept('+'):
			right, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			left += right
		case p.accept('-'):
			right, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			left -= right
		default:
			return left, nil
		}
	}
}

func (p *parser) parseTerm() (float64, error) {
	left, err := p.parsePower()
	if err != nil {
		return 0, err
	}
	for {
		p.skipSpaces()
		switch {
		case p.accept('*'):
			right, err := p.parsePower()
			if err != nil {
				return 0, err
			}
			left *= right
		case p.accept('/'):
			right, err := p.parsePower()
			if err != nil {
				return 0, err
			}
			if right == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			left /= right
		case p.accept('%'):
			right, err := p.parsePower()
			if err != nil {
				return 0, err
			}
			if right == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			left = math.Mod(left, right)
		default:
			return left, nil
		}
	}
}

func (p *parser) parsePower() (float64, error) {
	base, err := p.parseUnary()
	if err != nil {
		return 0, err
	}
	p.skipSpaces()
	if p.accept('^') {
		exponent, err := p.parsePower()
		if err != nil {
			return 0, err
		}
		return math.Pow(base, exponent), nil
	}
	return base, nil
}

func (p *parser) parseUnary() (float64, error) {
	p.skipSpaces()
	if p.accept('-') {
		value, err := p.parseUnary()
		return -value, err
	}
	p.accept('+')
	return p.parseAtom()
}

func (p *parser) parseAtom() (float64, error) {
	p.skipSpaces()
	if p.pos >= len(p.input) {
		return 0, fmt.Errorf("unexpected end of expression")
	}

	if p.accept('(') {
		value, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		if !p.expect(')') {
			return 0, fmt.Errorf("missing closing parenthesis")
		}
		return value, nil
	}

	c := p.input[p.pos]
	switch {
	case c >= '0' && c <= '9' || c == '.':
		return p.parseNumber()
	case isIdentChar(c):
		return p.parseIdent()
	default:
		return 0, fmt.Errorf("unexpected character %q at position %d", c, p.pos)
	}
}

func (p *parser) parseNumber() (float64, error) {
	start := p.pos
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if c >= '0' && c <= '9' || c == '.' {
			p.pos++
			continue
		}
		// Scientific notation
		if (c == 'e' || c == 'E') && p.pos > start {
			next := p.pos + 1
			if next < len(p.input) && (p.input[next] == '+' || p.input[next] == '-') {
				next++
			}
			if next < len(p.input) && p.input[next] >= '0' && p.input[next] <= '9' {
				p.pos = next
				continue
			}
		}
		break
	}
	value, err := strconv.ParseFloat(p.input[start:p.pos], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", p.input[start:p.pos])
	}
	return value, nil
}

func (p *parser) parseIdent() (float64, error) {
	start := p.pos
	for p.pos < len(p.input) && isIdentChar(p.input[p.pos]) {
		p.pos++
	}
	name := strings.ToLower(p.input[start:p.pos])

	switch name {
	case "pi":
		return math.Pi, nil
	case "e":
		return math.E, nil
	}

	p.skipSpaces()
	if !p.accept('(') {
		return 0, fmt.Errorf("unknown identifier %q", name)
	}

	args := []float64{}
	p.skipSpaces()
	if !p.accept(')') {
		for {
			arg, err := p.parseExpr()
			if err != nil {
				return 0, err
			}
			args = append(args, arg)
			p.skipSpaces()
			if p.accept(',') {
				continue
			}
			if !p.expect(')') {
				return 0, fmt.Errorf("missing closing parenthesis in call to %s", name)
			}
			break
		}
	}

	return applyFunc(name, args)
}

func applyFunc(name string, args []float64) (float64, error) {
	unary := func(fn func(float64) float64) (float64, error) {
		if len(args) != 1 {
			return 0, fmt.Errorf("%s expects 1 argument, got %d", name, len(args))
		}
		return fn(args[0]), nil
	}

	switch name {
	case "sqrt":
		if len(args) == 1 && args[0] < 0 {
			return 0, fmt.Errorf("sqrt of negative number")
		}
		return unary(math.Sqrt)
	case "sin":
		return unary(math.Sin)
	case "cos":
		return unary(math.Cos)
	case "tan":
		return unary(math.Tan)
	case "log":
		if len(args) == 1 && args[0] <= 0 {
			return 0, fmt.Errorf("log of non-positive number")
		}
		return unary(math.Log)
	case "log10":
		if len(args) == 1 && args[0] <= 0 {
			return 0, fmt.Errorf("log10 of non-positive number")
		}
		return unary(math.Log10)
	case "exp":
		return unary(math.Exp)
	case "abs":
		return unary(math.Abs)
	case "floor":
		return unary(math.Floor)
	case "ceil":
		return unary(math.Ceil)
	case "round":
		return unary(math.Round)
	case "pow":
		if len(args) != 2 {
			return 0, fmt.Errorf("pow expects 2 arguments, got %d", len(args))
		}
		return math.Pow(args[0], args[1]), nil
	case "min", "max":
		if len(args) == 0 {
			return 0, fmt.Errorf("%s expects at least 1 argument", name)
		}
		result := args[0]
		for _, arg := range args[1:] {
			if name == "min" {
				result = math.Min(result, arg)
			} else {
				result = math.Max(result, arg)
			}
		}
		return result, nil
	default:
		return 0, fmt.Errorf("unknown function %q", name)
	}
}

func (p *parser) skipSpaces() {
	for p.pos < len(p.input) && (p.input[p.pos] == ' ' || p.input[p.pos] == '\t') {
		p.pos++
	}
}

func (p *parser) accept(c byte) bool {
	p.skipSpaces()
	if p.pos < len(p.input) && p.input[p.pos] == c {
		p.pos++
		return true
	}
	return false
}

func (p *parser) expect(c byte) bool {
	return p.accept(c)
}

func isIdentChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_' || c >= '0' && c <= '9'
}
