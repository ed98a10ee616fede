package tokenizer

import (
	"fmt"
	"strconv"
	"strings"
)

// Token is one lexical unit of an arithmetic expression
type Token interface {
	isToken()
}

type Integer struct {
	Val int
}

type Float struct {
	Val float64
}

type PlusOp struct{}

type MinusOp struct{}

type MulOp struct{}

type DivOp struct{}

type PowOp struct{}

type LPar struct{}

type RPar struct{}

func (Integer) isToken() {}
func (Float) isToken() {}
func (PlusOp) isToken() {}
func (MinusOp) isToken() {}
func (MulOp) isToken() {}
func (DivOp) isToken() {}
func (PowOp) isToken() {}
func (LPar) isToken() {}
func (RPar) isToken() {}

var symbols = map[byte]Token{
	'+': PlusOp{},
	'-': MinusOp{},
	'*': MulOp{},
	'/': DivOp{},
	'^': PowOp{},
	'(': LPar{},
	')': RPar{},
}

// Tokenize splits an expression such as "2 * (3 + 4.5)" into tokens
func Tokenize(expr string) ([]Token, error) {
	var out []Token
	for i := 0; i < len(expr); {
		c := expr[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case symbols[c] != nil:
			out = append(out, symbols[c])
			i++
		case c >= '0' && c <= '9' || c == '.':
			j := i
			for j < len(expr) && (expr[j] >= '0' && expr[j] <= '9' || expr[j] == '.') {
				j++
			}
			num := expr[i:j]
			if strings.Contains(num, ".") {
				f, err := strconv.ParseFloat(num, 64)
				if err != nil {
					return nil, err
				}
				out = append(out, Float{Val: f})
			} else {
				n, err := strconv.Atoi(num)
				if err != nil {
					return nil, err
				}
				out = append(out, Integer{Val: n})
			}
			i = j
		default:
			return nil, fmt.Errorf("unexpected %q at %d", c, i)
		}
	}
	return out, nil
}
