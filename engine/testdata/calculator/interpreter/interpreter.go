package interpreter

import "calculator/tokenizer"

// Interpret evaluates an infix expression with the usual precedence,
// parentheses included. The arithmetic itself lives in
// @calculator.operations.
func Interpret(tokens []tokenizer.Token) (float64, error) {
	panic("not implemented")
}
