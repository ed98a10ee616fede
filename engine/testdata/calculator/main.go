package main

import (
	"fmt"
	"os"

	"calculator/interpreter"
	"calculator/tokenizer"
)

func main() {
	tokens, err := tokenizer.Tokenize(os.Args[1])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	result, err := interpreter.Interpret(tokens)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(result)
}
