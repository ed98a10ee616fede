// Package operations holds the arithmetic the interpreter applies
package operations

import "math"

func Add(a, b float64) float64 { return a + b }

func Sub(a, b float64) float64 { return a - b }

func Mul(a, b float64) float64 { return a * b }

func Div(a, b float64) float64 { return a / b }

func Pow(a, b float64) float64 { return math.Pow(a, b) }
