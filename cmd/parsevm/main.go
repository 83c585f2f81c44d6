// Command parsevm compiles and runs the arithmetic grammar of
// spec.md §8 scenario 1 against stdin-free fixed arguments, a small
// end-to-end demo of the Builder/Parse API.
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/haloed/parsevm"
)

func addOp(x, y any) any { return x.(int) + y.(int) }
func subOp(x, y any) any { return x.(int) - y.(int) }
func mulOp(x, y any) any { return x.(int) * y.(int) }

func arithmeticGrammar() parsevm.Node {
	expr := parsevm.NewRec()

	paren := parsevm.NewAp(
		parsevm.NewMap(
			parsevm.NewSeq(
				parsevm.NewCharSatisfy(func(r rune) bool { return r == '(' }, nil),
				expr,
			),
			func(v any) any { return func(any) any { return v } },
		),
		parsevm.NewCharSatisfy(func(r rune) bool { return r == ')' }, nil),
	)
	neg := parsevm.NewMap(
		parsevm.NewSeq(
			parsevm.NewCharSatisfy(func(r rune) bool { return r == '-' }, nil),
			expr,
		),
		func(v any) any { return -v.(int) },
	)
	factor := parsevm.NewAlt(parsevm.NewNatural(), parsevm.NewAlt(neg, paren))

	mulSym := parsevm.NewMap(
		parsevm.NewCharSatisfy(func(r rune) bool { return r == '*' }, nil),
		func(any) any { return func(x, y any) any { return mulOp(x, y) } },
	)
	term := parsevm.NewChainl(factor, mulSym)

	addSym := parsevm.NewMap(
		parsevm.NewCharSatisfy(func(r rune) bool { return r == '+' }, nil),
		func(any) any { return func(x, y any) any { return addOp(x, y) } },
	)
	subSym := parsevm.NewMap(
		parsevm.NewCharSatisfy(func(r rune) bool { return r == '-' }, nil),
		func(any) any { return func(x, y any) any { return subOp(x, y) } },
	)
	addOrSub := parsevm.NewAlt(addSym, subSym)
	expr.Inner = parsevm.NewChainl(term, addOrSub)

	return expr
}

func main() {
	input := flag.String("input", "(2+3)*8", "expression to parse")
	flag.Parse()

	prog, err := parsevm.NewBuilder(arithmeticGrammar()).Compile()
	if err != nil {
		log.Fatalf("compile: %v", err)
	}

	result := parsevm.ParseString(prog, *input, "<stdin>")
	if !result.IsSuccess() {
		log.Fatal(result.Message())
	}
	fmt.Println(result.Value())
}
