package roxx

import (
	"strconv"
	"strings"

	"github.com/alextanhongpin/rox/dynamic"
)

// tokenKind classifies a single whitespace-delimited unit of a postfix
// expression (spec §4.C2 Tokenization).
type tokenKind int

const (
	tokenString tokenKind = iota
	tokenNumber
	tokenBool
	tokenUndefined
	tokenOperator
	tokenUnknown
)

type token struct {
	kind tokenKind
	text string // raw text, decoded for tokenString
}

// tokenize splits expr into tokens in reverse-Polish order. Quoted
// strings are treated atomically: embedded spaces never split a token,
// and the two supported escapes (\" and \\) are decoded before the
// token is returned.
func tokenize(expr string, isOperator func(string) bool) []token {
	var tokens []token
	var i int
	n := len(expr)

	for i < n {
		for i < n && isSpace(expr[i]) {
			i++
		}
		if i >= n {
			break
		}

		if expr[i] == '"' {
			start := i
			i++
			var raw strings.Builder
			for i < n && expr[i] != '"' {
				if expr[i] == '\\' && i+1 < n && (expr[i+1] == '"' || expr[i+1] == '\\') {
					raw.WriteByte(expr[i+1])
					i += 2
					continue
				}
				raw.WriteByte(expr[i])
				i++
			}
			if i < n {
				i++ // closing quote
			}
			_ = start
			tokens = append(tokens, token{kind: tokenString, text: raw.String()})
			continue
		}

		start := i
		for i < n && !isSpace(expr[i]) {
			i++
		}
		word := expr[start:i]
		tokens = append(tokens, classify(word, isOperator))
	}

	return tokens
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

func classify(word string, isOperator func(string) bool) token {
	switch word {
	case "true", "false":
		return token{kind: tokenBool, text: word}
	case "undefined":
		return token{kind: tokenUndefined, text: word}
	}
	if isNumber(word) {
		return token{kind: tokenNumber, text: word}
	}
	if isOperator != nil && isOperator(word) {
		return token{kind: tokenOperator, text: word}
	}
	return token{kind: tokenUnknown, text: word}
}

func isNumber(s string) bool {
	if s == "" {
		return false
	}
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

// literalValue converts a non-operator token into the dynamic.Value it
// pushes onto the stack.
func literalValue(t token) dynamic.Value {
	switch t.kind {
	case tokenString, tokenUnknown:
		return dynamic.String(t.text)
	case tokenBool:
		return dynamic.Bool(t.text == "true")
	case tokenUndefined:
		return dynamic.Undefined()
	case tokenNumber:
		f, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return dynamic.Undefined()
		}
		if i, err := strconv.ParseInt(t.text, 10, 64); err == nil && !strings.ContainsAny(t.text, ".eE") {
			return dynamic.Int(i)
		}
		return dynamic.Double(f)
	default:
		return dynamic.Undefined()
	}
}

// Quote renders s as a double-quoted expression token, escaping the two
// supported characters, so that tokenize(Quote(s)) round-trips to s
// (spec §8 "token round-trip").
func Quote(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '"' || c == '\\' {
			b.WriteByte('\\')
		}
		b.WriteByte(c)
	}
	b.WriteByte('"')
	return b.String()
}
