package store

import (
	"errors"
	"strings"
)

var (
	ErrEmptyStatement     = errors.New("sql is required")
	ErrMultipleStatements = errors.New("only a single sql statement is allowed")
)

// SingleStatement returns sqlText without trailing semicolons or comments.
// A semicolon inside a string literal, quoted identifier or comment does
// not end the statement; any other statement text after one is rejected.
func SingleStatement(sqlText string) (string, error) {
	end := statementEnd(sqlText)
	statement := strings.TrimSpace(sqlText[:end])
	if onlyTrivia(statement) {
		return "", ErrEmptyStatement
	}
	if !onlyTrivia(sqlText[end:]) {
		return "", ErrMultipleStatements
	}
	return statement, nil
}

// statementEnd returns the offset of the first statement terminator in
// text, or len(text) when there is none.
func statementEnd(text string) int {
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '\'', '"':
			i = skipQuoted(text, i, text[i])
		case '-':
			if strings.HasPrefix(text[i:], "--") {
				i = skipLine(text, i)
			}
		case '/':
			if strings.HasPrefix(text[i:], "/*") {
				i = skipBlock(text, i)
			}
		case '$':
			if strings.HasPrefix(text[i:], "$$") {
				if end := strings.Index(text[i+2:], "$$"); end >= 0 {
					i += end + 3
				} else {
					i = len(text) - 1
				}
			}
		case ';':
			return i
		}
	}
	return len(text)
}

// onlyTrivia reports whether text holds nothing but whitespace, semicolons
// and comments.
func onlyTrivia(text string) bool {
	for i := 0; i < len(text); i++ {
		switch c := text[i]; {
		case c == ';' || c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v':
		case strings.HasPrefix(text[i:], "--"):
			i = skipLine(text, i)
		case strings.HasPrefix(text[i:], "/*"):
			i = skipBlock(text, i)
		default:
			return false
		}
	}
	return true
}

func skipQuoted(text string, start int, quote byte) int {
	for i := start + 1; i < len(text); i++ {
		if text[i] != quote {
			continue
		}
		if i+1 < len(text) && text[i+1] == quote {
			i++
			continue
		}
		return i
	}
	return len(text) - 1
}

func skipLine(text string, start int) int {
	if newline := strings.IndexByte(text[start:], '\n'); newline >= 0 {
		return start + newline
	}
	return len(text) - 1
}

func skipBlock(text string, start int) int {
	if end := strings.Index(text[start+2:], "*/"); end >= 0 {
		return start + 2 + end + 1
	}
	return len(text) - 1
}
