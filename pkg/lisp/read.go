package lisp

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// SyntaxError is a reader error, carrying the byte range of the source it
// applies to.
type SyntaxError struct {
	Msg      string
	From, To int
	// Incomplete marks source that is not wrong but unfinished, such as an
	// unclosed parenthesis. The REPL responds by waiting for more input
	// instead of reporting an error.
	Incomplete bool
}

func (e *SyntaxError) Error() string { return e.Msg }

// IsIncomplete reports whether err is a SyntaxError marked incomplete.
func IsIncomplete(err error) bool {
	var se *SyntaxError
	return errors.As(err, &se) && se.Incomplete
}

// ReadAll parses src into a sequence of forms. On error the returned forms
// are nil; an incomplete error means src is a prefix of valid input.
func ReadAll(src string) ([]Value, error) {
	p := &parser{src: src}
	var forms []Value
	for {
		p.skipSpace()
		if p.pos == len(p.src) {
			return forms, nil
		}
		form, err := p.readForm()
		if err != nil {
			return nil, err
		}
		forms = append(forms, form)
	}
}

type parser struct {
	src string
	pos int
}

// skipSpace advances past whitespace and comments. Comments run from a
// semicolon to the end of the line.
func (p *parser) skipSpace() {
	for p.pos < len(p.src) {
		switch c := p.src[p.pos]; c {
		case ';':
			for p.pos < len(p.src) && p.src[p.pos] != '\n' {
				p.pos++
			}
		case ' ', '\t', '\r', '\n':
			p.pos++
		default:
			return
		}
	}
}

func (p *parser) readForm() (Value, error) {
	p.skipSpace()
	if p.pos == len(p.src) {
		return nil, &SyntaxError{
			Msg: "unexpected end of input",
			From: len(p.src), To: len(p.src), Incomplete: true}
	}
	start := p.pos
	switch p.src[p.pos] {
	case '(':
		p.pos++
		elems := []Value{}
		for {
			p.skipSpace()
			if p.pos == len(p.src) {
				// On nested unclosed parentheses this reports the
				// innermost one.
				return nil, &SyntaxError{
					Msg: "unclosed parenthesis",
					From: start, To: len(p.src), Incomplete: true}
			}
			if p.src[p.pos] == ')' {
				p.pos++
				return elems, nil
			}
			elem, err := p.readForm()
			if err != nil {
				return nil, err
			}
			elems = append(elems, elem)
		}
	case ')':
		p.pos++
		return nil, &SyntaxError{Msg: "unexpected )", From: start, To: p.pos}
	case '\'':
		p.pos++
		form, err := p.readForm()
		if err != nil {
			return nil, err
		}
		return []Value{Symbol("quote"), form}, nil
	case '"':
		return p.readString()
	default:
		return p.readAtom()
	}
}

func (p *parser) readString() (Value, error) {
	start := p.pos
	p.pos++
	var sb strings.Builder
	for p.pos < len(p.src) {
		switch c := p.src[p.pos]; c {
		case '"':
			p.pos++
			return sb.String(), nil
		case '\\':
			if p.pos+1 == len(p.src) {
				return nil, &SyntaxError{
					Msg: "unterminated string literal",
					From: start, To: len(p.src), Incomplete: true}
			}
			p.pos++
			switch e := p.src[p.pos]; e {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case '\\', '"':
				sb.WriteByte(e)
			default:
				return nil, &SyntaxError{
					Msg:  fmt.Sprintf("unknown escape \\%c in string", e),
					From: p.pos - 1, To: p.pos + 1}
			}
			p.pos++
		default:
			sb.WriteByte(c)
			p.pos++
		}
	}
	return nil, &SyntaxError{
		Msg: "unterminated string literal",
		From: start, To: len(p.src), Incomplete: true}
}

func (p *parser) readAtom() (Value, error) {
	start := p.pos
	for p.pos < len(p.src) && !IsDelimiter(p.src[p.pos]) {
		p.pos++
	}
	text := p.src[start:p.pos]
	switch {
	case text == "#t":
		return true, nil
	case text == "#f":
		return false, nil
	case strings.HasPrefix(text, "#"):
		return nil, &SyntaxError{Msg: "unknown literal " + text, From: start, To: p.pos}
	}
	if n, err := strconv.ParseFloat(text, 64); err == nil {
		return n, nil
	}
	return Symbol(text), nil
}

// IsDelimiter reports whether c ends a symbol or number token. Tools that
// need to find token boundaries in source text, like the completion code,
// share these rules with the reader.
func IsDelimiter(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\n', '(', ')', '"', ';', '\'':
		return true
	}
	return false
}
