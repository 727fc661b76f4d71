package lexer

import (
	"testing"

	"clox-go/internal/token"
)

func TestScanToken(t *testing.T) {
	input := `var a = 1
// a comment
print a + 2.5 * (3 - "hi") ;
a == b != c <= d >= e < f > g
and or if else for while nil true false
!a
`

	tests := []struct {
		expectedType   token.Type
		expectedLexeme string
	}{
		{token.VAR, "var"},
		{token.IDENTIFIER, "a"},
		{token.EQUAL, "="},
		{token.NUMBER, "1"},
		{token.PRINT, "print"},
		{token.IDENTIFIER, "a"},
		{token.PLUS, "+"},
		{token.NUMBER, "2.5"},
		{token.STAR, "*"},
		{token.LEFT_PAREN, "("},
		{token.NUMBER, "3"},
		{token.MINUS, "-"},
		{token.STRING, `"hi"`},
		{token.RIGHT_PAREN, ")"},
		{token.SEMICOLON, ";"},
		{token.IDENTIFIER, "a"},
		{token.EQUAL_EQUAL, "=="},
		{token.IDENTIFIER, "b"},
		{token.BANG_EQUAL, "!="},
		{token.IDENTIFIER, "c"},
		{token.LESS_EQUAL, "<="},
		{token.IDENTIFIER, "d"},
		{token.GREATER_EQUAL, ">="},
		{token.IDENTIFIER, "e"},
		{token.LESS, "<"},
		{token.IDENTIFIER, "f"},
		{token.GREATER, ">"},
		{token.IDENTIFIER, "g"},
		{token.AND, "and"},
		{token.OR, "or"},
		{token.IF, "if"},
		{token.ELSE, "else"},
		{token.FOR, "for"},
		{token.WHILE, "while"},
		{token.NIL, "nil"},
		{token.TRUE, "true"},
		{token.FALSE, "false"},
		{token.BANG, "!"},
		{token.IDENTIFIER, "a"},
		{token.EOF, ""},
	}

	l := New(input)

	for i, tt := range tests {
		tok := l.ScanToken()

		if tok.Type != tt.expectedType {
			t.Fatalf("tests[%d] - token type wrong. expected=%q, got=%q",
				i, tt.expectedType, tok.Type)
		}

		if tok.Lexeme != tt.expectedLexeme {
			t.Fatalf("tests[%d] - lexeme wrong. expected=%q, got=%q",
				i, tt.expectedLexeme, tok.Lexeme)
		}
	}
}

func TestScanTokenTracksLines(t *testing.T) {
	l := New("var a = 1;\nvar b = 2;\n")

	var last token.Token
	for {
		tok := l.ScanToken()
		if tok.Type == token.EOF {
			last = tok
			break
		}
		if tok.Lexeme == "b" {
			if tok.Line != 2 {
				t.Fatalf("expected 'b' on line 2, got line %d", tok.Line)
			}
		}
	}
	if last.Line != 3 {
		t.Fatalf("expected EOF on line 3, got line %d", last.Line)
	}
}

func TestUnterminatedString(t *testing.T) {
	l := New(`"unterminated`)
	tok := l.ScanToken()
	if tok.Type != token.ERROR || tok.Lexeme != "Unterminated string." {
		t.Fatalf("expected unterminated string error, got %v", tok)
	}
}

func TestUnexpectedCharacter(t *testing.T) {
	l := New("@")
	tok := l.ScanToken()
	if tok.Type != token.ERROR || tok.Lexeme != "Unexpected character." {
		t.Fatalf("expected unexpected character error, got %v", tok)
	}
}
