// Package compiler is a single-pass Pratt-style expression compiler: it
// drives the scanner and writes bytecode directly into a chunk as it
// parses, without ever building an intermediate syntax tree.
package compiler

import (
	"fmt"
	"strconv"

	"clox-go/internal/chunk"
	"clox-go/internal/lexer"
	"clox-go/internal/token"
	"clox-go/internal/value"
)

// Precedence is the ladder climbed by parsePrecedence, low to high.
type Precedence int

const (
	PrecNone       Precedence = iota
	PrecAssignment            // =
	PrecOr                    // or
	PrecAnd                   // and
	PrecEquality              // == !=
	PrecComparison            // < > <= >=
	PrecTerm                  // + -
	PrecFactor                // * /
	PrecUnary                 // ! -
	PrecCall                  // . ()
	PrecPrimary
)

type (
	prefixFn func(c *Compiler, canAssign bool)
	infixFn  func(c *Compiler, canAssign bool)
)

type parseRule struct {
	prefix     prefixFn
	infix      infixFn
	precedence Precedence
}

var rules map[token.Type]parseRule

func init() {
	rules = map[token.Type]parseRule{
		token.LEFT_PAREN:    {(*Compiler).grouping, nil, PrecNone},
		token.MINUS:         {(*Compiler).unary, (*Compiler).binary, PrecTerm},
		token.PLUS:          {nil, (*Compiler).binary, PrecTerm},
		token.SLASH:         {nil, (*Compiler).binary, PrecFactor},
		token.STAR:          {nil, (*Compiler).binary, PrecFactor},
		token.BANG:          {(*Compiler).unary, nil, PrecNone},
		token.BANG_EQUAL:    {nil, (*Compiler).binary, PrecEquality},
		token.EQUAL_EQUAL:   {nil, (*Compiler).binary, PrecEquality},
		token.GREATER:       {nil, (*Compiler).binary, PrecComparison},
		token.GREATER_EQUAL: {nil, (*Compiler).binary, PrecComparison},
		token.LESS:          {nil, (*Compiler).binary, PrecComparison},
		token.LESS_EQUAL:    {nil, (*Compiler).binary, PrecComparison},
		token.IDENTIFIER:    {(*Compiler).variable, nil, PrecNone},
		token.STRING:        {(*Compiler).string, nil, PrecNone},
		token.NUMBER:        {(*Compiler).number, nil, PrecNone},
		token.FALSE:         {(*Compiler).literal, nil, PrecNone},
		token.TRUE:          {(*Compiler).literal, nil, PrecNone},
		token.NIL:           {(*Compiler).literal, nil, PrecNone},
		token.AND:           {nil, (*Compiler).and_, PrecAnd},
		token.OR:            {nil, (*Compiler).or_, PrecOr},
	}
}

func getRule(t token.Type) parseRule {
	if r, ok := rules[t]; ok {
		return r
	}
	return parseRule{nil, nil, PrecNone}
}

// local is a lexically scoped variable tracked during compilation. Its slot
// index equals its position in Compiler.locals, which mirrors the operand
// stack layout at runtime (spec.md §4.4, §9).
type local struct {
	name        string
	depth       int
	initialized bool
}

// Error is a compile-time diagnostic: a line number and a message.
type Error struct {
	Line    int
	Message string
	AtEnd   bool
}

func (e *Error) Error() string {
	if e.AtEnd {
		return fmt.Sprintf("[line %d] Error at end: %s", e.Line, e.Message)
	}
	return fmt.Sprintf("[line %d] Error: %s", e.Line, e.Message)
}

// Compiler drives the lexer, parses with a precedence-climbing table, and
// writes instructions into a target chunk. Exactly one Compiler is used per
// call to Compile; it is not reused.
type Compiler struct {
	lexer *lexer.Lexer
	chunk *chunk.Chunk

	previous token.Token
	current  token.Token

	hadError  bool
	panicMode bool

	scopeDepth int
	locals     []local

	errs []error
}

// Compile compiles source into a chunk. If any compile error was recorded,
// the chunk is discarded and the errors are returned; by spec.md §4.4,
// compilation continues past the first error (panic-mode recovery) so every
// error in the source is reported, not just the first.
func Compile(source string) (*chunk.Chunk, error) {
	c := &Compiler{
		lexer: lexer.New(source),
		chunk: chunk.New(),
	}
	c.advance()
	for !c.match(token.EOF) {
		c.declaration()
	}
	c.emitByte(byte(chunk.OpReturn), c.previous.Line)

	if c.hadError {
		return nil, joinErrors(c.errs)
	}
	return c.chunk, nil
}

func joinErrors(errs []error) error {
	if len(errs) == 1 {
		return errs[0]
	}
	msg := ""
	for i, e := range errs {
		if i > 0 {
			msg += "\n"
		}
		msg += e.Error()
	}
	return fmt.Errorf("%s", msg)
}

// --- token stream -----------------------------------------------------

func (c *Compiler) advance() {
	c.previous = c.current
	for {
		c.current = c.lexer.ScanToken()
		if c.current.Type != token.ERROR {
			break
		}
		c.errorAtCurrent(c.current.Lexeme)
	}
}

func (c *Compiler) check(t token.Type) bool {
	return c.current.Type == t
}

func (c *Compiler) match(t token.Type) bool {
	if !c.check(t) {
		return false
	}
	c.advance()
	return true
}

func (c *Compiler) consume(t token.Type, message string) {
	if c.current.Type == t {
		c.advance()
		return
	}
	c.errorAtCurrent(message)
}

// --- error reporting ----------------------------------------------------

func (c *Compiler) errorAtCurrent(message string) {
	c.errorAt(c.current, message)
}

func (c *Compiler) errorAtPrevious(message string) {
	c.errorAt(c.previous, message)
}

func (c *Compiler) errorAt(tok token.Token, message string) {
	if c.panicMode {
		return
	}
	c.panicMode = true
	c.hadError = true

	c.errs = append(c.errs, &Error{Line: tok.Line, Message: message, AtEnd: tok.Type == token.EOF})
}

// synchronize discards tokens until a likely statement boundary, per
// spec.md §4.4, then clears panic mode so later errors are reported too.
func (c *Compiler) synchronize() {
	c.panicMode = false

	for c.current.Type != token.EOF {
		if c.previous.Type == token.SEMICOLON {
			return
		}
		if token.StatementBoundary(c.current.Type) {
			return
		}
		c.advance()
	}
}

// --- bytecode emission --------------------------------------------------

func (c *Compiler) emitByte(b byte, line int) {
	c.chunk.Write(b, line)
}

func (c *Compiler) emit(op chunk.OpCode) {
	c.emitByte(byte(op), c.previous.Line)
}

func (c *Compiler) emitOperand(b byte) {
	c.emitByte(b, c.previous.Line)
}

func (c *Compiler) emitConstant(v value.Value) {
	c.emit(chunk.OpConstant)
	c.emitOperand(c.makeConstant(v))
}

func (c *Compiler) makeConstant(v value.Value) byte {
	idx := c.chunk.AddConstant(v)
	if idx > 255 {
		c.errorAtPrevious("Too many constants in one chunk.")
		return 0
	}
	return byte(idx)
}

// emitJump writes a placeholder jump with a 0xffff displacement and returns
// the offset of its operand for later back-patching.
func (c *Compiler) emitJump(op chunk.OpCode) int {
	c.emit(op)
	c.emitOperand(0xff)
	c.emitOperand(0xff)
	return len(c.chunk.Code) - 2
}

// patchJump overwrites the placeholder at offset with the real forward
// displacement, now that the jump target is known (spec.md §4.4, §9).
func (c *Compiler) patchJump(offset int) {
	displacement := len(c.chunk.Code) - offset - 2
	if displacement > 0xffff {
		c.errorAtPrevious("Too much code to jump over.")
		return
	}
	c.chunk.Patch(offset, byte(displacement>>8))
	c.chunk.Patch(offset+1, byte(displacement&0xff))
}

// emitLoop emits a backward Loop instruction to loopStart.
func (c *Compiler) emitLoop(loopStart int) {
	c.emit(chunk.OpLoop)
	displacement := len(c.chunk.Code) - loopStart + 2
	if displacement > 0xffff {
		c.errorAtPrevious("Loop body too large.")
		return
	}
	c.emitOperand(byte(displacement >> 8))
	c.emitOperand(byte(displacement & 0xff))
}

// --- scopes and locals ---------------------------------------------------

func (c *Compiler) beginScope() {
	c.scopeDepth++
}

// endScope pops every local declared in the scope being closed, per
// spec.md §4.4 and testable property 3.
func (c *Compiler) endScope() {
	c.scopeDepth--
	for len(c.locals) > 0 && c.locals[len(c.locals)-1].depth > c.scopeDepth {
		c.emit(chunk.OpPop)
		c.locals = c.locals[:len(c.locals)-1]
	}
}

func (c *Compiler) addLocal(name string) {
	if len(c.locals) >= 256 {
		c.errorAtPrevious("Too many local variables in function.")
		return
	}
	c.locals = append(c.locals, local{name: name, depth: -1, initialized: false})
}

// declareVariable registers the identifier in c.previous as a new local in
// the current scope, rejecting a duplicate name within the same scope
// (spec.md §4.4). It is a no-op at global scope.
func (c *Compiler) declareVariable() {
	if c.scopeDepth == 0 {
		return
	}
	name := c.previous.Lexeme
	for i := len(c.locals) - 1; i >= 0; i-- {
		l := c.locals[i]
		if l.depth != -1 && l.depth < c.scopeDepth {
			break
		}
		if l.name == name {
			c.errorAtPrevious("Already a variable with this name in this scope.")
		}
	}
	c.addLocal(name)
}

func (c *Compiler) markInitialized() {
	if c.scopeDepth == 0 {
		return
	}
	c.locals[len(c.locals)-1].depth = c.scopeDepth
	c.locals[len(c.locals)-1].initialized = true
}

// resolveLocal searches the local sequence from newest to oldest for name,
// returning its slot index or -1 if it's not a local (spec.md §4.4).
func (c *Compiler) resolveLocal(name string) int {
	for i := len(c.locals) - 1; i >= 0; i-- {
		if c.locals[i].name == name {
			if !c.locals[i].initialized {
				c.errorAtPrevious("Can't read local variable in its own initializer.")
			}
			return i
		}
	}
	return -1
}

// identifierConstant interns name as a string constant, for use as a
// DefineGlobal/GetGlobal/SetGlobal operand.
func (c *Compiler) identifierConstant(name string) byte {
	return c.makeConstant(value.NewString(name))
}

// parseVariable consumes an identifier, declares it (as a local if scoped),
// and returns the global-name constant index to use if it turns out to be
// global (the return value is ignored for locals).
func (c *Compiler) parseVariable(errMsg string) byte {
	c.consume(token.IDENTIFIER, errMsg)
	c.declareVariable()
	if c.scopeDepth > 0 {
		return 0
	}
	return c.identifierConstant(c.previous.Lexeme)
}

func (c *Compiler) defineVariable(global byte) {
	if c.scopeDepth > 0 {
		c.markInitialized()
		return
	}
	c.emit(chunk.OpDefineGlobal)
	c.emitOperand(global)
}

// --- declarations and statements -----------------------------------------

func (c *Compiler) declaration() {
	if c.match(token.VAR) {
		c.varDeclaration()
	} else {
		c.statement()
	}

	if c.panicMode {
		c.synchronize()
	}
}

func (c *Compiler) varDeclaration() {
	global := c.parseVariable("Expect variable name.")

	if c.match(token.EQUAL) {
		c.expression()
	} else {
		c.emit(chunk.OpNil)
	}
	c.consume(token.SEMICOLON, "Expect ';' after variable declaration.")

	c.defineVariable(global)
}

func (c *Compiler) statement() {
	switch {
	case c.match(token.PRINT):
		c.printStatement()
	case c.match(token.IF):
		c.ifStatement()
	case c.match(token.WHILE):
		c.whileStatement()
	case c.match(token.FOR):
		c.forStatement()
	case c.match(token.LEFT_BRACE):
		c.beginScope()
		c.block()
		c.endScope()
	default:
		c.expressionStatement()
	}
}

func (c *Compiler) printStatement() {
	c.expression()
	c.consume(token.SEMICOLON, "Expect ';' after value.")
	c.emit(chunk.OpPrint)
}

func (c *Compiler) expressionStatement() {
	c.expression()
	c.consume(token.SEMICOLON, "Expect ';' after expression.")
	c.emit(chunk.OpPop)
}

func (c *Compiler) block() {
	for !c.check(token.RIGHT_BRACE) && !c.check(token.EOF) {
		c.declaration()
	}
	c.consume(token.RIGHT_BRACE, "Expect '}' after block.")
}

func (c *Compiler) ifStatement() {
	c.consume(token.LEFT_PAREN, "Expect '(' after 'if'.")
	c.expression()
	c.consume(token.RIGHT_PAREN, "Expect ')' after condition.")

	thenJump := c.emitJump(chunk.OpJumpIfFalse)
	c.emit(chunk.OpPop)
	c.statement()

	elseJump := c.emitJump(chunk.OpJump)
	c.patchJump(thenJump)
	c.emit(chunk.OpPop)

	if c.match(token.ELSE) {
		c.statement()
	}
	c.patchJump(elseJump)
}

func (c *Compiler) whileStatement() {
	loopStart := len(c.chunk.Code)
	c.consume(token.LEFT_PAREN, "Expect '(' after 'while'.")
	c.expression()
	c.consume(token.RIGHT_PAREN, "Expect ')' after condition.")

	exitJump := c.emitJump(chunk.OpJumpIfFalse)
	c.emit(chunk.OpPop)
	c.statement()
	c.emitLoop(loopStart)

	c.patchJump(exitJump)
	c.emit(chunk.OpPop)
}

func (c *Compiler) forStatement() {
	c.beginScope()
	c.consume(token.LEFT_PAREN, "Expect '(' after 'for'.")

	switch {
	case c.match(token.SEMICOLON):
		// no initializer
	case c.match(token.VAR):
		c.varDeclaration()
	default:
		c.expressionStatement()
	}

	loopStart := len(c.chunk.Code)
	exitJump := -1
	if !c.match(token.SEMICOLON) {
		c.expression()
		c.consume(token.SEMICOLON, "Expect ';' after loop condition.")
		exitJump = c.emitJump(chunk.OpJumpIfFalse)
		c.emit(chunk.OpPop)
	}

	if !c.match(token.RIGHT_PAREN) {
		bodyJump := c.emitJump(chunk.OpJump)
		incrementStart := len(c.chunk.Code)
		c.expression()
		c.emit(chunk.OpPop)
		c.consume(token.RIGHT_PAREN, "Expect ')' after for clauses.")

		c.emitLoop(loopStart)
		loopStart = incrementStart
		c.patchJump(bodyJump)
	}

	c.statement()
	c.emitLoop(loopStart)

	if exitJump != -1 {
		c.patchJump(exitJump)
		c.emit(chunk.OpPop)
	}

	c.endScope()
}

// --- expressions ----------------------------------------------------------

func (c *Compiler) expression() {
	c.parsePrecedence(PrecAssignment)
}

func (c *Compiler) parsePrecedence(min Precedence) {
	c.advance()
	prefix := getRule(c.previous.Type).prefix
	if prefix == nil {
		c.errorAtPrevious("Expect expression.")
		return
	}

	canAssign := min <= PrecAssignment
	prefix(c, canAssign)

	for min <= getRule(c.current.Type).precedence {
		c.advance()
		infix := getRule(c.previous.Type).infix
		infix(c, canAssign)
	}

	if canAssign && c.match(token.EQUAL) {
		c.errorAtPrevious("Invalid assignment target.")
	}
}

func (c *Compiler) number(_ bool) {
	n, err := strconv.ParseFloat(c.previous.Lexeme, 64)
	if err != nil {
		c.errorAtPrevious("Invalid number literal.")
		return
	}
	c.emitConstant(value.NewNumber(n))
}

func (c *Compiler) string(_ bool) {
	lexeme := c.previous.Lexeme
	// Strip the surrounding quotes the scanner preserved in the lexeme.
	s := lexeme[1 : len(lexeme)-1]
	c.emitConstant(value.NewString(s))
}

func (c *Compiler) literal(_ bool) {
	switch c.previous.Type {
	case token.FALSE:
		c.emit(chunk.OpFalse)
	case token.TRUE:
		c.emit(chunk.OpTrue)
	case token.NIL:
		c.emit(chunk.OpNil)
	}
}

func (c *Compiler) grouping(_ bool) {
	c.expression()
	c.consume(token.RIGHT_PAREN, "Expect ')' after expression.")
}

func (c *Compiler) unary(_ bool) {
	opType := c.previous.Type
	c.parsePrecedence(PrecUnary)
	switch opType {
	case token.MINUS:
		c.emit(chunk.OpNegate)
	case token.BANG:
		c.emit(chunk.OpNot)
	}
}

func (c *Compiler) binary(_ bool) {
	opType := c.previous.Type
	rule := getRule(opType)
	c.parsePrecedence(rule.precedence + 1)

	switch opType {
	case token.BANG_EQUAL:
		c.emit(chunk.OpEqual)
		c.emit(chunk.OpNot)
	case token.EQUAL_EQUAL:
		c.emit(chunk.OpEqual)
	case token.GREATER:
		c.emit(chunk.OpGreater)
	case token.GREATER_EQUAL:
		c.emit(chunk.OpLess)
		c.emit(chunk.OpNot)
	case token.LESS:
		c.emit(chunk.OpLess)
	case token.LESS_EQUAL:
		c.emit(chunk.OpGreater)
		c.emit(chunk.OpNot)
	case token.PLUS:
		c.emit(chunk.OpAdd)
	case token.MINUS:
		c.emit(chunk.OpSubtract)
	case token.STAR:
		c.emit(chunk.OpMultiply)
	case token.SLASH:
		c.emit(chunk.OpDivide)
	}
}

// and_ short-circuits: if the left operand is falsey, skip the right
// operand and leave the left value on the stack; otherwise discard it and
// evaluate the right (spec.md §4.4).
func (c *Compiler) and_(_ bool) {
	endJump := c.emitJump(chunk.OpJumpIfFalse)
	c.emit(chunk.OpPop)
	c.parsePrecedence(PrecAnd)
	c.patchJump(endJump)
}

// or_ short-circuits the opposite way: if the left operand is truthy, skip
// the right operand.
func (c *Compiler) or_(_ bool) {
	elseJump := c.emitJump(chunk.OpJumpIfFalse)
	endJump := c.emitJump(chunk.OpJump)

	c.patchJump(elseJump)
	c.emit(chunk.OpPop)

	c.parsePrecedence(PrecOr)
	c.patchJump(endJump)
}

func (c *Compiler) variable(canAssign bool) {
	c.namedVariable(c.previous, canAssign)
}

func (c *Compiler) namedVariable(name token.Token, canAssign bool) {
	var getOp, setOp chunk.OpCode
	slot := c.resolveLocal(name.Lexeme)
	var arg byte
	if slot != -1 {
		getOp, setOp = chunk.OpGetLocal, chunk.OpSetLocal
		arg = byte(slot)
	} else {
		getOp, setOp = chunk.OpGetGlobal, chunk.OpSetGlobal
		arg = c.identifierConstant(name.Lexeme)
	}

	if canAssign && c.match(token.EQUAL) {
		c.expression()
		c.emit(setOp)
		c.emitOperand(arg)
	} else {
		c.emit(getOp)
		c.emitOperand(arg)
	}
}
