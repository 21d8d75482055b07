package compiler

import (
	"strconv"
)

// Parser consumes the flat token slice produced by the Lexer and builds a
// Program, resolving every name against the current procedure's table.
//
// Grammar:
//
//	program      = procedure* mainDef EOF
//	procedure    = "def" PID args declarations block
//	mainDef      = "def" "main" "(" ")" declarations block
//	args         = "(" [declaration ("," declaration)*] ")"
//	declarations = ["with" declaration ("," declaration)*]
//	declaration  = ("int" | "float") PID ["[" INT "]"]
//	block        = "{" command+ "}"
//	command      = identifier "=" expression
//	             | "if" condition block ["else" block]
//	             | "while" condition block
//	             | "for" PID "from" value ("to" | "downto") value block
//	             | "read" identifier
//	             | "write" value
//	             | "call" PID "(" [value ("," value)*] ")"
//	identifier   = PID ["[" (PID | INT) "]"]
//	expression   = value [("+" | "-" | "*" | "/" | "%") value]
//	condition    = value ("==" | "!=" | "<" | ">" | "<=" | ">=") value
//	value        = INT | FLOAT | identifier
type Parser struct {
	tokens []Token
	pos    int

	syms  *SymbolTable // scope of the procedure being parsed, nil between procedures
	procs map[string]*Procedure
	calls []*Call // checked once every procedure is known
}

func NewParser(tokens []Token) *Parser {
	return &Parser{tokens: tokens, procs: make(map[string]*Procedure)}
}

var arithOps = map[TokenType]ArithOp{
	PLUS:    OpAdd,
	MINUS:   OpSub,
	STAR:    OpMul,
	SLASH:   OpDiv,
	PERCENT: OpMod,
}

var cmpOps = map[TokenType]CmpOp{
	EQUALS:     CmpEq,
	NOT_EQ:     CmpNe,
	LESS:       CmpLt,
	GREATER:    CmpGt,
	LESS_EQ:    CmpLe,
	GREATER_EQ: CmpGe,
}

func (p *Parser) syntaxError(tok Token, reason string) error {
	return &SyntaxError{Token: tok.Lexeme, Line: tok.Line, Reason: reason}
}

// peek returns the current token without consuming it.
func (p *Parser) peek() Token {
	if p.pos >= len(p.tokens) {
		return p.eof()
	}
	return p.tokens[p.pos]
}

// peekNext returns the token immediately after the current one.
func (p *Parser) peekNext() Token {
	if p.pos+1 >= len(p.tokens) {
		return p.eof()
	}
	return p.tokens[p.pos+1]
}

func (p *Parser) eof() Token {
	line := 1
	if n := len(p.tokens); n > 0 {
		line = p.tokens[n-1].Line
	}
	return Token{Type: EOF, Line: line}
}

// advance consumes and returns the current token.
func (p *Parser) advance() Token {
	tok := p.peek()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

// expect consumes the current token if it matches tt, otherwise returns an error.
func (p *Parser) expect(tt TokenType) (Token, error) {
	tok := p.advance()
	if tok.Type != tt {
		return tok, p.syntaxError(tok, "expected "+tt.String())
	}
	return tok, nil
}

// ParseProgram parses the whole token stream and then checks every call.
func (p *Parser) ParseProgram() (*Program, error) {
	prog := &Program{}
	for p.peek().Type == DEF && p.peekNext().Type != MAIN {
		proc, err := p.parseProcedure()
		if err != nil {
			return nil, err
		}
		prog.Procedures = append(prog.Procedures, proc)
	}

	main, err := p.parseMain()
	if err != nil {
		return nil, err
	}
	prog.Main = main

	if _, err := p.expect(EOF); err != nil {
		return nil, err
	}
	if err := p.resolveCalls(); err != nil {
		return nil, err
	}
	return prog, nil
}

func (p *Parser) parseProcedure() (*Procedure, error) {
	def, err := p.expect(DEF)
	if err != nil {
		return nil, err
	}
	nameTok, err := p.expect(PID)
	if err != nil {
		return nil, err
	}
	if _, dup := p.procs[nameTok.Lexeme]; dup {
		return nil, &DuplicateProcedureError{Name: nameTok.Lexeme, Line: nameTok.Line}
	}

	proc := &Procedure{Name: nameTok.Lexeme, Line: def.Line}
	p.procs[proc.Name] = proc

	p.syms = NewSymbolTable(proc.Name)
	proc.Symbols = p.syms
	defer func() { p.syms = nil }()

	if proc.Params, err = p.parseArgs(); err != nil {
		return nil, err
	}
	if proc.Locals, err = p.parseDeclarations(); err != nil {
		return nil, err
	}
	if proc.Body, err = p.parseBlock(); err != nil {
		return nil, err
	}
	return proc, nil
}

func (p *Parser) parseMain() (*Main, error) {
	def, err := p.expect(DEF)
	if err != nil {
		return nil, err
	}
	for _, tt := range []TokenType{MAIN, LPAREN, RPAREN} {
		if _, err := p.expect(tt); err != nil {
			return nil, err
		}
	}

	main := &Main{Line: def.Line}
	p.syms = NewSymbolTable("main")
	main.Symbols = p.syms
	defer func() { p.syms = nil }()

	if main.Locals, err = p.parseDeclarations(); err != nil {
		return nil, err
	}
	if main.Body, err = p.parseBlock(); err != nil {
		return nil, err
	}
	return main, nil
}

// parseArgs handles "(" [declaration ("," declaration)*] ")".
func (p *Parser) parseArgs() ([]Decl, error) {
	if _, err := p.expect(LPAREN); err != nil {
		return nil, err
	}
	if p.peek().Type == RPAREN {
		p.advance()
		return nil, nil
	}
	var params []Decl
	for {
		d, err := p.parseDeclaration(false)
		if err != nil {
			return nil, err
		}
		params = append(params, d)
		if p.peek().Type != COMMA {
			break
		}
		p.advance()
	}
	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}
	return params, nil
}

// parseDeclarations handles the optional "with" clause.
func (p *Parser) parseDeclarations() ([]Decl, error) {
	if p.peek().Type != WITH {
		return nil, nil
	}
	p.advance()
	var locals []Decl
	for {
		d, err := p.parseDeclaration(true)
		if err != nil {
			return nil, err
		}
		locals = append(locals, d)
		if p.peek().Type != COMMA {
			return locals, nil
		}
		p.advance()
	}
}

// parseDeclaration reads one declaration and records it in the current
// table. Parameters are always scalars.
func (p *Parser) parseDeclaration(allowArray bool) (Decl, error) {
	typeTok := p.advance()
	var d Decl
	switch typeTok.Type {
	case INT:
		d.Type = Int64
	case FLOAT:
		d.Type = Float64
	default:
		return d, p.syntaxError(typeTok, "expected a type")
	}

	nameTok, err := p.expect(PID)
	if err != nil {
		return d, err
	}
	d.Name, d.Line = nameTok.Lexeme, nameTok.Line

	if p.peek().Type == LBRACKET {
		bracket := p.advance()
		if !allowArray {
			return d, p.syntaxError(bracket, "parameters cannot be arrays")
		}
		sizeTok, err := p.expect(INT_LIT)
		if err != nil {
			return d, err
		}
		n, err := strconv.Atoi(sizeTok.Lexeme)
		if err != nil || n <= 0 {
			return d, p.syntaxError(sizeTok, "array length must be a positive integer")
		}
		d.Length = n
		if _, err := p.expect(RBRACKET); err != nil {
			return d, err
		}
	}

	if err := p.syms.Declare(d); err != nil {
		return d, err
	}
	return d, nil
}

// parseBlock handles "{" command+ "}".
func (p *Parser) parseBlock() ([]Command, error) {
	if _, err := p.expect(LBRACE); err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.Type == RBRACE {
		return nil, p.syntaxError(tok, "expected a command")
	}
	var cmds []Command
	for p.peek().Type != RBRACE {
		cmd, err := p.parseCommand()
		if err != nil {
			return nil, err
		}
		cmds = append(cmds, cmd)
	}
	p.advance() // }
	return cmds, nil
}

func (p *Parser) parseCommand() (Command, error) {
	tok := p.peek()
	switch tok.Type {
	case PID:
		target, err := p.parseIdentifier()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(ASSIGN); err != nil {
			return nil, err
		}
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		return &Assign{Target: target, Expr: expr, Line: tok.Line}, nil
	case IF:
		return p.parseIf()
	case WHILE:
		p.advance()
		cond, err := p.parseCondition()
		if err != nil {
			return nil, err
		}
		body, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		return &While{Cond: cond, Body: body, Line: tok.Line}, nil
	case FOR:
		return p.parseFor()
	case READ:
		p.advance()
		target, err := p.parseIdentifier()
		if err != nil {
			return nil, err
		}
		return &Read{Target: target, Line: tok.Line}, nil
	case WRITE:
		p.advance()
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		return &Write{Value: v, Line: tok.Line}, nil
	case CALL:
		return p.parseCall()
	}
	return nil, p.syntaxError(tok, "expected a command")
}

func (p *Parser) parseIf() (Command, error) {
	tok := p.advance() // if
	cond, err := p.parseCondition()
	if err != nil {
		return nil, err
	}
	then, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	if p.peek().Type != ELSE {
		return &If{Cond: cond, Then: then, Line: tok.Line}, nil
	}
	p.advance()
	els, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &IfElse{Cond: cond, Then: then, Else: els, Line: tok.Line}, nil
}

func (p *Parser) parseFor() (Command, error) {
	tok := p.advance() // for
	varTok, err := p.expect(PID)
	if err != nil {
		return nil, err
	}
	v, err := p.syms.ResolveScalar(varTok.Lexeme, varTok.Line)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(FROM); err != nil {
		return nil, err
	}
	from, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	dir := p.advance()
	if dir.Type != TO && dir.Type != DOWNTO {
		return nil, p.syntaxError(dir, "expected TO or DOWNTO")
	}
	bound, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	if dir.Type == DOWNTO {
		return &ForDown{Var: v, From: from, Downto: bound, Body: body, Line: tok.Line}, nil
	}
	return &ForUp{Var: v, From: from, To: bound, Body: body, Line: tok.Line}, nil
}

func (p *Parser) parseCall() (Command, error) {
	tok := p.advance() // call
	nameTok, err := p.expect(PID)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(LPAREN); err != nil {
		return nil, err
	}
	call := &Call{Callee: nameTok.Lexeme, Line: tok.Line}
	if p.peek().Type != RPAREN {
		for {
			v, err := p.parseValue()
			if err != nil {
				return nil, err
			}
			call.Args = append(call.Args, v)
			if p.peek().Type != COMMA {
				break
			}
			p.advance()
		}
	}
	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}
	p.calls = append(p.calls, call)
	return call, nil
}

// parseIdentifier resolves PID or PID "[" (PID | INT) "]".
func (p *Parser) parseIdentifier() (LValue, error) {
	nameTok, err := p.expect(PID)
	if err != nil {
		return nil, err
	}
	if p.peek().Type != LBRACKET {
		return p.syms.ResolveScalar(nameTok.Lexeme, nameTok.Line)
	}
	p.advance() // [

	ref, err := p.syms.ResolveArray(nameTok.Lexeme, nameTok.Line)
	if err != nil {
		return nil, err
	}
	idxTok := p.advance()
	switch idxTok.Type {
	case INT_LIT:
		c, err := p.intConst(idxTok)
		if err != nil {
			return nil, err
		}
		ref.Index = c
	case PID:
		idx, err := p.syms.ResolveScalar(idxTok.Lexeme, idxTok.Line)
		if err != nil {
			return nil, err
		}
		ref.Index = idx
	default:
		return nil, p.syntaxError(idxTok, "expected an index")
	}
	if _, err := p.expect(RBRACKET); err != nil {
		return nil, err
	}
	return ref, nil
}

func (p *Parser) parseValue() (Value, error) {
	tok := p.peek()
	switch tok.Type {
	case INT_LIT:
		p.advance()
		return p.intConst(tok)
	case FLOAT_LIT:
		p.advance()
		f, err := strconv.ParseFloat(tok.Lexeme, 64)
		if err != nil {
			return nil, p.syntaxError(tok, "float literal out of range")
		}
		return FloatConst(f), nil
	case PID:
		return p.parseIdentifier()
	}
	p.advance()
	return nil, p.syntaxError(tok, "expected a value")
}

func (p *Parser) intConst(tok Token) (*Const, error) {
	n, err := strconv.ParseInt(tok.Lexeme, 10, 64)
	if err != nil {
		return nil, p.syntaxError(tok, "integer literal out of range")
	}
	return IntConst(n), nil
}

func (p *Parser) parseExpression() (Expr, error) {
	left, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	op, ok := arithOps[p.peek().Type]
	if !ok {
		return left, nil
	}
	p.advance()
	right, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	return &BinaryOp{Op: op, Left: left, Right: right}, nil
}

func (p *Parser) parseCondition() (Condition, error) {
	left, err := p.parseValue()
	if err != nil {
		return Condition{}, err
	}
	opTok := p.advance()
	op, ok := cmpOps[opTok.Type]
	if !ok {
		return Condition{}, p.syntaxError(opTok, "expected a comparison operator")
	}
	right, err := p.parseValue()
	if err != nil {
		return Condition{}, err
	}
	return Condition{Op: op, Left: left, Right: right}, nil
}

// resolveCalls checks callees and argument counts in source order and
// records the callee's parameter types on each Call.
func (p *Parser) resolveCalls() error {
	for _, call := range p.calls {
		proc, ok := p.procs[call.Callee]
		if !ok {
			return &UnknownProcedureError{Name: call.Callee, Line: call.Line}
		}
		if len(call.Args) != len(proc.Params) {
			return &ArgumentCountError{Name: call.Callee, Expected: len(proc.Params), Actual: len(call.Args), Line: call.Line}
		}
		call.Params = make([]Type, len(proc.Params))
		for i, d := range proc.Params {
			call.Params[i] = d.Type
		}
	}
	return nil
}

// Parse builds a Program from a complete token stream.
func Parse(tokens []Token) (*Program, error) {
	return NewParser(tokens).ParseProgram()
}
