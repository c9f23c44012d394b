package simflow

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// min() and max() of an empty hit list reduce to the identity element.
var (
	posInf = math.Inf(1)
	negInf = math.Inf(-1)
)

// Cut strings are compiled to a closed expression tree instead of being
// handed to a general evaluator. The language covers column references,
// numeric and boolean literals, arithmetic, comparisons, the boolean
// operators & | ~ and the reductions sum min max count any all over the
// per-event hit axis. A compiled expression must produce exactly one
// boolean per event.

type exprKind int

const (
	kindConstNum exprKind = iota
	kindConstBool
	kindScalarNum
	kindScalarBool
	kindJaggedNum
	kindJaggedBool
)

func (k exprKind) isNum() bool {
	return k == kindConstNum || k == kindScalarNum || k == kindJaggedNum
}

func (k exprKind) isBool() bool {
	return k == kindConstBool || k == kindScalarBool || k == kindJaggedBool
}

func (k exprKind) isJagged() bool {
	return k == kindJaggedNum || k == kindJaggedBool
}

// shape ranks the broadcast width: consts spread over everything, scalars
// over the hits of one event.
func (k exprKind) shape() int {
	switch k {
	case kindConstNum, kindConstBool:
		return 0
	case kindScalarNum, kindScalarBool:
		return 1
	default:
		return 2
	}
}

func (k exprKind) String() string {
	switch k {
	case kindConstNum:
		return "number"
	case kindConstBool:
		return "boolean"
	case kindScalarNum:
		return "per-event number"
	case kindScalarBool:
		return "per-event boolean"
	case kindJaggedNum:
		return "per-hit number"
	default:
		return "per-hit boolean"
	}
}

var columnKinds = map[string]exprKind{
	"energy":          kindJaggedNum,
	"mage_id":         kindJaggedNum,
	"is_off":          kindJaggedBool,
	"is_ac":           kindJaggedBool,
	"mul":             kindScalarNum,
	"mul_is_good":     kindScalarNum,
	"npe_tot":         kindScalarNum,
	"npe_tot_poisson": kindScalarNum,
}

type exprNode interface {
	kind() exprKind
	eval(batch *EventBatch) (exprValue, error)
}

// Expr is a cut string compiled once at startup.
type Expr struct {
	text string
	root exprNode
}

// CompileCut parses and type-checks a cut string.
func CompileCut(text string) (*Expr, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &ErrBadCutExpr{Cut: text, Detail: "empty expression"}
	}
	tokens, err := lexCut(text)
	if err != nil {
		return nil, &ErrBadCutExpr{Cut: text, Detail: err.Error()}
	}
	parser := &cutParser{tokens: tokens}
	root, err := parser.parseOr()
	if err != nil {
		return nil, &ErrBadCutExpr{Cut: text, Detail: err.Error()}
	}
	if tok := parser.peek(); tok.kind != tokenEOF {
		detail := fmt.Sprintf("unexpected %q at position %d", tok.text, tok.pos)
		return nil, &ErrBadCutExpr{Cut: text, Detail: detail}
	}
	k := root.kind()
	if k != kindScalarBool && k != kindConstBool {
		detail := fmt.Sprintf("expression yields a %s, want one boolean per event", k)
		return nil, &ErrBadCutExpr{Cut: text, Detail: detail}
	}
	return &Expr{text: text, root: root}, nil
}

// Eval returns the per-event selection mask.
func (e *Expr) Eval(batch *EventBatch) ([]bool, error) {
	result, err := e.root.eval(batch)
	if err != nil {
		return nil, err
	}
	switch result.k {
	case kindConstBool:
		mask := make([]bool, batch.Len())
		for i := range mask {
			mask[i] = result.constBool
		}
		return mask, nil
	default:
		return result.scalarBool, nil
	}
}

func (e *Expr) String() string {
	return e.text
}

// lexer

type tokenKind int

const (
	tokenEOF tokenKind = iota
	tokenNumber
	tokenIdent
	tokenOp
	tokenLParen
	tokenRParen
)

type cutToken struct {
	kind tokenKind
	text string
	pos  int
}

func lexCut(text string) ([]cutToken, error) {
	tokens := make([]cutToken, 0)
	runes := []rune(text)
	i := 0
	for i < len(runes) {
		c := runes[i]
		switch {
		case unicode.IsSpace(c):
			i++
		case c == '(':
			tokens = append(tokens, cutToken{tokenLParen, "(", i})
			i++
		case c == ')':
			tokens = append(tokens, cutToken{tokenRParen, ")", i})
			i++
		case c == '>' || c == '<' || c == '=' || c == '!':
			if i+1 < len(runes) && runes[i+1] == '=' {
				tokens = append(tokens, cutToken{tokenOp, string(runes[i : i+2]), i})
				i += 2
			} else if c == '=' || c == '!' {
				return nil, fmt.Errorf("unexpected %q at position %d", string(c), i)
			} else {
				tokens = append(tokens, cutToken{tokenOp, string(c), i})
				i++
			}
		case c == '+' || c == '-' || c == '*' || c == '/' || c == '&' || c == '|' || c == '~':
			tokens = append(tokens, cutToken{tokenOp, string(c), i})
			i++
		case unicode.IsDigit(c) || c == '.':
			start := i
			for i < len(runes) && (unicode.IsDigit(runes[i]) || runes[i] == '.') {
				i++
			}
			if i < len(runes) && (runes[i] == 'e' || runes[i] == 'E') {
				i++
				if i < len(runes) && (runes[i] == '+' || runes[i] == '-') {
					i++
				}
				for i < len(runes) && unicode.IsDigit(runes[i]) {
					i++
				}
			}
			tokens = append(tokens, cutToken{tokenNumber, string(runes[start:i]), start})
		case unicode.IsLetter(c) || c == '_':
			start := i
			for i < len(runes) && (unicode.IsLetter(runes[i]) || unicode.IsDigit(runes[i]) || runes[i] == '_') {
				i++
			}
			tokens = append(tokens, cutToken{tokenIdent, string(runes[start:i]), start})
		default:
			return nil, fmt.Errorf("unexpected %q at position %d", string(c), i)
		}
	}
	tokens = append(tokens, cutToken{tokenEOF, "", len(runes)})
	return tokens, nil
}

// parser
//
// Precedence, loosest first: |, &, comparisons, + -, * /, unary ~ -.
// Comparisons bind tighter than & and |, so masks combine without the
// parentheses the open evaluator needed. Chained comparisons are rejected.

type cutParser struct {
	tokens []cutToken
	pos    int
}

func (p *cutParser) peek() cutToken {
	return p.tokens[p.pos]
}

func (p *cutParser) next() cutToken {
	tok := p.tokens[p.pos]
	if tok.kind != tokenEOF {
		p.pos++
	}
	return tok
}

func (p *cutParser) acceptOp(ops ...string) (string, bool) {
	tok := p.peek()
	if tok.kind != tokenOp {
		return "", false
	}
	for _, op := range ops {
		if tok.text == op {
			p.next()
			return op, true
		}
	}
	return "", false
}

func (p *cutParser) parseOr() (exprNode, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for {
		if _, ok := p.acceptOp("|"); !ok {
			return left, nil
		}
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left, err = newBoolBinary("|", left, right)
		if err != nil {
			return nil, err
		}
	}
}

func (p *cutParser) parseAnd() (exprNode, error) {
	left, err := p.parseCompare()
	if err != nil {
		return nil, err
	}
	for {
		if _, ok := p.acceptOp("&"); !ok {
			return left, nil
		}
		right, err := p.parseCompare()
		if err != nil {
			return nil, err
		}
		left, err = newBoolBinary("&", left, right)
		if err != nil {
			return nil, err
		}
	}
}

func (p *cutParser) parseCompare() (exprNode, error) {
	left, err := p.parseAdd()
	if err != nil {
		return nil, err
	}
	op, ok := p.acceptOp("==", "!=", "<", "<=", ">", ">=")
	if !ok {
		return left, nil
	}
	right, err := p.parseAdd()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind == tokenOp && isCompareOp(tok.text) {
		return nil, fmt.Errorf("chained comparison at position %d", tok.pos)
	}
	return newCompare(op, left, right)
}

func isCompareOp(op string) bool {
	switch op {
	case "==", "!=", "<", "<=", ">", ">=":
		return true
	}
	return false
}

func (p *cutParser) parseAdd() (exprNode, error) {
	left, err := p.parseMul()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.acceptOp("+", "-")
		if !ok {
			return left, nil
		}
		right, err := p.parseMul()
		if err != nil {
			return nil, err
		}
		left, err = newNumBinary(op, left, right)
		if err != nil {
			return nil, err
		}
	}
}

func (p *cutParser) parseMul() (exprNode, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.acceptOp("*", "/")
		if !ok {
			return left, nil
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left, err = newNumBinary(op, left, right)
		if err != nil {
			return nil, err
		}
	}
}

func (p *cutParser) parseUnary() (exprNode, error) {
	if op, ok := p.acceptOp("~", "-"); ok {
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return newUnary(op, operand)
	}
	return p.parsePrimary()
}

func (p *cutParser) parsePrimary() (exprNode, error) {
	tok := p.next()
	switch tok.kind {
	case tokenNumber:
		v, err := strconv.ParseFloat(tok.text, 64)
		if err != nil {
			return nil, fmt.Errorf("bad number %q at position %d", tok.text, tok.pos)
		}
		return &numberNode{v: v}, nil
	case tokenIdent:
		switch tok.text {
		case "true", "True":
			return &boolNode{v: true}, nil
		case "false", "False":
			return &boolNode{v: false}, nil
		}
		if p.peek().kind == tokenLParen {
			p.next()
			arg, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			if closing := p.next(); closing.kind != tokenRParen {
				return nil, fmt.Errorf("missing ) for %s() at position %d", tok.text, closing.pos)
			}
			return newReduction(tok.text, arg, tok.pos)
		}
		k, ok := columnKinds[tok.text]
		if !ok {
			return nil, fmt.Errorf("unknown column %q at position %d", tok.text, tok.pos)
		}
		return &columnNode{name: tok.text, k: k}, nil
	case tokenLParen:
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if closing := p.next(); closing.kind != tokenRParen {
			return nil, fmt.Errorf("missing ) at position %d", closing.pos)
		}
		return inner, nil
	case tokenEOF:
		return nil, fmt.Errorf("unexpected end of expression")
	default:
		return nil, fmt.Errorf("unexpected %q at position %d", tok.text, tok.pos)
	}
}

// nodes

type exprValue struct {
	k          exprKind
	constNum   float64
	constBool  bool
	scalarNum  []float64
	scalarBool []bool
	jaggedNum  [][]float64
	jaggedBool [][]bool
}

type numberNode struct {
	v float64
}

func (n *numberNode) kind() exprKind {
	return kindConstNum
}

func (n *numberNode) eval(batch *EventBatch) (exprValue, error) {
	return exprValue{k: kindConstNum, constNum: n.v}, nil
}

type boolNode struct {
	v bool
}

func (n *boolNode) kind() exprKind {
	return kindConstBool
}

func (n *boolNode) eval(batch *EventBatch) (exprValue, error) {
	return exprValue{k: kindConstBool, constBool: n.v}, nil
}

type columnNode struct {
	name string
	k    exprKind
}

func (n *columnNode) kind() exprKind {
	return n.k
}

func (n *columnNode) eval(batch *EventBatch) (exprValue, error) {
	switch n.name {
	case "energy":
		return exprValue{k: kindJaggedNum, jaggedNum: batch.Energy}, nil
	case "mage_id":
		rows := make([][]float64, len(batch.MageID))
		for i, row := range batch.MageID {
			rows[i] = make([]float64, len(row))
			for j, id := range row {
				rows[i][j] = float64(id)
			}
		}
		return exprValue{k: kindJaggedNum, jaggedNum: rows}, nil
	case "is_off":
		return exprValue{k: kindJaggedBool, jaggedBool: batch.IsOff}, nil
	case "is_ac":
		return exprValue{k: kindJaggedBool, jaggedBool: batch.IsAC}, nil
	case "mul":
		if batch.Mul == nil {
			return exprValue{}, &ErrMissingColumn{Column: n.name}
		}
		return exprValue{k: kindScalarNum, scalarNum: int32sToFloat64s(batch.Mul)}, nil
	case "mul_is_good":
		if batch.MulGood == nil {
			return exprValue{}, &ErrMissingColumn{Column: n.name}
		}
		return exprValue{k: kindScalarNum, scalarNum: int32sToFloat64s(batch.MulGood)}, nil
	case "npe_tot":
		if !batch.HasNpeTot {
			return exprValue{}, &ErrMissingColumn{Column: n.name}
		}
		return exprValue{k: kindScalarNum, scalarNum: batch.NpeTot}, nil
	case "npe_tot_poisson":
		if batch.NpeTotPoisson == nil {
			return exprValue{}, &ErrMissingColumn{Column: n.name}
		}
		return exprValue{k: kindScalarNum, scalarNum: batch.NpeTotPoisson}, nil
	default:
		return exprValue{}, &ErrMissingColumn{Column: n.name}
	}
}

func int32sToFloat64s(values []int32) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = float64(v)
	}
	return out
}

type numBinaryNode struct {
	op   string
	l, r exprNode
	k    exprKind
}

func newNumBinary(op string, l exprNode, r exprNode) (exprNode, error) {
	if !l.kind().isNum() || !r.kind().isNum() {
		return nil, fmt.Errorf("operator %q wants numbers, got %s and %s", op, l.kind(), r.kind())
	}
	k := kindConstNum
	if maxShape(l.kind(), r.kind()) == 1 {
		k = kindScalarNum
	} else if maxShape(l.kind(), r.kind()) == 2 {
		k = kindJaggedNum
	}
	return &numBinaryNode{op: op, l: l, r: r, k: k}, nil
}

func maxShape(a exprKind, b exprKind) int {
	if a.shape() > b.shape() {
		return a.shape()
	}
	return b.shape()
}

func (n *numBinaryNode) kind() exprKind {
	return n.k
}

func (n *numBinaryNode) eval(batch *EventBatch) (exprValue, error) {
	l, err := n.l.eval(batch)
	if err != nil {
		return exprValue{}, err
	}
	r, err := n.r.eval(batch)
	if err != nil {
		return exprValue{}, err
	}
	var f func(a, b float64) float64
	switch n.op {
	case "+":
		f = func(a, b float64) float64 { return a + b }
	case "-":
		f = func(a, b float64) float64 { return a - b }
	case "*":
		f = func(a, b float64) float64 { return a * b }
	default:
		f = func(a, b float64) float64 { return a / b }
	}
	return broadcastNum(l, r, n.k, f)
}

type compareNode struct {
	op   string
	l, r exprNode
	k    exprKind
}

func newCompare(op string, l exprNode, r exprNode) (exprNode, error) {
	if !l.kind().isNum() || !r.kind().isNum() {
		return nil, fmt.Errorf("comparison %q wants numbers, got %s and %s", op, l.kind(), r.kind())
	}
	k := kindConstBool
	if maxShape(l.kind(), r.kind()) == 1 {
		k = kindScalarBool
	} else if maxShape(l.kind(), r.kind()) == 2 {
		k = kindJaggedBool
	}
	return &compareNode{op: op, l: l, r: r, k: k}, nil
}

func (n *compareNode) kind() exprKind {
	return n.k
}

func (n *compareNode) eval(batch *EventBatch) (exprValue, error) {
	l, err := n.l.eval(batch)
	if err != nil {
		return exprValue{}, err
	}
	r, err := n.r.eval(batch)
	if err != nil {
		return exprValue{}, err
	}
	var f func(a, b float64) bool
	switch n.op {
	case "==":
		f = func(a, b float64) bool { return a == b }
	case "!=":
		f = func(a, b float64) bool { return a != b }
	case "<":
		f = func(a, b float64) bool { return a < b }
	case "<=":
		f = func(a, b float64) bool { return a <= b }
	case ">":
		f = func(a, b float64) bool { return a > b }
	default:
		f = func(a, b float64) bool { return a >= b }
	}
	return broadcastCompare(l, r, n.k, f)
}

type boolBinaryNode struct {
	op   string
	l, r exprNode
	k    exprKind
}

func newBoolBinary(op string, l exprNode, r exprNode) (exprNode, error) {
	if !l.kind().isBool() || !r.kind().isBool() {
		return nil, fmt.Errorf("operator %q wants booleans, got %s and %s", op, l.kind(), r.kind())
	}
	k := kindConstBool
	if maxShape(l.kind(), r.kind()) == 1 {
		k = kindScalarBool
	} else if maxShape(l.kind(), r.kind()) == 2 {
		k = kindJaggedBool
	}
	return &boolBinaryNode{op: op, l: l, r: r, k: k}, nil
}

func (n *boolBinaryNode) kind() exprKind {
	return n.k
}

func (n *boolBinaryNode) eval(batch *EventBatch) (exprValue, error) {
	l, err := n.l.eval(batch)
	if err != nil {
		return exprValue{}, err
	}
	r, err := n.r.eval(batch)
	if err != nil {
		return exprValue{}, err
	}
	var f func(a, b bool) bool
	if n.op == "&" {
		f = func(a, b bool) bool { return a && b }
	} else {
		f = func(a, b bool) bool { return a || b }
	}
	return broadcastBool(l, r, n.k, f)
}

type unaryNode struct {
	op      string
	operand exprNode
	k       exprKind
}

func newUnary(op string, operand exprNode) (exprNode, error) {
	if op == "~" && !operand.kind().isBool() {
		return nil, fmt.Errorf("operator ~ wants a boolean, got %s", operand.kind())
	}
	if op == "-" && !operand.kind().isNum() {
		return nil, fmt.Errorf("unary - wants a number, got %s", operand.kind())
	}
	return &unaryNode{op: op, operand: operand, k: operand.kind()}, nil
}

func (n *unaryNode) kind() exprKind {
	return n.k
}

func (n *unaryNode) eval(batch *EventBatch) (exprValue, error) {
	v, err := n.operand.eval(batch)
	if err != nil {
		return exprValue{}, err
	}
	if n.op == "~" {
		switch v.k {
		case kindConstBool:
			return exprValue{k: v.k, constBool: !v.constBool}, nil
		case kindScalarBool:
			out := make([]bool, len(v.scalarBool))
			for i, b := range v.scalarBool {
				out[i] = !b
			}
			return exprValue{k: v.k, scalarBool: out}, nil
		default:
			rows := make([][]bool, len(v.jaggedBool))
			for i, row := range v.jaggedBool {
				rows[i] = make([]bool, len(row))
				for j, b := range row {
					rows[i][j] = !b
				}
			}
			return exprValue{k: v.k, jaggedBool: rows}, nil
		}
	}
	switch v.k {
	case kindConstNum:
		return exprValue{k: v.k, constNum: -v.constNum}, nil
	case kindScalarNum:
		out := make([]float64, len(v.scalarNum))
		for i, x := range v.scalarNum {
			out[i] = -x
		}
		return exprValue{k: v.k, scalarNum: out}, nil
	default:
		rows := make([][]float64, len(v.jaggedNum))
		for i, row := range v.jaggedNum {
			rows[i] = make([]float64, len(row))
			for j, x := range row {
				rows[i][j] = -x
			}
		}
		return exprValue{k: v.k, jaggedNum: rows}, nil
	}
}

type reductionNode struct {
	fn      string
	operand exprNode
	k       exprKind
}

func newReduction(fn string, operand exprNode, pos int) (exprNode, error) {
	if !operand.kind().isJagged() {
		return nil, fmt.Errorf("%s() at position %d wants a per-hit argument, got %s", fn, pos, operand.kind())
	}
	switch fn {
	case "sum", "count":
		return &reductionNode{fn: fn, operand: operand, k: kindScalarNum}, nil
	case "min", "max":
		if operand.kind() != kindJaggedNum {
			return nil, fmt.Errorf("%s() at position %d wants per-hit numbers, got %s", fn, pos, operand.kind())
		}
		return &reductionNode{fn: fn, operand: operand, k: kindScalarNum}, nil
	case "any", "all":
		if operand.kind() != kindJaggedBool {
			return nil, fmt.Errorf("%s() at position %d wants per-hit booleans, got %s", fn, pos, operand.kind())
		}
		return &reductionNode{fn: fn, operand: operand, k: kindScalarBool}, nil
	default:
		return nil, fmt.Errorf("unknown function %q at position %d", fn, pos)
	}
}

func (n *reductionNode) kind() exprKind {
	return n.k
}

func (n *reductionNode) eval(batch *EventBatch) (exprValue, error) {
	v, err := n.operand.eval(batch)
	if err != nil {
		return exprValue{}, err
	}
	switch n.fn {
	case "sum":
		if v.k == kindJaggedBool {
			out := make([]float64, len(v.jaggedBool))
			for i, row := range v.jaggedBool {
				for _, b := range row {
					if b {
						out[i]++
					}
				}
			}
			return exprValue{k: kindScalarNum, scalarNum: out}, nil
		}
		out := make([]float64, len(v.jaggedNum))
		for i, row := range v.jaggedNum {
			for _, x := range row {
				out[i] += x
			}
		}
		return exprValue{k: kindScalarNum, scalarNum: out}, nil
	case "count":
		var lens []int
		if v.k == kindJaggedBool {
			lens = make([]int, len(v.jaggedBool))
			for i, row := range v.jaggedBool {
				lens[i] = len(row)
			}
		} else {
			lens = make([]int, len(v.jaggedNum))
			for i, row := range v.jaggedNum {
				lens[i] = len(row)
			}
		}
		out := make([]float64, len(lens))
		for i, l := range lens {
			out[i] = float64(l)
		}
		return exprValue{k: kindScalarNum, scalarNum: out}, nil
	case "min":
		out := make([]float64, len(v.jaggedNum))
		for i, row := range v.jaggedNum {
			out[i] = reduceMin(row)
		}
		return exprValue{k: kindScalarNum, scalarNum: out}, nil
	case "max":
		out := make([]float64, len(v.jaggedNum))
		for i, row := range v.jaggedNum {
			out[i] = reduceMax(row)
		}
		return exprValue{k: kindScalarNum, scalarNum: out}, nil
	case "any":
		out := make([]bool, len(v.jaggedBool))
		for i, row := range v.jaggedBool {
			for _, b := range row {
				if b {
					out[i] = true
					break
				}
			}
		}
		return exprValue{k: kindScalarBool, scalarBool: out}, nil
	default: // all
		out := make([]bool, len(v.jaggedBool))
		for i, row := range v.jaggedBool {
			out[i] = true
			for _, b := range row {
				if !b {
					out[i] = false
					break
				}
			}
		}
		return exprValue{k: kindScalarBool, scalarBool: out}, nil
	}
}

// broadcast helpers

func numAt(v exprValue) func(i, j int) float64 {
	switch v.k {
	case kindConstNum:
		c := v.constNum
		return func(int, int) float64 { return c }
	case kindScalarNum:
		s := v.scalarNum
		return func(i, _ int) float64 { return s[i] }
	default:
		rows := v.jaggedNum
		return func(i, j int) float64 { return rows[i][j] }
	}
}

func boolAt(v exprValue) func(i, j int) bool {
	switch v.k {
	case kindConstBool:
		c := v.constBool
		return func(int, int) bool { return c }
	case kindScalarBool:
		s := v.scalarBool
		return func(i, _ int) bool { return s[i] }
	default:
		rows := v.jaggedBool
		return func(i, j int) bool { return rows[i][j] }
	}
}

// eventCount returns the number of events spanned by the operands and the
// per-event row lengths when the result is jagged.
func broadcastShape(l exprValue, r exprValue, k exprKind) (int, []int, error) {
	nEvents := -1
	var rowLens []int
	for _, v := range []exprValue{l, r} {
		var n int
		switch v.k {
		case kindConstNum, kindConstBool:
			continue
		case kindScalarNum:
			n = len(v.scalarNum)
		case kindScalarBool:
			n = len(v.scalarBool)
		case kindJaggedNum:
			n = len(v.jaggedNum)
		case kindJaggedBool:
			n = len(v.jaggedBool)
		}
		if nEvents >= 0 && n != nEvents {
			return 0, nil, fmt.Errorf("operand event counts differ: %d vs %d", nEvents, n)
		}
		nEvents = n
		if v.k == kindJaggedNum || v.k == kindJaggedBool {
			lens := make([]int, n)
			if v.k == kindJaggedNum {
				for i, row := range v.jaggedNum {
					lens[i] = len(row)
				}
			} else {
				for i, row := range v.jaggedBool {
					lens[i] = len(row)
				}
			}
			if rowLens != nil {
				for i := range lens {
					if lens[i] != rowLens[i] {
						return 0, nil, fmt.Errorf("operand hit counts differ in event %d: %d vs %d", i, rowLens[i], lens[i])
					}
				}
			}
			rowLens = lens
		}
	}
	return nEvents, rowLens, nil
}

func broadcastNum(l exprValue, r exprValue, k exprKind, f func(a, b float64) float64) (exprValue, error) {
	if k == kindConstNum {
		return exprValue{k: k, constNum: f(l.constNum, r.constNum)}, nil
	}
	nEvents, rowLens, err := broadcastShape(l, r, k)
	if err != nil {
		return exprValue{}, err
	}
	la, ra := numAt(l), numAt(r)
	if k == kindScalarNum {
		out := make([]float64, nEvents)
		for i := range out {
			out[i] = f(la(i, 0), ra(i, 0))
		}
		return exprValue{k: k, scalarNum: out}, nil
	}
	rows := make([][]float64, nEvents)
	for i := range rows {
		rows[i] = make([]float64, rowLens[i])
		for j := range rows[i] {
			rows[i][j] = f(la(i, j), ra(i, j))
		}
	}
	return exprValue{k: k, jaggedNum: rows}, nil
}

func broadcastCompare(l exprValue, r exprValue, k exprKind, f func(a, b float64) bool) (exprValue, error) {
	if k == kindConstBool {
		return exprValue{k: k, constBool: f(l.constNum, r.constNum)}, nil
	}
	nEvents, rowLens, err := broadcastShape(l, r, k)
	if err != nil {
		return exprValue{}, err
	}
	la, ra := numAt(l), numAt(r)
	if k == kindScalarBool {
		out := make([]bool, nEvents)
		for i := range out {
			out[i] = f(la(i, 0), ra(i, 0))
		}
		return exprValue{k: k, scalarBool: out}, nil
	}
	rows := make([][]bool, nEvents)
	for i := range rows {
		rows[i] = make([]bool, rowLens[i])
		for j := range rows[i] {
			rows[i][j] = f(la(i, j), ra(i, j))
		}
	}
	return exprValue{k: k, jaggedBool: rows}, nil
}

func broadcastBool(l exprValue, r exprValue, k exprKind, f func(a, b bool) bool) (exprValue, error) {
	if k == kindConstBool {
		return exprValue{k: k, constBool: f(l.constBool, r.constBool)}, nil
	}
	nEvents, rowLens, err := broadcastShape(l, r, k)
	if err != nil {
		return exprValue{}, err
	}
	la, ra := boolAt(l), boolAt(r)
	if k == kindScalarBool {
		out := make([]bool, nEvents)
		for i := range out {
			out[i] = f(la(i, 0), ra(i, 0))
		}
		return exprValue{k: k, scalarBool: out}, nil
	}
	rows := make([][]bool, nEvents)
	for i := range rows {
		rows[i] = make([]bool, rowLens[i])
		for j := range rows[i] {
			rows[i][j] = f(la(i, j), ra(i, j))
		}
	}
	return exprValue{k: k, jaggedBool: rows}, nil
}

func reduceMin(row []float64) float64 {
	if len(row) == 0 {
		return posInf
	}
	m := row[0]
	for _, x := range row[1:] {
		if x < m {
			m = x
		}
	}
	return m
}

func reduceMax(row []float64) float64 {
	if len(row) == 0 {
		return negInf
	}
	m := row[0]
	for _, x := range row[1:] {
		if x > m {
			m = x
		}
	}
	return m
}
