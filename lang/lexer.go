package lang

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokNumber
	tokString
	tokComment
	tokDirective // @load and friends
	tokDollar    // $
	tokQuestDollar
	tokPunct
	tokEOF
)

type token struct {
	kind tokenKind
	text string
	span Span
}

func (t token) is(text string) bool { return t.text == text }

// scan tokenizes the whole source. The lexer never fails; bytes it does not
// understand become single-character punctuation tokens.
func scan(source []byte) []token {
	var toks []token
	var row, col uint32
	i := 0
	n := len(source)

	point := func() Point { return Point{Row: row, Column: col} }
	advance := func(k int) {
		for j := 0; j < k; j++ {
			if source[i+j] == '\n' {
				row++
				col = 0
			} else {
				col++
			}
		}
		i += k
	}
	emit := func(kind tokenKind, start int, startPt Point) {
		toks = append(toks, token{
			kind: kind,
			text: string(source[start:i]),
			span: Span{
				StartByte: uint32(start),
				EndByte:   uint32(i),
				Start:     startPt,
				End:       point(),
			},
		})
	}

	for i < n {
		c := source[i]
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			advance(1)
		case c == '#':
			start, pt := i, point()
			for i < n && source[i] != '\n' {
				advance(1)
			}
			emit(tokComment, start, pt)
		case c == '@':
			start, pt := i, point()
			advance(1)
			for i < n && (isIdentByte(source[i]) || source[i] == '-') {
				advance(1)
			}
			emit(tokDirective, start, pt)
		case c == '"':
			start, pt := i, point()
			advance(1)
			for i < n && source[i] != '"' && source[i] != '\n' {
				if source[i] == '\\' && i+1 < n {
					advance(1)
				}
				advance(1)
			}
			if i < n && source[i] == '"' {
				advance(1)
			}
			emit(tokString, start, pt)
		case isIdentStart(c):
			start, pt := i, point()
			advance(1)
			for i < n {
				if isIdentByte(source[i]) {
					advance(1)
					continue
				}
				// Module-qualified ids stay one token: Mod::name.
				if source[i] == ':' && i+1 < n && source[i+1] == ':' && i+2 < n && isIdentStart(source[i+2]) {
					advance(2)
					continue
				}
				break
			}
			emit(tokIdent, start, pt)
		case c >= '0' && c <= '9':
			start, pt := i, point()
			for i < n && (isIdentByte(source[i]) || source[i] == '.') {
				advance(1)
			}
			emit(tokNumber, start, pt)
		case c == '?' && i+1 < n && source[i+1] == '$':
			start, pt := i, point()
			advance(2)
			emit(tokQuestDollar, start, pt)
		case c == '$':
			start, pt := i, point()
			advance(1)
			emit(tokDollar, start, pt)
		default:
			start, pt := i, point()
			if i+1 < n && isTwoBytePunct(c, source[i+1]) {
				advance(2)
			} else {
				advance(1)
			}
			emit(tokPunct, start, pt)
		}
	}

	end := Point{Row: row, Column: col}
	toks = append(toks, token{
		kind: tokEOF,
		span: Span{StartByte: uint32(n), EndByte: uint32(n), Start: end, End: end},
	})
	return toks
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentByte(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func isTwoBytePunct(a, b byte) bool {
	switch string([]byte{a, b}) {
	case "+=", "-=", "==", "!=", "<=", ">=", "&&", "||", "::":
		return true
	}
	return false
}

// lineStarts indexes the byte offset of every line start.
func lineStarts(source []byte) []uint32 {
	starts := []uint32{0}
	for i, c := range source {
		if c == '\n' {
			starts = append(starts, uint32(i+1))
		}
	}
	return starts
}
