package frontend

// ---------------------
// ----- Constants -----
// ---------------------

const (
	digits    = "0123456789"
	hexDigits = "0123456789abcdefABCDEF"
	wordRunes = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789_."
	stackWord = "stack."
	labelWord = "bb."
	defSuffix = "-def"
)

// ---------------------
// ----- Functions -----
// ---------------------

// lexGlobal starts the lexing process and serves as the default state.
func lexGlobal(l *lexer) stateFunc {
	for {
		r := l.next()
		switch {
		case isAlpha(r) || r == '_':
			// Keyword, opcode, type, predicate or block label.
			return lexWord
		case isDigit(r):
			// Number.
			return lexNumber
		case r == '-' && isDigit(l.peek()):
			// Negative number.
			return lexNumber
		case r == '-' && l.peek() == '>':
			// Result type arrow.
			l.next()
			l.emit(itemArrow)
		case r == '%':
			return lexRegister
		case r == '@':
			return lexSymbol
		case r == '$':
			return lexPhys
		case r == '\n':
			// Newline.
			l.ignore()
			l.line++
			l.startOnLine = 1
		case isSpace(r):
			// Ignore whitespace. Newlines are caught before whitespaces.
			// Based on Google's RE2 WHITESPACE class: [\t\n\f\r ]
			l.ignore()
		case r == ';':
			// Ignore comments.
			for c := l.peek(); c != '\n' && c != eof; c = l.peek() {
				l.next()
			}
			l.ignore()
		case r == eof:
			// End of file: stop the state machine.
			l.emit(itemEOF)
			return nil
		default:
			// Let parser use character as is.
			l.emit(itemType(r))
		}
	}
}

// lexWord scans the input string for keywords, identifiers and block labels.
func lexWord(l *lexer) stateFunc {
	// We know that the currently scanned rune is an alphabetic character or underscore.
	l.acceptRun(wordRunes)
	word := l.input[l.start:l.pos]
	if len(word) > len(labelWord) && word[:len(labelWord)] == labelWord && isNumber(word[len(labelWord):]) {
		l.emit(itemLabel)
		return lexGlobal
	}
	if rest := l.input[l.pos:]; word == "implicit" && len(rest) >= len(defSuffix) &&
		rest[:len(defSuffix)] == defSuffix {
		l.pos += len(defSuffix)
		l.emit(itemImplicitDef)
		return lexGlobal
	}
	if kw, typ := isKeyword(word); kw {
		l.emit(typ)
	} else {
		l.emit(itemIdent)
	}
	return lexGlobal
}

// lexNumber scans the input stream for an integer number. Hexadecimal numbers start with 0x.
func lexNumber(l *lexer) stateFunc {
	// Rescan from the first rune, which is either a digit or the minus sign.
	l.pos = l.start
	l.accept("-")
	if l.accept("0") && l.accept("xX") {
		if l.acceptRun(hexDigits) == 0 {
			return l.errorf("malformed hexadecimal number at line %d:%d", l.line, l.startOnLine)
		}
	} else {
		l.acceptRun(digits)
	}
	if isAlpha(l.peek()) {
		return l.errorf("malformed number %q at line %d:%d", l.input[l.start:l.pos+1], l.line, l.startOnLine)
	}
	l.emit(itemNumber)
	return lexGlobal
}

// lexRegister scans a virtual register or a frame index. The leading '%' has been scanned.
func lexRegister(l *lexer) stateFunc {
	rest := l.input[l.pos:]
	if len(rest) > len(stackWord) && rest[:len(stackWord)] == stackWord {
		l.pos += len(stackWord)
		if l.acceptRun(digits) == 0 {
			return l.errorf("malformed frame index at line %d:%d", l.line, l.startOnLine)
		}
		l.emit(itemStack)
		return lexGlobal
	}
	if l.acceptRun(digits) == 0 {
		return l.errorf("malformed register at line %d:%d", l.line, l.startOnLine)
	}
	l.emit(itemRegister)
	return lexGlobal
}

// lexSymbol scans a global symbol name. The leading '@' has been scanned.
func lexSymbol(l *lexer) stateFunc {
	if l.acceptRun(wordRunes+"$") == 0 {
		return l.errorf("empty symbol name at line %d:%d", l.line, l.startOnLine)
	}
	l.emit(itemSymbol)
	return lexGlobal
}

// lexPhys scans a physical register name. The leading '$' has been scanned.
func lexPhys(l *lexer) stateFunc {
	if l.acceptRun(wordRunes) == 0 {
		return l.errorf("empty physical register name at line %d:%d", l.line, l.startOnLine)
	}
	l.emit(itemPhys)
	return lexGlobal
}

// ----------------------------
// ----- Helper functions -----
// ----------------------------

// isAlpha return true if rune r is an alphabetic character in the set [a-zA-Z].
func isAlpha(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

// isDigit return true if rune r is a digit in the range [0-9].
func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

// isSpace return true if rune r is a whitespace character.
func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\f' || r == '\r'
}

// isNumber returns true if s is a non-empty run of decimal digits.
func isNumber(s string) bool {
	if len(s) == 0 {
		return false
	}
	for _, e1 := range s {
		if !isDigit(e1) {
			return false
		}
	}
	return true
}
