package frontend

// ---------------------
// ----- Constants -----
// ---------------------

// Token types above the range of single character tokens. Punctuation is emitted with the character as item type.
const (
	itemIdent    itemType = iota + 0x100 // Opcode, type, predicate or other bare word.
	itemNumber                           // Decimal or hexadecimal integer, optionally negative.
	itemRegister                         // Virtual register, %<n>.
	itemStack                            // Frame index, %stack.<n>.
	itemSymbol                           // Global symbol, @<name>.
	itemPhys                             // Physical register, $<name>.
	itemLabel                            // Basic block label, bb.<n>.
	itemArrow                            // Result type arrow, ->.
	itemFunc                             // Keyword func.
	itemGlobal                           // Keyword global.
	itemSize                             // Keyword size.
	itemVararg                           // Keyword vararg.
	itemImplicit                         // Keyword implicit.
	itemImplicitDef                      // Keyword implicit-def.
)

// -------------------
// ----- Globals -----
// -------------------

type reservedItem struct {
	val string
	typ itemType
}

// rw contains the set of all reserved gMIR keywords.
// The first dimension equals the length of the word.
// The second dimension is the slice of all words of that length.
// Indexing by length and searching should be faster than using a hash table.
var rw = [...][]reservedItem{
	// One-grams
	{},
	// Two-grams
	{},
	// Three-grams
	{},
	// Four-grams
	{
		{val: "func", typ: itemFunc},
		{val: "size", typ: itemSize},
	},
	// Five-grams
	{},
	// Six-grams
	{
		{val: "global", typ: itemGlobal},
		{val: "vararg", typ: itemVararg},
	},
	// Seven-grams
	{},
	// Eight-grams
	{
		{val: "implicit", typ: itemImplicit},
	},
}

// itemNames provides printable names of the multi character token types.
var itemNames = map[itemType]string{
	itemEOF:         "EOF",
	itemError:       "ERROR",
	itemIdent:       "IDENT",
	itemNumber:      "NUMBER",
	itemRegister:    "REGISTER",
	itemStack:       "STACK",
	itemSymbol:      "SYMBOL",
	itemPhys:        "PHYSREG",
	itemLabel:       "LABEL",
	itemArrow:       "ARROW",
	itemFunc:        "FUNC",
	itemGlobal:      "GLOBAL",
	itemSize:        "SIZE",
	itemVararg:      "VARARG",
	itemImplicit:    "IMPLICIT",
	itemImplicitDef: "IMPLICIT-DEF",
}

// ---------------------
// ----- Functions -----
// ---------------------

// isKeyword returns true if the string s is a reserved gMIR keyword.
// On the return of true the itemType of the keyword is returned.
// On the return of false the itemType is either itemIdent or itemError.
func isKeyword(s string) (bool, itemType) {
	if len(s) == 0 {
		return false, itemError
	}
	if len(s) > len(rw) {
		return false, itemIdent
	}

	// Check if string s is a reserved word by iterating over all words in rw of length len(s).
	for _, e1 := range rw[len(s)-1] {
		if e1.val == s {
			return true, e1.typ
		}
	}
	return false, itemIdent
}

// String returns the printable name of token type typ.
func (typ itemType) String() string {
	if s, ok := itemNames[typ]; ok {
		return s
	}
	return string(rune(typ))
}
