package theme

import (
	"os"
	"strings"
)

// SymbolSet holds the UI glyphs for one terminal capability level.
type SymbolSet struct {
	Success  string
	Error    string
	Warning  string
	Spinner  string
	ArrowR   string
	Bullet   string
	Ellipsis string
	Gate     string
}

var unicodeSymbols = SymbolSet{
	Success:  "✓",
	Error:    "✗",
	Warning:  "⚠",
	Spinner:  "⏳",
	ArrowR:   "→",
	Bullet:   "•",
	Ellipsis: "…",
	Gate:     "⏸",
}

var asciiSymbols = SymbolSet{
	Success:  "[OK]",
	Error:    "[ERR]",
	Warning:  "[!]",
	Spinner:  "[...]",
	ArrowR:   "->",
	Bullet:   "*",
	Ellipsis: "...",
	Gate:     "[?]",
}

// DetectUnicodeSupport reports whether the terminal likely renders UTF-8.
// REPOSCRIBE_ASCII_SYMBOLS=1 forces ASCII.
func DetectUnicodeSupport() bool {
	if v := os.Getenv("REPOSCRIBE_ASCII_SYMBOLS"); v == "1" || strings.EqualFold(v, "true") {
		return false
	}
	for _, key := range []string{"LC_ALL", "LC_CTYPE", "LANG"} {
		val := strings.ToLower(os.Getenv(key))
		if val == "" {
			continue
		}
		return strings.Contains(val, "utf-8") || strings.Contains(val, "utf8")
	}
	return true
}

// InitSymbols sets the package-level Symbol* variables from the terminal
// capabilities. It runs at init and may be called again in tests.
func InitSymbols() {
	set := unicodeSymbols
	if !DetectUnicodeSupport() {
		set = asciiSymbols
	}
	SymbolSuccess = set.Success
	SymbolError = set.Error
	SymbolWarning = set.Warning
	SymbolSpinner = set.Spinner
	SymbolArrowR = set.ArrowR
	SymbolBullet = set.Bullet
	SymbolEllipsis = set.Ellipsis
	SymbolGate = set.Gate
}

func init() {
	InitSymbols()
}
