package theme

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectUnicodeSupport(t *testing.T) {
	tests := []struct {
		name  string
		ascii string
		lcAll string
		lang  string
		want  bool
	}{
		{"forced ascii", "1", "", "en_US.UTF-8", false},
		{"utf8 locale", "", "", "en_US.UTF-8", true},
		{"lc_all wins", "", "C", "en_US.UTF-8", false},
		{"nothing set", "", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("REPOSCRIBE_ASCII_SYMBOLS", tt.ascii)
			t.Setenv("LC_ALL", tt.lcAll)
			t.Setenv("LC_CTYPE", "")
			t.Setenv("LANG", tt.lang)
			assert.Equal(t, tt.want, DetectUnicodeSupport())
		})
	}
}

func TestInitSymbolsASCII(t *testing.T) {
	t.Setenv("REPOSCRIBE_ASCII_SYMBOLS", "true")
	InitSymbols()
	assert.Equal(t, "[OK]", SymbolSuccess)
	assert.Equal(t, "[?]", SymbolGate)

	t.Setenv("REPOSCRIBE_ASCII_SYMBOLS", "")
	InitSymbols()
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 5, Clamp(1, 5, 10))
	assert.Equal(t, 10, Clamp(11, 5, 10))
	assert.Equal(t, 7, Clamp(7, 5, 10))
}
