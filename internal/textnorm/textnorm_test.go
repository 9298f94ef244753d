package textnorm

import (
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"blank", "   \t\n ", ""},
		{"accents", "Câmera Fotográfica", "camera fotografica"},
		{"punctuation", "Mouse, óptico (USB)!", "mouse optico usb"},
		{"code", "MOUS-001", "mous 001"},
		{"collapse", "  Notebook    Dell\tLatitude ", "notebook dell latitude"},
		{"cedilla", "Ação", "acao"},
		{"non latin", "ñandú Ærø", "nandu r"},
		{"digits", "SSD 512GB", "ssd 512gb"},
		{"only symbols", "--//**", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	faker := gofakeit.New(42)
	inputs := []string{"Cadeira Giratória", "ÀÉÎÕÜ çñ", "İstanbul", "áb̧"}
	for i := 0; i < 200; i++ {
		inputs = append(inputs,
			faker.ProductName(),
			faker.Sentence(6),
			faker.LetterN(12)+" "+faker.DigitN(4),
			faker.Emoji()+faker.Word(),
		)
	}

	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "input %q", in)
		assert.Regexp(t, `^([a-z0-9]+( [a-z0-9]+)*)?$`, once, "input %q", in)
	}
}

func TestTerms(t *testing.T) {
	assert.Equal(t, []string{"dell", "notebook"}, Terms("  Dell   Notebook "))
	assert.Empty(t, Terms("!!!"))
}

func TestContains(t *testing.T) {
	assert.True(t, Contains("Notebook Dell", "DELL"))
	assert.True(t, Contains("Câmera", "camera"))
	assert.True(t, Contains("anything", ""))
	assert.False(t, Contains("Mouse", "teclado"))
}
