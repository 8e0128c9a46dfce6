package lemma

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "lowercases and splits on punctuation",
			text: "Бюджетное Финансирование, срочно!",
			want: []string{"бюджетное", "финансирование", "срочно"},
		},
		{
			name: "drops short tokens",
			text: "и в на по контракт",
			want: []string{"контракт"},
		},
		{
			name: "drops pure digit runs",
			text: "договор 12345 от 2024",
			want: []string{"договор"},
		},
		{
			name: "keeps alphanumeric identifiers",
			text: "форма кнд1151001",
			want: []string{"форма", "кнд1151001"},
		},
		{
			name: "drops single repeated rune",
			text: "ааа письмо",
			want: []string{"письмо"},
		},
		{
			name: "empty input",
			text: "",
			want: []string{},
		},
		{
			name: "mixed latin and cyrillic",
			text: "System ЕИС: отчёт",
			want: []string{"system", "еис", "отчёт"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Tokenize(tt.text))
		})
	}
}
