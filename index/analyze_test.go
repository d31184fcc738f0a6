package index

import (
	"reflect"
	"testing"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "lowercases and trims punctuation",
			text: "Gradient Descent, converges!",
			want: []string{"gradient", "descent", "converges"},
		},
		{
			name: "removes stop words",
			text: "the rate of convergence is linear",
			want: []string{"rate", "convergence", "linear"},
		},
		{
			name: "empty input",
			text: "",
			want: []string{},
		},
		{
			name: "only stop words",
			text: "the a an of",
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokenize(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Tokenize(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestTermCounts(t *testing.T) {
	counts := TermCounts("gradient descent gradient")
	if counts["gradient"] != 2 {
		t.Errorf("Expected gradient count 2, got %d", counts["gradient"])
	}
	if counts["descent"] != 1 {
		t.Errorf("Expected descent count 1, got %d", counts["descent"])
	}
}
