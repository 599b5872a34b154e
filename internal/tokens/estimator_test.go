package tokens

import "testing"

func TestFallbackCount(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"abc", 0},
		{"abcd", 1},
		{"• a post about Go generics\n", 7},
	}
	for _, tt := range tests {
		if got := Fallback().Count(tt.text); got != tt.want {
			t.Errorf("Fallback().Count(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}

	var nilEstimator *Estimator
	if got := nilEstimator.Count("abcdefgh"); got != 2 {
		t.Errorf("nil estimator Count = %d, want 2", got)
	}
}

func TestFitsContext(t *testing.T) {
	tests := []struct {
		name                string
		prompt, out, window int
		want                bool
	}{
		{"unknown window", 1_000_000, 1000, 0, true},
		{"fits", 1000, 1000, 8192, true},
		{"margin pushes over", 6000, 1000, 8000, false},
		{"exact", 1000, 800, 2000, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FitsContext(tt.prompt, tt.out, tt.window); got != tt.want {
				t.Errorf("FitsContext(%d, %d, %d) = %v, want %v", tt.prompt, tt.out, tt.window, got, tt.want)
			}
		})
	}
}
