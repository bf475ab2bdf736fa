package identity

import "testing"

func TestKey(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"PRN001", "prn001"},
		{"  prn001  ", "prn001"},
		{"Jane Doe", "janedoe"},
		{"JANE  DOE", "janedoe"},
		{"Jane\tDoe\n", "janedoe"},
		{"Monday", "monday"},
		{"Jiří", "jiří"},
		{"Jir\u030ci\u0301", "ji\u0159\u00ed"}, // decomposed form folds to the composed one
		{"", ""},
		{"   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := Key(tt.input)
			if result != tt.expected {
				t.Errorf("Key(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestKey_Idempotent(t *testing.T) {
	for _, s := range []string{"Jane Doe", " A 1 ", "Dr. X"} {
		once := Key(s)
		if twice := Key(once); twice != once {
			t.Errorf("Key not idempotent for %q: %q then %q", s, once, twice)
		}
	}
}
