package guess

import "testing"

func TestEvaluate(t *testing.T) {
	cases := []struct {
		name    string
		word    string
		guess   string
		correct bool
		close   bool
	}{
		{"exact match", "elephant", "elephant", true, false},
		{"case and whitespace insensitive", "Elephant", "  elephant  ", true, false},
		{"empty guess", "elephant", "", false, false},
		{"one letter off", "elephant", "elephent", false, true},
		{"missing one letter", "elephant", "elephan", false, true},
		{"extra letter", "elephant", "elephantt", false, true},
		{"substring containment", "watermelon", "water", false, true},
		{"completely wrong", "elephant", "bicycle", false, false},
		{"short guess not close by containment", "elephant", "el", false, false},
		{"single substitution", "castle", "castke", false, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := Evaluate(tc.word, tc.guess)
			if v.Correct != tc.correct {
				t.Errorf("Correct = %v, want %v", v.Correct, tc.correct)
			}
			if v.Close != tc.close {
				t.Errorf("Close = %v, want %v", v.Close, tc.close)
			}
		})
	}
}

func TestEvaluateCorrectNeverAlsoClose(t *testing.T) {
	v := Evaluate("pizza", "pizza")
	if !v.Correct {
		t.Fatal("expected exact match to be correct")
	}
	if v.Close {
		t.Error("an exact match should not also report Close")
	}
}
