package moderation

import "testing"

func TestCheck_WholeWordHit(t *testing.T) {
	f := NewFilter()

	tests := []struct {
		name string
		text string
		hit  bool
	}{
		{"exact term", "đm", true},
		{"term with trailing word", "đm bạn", true},
		{"diacritics stripped variant", "dm bạn", true},
		{"uppercase variant", "ĐM bạn", true},
		{"mid sentence", "tôi nói đm hôm qua", true},
		{"punctuation boundary", "cái gì, đm!", true},
		{"multi-word term", "đồ óc chó", true},
		{"clean text", "hôm nay tôi thấy mệt", false},
		{"empty", "", false},
		{"whitespace only", "   \t\n", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := f.Check(tt.text)
			if result.Hit != tt.hit {
				t.Errorf("Check(%q).Hit = %v, want %v (matched %q)", tt.text, result.Hit, tt.hit, result.MatchedTerm)
			}
			if tt.hit && result.MatchedTerm == "" {
				t.Errorf("Check(%q) hit but MatchedTerm is empty", tt.text)
			}
		})
	}
}

func TestCheck_NoSubstringFalsePositive(t *testing.T) {
	f := NewFilter()

	// Terms embedded inside longer unrelated words must not match
	tests := []string{
		"admin đang trực",     // "dm" inside "admin"
		"tôi dùng vclock",     // "vcl" inside "vclock"
		"chúng ta cùng londa", // "lon" inside "londa"
	}

	for _, text := range tests {
		if result := f.Check(text); result.Hit {
			t.Errorf("Check(%q) unexpectedly hit on %q", text, result.MatchedTerm)
		}
	}
}

func TestCheck_ExtraTerms(t *testing.T) {
	f := NewFilter("tự tử")

	if result := f.Check("tôi muốn tự tử"); !result.Hit {
		t.Error("Expected hit on injected extra term")
	}
	if result := f.Check("tu tu xình xịch"); !result.Hit {
		// Diacritic variants of the extra term must also hit
		t.Error("Expected hit on diacritic-stripped variant of extra term")
	}
}

func TestCheck_MatchedTermIsDisplayForm(t *testing.T) {
	f := NewFilter()

	result := f.Check("dm bạn")
	if !result.Hit {
		t.Fatal("Expected hit")
	}
	if result.MatchedTerm != "đm" {
		t.Errorf("Expected display form 'đm', got %q", result.MatchedTerm)
	}
}

func TestCheck_NoSideEffects(t *testing.T) {
	f := NewFilter()

	// Repeated checks over the same filter must be stable
	for i := 0; i < 3; i++ {
		if result := f.Check("đm bạn"); !result.Hit {
			t.Fatalf("Check #%d lost the hit", i)
		}
		if result := f.Check("xin chào"); result.Hit {
			t.Fatalf("Check #%d produced a false hit", i)
		}
	}
}
