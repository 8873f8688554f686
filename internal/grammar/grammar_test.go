package grammar

import "testing"

func TestBooleanParse(t *testing.T) {
	b := Boolean{}
	v, err := b.Parse("true")
	if err != nil || v != true {
		t.Fatalf("Parse(true) = %v, %v", v, err)
	}
	idx, err := b.ResultIndex("false")
	if err != nil || idx != 1 {
		t.Fatalf("ResultIndex(false) = %d, %v", idx, err)
	}
	if _, err := b.Parse("maybe"); err == nil {
		t.Fatal("expected error for non-boolean text")
	}
}

func TestIntegerBoundedRejectsOverBound(t *testing.T) {
	p := IntegerBounded{Max: 42}
	v, err := p.Parse("42")
	if err != nil || v != uint32(42) {
		t.Fatalf("Parse(42) = %v, %v", v, err)
	}
	if _, err := p.Parse("43"); err == nil {
		t.Fatal("expected error exceeding bound")
	}
}

func TestIntegerBoundedPanicsOnBadConstruction(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for Max > 99")
		}
	}()
	IntegerBounded{Max: 100}.Parse("5")
}

func TestExactStringResultIndex(t *testing.T) {
	p := ExactString{Literals: []string{"red", "green", "blue"}}
	idx, err := p.ResultIndex("green")
	if err != nil || idx != 1 {
		t.Fatalf("ResultIndex(green) = %d, %v", idx, err)
	}
	if _, err := p.ResultIndex("purple"); err == nil {
		t.Fatal("expected error for unlisted literal")
	}
}

func TestSentencesEnforcesCountAndForbidden(t *testing.T) {
	p := Sentences{Min: 1, Max: 2, ForbiddenWords: []string{"banned"}}
	if _, err := p.Parse("One sentence only."); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := p.Parse("One. Two. Three."); err == nil {
		t.Fatal("expected error for too many sentences")
	}
	if _, err := p.Parse("This is banned content."); err == nil {
		t.Fatal("expected error for forbidden word")
	}
}

func TestWordsEnforcesCount(t *testing.T) {
	p := Words{Min: 2, Max: 3, Concatenator: " "}
	if _, err := p.Parse("hello world"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := p.Parse("one"); err == nil {
		t.Fatal("expected error for too few words")
	}
}

func TestFauxURLValidatesShape(t *testing.T) {
	p := FauxURL{Host: "example.com"}
	if _, err := p.Parse("https://example.com/alpha-beta-gamma"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := p.Parse("ftp://example.com/alpha-beta-gamma"); err == nil {
		t.Fatal("expected error for disallowed scheme")
	}
	if _, err := p.Parse("https://example.com/only-one"); err == nil {
		t.Fatal("expected error for too few slug segments")
	}
	if _, err := p.Parse("https://example.com/Alpha-beta-gamma"); err == nil {
		t.Fatal("expected error for uppercase slug character")
	}
}

func TestNoneAndCustomPassThrough(t *testing.T) {
	v, _ := None{}.Parse("anything goes")
	if v != "anything goes" {
		t.Fatalf("None.Parse = %v", v)
	}
	c := Custom{GrammarString: "root ::= \"x\""}
	if c.Grammar() != "root ::= \"x\"" {
		t.Fatalf("Custom.Grammar() = %q", c.Grammar())
	}
}
