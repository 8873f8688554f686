package extracturl

import (
	"context"
	"testing"
)

func TestCandidatesFindsFauxURLShapedSubstrings(t *testing.T) {
	text := "See https://example.com/one-two-three for details, or http://example.com/bad for the rest."
	got := Candidates(text, "example.com")
	if len(got) != 1 {
		t.Fatalf("got %d candidates, want 1: %#v", len(got), got)
	}
	if got[0] != "https://example.com/one-two-three" {
		t.Errorf("candidate[0] = %q", got[0])
	}
}

func TestCandidatesDeduplicates(t *testing.T) {
	text := "https://example.com/one-two-three and again https://example.com/one-two-three."
	got := Candidates(text, "example.com")
	if len(got) != 1 {
		t.Fatalf("got %d candidates, want 1 (deduplicated): %#v", len(got), got)
	}
}

func TestExtractAcceptsURLsThatValidatePositive(t *testing.T) {
	text := "https://example.com/one-two-three and https://example.com/four-five-six"
	validate := func(ctx context.Context, url, criteria string) (bool, error) {
		return url == "https://example.com/one-two-three", nil
	}

	got, err := Extract(context.Background(), text, "example.com", "is relevant", 1, validate)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(got) != 1 || got[0] != "https://example.com/one-two-three" {
		t.Errorf("accepted = %#v", got)
	}
}

func TestExtractErrorsWithNoCandidates(t *testing.T) {
	_, err := Extract(context.Background(), "no urls here", "example.com", "x", 1, func(context.Context, string, string) (bool, error) { return true, nil })
	if err == nil {
		t.Fatal("expected an error when no candidates are found")
	}
}
