package decision

import (
	"context"
	"testing"
)

func TestForceOddRoundsEvenUp(t *testing.T) {
	cases := map[int]int{0: 1, 1: 1, 2: 3, 3: 3, 4: 5, -5: 1}
	for in, want := range cases {
		if got := ForceOdd(in); got != want {
			t.Errorf("ForceOdd(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestQuorumIsMajority(t *testing.T) {
	if got := Quorum(5); got != 3 {
		t.Errorf("Quorum(5) = %d, want 3", got)
	}
	if got := Quorum(1); got != 1 {
		t.Errorf("Quorum(1) = %d, want 1", got)
	}
}

func TestRunReachesQuorumOnRepeatedChoice(t *testing.T) {
	calls := 0
	runner := func(ctx context.Context, temp float64) (interface{}, int, bool, bool, error) {
		calls++
		return true, 0, false, false, nil
	}

	res, err := Run(context.Background(), Params{BestOfN: 5}, runner)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.WinnerVotes != 3 {
		t.Errorf("winner votes = %d, want 3 (quorum for best_of_n=5)", res.WinnerVotes)
	}
	if *res.WinnerIndex != 0 {
		t.Errorf("winner index = %d, want 0", *res.WinnerIndex)
	}
	if res.Confidence != 1.0 {
		t.Errorf("confidence = %v, want 1.0", res.Confidence)
	}
}

func TestRunTreatsDisallowedNoneAsFailedParse(t *testing.T) {
	calls := 0
	runner := func(ctx context.Context, temp float64) (interface{}, int, bool, bool, error) {
		calls++
		if calls <= 2 {
			return nil, 0, true, false, nil // None, disallowed
		}
		return true, 0, false, false, nil
	}

	res, err := Run(context.Background(), Params{BestOfN: 3, RetryLimit: 10, ResultCanBeNone: false}, runner)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.WinnerIsNone {
		t.Fatal("None should not have been accepted as a vote")
	}
	if res.WinnerVotes != 2 {
		t.Errorf("winner votes = %d, want 2 (quorum for best_of_n=3)", res.WinnerVotes)
	}
}

func TestRunAcceptsNoneWhenAllowed(t *testing.T) {
	runner := func(ctx context.Context, temp float64) (interface{}, int, bool, bool, error) {
		return nil, 0, true, false, nil
	}

	res, err := Run(context.Background(), Params{BestOfN: 3, ResultCanBeNone: true}, runner)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.WinnerIsNone {
		t.Fatal("expected a None decision")
	}
	if res.WinnerVotes != 2 {
		t.Errorf("winner votes = %d, want 2", res.WinnerVotes)
	}
}

func TestRunExhaustsRetriesOnRepeatedParseFailure(t *testing.T) {
	runner := func(ctx context.Context, temp float64) (interface{}, int, bool, bool, error) {
		return nil, 0, false, true, nil
	}

	if _, err := Run(context.Background(), Params{BestOfN: 3, RetryLimit: 2}, runner); err == nil {
		t.Fatal("expected RetriesExhausted")
	}
}

func TestRunDynamicTemperatureEscalatesTowardTMax(t *testing.T) {
	var seenTemps []float64
	calls := 0
	runner := func(ctx context.Context, temp float64) (interface{}, int, bool, bool, error) {
		seenTemps = append(seenTemps, temp)
		calls++
		// Alternate choices so quorum isn't reached immediately, forcing
		// several iterations of temperature escalation.
		return true, calls % 2, false, false, nil
	}

	_, err := Run(context.Background(), Params{BestOfN: 5, DynamicTemperature: true, RetryLimit: 1}, runner)
	// Choice 1 reaches the quorum of 3 on the fifth attempt, by which
	// point the schedule has raised the temperature to TMax.
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(seenTemps) == 0 {
		t.Fatal("expected at least one attempt")
	}
	if seenTemps[0] != TMin {
		t.Errorf("first attempt temperature = %v, want TMin", seenTemps[0])
	}
	if last := seenTemps[len(seenTemps)-1]; last != TMax {
		t.Errorf("last attempt temperature = %v, want TMax", last)
	}
}
