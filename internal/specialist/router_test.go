package specialist

import "testing"

func TestDetectRoutesByKeywordDensity(t *testing.T) {
	cases := []struct {
		message string
		want    string
	}{
		{"I'm allergic and this caused a reaction on sensitive skin", SensitivityGuardian},
		{"Is this authentic or a counterfeit seller on Amazon", AuthenticityInvestigator},
		{"What's a cheap dupe alternative to save money", BudgetOptimizer},
		{"How should I order retinol and vitamin C in my evening routine", RoutineArchitect},
		{"Is the viral TikTok sunscreen hype worth it", TrendScout},
	}
	for _, tc := range cases {
		got, ok := Detect(tc.message)
		if !ok {
			t.Fatalf("Detect(%q): no specialist selected, want %s", tc.message, tc.want)
		}
		if got != tc.want {
			t.Fatalf("Detect(%q) = %s, want %s", tc.message, got, tc.want)
		}
	}
}

func TestDetectTieBreaksLexicographically(t *testing.T) {
	// Two hits each for ingredient_analyst (retinol, niacinamide) and
	// trend_scout (viral, tiktok); the smaller id must win.
	got, ok := Detect("Is the viral TikTok retinol and niacinamide combo safe")
	if !ok || got != IngredientAnalyst {
		t.Fatalf("Detect tie = %q ok=%v, want %s", got, ok, IngredientAnalyst)
	}
}

func TestDetectFallbackOnSingleSpecificKeyword(t *testing.T) {
	got, ok := Detect("best affordable products for oily acne-prone skin")
	if !ok || got != BudgetOptimizer {
		t.Fatalf("Detect fallback = %q ok=%v, want %s", got, ok, BudgetOptimizer)
	}
}

func TestDetectNoMatch(t *testing.T) {
	if got, ok := Detect("hello, how are you today"); ok {
		t.Fatalf("Detect matched %q on small talk, want none", got)
	}
	if got, ok := Detect(""); ok {
		t.Fatalf("Detect matched %q on empty message, want none", got)
	}
}

func TestDetectIsCaseInsensitive(t *testing.T) {
	got, ok := Detect("IS THIS A COUNTERFEIT SELLER?")
	if !ok || got != AuthenticityInvestigator {
		t.Fatalf("Detect uppercase = %q ok=%v, want %s", got, ok, AuthenticityInvestigator)
	}
}

func TestRegistryCoversAllSpecialists(t *testing.T) {
	all := All()
	if len(all) != 6 {
		t.Fatalf("All() returned %d profiles, want 6", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i-1].ID >= all[i].ID {
			t.Fatalf("All() not sorted: %s before %s", all[i-1].ID, all[i].ID)
		}
	}
	for _, p := range all {
		if p.Persona == "" || p.Extraction == "" || len(p.Keywords) == 0 {
			t.Fatalf("profile %s is incomplete", p.ID)
		}
		if !Valid(p.ID) {
			t.Fatalf("Valid(%s) = false", p.ID)
		}
	}
	if Valid("nutritionist") {
		t.Fatal("Valid accepted unknown specialist")
	}
}
