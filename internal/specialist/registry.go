// Package specialist holds the static table of advisor domain personas and
// the keyword-based routing that picks at most one of them per turn.
package specialist

import "sort"

// Specialist identifiers.
const (
	AuthenticityInvestigator = "authenticity_investigator"
	BudgetOptimizer          = "budget_optimizer"
	IngredientAnalyst        = "ingredient_analyst"
	RoutineArchitect         = "routine_architect"
	SensitivityGuardian      = "sensitivity_guardian"
	TrendScout               = "trend_scout"
)

// Profile describes one domain specialist: the persona block appended to the
// system prompt when active, the trigger vocabulary that routes to it, and
// the instruction used to mine structured insights from its exchanges.
type Profile struct {
	ID         string
	Name       string
	Persona    string
	Keywords   []string
	Extraction string
}

var profiles = map[string]Profile{
	IngredientAnalyst: {
		ID:   IngredientAnalyst,
		Name: "Ingredient Analyst",
		Persona: `You are operating as the Ingredient Analyst. Go deep on formulation science:
explain what each ingredient does, its evidence level, typical effective
concentrations, and how it interacts with the rest of the user's routine.
Call out comedogenic ratings when relevant to the user's skin type. When a
product is mentioned, analyse its INCI list before giving an opinion. Prefer
mechanisms over marketing claims.`,
		Keywords: []string{
			"ingredient", "retinol", "retinoid", "niacinamide", "vitamin c",
			"hyaluronic", "salicylic", "glycolic", "lactic acid", "ceramide",
			"peptide", "formulation", "concentration", "percentage",
			"comedogenic", "exfoliant", "acne", "actives",
		},
		Extraction: `Extract the ingredients discussed in this exchange. Return a single JSON
object with keys: "ingredients" (array of {"name", "purpose", "caution"}),
"products_mentioned" (array of strings), "user_concern" (string).`,
	},
	RoutineArchitect: {
		ID:   RoutineArchitect,
		Name: "Routine Architect",
		Persona: `You are operating as the Routine Architect. Design and critique full
routines: correct ordering (thinnest to thickest, actives before occlusives),
AM vs PM placement, frequency ramp-ups for strong actives, and conflicts
(e.g. retinoids with AHAs on the same night). Always work from the user's
current routine when one is on file, and propose the smallest change that
fixes the problem.`,
		Keywords: []string{
			"routine", "order", "layer", "layering", "morning", "evening",
			"am routine", "pm routine", "steps", "combine", "together",
			"conflict", "frequency", "how often", "before or after",
		},
		Extraction: `Extract routine guidance from this exchange. Return a single JSON object
with keys: "routine_changes" (array of {"step", "product_or_ingredient",
"time_of_day"}), "conflicts_flagged" (array of strings), "user_concern"
(string).`,
	},
	AuthenticityInvestigator: {
		ID:   AuthenticityInvestigator,
		Name: "Authenticity Investigator",
		Persona: `You are operating as the Authenticity Investigator. Help the user judge
whether a product or seller is legitimate: batch codes, packaging details,
price-too-good-to-be-true signals, authorised-retailer lists, and gray-market
risks. Never accuse a specific seller of fraud; lay out the evidence and let
the user decide. Recommend buying from brand-authorised retailers.`,
		Keywords: []string{
			"authentic", "counterfeit", "fake", "seller", "amazon", "ebay",
			"legit", "genuine", "knockoff", "gray market", "expired",
			"batch code", "packaging", "third-party", "marketplace",
		},
		Extraction: `Extract authenticity findings from this exchange. Return a single JSON
object with keys: "product" (string), "risk_signals" (array of strings),
"recommended_channels" (array of strings).`,
	},
	TrendScout: {
		ID:   TrendScout,
		Name: "Trend Scout",
		Persona: `You are operating as the Trend Scout. Situate the user's question in what
is currently gaining or losing traction: viral ingredients, K-beauty
imports, new launches, and which trends have evidence behind them versus
pure hype. Use the trend signals in your context block when present, and be
explicit about whether a trend is emerging, established, or fading.`,
		Keywords: []string{
			"trend", "trending", "viral", "tiktok", "instagram", "new product",
			"launch", "popular", "hype", "k-beauty", "everyone", "latest",
		},
		Extraction: `Extract trend observations from this exchange. Return a single JSON object
with keys: "topics" (array of {"topic", "status"}), "user_interest"
(string).`,
	},
	BudgetOptimizer: {
		ID:   BudgetOptimizer,
		Name: "Budget Optimizer",
		Persona: `You are operating as the Budget Optimizer. Find the cheapest route to the
same active ingredients: drugstore dupes, price-per-use comparisons, and
where spending more genuinely buys better formulation versus packaging.
Respect the user's budget tier when one is on file. Always name the active
that makes a dupe equivalent, not just the product.`,
		Keywords: []string{
			"cheap", "cheaper", "dupe", "alternative", "save", "money",
			"budget", "affordable", "drugstore", "expensive", "worth it",
			"value", "price", "cost",
		},
		Extraction: `Extract budget guidance from this exchange. Return a single JSON object
with keys: "dupes" (array of {"original", "alternative", "shared_active"}),
"budget_tier" (string), "user_concern" (string).`,
	},
	SensitivityGuardian: {
		ID:   SensitivityGuardian,
		Name: "Sensitivity Guardian",
		Persona: `You are operating as the Sensitivity Guardian. Treat every recommendation
through the lens of reactive skin: check the user's allergy list first,
flag common irritants (fragrance, essential oils, high-percentage actives),
insist on patch testing anything new, and prefer minimal ingredient lists.
If the user describes a reaction in progress, advise stopping all actives
and seeing a professional if it persists; do not diagnose.`,
		Keywords: []string{
			"allergic", "allergy", "reaction", "sensitive", "irritation",
			"irritated", "redness", "burning", "stinging", "itchy", "eczema",
			"rosacea", "patch test", "fragrance", "gentle", "breakout",
		},
		Extraction: `Extract sensitivity findings from this exchange. Return a single JSON
object with keys: "reactions" (array of {"trigger", "symptom"}),
"avoid_list" (array of strings), "safe_alternatives" (array of strings).`,
	},
}

var orderedIDs []string

func init() {
	orderedIDs = make([]string, 0, len(profiles))
	for id := range profiles {
		orderedIDs = append(orderedIDs, id)
	}
	// Scan order is part of the routing contract: ties and the long-keyword
	// fallback resolve to the lexicographically smallest specialist id.
	sort.Strings(orderedIDs)
}

// All returns every profile in lexicographic id order.
func All() []Profile {
	out := make([]Profile, 0, len(orderedIDs))
	for _, id := range orderedIDs {
		out = append(out, profiles[id])
	}
	return out
}

// Get returns the profile for an id.
func Get(id string) (Profile, bool) {
	p, ok := profiles[id]
	return p, ok
}

// Valid reports whether id names a registered specialist.
func Valid(id string) bool {
	_, ok := profiles[id]
	return ok
}
