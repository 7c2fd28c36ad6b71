package retrieval

import "strings"

// buildQuery forms the primary query text. Short or anaphoric messages lean
// on the previous user turn for missing context ("how much is it?" after
// "tell me about the pro plan").
func buildQuery(message string, history []Turn) string {
	message = strings.TrimSpace(message)
	prior := lastUserTurn(history)
	if prior == "" || !dependsOnPriorTurn(message) {
		return message
	}
	return prior + "\n" + message
}

func lastUserTurn(history []Turn) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == RoleUser {
			return strings.TrimSpace(history[i].Content)
		}
	}
	return ""
}

// anaphoricCues are words that refer back to something said earlier.
var anaphoricCues = map[string]struct{}{
	"it": {}, "that": {}, "this": {}, "those": {}, "these": {},
	"them": {}, "they": {}, "its": {}, "there": {}, "one": {},
}

func dependsOnPriorTurn(message string) bool {
	words := strings.Fields(strings.ToLower(message))
	if len(words) == 0 {
		return false
	}
	if len(words) <= 3 {
		return true
	}
	lowered := strings.ToLower(message)
	if strings.HasPrefix(lowered, "what about") || strings.HasPrefix(lowered, "how about") ||
		strings.HasPrefix(lowered, "and ") || strings.HasPrefix(lowered, "but ") {
		return true
	}
	for _, w := range words {
		if _, ok := anaphoricCues[strings.Trim(w, ".,!?;:'\"")]; ok {
			return true
		}
	}
	return false
}

// stopwords for the keyword-only fallback query.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "is": {}, "are": {}, "was": {}, "were": {},
	"be": {}, "been": {}, "am": {}, "do": {}, "does": {}, "did": {}, "can": {},
	"could": {}, "would": {}, "should": {}, "will": {}, "shall": {}, "may": {},
	"i": {}, "you": {}, "we": {}, "he": {}, "she": {}, "it": {}, "they": {},
	"me": {}, "my": {}, "your": {}, "our": {}, "us": {},
	"what": {}, "which": {}, "who": {}, "whom": {}, "where": {}, "when": {},
	"why": {}, "how": {}, "about": {}, "please": {}, "tell": {}, "know": {},
	"of": {}, "to": {}, "in": {}, "on": {}, "at": {}, "by": {}, "for": {},
	"with": {}, "and": {}, "or": {}, "but": {}, "not": {}, "no": {}, "so": {},
	"if": {}, "then": {}, "than": {}, "too": {}, "very": {}, "just": {},
	"have": {}, "has": {}, "had": {}, "get": {}, "got": {}, "want": {},
	"need": {}, "like": {}, "there": {}, "here": {}, "any": {}, "some": {},
}

// stripStopwords reduces the message to its content words, preserving order.
// Returns "" when nothing substantive remains.
func stripStopwords(message string) string {
	var kept []string
	for _, w := range strings.Fields(strings.ToLower(message)) {
		w = strings.Trim(w, ".,!?;:'\"()")
		if w == "" {
			continue
		}
		if _, ok := stopwords[w]; ok {
			continue
		}
		kept = append(kept, w)
	}
	return strings.Join(kept, " ")
}

// topicCluster maps trigger words in a message to canonical query variants
// for the same topic, compensating for sparse corpora where the user's
// phrasing lands far from any chunk.
type topicCluster struct {
	triggers []string
	variants []string
}

var topicClusters = []topicCluster{
	{
		triggers: []string{"price", "pricing", "cost", "costs", "how much", "expensive", "plan", "plans", "tier"},
		variants: []string{"pricing plans and costs", "subscription price and payment options"},
	},
	{
		triggers: []string{"refund", "refunds", "return", "returns", "money back", "exchange"},
		variants: []string{"refund and return policy", "how to return a product for a refund"},
	},
	{
		triggers: []string{"shipping", "delivery", "deliver", "ship", "track", "tracking"},
		variants: []string{"shipping and delivery times", "order tracking and delivery status"},
	},
	{
		triggers: []string{"account", "login", "log in", "password", "sign in", "signin", "register"},
		variants: []string{"account login and password help", "creating and managing an account"},
	},
	{
		triggers: []string{"contact", "support", "help", "human", "agent", "phone", "email"},
		variants: []string{"how to contact customer support", "support contact details and channels"},
	},
	{
		triggers: []string{"hours", "open", "closed", "schedule", "weekend", "holiday"},
		variants: []string{"business hours and availability"},
	},
	{
		triggers: []string{"cancel", "cancellation", "unsubscribe", "terminate"},
		variants: []string{"how to cancel a subscription or order"},
	},
	{
		triggers: []string{"payment", "pay", "billing", "invoice", "card", "charge"},
		variants: []string{"payment methods and billing", "invoices and charges"},
	},
}

// topicVariants returns the canonical queries for every cluster the message
// touches, in table order, without duplicates.
func topicVariants(message string) []string {
	lowered := strings.ToLower(message)
	seen := make(map[string]struct{})
	var variants []string
	for _, cluster := range topicClusters {
		for _, trigger := range cluster.triggers {
			if !containsWord(lowered, trigger) {
				continue
			}
			for _, v := range cluster.variants {
				if _, ok := seen[v]; ok {
					continue
				}
				seen[v] = struct{}{}
				variants = append(variants, v)
			}
			break
		}
	}
	return variants
}

// containsWord matches a trigger at word boundaries; multi-word triggers
// match as substrings.
func containsWord(text, trigger string) bool {
	if strings.Contains(trigger, " ") {
		return strings.Contains(text, trigger)
	}
	for _, w := range strings.Fields(text) {
		if strings.Trim(w, ".,!?;:'\"()") == trigger {
			return true
		}
	}
	return false
}
