package orchestrator

import (
	"regexp"
	"strings"

	"sysdesk/internal/evidence"
)

var numericTokenRe = regexp.MustCompile(`\d[\d,.]*%?`)
var quotedTokenRe = regexp.MustCompile(`"([^"]+)"`)

// checkInvention implements spec.md §4.8's post-hoc invention check: every
// numeric literal and quoted identifier in the answer must appear verbatim
// somewhere in the evidence bundle's captured stdout. It is never trusted to
// the LLM; the pipeline runs it unconditionally after every terminal answer.
func checkInvention(answer string, bundle *evidence.Bundle) (noInvention bool, unsupported []string, totalClaims, verifiedClaims int) {
	// Case-fold both sides before comparing (spec.md §8.1): an identifier
	// the answer capitalizes differently from the probe's raw stdout (e.g.
	// a service name) is still grounded, not invented.
	corpus := strings.ToLower(evidenceCorpus(bundle))

	tokens := extractClaimTokens(answer)
	totalClaims = len(tokens)
	for _, tok := range tokens {
		if strings.Contains(corpus, strings.ToLower(tok)) {
			verifiedClaims++
		} else {
			unsupported = append(unsupported, tok)
		}
	}
	return len(unsupported) == 0, unsupported, totalClaims, verifiedClaims
}

func extractClaimTokens(answer string) []string {
	var tokens []string
	for _, m := range numericTokenRe.FindAllString(answer, -1) {
		tokens = append(tokens, m)
	}
	for _, m := range quotedTokenRe.FindAllStringSubmatch(answer, -1) {
		tokens = append(tokens, m[1])
	}
	return tokens
}

func evidenceCorpus(bundle *evidence.Bundle) string {
	var b strings.Builder
	for _, e := range bundle.Entries() {
		b.WriteString(e.Stdout)
		b.WriteString("\n")
	}
	return b.String()
}
