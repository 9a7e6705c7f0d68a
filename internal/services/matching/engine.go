package matching

import (
	"math"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"agentic-reconciliation-backend/internal/models"
)

// Candidate is an invoice scored against one transaction. Scores are 0-100.
type Candidate struct {
	Invoice        *models.Invoice `json:"invoice"`
	NameScore      float64         `json:"name_score"`
	DateScore      float64         `json:"date_score"`
	AmbiguityScore float64         `json:"ambiguity_score"`
	FinalScore     float64         `json:"final_score"`
}

// RankCandidates scores every open invoice against tx and returns them best
// first. Paid invoices are skipped. The amount filter is the caller's job.
func RankCandidates(tx *models.Transaction, invoices []models.Invoice) []Candidate {
	var open []*models.Invoice
	for i := range invoices {
		if invoices[i].IsOpen() {
			open = append(open, &invoices[i])
		}
	}
	if len(open) == 0 {
		return nil
	}

	// Ambiguity penalty if multiple invoices
	ambiguityScore := 100.0
	if len(open) > 1 {
		ambiguityScore = 80.0
	}

	desc := tx.Description()
	candidates := make([]Candidate, 0, len(open))
	for _, inv := range open {
		c := Candidate{
			Invoice:        inv,
			NameScore:      computeNameSimilarity(desc, inv.CustomerName),
			DateScore:      computeDateScore(tx.TransactionDate, inv.DueDate),
			AmbiguityScore: ambiguityScore,
		}
		c.FinalScore = math.Min(0.6*c.NameScore+0.3*c.DateScore+0.1*c.AmbiguityScore, 100)
		candidates = append(candidates, c)
	}

	slices.SortStableFunc(candidates, func(a, b Candidate) int {
		switch {
		case a.FinalScore > b.FinalScore:
			return -1
		case a.FinalScore < b.FinalScore:
			return 1
		default:
			return 0
		}
	})
	return candidates
}

// computeNameSimilarity averages, over the invoice name tokens, the best
// levenshtein similarity against any description token.
func computeNameSimilarity(bankDesc, invoiceName string) float64 {
	bTokens := strings.Fields(normalizeName(bankDesc))
	iTokens := strings.Fields(normalizeName(invoiceName))

	if len(iTokens) == 0 || len(bTokens) == 0 {
		return 0
	}

	totalScore := 0.0
	for _, invTok := range iTokens {
		best := 0.0
		for _, bankTok := range bTokens {
			dist := levenshtein(invTok, bankTok)
			maxLen := math.Max(float64(utf8.RuneCountInString(invTok)), float64(utf8.RuneCountInString(bankTok)))
			sim := 1 - float64(dist)/maxLen
			if sim > best {
				best = sim
			}
		}
		totalScore += best
	}

	return (totalScore / float64(len(iTokens))) * 100
}

func normalizeName(s string) string {
	s = strings.ToUpper(s)
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, "-", " ")
	return strings.TrimSpace(s)
}

// computeDateScore is neutral (50) when either date is unknown.
func computeDateScore(txDate, dueDate *time.Time) float64 {
	if txDate == nil || dueDate == nil {
		return 50
	}
	days := math.Abs(txDate.Sub(*dueDate).Hours() / 24)

	switch {
	case days <= 3:
		return 100
	case days <= 7:
		return 80
	case days <= 15:
		return 60
	case days <= 30:
		return 40
	default:
		return 20
	}
}

// levenshtein counts rune edits, so a multi-byte letter is one edit.
func levenshtein(s, t string) int {
	if s == t {
		return 0
	}
	a, b := []rune(s), []rune(t)
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	dp := make([][]int, len(a)+1)
	for i := range dp {
		dp[i] = make([]int, len(b)+1)
	}
	for i := 0; i <= len(a); i++ {
		dp[i][0] = i
	}
	for j := 0; j <= len(b); j++ {
		dp[0][j] = j
	}

	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			cost := 0
			if a[i-1] != b[j-1] {
				cost = 1
			}
			dp[i][j] = min(
				dp[i-1][j]+1,
				dp[i][j-1]+1,
				dp[i-1][j-1]+cost,
			)
		}
	}
	return dp[len(a)][len(b)]
}
