package reconciliation

import (
	"encoding/json"

	"github.com/tmc/langchaingo/prompts"
)

const lastLineHint = "Reply with the JSON object on the last line."

var (
	matchPrompt = newPrompt(`Match transactions to invoices using RAG. Analyze:
Transaction: {{.transaction}}
Context: {{.context}}
Candidate invoices: {{.candidates}}

Return JSON with:
- matched_invoice_id
- match_score (0-1)
- status: MATCHED/UNMATCHED
- justification
`+lastLineHint, "transaction", "context", "candidates")

	categorizePrompt = newPrompt(`Categorize transaction using Indian GL codes:
Transaction: {{.transaction}}

Return JSON with:
- category
- gl_code
- gst_rate
`+lastLineHint, "transaction")

	discrepancyPrompt = newPrompt(`Detect discrepancies in transaction:
Transaction: {{.transaction}}
Invoice: {{.invoice}}

Return JSON with:
- flags: list of issues
- justification
- severity: LOW/MEDIUM/HIGH
`+lastLineHint, "transaction", "invoice")

	reportPrompt = newPrompt(`Generate reconciliation report for:
{{.summary_data}}

Return JSON with:
- report_id
- timestamp
- summary
- pdf_url (dummy)
- status: APPROVED/REJECTED
`+lastLineHint, "summary_data")
)

func newPrompt(template string, vars ...string) prompts.PromptTemplate {
	return prompts.PromptTemplate{
		Template:       template,
		InputVariables: vars,
		TemplateFormat: prompts.TemplateFormatGoTemplate,
	}
}

// toJSON renders v for a prompt. Values that cannot be encoded render as {}.
func toJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
