// Package reportllm builds the grounded prompt bundle handed to the external
// LLM report writer. The bundle is the sole interface to that collaborator:
// this package never calls a model, and nothing downstream of it parses or
// trusts the model's response.
package reportllm

import (
	"fmt"
	"strings"

	"github.com/nadlantech/appraisal-engine/internal/application/reporting"
)

// Fact-table line prefixes. Every grounded fact in the user prompt carries
// exactly one of these so the model can cite source ids per section.
const (
	prefixProperty   = "PROPERTY|"
	prefixComparable = "COMP|"
	prefixDocument   = "DOC|"
	prefixImage      = "IMG|"
)

// Message is a single chat-style prompt message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// PromptBundle is the fully assembled prompt for one report generation call.
// It is submitted verbatim; the response is expected to conform to JSONSchema.
type PromptBundle struct {
	SystemPrompt    string         `json:"systemPrompt"`
	UserPrompt      string         `json:"userPrompt"`
	Messages        []Message      `json:"messages"`
	JSONSchema      map[string]any `json:"jsonSchema"`
	EstimatedTokens int            `json:"estimatedTokens"`
}

// systemPrompts holds the fixed guardrail text per report language. The
// guardrails are a product/legal requirement: the model must never invent
// facts, must flag missing data in the report's language, must cite source
// ids per section, and must answer in schema-conforming JSON.
var systemPrompts = map[reporting.Language]string{
	reporting.LanguageEnglish: `You are a licensed real-estate appraiser writing a formal appraisal report.

Strict rules:
1. Use ONLY the facts provided in the fact table. Never invent, estimate, or extrapolate values that are not present in the input.
2. When data needed for a section is absent, write exactly: "missing verified data".
3. Every section must cite the source ids (PROPERTY/COMP/DOC/IMG lines) it is grounded on.
4. The valuation is a range, not a point estimate; never present the mid value alone.
5. Output a single JSON object conforming exactly to the provided JSON schema. No prose outside the JSON.`,
	reporting.LanguageHebrew: `אתה שמאי מקרקעין מוסמך הכותב דוח שומה רשמי.

כללים מחייבים:
1. השתמש אך ורק בעובדות המופיעות בטבלת העובדות. לעולם אל תמציא, תעריך או תשלים ערכים שאינם בקלט.
2. כאשר חסר מידע הנדרש לסעיף, כתוב בדיוק: "חסרים נתונים מאומתים".
3. כל סעיף חייב לצטט את מזהי המקור (שורות PROPERTY/COMP/DOC/IMG) שעליהם הוא מבוסס.
4. השומה היא טווח, לא אומדן נקודתי; לעולם אל תציג את הערך המרכזי לבדו.
5. הפלט הוא אובייקט JSON יחיד התואם במדויק לסכמה המצורפת. ללא טקסט מחוץ ל-JSON.`,
}

// BuildGroundedPromptBundle validates the report input and assembles the
// system prompt, the user prompt with its flattened fact table, and the JSON
// schema the model's output must conform to.
func BuildGroundedPromptBundle(in reporting.Input) (PromptBundle, error) {
	if err := in.Validate(); err != nil {
		return PromptBundle{}, err
	}

	systemPrompt := systemPrompts[in.Template.Language]
	userPrompt := buildUserPrompt(in)

	return PromptBundle{
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt,
		Messages: []Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		JSONSchema:      outputSchema(in.Template),
		EstimatedTokens: estimateTokens(systemPrompt) + estimateTokens(userPrompt),
	}, nil
}

func buildUserPrompt(in reporting.Input) string {
	var b strings.Builder

	b.WriteString("## Report Request\n")
	b.WriteString(fmt.Sprintf("Template: %s\n", in.Template.TemplateID))
	b.WriteString(fmt.Sprintf("Language: %s\n", in.Template.Language))
	if in.Template.Tone != "" {
		b.WriteString(fmt.Sprintf("Tone: %s\n", in.Template.Tone))
	}
	b.WriteString(fmt.Sprintf("Mandatory sections: %s\n", strings.Join(in.Template.MandatorySections, ", ")))
	if len(in.Template.OptionalSections) > 0 {
		b.WriteString(fmt.Sprintf("Optional sections: %s\n", strings.Join(in.Template.OptionalSections, ", ")))
	}

	b.WriteString("\n## Valuation\n")
	b.WriteString(fmt.Sprintf("Range: low=%.0f mid=%.0f high=%.0f\n", in.Range.Low, in.Range.Mid, in.Range.High))
	b.WriteString(fmt.Sprintf("Confidence: %d/100\n", in.Confidence))

	b.WriteString("\n## Fact Table\n")
	b.WriteString(propertyLine(in.Property))
	for _, c := range in.Comparables {
		b.WriteString(comparableLine(c))
	}
	for _, d := range in.DocumentFacts {
		b.WriteString(documentLine(d))
	}
	for _, ev := range in.ImageEvidence {
		b.WriteString(imageLine(ev))
	}

	return strings.TrimSpace(b.String())
}

func propertyLine(p reporting.StructuredProperty) string {
	return fmt.Sprintf("%s%s|%s, %s|type=%s|size=%.0fm2|floor=%d|age=%d|condition=%.1f|renovation=%s\n",
		prefixProperty, p.ID, p.Address, p.City, p.Type, p.SizeSqm, p.Floor, p.BuildingAge, p.Condition, p.Renovation)
}

func comparableLine(c reporting.ComparableReportItem) string {
	return fmt.Sprintf("%s%s|%s|similarity=%.1f%%|distance=%.0fm|salePrice=%.0f|adjustedPrice=%.0f|totalAdjustment=%+.1f%%\n",
		prefixComparable, c.ID, c.Address, c.Similarity*100, c.DistanceMeters, c.SalePrice, c.AdjustedPrice, c.TotalPercent*100)
}

func documentLine(d reporting.DocumentFact) string {
	conflicts := "none"
	if len(d.ConflictWith) > 0 {
		conflicts = strings.Join(d.ConflictWith, ",")
	}
	return fmt.Sprintf("%s%s|source=%s|type=%s|confidence=%.2f|conflicts=%s|%s\n",
		prefixDocument, d.ID, d.SourceDocumentID, d.SourceType, d.Confidence, conflicts, d.Statement)
}

func imageLine(ev reporting.ImageEvidence) string {
	issues := "none"
	if len(ev.DetectedIssues) > 0 {
		issues = strings.Join(ev.DetectedIssues, ",")
	}
	return fmt.Sprintf("%s%s|image=%s|conditionScore=%.1f|renovation=%s|issues=%s|confidence=%.2f\n",
		prefixImage, ev.ID, ev.ImageID, ev.ConditionScore, ev.RenovationLevel, issues, ev.Confidence)
}

// outputSchema is the fixed shape the model's JSON answer must conform to:
// the report sections in template order, each grounded on cited source ids.
func outputSchema(tpl reporting.TemplateConfig) map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"language": map[string]any{
				"type": "string",
				"enum": []string{string(reporting.LanguageHebrew), string(reporting.LanguageEnglish)},
			},
			"sections": map[string]any{
				"type":     "array",
				"minItems": len(tpl.MandatorySections),
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"id":       map[string]any{"type": "string"},
						"title":    map[string]any{"type": "string"},
						"markdown": map[string]any{"type": "string"},
						"sourceIds": map[string]any{
							"type":  "array",
							"items": map[string]any{"type": "string"},
						},
					},
					"required": []string{"id", "title", "markdown", "sourceIds"},
				},
			},
		},
		"required": []string{"language", "sections"},
	}
}

// estimateTokens gives a rough size estimate at ~4 characters per token;
// callers use it only for logging and budget checks, never for truncation.
func estimateTokens(text string) int {
	if text == "" {
		return 0
	}
	n := len([]rune(text)) / 4
	if n < 1 {
		return 1
	}
	return n
}
