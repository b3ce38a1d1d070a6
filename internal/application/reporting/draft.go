package reporting

import (
	"fmt"
	"strings"
	"time"

	"github.com/nadlantech/appraisal-engine/pkg/types/common"
)

// Fixed section ids of the deterministic draft.
const (
	SectionValuationConclusion = "valuation-conclusion"
	SectionComparablesAnalysis = "comparables-analysis"
	SectionLegalRisks          = "legal-risks"
	SectionConditionEvidence   = "condition-evidence"
)

const (
	maxComparableLines = 10
	maxEvidenceLines   = 8
)

// Section is one generated report section with the source ids that ground
// its content.
type Section struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	Markdown        string   `json:"markdown"`
	GroundedFactIDs []string `json:"groundedFactIds,omitempty"`
}

// Report is a generated appraisal report: ordered sections, the consistency
// findings computed from the same input, and the derived approval flag.
type Report struct {
	ID                    string             `json:"id"`
	Version               int                `json:"version"`
	CreatedAt             common.Timestamp   `json:"createdAt"`
	Language              Language           `json:"language"`
	Sections              []Section          `json:"sections"`
	Validations           []ValidationResult `json:"validations"`
	ReadyForFinalApproval bool               `json:"readyForFinalApproval"`
}

// draftLocale holds the localized strings of one report language.
type draftLocale struct {
	conclusionTitle  string
	conclusionBody   string
	comparablesTitle string
	comparableLine   string
	legalTitle       string
	conflictLine     string
	noConflicts      string
	conditionTitle   string
	evidenceLine     string
	noEvidence       string
}

var draftStrings = map[Language]draftLocale{
	LanguageEnglish: {
		conclusionTitle:  "Valuation Conclusion",
		conclusionBody:   "The estimated value range is %.0f to %.0f, with a central estimate of %.0f. Confidence: %d/100. The result is a value range, not a point estimate.",
		comparablesTitle: "Comparables Analysis",
		comparableLine:   "- %s: similarity %.1f%%, adjusted price %.0f",
		legalTitle:       "Legal Risks",
		conflictLine:     "- Document %s: \"%s\" conflicts with %d other recorded fact(s) and requires human review.",
		noConflicts:      "No conflicts were found between the reviewed documents.",
		conditionTitle:   "Condition Evidence",
		evidenceLine:     "- Image %s: condition score %.1f, renovation level %s%s",
		noEvidence:       "No photographic condition evidence was provided.",
	},
	LanguageHebrew: {
		conclusionTitle:  "מסקנת השומה",
		conclusionBody:   "טווח השווי המוערך הוא %.0f עד %.0f, עם אומדן מרכזי של %.0f. רמת ביטחון: %d/100. התוצאה היא טווח שווי, לא אומדן נקודתי.",
		comparablesTitle: "ניתוח עסקאות השוואה",
		comparableLine:   "- %s: דמיון %.1f%%, מחיר מתואם %.0f",
		legalTitle:       "סיכונים משפטיים",
		conflictLine:     "- מסמך %s: \"%s\" סותר %d עובדות מתועדות אחרות ומחייב בדיקה אנושית.",
		noConflicts:      "לא נמצאו סתירות בין המסמכים שנבדקו.",
		conditionTitle:   "ראיות מצב פיזי",
		evidenceLine:     "- תמונה %s: ציון מצב %.1f, רמת שיפוץ %s%s",
		noEvidence:       "לא סופקו ראיות צילומיות למצב הנכס.",
	},
}

// GenerateDeterministicDraft builds the non-LLM fallback report: four fixed
// sections rendered from the input alone, plus the consistency findings and
// the approval flag derived from them. at stamps the report's creation time;
// everything else is a pure function of the input.
func GenerateDeterministicDraft(in Input, at time.Time) (Report, error) {
	if err := in.Validate(); err != nil {
		return Report{}, err
	}

	loc := draftStrings[in.Template.Language]
	validations := ValidateConsistency(in)

	return Report{
		ID:        common.GenerateID("rpt"),
		Version:   1,
		CreatedAt: common.Timestamp(at),
		Language:  in.Template.Language,
		Sections: []Section{
			conclusionSection(in, loc),
			comparablesSection(in, loc),
			legalRisksSection(in, loc),
			conditionSection(in, loc),
		},
		Validations:           validations,
		ReadyForFinalApproval: ReadyForFinalApproval(validations),
	}, nil
}

func conclusionSection(in Input, loc draftLocale) Section {
	return Section{
		ID:    SectionValuationConclusion,
		Title: loc.conclusionTitle,
		Markdown: fmt.Sprintf(loc.conclusionBody,
			in.Range.Low, in.Range.High, in.Range.Mid, in.Confidence),
		GroundedFactIDs: []string{in.Property.ID},
	}
}

func comparablesSection(in Input, loc draftLocale) Section {
	items := in.Comparables
	if len(items) > maxComparableLines {
		items = items[:maxComparableLines]
	}

	var lines []string
	ids := make([]string, 0, len(items))
	for _, c := range items {
		lines = append(lines, fmt.Sprintf(loc.comparableLine, c.Address, c.Similarity*100, c.AdjustedPrice))
		ids = append(ids, c.ID)
	}

	return Section{
		ID:              SectionComparablesAnalysis,
		Title:           loc.comparablesTitle,
		Markdown:        strings.Join(lines, "\n"),
		GroundedFactIDs: ids,
	}
}

func legalRisksSection(in Input, loc draftLocale) Section {
	var lines []string
	var ids []string
	for _, fact := range in.DocumentFacts {
		if len(fact.ConflictWith) == 0 {
			continue
		}
		lines = append(lines, fmt.Sprintf(loc.conflictLine,
			fact.SourceDocumentID, fact.Statement, len(fact.ConflictWith)))
		ids = append(ids, fact.ID)
	}
	if len(lines) == 0 {
		lines = []string{loc.noConflicts}
	}

	return Section{
		ID:              SectionLegalRisks,
		Title:           loc.legalTitle,
		Markdown:        strings.Join(lines, "\n"),
		GroundedFactIDs: ids,
	}
}

func conditionSection(in Input, loc draftLocale) Section {
	evidence := in.ImageEvidence
	if len(evidence) > maxEvidenceLines {
		evidence = evidence[:maxEvidenceLines]
	}

	var lines []string
	ids := make([]string, 0, len(evidence))
	for _, ev := range evidence {
		issues := ""
		if len(ev.DetectedIssues) > 0 {
			issues = " (" + strings.Join(ev.DetectedIssues, ", ") + ")"
		}
		lines = append(lines, fmt.Sprintf(loc.evidenceLine,
			ev.ImageID, ev.ConditionScore, ev.RenovationLevel, issues))
		ids = append(ids, ev.ID)
	}
	if len(lines) == 0 {
		lines = []string{loc.noEvidence}
	}

	return Section{
		ID:              SectionConditionEvidence,
		Title:           loc.conditionTitle,
		Markdown:        strings.Join(lines, "\n"),
		GroundedFactIDs: ids,
	}
}
