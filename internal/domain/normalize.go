package domain

import (
	"strconv"
	"strings"
)

// Vocabulary names a source code system whose result and severity codes are
// mapped onto the canonical taxonomy.
type Vocabulary string

const (
	VocabularyCKL    Vocabulary = "ckl"
	VocabularyNessus Vocabulary = "nessus"
	VocabularySCAP   Vocabulary = "scap"
)

// Conservative fallbacks for codes a vocabulary does not define.
const (
	FallbackStatus   = StatusNotReviewed
	FallbackSeverity = SeverityCat2
)

// Nessus severity labels derived from the 0..4 scale.
const (
	NessusInfo     = "info"
	NessusLow      = "low"
	NessusMedium   = "medium"
	NessusHigh     = "high"
	NessusCritical = "critical"
)

// NessusSeverityLabels lists the labels indexed by the numeric scale.
var NessusSeverityLabels = []string{NessusInfo, NessusLow, NessusMedium, NessusHigh, NessusCritical}

var statusTables = map[Vocabulary]map[string]Status{
	VocabularyCKL: {
		"open":           StatusOpen,
		"notafinding":    StatusNotAFinding,
		"not_a_finding":  StatusNotAFinding,
		"not_applicable": StatusNotApplicable,
		"notapplicable":  StatusNotApplicable,
		"not_reviewed":   StatusNotReviewed,
		"notreviewed":    StatusNotReviewed,
	},
	VocabularyNessus: {
		NessusCritical: StatusOpen,
		NessusHigh:     StatusOpen,
		NessusMedium:   StatusOpen,
		NessusLow:      StatusOpen,
		NessusInfo:     StatusNotAFinding,
	},
	VocabularySCAP: {
		"pass":          StatusNotAFinding,
		"fixed":         StatusNotAFinding,
		"informational": StatusNotAFinding,
		"fail":          StatusOpen,
		"error":         StatusNotReviewed,
		"unknown":       StatusNotReviewed,
		"notchecked":    StatusNotReviewed,
		"notapplicable": StatusNotApplicable,
		"notselected":   StatusNotApplicable,
	},
}

var severityTables = map[Vocabulary]map[string]SeverityCategory{
	VocabularyCKL: {
		"high":    SeverityCat1,
		"cat i":   SeverityCat1,
		"cat1":    SeverityCat1,
		"medium":  SeverityCat2,
		"cat ii":  SeverityCat2,
		"cat2":    SeverityCat2,
		"low":     SeverityCat3,
		"cat iii": SeverityCat3,
		"cat3":    SeverityCat3,
	},
	VocabularyNessus: {
		NessusCritical: SeverityCat1,
		NessusHigh:     SeverityCat1,
		NessusMedium:   SeverityCat2,
		NessusLow:      SeverityCat3,
		NessusInfo:     SeverityCat3,
		"none":         SeverityCat3,
	},
	VocabularySCAP: {
		"high":   SeverityCat1,
		"medium": SeverityCat2,
		"low":    SeverityCat3,
		"info":   SeverityCat3,
	},
}

// NormalizeStatus maps a source result code onto the canonical status.
// It is total: unknown vocabularies and codes yield FallbackStatus.
func NormalizeStatus(vocab Vocabulary, code string) Status {
	key := normalizeCode(vocab, code)
	if s, ok := statusTables[vocab][key]; ok {
		return s
	}
	return FallbackStatus
}

// NormalizeSeverity maps a source severity code onto the canonical category.
// It is total: unknown vocabularies and codes yield FallbackSeverity.
func NormalizeSeverity(vocab Vocabulary, code string) SeverityCategory {
	key := normalizeCode(vocab, code)
	if c, ok := severityTables[vocab][key]; ok {
		return c
	}
	return FallbackSeverity
}

// NessusSeverityLabel converts the Nessus 0..4 scale to its label.
// Out-of-range values return "" (which normalizes to the fallbacks).
func NessusSeverityLabel(severity int) string {
	if severity < 0 || severity >= len(NessusSeverityLabels) {
		return ""
	}
	return NessusSeverityLabels[severity]
}

// KnownCodes returns the codes a vocabulary defines for status mapping.
func KnownCodes(vocab Vocabulary) []string {
	codes := make([]string, 0, len(statusTables[vocab]))
	for code := range statusTables[vocab] {
		codes = append(codes, code)
	}
	return codes
}

func normalizeCode(vocab Vocabulary, code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	code = strings.Join(strings.Fields(code), " ")
	if vocab == VocabularyNessus {
		// Nessus reports severity either numerically or as a risk factor.
		if n, err := strconv.Atoi(code); err == nil {
			return NessusSeverityLabel(n)
		}
	}
	return code
}
