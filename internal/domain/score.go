package domain

import (
	"time"

	"github.com/google/uuid"
)

// StatusCounts holds the four status counters of one severity category.
type StatusCounts struct {
	Open          int
	NotAFinding   int
	NotApplicable int
	NotReviewed   int
}

// Total is the number of findings in the category.
func (c StatusCounts) Total() int {
	return c.Open + c.NotAFinding + c.NotApplicable + c.NotReviewed
}

func (c *StatusCounts) add(s Status) {
	switch s {
	case StatusOpen:
		c.Open++
	case StatusNotAFinding:
		c.NotAFinding++
	case StatusNotApplicable:
		c.NotApplicable++
	default:
		c.NotReviewed++
	}
}

// ChecklistScore is the read model holding the 3x4 grid of finding counts
// for one checklist. It is always recomputed in full from the findings.
type ChecklistScore struct {
	ChecklistID      uuid.UUID
	Cat1             StatusCounts
	Cat2             StatusCounts
	Cat3             StatusCounts
	LastCalculatedAt time.Time
}

// NewChecklistScore creates an empty score for a checklist.
func NewChecklistScore(checklistID uuid.UUID) *ChecklistScore {
	return &ChecklistScore{ChecklistID: checklistID}
}

// ResetCounts zeroes all twelve counters.
func (s *ChecklistScore) ResetCounts() {
	s.Cat1 = StatusCounts{}
	s.Cat2 = StatusCounts{}
	s.Cat3 = StatusCounts{}
}

// Add counts one finding. Unknown statuses count as not reviewed and
// unknown severities as CAT II.
func (s *ChecklistScore) Add(sev SeverityCategory, status Status) {
	switch sev {
	case SeverityCat1:
		s.Cat1.add(status)
	case SeverityCat3:
		s.Cat3.add(status)
	default:
		s.Cat2.add(status)
	}
}

// Category returns the counters of one severity category.
func (s *ChecklistScore) Category(sev SeverityCategory) StatusCounts {
	switch sev {
	case SeverityCat1:
		return s.Cat1
	case SeverityCat2:
		return s.Cat2
	case SeverityCat3:
		return s.Cat3
	}
	return StatusCounts{}
}

// SameCounts reports whether both scores hold identical counters.
func (s *ChecklistScore) SameCounts(o *ChecklistScore) bool {
	return s.Cat1 == o.Cat1 && s.Cat2 == o.Cat2 && s.Cat3 == o.Cat3
}

func (s *ChecklistScore) TotalOpen() int {
	return s.Cat1.Open + s.Cat2.Open + s.Cat3.Open
}

func (s *ChecklistScore) TotalNotAFinding() int {
	return s.Cat1.NotAFinding + s.Cat2.NotAFinding + s.Cat3.NotAFinding
}

func (s *ChecklistScore) TotalNotApplicable() int {
	return s.Cat1.NotApplicable + s.Cat2.NotApplicable + s.Cat3.NotApplicable
}

func (s *ChecklistScore) TotalNotReviewed() int {
	return s.Cat1.NotReviewed + s.Cat2.NotReviewed + s.Cat3.NotReviewed
}

func (s *ChecklistScore) TotalFindings() int {
	return s.Cat1.Total() + s.Cat2.Total() + s.Cat3.Total()
}

// TotalClosed counts not-a-finding and not-applicable results.
func (s *ChecklistScore) TotalClosed() int {
	return s.TotalNotAFinding() + s.TotalNotApplicable()
}

// CompliancePercentage is 100 * closed / total. A checklist without findings
// is 100% compliant.
func (s *ChecklistScore) CompliancePercentage() float64 {
	total := s.TotalFindings()
	if total == 0 {
		return 100
	}
	return 100 * float64(s.TotalClosed()) / float64(total)
}

// HasCriticalFindings reports open CAT I findings.
func (s *ChecklistScore) HasCriticalFindings() bool {
	return s.Cat1.Open > 0
}

// RiskScore is the weighted sum of open findings.
func (s *ChecklistScore) RiskScore() int {
	return RiskScore(s.Cat1.Open, s.Cat2.Open, s.Cat3.Open)
}

// RiskScore weights open CAT I/II/III counts by 3/2/1.
func RiskScore(cat1Open, cat2Open, cat3Open int) int {
	return cat1Open*SeverityCat1.Weight() + cat2Open*SeverityCat2.Weight() + cat3Open*SeverityCat3.Weight()
}
