package nessus

import "github.com/heartmarshall/grc-backend/internal/domain"

// stats accumulates the report summary while items are parsed.
type stats struct {
	hosts      int
	vulns      int
	severities map[string]int
	families   map[string]int
	cves       map[string]struct{}
}

func newStats() *stats {
	s := &stats{
		severities: make(map[string]int, len(domain.NessusSeverityLabels)),
		families:   make(map[string]int),
		cves:       make(map[string]struct{}),
	}
	for _, label := range domain.NessusSeverityLabels {
		s.severities[label] = 0
	}
	return s
}

func (s *stats) addHost() { s.hosts++ }

func (s *stats) addItem(f domain.ScannedFinding, item reportItem) {
	if f.SourceSeverity != "" {
		s.severities[f.SourceSeverity]++
	}
	if f.SourceSeverity != "" && f.SourceSeverity != domain.NessusInfo {
		s.vulns++
	}
	if item.PluginFamily != "" {
		s.families[item.PluginFamily]++
	}
	for _, cve := range f.Plugin.CVEs {
		s.cves[cve] = struct{}{}
	}
}

func (s *stats) summary() domain.ScanSummary {
	return domain.ScanSummary{
		HostCount:          s.hosts,
		VulnerabilityCount: s.vulns,
		SeverityBreakdown:  s.severities,
		PluginFamilies:     s.families,
		UniqueCVEs:         len(s.cves),
		CriticalCount:      s.severities[domain.NessusCritical],
		HighCount:          s.severities[domain.NessusHigh],
		MediumCount:        s.severities[domain.NessusMedium],
		LowCount:           s.severities[domain.NessusLow],
		InfoCount:          s.severities[domain.NessusInfo],
	}
}
