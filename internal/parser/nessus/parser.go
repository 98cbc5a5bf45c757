// Package nessus parses Nessus v2 (.nessus) reports into a normalized scan.
// Host and vulnerability statistics are collected in the same pass.
package nessus

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/heartmarshall/grc-backend/internal/domain"
)

const (
	rootTag = "NessusClientData_v2"

	// Nessus writes HOST_START/HOST_END in this layout.
	hostTimeLayout = "Mon Jan _2 15:04:05 2006"
)

// Parse reads a Nessus v2 report.
func Parse(raw []byte) (*domain.NormalizedScan, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, &domain.FormatError{Format: domain.FormatNessus, Reason: "empty document"}
	}

	var doc nessusDocument
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return nil, &domain.FormatError{Format: domain.FormatNessus, Reason: "unparseable XML", Err: err}
	}
	if doc.XMLName.Local != rootTag {
		return nil, &domain.FormatError{
			Format:  domain.FormatNessus,
			Element: rootTag,
			Reason:  fmt.Sprintf("unexpected root element <%s>", doc.XMLName.Local),
		}
	}
	if doc.Policy == nil {
		return nil, domain.NewMissingElementError(domain.FormatNessus, "Policy")
	}
	if doc.Report == nil {
		return nil, domain.NewMissingElementError(domain.FormatNessus, "Report")
	}

	scan := &domain.NormalizedScan{
		Format:     domain.FormatNessus,
		Name:       doc.Report.Name,
		PolicyName: strings.TrimSpace(doc.Policy.Name),
		Raw:        slices.Clone(raw),
	}
	stats := newStats()

	for _, h := range doc.Report.Hosts {
		host := parseHost(h)
		stats.addHost()

		for _, item := range h.Items {
			f := parseItem(host.Name, item)
			stats.addItem(f, item)
			host.ItemCount++
			if f.SourceSeverity != "" {
				host.SeverityCounts[f.SourceSeverity]++
			}
			scan.Findings = append(scan.Findings, f)
		}

		scan.Hosts = append(scan.Hosts, host)
		trackWindow(scan, h)
	}

	scan.Summary = stats.summary()
	if len(scan.Hosts) > 0 {
		first := scan.Hosts[0]
		scan.Asset = domain.AssetInfo{
			HostName:        first.Name,
			HostFQDN:        first.FQDN,
			OperatingSystem: first.OperatingSystem,
		}
		if first.IP != "" {
			scan.Asset.HostIPs = []string{first.IP}
		}
		if first.MAC != "" {
			scan.Asset.HostMACs = strings.Fields(first.MAC)
		}
	}
	return scan, nil
}

func parseHost(h reportHost) domain.ScanHost {
	host := domain.ScanHost{Name: h.Name, SeverityCounts: make(map[string]int)}
	for _, tag := range h.Properties {
		v := strings.TrimSpace(tag.Value)
		switch tag.Name {
		case "host-ip":
			host.IP = v
		case "host-fqdn":
			host.FQDN = v
		case "mac-address":
			host.MAC = v
		case "netbios-name":
			host.NetBIOSName = v
		case "operating-system", "os":
			if host.OperatingSystem == "" || tag.Name == "operating-system" {
				host.OperatingSystem = v
			}
		}
	}
	return host
}

func parseItem(hostName string, item reportItem) domain.ScannedFinding {
	label := severityLabel(item)
	category := domain.NormalizeSeverity(domain.VocabularyNessus, label)
	if c, ok := stigCategory(item.STIGSeverity); ok {
		category = c
	}

	plugin := &domain.PluginResult{
		Host:           hostName,
		Port:           item.Port,
		Protocol:       item.Protocol,
		Service:        item.Service,
		PluginID:       item.PluginID,
		PluginName:     item.PluginName,
		PluginFamily:   item.PluginFamily,
		RiskFactor:     strings.TrimSpace(item.RiskFactor),
		Synopsis:       strings.TrimSpace(item.Synopsis),
		Solution:       strings.TrimSpace(item.Solution),
		Output:         strings.TrimSpace(item.PluginOutput),
		CVEs:           trimAll(item.CVEs),
		CVSSBaseScore:  baseScore(item.CVSSBaseScore, item.CVSSVector),
		CVSS3BaseScore: baseScore(item.CVSS3BaseScore, item.CVSS3Vector),
		CVSS3Vector:    strings.TrimSpace(item.CVSS3Vector),
	}

	return domain.ScannedFinding{
		Rule: domain.RuleDetails{
			RuleID:     item.PluginID,
			Title:      item.PluginName,
			GroupTitle: item.PluginFamily,
			Discussion: strings.TrimSpace(item.Description),
			FixText:    plugin.Solution,
		},
		SourceSeverity: label,
		Severity:       category,
		SourceStatus:   label,
		Status:         domain.NormalizeStatus(domain.VocabularyNessus, label),
		Plugin:         plugin,
	}
}

// severityLabel derives the label from the 0..4 attribute and falls back to
// the risk factor when the attribute is missing or out of range.
func severityLabel(item reportItem) string {
	if n, err := strconv.Atoi(strings.TrimSpace(item.Severity)); err == nil {
		if label := domain.NessusSeverityLabel(n); label != "" {
			return label
		}
	}
	rf := strings.ToLower(strings.TrimSpace(item.RiskFactor))
	if rf == "none" {
		return domain.NessusInfo
	}
	if slices.Contains(domain.NessusSeverityLabels, rf) {
		return rf
	}
	return ""
}

// stigCategory reads the DISA category (I, II or III) that compliance audit
// plugins report in stig_severity. It takes precedence over the 0..4 scale.
func stigCategory(v string) (domain.SeverityCategory, bool) {
	v = strings.ToUpper(strings.TrimSpace(v))
	v = strings.TrimSpace(strings.TrimPrefix(v, "CAT"))
	switch v {
	case "I":
		return domain.SeverityCat1, true
	case "II":
		return domain.SeverityCat2, true
	case "III":
		return domain.SeverityCat3, true
	}
	return "", false
}

func trackWindow(scan *domain.NormalizedScan, h reportHost) {
	for _, tag := range h.Properties {
		t, err := time.Parse(hostTimeLayout, strings.TrimSpace(tag.Value))
		if err != nil {
			continue
		}
		switch tag.Name {
		case "HOST_START":
			if scan.StartedAt == nil || t.Before(*scan.StartedAt) {
				scan.StartedAt = &t
			}
		case "HOST_END":
			if scan.FinishedAt == nil || t.After(*scan.FinishedAt) {
				scan.FinishedAt = &t
			}
		}
	}
}

func trimAll(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
