package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// NormalizedScan is the format-independent result every parser produces.
// Which sections are populated depends on the format: CKL and SCAP fill
// Asset, Benchmarks and Findings; Nessus fills Hosts, Findings and Summary.
type NormalizedScan struct {
	Format     SourceFormat
	Asset      AssetInfo
	Benchmarks []BenchmarkInfo
	Findings   []ScannedFinding
	Hosts      []ScanHost
	Summary    ScanSummary

	// Name is the scan or report name when the format carries one.
	Name       string
	PolicyName string
	StartedAt  *time.Time
	FinishedAt *time.Time

	// Raw is the exact input, kept for lossless export.
	Raw []byte
}

// PrimaryBenchmark returns the first benchmark, or the zero value.
func (s *NormalizedScan) PrimaryBenchmark() BenchmarkInfo {
	if len(s.Benchmarks) == 0 {
		return BenchmarkInfo{}
	}
	return s.Benchmarks[0]
}

// AssetInfo describes the target the checklist or scan was run against.
type AssetInfo struct {
	HostName        string
	HostIPs         []string
	HostMACs        []string
	HostFQDN        string
	Role            string
	AssetType       string
	TargetKey       string
	TargetComment   string
	TechArea        string
	WebOrDatabase   bool
	WebDBSite       string
	WebDBInstance   string
	OperatingSystem string

	// Raw holds every asset tag exactly as found in the source.
	Raw map[string]string
}

// BenchmarkInfo identifies the STIG or XCCDF benchmark a result belongs to.
type BenchmarkInfo struct {
	STIGID      string
	Title       string
	Version     string
	Release     string
	ReleaseInfo string
	// XCCDFVersion is "1.1" or "1.2" for SCAP results.
	XCCDFVersion string
}

// ScannedFinding is one rule result or vulnerability before it becomes a
// VulnerabilityFinding.
type ScannedFinding struct {
	Rule RuleDetails

	SourceSeverity string
	Severity       SeverityCategory
	SourceStatus   string
	Status         Status

	CCIRefs        []string
	FindingDetails string
	Comments       string

	SeverityOverride      SeverityCategory
	SeverityJustification string

	// Plugin is set for Nessus report items.
	Plugin *PluginResult
}

// Key identifies the rule a finding reports on across imports.
func (f ScannedFinding) Key() string { return f.Rule.Key() }

// ScopedKey is Key qualified by the STIG the rule belongs to.
func (f ScannedFinding) ScopedKey() string { return f.Rule.ScopedKey() }

// RuleDetails carries the descriptive text of a STIG rule or scanner plugin.
type RuleDetails struct {
	VulnID       string
	StigID       string
	RuleID       string
	GroupTitle   string
	Title        string
	Discussion   string
	CheckContent string
	FixText      string
	STIGRef      string
	LegacyIDs    []string
}

// Key prefers the vulnerability id and falls back to the rule ids.
func (r RuleDetails) Key() string {
	switch {
	case r.VulnID != "":
		return r.VulnID
	case r.RuleID != "":
		return r.RuleID
	default:
		return r.StigID
	}
}

// ScopedKey prefixes Key with the STIG title so rules of two STIGs in one
// checklist that share a vulnerability id stay apart. The release part of
// STIGRef ("Title :: Version 2, Release: 5") is dropped so a newer release
// of the same STIG still matches. Rules without a STIG reference use Key.
func (r RuleDetails) ScopedKey() string {
	key := r.Key()
	if key == "" {
		return ""
	}
	if stig := r.STIGTitle(); stig != "" {
		return stig + "/" + key
	}
	return key
}

// STIGTitle returns STIGRef without its release suffix.
func (r RuleDetails) STIGTitle() string {
	title, _, _ := strings.Cut(r.STIGRef, " :: ")
	return strings.TrimSpace(title)
}

// PluginResult holds the Nessus-specific part of a report item.
type PluginResult struct {
	Host           string
	Port           int
	Protocol       string
	Service        string
	PluginID       string
	PluginName     string
	PluginFamily   string
	RiskFactor     string
	Synopsis       string
	Solution       string
	Output         string
	CVEs           []string
	CVSSBaseScore  float64
	CVSS3BaseScore float64
	CVSS3Vector    string
}

// ScanHost is one host of a vulnerability scan.
type ScanHost struct {
	Name            string
	IP              string
	FQDN            string
	MAC             string
	NetBIOSName     string
	OperatingSystem string
	ItemCount       int
	SeverityCounts  map[string]int
}

// ScanSummary holds statistics collected while parsing.
type ScanSummary struct {
	HostCount          int
	VulnerabilityCount int
	SeverityBreakdown  map[string]int
	PluginFamilies     map[string]int
	UniqueCVEs         int

	CriticalCount int
	HighCount     int
	MediumCount   int
	LowCount      int
	InfoCount     int

	// ResultBreakdown counts SCAP rule results by raw result code.
	ResultBreakdown map[string]int
	// Score is the SCAP pass percentage: 100 * pass / (pass + fail).
	Score float64
}

// ScanRecord is a stored scan summary. A SystemGroup owns scan ids.
type ScanRecord struct {
	ID         uuid.UUID
	Format     SourceFormat
	Name       string
	PolicyName string
	Summary    ScanSummary
	Raw        []byte
	SystemID   *uuid.UUID
	ImportedAt time.Time
}

// NewScanRecord builds a ScanRecord from a parsed scan.
func NewScanRecord(scan *NormalizedScan, now time.Time) *ScanRecord {
	name := scan.Name
	if name == "" {
		name = scan.Asset.HostName
	}
	return &ScanRecord{
		ID:         uuid.New(),
		Format:     scan.Format,
		Name:       name,
		PolicyName: scan.PolicyName,
		Summary:    scan.Summary,
		Raw:        scan.Raw,
		ImportedAt: now,
	}
}
