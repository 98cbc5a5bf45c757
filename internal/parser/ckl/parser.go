// Package ckl parses STIG Viewer checklist (CKL) files into a normalized scan.
// Pure function: raw bytes in, domain structs out. No storage dependencies.
package ckl

import (
	"bytes"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/beevik/etree"

	"github.com/heartmarshall/grc-backend/internal/domain"
)

const rootTag = "CHECKLIST"

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

var releaseRe = regexp.MustCompile(`(?i)release:\s*([0-9.]+)`)

// Parse reads a CKL document. The returned scan keeps raw unchanged.
func Parse(raw []byte) (*domain.NormalizedScan, error) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil, &domain.FormatError{Format: domain.FormatCKL, Reason: "empty document"}
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(bytes.TrimPrefix(raw, utf8BOM)); err != nil {
		return nil, &domain.FormatError{Format: domain.FormatCKL, Reason: "unparseable XML", Err: err}
	}

	root := doc.Root()
	if root == nil || root.Tag != rootTag {
		return nil, rootError(root)
	}

	assetEl := root.SelectElement("ASSET")
	if assetEl == nil {
		return nil, domain.NewMissingElementError(domain.FormatCKL, "ASSET")
	}
	stigsEl := root.SelectElement("STIGS")
	if stigsEl == nil {
		return nil, domain.NewMissingElementError(domain.FormatCKL, "STIGS")
	}

	scan := &domain.NormalizedScan{
		Format: domain.FormatCKL,
		Asset:  parseAsset(assetEl),
		Raw:    slices.Clone(raw),
	}

	for _, istig := range stigsEl.SelectElements("iSTIG") {
		bench := parseBenchmark(istig.SelectElement("STIG_INFO"))
		scan.Benchmarks = append(scan.Benchmarks, bench)

		for _, vuln := range istig.SelectElements("VULN") {
			f, err := parseVuln(vuln, bench)
			if err != nil {
				return nil, err
			}
			scan.Findings = append(scan.Findings, f)
		}
	}
	scan.Name = scan.Asset.HostName
	return scan, nil
}

func rootError(root *etree.Element) error {
	if root == nil {
		return domain.NewMissingElementError(domain.FormatCKL, rootTag)
	}
	return &domain.FormatError{
		Format:  domain.FormatCKL,
		Element: rootTag,
		Reason:  fmt.Sprintf("unexpected root element <%s>", root.Tag),
	}
}

func parseAsset(el *etree.Element) domain.AssetInfo {
	raw := make(map[string]string)
	for _, child := range el.ChildElements() {
		raw[child.Tag] = strings.TrimSpace(child.Text())
	}

	return domain.AssetInfo{
		HostName:      raw["HOST_NAME"],
		HostIPs:       splitList(raw["HOST_IP"]),
		HostMACs:      splitList(raw["HOST_MAC"]),
		HostFQDN:      raw["HOST_FQDN"],
		Role:          raw["ROLE"],
		AssetType:     raw["ASSET_TYPE"],
		TargetKey:     raw["TARGET_KEY"],
		TargetComment: raw["TARGET_COMMENT"],
		TechArea:      raw["TECH_AREA"],
		WebOrDatabase: strings.EqualFold(raw["WEB_OR_DATABASE"], "true"),
		WebDBSite:     raw["WEB_DB_SITE"],
		WebDBInstance: raw["WEB_DB_INSTANCE"],
		Raw:           raw,
	}
}

func parseBenchmark(info *etree.Element) domain.BenchmarkInfo {
	var b domain.BenchmarkInfo
	if info == nil {
		return b
	}
	for _, si := range info.SelectElements("SI_DATA") {
		name := strings.ToLower(childText(si, "SID_NAME"))
		value := childText(si, "SID_DATA")
		switch name {
		case "stigid":
			b.STIGID = value
		case "title":
			b.Title = value
		case "version":
			b.Version = value
		case "releaseinfo":
			b.ReleaseInfo = value
			if m := releaseRe.FindStringSubmatch(value); m != nil {
				b.Release = m[1]
			}
		}
	}
	return b
}

func parseVuln(vuln *etree.Element, bench domain.BenchmarkInfo) (domain.ScannedFinding, error) {
	attrs := vulnAttributes(vuln)

	rule := domain.RuleDetails{
		VulnID:       lookup(attrs, attrVulnNum),
		StigID:       lookup(attrs, attrRuleVer),
		RuleID:       lookup(attrs, attrRuleID),
		GroupTitle:   lookup(attrs, attrGroupTitle),
		Title:        lookup(attrs, attrRuleTitle),
		Discussion:   lookup(attrs, attrVulnDiscuss),
		CheckContent: lookup(attrs, attrCheckContent),
		FixText:      lookup(attrs, attrFixText),
		STIGRef:      lookup(attrs, attrSTIGRef),
		LegacyIDs:    lookupAll(attrs, attrLegacyID),
	}
	if rule.STIGRef == "" {
		rule.STIGRef = bench.Title
	}
	if rule.Key() == "" {
		return domain.ScannedFinding{}, &domain.FormatError{
			Format:  domain.FormatCKL,
			Element: "VULN",
			Reason:  "vulnerability has no Vuln_Num or Rule_ID",
		}
	}

	sourceSeverity := lookup(attrs, attrSeverity)
	sourceStatus := childText(vuln, "STATUS")

	f := domain.ScannedFinding{
		Rule:                  rule,
		SourceSeverity:        sourceSeverity,
		Severity:              domain.NormalizeSeverity(domain.VocabularyCKL, sourceSeverity),
		SourceStatus:          sourceStatus,
		Status:                domain.NormalizeStatus(domain.VocabularyCKL, sourceStatus),
		CCIRefs:               lookupAll(attrs, attrCCIRef),
		FindingDetails:        childText(vuln, "FINDING_DETAILS"),
		Comments:              childText(vuln, "COMMENTS"),
		SeverityJustification: childText(vuln, "SEVERITY_JUSTIFICATION"),
	}
	if override := childText(vuln, "SEVERITY_OVERRIDE"); override != "" {
		f.SeverityOverride = domain.NormalizeSeverity(domain.VocabularyCKL, override)
	}
	return f, nil
}

func vulnAttributes(vuln *etree.Element) []attribute {
	data := vuln.SelectElements("STIG_DATA")
	attrs := make([]attribute, 0, len(data))
	for _, d := range data {
		attrs = append(attrs, attribute{
			name:  childText(d, "VULN_ATTRIBUTE"),
			value: childText(d, "ATTRIBUTE_DATA"),
		})
	}
	return attrs
}

func childText(el *etree.Element, tag string) string {
	c := el.SelectElement(tag)
	if c == nil {
		return ""
	}
	return strings.TrimSpace(c.Text())
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
