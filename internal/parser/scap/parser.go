// Package scap parses SCAP/XCCDF 1.1 and 1.2 results, including ARF
// wrappers, into a normalized scan. Element lookup ignores namespace
// prefixes so the same paths serve every wrapper.
package scap

import (
	"bytes"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"

	"github.com/heartmarshall/grc-backend/internal/domain"
)

const (
	nsXCCDF11 = "http://checklists.nist.gov/xccdf/1.1"
	nsXCCDF12 = "http://checklists.nist.gov/xccdf/1.2"

	resultPass = "pass"
	resultFail = "fail"
)

var acceptedRoots = []string{"Benchmark", "TestResult", "asset-report-collection", "data-stream-collection"}

// DISA benchmark content prefixes XCCDF ids with these markers.
const (
	benchmarkMarker = "_benchmark_"
	groupMarker     = "_group_"
	ruleMarker      = "_rule_"
)

// Parse reads an XCCDF result document. When a document carries several
// TestResult elements the first one is used.
func Parse(raw []byte) (*domain.NormalizedScan, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, &domain.FormatError{Format: domain.FormatSCAP, Reason: "empty document"}
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(raw); err != nil {
		return nil, &domain.FormatError{Format: domain.FormatSCAP, Reason: "unparseable XML", Err: err}
	}

	root := doc.Root()
	if root == nil {
		return nil, domain.NewMissingElementError(domain.FormatSCAP, "TestResult")
	}
	if !slices.Contains(acceptedRoots, root.Tag) {
		return nil, &domain.FormatError{
			Format:  domain.FormatSCAP,
			Element: "TestResult",
			Reason:  fmt.Sprintf("unexpected root element <%s>", root.Tag),
		}
	}

	results := doc.FindElements("//TestResult")
	if len(results) == 0 {
		return nil, domain.NewMissingElementError(domain.FormatSCAP, "TestResult")
	}
	tr := results[0]

	rules := indexRules(doc)
	scan := &domain.NormalizedScan{
		Format: domain.FormatSCAP,
		Asset:  parseTarget(tr),
		Raw:    slices.Clone(raw),
		Name:   firstNonEmpty(childText(tr, "title"), tr.SelectAttrValue("id", "")),
	}
	scan.StartedAt = parseTime(tr.SelectAttrValue("start-time", ""))
	scan.FinishedAt = parseTime(tr.SelectAttrValue("end-time", ""))

	bench := parseBenchmark(doc, tr)
	bench.XCCDFVersion = xccdfVersion(tr)
	scan.Benchmarks = []domain.BenchmarkInfo{bench}

	breakdown := make(map[string]int)
	var pass, fail int
	for _, rr := range tr.SelectElements("rule-result") {
		f, err := parseRuleResult(rr, rules, bench)
		if err != nil {
			return nil, err
		}
		breakdown[f.SourceStatus]++
		switch f.SourceStatus {
		case resultPass:
			pass++
		case resultFail:
			fail++
		}
		scan.Findings = append(scan.Findings, f)
	}

	scan.Summary = domain.ScanSummary{
		HostCount:          1,
		VulnerabilityCount: fail,
		ResultBreakdown:    breakdown,
		Score:              score(pass, fail),
	}
	return scan, nil
}

// score is the pass percentage over decided results; 0 when none passed or
// failed.
func score(pass, fail int) float64 {
	if pass+fail == 0 {
		return 0
	}
	return 100 * float64(pass) / float64(pass+fail)
}

type ruleDef struct {
	el    *etree.Element
	group *etree.Element
}

func indexRules(doc *etree.Document) map[string]ruleDef {
	rules := make(map[string]ruleDef)
	for _, r := range doc.FindElements("//Rule") {
		id := r.SelectAttrValue("id", "")
		if id == "" {
			continue
		}
		def := ruleDef{el: r}
		if p := r.Parent(); p != nil && p.Tag == "Group" {
			def.group = p
		}
		rules[id] = def
	}
	return rules
}

func parseRuleResult(rr *etree.Element, rules map[string]ruleDef, bench domain.BenchmarkInfo) (domain.ScannedFinding, error) {
	idref := rr.SelectAttrValue("idref", "")
	if idref == "" {
		return domain.ScannedFinding{}, &domain.FormatError{
			Format:  domain.FormatSCAP,
			Element: "rule-result",
			Reason:  "missing idref attribute",
		}
	}
	result := strings.ToLower(childText(rr, "result"))
	def, known := rules[idref]

	severity := rr.SelectAttrValue("severity", "")
	if severity == "" && known {
		severity = def.el.SelectAttrValue("severity", "")
	}

	rule := domain.RuleDetails{
		RuleID:  shortID(idref, ruleMarker),
		STIGRef: bench.Title,
	}
	if known {
		rule.StigID = childText(def.el, "version")
		rule.Title = childText(def.el, "title")
		rule.Discussion = allText(def.el.SelectElement("description"))
		rule.FixText = allText(def.el.SelectElement("fixtext"))
		if check := def.el.SelectElement("check"); check != nil {
			rule.CheckContent = allText(check.SelectElement("check-content"))
		}
		if def.group != nil {
			rule.VulnID = shortID(def.group.SelectAttrValue("id", ""), groupMarker)
			rule.GroupTitle = childText(def.group, "title")
		}
	}

	var messages []string
	for _, m := range rr.SelectElements("message") {
		if t := strings.TrimSpace(m.Text()); t != "" {
			messages = append(messages, t)
		}
	}

	ccis := identCCIs(rr)
	if known {
		for _, cci := range identCCIs(def.el) {
			if !slices.Contains(ccis, cci) {
				ccis = append(ccis, cci)
			}
		}
	}

	return domain.ScannedFinding{
		Rule:           rule,
		SourceSeverity: severity,
		Severity:       domain.NormalizeSeverity(domain.VocabularySCAP, severity),
		SourceStatus:   result,
		Status:         domain.NormalizeStatus(domain.VocabularySCAP, result),
		CCIRefs:        ccis,
		FindingDetails: strings.Join(messages, "\n"),
	}, nil
}

func identCCIs(el *etree.Element) []string {
	var out []string
	for _, ident := range el.SelectElements("ident") {
		v := strings.TrimSpace(ident.Text())
		sys := strings.ToLower(ident.SelectAttrValue("system", ""))
		if strings.HasPrefix(v, "CCI-") || strings.Contains(sys, "cci") {
			if v != "" && !slices.Contains(out, v) {
				out = append(out, v)
			}
		}
	}
	return out
}

func parseTarget(tr *etree.Element) domain.AssetInfo {
	a := domain.AssetInfo{
		HostName: childText(tr, "target"),
		Raw:      make(map[string]string),
	}
	for _, addr := range tr.SelectElements("target-address") {
		if v := strings.TrimSpace(addr.Text()); v != "" && !slices.Contains(a.HostIPs, v) {
			a.HostIPs = append(a.HostIPs, v)
		}
	}
	if facts := tr.SelectElement("target-facts"); facts != nil {
		for _, fact := range facts.SelectElements("fact") {
			name := fact.SelectAttrValue("name", "")
			v := strings.TrimSpace(fact.Text())
			if name == "" || v == "" {
				continue
			}
			a.Raw[name] = v
			switch {
			case strings.HasSuffix(name, ":fqdn"):
				a.HostFQDN = v
			case strings.HasSuffix(name, ":mac"):
				if !slices.Contains(a.HostMACs, v) {
					a.HostMACs = append(a.HostMACs, v)
				}
			case strings.HasSuffix(name, ":os_name"):
				a.OperatingSystem = v
			}
		}
	}
	return a
}

func parseBenchmark(doc *etree.Document, tr *etree.Element) domain.BenchmarkInfo {
	var b domain.BenchmarkInfo

	if bm := doc.FindElement("//Benchmark"); bm != nil {
		b.STIGID = shortID(bm.SelectAttrValue("id", ""), benchmarkMarker)
		b.Title = childText(bm, "title")
		b.Version = childText(bm, "version")
		for _, pt := range bm.SelectElements("plain-text") {
			if pt.SelectAttrValue("id", "") == "release-info" {
				b.ReleaseInfo = strings.TrimSpace(pt.Text())
			}
		}
	} else if ref := tr.SelectElement("benchmark"); ref != nil {
		id := firstNonEmpty(ref.SelectAttrValue("id", ""), ref.SelectAttrValue("href", ""))
		b.STIGID = shortID(id, benchmarkMarker)
	}

	if b.ReleaseInfo != "" {
		b.Release = releaseNumber(b.ReleaseInfo)
	}
	return b
}

func releaseNumber(info string) string {
	i := strings.Index(strings.ToLower(info), "release:")
	if i < 0 {
		return ""
	}
	fields := strings.Fields(info[i+len("release:"):])
	if len(fields) == 0 {
		return ""
	}
	if _, err := strconv.ParseFloat(fields[0], 64); err != nil {
		return ""
	}
	return fields[0]
}

func xccdfVersion(el *etree.Element) string {
	switch el.NamespaceURI() {
	case nsXCCDF12:
		return "1.2"
	case nsXCCDF11:
		return "1.1"
	}
	return ""
}

// shortID strips the XCCDF id prefix up to and including marker.
func shortID(id, marker string) string {
	if i := strings.Index(id, marker); i >= 0 {
		return id[i+len(marker):]
	}
	return id
}

func parseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

func childText(el *etree.Element, tag string) string {
	if el == nil {
		return ""
	}
	c := el.SelectElement(tag)
	if c == nil {
		return ""
	}
	return strings.TrimSpace(c.Text())
}

// allText concatenates every character data node under el, which keeps the
// text of descriptions that embed XHTML markup.
func allText(el *etree.Element) string {
	if el == nil {
		return ""
	}
	var b strings.Builder
	var walk func(*etree.Element)
	walk = func(e *etree.Element) {
		for _, tok := range e.Child {
			switch t := tok.(type) {
			case *etree.CharData:
				b.WriteString(t.Data)
			case *etree.Element:
				walk(t)
			}
		}
	}
	walk(el)
	return strings.TrimSpace(b.String())
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
