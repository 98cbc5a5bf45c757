package ckl

import "strings"

// STIG_DATA attribute names.
const (
	attrVulnNum      = "Vuln_Num"
	attrSeverity     = "Severity"
	attrGroupTitle   = "Group_Title"
	attrRuleID       = "Rule_ID"
	attrRuleVer      = "Rule_Ver"
	attrRuleTitle    = "Rule_Title"
	attrVulnDiscuss  = "Vuln_Discuss"
	attrCheckContent = "Check_Content"
	attrFixText      = "Fix_Text"
	attrSTIGRef      = "STIGRef"
	attrLegacyID     = "LEGACY_ID"
	attrCCIRef       = "CCI_REF"
)

// Conventional attribute order of STIG Viewer exports. Used only when an
// attribute cannot be found by name.
var positions = map[string]int{
	attrVulnNum:      0,
	attrSeverity:     1,
	attrGroupTitle:   2,
	attrRuleID:       3,
	attrRuleVer:      4,
	attrRuleTitle:    5,
	attrVulnDiscuss:  6,
	attrCheckContent: 8,
	attrFixText:      9,
	attrSTIGRef:      21,
}

// attribute is one (VULN_ATTRIBUTE, ATTRIBUTE_DATA) pair of a VULN.
type attribute struct {
	name  string
	value string
}

// lookup finds an attribute value in two passes: by name anywhere in the
// list first, then by conventional index. The positional pass only accepts
// an entry whose name is not itself a recognised attribute, so a reordered
// export never yields the value of a different attribute.
func lookup(attrs []attribute, name string) string {
	for _, a := range attrs {
		if strings.EqualFold(a.name, name) {
			return a.value
		}
	}

	i, ok := positions[name]
	if !ok || i >= len(attrs) {
		return ""
	}
	if isKnown(attrs[i].name) {
		return ""
	}
	return attrs[i].value
}

// lookupAll returns every non-empty value of a repeated attribute.
func lookupAll(attrs []attribute, name string) []string {
	var out []string
	for _, a := range attrs {
		if strings.EqualFold(a.name, name) && a.value != "" {
			out = append(out, a.value)
		}
	}
	return out
}

func isKnown(name string) bool {
	if name == "" {
		return false
	}
	for known := range positions {
		if strings.EqualFold(known, name) {
			return true
		}
	}
	return strings.EqualFold(name, attrCCIRef) || strings.EqualFold(name, attrLegacyID)
}
