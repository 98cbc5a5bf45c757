package nessus

import "encoding/xml"

// Nessus v2 XML internal types for deserialization.

type nessusDocument struct {
	XMLName xml.Name
	Policy  *nessusPolicy `xml:"Policy"`
	Report  *nessusReport `xml:"Report"`
}

type nessusPolicy struct {
	Name string `xml:"policyName"`
}

type nessusReport struct {
	Name  string       `xml:"name,attr"`
	Hosts []reportHost `xml:"ReportHost"`
}

type reportHost struct {
	Name       string       `xml:"name,attr"`
	Properties []hostTag    `xml:"HostProperties>tag"`
	Items      []reportItem `xml:"ReportItem"`
}

type hostTag struct {
	Name  string `xml:"name,attr"`
	Value string `xml:",chardata"`
}

type reportItem struct {
	Port         int    `xml:"port,attr"`
	Service      string `xml:"svc_name,attr"`
	Protocol     string `xml:"protocol,attr"`
	Severity     string `xml:"severity,attr"`
	PluginID     string `xml:"pluginID,attr"`
	PluginName   string `xml:"pluginName,attr"`
	PluginFamily string `xml:"pluginFamily,attr"`

	RiskFactor     string   `xml:"risk_factor"`
	Synopsis       string   `xml:"synopsis"`
	Description    string   `xml:"description"`
	Solution       string   `xml:"solution"`
	PluginOutput   string   `xml:"plugin_output"`
	CVEs           []string `xml:"cve"`
	CVSSBaseScore  string   `xml:"cvss_base_score"`
	CVSSVector     string   `xml:"cvss_vector"`
	CVSS3BaseScore string   `xml:"cvss3_base_score"`
	CVSS3Vector    string   `xml:"cvss3_vector"`
	STIGSeverity   string   `xml:"stig_severity"`
}
