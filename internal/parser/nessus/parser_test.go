package nessus

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heartmarshall/grc-backend/internal/domain"
)

func testdata(t *testing.T, name string) []byte {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("cannot determine test file path")
	}
	data, err := os.ReadFile(filepath.Join(filepath.Dir(file), "testdata", name))
	require.NoError(t, err)
	return data
}

const singleCritical = `<NessusClientData_v2>
<Policy><policyName>Basic</policyName></Policy>
<Report name="one">
<ReportHost name="h1">
<ReportItem port="22" protocol="tcp" severity="4" pluginID="1" pluginName="p" pluginFamily="Misc."/>
</ReportHost>
</Report>
</NessusClientData_v2>`

func TestParse_ScenarioB(t *testing.T) {
	t.Parallel()

	scan, err := Parse([]byte(singleCritical))
	require.NoError(t, err)

	assert.Equal(t, 1, scan.Summary.CriticalCount)
	assert.Equal(t, 1, scan.Summary.SeverityBreakdown["critical"])
	assert.Equal(t, 1, scan.Summary.HostCount)
	assert.Equal(t, 1, scan.Summary.VulnerabilityCount)
}

func TestParse_Summary(t *testing.T) {
	t.Parallel()

	scan, err := Parse(testdata(t, "two_hosts.nessus"))
	require.NoError(t, err)

	s := scan.Summary
	assert.Equal(t, 2, s.HostCount)
	assert.Equal(t, 3, s.VulnerabilityCount, "informational items are not vulnerabilities")
	assert.Equal(t, map[string]int{"info": 1, "low": 1, "medium": 1, "high": 0, "critical": 1}, s.SeverityBreakdown)
	assert.Equal(t, map[string]int{"Windows": 1, "Settings": 1, "General": 2}, s.PluginFamilies)
	assert.Equal(t, 2, s.UniqueCVEs)
	assert.Equal(t, 1, s.CriticalCount)
	assert.Equal(t, 0, s.HighCount)
	assert.Equal(t, 1, s.MediumCount)
	assert.Equal(t, 1, s.LowCount)
	assert.Equal(t, 1, s.InfoCount)
}

func TestParse_Report(t *testing.T) {
	t.Parallel()

	scan, err := Parse(testdata(t, "two_hosts.nessus"))
	require.NoError(t, err)

	assert.Equal(t, domain.FormatNessus, scan.Format)
	assert.Equal(t, "Quarterly enclave scan", scan.Name)
	assert.Equal(t, "Advanced Scan", scan.PolicyName)

	require.NotNil(t, scan.StartedAt)
	require.NotNil(t, scan.FinishedAt)
	assert.Equal(t, 9, scan.StartedAt.Hour())
	assert.Equal(t, 45, scan.FinishedAt.Minute())
	assert.True(t, scan.FinishedAt.After(*scan.StartedAt))
	assert.Equal(t, time.March, scan.StartedAt.Month())
}

func TestParse_Hosts(t *testing.T) {
	t.Parallel()

	scan, err := Parse(testdata(t, "two_hosts.nessus"))
	require.NoError(t, err)
	require.Len(t, scan.Hosts, 2)

	h := scan.Hosts[0]
	assert.Equal(t, "10.0.0.5", h.Name)
	assert.Equal(t, "10.0.0.5", h.IP)
	assert.Equal(t, "web01.example.mil", h.FQDN)
	assert.Equal(t, "WEB01", h.NetBIOSName)
	assert.Equal(t, "Microsoft Windows Server 2019", h.OperatingSystem)
	assert.Equal(t, 2, h.ItemCount)
	assert.Equal(t, 1, h.SeverityCounts["critical"])

	assert.Equal(t, "10.0.0.5", scan.Asset.HostName)
	assert.Equal(t, []string{"00:11:22:33:44:55"}, scan.Asset.HostMACs)
}

func TestParse_Items(t *testing.T) {
	t.Parallel()

	scan, err := Parse(testdata(t, "two_hosts.nessus"))
	require.NoError(t, err)
	require.Len(t, scan.Findings, 4)

	crit := scan.Findings[0]
	require.NotNil(t, crit.Plugin)
	assert.Equal(t, "critical", crit.SourceSeverity)
	assert.Equal(t, domain.SeverityCat1, crit.Severity)
	assert.Equal(t, domain.StatusOpen, crit.Status)
	assert.Equal(t, "97833", crit.Rule.RuleID)
	assert.Equal(t, 445, crit.Plugin.Port)
	assert.Equal(t, "cifs", crit.Plugin.Service)
	assert.Equal(t, []string{"CVE-2017-0143", "CVE-2017-0144"}, crit.Plugin.CVEs)
	assert.Equal(t, 10.0, crit.Plugin.CVSSBaseScore)
	assert.InDelta(t, 8.1, crit.Plugin.CVSS3BaseScore, 0.001, "v3 score derived from the vector")

	info := scan.Findings[1]
	assert.Equal(t, domain.SeverityCat3, info.Severity)
	assert.Equal(t, domain.StatusNotAFinding, info.Status)
	assert.Equal(t, "Nessus version : 10.6.1", info.Plugin.Output)

	medium := scan.Findings[2]
	assert.Equal(t, domain.SeverityCat2, medium.Severity)
	assert.Equal(t, 6.5, medium.Plugin.CVSS3BaseScore)
	assert.Equal(t, "10.0.0.6", medium.Plugin.Host)
}

func TestParse_SeverityFallsBackToRiskFactor(t *testing.T) {
	t.Parallel()

	raw := `<NessusClientData_v2><Policy/><Report name="r"><ReportHost name="h">
<ReportItem severity="" pluginID="2" pluginFamily="x"><risk_factor>High</risk_factor></ReportItem>
<ReportItem severity="9" pluginID="3" pluginFamily="x"></ReportItem>
</ReportHost></Report></NessusClientData_v2>`

	scan, err := Parse([]byte(raw))
	require.NoError(t, err)
	require.Len(t, scan.Findings, 2)

	assert.Equal(t, "high", scan.Findings[0].SourceSeverity)
	assert.Equal(t, domain.SeverityCat1, scan.Findings[0].Severity)

	unknown := scan.Findings[1]
	assert.Equal(t, domain.SeverityCat2, unknown.Severity)
	assert.Equal(t, domain.StatusNotReviewed, unknown.Status)
	assert.Equal(t, 1, scan.Summary.VulnerabilityCount)
}

func TestParse_STIGSeverityOverridesScale(t *testing.T) {
	t.Parallel()

	raw := `<NessusClientData_v2><Policy/><Report name="r"><ReportHost name="h">
<ReportItem severity="1" pluginID="10" pluginFamily="Policy Compliance"><stig_severity>I</stig_severity></ReportItem>
<ReportItem severity="4" pluginID="11" pluginFamily="Policy Compliance"><stig_severity>CAT III</stig_severity></ReportItem>
<ReportItem severity="0" pluginID="12" pluginFamily="Policy Compliance"><stig_severity>II</stig_severity></ReportItem>
<ReportItem severity="3" pluginID="13" pluginFamily="Policy Compliance"><stig_severity>IV</stig_severity></ReportItem>
</ReportHost></Report></NessusClientData_v2>`

	scan, err := Parse([]byte(raw))
	require.NoError(t, err)
	require.Len(t, scan.Findings, 4)

	tests := []struct {
		source   string
		severity domain.SeverityCategory
		status   domain.Status
	}{
		{source: "low", severity: domain.SeverityCat1, status: domain.StatusOpen},
		{source: "critical", severity: domain.SeverityCat3, status: domain.StatusOpen},
		{source: "info", severity: domain.SeverityCat2, status: domain.StatusNotAFinding},
		{source: "high", severity: domain.SeverityCat1, status: domain.StatusOpen},
	}
	for i, tt := range tests {
		f := scan.Findings[i]
		assert.Equal(t, tt.source, f.SourceSeverity, "finding %d", i)
		assert.Equal(t, tt.severity, f.Severity, "finding %d", i)
		assert.Equal(t, tt.status, f.Status, "finding %d", i)
	}
}

func TestParse_EmptyReport(t *testing.T) {
	t.Parallel()

	scan, err := Parse([]byte(`<NessusClientData_v2><Policy/><Report name="empty"/></NessusClientData_v2>`))
	require.NoError(t, err)
	assert.Zero(t, scan.Summary.HostCount)
	assert.Empty(t, scan.Findings)
	assert.Len(t, scan.Summary.SeverityBreakdown, 5)
}

func TestParse_FormatErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     string
		element string
	}{
		{"empty", "", ""},
		{"not xml", "<NessusClientData_v2><Policy>", ""},
		{"wrong root", "<CHECKLIST/>", "NessusClientData_v2"},
		{"missing policy", "<NessusClientData_v2><Report/></NessusClientData_v2>", "Policy"},
		{"missing report", "<NessusClientData_v2><Policy/></NessusClientData_v2>", "Report"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Parse([]byte(tt.raw))
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrFormat))

			var fe *domain.FormatError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, domain.FormatNessus, fe.Format)
			assert.Equal(t, tt.element, fe.Element)
		})
	}
}

func TestScoreFromVector(t *testing.T) {
	t.Parallel()

	tests := []struct {
		vector string
		want   float64
	}{
		{"", 0},
		{"garbage", 0},
		{"CVSS2#AV:N/AC:L/Au:N/C:C/I:C/A:C", 10.0},
		{"CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:U/C:H/I:H/A:H", 9.8},
		{"CVSS:3.0/AV:N/AC:L/PR:N/UI:N/S:U/C:L/I:L/A:N", 6.5},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, scoreFromVector(tt.vector), 0.001, tt.vector)
	}
}
