package output

import (
	"encoding/xml"
	"fmt"
	"sort"

	"github.com/leonardomso/shortener/internal/shortener"
)

// JUnitFormatter formats reports as JUnit XML for CI/CD integration.
// Only links that could not be shortened are included as test cases:
// unreachable links are failures, unshortened links are errors.
type JUnitFormatter struct{}

// junitTestSuites is the root element for JUnit XML.
type junitTestSuites struct {
	XMLName   xml.Name         `xml:"testsuites"`
	Name      string           `xml:"name,attr"`
	Tests     int              `xml:"tests,attr"`
	Failures  int              `xml:"failures,attr"`
	Errors    int              `xml:"errors,attr"`
	TestSuite []junitTestSuite `xml:"testsuite"`
}

type junitTestSuite struct {
	Name      string          `xml:"name,attr"`
	Tests     int             `xml:"tests,attr"`
	Failures  int             `xml:"failures,attr"`
	Errors    int             `xml:"errors,attr"`
	TestCases []junitTestCase `xml:"testcase"`
}

type junitTestCase struct {
	Name      string        `xml:"name,attr"`
	ClassName string        `xml:"classname,attr"`
	Failure   *junitFailure `xml:"failure,omitempty"`
	Error     *junitError   `xml:"error,omitempty"`
}

type junitFailure struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Content string `xml:",chardata"`
}

type junitError struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Content string `xml:",chardata"`
}

// Format implements Formatter.
func (*JUnitFormatter) Format(report *Report) ([]byte, error) {
	// Group failed entries by file
	fileEntries := map[string][]Entry{}
	for _, e := range filterByStatus(report.Entries, shortener.StatusUnreachable, shortener.StatusUnshortened) {
		name := e.File
		if name == "" {
			name = "input"
		}
		fileEntries[name] = append(fileEntries[name], e)
	}

	files := make([]string, 0, len(fileEntries))
	for f := range fileEntries {
		files = append(files, f)
	}
	sort.Strings(files)

	suites := junitTestSuites{Name: "shortener"}

	for _, file := range files {
		suite := junitTestSuite{Name: file}

		for _, e := range fileEntries[file] {
			suite.Tests++

			tc := junitTestCase{
				Name:      e.Original,
				ClassName: location(e),
			}

			if e.Status == shortener.StatusUnshortened {
				suite.Errors++
				tc.Error = &junitError{
					Message: truncateForXML(errorMessage(e), 200),
					Type:    string(e.Status),
					Content: buildContent(e),
				}
			} else {
				suite.Failures++
				tc.Failure = &junitFailure{
					Message: "Link is unreachable",
					Type:    string(e.Status),
					Content: buildContent(e),
				}
			}

			suite.TestCases = append(suite.TestCases, tc)
		}

		suites.Tests += suite.Tests
		suites.Failures += suite.Failures
		suites.Errors += suite.Errors
		suites.TestSuite = append(suites.TestSuite, suite)
	}

	// If nothing failed, create an empty test suite to indicate success
	if len(suites.TestSuite) == 0 {
		suites.TestSuite = append(suites.TestSuite, junitTestSuite{
			Name:  "all-links",
			Tests: 0,
		})
	}

	data, err := xml.MarshalIndent(suites, "", "  ")
	if err != nil {
		return nil, err
	}

	return append([]byte(xml.Header), data...), nil
}

func errorMessage(e Entry) string {
	if e.Reason != "" {
		return e.Reason
	}
	return "Provider did not return a short link"
}

// buildContent creates detailed test case content.
func buildContent(e Entry) string {
	content := fmt.Sprintf("Domain: %s\n", e.Domain)
	if e.Attempts > 0 {
		content += fmt.Sprintf("Attempts: %d\n", e.Attempts)
	}
	if e.Reason != "" {
		content += fmt.Sprintf("Reason: %s\n", e.Reason)
	}
	return content
}

// truncateForXML truncates a string and ensures it's safe for XML.
func truncateForXML(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
