package storage

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExportMarkdown renders a run and its test outcomes as a markdown document.
func ExportMarkdown(r *Run) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("# Run %s\n\n", r.ID))
	b.WriteString(fmt.Sprintf("- **Language:** %s\n", r.Language))
	if r.Version != "" {
		b.WriteString(fmt.Sprintf("- **Version:** %s\n", r.Version))
	}
	b.WriteString(fmt.Sprintf("- **Status:** %s\n", r.Status))
	b.WriteString(fmt.Sprintf("- **Passed:** %d/%d\n", r.TestsPassed, r.TestsTotal))
	b.WriteString(fmt.Sprintf("- **Created:** %s\n", r.CreatedAt.Format("2006-01-02 15:04:05")))
	if r.Error != "" {
		b.WriteString(fmt.Sprintf("- **Error:** %s\n", r.Error))
	}
	b.WriteString("\n---\n\n")

	b.WriteString(fmt.Sprintf("## Code\n\n```%s\n%s\n```\n\n", r.Language, r.Request.Code))

	if r.Result == nil {
		return b.String()
	}

	for i, e := range r.Result.Executions {
		verdict := "FAIL"
		if e.Passed() {
			verdict = "PASS"
		}
		b.WriteString(fmt.Sprintf("## Test %d: %s\n\n", i+1, verdict))
		b.WriteString(fmt.Sprintf("**Input**\n```\n%s\n```\n\n", e.Input))
		b.WriteString(fmt.Sprintf("**Expected**\n```\n%s\n```\n\n", e.ExpectedOutput))
		b.WriteString(fmt.Sprintf("**Actual**\n```\n%s\n```\n\n", e.ActualOutput))
		if e.Stderr != nil {
			b.WriteString(fmt.Sprintf("<details>\n<summary>stderr</summary>\n\n```\n%s\n```\n</details>\n\n", *e.Stderr))
		}
		if e.TimeLimitExceeded {
			b.WriteString("_time limit exceeded_\n\n")
		}
	}

	return b.String()
}

// ExportJSON renders a run as formatted JSON.
func ExportJSON(r *Run) ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}
