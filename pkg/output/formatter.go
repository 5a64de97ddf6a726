package output

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/mkarlsson/taskgraph/pkg/model"
)

// PrintAuditReport prints a nicely formatted audit report with colors
func PrintAuditReport(storePath string, report *model.Report) {
	// Color definitions
	bold := color.New(color.Bold)
	red := color.New(color.FgRed)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	cyan := color.New(color.FgCyan)

	// Header
	bold.Println("Task Graph - Audit Report")
	bold.Println("=========================")
	fmt.Printf("Store: %s\n", storePath)
	if report.Metrics != nil {
		fmt.Printf("Scanned: %d tasks, %d dependencies\n",
			report.Metrics.TaskCount, report.Metrics.DependencyCount)
	}
	fmt.Println()

	// Issues grouped by severity, critical first
	for _, sev := range []model.Severity{model.SeverityCritical, model.SeverityWarning, model.SeverityInfo} {
		issues := issuesBySeverity(report, sev)
		if len(issues) == 0 {
			continue
		}

		switch sev {
		case model.SeverityCritical:
			red.Printf("CRITICAL (%d):\n", len(issues))
		case model.SeverityWarning:
			yellow.Printf("WARNINGS (%d):\n", len(issues))
		case model.SeverityInfo:
			cyan.Printf("INFO (%d):\n", len(issues))
		}

		for _, issue := range issues {
			fmt.Printf("  [%s] %s\n", issue.Type, issue.Title)
			if issue.Description != "" {
				fmt.Printf("    %s\n", issue.Description)
			}
			if len(issue.AffectedTasks) > 0 {
				cyan.Printf("    Tasks: %s\n", strings.Join(issue.AffectedTasks, ", "))
			}
			if issue.Suggestion != "" {
				fmt.Printf("    Suggestion: %s\n", issue.Suggestion)
			}
		}
		fmt.Println()
	}

	// Applied fixes
	if len(report.Fixes) > 0 {
		bold.Println("AUTO-FIXES:")
		for _, fix := range report.Fixes {
			if fix.Applied {
				green.Printf("  ✓ %s\n", fix.Issue.Title)
			} else {
				red.Printf("  ✗ %s (%s)\n", fix.Issue.Title, fix.Reason)
			}
		}
		fmt.Println()
	}

	// Summary line colored by the worst severity present
	summaryColor := green
	if report.Summary.Warnings > 0 || report.Summary.Info > 0 {
		summaryColor = yellow
	}
	if report.Summary.Critical > 0 {
		summaryColor = red
	}

	summaryColor.Printf("Summary: %d issue(s) - %d critical, %d warning(s), %d info\n",
		report.Summary.Total, report.Summary.Critical,
		report.Summary.Warnings, report.Summary.Info)

	if report.Summary.Total == 0 {
		green.Println("✓ Dependency graph is healthy!")
	}
}

func issuesBySeverity(report *model.Report, sev model.Severity) []model.Issue {
	var out []model.Issue
	for _, issue := range report.Issues {
		if issue.Severity == sev {
			out = append(out, issue)
		}
	}
	return out
}
