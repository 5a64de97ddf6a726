package rules

import (
	"fmt"
	"strings"

	"github.com/mkarlsson/taskgraph/pkg/model"
)

// foundationWords mark tasks that typically prepare the ground for others
var foundationWords = []string{"setup", "set up", "configure", "install", "initialize", "create", "scaffold"}

// buildWords mark tasks that typically build on prepared ground
var buildWords = []string{"implement", "develop", "build", "integrate", "extend", "use", "test"}

// domainWords are shared subject-matter keywords; two tasks mentioning the
// same one are likely logically related
var domainWords = []string{"database", "schema", "migration", "api", "endpoint", "auth", "login", "ui", "frontend", "backend", "deploy", "pipeline", "cache", "config"}

// InferLogicalDependency applies the keyword heuristic between a dependent
// task and its dependency: a setup-style dependency under an implement-style
// dependent, or a shared domain keyword, suggests the edge encodes a real
// ordering even when nothing structural proves it. The result is advisory
// and never blocks a mutation on its own.
func InferLogicalDependency(task, dependency *model.Task) (bool, string) {
	taskText := keywordText(task)
	depText := keywordText(dependency)

	if containsAny(depText, foundationWords) && containsAny(taskText, buildWords) {
		return true, fmt.Sprintf("%s looks like groundwork for %s", dependency.ID, task.ID)
	}

	for _, word := range domainWords {
		if strings.Contains(taskText, word) && strings.Contains(depText, word) {
			return true, fmt.Sprintf("%s and %s both concern %q", task.ID, dependency.ID, word)
		}
	}

	return false, ""
}

func keywordText(t *model.Task) string {
	return strings.ToLower(t.Title + " " + t.Description)
}

func containsAny(text string, words []string) bool {
	for _, word := range words {
		if strings.Contains(text, word) {
			return true
		}
	}
	return false
}
