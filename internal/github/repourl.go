package github

import (
	"regexp"
	"strings"
)

var repoURLRe = regexp.MustCompile(`(?i)github\.com[/:]([^/]+)/([^/#?]+)`)

// ParseRepoURL extracts owner and repository from a GitHub URL such as
// https://github.com/owner/repo/tree/main. ok is false when url does not
// name a repository.
func ParseRepoURL(url string) (owner, repo string, ok bool) {
	m := repoURLRe.FindStringSubmatch(strings.TrimSpace(url))
	if m == nil {
		return "", "", false
	}
	owner, repo = m[1], strings.TrimSuffix(m[2], ".git")
	if owner == "" || repo == "" {
		return "", "", false
	}
	return owner, repo, true
}
