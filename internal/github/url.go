package github

import (
	"fmt"
	"regexp"
	"strings"
)

// RepositoryRef identifies one repository on the source host.
type RepositoryRef struct {
	Owner string
	Name  string
}

func (r RepositoryRef) String() string {
	return r.Owner + "/" + r.Name
}

// repoURLPattern accepts browser-style repository URLs:
//
//	https://<host>/<owner>/<repo>
//	https://<host>/<owner>/<repo>.git
//	https://<host>/<owner>/<repo>/
//
// Deeper paths (blob views, subtrees), query strings and non-HTTPS schemes
// are rejected.
var repoURLPattern = regexp.MustCompile(`^https://[\w.\-]+/([\w\-]+)/([\w.\-]+?)(?:\.git)?/?$`)

// ParseRepoURL extracts the owner and repository name from a repository URL.
// A trailing ".git" or "/" is tolerated and stripped.
func ParseRepoURL(raw string) (RepositoryRef, error) {
	m := repoURLPattern.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return RepositoryRef{}, fmt.Errorf("invalid repository URL %q: expected https://<host>/<owner>/<repo>", raw)
	}
	return RepositoryRef{Owner: m[1], Name: m[2]}, nil
}
