package github

import "testing"

func TestParseRepoURL_AcceptedForms(t *testing.T) {
	cases := []struct {
		name  string
		url   string
		owner string
		repo  string
	}{
		{name: "plain", url: "https://github.com/octocat/hello-world", owner: "octocat", repo: "hello-world"},
		{name: "git suffix", url: "https://github.com/octocat/hello-world.git", owner: "octocat", repo: "hello-world"},
		{name: "trailing slash", url: "https://github.com/octocat/hello-world/", owner: "octocat", repo: "hello-world"},
		{name: "git suffix and slash", url: "https://github.com/octocat/hello-world.git/", owner: "octocat", repo: "hello-world"},
		{name: "enterprise host", url: "https://git.corp.example.com/platform/billing", owner: "platform", repo: "billing"},
		{name: "dotted repo name", url: "https://github.com/golang/go.tools", owner: "golang", repo: "go.tools"},
		{name: "surrounding whitespace", url: "  https://github.com/octocat/hello-world\n", owner: "octocat", repo: "hello-world"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ref, err := ParseRepoURL(tc.url)
			if err != nil {
				t.Fatalf("ParseRepoURL(%q) returned error: %v", tc.url, err)
			}
			if ref.Owner != tc.owner || ref.Name != tc.repo {
				t.Errorf("ParseRepoURL(%q) = %s/%s, want %s/%s", tc.url, ref.Owner, ref.Name, tc.owner, tc.repo)
			}
		})
	}
}

func TestParseRepoURL_RejectedForms(t *testing.T) {
	urls := []string{
		"",
		"github.com/octocat/hello-world",
		"http://github.com/octocat/hello-world",
		"https://github.com/octocat",
		"https://github.com/octocat/hello-world/tree/main",
		"https://github.com/octocat/hello-world/blob/main/README.md",
		"https://github.com/octocat/hello world",
		"git@github.com:octocat/hello-world.git",
	}

	for _, url := range urls {
		if _, err := ParseRepoURL(url); err == nil {
			t.Errorf("ParseRepoURL(%q) accepted, want error", url)
		}
	}
}

func TestRepositoryRef_String(t *testing.T) {
	ref := RepositoryRef{Owner: "octocat", Name: "hello-world"}
	if got := ref.String(); got != "octocat/hello-world" {
		t.Errorf("String() = %q, want %q", got, "octocat/hello-world")
	}
}
