// Package tree fetches a repository's file tree and downloads the text
// files worth summarizing.
package tree

// FileArtifact is one downloaded file from the repository tree. Path is
// unique within a run. RevisionTag is the blob SHA the host reports for the
// content; identical tags across runs mean identical content.
type FileArtifact struct {
	Path        string
	RevisionTag string
	Content     string
}
