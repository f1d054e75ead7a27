package pipeline

// Event is one progress record emitted by a streaming run. Exactly one
// field is set per event; consumers dispatch on whichever is non-zero.
type Event struct {
	Status             string       `json:"status,omitempty"`
	Error              string       `json:"error,omitempty"`
	FileSummary        *FileSummary `json:"file_summary,omitempty"`
	ProjectSummaryFile string       `json:"project_summary_file,omitempty"`
}

// FileSummary pairs a repository path with its generated summary text.
type FileSummary struct {
	Path    string `json:"path"`
	Summary string `json:"summary"`
}

// StatusCompleted is the status text of the final event of a streaming run
// that reached the end of the pipeline.
const StatusCompleted = "Completed"
