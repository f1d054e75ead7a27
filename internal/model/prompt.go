package model

import "fmt"

// ChunkDelimiter joins per-chunk summaries into one file summary. The same
// divider separates batch sections in the final report, so both documents
// read as one consistent format.
const ChunkDelimiter = "\n\n---\n\n"

func chunkPrompt(path string, index, total int, chunkText string) string {
	if total > 1 {
		return fmt.Sprintf(
			"You are summarizing the source file %s, part %d of %d.\n"+
				"Describe what this portion does: its purpose, key definitions, and notable logic. Be concise.\n\n%s",
			path, index+1, total, chunkText)
	}
	return fmt.Sprintf(
		"Summarize the source file %s.\n"+
			"Describe its purpose, key definitions, and notable logic. Be concise.\n\n%s",
		path, chunkText)
}
