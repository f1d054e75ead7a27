package report

import (
	"fmt"
	"strings"

	"repodigest/internal/model"
)

func overviewPrompt(projectName string, texts []string, moreFiles int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write a short executive overview of the project %q based on the following file summaries", projectName)
	if moreFiles > 0 {
		fmt.Fprintf(&b, " (and %d more files)", moreFiles)
	}
	b.WriteString(". Focus on what the project does and how it is put together:\n\n")
	b.WriteString(strings.Join(texts, model.ChunkDelimiter))
	return b.String()
}

func batchPrompt(batchText string) string {
	return "Produce a structured analysis of the following file summaries. " +
		"For each file, describe its role in the project and how it relates to the others:\n\n" +
		batchText
}
