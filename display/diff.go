package display

import (
	"fmt"
	"strings"

	"bb-cli/diff"

	"github.com/charmbracelet/lipgloss"
)

var (
	addedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	removedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	hunkStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	fileStyle    = lipgloss.NewStyle().Bold(true)
)

// Diff prints the changed files with per-line coloring: additions
// green, removals red, hunk headers cyan, file headers bold.
func Diff(files []diff.ChangedFile) {
	for i, f := range files {
		if i > 0 {
			fmt.Println()
		}
		DiffFile(f, i, len(files))
	}
}

// DiffFile prints one file's section of a diff.
func DiffFile(f diff.ChangedFile, index, count int) {
	fmt.Println(fileStyle.Render(fmt.Sprintf("%s (%d/%d, %d changed lines)", f.Path, index+1, count, f.ChangedLineCount)))
	if f.Truncated {
		fmt.Print(dimStyle.Render(f.Content))
		return
	}
	for _, line := range strings.Split(strings.TrimRight(f.Content, "\n"), "\n") {
		fmt.Println(renderDiffLine(line))
	}
}

// NoChangedFiles reports an empty diff result. The wording depends on
// whether path patterns narrowed the result.
func NoChangedFiles(filtered bool) {
	Warnf("%s", noChangedFilesMessage(filtered))
}

func noChangedFilesMessage(filtered bool) string {
	if filtered {
		return "No changed files match the given patterns."
	}
	return "No changed files."
}

// NameOnly prints just the paths, one per line.
func NameOnly(files []diff.ChangedFile) {
	for _, f := range files {
		fmt.Println(f.Path)
	}
}

func renderDiffLine(line string) string {
	switch {
	case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"), strings.HasPrefix(line, "diff --git"), strings.HasPrefix(line, "index "):
		return fileStyle.Render(line)
	case strings.HasPrefix(line, "@@"):
		return hunkStyle.Render(line)
	case strings.HasPrefix(line, "+"):
		return addedStyle.Render(line)
	case strings.HasPrefix(line, "-"):
		return removedStyle.Render(line)
	}
	return line
}
