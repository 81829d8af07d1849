// pattern: Functional Core

package git

import (
	"strconv"
	"strings"

	"wtctl/internal/worktree"
)

// ParsePorcelain parses `git worktree list --porcelain` output.
//
// Blocks are separated by a blank line. A block without both a `worktree`
// and a `HEAD` line is dropped. The first block of the output is the main
// worktree. linkedPath, when non-empty, marks the entry it resolves to as
// linked.
func ParsePorcelain(output, linkedPath string) []worktree.Worktree {
	output = strings.ReplaceAll(output, "\r\n", "\n")
	if strings.TrimSpace(output) == "" {
		return []worktree.Worktree{}
	}

	linked := ""
	if linkedPath != "" {
		linked = worktree.Canonical(linkedPath)
	}

	blocks := strings.Split(strings.TrimSpace(output), "\n\n")
	result := make([]worktree.Worktree, 0, len(blocks))

	for index, block := range blocks {
		var (
			path, head, branch string
			hasPath, hasHead   bool
			prunable           bool
		)

		for _, line := range strings.Split(block, "\n") {
			line = strings.TrimRight(line, " ")
			switch {
			case strings.HasPrefix(line, "worktree "):
				path = strings.TrimPrefix(line, "worktree ")
				hasPath = true
			case strings.HasPrefix(line, "HEAD "):
				head = strings.TrimPrefix(line, "HEAD ")
				hasHead = true
			case strings.HasPrefix(line, "branch "):
				branch = strings.TrimPrefix(strings.TrimPrefix(line, "branch "), "refs/heads/")
			case line == "detached":
				branch = ""
			case line == "prunable" || strings.HasPrefix(line, "prunable "):
				prunable = true
			}
		}

		if !hasPath || !hasHead {
			continue
		}

		result = append(result, worktree.Worktree{
			Path:       path,
			Branch:     branch,
			Head:       head,
			IsMain:     index == 0,
			IsLinked:   linked != "" && worktree.Canonical(path) == linked,
			IsPrunable: prunable,
			Status:     worktree.NotLoaded,
		})
	}

	return result
}

// StatusCounts are the category totals of `git status --porcelain`.
type StatusCounts struct {
	Staged    int
	Modified  int
	Untracked int
	Conflicts int
}

// ClassifyStatus counts `git status --porcelain` lines by category.
//
// Conflicts (U in either column, AA, DD) and untracked entries are counted
// once. Ignored entries are skipped. Any other line may count as both
// staged and modified.
func ClassifyStatus(output string) StatusCounts {
	var c StatusCounts
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimRight(line, "\r")
		if len(line) < 2 {
			continue
		}
		x, y := line[0], line[1]

		switch {
		case x == 'U' || y == 'U' || (x == 'A' && y == 'A') || (x == 'D' && y == 'D'):
			c.Conflicts++
		case x == '?':
			c.Untracked++
		case x == '!':
		default:
			if x != ' ' && x != '?' {
				c.Staged++
			}
			if y != ' ' && y != '?' {
				c.Modified++
			}
		}
	}
	return c
}

// parseAheadBehind parses `rev-list --left-right --count @{upstream}...HEAD`,
// which prints "<behind>\t<ahead>".
func parseAheadBehind(output string) (ahead, behind *int, ok bool) {
	parts := strings.Fields(strings.TrimSpace(output))
	if len(parts) != 2 {
		return nil, nil, false
	}
	if b, err := strconv.Atoi(parts[0]); err == nil {
		behind = &b
	}
	if a, err := strconv.Atoi(parts[1]); err == nil {
		ahead = &a
	}
	return ahead, behind, ahead != nil || behind != nil
}

// parseMergedBranches parses `git branch --merged` output, dropping the
// current-branch marker and base itself.
func parseMergedBranches(output, base string) []string {
	var branches []string
	for _, line := range strings.Split(output, "\n") {
		name := strings.TrimSpace(line)
		name = strings.TrimPrefix(name, "* ")
		name = strings.TrimPrefix(name, "+ ")
		name = strings.TrimSpace(name)
		if name == "" || name == base || strings.HasPrefix(name, "(") {
			continue
		}
		branches = append(branches, name)
	}
	return branches
}

// findStashIndex returns the index of the first `git stash list` line whose
// message is exactly name, or -1.
func findStashIndex(list, name string) int {
	i := 0
	for _, line := range strings.Split(list, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if strings.HasSuffix(strings.TrimSpace(line), ": "+name) {
			return i
		}
		i++
	}
	return -1
}
