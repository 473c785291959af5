// Package parser extracts journal metadata from commit messages.
//
// A journaled commit message looks like:
//
//	Fix login redirect
//	[1][30][done]
//	Longer description, any number of lines.
//
// The second non-empty line carries bracketed tokens: numeric tokens fold
// into a duration in minutes, a token without digits is the status.
package parser

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	tokenRe  = regexp.MustCompile(`\[(.*?)\]`)
	numberRe = regexp.MustCompile(`\d+`)
)

// maxGroups is the number of numeric groups from which a token is malformed.
const maxGroups = 3

// Result holds the output of parsing a commit message.
type Result struct {
	Title       string
	Description string
	Duration    int // minutes
	Status      string
}

// Parse splits message into title, metadata and description.
func Parse(message string) *Result {
	lines := Lines(message)
	duration, status := ParseMeta(message)

	title := ""
	if len(lines) > 0 {
		title = lines[0]
	} else {
		title = strings.TrimRight(strings.SplitN(message, "\n", 2)[0], "\r")
	}

	description := ""
	if len(lines) > 2 {
		description = strings.Join(lines[2:], "\n")
	}

	return &Result{
		Title:       title,
		Description: description,
		Duration:    duration,
		Status:      status,
	}
}

// Lines returns the non-blank lines of message in order.
func Lines(message string) []string {
	var out []string
	for _, line := range strings.Split(message, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, line)
	}
	return out
}

// ParseMeta returns the duration in minutes and the status encoded on the
// second non-empty line of message. Messages without such a line yield (0, "").
func ParseMeta(message string) (int, string) {
	lines := Lines(message)
	if len(lines) < 2 {
		return 0, ""
	}
	return parseMetaLine(lines[1])
}

func parseMetaLine(line string) (int, string) {
	duration := 0
	status := ""
	for _, m := range tokenRe.FindAllStringSubmatch(line, -1) {
		token := m[1]
		groups := numberRe.FindAllString(token, -1)
		switch {
		case len(groups) == 0:
			status = token
		case len(groups) < maxGroups:
			duration = fold(duration, groups)
		}
	}
	return duration, status
}

// maxDuration caps a folded duration; a token that would pass it is malformed.
const maxDuration = math.MaxInt32

// fold accumulates numeric groups as base-60 digits, so [1][30] reads as
// one hour thirty. A token whose fold leaves [0, maxDuration] is dropped
// and duration is returned unchanged.
func fold(duration int, groups []string) int {
	acc := duration
	for _, g := range groups {
		n, err := strconv.Atoi(g)
		if err != nil || n > maxDuration || acc > (maxDuration-n)/60 {
			return duration
		}
		acc = acc*60 + n
	}
	return acc
}
