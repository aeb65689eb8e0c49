package parser

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"regexp"
	"strings"
)

var (
	cueTimingRe = regexp.MustCompile(`^(\d{1,2}:)?\d{2}:\d{2}[.,]\d{3}\s+-->\s+(\d{1,2}:)?\d{2}:\d{2}[.,]\d{3}`)
	cueIndexRe  = regexp.MustCompile(`^\d+$`)
	inlineTagRe = regexp.MustCompile(`<[^>]*>`)
)

type subtitleState struct {
	inHeader bool
	inNote   bool
	// a cue block starts at the top of the file or after a blank line
	atBlockStart bool
	last         string
	lines        []string
}

// ReadTranscriptFile loads a transcript from disk. SubRip and WebVTT files
// are reduced to their caption text; anything else is returned as is.
func ReadTranscriptFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read transcript %s: %w", path, err)
	}
	if !IsSubtitles(data) {
		return string(data), nil
	}
	text, err := ParseSubtitles(data)
	if err != nil {
		return "", fmt.Errorf("parse subtitles %s: %w", path, err)
	}
	return text, nil
}

// newLineScanner returns a scanner whose buffer can hold the longest line
// in data.
func newLineScanner(data []byte) *bufio.Scanner {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), max(len(data)+1, bufio.MaxScanTokenSize))
	return scanner
}

// IsSubtitles reports whether data looks like a WebVTT or SubRip file.
func IsSubtitles(data []byte) bool {
	scanner := newLineScanner(data)
	for checked := 0; scanner.Scan() && checked < 5; {
		line := strings.TrimSpace(strings.TrimPrefix(scanner.Text(), "\ufeff"))
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "WEBVTT") || cueTimingRe.MatchString(line) {
			return true
		}
		checked++
	}
	return false
}

// ParseSubtitles joins the caption lines of a WebVTT or SubRip file with
// single spaces. Timings, cue numbers, NOTE blocks and inline tags are
// dropped, and a line repeating the previous one is skipped, as rolling
// auto-generated captions repeat every line once.
func ParseSubtitles(data []byte) (string, error) {
	state := subtitleState{atBlockStart: true}
	scanner := newLineScanner(data)
	for scanner.Scan() {
		processSubtitleLine(scanner.Text(), &state)
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return strings.Join(state.lines, " "), nil
}

func processSubtitleLine(raw string, state *subtitleState) {
	line := strings.TrimSpace(strings.TrimPrefix(raw, "\ufeff"))
	if line == "" {
		state.inHeader, state.inNote = false, false
		state.atBlockStart = true
		return
	}
	blockStart := state.atBlockStart
	state.atBlockStart = false

	switch {
	case strings.HasPrefix(line, "WEBVTT"):
		state.inHeader = true
		return
	case line == "NOTE" || strings.HasPrefix(line, "NOTE "):
		state.inNote = true
		return
	case state.inHeader || state.inNote:
		return
	case cueTimingRe.MatchString(line):
		return
	case blockStart && cueIndexRe.MatchString(line):
		// a number inside a cue is spoken text, only a block opener is an index
		return
	}

	text := strings.Join(strings.Fields(inlineTagRe.ReplaceAllString(line, "")), " ")
	if text == "" || text == state.last {
		return
	}
	state.last = text
	state.lines = append(state.lines, text)
}
