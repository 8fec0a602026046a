package main

import (
	"os/exec"
	"runtime"
	"strings"

	"github.com/atotto/clipboard"
)

func readClipboardText() (string, error) {
	if runtime.GOOS == "darwin" {
		if output, err := exec.Command("pbpaste", "-Prefer", "txt").Output(); err == nil {
			return string(output), nil
		}
	}
	return clipboard.ReadAll()
}

func writeClipboardText(text string) error {
	return clipboard.WriteAll(text)
}

func isRTF(text string) bool {
	return strings.HasPrefix(text, "{\\rtf") || strings.Contains(text, "\\rtf1")
}

func isHTML(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), "<") &&
		(strings.Contains(text, "<html") || strings.Contains(text, "<body") || strings.Contains(text, "<div") || strings.Contains(text, "<pre"))
}

func extractTextFromHTML(html string) string {
	var result strings.Builder
	result.Grow(len(html))
	inTag := false
	for _, r := range html {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			result.WriteRune(r)
		}
	}
	return strings.NewReplacer(
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", "\"",
		"&#39;", "'",
		"&nbsp;", " ",
		"&amp;", "&",
	).Replace(result.String())
}

// cleanClipboardText turns whatever the clipboard holds into plain text:
// rich text and HTML wrappers are stripped and control characters other
// than whitespace are dropped.
func cleanClipboardText(text string) string {
	if text == "" {
		return text
	}
	switch {
	case isRTF(text):
		text = stripRTF(text)
	case isHTML(text):
		text = extractTextFromHTML(text)
	}
	var result strings.Builder
	result.Grow(len(text))
	for _, r := range text {
		if r == '\n' || r == '\r' || r == '\t' || r >= 32 {
			result.WriteRune(r)
		}
	}
	normalized := result.String()
	normalized = strings.ReplaceAll(normalized, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")
	return strings.TrimSpace(normalized)
}

// stripRTF drops RTF groups and control words. Escaped braces and
// backslashes survive, which matters for pasted JSON.
func stripRTF(text string) string {
	var result strings.Builder
	result.Grow(len(text))
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r == '{' || r == '}' {
			continue
		}
		if r != '\\' {
			result.WriteRune(r)
			continue
		}
		if i+1 >= len(runes) {
			continue
		}
		next := runes[i+1]
		switch {
		case (next >= 'a' && next <= 'z') || (next >= 'A' && next <= 'Z'):
			start := i + 1
			i++
			for i < len(runes) && ((runes[i] >= 'a' && runes[i] <= 'z') || (runes[i] >= 'A' && runes[i] <= 'Z')) {
				i++
			}
			word := string(runes[start:i])
			for i < len(runes) && (runes[i] == '-' || (runes[i] >= '0' && runes[i] <= '9')) {
				i++
			}
			if word == "par" || word == "line" {
				result.WriteRune('\n')
			}
			if i >= len(runes) || runes[i] != ' ' {
				i--
			}
		case next == '\\' || next == '{' || next == '}':
			result.WriteRune(next)
			i++
		case next == '\n' || next == '\r':
			result.WriteRune('\n')
			i++
		}
	}
	return result.String()
}
