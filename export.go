package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// withExtension appends ext unless filename already ends with it.
func withExtension(filename, ext string) string {
	if strings.HasSuffix(strings.ToLower(filename), ext) {
		return filename
	}
	return filename + ext
}

func (m *model) exportJSON(filename string) (string, error) {
	data, err := m.editor.Export()
	if err != nil {
		return "", err
	}
	path := m.config.GetSavePath(withExtension(filename, ".json"))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return absPath(path), nil
}

func (m *model) importJSON(filename string) (string, error) {
	path := withExtension(filename, ".json")
	if _, err := os.Stat(path); err != nil {
		path = m.config.GetSavePath(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	if _, err := m.editor.Import(data); err != nil {
		return "", err
	}
	return absPath(path), nil
}

func (m *model) exportVisualTXT(filename string) (string, error) {
	lines, err := renderWhole(m.editor.Snapshot())
	if err != nil {
		return "", err
	}
	path := m.config.GetSavePath(withExtension(filename, ".txt"))
	file, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	for _, line := range lines {
		fmt.Fprintln(file, line)
	}
	return absPath(path), nil
}

func (m *model) exportPNG(filename string) (string, error) {
	path := m.config.GetSavePath(withExtension(filename, ".png"))
	if err := ExportToPNG(m.editor.Snapshot(), path); err != nil {
		return "", err
	}
	return absPath(path), nil
}

// targetPath is where a file operation on filename would write.
func (m *model) targetPath(op FileOperation, filename string) string {
	switch op {
	case FileOpExport:
		return m.config.GetSavePath(withExtension(filename, ".json"))
	case FileOpSavePNG:
		return m.config.GetSavePath(withExtension(filename, ".png"))
	case FileOpSaveVisualTXT:
		return m.config.GetSavePath(withExtension(filename, ".txt"))
	default:
		return ""
	}
}

func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
