package main

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const configFileName = ".attackbuilderrc"

type Config struct {
	SaveDirectory string
	Catalog       string
	StartTemplate string
	HistoryLimit  int
	SnapshotDB    string
	LogFile       string
	Confirmations bool
	WatchCatalog  bool
}

func defaultConfig() *Config {
	return &Config{
		HistoryLimit:  50,
		Confirmations: true,
		WatchCatalog:  true,
	}
}

// loadConfig reads ~/.attackbuilderrc. A missing or unreadable file yields
// the defaults.
func loadConfig() *Config {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		c := defaultConfig()
		c.fillPaths("")
		return c
	}

	file, err := os.Open(filepath.Join(homeDir, configFileName))
	if err != nil {
		c := defaultConfig()
		c.fillPaths(homeDir)
		return c
	}
	defer file.Close()

	c := parseConfig(file, homeDir)
	c.fillPaths(homeDir)
	return c
}

func parseConfig(r io.Reader, homeDir string) *Config {
	config := defaultConfig()

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		switch strings.ToLower(key) {
		case "savedirectory", "save_directory", "savedir":
			config.SaveDirectory = expandPath(value, homeDir)
		case "catalog":
			config.Catalog = expandPath(value, homeDir)
		case "start_template", "starttemplate", "template":
			config.StartTemplate = value
		case "history_limit", "historylimit":
			if n, err := strconv.Atoi(value); err == nil && n > 0 {
				config.HistoryLimit = n
			}
		case "snapshot_db", "snapshotdb":
			config.SnapshotDB = expandPath(value, homeDir)
		case "log_file", "logfile":
			config.LogFile = expandPath(value, homeDir)
		case "confirmations", "confirm":
			config.Confirmations = strings.ToLower(value) == "true"
		case "watch_catalog", "watchcatalog":
			config.WatchCatalog = strings.ToLower(value) == "true"
		}
	}

	return config
}

// fillPaths sets the data file locations the config file left empty.
func (c *Config) fillPaths(homeDir string) {
	dataDir := filepath.Join(homeDir, ".attackbuilder")
	if homeDir == "" {
		dataDir = ".attackbuilder"
	}
	if c.SnapshotDB == "" {
		c.SnapshotDB = filepath.Join(dataDir, "snapshots.db")
	}
	if c.LogFile == "" {
		c.LogFile = filepath.Join(dataDir, "attackbuilder.log")
	}
}

func expandPath(value, homeDir string) string {
	if strings.HasPrefix(value, "~") && homeDir != "" {
		value = filepath.Join(homeDir, strings.TrimPrefix(value, "~"))
	}
	if value != "" && !filepath.IsAbs(value) {
		if absPath, err := filepath.Abs(value); err == nil {
			value = absPath
		}
	}
	return value
}

func (c *Config) GetSavePath(filename string) string {
	if c.SaveDirectory == "" || filepath.IsAbs(filename) {
		return filename
	}
	os.MkdirAll(c.SaveDirectory, 0755)
	return filepath.Join(c.SaveDirectory, filename)
}
