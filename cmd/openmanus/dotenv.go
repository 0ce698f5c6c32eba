// ABOUTME: Minimal .env loader applied before flag parsing.
// ABOUTME: Existing environment variables always win over file values.
package main

import (
	"bufio"
	"os"
	"strings"
)

// loadDotEnv applies KEY=VALUE pairs from path to the environment, skipping
// any key already set. A missing or unreadable file is not an error.
func loadDotEnv(path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		key, value, ok := parseEnvLine(sc.Text())
		if !ok {
			continue
		}
		if _, set := os.LookupEnv(key); set {
			continue
		}
		os.Setenv(key, value)
	}
}

// parseEnvLine interprets one .env line. Handles comments, blank lines, an
// optional "export " prefix, and quoted values. The value may itself
// contain '='.
func parseEnvLine(raw string) (key, value string, ok bool) {
	line := strings.TrimSpace(raw)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", "", false
	}
	line = strings.TrimPrefix(line, "export ")

	key, value, found := strings.Cut(line, "=")
	if !found {
		return "", "", false
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", "", false
	}
	return key, unquoteEnv(strings.TrimSpace(value)), true
}

// unquoteEnv strips one matching pair of single or double quotes.
func unquoteEnv(v string) string {
	if len(v) < 2 {
		return v
	}
	head, tail := v[0], v[len(v)-1]
	if head != tail || (head != '"' && head != '\'') {
		return v
	}
	return v[1 : len(v)-1]
}
