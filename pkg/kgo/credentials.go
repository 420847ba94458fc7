package kgo

import (
	"bufio"
	"fmt"
	"io"
)

// parseCredentialsFile implements the persisted-state format of
// spec.md §6: two non-empty lines separated by '\n' — username then
// password — with empty lines filtered.
func parseCredentialsFile(r io.Reader) (user, password string, err error) {
	var lines []string
	s := bufio.NewScanner(r)
	for s.Scan() {
		line := s.Text()
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := s.Err(); err != nil {
		return "", "", err
	}
	if len(lines) < 2 {
		return "", "", fmt.Errorf("kgo: credentials file must contain a username and password line, got %d non-empty lines", len(lines))
	}
	return lines[0], lines[1], nil
}
