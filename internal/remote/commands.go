package remote

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/pedrodavics/PGR/internal/models"
)

// LoadCommands reads one command per line from path. Blank lines and lines
// starting with # are skipped.
func LoadCommands(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening commands file: %w", err)
	}
	defer f.Close()

	var commands []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		commands = append(commands, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading commands file: %w", err)
	}
	return commands, nil
}

// Text renders results as "<command>:\n<output>\n" blocks in order.
func Text(results []models.RemoteCommandResult) string {
	var sb strings.Builder
	for _, r := range results {
		sb.WriteString(r.Command)
		sb.WriteString(":\n")
		sb.WriteString(r.Output)
		if !strings.HasSuffix(r.Output, "\n") {
			sb.WriteByte('\n')
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
