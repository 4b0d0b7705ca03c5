package remote

import "strings"

// BenignPattern marks stderr of a command as harmless. It matches when the
// command's program name equals Command and stderr contains Contains.
type BenignPattern struct {
	Command  string
	Contains string
}

// DefaultBenign is the df warning about an unreachable gvfs mount.
var DefaultBenign = []BenignPattern{{Command: "df", Contains: "gvfs"}}

// Matches reports whether the pattern applies to command and stderr.
func (p BenignPattern) Matches(command, stderr string) bool {
	fields := strings.Fields(command)
	if len(fields) == 0 || p.Contains == "" {
		return false
	}
	prog := fields[0]
	if i := strings.LastIndex(prog, "/"); i >= 0 {
		prog = prog[i+1:]
	}
	return prog == p.Command && strings.Contains(stderr, p.Contains)
}

func benign(patterns []BenignPattern, command, stderr string) bool {
	for _, p := range patterns {
		if p.Matches(command, stderr) {
			return true
		}
	}
	return false
}
