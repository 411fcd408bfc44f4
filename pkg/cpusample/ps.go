package cpusample

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// psFallback sums the %CPU column of ps output for matching commands.
// Used when process enumeration is unavailable.
func psFallback(ctx context.Context, namePattern string) (float64, error) {
	cmd := exec.CommandContext(ctx, "ps", "-A", "-o", "%cpu=,comm=")
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("failed to execute ps: %w", err)
	}

	return parsePSOutput(string(output), namePattern)
}

// parsePSOutput parses "%cpu command" lines and sums the CPU of
// commands containing namePattern, case-insensitively.
func parsePSOutput(output, namePattern string) (float64, error) {
	pattern := strings.ToLower(namePattern)
	total := 0.0

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		fields := strings.SplitN(line, " ", 2)
		if len(fields) != 2 {
			continue
		}

		command := strings.TrimSpace(fields[1])
		if !strings.Contains(strings.ToLower(command), pattern) {
			continue
		}

		pct, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			continue
		}
		total += pct
	}

	return total, nil
}
