package assist

import (
	"encoding/json"
	"strings"
)

// parseReplies pulls up to max reply strings out of raw model output.
// Preferred shape is a bare JSON array, but models wrap answers in code
// fences or fall back to bullet lists often enough that both are
// handled here rather than retried.
func parseReplies(raw string, max int) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	if replies := parseJSONArray(raw, max); replies != nil {
		return replies
	}
	if fenced := stripCodeFence(raw); fenced != raw {
		if replies := parseJSONArray(fenced, max); replies != nil {
			return replies
		}
	}
	return parseLines(raw, max)
}

func parseJSONArray(raw string, max int) []string {
	// Tolerate prose before or after the array.
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start == -1 || end <= start {
		return nil
	}

	var items []string
	if err := json.Unmarshal([]byte(raw[start:end+1]), &items); err != nil {
		return nil
	}

	var replies []string
	for _, item := range items {
		if s := strings.TrimSpace(item); s != "" {
			replies = append(replies, s)
		}
		if len(replies) == max {
			break
		}
	}
	return replies
}

func stripCodeFence(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "```") {
		return raw
	}
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(strings.TrimSpace(raw), "```")
	return strings.TrimSpace(raw)
}

// parseLines treats each non-empty line as a candidate reply, shedding
// list markers like "1.", "-", and "*".
func parseLines(raw string, max int) []string {
	var replies []string
	for _, line := range strings.Split(raw, "\n") {
		line = trimListMarker(strings.TrimSpace(line))
		if line == "" {
			continue
		}
		replies = append(replies, line)
		if len(replies) == max {
			break
		}
	}
	return replies
}

func trimListMarker(line string) string {
	line = strings.TrimLeft(line, "-*• \t")
	// Numbered markers: "1." or "1)" followed by a space.
	for i, r := range line {
		if r >= '0' && r <= '9' {
			continue
		}
		if (r == '.' || r == ')') && i > 0 && i+1 < len(line) && line[i+1] == ' ' {
			return strings.TrimSpace(line[i+2:])
		}
		break
	}
	return strings.TrimSpace(strings.Trim(line, `"`))
}
