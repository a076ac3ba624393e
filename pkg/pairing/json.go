package pairing

// extractJSONObject returns the first balanced {...} substring of s.
// Brace depth is tracked outside JSON strings so log lines containing
// braces, or braces inside quoted values, cannot truncate the object.
func extractJSONObject(s string) (string, bool) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i, r := range s {
		if inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			}

			continue
		}

		switch r {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}

			depth++
		case '}':
			if depth == 0 {
				continue
			}

			depth--

			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}

	return "", false
}
