package tracker

import "unicode/utf8"

const maxLoggedLine = 128

// abbreviate keeps log lines bounded when a peer sends garbage. The cut never
// splits a UTF-8 sequence.
func abbreviate(line string) string {
	if len(line) <= maxLoggedLine {
		return line
	}
	cut := maxLoggedLine
	for cut > 0 && !utf8.RuneStart(line[cut]) {
		cut--
	}
	return line[:cut] + "..."
}
