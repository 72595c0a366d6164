package relay

// expandCR rewrites each carriage return typed at the keyboard into the
// CRLF sequence the device side of the line expects. All other bytes pass
// through untouched.
func expandCR(b []byte) []byte {
	n := 0
	for _, c := range b {
		if c == '\r' {
			n++
		}
	}
	if n == 0 {
		return b
	}
	out := make([]byte, 0, len(b)+n)
	for _, c := range b {
		out = append(out, c)
		if c == '\r' {
			out = append(out, '\n')
		}
	}
	return out
}

// lineExpander rewrites bare line feeds from the device into CRLF so output
// lands in the first column on a terminal whose output processing is off.
// A CR already in front of the LF is honored, including across chunk
// boundaries, so CRLF from the device is never doubled.
type lineExpander struct {
	lastCR bool
}

func (e *lineExpander) expand(b []byte) []byte {
	needed := 0
	prev := e.lastCR
	for _, c := range b {
		if c == '\n' && !prev {
			needed++
		}
		prev = c == '\r'
	}
	if needed == 0 {
		if len(b) > 0 {
			e.lastCR = b[len(b)-1] == '\r'
		}
		return b
	}

	out := make([]byte, 0, len(b)+needed)
	for _, c := range b {
		if c == '\n' && !e.lastCR {
			out = append(out, '\r')
		}
		out = append(out, c)
		e.lastCR = c == '\r'
	}
	return out
}
