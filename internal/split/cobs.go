// cobs.go - Consistent Overhead Byte Stuffing (spec.md section 4.4:
// "COBS-encoded; 0x00 octets terminate frames"). No COBS implementation
// exists anywhere in the example corpus (checked against the pack's
// manifests), so this is the one piece of internal/split built on the
// standard library alone; see DESIGN.md.
package split

// encodeCOBS returns src encoded per the standard COBS algorithm, with no
// trailing zero delimiter (the caller appends one).
func encodeCOBS(src []byte) []byte {
	if len(src) == 0 {
		return []byte{0x01}
	}
	dst := make([]byte, 0, len(src)+len(src)/254+1)
	codeIdx := len(dst)
	dst = append(dst, 0) // placeholder
	code := byte(1)

	for _, b := range src {
		if b == 0 {
			dst[codeIdx] = code
			codeIdx = len(dst)
			dst = append(dst, 0)
			code = 1
			continue
		}
		dst = append(dst, b)
		code++
		if code == 0xFF {
			dst[codeIdx] = code
			codeIdx = len(dst)
			dst = append(dst, 0)
			code = 1
		}
	}
	dst[codeIdx] = code
	return dst
}

// decodeCOBS reverses encodeCOBS. Returns ok=false for a malformed frame
// (spec.md section 4.4: "malformed frames are dropped with a log").
func decodeCOBS(src []byte) (dst []byte, ok bool) {
	if len(src) == 0 {
		return nil, false
	}
	dst = make([]byte, 0, len(src))
	i := 0
	for i < len(src) {
		code := src[i]
		if code == 0 || i+int(code) > len(src)+1 {
			return nil, false
		}
		i++
		end := i + int(code) - 1
		if end > len(src) {
			return nil, false
		}
		dst = append(dst, src[i:end]...)
		i = end
		if code != 0xFF && i < len(src) {
			dst = append(dst, 0)
		}
	}
	return dst, true
}
