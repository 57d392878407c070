package domain

import "strconv"

// User ids on the wire are decimal strings; the media transport and the
// link/shared slots address the same identity numerically.

// StreamID converts a uid to its numeric stream slot, 0 when the uid is not
// numeric.
func (u UID) StreamID() uint32 {
	n, err := strconv.ParseUint(string(u), 10, 32)
	if err != nil {
		return 0
	}
	return uint32(n)
}

// UIDFromStream converts a numeric slot back to the uid string; the zero
// slot maps to the empty uid.
func UIDFromStream(n uint32) UID {
	if n == 0 {
		return ""
	}
	return UID(strconv.FormatUint(uint64(n), 10))
}
