package challenge

import "strings"

// KindOf returns the registry kind name for a configured challenge
// identifier: the substring before the first "(". It is a pure function of
// the cid, so identical cids always resolve to the same kind.
func KindOf(cid string) string {
	if i := strings.IndexByte(cid, '('); i >= 0 {
		return cid[:i]
	}
	return cid
}

// ArgsOf returns the opaque argument substring between the first "(" and the
// matching trailing ")", or "" if the cid carries no arguments.
func ArgsOf(cid string) string {
	i := strings.IndexByte(cid, '(')
	if i < 0 {
		return ""
	}
	rest := cid[i+1:]
	if j := strings.LastIndexByte(rest, ')'); j >= 0 {
		return rest[:j]
	}
	return rest
}

// Staged wraps the cid in Stage(...) layers so that a multi-part challenge
// sharing one kind gets an independent flag namespace per stage. Stage 1 is
// the unwrapped cid.
func Staged(cid string, stage int) string {
	for i := 1; i < stage; i++ {
		cid = "Stage(" + cid + ")"
	}
	return cid
}
