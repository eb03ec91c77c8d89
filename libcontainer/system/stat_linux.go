package system

import (
	"fmt"
	"strconv"
	"strings"
)

// parseStat extracts starttime (field 22) from the contents of
// /proc/<pid>/stat. The comm field (field 2) is parenthesized and may
// itself contain spaces or parentheses, so field 2 is located by the last
// ')' rather than by splitting on whitespace from the start.
func parseStat(data []byte) (ProcStat, error) {
	s := string(data)
	open := strings.IndexByte(s, '(')
	close := strings.LastIndexByte(s, ')')
	if open < 0 || close < 0 || close < open {
		return ProcStat{}, fmt.Errorf("parsing /proc/pid/stat: malformed comm field")
	}
	rest := strings.Fields(s[close+1:])
	// rest[0] is field 3 (state); starttime is field 22, i.e. rest[22-3] = rest[19].
	const startTimeRestIndex = 22 - 3
	if len(rest) <= startTimeRestIndex {
		return ProcStat{}, fmt.Errorf("parsing /proc/pid/stat: too few fields")
	}
	st, err := strconv.ParseUint(rest[startTimeRestIndex], 10, 64)
	if err != nil {
		return ProcStat{}, fmt.Errorf("parsing /proc/pid/stat starttime: %w", err)
	}
	return ProcStat{StartTime: st}, nil
}
