package installer

import (
	"regexp"
	"strconv"
	"strings"
)

// lbaNameRegexp and lbaStartRegexp pick the image name and starting LBA
// out of a partition-table line, e.g. "-l boot -b 2048 ...". spec.md
// section 6.2.
var (
	lbaNameRegexp = regexp.MustCompile(`(?i)-l\s+(\S+)`)
	lbaStartRegexp = regexp.MustCompile(`-b\s+(\d+)`)
)

const sectorSizeBytes = 512

// FlashDispatch implements spec.md section 6.2's flash dispatch table.
// partitionTable is the raw partition-table text (empty if none was
// requested); name is the logical image name.
func FlashDispatch(s *Script, name string, partitionTable string) *Script {
	switch name {
	case "esp":
		return s.FlashESPUpdate()
	case "ifwi":
		return s.FlashIFWI()
	case "capsule":
		return s.FlashCapsule()
	case "ulpmc":
		return s.FlashULPMC()
	}

	if partitionTable == "" {
		return s.FlashOSImage(name, "")
	}

	if lba, ok := lookupLBAStart(partitionTable, name); ok {
		return s.FlashImageAtOffset(name, lba*sectorSizeBytes)
	}
	return s.FlashOSImage(name, "")
}

// lookupLBAStart scans partitionTable's lines for one naming the image
// (case-insensitive "-l <name>") and parses its "-b <lba_start>" field.
func lookupLBAStart(partitionTable, name string) (int64, bool) {
	for _, line := range strings.Split(partitionTable, "\n") {
		m := lbaNameRegexp.FindStringSubmatch(line)
		if m == nil || !strings.EqualFold(m[1], name) {
			continue
		}
		bm := lbaStartRegexp.FindStringSubmatch(line)
		if bm == nil {
			continue
		}
		lba, err := strconv.ParseInt(bm[1], 10, 64)
		if err != nil {
			continue
		}
		return lba, true
	}
	return 0, false
}
