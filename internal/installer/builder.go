package installer

// Builder methods append one instruction each and return s, for chaining
// in the composer's ordering contract (spec.md section 4.5).

func (s *Script) AssertDevice(device string) *Script {
	s.append(AssertDevice{Device: device})
	return s
}

func (s *Script) AssertCompatibleProduct(product string) *Script {
	s.append(AssertCompatibleProduct{Product: product})
	return s
}

func (s *Script) AssertOlderBuild(ts int64) *Script {
	s.append(AssertOlderBuild{Timestamp: ts})
	return s
}

func (s *Script) AssertSomeFingerprint(source, target string) *Script {
	s.append(AssertSomeFingerprint{SourceFingerprint: source, TargetFingerprint: target})
	return s
}

func (s *Script) Mount(path string) *Script {
	s.append(Mount{Path: path})
	return s
}

func (s *Script) Unmount(path string) *Script {
	s.append(Unmount{Path: path})
	return s
}

func (s *Script) UnmountAll() *Script {
	s.append(UnmountAll{})
	return s
}

func (s *Script) FormatPartition(path string) *Script {
	s.append(FormatPartition{Path: path})
	return s
}

// ShowProgress appends show_progress(fraction, duration) and advances
// the cumulative progress accumulator by fraction, per spec.md 4.5.
func (s *Script) ShowProgress(fraction, duration float64) *Script {
	s.append(ShowProgressInstr{Fraction: fraction, Duration: duration})
	s.curProgress += fraction
	return s
}

// SetProgress appends set_progress(value) without touching the
// cumulative accumulator: it restates an absolute point within the
// currently open show_progress budget rather than opening a new one.
func (s *Script) SetProgress(value float64) *Script {
	s.append(SetProgress{Value: value})
	return s
}

func (s *Script) Print(text string) *Script {
	s.append(Print{Text: text})
	return s
}

func (s *Script) Comment(text string) *Script {
	s.append(Comment{Text: text})
	return s
}

func (s *Script) PackageExtract(name string) *Script {
	s.append(PackageExtract{Name: name})
	return s
}

func (s *Script) UnpackPackageDir(src, dst string) *Script {
	s.append(UnpackPackageDir{Src: src, Dst: dst})
	return s
}

func (s *Script) DeleteFiles(paths []string) *Script {
	s.append(DeleteFiles{Paths: paths})
	return s
}

func (s *Script) DeleteTmpImage(name string) *Script {
	s.append(DeleteTmpImage{Name: name})
	return s
}

func (s *Script) ExtractImage(name string) *Script {
	s.append(ExtractImage{Name: name})
	return s
}

func (s *Script) PatchCheck(path, targetSHA1, sourceSHA1 string) *Script {
	s.append(PatchCheck{Path: path, TargetSHA1: targetSHA1, SourceSHA1: sourceSHA1})
	return s
}

func (s *Script) CacheFreeSpaceCheck(bytes int64) *Script {
	s.append(CacheFreeSpaceCheck{Bytes: bytes})
	return s
}

func (s *Script) ApplyPatch(path string, targetSize int64, targetSHA1, sourceSHA1, patchPath string) *Script {
	s.append(ApplyPatch{Path: path, TargetSize: targetSize, TargetSHA1: targetSHA1, SourceSHA1: sourceSHA1, PatchPath: patchPath})
	return s
}

func (s *Script) MakeSymlinks(links []SymlinkPair) *Script {
	if len(links) == 0 {
		return s
	}
	s.append(MakeSymlinks{Links: links})
	return s
}

func (s *Script) SetPerm(path string, uid, gid, mode int) *Script {
	s.append(SetPerm{Path: path, UID: uid, GID: gid, Mode: mode})
	return s
}

func (s *Script) SetPermRecursive(path string, uid, gid, dmode, fmode int) *Script {
	s.append(SetPermRecursive{Path: path, UID: uid, GID: gid, DMode: dmode, FMode: fmode})
	return s
}

func (s *Script) FlashOSImage(name, partition string) *Script {
	s.append(FlashOSImage{Name: name, Partition: partition})
	return s
}

func (s *Script) FlashImageAtOffset(name string, byteOffset int64) *Script {
	s.append(FlashImageAtOffset{Name: name, ByteOffset: byteOffset})
	return s
}

func (s *Script) FlashESPUpdate() *Script {
	s.append(FlashESPUpdate{})
	return s
}

func (s *Script) FlashIFWI() *Script {
	s.append(FlashIFWI{})
	return s
}

func (s *Script) FlashCapsule() *Script {
	s.append(FlashCapsule{})
	return s
}

func (s *Script) FlashULPMC() *Script {
	s.append(FlashULPMC{})
	return s
}

func (s *Script) FlashPartitionScheme() *Script {
	s.append(FlashPartitionScheme{})
	return s
}

func (s *Script) FlashBOMToken() *Script {
	s.append(FlashBOMToken{})
	return s
}

func (s *Script) InvalidateOS(name string) *Script {
	s.append(InvalidateOS{Name: name})
	return s
}

func (s *Script) RestoreOS(name string) *Script {
	s.append(RestoreOS{Name: name})
	return s
}

func (s *Script) StartUpdate() *Script {
	s.append(StartUpdate{})
	return s
}

func (s *Script) FinalizeUpdate() *Script {
	s.append(FinalizeUpdate{})
	return s
}

func (s *Script) AppendExtra(text string) *Script {
	s.append(AppendExtra{Text: text})
	return s
}

func (s *Script) ASLRRetouch(paths []string) *Script {
	if len(paths) == 0 {
		return s
	}
	s.append(ASLRRetouch{Paths: paths})
	return s
}
