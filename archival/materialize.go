package archival

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/corpusworks/dataset-repo/common"
	"github.com/corpusworks/dataset-repo/common/rcontext"
	"github.com/corpusworks/dataset-repo/verify"
	"github.com/dustin/go-humanize"
)

// Artifact is one downloaded compressed file awaiting extraction.
type Artifact struct {
	Path     string // local path of the downloaded file
	Checksum string // expected MD5 of the compressed file itself
}

type Options struct {
	// Cleanup removes the artifact files after successful extraction. A
	// later download of the same key will have to re-fetch them.
	Cleanup bool

	// UnpackDirs lists directories (relative to the destination) whose
	// contents are hoisted into the destination after extraction, for
	// archives that wrap everything in a top-level folder.
	UnpackDirs []string
}

// Materialize turns one or more downloaded artifacts destined for the same
// logical target into an extracted file tree at destDir.
//
// Every artifact must already be on disk and is checksum-verified before any
// extraction starts. A single artifact is extracted directly; multiple
// artifacts are treated as one split zip, concatenated in declared order and
// extracted as a whole. A missing part is a precondition failure
// (ErrGroupIncomplete), not an extraction error.
func Materialize(ctx rcontext.RequestContext, parts []Artifact, destDir string, opts Options) error {
	if len(parts) == 0 {
		return nil
	}

	for _, part := range parts {
		if _, err := os.Stat(part.Path); err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("%w: %s is not on disk", common.ErrGroupIncomplete, part.Path)
			}
			return err
		}
	}

	for _, part := range parts {
		actual, err := verify.Digest(part.Path)
		if err != nil {
			return err
		}
		if actual != part.Checksum {
			// Remove the bad file so a retry doesn't see a false
			// "already present".
			_ = os.Remove(part.Path)
			return fmt.Errorf("%w: %s has MD5 %s, expected %s",
				common.ErrCorruptDownload, part.Path, actual, part.Checksum)
		}
	}

	if err := os.MkdirAll(destDir, os.ModePerm); err != nil {
		return fmt.Errorf("%w: %v", common.ErrDestinationNotWritable, err)
	}

	entryPoint := parts[0].Path
	if len(parts) > 1 {
		assembled, err := assembleSplitZip(ctx, parts, destDir)
		if err != nil {
			return err
		}
		defer func() {
			_ = os.Remove(assembled)
		}()
		entryPoint = assembled
	}

	if info, err := os.Stat(entryPoint); err == nil {
		ctx.Log.Infof("Extracting %s (%s) to %s", entryPoint, humanize.Bytes(uint64(info.Size())), destDir)
	}
	extracted, err := extract(entryPoint, destDir)
	if err != nil {
		return err
	}

	for _, src := range opts.UnpackDirs {
		if err := hoistDirectoryContents(ctx, filepath.Join(destDir, src), destDir); err != nil {
			return err
		}
	}

	// Raw (non-archive) artifacts are their own payload - cleanup must not
	// delete them.
	if opts.Cleanup && extracted {
		ctx.Log.Warn("Cleaning up compressed artifacts after extraction - a future download will re-fetch them")
		for _, part := range parts {
			ctx.Log.Debugf("Cleaning up artifact %s", part.Path)
			if err := os.Remove(part.Path); err != nil {
				return err
			}
		}
	}

	return nil
}

// hoistDirectoryContents moves everything inside sourceDir up into
// targetDir, then deletes sourceDir. Files already present in targetDir are
// left alone.
func hoistDirectoryContents(ctx rcontext.RequestContext, sourceDir string, targetDir string) error {
	entries, err := os.ReadDir(sourceDir)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrExtractionFailed, err)
	}

	for _, entry := range entries {
		target := filepath.Join(targetDir, entry.Name())
		if _, err := os.Stat(target); err == nil {
			ctx.Log.Infof("%s already exists - leaving it in place", target)
			continue
		}
		if err := os.Rename(filepath.Join(sourceDir, entry.Name()), target); err != nil {
			return fmt.Errorf("%w: %v", common.ErrExtractionFailed, err)
		}
	}

	return os.RemoveAll(sourceDir)
}
