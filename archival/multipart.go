package archival

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/corpusworks/dataset-repo/common"
	"github.com/corpusworks/dataset-repo/common/rcontext"
)

// assembleSplitZip concatenates the parts of a split zip, in declared order,
// into one logical archive next to the destination. The declared order
// matters: the final part carries the central directory, so reordering
// produces garbage. Returns the path of the assembled file.
func assembleSplitZip(ctx rcontext.RequestContext, parts []Artifact, destDir string) (string, error) {
	base := filepath.Base(parts[0].Path)
	if idx := strings.LastIndex(base, "."); idx > 0 {
		base = base[:idx]
	}
	assembledPath := filepath.Join(destDir, base+".joined.zip")

	out, err := os.Create(assembledPath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrDestinationNotWritable, err)
	}
	defer out.Close()

	ctx.Log.Debugf("Assembling %d-part archive into %s", len(parts), assembledPath)
	for _, part := range parts {
		in, err := os.Open(part.Path)
		if err != nil {
			_ = os.Remove(assembledPath)
			return "", fmt.Errorf("%w: %v", common.ErrExtractionFailed, err)
		}
		_, err = io.Copy(out, in)
		_ = in.Close()
		if err != nil {
			_ = os.Remove(assembledPath)
			return "", fmt.Errorf("%w: %v", common.ErrExtractionFailed, err)
		}
	}

	return assembledPath, nil
}
