package archival

import (
	"archive/tar"
	"archive/zip"
	"compress/bzip2"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/corpusworks/dataset-repo/common"
	"github.com/gabriel-vasile/mimetype"
	"github.com/klauspost/compress/zstd"
)

// extract unpacks the archive at path into destDir. The format is decided
// by sniffing the file's content - datasets are routinely published with
// misleading extensions. The first return is false when the file is not an
// archive at all: the artifact itself is the payload and it is already
// sitting at its destination.
func extract(path string, destDir string) (bool, error) {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return false, fmt.Errorf("%w: %v", common.ErrExtractionFailed, err)
	}

	switch {
	case mtype.Is("application/zip"):
		return true, extractZip(path, destDir)
	case mtype.Is("application/gzip"):
		return true, extractCompressedTar(path, destDir, func(r io.Reader) (io.Reader, error) {
			return gzip.NewReader(r)
		})
	case mtype.Is("application/x-bzip2"):
		return true, extractCompressedTar(path, destDir, func(r io.Reader) (io.Reader, error) {
			return bzip2.NewReader(r), nil
		})
	case mtype.Is("application/zstd"):
		return true, extractCompressedTar(path, destDir, func(r io.Reader) (io.Reader, error) {
			return zstd.NewReader(r)
		})
	case mtype.Is("application/x-tar"):
		return true, extractCompressedTar(path, destDir, func(r io.Reader) (io.Reader, error) {
			return r, nil
		})
	default:
		return false, nil
	}
}

func extractZip(path string, destDir string) error {
	archiver, err := zip.OpenReader(path)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrExtractionFailed, err)
	}
	defer archiver.Close()

	for _, f := range archiver.File {
		name := f.Name
		if f.NonUTF8 {
			name = decodeCP437(name)
		}

		if f.FileInfo().IsDir() {
			continue
		}

		reader, err := f.Open()
		if err != nil {
			return fmt.Errorf("%w: %v", common.ErrExtractionFailed, err)
		}
		err = writeExtractedFile(destDir, name, reader)
		_ = reader.Close()
		if err != nil {
			return err
		}
	}

	return nil
}

type decompressFn func(io.Reader) (io.Reader, error)

func extractCompressedTar(path string, destDir string, decompress decompressFn) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrExtractionFailed, err)
	}
	defer file.Close()

	stream, err := decompress(file)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrExtractionFailed, err)
	}

	tarFile := tar.NewReader(stream)
	for {
		header, err := tarFile.Next()
		if err == io.EOF {
			break // we're done
		}
		if err != nil {
			return fmt.Errorf("%w: %v", common.ErrExtractionFailed, err)
		}

		if header == nil {
			continue // skip weird file
		}
		if header.Typeflag != tar.TypeReg {
			continue // skip directories and other stuff
		}

		if err = writeExtractedFile(destDir, header.Name, tarFile); err != nil {
			return err
		}
	}

	return nil
}

// writeExtractedFile streams one archive entry to disk, refusing paths that
// escape the destination. Pre-existing files are overwritten; the checksum
// pass afterwards is what decides whether the result is right.
func writeExtractedFile(destDir string, name string, r io.Reader) error {
	target, err := safeJoin(destDir, name)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(target), os.ModePerm); err != nil {
		return fmt.Errorf("%w: %v", common.ErrDestinationNotWritable, err)
	}

	out, err := os.Create(target)
	if err != nil {
		if os.IsPermission(err) {
			return fmt.Errorf("%w: %v", common.ErrDestinationNotWritable, err)
		}
		return fmt.Errorf("%w: %v", common.ErrExtractionFailed, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, r); err != nil {
		return fmt.Errorf("%w: %v", common.ErrExtractionFailed, err)
	}
	return nil
}

func safeJoin(destDir string, name string) (string, error) {
	target := filepath.Join(destDir, filepath.FromSlash(name))
	if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: entry %q escapes destination", common.ErrExtractionFailed, name)
	}
	return target, nil
}
