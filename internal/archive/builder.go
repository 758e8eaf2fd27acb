// Package archive produces the ZIP artifact handed back to the user and owns
// the temp directories media is staged in.
package archive

import (
	"archive/zip"
	"compress/flate"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// ErrArchive wraps every archive build failure.
var ErrArchive = errors.New("archive build")

// kindDirs is the fixed top-level layout of a finished archive. Directories
// with no files are omitted from the output.
var kindDirs = []string{"images", "videos", "stories"}

// Builder stages media under workDir and zips it up.
type Builder struct {
	workDir string
}

// NewBuilder ensures workDir exists and returns a Builder rooted there.
func NewBuilder(workDir string) (*Builder, error) {
	if err := os.MkdirAll(workDir, 0o750); err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	return &Builder{workDir: workDir}, nil
}

// WorkDir returns the root under which temp directories and archives live.
func (b *Builder) WorkDir() string { return b.workDir }

// TempDir allocates a uniquely named staging directory. The caller owns its
// lifetime and is expected to Cleanup when done.
func (b *Builder) TempDir() (string, error) {
	dir := filepath.Join(b.workDir, uuid.NewString())
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	return dir, nil
}

// Build writes a ZIP of sourceDir's populated kind subdirectories to
// outputPath using maximum deflate compression.
func (b *Builder) Build(sourceDir, outputPath string) error {
	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("%w: create output: %v", ErrArchive, err)
	}
	defer out.Close()
	zw := zip.NewWriter(out)
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, flate.BestCompression)
	})
	for _, kind := range kindDirs {
		if err := addKindDir(zw, filepath.Join(sourceDir, kind), kind); err != nil {
			zw.Close()
			os.Remove(outputPath)
			return err
		}
	}
	if err := zw.Close(); err != nil {
		os.Remove(outputPath)
		return fmt.Errorf("%w: finalize zip: %v", ErrArchive, err)
	}
	return nil
}

// Cleanup removes dir recursively. Failures are logged, never propagated.
func (b *Builder) Cleanup(dir string) {
	if err := os.RemoveAll(dir); err != nil {
		log.Printf("archive: cleanup %s: %v", dir, err)
	}
}

func addKindDir(zw *zip.Writer, dir, prefix string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("%w: read %s: %v", ErrArchive, dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := addFile(zw, filepath.Join(dir, entry.Name()), prefix+"/"+entry.Name()); err != nil {
			return err
		}
	}
	return nil
}

func addFile(zw *zip.Writer, path, name string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", ErrArchive, path, err)
	}
	defer f.Close()
	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("%w: add %s: %v", ErrArchive, name, err)
	}
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("%w: write %s: %v", ErrArchive, name, err)
	}
	return nil
}
