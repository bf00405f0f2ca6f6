package archive

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	kerrors "github.com/otherjamesbrown/krisp-import/pkg/errors"
)

// MaxExtractBytes caps the total uncompressed size of one archive.
const MaxExtractBytes int64 = 4 << 30

// Extract unpacks the zip at zipPath into dest. Entries that would land
// outside dest are rejected.
func Extract(ctx context.Context, zipPath, dest string) error {
	reader, err := zip.OpenReader(zipPath)
	if err != nil {
		return fmt.Errorf("open %s: %v: %w", filepath.Base(zipPath), err, kerrors.ErrInvalidArchive)
	}
	defer reader.Close()

	destAbs, err := filepath.Abs(dest)
	if err != nil {
		return fmt.Errorf("resolve destination: %w", err)
	}

	budget := MaxExtractBytes
	for _, file := range reader.File {
		if err := ctx.Err(); err != nil {
			return err
		}

		target, err := safeJoin(destAbs, file.Name)
		if err != nil {
			return err
		}

		if file.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("create %s: %w", file.Name, err)
			}
			continue
		}
		if !file.Mode().IsRegular() {
			continue
		}

		n, err := extractFile(file, target, budget)
		if err != nil {
			return err
		}
		budget -= n
	}
	return nil
}

// safeJoin resolves name under root, rejecting absolute paths and "..".
func safeJoin(root, name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("entry %q escapes archive root: %w", name, kerrors.ErrInvalidArchive)
	}
	target := filepath.Join(root, clean)
	if target != root && !strings.HasPrefix(target, root+string(filepath.Separator)) {
		return "", fmt.Errorf("entry %q escapes archive root: %w", name, kerrors.ErrInvalidArchive)
	}
	return target, nil
}

func extractFile(file *zip.File, target string, budget int64) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, fmt.Errorf("create directory for %s: %w", file.Name, err)
	}

	rc, err := file.Open()
	if err != nil {
		return 0, fmt.Errorf("open entry %s: %v: %w", file.Name, err, kerrors.ErrInvalidArchive)
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", file.Name, err)
	}

	n, err := io.Copy(out, io.LimitReader(rc, budget+1))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, fmt.Errorf("extract %s: %w", file.Name, err)
	}
	if n > budget {
		return n, fmt.Errorf("archive exceeds %d bytes uncompressed: %w", MaxExtractBytes, kerrors.ErrInvalidArchive)
	}
	return n, nil
}

// Source is an opened export: a zip extracted to a temporary directory or
// a folder used in place.
type Source struct {
	Path     string
	Meetings []Meeting

	tempDir string
}

// Open scans path, extracting it first when it is a zip. Close must be
// called to remove extracted files.
func Open(ctx context.Context, path string) (*Source, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	if info.IsDir() {
		meetings, err := ScanMeetings(path)
		if err != nil {
			return nil, err
		}
		return &Source{Path: path, Meetings: meetings}, nil
	}

	if !IsZip(path) {
		return nil, fmt.Errorf("open %s: not a zip archive or folder: %w", path, kerrors.ErrInvalidArchive)
	}

	tempDir, err := os.MkdirTemp("", "krisp-import-*")
	if err != nil {
		return nil, fmt.Errorf("create temp directory: %w", err)
	}
	src := &Source{Path: path, tempDir: tempDir}

	if err := Extract(ctx, path, tempDir); err != nil {
		src.Close()
		return nil, err
	}

	meetings, err := ScanMeetings(tempDir)
	if err != nil {
		src.Close()
		return nil, err
	}

	// Files zipped without a folder take their name from the archive.
	zipName := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	for i := range meetings {
		if meetings[i].Dir == tempDir {
			meetings[i].FolderName = zipName
		}
	}
	src.Meetings = meetings
	return src, nil
}

// Close removes any extracted files.
func (s *Source) Close() error {
	if s.tempDir == "" {
		return nil
	}
	err := os.RemoveAll(s.tempDir)
	s.tempDir = ""
	return err
}
