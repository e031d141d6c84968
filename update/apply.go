package update

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// Apply downloads rel next to the running binary, verifies it against
// the release checksum file when one is published, and swaps it into
// place. The running process keeps its old image; the next launch is
// the new version.
func Apply(rel *Release) error {
	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("find executable: %w", err)
	}
	execPath, err = filepath.EvalSymlinks(execPath)
	if err != nil {
		return fmt.Errorf("resolve symlinks: %w", err)
	}

	// Same directory as the binary, so the final rename stays on one
	// filesystem and is atomic.
	tmpPath, sum, err := downloadAsset(rel.AssetURL, filepath.Dir(execPath))
	if err != nil {
		return err
	}
	defer os.Remove(tmpPath)

	if err := rel.verifyChecksum(sum); err != nil {
		return err
	}
	if err := os.Chmod(tmpPath, 0755); err != nil {
		return fmt.Errorf("chmod: %w", err)
	}
	return swapBinary(execPath, tmpPath)
}

// downloadAsset streams url into a temp file under dir and returns the
// file's path along with its sha256.
func downloadAsset(url, dir string) (path, sum string, err error) {
	tmp, err := os.CreateTemp(dir, ".voxy-update-*")
	if err != nil {
		return "", "", fmt.Errorf("create temp file: %w", err)
	}
	defer tmp.Close()
	path = tmp.Name()

	resp, err := http.Get(url)
	if err != nil {
		os.Remove(path)
		return "", "", fmt.Errorf("download binary: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		os.Remove(path)
		return "", "", fmt.Errorf("download binary: %s", resp.Status)
	}

	hasher := sha256.New()
	src := io.Reader(resp.Body)
	if resp.ContentLength > 0 {
		src = &downloadMeter{r: resp.Body, total: resp.ContentLength}
	}
	if _, err := io.Copy(io.MultiWriter(tmp, hasher), src); err != nil {
		os.Remove(path)
		return "", "", fmt.Errorf("write binary: %w", err)
	}
	if resp.ContentLength > 0 {
		fmt.Println() // newline after the progress line
	}
	return path, hex.EncodeToString(hasher.Sum(nil)), nil
}

// verifyChecksum compares sum against the entry for this platform's
// asset in the release checksum file. Releases without one pass.
func (r *Release) verifyChecksum(sum string) error {
	if r.ChecksumURL == "" {
		return nil
	}
	want, err := r.publishedChecksum(assetName())
	if err != nil {
		return fmt.Errorf("fetch checksums: %w", err)
	}
	if sum != want {
		return fmt.Errorf("checksum mismatch: got %s, want %s", sum[:12], want[:12])
	}
	return nil
}

// publishedChecksum scans the release checksum file,
// "<hash>  <filename>" per line, for the named asset.
func (r *Release) publishedChecksum(filename string) (string, error) {
	resp, err := http.Get(r.ChecksumURL)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		return "", fmt.Errorf("checksums: %s", resp.Status)
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		parts := strings.Fields(scanner.Text())
		if len(parts) == 2 && parts[1] == filename {
			return parts[0], nil
		}
	}
	return "", fmt.Errorf("no checksum for %s", filename)
}

// swapBinary moves newPath over execPath, keeping the old binary
// around just long enough to roll back a failed rename.
func swapBinary(execPath, newPath string) error {
	oldPath := execPath + ".old"
	if err := os.Rename(execPath, oldPath); err != nil {
		return fmt.Errorf("backup current binary: %w", err)
	}
	if err := os.Rename(newPath, execPath); err != nil {
		_ = os.Rename(oldPath, execPath)
		return fmt.Errorf("install new binary: %w", err)
	}
	_ = os.Remove(oldPath)
	return nil
}

// downloadMeter prints coarse progress to stderr as it reads.
type downloadMeter struct {
	r     io.Reader
	total int64
	read  int64
}

func (m *downloadMeter) Read(b []byte) (int, error) {
	n, err := m.r.Read(b)
	m.read += int64(n)
	pct := float64(m.read) / float64(m.total) * 100
	fmt.Fprintf(os.Stderr, "\r  %.0f%% (%d / %d KB)", pct, m.read/1024, m.total/1024)
	return n, err
}
