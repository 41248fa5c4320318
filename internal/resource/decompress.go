package resource

import (
	"compress/bzip2"
	"fmt"
	"io"
	"os"
	"strings"
)

const bzip2Suffix = ".bz2"

// Decompress expands a ".bz2" file next to itself and removes the
// original. Other paths are returned unchanged.
func Decompress(path string) (string, error) {
	if !strings.HasSuffix(path, bzip2Suffix) {
		return path, nil
	}
	target := strings.TrimSuffix(path, bzip2Suffix)
	in, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer in.Close()

	out, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", target, err)
	}
	if _, err := io.Copy(out, bzip2.NewReader(in)); err != nil {
		out.Close()
		os.Remove(target)
		return "", fmt.Errorf("decompress %s: %w", path, err)
	}
	if err := out.Close(); err != nil {
		return "", err
	}
	in.Close()
	if err := os.Remove(path); err != nil {
		return "", fmt.Errorf("remove %s: %w", path, err)
	}
	return target, nil
}
