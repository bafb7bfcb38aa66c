package filetransfer

import (
	"fmt"
	"path/filepath"
	"strings"
)

// normalize resolves "." and ".." segments of p using a stack, without
// touching the filesystem, working on both "/" and "\\" separators the way
// the daemon's cross-platform path strings require. A ".." that would pop
// past the top of the path is an escape and fails.
func normalize(p string) (string, error) {
	p = strings.ReplaceAll(p, "\\", "/")
	parts := strings.Split(p, "/")
	var stack []string
	for _, part := range parts {
		switch part {
		case "", ".":
			continue
		case "..":
			if len(stack) == 0 {
				return "", fmt.Errorf("filetransfer: path %q escapes root", p)
			}
			stack = stack[:len(stack)-1]
		default:
			stack = append(stack, part)
		}
	}
	return strings.Join(stack, "/"), nil
}

// resolveWithinRoot joins rel onto root after normalization and requires the
// result to stay inside root. This is the corrected polarity: any path whose
// normalized form escapes root is rejected, never accepted.
func resolveWithinRoot(root, rel string) (string, error) {
	normRoot := filepath.Clean(root)
	joined, err := normalize(rel)
	if err != nil {
		return "", err
	}
	full := filepath.Clean(filepath.Join(normRoot, joined))

	if full != normRoot && !strings.HasPrefix(full, normRoot+string(filepath.Separator)) {
		return "", fmt.Errorf("filetransfer: path %q escapes root", rel)
	}
	return full, nil
}
