package filetransfer

import (
	"fmt"
	"os"
	"time"
)

// EntryInfo describes one filesystem entry inside the engine root.
type EntryInfo struct {
	Name     string    `json:"name"`
	IsDir    bool      `json:"isDir"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

// DirectoryInfo lists the entries of the directory at rel inside the root.
func (e *Engine) DirectoryInfo(rel string) ([]EntryInfo, error) {
	full, err := resolveWithinRoot(e.root, rel)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(full)
	if err != nil {
		return nil, fmt.Errorf("filetransfer: read dir: %w", err)
	}
	out := make([]EntryInfo, 0, len(entries))
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		out = append(out, EntryInfo{
			Name:     entry.Name(),
			IsDir:    entry.IsDir(),
			Size:     info.Size(),
			Modified: info.ModTime(),
		})
	}
	return out, nil
}

// FileInfo stats the file at rel inside the root.
func (e *Engine) FileInfo(rel string) (EntryInfo, error) {
	full, err := resolveWithinRoot(e.root, rel)
	if err != nil {
		return EntryInfo{}, err
	}
	info, err := os.Stat(full)
	if err != nil {
		return EntryInfo{}, fmt.Errorf("filetransfer: stat: %w", err)
	}
	return EntryInfo{
		Name:     info.Name(),
		IsDir:    info.IsDir(),
		Size:     info.Size(),
		Modified: info.ModTime(),
	}, nil
}
