// Package sysinfo reports host facts (OS, memory, CPU) and discovers
// installed Java runtimes for instance creation.
package sysinfo

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/jg-phare/mcslauncherd/internal/blocking"
	"github.com/jg-phare/mcslauncherd/internal/ratecache"
)

// SystemInfo summarizes the host the daemon is running on.
type SystemInfo struct {
	OS            string `json:"os"`
	Arch          string `json:"arch"`
	CPUCores      int    `json:"cpuCores"`
	TotalMemoryMB uint64 `json:"totalMemoryMb"`
	FreeMemoryMB  uint64 `json:"freeMemoryMb"`
}

// GetSystemInfo samples current host facts.
func GetSystemInfo() (SystemInfo, error) {
	info := SystemInfo{OS: runtime.GOOS, Arch: runtime.GOARCH}

	counts, err := cpu.Counts(true)
	if err != nil {
		return SystemInfo{}, fmt.Errorf("sysinfo: cpu counts: %w", err)
	}
	info.CPUCores = counts

	vm, err := mem.VirtualMemory()
	if err != nil {
		return SystemInfo{}, fmt.Errorf("sysinfo: virtual memory: %w", err)
	}
	info.TotalMemoryMB = vm.Total / (1024 * 1024)
	info.FreeMemoryMB = vm.Available / (1024 * 1024)

	return info, nil
}

// JavaInstallation describes one discovered Java runtime.
type JavaInstallation struct {
	Path    string `json:"path"`
	Version string `json:"version"`
}

var javaSearchRoots = []string{
	"/usr/lib/jvm",
	"/usr/java",
	`C:\Program Files\Java`,
	`C:\Program Files\Eclipse Adoptium`,
}

var javaCache = ratecache.New[string, []JavaInstallation](30 * time.Second)

// GetJavaList scans PATH and common install roots for java executables and
// probes each with "-version". The scan runs off the request goroutine and
// its result is cached briefly; repeated queries don't re-walk the disk.
func GetJavaList(ctx context.Context) ([]JavaInstallation, error) {
	return javaCache.Get("list", func() ([]JavaInstallation, error) {
		return blocking.Run(ctx, func() ([]JavaInstallation, error) {
			return scanJavaList(ctx)
		})
	})
}

func scanJavaList(ctx context.Context) ([]JavaInstallation, error) {
	seen := map[string]bool{}
	var found []string

	binName := "java"
	if runtime.GOOS == "windows" {
		binName = "java.exe"
	}

	if p, err := exec.LookPath(binName); err == nil {
		found = append(found, p)
		seen[p] = true
	}

	for _, root := range javaSearchRoots {
		entries, err := os.ReadDir(root)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			candidate := filepath.Join(root, e.Name(), "bin", binName)
			if _, err := os.Stat(candidate); err == nil && !seen[candidate] {
				found = append(found, candidate)
				seen[candidate] = true
			}
		}
	}

	installs := make([]JavaInstallation, 0, len(found))
	for _, path := range found {
		version, err := probeVersion(ctx, path)
		if err != nil {
			continue
		}
		installs = append(installs, JavaInstallation{Path: path, Version: version})
	}
	return installs, nil
}

func probeVersion(ctx context.Context, javaPath string) (string, error) {
	cmd := exec.CommandContext(ctx, javaPath, "-version")
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("sysinfo: probe %s: %w", javaPath, err)
	}
	return parseVersion(string(out)), nil
}

func parseVersion(output string) string {
	lines := strings.Split(output, "\n")
	if len(lines) == 0 {
		return ""
	}
	first := lines[0]
	start := strings.Index(first, "\"")
	if start == -1 {
		return strings.TrimSpace(first)
	}
	end := strings.Index(first[start+1:], "\"")
	if end == -1 {
		return strings.TrimSpace(first)
	}
	return first[start+1 : start+1+end]
}
