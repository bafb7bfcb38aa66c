// Package filetransfer implements the daemon's chunked upload/download
// engine: path-confined session tracking, SHA-1 integrity checks, and the
// UTF-16BE text-mode chunk encoding the protocol contract requires.
package filetransfer

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jg-phare/mcslauncherd/internal/blocking"
	"github.com/jg-phare/mcslauncherd/internal/remainder"
)

// Sentinel errors callers branch on to pick a protocol retcode.
var (
	ErrSessionNotFound     = errors.New("filetransfer: no such session")
	ErrAlreadyTransferring = errors.New("filetransfer: upload already in progress for path")
	ErrTooManyDownloads    = errors.New("filetransfer: download session limit reached for path")
	ErrOutOfRange          = errors.New("filetransfer: offset out of range")
	ErrHashMismatch        = errors.New("filetransfer: sha1 mismatch")
	ErrIsADirectory        = errors.New("filetransfer: path is a directory")
)

const tmpSuffix = ".tmp"

// DownloadsDir is the default upload target directory under the engine root.
const DownloadsDir = "downloads"

// InstancesDir holds one subdirectory per managed instance under the root.
const InstancesDir = "instances"

// UploadSession tracks one in-flight upload into a staging ".tmp" file.
type UploadSession struct {
	ID        uuid.UUID
	Path      string // final destination, absolute
	Size      uint64
	ChunkSize uint64
	SHA1      string // expected hex digest, lowercased; empty disables verification

	tmpPath string
	file    *os.File
	remain  *remainder.Tracker
	mu      sync.Mutex
}

// DownloadSession tracks one in-flight download over an open read handle.
type DownloadSession struct {
	ID   uuid.UUID
	Path string
	Size uint64
	SHA1 string

	file *os.File
}

// Engine is the root of the file transfer subsystem, rooted at a directory
// the daemon is permitted to read and write within.
type Engine struct {
	root        string
	denylist    []string
	downloadCap int

	mu        sync.Mutex
	uploads   map[uuid.UUID]*UploadSession
	downloads map[uuid.UUID]*DownloadSession
}

// New creates an Engine rooted at root and materializes the workspace
// layout (root itself, root/downloads, root/instances). downloadCap bounds
// concurrent download sessions per file; denylist optionally rejects upload
// targets matching any doublestar glob.
func New(root string, denylist []string, downloadCap int) (*Engine, error) {
	if downloadCap <= 0 {
		downloadCap = 1
	}
	for _, dir := range []string{root, filepath.Join(root, DownloadsDir), filepath.Join(root, InstancesDir)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("filetransfer: create %s: %w", dir, err)
		}
	}
	return &Engine{
		root:        root,
		denylist:    denylist,
		downloadCap: downloadCap,
		uploads:     make(map[uuid.UUID]*UploadSession),
		downloads:   make(map[uuid.UUID]*DownloadSession),
	}, nil
}

// Root returns the engine's workspace root.
func (e *Engine) Root() string { return e.root }

func (e *Engine) checkDenylist(rel string) error {
	for _, pattern := range e.denylist {
		ok, err := doublestar.Match(pattern, rel)
		if err == nil && ok {
			return fmt.Errorf("filetransfer: %q matches denylisted pattern %q", rel, pattern)
		}
	}
	return nil
}

// UploadRequest begins a new upload of size bytes. rel is resolved inside
// the engine root; an empty rel defaults to the downloads directory, named
// after the minted session id. chunkSize caps how much of each chunk's data
// is written (0 means unlimited); sha1, if non-empty, is verified against
// the finalized file.
func (e *Engine) UploadRequest(rel string, size, chunkSize uint64, sha1sum string) (*UploadSession, error) {
	id := uuid.New()
	if rel == "" {
		rel = DownloadsDir + "/" + id.String()
	}
	full, err := resolveWithinRoot(e.root, rel)
	if err != nil {
		return nil, err
	}
	if err := e.checkDenylist(rel); err != nil {
		return nil, err
	}

	e.mu.Lock()
	for _, s := range e.uploads {
		if s.Path == full {
			e.mu.Unlock()
			return nil, ErrAlreadyTransferring
		}
	}
	e.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return nil, fmt.Errorf("filetransfer: create parent dirs: %w", err)
	}
	tmpPath := full + tmpSuffix
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("filetransfer: create staging file: %w", err)
	}
	if err := f.Truncate(int64(size)); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("filetransfer: preallocate: %w", err)
	}

	sess := &UploadSession{
		ID:        id,
		Path:      full,
		Size:      size,
		ChunkSize: chunkSize,
		SHA1:      strings.ToLower(sha1sum),
		tmpPath:   tmpPath,
		file:      f,
		remain:    remainder.New(0, size),
	}
	e.mu.Lock()
	e.uploads[sess.ID] = sess
	e.mu.Unlock()
	return sess, nil
}

// UploadChunk writes data at offset within the upload session. It returns
// done=true with received=0 once every byte of the declared size has been
// written (the session is then finalized and removed); otherwise done=false
// and the number of bytes received so far.
func (e *Engine) UploadChunk(id uuid.UUID, offset uint64, data []byte) (done bool, received uint64, err error) {
	e.mu.Lock()
	sess, ok := e.uploads[id]
	e.mu.Unlock()
	if !ok {
		return false, 0, ErrSessionNotFound
	}
	if offset >= sess.Size {
		return false, 0, ErrOutOfRange
	}

	n := uint64(len(data))
	if sess.ChunkSize > 0 && n > sess.ChunkSize {
		n = sess.ChunkSize
	}
	if offset+n > sess.Size {
		n = sess.Size - offset
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.file == nil {
		return false, 0, ErrSessionNotFound
	}
	if _, err := sess.file.WriteAt(data[:n], int64(offset)); err != nil {
		return false, 0, fmt.Errorf("filetransfer: write chunk: %w", err)
	}
	sess.remain.Reduce(offset, offset+n)

	if remain := sess.remain.Remaining(); remain > 0 {
		return false, sess.Size - remain, nil
	}
	if err := e.finalizeUpload(sess); err != nil {
		return false, 0, err
	}
	return true, 0, nil
}

// finalizeUpload flushes, closes, and renames the staging file into place,
// verifying the declared SHA-1 if one was supplied. Called with sess.mu held.
func (e *Engine) finalizeUpload(sess *UploadSession) error {
	e.mu.Lock()
	delete(e.uploads, sess.ID)
	e.mu.Unlock()

	if err := sess.file.Sync(); err != nil {
		sess.file.Close()
		return fmt.Errorf("filetransfer: flush: %w", err)
	}
	if err := sess.file.Close(); err != nil {
		return fmt.Errorf("filetransfer: close: %w", err)
	}
	sess.file = nil
	if err := os.Rename(sess.tmpPath, sess.Path); err != nil {
		return fmt.Errorf("filetransfer: finalize: %w", err)
	}

	if sess.SHA1 != "" {
		sum, err := hashFile(sess.Path)
		if err != nil {
			return err
		}
		if sum != sess.SHA1 {
			os.Remove(sess.Path)
			return fmt.Errorf("%w: got %s, want %s", ErrHashMismatch, sum, sess.SHA1)
		}
	}
	log.Debug().Str("path", sess.Path).Uint64("size", sess.Size).Msg("upload finalized")
	return nil
}

// UploadCancel aborts an upload session, closing and deleting its staging
// file.
func (e *Engine) UploadCancel(id uuid.UUID) error {
	e.mu.Lock()
	sess, ok := e.uploads[id]
	delete(e.uploads, id)
	e.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.file != nil {
		sess.file.Close()
		sess.file = nil
	}
	return os.Remove(sess.tmpPath)
}

// DownloadRequest begins a download of rel, hashing the file and opening a
// read handle for the session's lifetime. At most the configured number of
// concurrent sessions may target the same path.
func (e *Engine) DownloadRequest(ctx context.Context, rel string) (*DownloadSession, error) {
	full, err := resolveWithinRoot(e.root, rel)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(full)
	if err != nil {
		return nil, fmt.Errorf("filetransfer: stat: %w", err)
	}
	if info.IsDir() {
		return nil, ErrIsADirectory
	}

	e.mu.Lock()
	active := 0
	for _, s := range e.downloads {
		if s.Path == full {
			active++
		}
	}
	if active >= e.downloadCap {
		e.mu.Unlock()
		return nil, ErrTooManyDownloads
	}
	// Reserve the slot before the (slow) hash so a concurrent request for
	// the same path observes the cap immediately.
	sess := &DownloadSession{ID: uuid.New(), Path: full, Size: uint64(info.Size())}
	e.downloads[sess.ID] = sess
	e.mu.Unlock()

	sum, err := blocking.Run(ctx, func() (string, error) { return hashFile(full) })
	if err != nil {
		e.evictDownload(sess.ID)
		return nil, err
	}
	f, err := os.Open(full)
	if err != nil {
		e.evictDownload(sess.ID)
		return nil, fmt.Errorf("filetransfer: open: %w", err)
	}
	sess.SHA1 = sum
	sess.file = f
	return sess, nil
}

func (e *Engine) evictDownload(id uuid.UUID) {
	e.mu.Lock()
	delete(e.downloads, id)
	e.mu.Unlock()
}

// DownloadRange reads [from, to) from the session's file. from must be
// strictly below to, and to must not exceed the file size.
func (e *Engine) DownloadRange(id uuid.UUID, from, to uint64) ([]byte, error) {
	e.mu.Lock()
	sess, ok := e.downloads[id]
	e.mu.Unlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	if from >= to || to > sess.Size {
		return nil, ErrOutOfRange
	}

	buf := make([]byte, to-from)
	if _, err := sess.file.ReadAt(buf, int64(from)); err != nil && err != io.EOF {
		return nil, fmt.Errorf("filetransfer: read range: %w", err)
	}
	return buf, nil
}

// DownloadClose removes a download session and releases its file handle.
func (e *Engine) DownloadClose(id uuid.UUID) error {
	e.mu.Lock()
	sess, ok := e.downloads[id]
	delete(e.downloads, id)
	e.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	if sess.file != nil {
		return sess.file.Close()
	}
	return nil
}

// CloseAll tears down every open session; called on daemon shutdown so no
// staging files or handles outlive the process's graceful exit.
func (e *Engine) CloseAll() {
	e.mu.Lock()
	uploads := make([]*UploadSession, 0, len(e.uploads))
	for _, s := range e.uploads {
		uploads = append(uploads, s)
	}
	downloads := make([]*DownloadSession, 0, len(e.downloads))
	for _, s := range e.downloads {
		downloads = append(downloads, s)
	}
	e.uploads = make(map[uuid.UUID]*UploadSession)
	e.downloads = make(map[uuid.UUID]*DownloadSession)
	e.mu.Unlock()

	for _, s := range uploads {
		s.mu.Lock()
		if s.file != nil {
			s.file.Close()
			s.file = nil
		}
		os.Remove(s.tmpPath)
		s.mu.Unlock()
	}
	for _, s := range downloads {
		if s.file != nil {
			s.file.Close()
		}
	}
}

// SHA1 streams the file at rel through SHA-1 on a dedicated goroutine,
// returning its hex digest.
func (e *Engine) SHA1(ctx context.Context, rel string) (string, error) {
	full, err := resolveWithinRoot(e.root, rel)
	if err != nil {
		return "", err
	}
	return blocking.Run(ctx, func() (string, error) { return hashFile(full) })
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("filetransfer: open: %w", err)
	}
	defer f.Close()

	h := sha1.New()
	buf := make([]byte, 32*1024)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", fmt.Errorf("filetransfer: hash: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
