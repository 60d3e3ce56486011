package upload

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"photovault/internal/inspect"
	"photovault/internal/logging"
	"photovault/internal/mediatypes"
	"photovault/internal/metrics"
)

// ErrUploadComplete is returned when a chunk arrives for an identifier whose
// assembly has already finished. A retrying client must start a new upload
// session rather than corrupt the assembled file.
var ErrUploadComplete = errors.New("upload already assembled")

// ErrInvalidRequest is returned for missing or malformed chunk parameters.
var ErrInvalidRequest = errors.New("invalid chunk request")

// Assembled is the result of a completed chunk reassembly. It is owned by the
// store until a caller Takes it or a sweep reclaims it.
type Assembled struct {
	Identifier   string
	Path         string
	OriginalName string
	Size         int64
	MimeType     string
	CompletedAt  time.Time
}

// ChunkStatus reports progress after a chunk write.
type ChunkStatus struct {
	Complete bool
	Received int
	Total    int
}

// Store receives upload chunks into a scratch directory and reassembles them.
type Store struct {
	scratchDir string

	mu        sync.Mutex
	assembled map[string]*Assembled
}

// NewStore creates a chunk store rooted at scratchDir, creating it if needed.
func NewStore(scratchDir string) (*Store, error) {
	if err := os.MkdirAll(scratchDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating scratch directory: %w", err)
	}
	return &Store{
		scratchDir: scratchDir,
		assembled:  make(map[string]*Assembled),
	}, nil
}

// ReceiveChunk persists one chunk and, if the set is now complete, assembles
// the final file. Chunks may arrive in any order; assembly always concatenates
// in index order.
func (s *Store) ReceiveChunk(identifier string, index, total int, fileName string, chunk io.Reader) (ChunkStatus, error) {
	identifier = sanitizeToken(identifier)
	fileName = filepath.Base(strings.TrimSpace(fileName))

	if identifier == "" || fileName == "" || fileName == "." || fileName == string(filepath.Separator) {
		return ChunkStatus{}, fmt.Errorf("%w: identifier and file name are required", ErrInvalidRequest)
	}
	if total <= 0 || index < 0 || index >= total {
		return ChunkStatus{}, fmt.Errorf("%w: chunk %d of %d", ErrInvalidRequest, index, total)
	}

	s.mu.Lock()
	_, done := s.assembled[identifier]
	s.mu.Unlock()
	if done {
		return ChunkStatus{}, ErrUploadComplete
	}

	dir := filepath.Join(s.scratchDir, identifier)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return ChunkStatus{}, fmt.Errorf("creating chunk directory: %w", err)
	}

	chunkPath := filepath.Join(dir, fmt.Sprintf("chunk_%d", index))
	out, err := os.Create(chunkPath)
	if err != nil {
		return ChunkStatus{}, fmt.Errorf("creating chunk file: %w", err)
	}
	if _, err := io.Copy(out, chunk); err != nil {
		out.Close()
		os.Remove(chunkPath)
		return ChunkStatus{}, fmt.Errorf("writing chunk %d: %w", index, err)
	}
	if err := out.Close(); err != nil {
		return ChunkStatus{}, fmt.Errorf("closing chunk file: %w", err)
	}

	metrics.ChunksReceived.Inc()

	received, err := s.countChunks(dir)
	if err != nil {
		return ChunkStatus{}, err
	}

	status := ChunkStatus{Received: received, Total: total}
	if received < total {
		return status, nil
	}

	asm, err := s.assemble(identifier, dir, fileName, total)
	if err != nil {
		return ChunkStatus{}, err
	}

	s.mu.Lock()
	s.assembled[identifier] = asm
	s.mu.Unlock()

	status.Complete = true
	metrics.UploadsAssembled.Inc()
	logging.Info("Upload %s assembled: %s (%d bytes, %s)", identifier, fileName, asm.Size, asm.MimeType)
	return status, nil
}

// assemble concatenates chunk_0..chunk_(n-1) into the named file, deleting
// each chunk as it is consumed.
func (s *Store) assemble(identifier, dir, fileName string, total int) (*Assembled, error) {
	finalPath := filepath.Join(dir, fileName)
	out, err := os.Create(finalPath)
	if err != nil {
		return nil, fmt.Errorf("creating assembled file: %w", err)
	}

	for i := 0; i < total; i++ {
		chunkPath := filepath.Join(dir, fmt.Sprintf("chunk_%d", i))
		in, err := os.Open(chunkPath)
		if err != nil {
			out.Close()
			return nil, fmt.Errorf("opening chunk %d during assembly: %w", i, err)
		}
		_, err = io.Copy(out, in)
		in.Close()
		if err != nil {
			out.Close()
			return nil, fmt.Errorf("concatenating chunk %d: %w", i, err)
		}
		if err := os.Remove(chunkPath); err != nil {
			logging.Warn("failed to remove consumed chunk %s: %v", chunkPath, err)
		}
	}
	if err := out.Close(); err != nil {
		return nil, fmt.Errorf("closing assembled file: %w", err)
	}

	info, err := os.Stat(finalPath)
	if err != nil {
		return nil, fmt.Errorf("stat assembled file: %w", err)
	}

	mime, err := inspect.SniffMime(finalPath)
	if err != nil || mime == "application/octet-stream" {
		mime = mediatypes.GetMimeType(strings.ToLower(filepath.Ext(fileName)))
	}

	return &Assembled{
		Identifier:   identifier,
		Path:         finalPath,
		OriginalName: fileName,
		Size:         info.Size(),
		MimeType:     mime,
		CompletedAt:  time.Now(),
	}, nil
}

func (s *Store) countChunks(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("reading chunk directory: %w", err)
	}
	count := 0
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), "chunk_") {
			count++
		}
	}
	return count, nil
}

// Get returns the assembled upload for an identifier without consuming it.
func (s *Store) Get(identifier string) (*Assembled, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	asm, ok := s.assembled[sanitizeToken(identifier)]
	return asm, ok
}

// Take removes the assembled upload from the registry and hands ownership of
// its files to the caller. The caller is responsible for Cleanup afterwards.
func (s *Store) Take(identifier string) (*Assembled, bool) {
	identifier = sanitizeToken(identifier)
	s.mu.Lock()
	defer s.mu.Unlock()
	asm, ok := s.assembled[identifier]
	if ok {
		delete(s.assembled, identifier)
	}
	return asm, ok
}

// Cleanup removes all scratch state for an identifier.
func (s *Store) Cleanup(identifier string) error {
	identifier = sanitizeToken(identifier)
	if identifier == "" {
		return fmt.Errorf("%w: empty identifier", ErrInvalidRequest)
	}
	s.mu.Lock()
	delete(s.assembled, identifier)
	s.mu.Unlock()
	return os.RemoveAll(filepath.Join(s.scratchDir, identifier))
}

// SweepOlderThan reclaims scratch directories whose contents have not been
// touched within maxAge. It returns the number of directories removed.
// Abandoned sessions are reclaimed by age, not by explicit cancellation.
func (s *Store) SweepOlderThan(maxAge time.Duration) int {
	entries, err := os.ReadDir(s.scratchDir)
	if err != nil {
		logging.Warn("scratch sweep: %v", err)
		return 0
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := s.Cleanup(e.Name()); err != nil {
			logging.Warn("scratch sweep: failed to remove %s: %v", e.Name(), err)
			continue
		}
		removed++
	}
	if removed > 0 {
		logging.Info("Scratch sweep reclaimed %d stale upload directories", removed)
	}
	return removed
}

// Dir returns the scratch directory assigned to an identifier.
func (s *Store) Dir(identifier string) string {
	return filepath.Join(s.scratchDir, sanitizeToken(identifier))
}

// sanitizeToken strips path separators and traversal sequences from a
// client-supplied identifier so it is safe to use as a directory name.
func sanitizeToken(token string) string {
	token = strings.TrimSpace(token)
	token = strings.ReplaceAll(token, "..", "")
	token = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', 0:
			return -1
		}
		return r
	}, token)
	return token
}
