package control

import (
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// artworkStore serves the static artwork bytes referenced by DIDL-Lite's
// upnp:albumArtURI when no external artwork URL overrides it. Grounded on
// spec.md §6's GET /artwork.jpg contract. The file is read at startup and
// re-read on every fsnotify write/create event against its path, so an
// operator can swap the cover art without restarting the process.
type artworkStore struct {
	mu          sync.RWMutex
	path        string
	data        []byte
	contentType string
	watcher     *fsnotify.Watcher
}

func newArtworkStore(path string) *artworkStore {
	s := &artworkStore{path: path}
	if path == "" {
		return s
	}
	s.reload()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Warn("artwork: failed to start file watcher, hot-reload disabled", "error", err)
		return s
	}
	if err := watcher.Add(path); err != nil {
		slog.Warn("artwork: failed to watch artwork path, hot-reload disabled", "path", path, "error", err)
		watcher.Close()
		return s
	}
	s.watcher = watcher
	go s.watchLoop()
	return s
}

func (s *artworkStore) watchLoop() {
	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				s.reload()
				slog.Info("artwork: reloaded after file change", "path", s.path)
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("artwork: watcher error", "error", err)
		}
	}
}

func (s *artworkStore) reload() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		slog.Warn("artwork: failed to read artwork file", "path", s.path, "error", err)
		return
	}
	s.mu.Lock()
	s.data = data
	s.contentType = "image/jpeg"
	s.mu.Unlock()
}

func (s *artworkStore) bytes() ([]byte, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.data == nil {
		return nil, "", false
	}
	return s.data, s.contentType, true
}

// handleArtwork serves GET /artwork.jpg. 404 when no artwork path was
// configured or the file couldn't be read at startup.
func (s *Server) handleArtwork(w http.ResponseWriter, r *http.Request) {
	data, contentType, ok := s.artwork.bytes()
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
