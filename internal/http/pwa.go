package http

import (
	"bytes"
	"net/http"
	"strconv"

	"tkpay/internal/invoice"
	"tkpay/internal/log"
	appweb "tkpay/web"
)

var iconSizes = []int{192, 512}

func (s *Server) handleManifest(w http.ResponseWriter, r *http.Request) {
	s.serveEmbedded(w, r, "static/manifest.webmanifest", "application/manifest+json")
}

// handleServiceWorker serves the worker from the root so its scope covers
// the whole app.
func (s *Server) handleServiceWorker(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Service-Worker-Allowed", "/")
	s.serveEmbedded(w, r, "static/service-worker.js", "text/javascript; charset=utf-8")
}

func (s *Server) serveEmbedded(w http.ResponseWriter, r *http.Request, path, contentType string) {
	data, err := appweb.StaticFS.ReadFile(path)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Embedded asset missing", log.FieldPath, path, log.FieldError, err)
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// handleIcon serves a generated app icon. Icons are drawn once per process.
func (s *Server) handleIcon(size int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.iconsOnce.Do(s.drawIcons)
		if s.iconsErr != nil {
			s.logger.ErrorContext(r.Context(), "Icon generation failed", log.FieldError, s.iconsErr)
			http.Error(w, "icon unavailable", http.StatusInternalServerError)
			return
		}
		data := s.icons[size]
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.Header().Set("Cache-Control", "public, max-age=86400")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}

func (s *Server) drawIcons() {
	s.icons = make(map[int][]byte, len(iconSizes))
	for _, size := range iconSizes {
		var buf bytes.Buffer
		if err := invoice.Icon(&buf, size); err != nil {
			s.iconsErr = err
			return
		}
		s.icons[size] = buf.Bytes()
	}
}
