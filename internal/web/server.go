// Package web is the browser-facing grading dashboard: a single upload
// page plus JSON endpoints wrapping the build and grade pipelines. It is
// a thin layer; all grading semantics live in the core packages.
package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"markscan/internal/classify"
	"markscan/internal/codec"
	"markscan/internal/evaluate"
	"markscan/internal/registration"
	"markscan/internal/render"
	"markscan/internal/template"
)

// maxUploadBytes caps multipart request memory.
const maxUploadBytes = 32 << 20

// Server exposes the grading pipeline over HTTP.
type Server struct {
	logger    *log.Logger
	threshold float64
	regCfg    registration.Config
}

// NewServer creates a Server with the given defaults.
func NewServer(logger *log.Logger, threshold float64, regCfg registration.Config) *Server {
	return &Server{logger: logger, threshold: threshold, regCfg: regCfg}
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleIndex)
	r.Post("/api/build", s.handleBuild)
	r.Post("/api/grade", s.handleGrade)
	return r
}

// ListenAndServe runs the server until the listener fails.
func (s *Server) ListenAndServe(addr string) error {
	s.logger.Info("dashboard listening", "addr", addr)
	return http.ListenAndServe(addr, s.Router())
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	io.WriteString(w, indexHTML)
}

// handleBuild renders an uploaded template and returns the sheet PNG.
func (s *Server) handleBuild(w http.ResponseWriter, r *http.Request) {
	tmpl, err := s.parseTemplateUpload(r)
	if err != nil {
		s.fail(w, err)
		return
	}

	sheet, err := render.New(render.DefaultOptions()).Render(tmpl)
	if err != nil {
		s.fail(w, err)
		return
	}
	data, err := codec.Encode(sheet, codec.FormatPNG)
	if err != nil {
		s.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(data)
}

// handleGrade grades an uploaded scan against an uploaded template. The
// response is the result document, or the overlay PNG when the request
// asks for ?overlay=1.
func (s *Server) handleGrade(w http.ResponseWriter, r *http.Request) {
	tmpl, err := s.parseTemplateUpload(r)
	if err != nil {
		s.fail(w, err)
		return
	}

	scanData, err := formFile(r, "scan")
	if err != nil {
		s.fail(w, err)
		return
	}
	scan, err := codec.Decode(scanData)
	if err != nil {
		s.fail(w, err)
		return
	}

	threshold := s.threshold
	if v := r.FormValue("threshold"); v != "" {
		if _, err := fmt.Sscanf(v, "%f", &threshold); err != nil {
			s.fail(w, &classify.ClassificationError{Threshold: -1, Context: "unparseable threshold"})
			return
		}
	}

	overlay, doc, err := evaluate.Grade(scan, tmpl, threshold, s.regCfg)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.logger.Info("graded upload", "run", doc.RunID, "questions", len(doc.Questions))

	if r.URL.Query().Get("overlay") == "1" {
		data, err := codec.Encode(overlay, codec.FormatPNG)
		if err != nil {
			s.fail(w, err)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(data)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(doc)
}

func (s *Server) parseTemplateUpload(r *http.Request) (*template.Template, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, &template.ValidationError{Field: "request", Reason: "expected multipart form upload"}
	}
	data, err := formFile(r, "template")
	if err != nil {
		return nil, err
	}
	return template.Parse(data)
}

func formFile(r *http.Request, field string) ([]byte, error) {
	f, _, err := r.FormFile(field)
	if err != nil {
		return nil, &template.ValidationError{Field: field, Reason: "missing upload"}
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, maxUploadBytes))
}

// fail maps typed core failures onto HTTP statuses.
func (s *Server) fail(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	var vErr *template.ValidationError
	var fErr *codec.FormatError
	var rErr *registration.Error
	var cErr *classify.ClassificationError
	switch {
	case errors.As(err, &vErr):
		status = http.StatusBadRequest
	case errors.As(err, &fErr):
		status = http.StatusBadRequest
	case errors.As(err, &cErr):
		status = http.StatusBadRequest
	case errors.As(err, &rErr):
		status = http.StatusUnprocessableEntity
	}

	s.logger.Warn("request failed", "status", status, "err", err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

const indexHTML = `<!doctype html>
<html>
<head><title>markscan</title></head>
<body>
<h1>markscan</h1>
<h2>Grade a scanned sheet</h2>
<form action="/api/grade" method="post" enctype="multipart/form-data">
  <p>Template JSON: <input type="file" name="template"></p>
  <p>Scanned sheet (PNG or PGM): <input type="file" name="scan"></p>
  <p>Threshold: <input type="text" name="threshold" placeholder="0.5"></p>
  <p><button type="submit">Grade</button></p>
</form>
<h2>Render a blank sheet</h2>
<form action="/api/build" method="post" enctype="multipart/form-data">
  <p>Template JSON: <input type="file" name="template"></p>
  <p><button type="submit">Build</button></p>
</form>
</body>
</html>
`
