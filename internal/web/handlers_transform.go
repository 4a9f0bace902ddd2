package web

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/sheet2sql/internal/core"
	"github.com/JonMunkholm/sheet2sql/internal/logging"
	"github.com/JonMunkholm/sheet2sql/internal/runner"
	"github.com/JonMunkholm/sheet2sql/internal/schema"
	"github.com/JonMunkholm/sheet2sql/internal/workbook"
)

// TransformResponse is the JSON result of POST /api/transform.
type TransformResponse struct {
	Template    string           `json:"template"`
	Table       string           `json:"table"`
	Total       int              `json:"total"`
	Accepted    int              `json:"accepted"`
	Rejected    int              `json:"rejected"`
	InputDigest string           `json:"input_digest"`
	Statements  []string         `json:"statements"`
	Rejections  []core.Rejection `json:"rejections"`
}

// handleTransform runs an uploaded spreadsheet through a template and
// returns the outcome. The file is either the "file" part of a multipart
// form or the raw request body, in which case ?format= or ?filename= must
// identify it. ?output=sql returns only the script and ?output=cleaned the
// cleaned file in the input format.
func (s *Server) handleTransform(w http.ResponseWriter, r *http.Request) {
	output := r.URL.Query().Get("output")
	switch output {
	case "", "json", "sql", "cleaned":
	default:
		respondError(w, r, fmt.Errorf("unknown output %q: use json, sql or cleaned", output), http.StatusBadRequest)
		return
	}

	var tmpl *schema.Template
	if name := chi.URLParam(r, "name"); name != "" {
		t, err := s.reg.Get(name)
		if err != nil {
			respondError(w, r, err, 0)
			return
		}
		tmpl = t
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxFileSize)
	src, fileName, format, err := uploadedFile(r)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	defer src.Close()

	if err := s.limiter.Acquire(r.Context()); err != nil {
		respondError(w, r, err, 0)
		return
	}
	defer s.limiter.Release()

	out, err := s.runner.TransformReader(src, fileName, format, tmpl)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			err = fmt.Errorf("file too large: %w", err)
		}
		respondError(w, r, err, 0)
		return
	}

	logging.FromContext(r.Context()).Info("transform complete",
		"file", fileName,
		"template", out.Result.Template,
		"rows", out.Result.Total,
		"accepted", out.Result.Accepted(),
		"rejected", len(out.Result.Rejections),
	)

	switch output {
	case "sql":
		w.Header().Set("Content-Type", "application/sql; charset=utf-8")
		if out.Script != "" {
			io.WriteString(w, out.Script+"\n")
		}
	case "cleaned":
		stem := strings.TrimSuffix(filepath.Base(fileName), filepath.Ext(fileName))
		w.Header().Set("Content-Type", format.ContentType())
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
			"filename": stem + format.Ext(),
		}))
		if err := workbook.Write(w, format, out.Pipeline.Template().FieldNames(), out.Result.Cleaned); err != nil {
			logging.FromContext(r.Context()).Error("write cleaned file", "error", err)
		}
	default:
		writeJSON(w, transformResponse(out))
	}
}

func transformResponse(out *runner.Output) TransformResponse {
	resp := TransformResponse{
		Template:    out.Result.Template,
		Table:       out.Result.Table,
		Total:       out.Result.Total,
		Accepted:    out.Result.Accepted(),
		Rejected:    len(out.Result.Rejections),
		InputDigest: out.InputDigest,
		Statements:  out.Result.Statements,
		Rejections:  out.Result.Rejections,
	}
	if resp.Statements == nil {
		resp.Statements = []string{}
	}
	if resp.Rejections == nil {
		resp.Rejections = []core.Rejection{}
	}
	return resp
}

// uploadedFile returns the posted spreadsheet with its name and format.
func uploadedFile(r *http.Request) (io.ReadCloser, string, workbook.Format, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if mediaType == "multipart/form-data" {
		file, header, err := r.FormFile("file")
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return nil, "", 0, fmt.Errorf("file too large: %w", err)
			}
			return nil, "", 0, fmt.Errorf("no file provided: %w", err)
		}
		format, err := formatFor(r, header.Filename)
		if err != nil {
			file.Close()
			return nil, "", 0, err
		}
		return file, header.Filename, format, nil
	}

	name := r.URL.Query().Get("filename")
	if name == "" {
		name = "upload"
	}
	format, err := formatFor(r, name)
	if err != nil {
		return nil, "", 0, err
	}
	return r.Body, name, format, nil
}

// formatFor prefers an explicit ?format= over the file extension.
func formatFor(r *http.Request, name string) (workbook.Format, error) {
	if f := r.URL.Query().Get("format"); f != "" {
		return workbook.ParseFormat(f)
	}
	return workbook.FormatOf(name)
}
