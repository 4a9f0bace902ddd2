package web

import (
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/sheet2sql/internal/core"
	"github.com/JonMunkholm/sheet2sql/internal/schema"
)

// TemplateSummary is one entry of GET /api/templates. Invalid templates are
// listed with their problem so a bad template file is visible remotely.
type TemplateSummary struct {
	Name         string   `json:"name"`
	Table        string   `json:"table,omitempty"`
	Fields       int      `json:"fields"`
	FilePatterns []string `json:"file_patterns,omitempty"`
	Valid        bool     `json:"valid"`
	Error        string   `json:"error,omitempty"`
}

// FieldDetail describes one field in GET /api/templates/{name}.
type FieldDetail struct {
	Name     string   `json:"name"`
	Column   string   `json:"column"`
	Type     string   `json:"type"`
	Nullable bool     `json:"nullable"`
	Required bool     `json:"required"`
	Default  string   `json:"default,omitempty"`
	Aliases  []string `json:"aliases,omitempty"`
}

// TemplateDetail is the JSON form of a template.
type TemplateDetail struct {
	Name         string        `json:"name"`
	Table        string        `json:"table"`
	FilePatterns []string      `json:"file_patterns,omitempty"`
	Fields       []FieldDetail `json:"fields"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"status":    "ok",
		"templates": s.reg.Len(),
		"invalid":   len(s.reg.Problems()),
		"limiter":   s.limiter.Status(),
	})
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	all := s.reg.All()
	problems := s.reg.Problems()

	out := make([]TemplateSummary, 0, len(all)+len(problems))
	for _, t := range all {
		out = append(out, TemplateSummary{
			Name:         t.Name,
			Table:        t.TableName(),
			Fields:       len(t.Fields),
			FilePatterns: t.FilePatterns,
			Valid:        true,
		})
	}
	for name, err := range problems {
		out = append(out, TemplateSummary{Name: name, Error: err.Error()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	writeJSON(w, out)
}

// handleGetTemplate returns the template as JSON, or in the template file
// syntax with ?format=yaml.
func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	t, err := s.reg.Get(chi.URLParam(r, "name"))
	if err != nil {
		respondError(w, r, err, 0)
		return
	}

	if r.URL.Query().Get("format") == "yaml" {
		data, err := schema.MarshalYAML(*t)
		if err != nil {
			respondError(w, r, err, http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/yaml")
		w.Write(data)
		return
	}

	detail := TemplateDetail{
		Name:         t.Name,
		Table:        t.TableName(),
		FilePatterns: t.FilePatterns,
		Fields:       make([]FieldDetail, len(t.Fields)),
	}
	for i, f := range t.Fields {
		detail.Fields[i] = FieldDetail{
			Name:     f.Name,
			Column:   f.ColumnName(),
			Type:     f.Type.String(),
			Nullable: f.Nullable,
			Required: f.Required(),
			Default:  f.Default,
			Aliases:  f.Aliases,
		}
	}
	writeJSON(w, detail)
}

func (s *Server) handleTemplateDDL(w http.ResponseWriter, r *http.Request) {
	t, err := s.reg.Get(chi.URLParam(r, "name"))
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	p, err := core.NewPipeline(t)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(p.CreateTableSQL() + "\n"))
}
