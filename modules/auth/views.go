package auth

import (
	"bytes"
	"embed"
	"html/template"
	"log/slog"
	"net/http"
)

//go:embed templates/*.html
var templateFS embed.FS

// viewData is the complete surface handed to templates. Handlers populate
// only the fields the view needs; everything else stays zero.
type viewData struct {
	LoggedIn     bool
	User         string
	Error        string
	ErrorMessage string
	UserNotFound bool
	CSRFToken    string
	Message      string
}

func parseTemplates() *template.Template {
	return template.Must(template.ParseFS(templateFS, "templates/*.html"))
}

// render executes the named template into a buffer first so a template
// failure produces a clean 500 instead of a half-written page.
func (s *Service) render(w http.ResponseWriter, name string, data viewData) {
	var buf bytes.Buffer
	if err := s.tmpl.ExecuteTemplate(&buf, name+".html", data); err != nil {
		s.log.Error("template execution failed", slog.String("template", name), slog.Any("error", err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}
