package report

import (
	"fmt"
	"html"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/typetrace/typetrace/internal/analysis"
)

// Styler decorates source files with the style runs the linker collected and
// writes one static HTML page per file plus an index.
type Styler struct {
	analyzer *analysis.Analyzer
	linker   *Linker
	outDir   string
}

func NewStyler(a *analysis.Analyzer, l *Linker, outDir string) *Styler {
	return &Styler{analyzer: a, linker: l, outDir: outDir}
}

// WriteAll renders every analyzed file into outDir.
func (s *Styler) WriteAll() error {
	if err := os.MkdirAll(s.outDir, 0o755); err != nil {
		return err
	}

	files := s.analyzer.LoadedFiles()
	for _, file := range files {
		page, err := s.renderFile(file)
		if err != nil {
			return err
		}
		out := filepath.Join(s.outDir, htmlName(file))
		if err := os.WriteFile(out, []byte(page), 0o644); err != nil {
			return err
		}
	}
	return s.writeIndex(files)
}

func (s *Styler) renderFile(file string) (string, error) {
	source, err := os.ReadFile(file)
	if err != nil {
		return "", err
	}
	styles := s.linker.StylesFor(file)

	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"UTF-8\">\n")
	fmt.Fprintf(&sb, "<title>%s</title>\n", html.EscapeString(filepath.Base(file)))
	sb.WriteString("<style>\n" + pageCSS + "</style>\n</head>\n<body>\n")
	fmt.Fprintf(&sb, "<h1>%s</h1>\n<pre>", html.EscapeString(file))
	sb.WriteString(s.decorate(source, styles))
	sb.WriteString("</pre>\n" + highlightJS + "</body>\n</html>\n")
	return sb.String(), nil
}

// decorate interleaves escaped source text with anchor and link spans. Runs
// that overlap an already-open run are dropped; nesting is not needed for
// name-sized spans.
func (s *Styler) decorate(source []byte, styles []StyleRun) string {
	var sb strings.Builder
	pos := 0
	for _, run := range styles {
		if run.Start < pos || run.Start+run.Length > len(source) || run.Length <= 0 {
			continue
		}
		sb.WriteString(html.EscapeString(string(source[pos:run.Start])))
		text := html.EscapeString(string(source[run.Start : run.Start+run.Length]))
		title := html.EscapeString(run.Message)
		hl := strings.Join(run.Highlight, " ")
		switch run.Kind {
		case StyleAnchor:
			fmt.Fprintf(&sb, `<a class="def" id=%q title=%q data-hl=%q>%s</a>`,
				run.ID, title, hl, text)
		case StyleLink:
			href := "#"
			if len(run.Highlight) > 0 {
				href = "#" + run.Highlight[0]
			}
			if strings.HasPrefix(run.URL, "http") {
				href = run.URL
			}
			fmt.Fprintf(&sb, `<a class="ref" id=%q href=%q title=%q data-hl=%q>%s</a>`,
				run.ID, href, title, hl, text)
		default:
			fmt.Fprintf(&sb, `<span class="warn" title=%q>%s</span>`, title, text)
		}
		pos = run.Start + run.Length
	}
	sb.WriteString(html.EscapeString(string(source[pos:])))
	return sb.String()
}

func (s *Styler) writeIndex(files []string) error {
	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"UTF-8\">\n")
	sb.WriteString("<title>typetrace index</title>\n<style>\n" + pageCSS + "</style>\n</head>\n<body>\n")
	sb.WriteString("<h1>Analyzed files</h1>\n<ul>\n")
	for _, f := range files {
		fmt.Fprintf(&sb, "<li><a href=%q>%s</a></li>\n", htmlName(f), html.EscapeString(f))
	}
	sb.WriteString("</ul>\n</body>\n</html>\n")
	return os.WriteFile(filepath.Join(s.outDir, "index.html"), []byte(sb.String()), 0o644)
}

// htmlName flattens a path into a unique page name.
func htmlName(file string) string {
	return sanitizeID(file) + ".html"
}

// Problems returns diagnostics grouped per file in positional order, for
// callers that render them under the source listing.
func Problems(a *analysis.Analyzer) map[string][]analysis.Diagnostic {
	out := make(map[string][]analysis.Diagnostic)
	for _, diags := range a.Problems() {
		for _, d := range diags {
			out[d.File] = append(out[d.File], d)
		}
	}
	for file, diags := range a.FileProblems() {
		out[file] = append(out[file], diags...)
	}
	for file := range out {
		diags := out[file]
		sort.Slice(diags, func(i, j int) bool { return diags[i].Start < diags[j].Start })
		out[file] = diags
	}
	return out
}

const pageCSS = `body { font-family: monospace; background: #fdfdfd; color: #222; margin: 1em 2em; }
h1 { font-size: 1.0rem; color: #445; }
pre { line-height: 1.35; }
a.def { color: #036; font-weight: bold; text-decoration: none; }
a.ref { color: #06c; text-decoration: none; }
a.def.hl, a.ref.hl { background: #ffe9a8; }
span.warn { border-bottom: 1px dotted #c33; }
`

const highlightJS = `<script>
document.querySelectorAll('a[data-hl]').forEach(function (el) {
  var ids = (el.getAttribute('data-hl') || '').split(' ').filter(Boolean);
  el.addEventListener('mouseenter', function () {
    ids.concat([el.id]).forEach(function (id) {
      var t = document.getElementById(id);
      if (t) t.classList.add('hl');
    });
  });
  el.addEventListener('mouseleave', function () {
    ids.concat([el.id]).forEach(function (id) {
      var t = document.getElementById(id);
      if (t) t.classList.remove('hl');
    });
  });
});
</script>
`
