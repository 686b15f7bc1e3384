package report

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/typetrace/typetrace/internal/analysis"
	"github.com/typetrace/typetrace/internal/infer"
	"github.com/typetrace/typetrace/internal/syntax"
)

// Linker collects per-file hyperlinks and semantic styles that need the
// binding index to resolve.
type Linker struct {
	fileStyles map[string][]StyleRun
	seenDef    map[*infer.Binding]struct{}
	seenRef    map[infer.Ref]struct{}
}

func NewLinker() *Linker {
	return &Linker{
		fileStyles: make(map[string][]StyleRun),
		seenDef:    make(map[*infer.Binding]struct{}),
		seenRef:    make(map[infer.Ref]struct{}),
	}
}

// FindLinks walks every binding and every reference, producing anchors for
// definition sites and links for uses.
func (l *Linker) FindLinks(a *analysis.Analyzer) {
	slog.Info("adding xref links", "bindings", len(a.AllBindings()))
	for _, b := range a.AllBindings() {
		l.processDef(b)
	}
	slog.Info("adding ref links", "refs", len(a.References()))
	for ref, bindings := range a.References() {
		l.processRef(ref, bindings)
	}
}

func (l *Linker) processDef(b *infer.Binding) {
	if b.Builtin || b.Start < 0 || b.File == "" {
		return
	}
	// A module binding spans its whole file; as an anchor it would swallow
	// every other run on the page.
	if _, whole := b.Node.(*syntax.Module); whole {
		return
	}
	if _, seen := l.seenDef[b]; seen {
		return
	}
	l.seenDef[b] = struct{}{}

	style := StyleRun{
		Kind:    StyleAnchor,
		Start:   b.Start,
		Length:  b.Length,
		Message: b.Type.String(),
		URL:     b.QName,
		ID:      defID(b),
	}
	for _, r := range b.RefList() {
		style.Highlight = append(style.Highlight, refID(r))
	}
	sort.Strings(style.Highlight)
	l.addFileStyle(b.File, style)
}

func (l *Linker) processRef(ref infer.Ref, bindings []*infer.Binding) {
	if ref.File == "" {
		return
	}
	if _, seen := l.seenRef[ref]; seen {
		return
	}
	l.seenRef[ref] = struct{}{}

	link := StyleRun{
		Kind:   StyleLink,
		Start:  ref.Start,
		Length: ref.Length,
		ID:     refID(ref),
	}

	typings := make([]string, 0, len(bindings))
	for _, b := range bindings {
		typings = append(typings, b.Type.String())
		link.Highlight = append(link.Highlight, defID(b))
		if link.URL == "" {
			if b.Builtin && b.URL != "" {
				link.URL = b.URL
			} else {
				link.URL = b.QName
			}
		}
	}
	link.Message = "{" + strings.Join(typings, " | ") + "}"
	l.addFileStyle(ref.File, link)
}

func (l *Linker) addFileStyle(file string, style StyleRun) {
	l.fileStyles[file] = append(l.fileStyles[file], style)
}

// StylesFor returns the style runs for one file sorted by position.
func (l *Linker) StylesFor(file string) []StyleRun {
	styles := append([]StyleRun(nil), l.fileStyles[file]...)
	sort.Slice(styles, func(i, j int) bool {
		if styles[i].Start != styles[j].Start {
			return styles[i].Start < styles[j].Start
		}
		return styles[i].End() > styles[j].End()
	})
	return styles
}

// Files lists every file that received at least one style.
func (l *Linker) Files() []string {
	out := make([]string, 0, len(l.fileStyles))
	for f := range l.fileStyles {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

func defID(b *infer.Binding) string {
	return fmt.Sprintf("d%s-%d-%d", sanitizeID(b.File), b.Start, b.Length)
}

func refID(r infer.Ref) string {
	return fmt.Sprintf("r%s-%d-%d", sanitizeID(r.File), r.Start, r.Length)
}

func sanitizeID(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
		}
	}
	return sb.String()
}
