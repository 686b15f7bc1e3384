package main

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/typetrace/typetrace/internal/index"
)

var (
	browseTitleStyle = lipgloss.NewStyle().
				MarginLeft(2).
				Foreground(lipgloss.Color("#3B82F6")).
				Bold(true).
				Render

	browseDocStyle = lipgloss.NewStyle().Margin(1, 2)

	browseStatusStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#64748B")).
				Italic(true)
)

type bindingItem struct {
	title, desc string
}

func (i bindingItem) Title() string       { return i.title }
func (i bindingItem) Description() string { return i.desc }
func (i bindingItem) FilterValue() string { return i.title + i.desc }

type browseModel struct {
	list  list.Model
	total int
}

func (m browseModel) Init() tea.Cmd {
	return nil
}

func (m browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		h, v := browseDocStyle.GetFrameSize()
		m.list.SetSize(msg.Width-h, msg.Height-v-2)
	}
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m browseModel) View() string {
	status := browseStatusStyle.Render(fmt.Sprintf("%d bindings · / to filter · q to quit", m.total))
	return browseDocStyle.Render(m.list.View()) + "\n" + status
}

func newBrowseModel(records []index.BindingRecord) browseModel {
	items := make([]list.Item, 0, len(records))
	for _, r := range records {
		loc := "builtin"
		if r.File != "" {
			loc = fmt.Sprintf("%s:%d", r.File, r.Start)
		}
		items = append(items, bindingItem{
			title: r.QName,
			desc:  fmt.Sprintf("%s · %s · %s · %d refs", r.Kind, r.Type, loc, r.RefCount),
		})
	}

	l := list.New(items, list.NewDefaultDelegate(), 0, 0)
	l.Title = browseTitleStyle("typetrace bindings")
	l.SetShowStatusBar(false)
	return browseModel{list: l, total: len(items)}
}

func newBrowseCmd() *cobra.Command {
	var builtins bool
	cmd := &cobra.Command{
		Use:   "browse [path]",
		Short: "Interactively browse the binding index",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			root := "."
			if len(args) > 0 {
				root = args[0]
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			cache, err := newCache(cfg)
			if err != nil {
				return err
			}
			a, _, err := runPass(cfg, cache, root)
			if err != nil {
				return err
			}

			records := index.Records(a.AllBindings())
			if !builtins {
				kept := records[:0]
				for _, r := range records {
					if !r.Builtin {
						kept = append(kept, r)
					}
				}
				records = kept
			}

			_, err = tea.NewProgram(newBrowseModel(records), tea.WithAltScreen()).Run()
			return err
		},
	}
	cmd.Flags().BoolVar(&builtins, "builtins", false, "include builtin bindings")
	return cmd
}
