// Package desktop is the interactive terminal form for estimating a single
// charging bill.
package desktop

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/kilianp07/evbill/core/model"
	"github.com/kilianp07/evbill/core/prediction"
)

type field int

const (
	fieldEnergy field = iota
	fieldDuration
	fieldRate
	fieldTemperature
	fieldCharger
	fieldTime
	fieldUser
	fieldCount
)

var labels = [fieldCount]string{
	"Energy Consumed (kWh):",
	"Charging Duration (hours):",
	"Charging Rate (kW):",
	"Temperature (°C):",
	"Charger Type:",
	"Time of Day:",
	"User Type:",
}

type keyMap struct {
	Next   key.Binding
	Prev   key.Binding
	Submit key.Binding
	Quit   key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Next: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "next field"),
		),
		Prev: key.NewBinding(
			key.WithKeys("shift+tab"),
			key.WithHelp("shift+tab", "previous field"),
		),
		Submit: key.NewBinding(
			key.WithKeys("ctrl+s"),
			key.WithHelp("ctrl+s", "calculate bill"),
		),
		Quit: key.NewBinding(
			key.WithKeys("esc", "ctrl+c"),
			key.WithHelp("esc", "quit"),
		),
	}
}

func (k keyMap) ShortHelp() []key.Binding { return []key.Binding{k.Next, k.Prev, k.Submit, k.Quit} }

func (k keyMap) FullHelp() [][]key.Binding { return [][]key.Binding{k.ShortHelp()} }

// predictionMsg carries the outcome of a submitted form.
type predictionMsg struct {
	req  model.Request
	cost float64
	err  error
}

// Model is the bubbletea model of the form.
type Model struct {
	ctx    context.Context
	engine prediction.Engine
	inputs []textinput.Model
	focus  field
	keys   keyMap
	help   help.Model

	busy   bool
	result string
	err    error
	width  int
}

// New builds the form. Predictions are tagged with the desktop source.
func New(ctx context.Context, engine prediction.Engine) *Model {
	m := &Model{
		ctx:    prediction.WithSource(ctx, prediction.SourceDesktop),
		engine: engine,
		inputs: make([]textinput.Model, fieldCount),
		keys:   defaultKeyMap(),
		help:   help.New(),
	}
	for i := range m.inputs {
		m.inputs[i] = newInput(field(i))
	}
	m.inputs[fieldEnergy].Focus()
	return m
}

func newInput(f field) textinput.Model {
	in := textinput.New()
	in.Prompt = "> "
	in.CharLimit = 40
	in.Width = 28
	switch f {
	case fieldCharger:
		in.Placeholder = model.ChargerTypes[0]
		in.ShowSuggestions = true
		in.SetSuggestions(model.ChargerTypes)
	case fieldTime:
		in.Placeholder = model.TimesOfDay[0]
		in.ShowSuggestions = true
		in.SetSuggestions(model.TimesOfDay)
	case fieldUser:
		in.Placeholder = model.UserTypes[0]
		in.ShowSuggestions = true
		in.SetSuggestions(model.UserTypes)
	default:
		in.Placeholder = "0.0"
	}
	return in
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd { return textinput.Blink }

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil
	case predictionMsg:
		m.busy = false
		if msg.err != nil {
			m.err = msg.err
			m.result = ""
			return m, nil
		}
		m.err = nil
		m.result = prediction.FormatCost(msg.cost)
		return m, nil
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Submit):
			return m, m.submit()
		case key.Matches(msg, m.keys.Next):
			m.complete()
			return m, m.setFocus(m.focus + 1)
		case key.Matches(msg, m.keys.Prev):
			return m, m.setFocus(m.focus - 1)
		case msg.Type == tea.KeyEnter:
			m.complete()
			if m.focus == fieldCount-1 {
				return m, m.submit()
			}
			return m, m.setFocus(m.focus + 1)
		}
	}
	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

// complete replaces a partially typed category with its suggestion.
func (m *Model) complete() {
	in := &m.inputs[m.focus]
	if !in.ShowSuggestions || strings.TrimSpace(in.Value()) == "" {
		return
	}
	if s := in.CurrentSuggestion(); s != "" && s != in.Value() {
		in.SetValue(s)
		in.CursorEnd()
	}
}

func (m *Model) setFocus(f field) tea.Cmd {
	f = (f + fieldCount) % fieldCount
	m.inputs[m.focus].Blur()
	m.focus = f
	return m.inputs[f].Focus()
}

func (m *Model) raw() prediction.RawRequest {
	v := func(f field) string { return m.inputs[f].Value() }
	return prediction.RawRequest{
		EnergyKWh:     v(fieldEnergy),
		DurationHours: v(fieldDuration),
		RateKW:        v(fieldRate),
		TemperatureC:  v(fieldTemperature),
		ChargerType:   v(fieldCharger),
		TimeOfDay:     v(fieldTime),
		UserType:      v(fieldUser),
	}
}

func (m *Model) submit() tea.Cmd {
	if m.busy {
		return nil
	}
	m.busy = true
	raw := m.raw()
	ctx, engine := m.ctx, m.engine
	return func() tea.Msg {
		req, cost, err := engine.PredictRaw(ctx, raw)
		return predictionMsg{req: req, cost: cost, err: err}
	}
}

// View implements tea.Model.
func (m *Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("EV Charging Bill Calculator"))
	b.WriteString("\n")
	for i, in := range m.inputs {
		label := labelStyle
		if field(i) == m.focus {
			label = focusedLabelStyle
		}
		b.WriteString(label.Render(labels[i]))
		b.WriteString(in.View())
		b.WriteString("\n")
	}
	switch {
	case m.busy:
		b.WriteString("\nCalculating...\n")
	case m.err != nil:
		b.WriteString(errorStyle.Render("Invalid input: " + m.err.Error()))
		b.WriteString("\n")
	case m.result != "":
		b.WriteString(resultStyle.Render(m.result))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return docStyle.Render(b.String())
}

// Run starts the form and blocks until the user quits or ctx is done.
func Run(ctx context.Context, engine prediction.Engine, opts ...tea.ProgramOption) error {
	opts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts...)
	_, err := tea.NewProgram(New(ctx, engine), opts...).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
