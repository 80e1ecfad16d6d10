package desktop

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kilianp07/evbill/core/prediction"
)

func typeText(m *Model, s string) {
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
}

func press(m *Model, t tea.KeyType) tea.Cmd {
	_, cmd := m.Update(tea.KeyMsg{Type: t})
	return cmd
}

func fill(m *Model, values ...string) {
	for i, v := range values {
		typeText(m, v)
		if i < len(values)-1 {
			press(m, tea.KeyTab)
		}
	}
}

func TestNew(t *testing.T) {
	m := New(context.Background(), &prediction.MockEngine{})
	if m.focus != fieldEnergy || !m.inputs[fieldEnergy].Focused() {
		t.Fatalf("energy field should start focused")
	}
	if m.Init() == nil {
		t.Fatalf("expected blink command")
	}
	view := m.View()
	for _, l := range labels {
		if !strings.Contains(view, l) {
			t.Errorf("view misses label %q", l)
		}
	}
}

func TestFocusCycling(t *testing.T) {
	m := New(context.Background(), &prediction.MockEngine{})
	press(m, tea.KeyShiftTab)
	if m.focus != fieldUser {
		t.Fatalf("shift+tab from first field should wrap to last, got %d", m.focus)
	}
	press(m, tea.KeyTab)
	if m.focus != fieldEnergy {
		t.Fatalf("tab from last field should wrap to first, got %d", m.focus)
	}
	press(m, tea.KeyEnter)
	if m.focus != fieldDuration {
		t.Fatalf("enter should advance focus, got %d", m.focus)
	}
}

func TestSubmitSuccess(t *testing.T) {
	engine := &prediction.MockEngine{Cost: 12.5}
	m := New(context.Background(), engine)
	fill(m, "30", "2", "7.2", "18", "Level 2", "Evening", "Commuter")
	cmd := press(m, tea.KeyEnter)
	if cmd == nil || !m.busy {
		t.Fatalf("enter on last field should submit")
	}
	m.Update(cmd())
	if m.busy {
		t.Fatalf("busy flag not cleared")
	}
	if !strings.Contains(m.View(), "Estimated Charging Cost: $12.50") {
		t.Fatalf("result missing from view:\n%s", m.View())
	}
	reqs := engine.Requests()
	if len(reqs) != 1 || reqs[0].EnergyKWh != 30 || reqs[0].UserType != "Commuter" {
		t.Fatalf("unexpected requests %+v", reqs)
	}
	if engine.Sources()[0] != prediction.SourceDesktop {
		t.Fatalf("source not tagged")
	}
}

func TestSubmitInvalidInput(t *testing.T) {
	m := New(context.Background(), &prediction.MockEngine{Cost: 1})
	fill(m, "abc", "2", "7.2", "18", "Level 2", "Evening", "Commuter")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	if cmd == nil {
		t.Fatalf("ctrl+s should submit")
	}
	m.Update(cmd())
	if !errors.Is(m.err, prediction.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", m.err)
	}
	if !strings.Contains(m.View(), "Invalid input:") {
		t.Fatalf("error panel missing:\n%s", m.View())
	}
}

func TestErrorClearedBySuccess(t *testing.T) {
	m := New(context.Background(), &prediction.MockEngine{})
	m.Update(predictionMsg{err: errors.New("bad")})
	m.Update(predictionMsg{cost: 4})
	if m.err != nil || m.result != "Estimated Charging Cost: $4.00" {
		t.Fatalf("unexpected state err=%v result=%q", m.err, m.result)
	}
}

func TestSubmitIgnoredWhileBusy(t *testing.T) {
	m := New(context.Background(), &prediction.MockEngine{})
	if cmd := m.submit(); cmd == nil {
		t.Fatalf("first submit should return a command")
	}
	if cmd := m.submit(); cmd != nil {
		t.Fatalf("second submit should be ignored while busy")
	}
}

func TestQuit(t *testing.T) {
	m := New(context.Background(), &prediction.MockEngine{})
	cmd := press(m, tea.KeyEsc)
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected QuitMsg")
	}
}

func TestArrowKeysKeepFocusOnCategoryField(t *testing.T) {
	m := New(context.Background(), &prediction.MockEngine{})
	m.setFocus(fieldCharger)
	typeText(m, "Level")
	press(m, tea.KeyDown)
	if m.focus != fieldCharger {
		t.Fatalf("down should cycle suggestions, focus moved to %d", m.focus)
	}
	press(m, tea.KeyUp)
	if m.focus != fieldCharger {
		t.Fatalf("up should cycle suggestions, focus moved to %d", m.focus)
	}
	if got := m.inputs[fieldCharger].Value(); got != "Level" {
		t.Fatalf("arrow keys should not edit the value, got %q", got)
	}
}
