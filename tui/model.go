package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"jamsesh/jam"
	"jamsesh/sequencer"
	"jamsesh/theme"
	"jamsesh/widgets"
)

// Controller is the command side of a jam session.
type Controller interface {
	ToggleCell(track sequencer.TrackID, row, beat int)
	NudgeCutoff(track sequencer.TrackID, delta float64)
	TogglePlay()
	NudgeBPM(delta int)
}

const (
	cutoffStep = 0.05
	bpmStep    = 5
)

type cursor struct {
	track, row, beat int
}

type Model struct {
	ctl   Controller
	views <-chan jam.View
	Theme *theme.Theme

	view     jam.View
	have     bool
	cur      cursor
	help     bool
	quitting bool
}

// ViewMsg carries a fresh session snapshot.
type ViewMsg jam.View

// SessionEndedMsg is sent once the view channel closes.
type SessionEndedMsg struct{}

func NewModel(ctl Controller, views <-chan jam.View, th *theme.Theme) Model {
	if th == nil {
		th = theme.New(nil)
	}
	return Model{ctl: ctl, views: views, Theme: th, help: true}
}

func ListenForViews(views <-chan jam.View) tea.Cmd {
	return func() tea.Msg {
		v, ok := <-views
		if !ok {
			return SessionEndedMsg{}
		}
		return ViewMsg(v)
	}
}

func (m Model) Init() tea.Cmd {
	return ListenForViews(m.views)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg.String())

	case ViewMsg:
		m.view = jam.View(msg)
		m.have = true
		m.cur = m.clamp(m.cur)
		return m, ListenForViews(m.views)

	case SessionEndedMsg:
		m.quitting = true
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) handleKey(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	case "?":
		m.help = !m.help
		return m, nil
	}
	if !m.have || len(m.view.Tracks) == 0 {
		return m, nil
	}

	c := m.cur
	switch key {
	case "h", "left":
		c.beat--
	case "l", "right":
		c.beat++
	case "k", "up":
		c.row--
	case "j", "down":
		c.row++
	case "tab":
		c.track = (c.track + 1) % len(m.view.Tracks)
	case "shift+tab":
		c.track = (c.track + len(m.view.Tracks) - 1) % len(m.view.Tracks)
	case " ", "enter":
		m.ctl.ToggleCell(m.trackID(), c.row, c.beat)
	case "[":
		m.ctl.NudgeCutoff(m.trackID(), -cutoffStep)
	case "]":
		m.ctl.NudgeCutoff(m.trackID(), cutoffStep)
	case "p":
		m.ctl.TogglePlay()
	case "+", "=":
		m.ctl.NudgeBPM(bpmStep)
	case "-", "_":
		m.ctl.NudgeBPM(-bpmStep)
	}
	if beats := m.view.Beats; beats > 0 {
		c.beat = (c.beat%beats + beats) % beats
	}
	m.cur = m.clamp(c)
	return m, nil
}

// clamp keeps the cursor inside the current view.
func (m Model) clamp(c cursor) cursor {
	if len(m.view.Tracks) == 0 {
		return cursor{}
	}
	c.track = max(0, min(c.track, len(m.view.Tracks)-1))
	rows := m.view.Tracks[c.track].Spec.Rows
	c.row = max(0, min(c.row, rows-1))
	c.beat = max(0, min(c.beat, m.view.Beats-1))
	return c
}

func (m Model) trackID() sequencer.TrackID {
	return m.view.Tracks[m.cur.track].ID
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.have {
		return "\n  connecting…\n"
	}

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(m.header())
	out.WriteString("\n\n")
	for i, tv := range m.view.Tracks {
		out.WriteString(m.renderTrack(i, tv))
		out.WriteString("\n")
	}
	out.WriteString(m.roster())
	if m.help {
		out.WriteString("\n\n")
		out.WriteString(lipgloss.NewStyle().Foreground(m.Theme.Muted()).Render(keyHelp()))
	}
	return out.String()
}

func (m Model) header() string {
	v := m.view
	accent := lipgloss.NewStyle().Foreground(m.Theme.Accent())
	state := "STOP"
	if v.Playing {
		state = "PLAY"
	}
	beat := "--"
	if v.Beat != sequencer.NoBeat {
		beat = fmt.Sprintf("%02d", v.Beat+1)
	}
	link := lipgloss.NewStyle().Foreground(m.Theme.Warning()).Render("offline")
	if v.Online {
		link = lipgloss.NewStyle().Foreground(m.Theme.Success()).Render(fmt.Sprintf("online #%d", v.LocalID))
	}
	pending := ""
	if v.Pending > 0 {
		pending = fmt.Sprintf("  pending:%d", v.Pending)
	}
	return accent.Render(fmt.Sprintf("jamsesh  %s  %3dbpm  beat:%s  ", state, v.BPM, beat)) + link + pending
}

func trackTitle(i int, tv jam.TrackView) string {
	if tv.Spec.Kind == sequencer.KindSampler {
		return fmt.Sprintf("SAMPLER  %d voices", tv.Spec.Voices)
	}
	return fmt.Sprintf("SYNTH %d  %d voice(s) %s  cutoff %s", i+1, tv.Spec.Voices, tv.Spec.Policy, widgets.RenderMeter(tv.Cutoff, 10))
}

func (m Model) renderTrack(i int, tv jam.TrackView) string {
	title := lipgloss.NewStyle().Foreground(m.Theme.FG())
	if i == m.cur.track {
		title = title.Foreground(m.Theme.Cursor()).Bold(true)
	}
	touched := m.touches(tv.ID)

	var out strings.Builder
	out.WriteString(title.Render(trackTitle(i, tv)))
	out.WriteString("\n")
	sym := m.Theme.Symbols
	active := lipgloss.NewStyle().Foreground(m.Theme.Active())
	muted := lipgloss.NewStyle().Foreground(m.Theme.Muted())
	for row := 0; row < tv.Spec.Rows; row++ {
		out.WriteString(muted.Render(fmt.Sprintf("%2d ", row)))
		for beat, col := range tv.Grid {
			on := col.Has(row)
			isCursor := i == m.cur.track && row == m.cur.row && beat == m.cur.beat
			isPlayhead := m.view.Playing && beat == m.view.Beat

			var ch rune
			switch {
			case isCursor && isPlayhead:
				ch = sym.CursorPlayhead
			case isCursor && on:
				ch = sym.CursorActive
			case isCursor:
				ch = sym.CursorEmpty
			case isPlayhead && on:
				ch = sym.StepPlaying
			case isPlayhead:
				ch = sym.StepPlayhead
			case on:
				ch = sym.StepActive
			default:
				ch = sym.StepEmpty
			}

			style := muted
			switch {
			case isCursor:
				style = lipgloss.NewStyle().Foreground(m.Theme.Cursor())
			case touched[[2]int{beat, row}] != nil:
				style = lipgloss.NewStyle().Foreground(m.Theme.Participant(touched[[2]int{beat, row}].ID))
			case on:
				style = active
			}
			out.WriteString(style.Render(string(ch)))
		}
		out.WriteString("\n")
	}
	return out.String()
}

// touches maps (beat, row) to the remote participant who last edited it.
func (m Model) touches(track sequencer.TrackID) map[[2]int]*jam.Participant {
	out := map[[2]int]*jam.Participant{}
	for i := range m.view.Participants {
		p := &m.view.Participants[i]
		if p.ID == m.view.LocalID || p.LastTouched == nil || p.LastTouched.Track != track {
			continue
		}
		out[[2]int{p.LastTouched.Beat, p.LastTouched.Row}] = p
	}
	return out
}

func (m Model) roster() string {
	var names []string
	for _, p := range m.view.Participants {
		label := p.Name
		if label == "" {
			label = fmt.Sprintf("#%d", p.ID)
		}
		if p.ID == m.view.LocalID {
			label += " (you)"
		}
		names = append(names, widgets.RenderSwatch(m.Theme.Participant(p.ID), label))
	}
	return "players: " + strings.Join(names, "  ")
}

func keyHelp() string {
	return widgets.RenderKeyHelp([]widgets.KeySection{
		{Keys: []widgets.KeyBinding{
			{Key: "h / l", Desc: "move cursor through beats"},
			{Key: "j / k", Desc: "move cursor through rows"},
			{Key: "tab", Desc: "next track"},
			{Key: "space", Desc: "toggle cell"},
			{Key: "[ / ]", Desc: "lower/raise filter cutoff"},
			{Key: "p", Desc: "play/stop"},
			{Key: "+ / -", Desc: "tempo"},
			{Key: "?", Desc: "hide help"},
			{Key: "q", Desc: "quit"},
		}},
	})
}
