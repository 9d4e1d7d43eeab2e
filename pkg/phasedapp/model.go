package phasedapp

import (
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	textinput "github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/BrianJOC/distro-bootstrap/interaction"
	"github.com/BrianJOC/distro-bootstrap/phases"
)

const maxLogLines = 20

type phaseStatus int

const (
	statusPending phaseStatus = iota
	statusRunning
	statusSuccess
	statusFailed
	statusSkipped
)

func (s phaseStatus) String() string {
	switch s {
	case statusPending:
		return "pending"
	case statusRunning:
		return "running"
	case statusSuccess:
		return "success"
	case statusFailed:
		return "failed"
	case statusSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

type focusArea int

const (
	focusPhases focusArea = iota
	focusPrompt
)

type phaseState struct {
	meta     phases.PhaseMetadata
	status   phaseStatus
	err      *phases.InstallerError
	warnings []string
	logs     []string
	duration time.Duration
}

type activePrompt struct {
	input   interaction.Input
	options []interaction.Option
	reply   chan<- promptReply
}

func (p *activePrompt) choice() bool {
	return p.input.Kind == interaction.KindSelect || p.input.Kind == interaction.KindConfirm
}

type model struct {
	title  string
	bridge *bridge

	phases map[string]*phaseState
	order  []string
	total  int

	spinner spinner.Model

	prompt      textinput.Model
	active      *activePrompt
	selectIndex int

	secretValues map[string]struct{}

	selectedPhase  int
	focus          focusArea
	helpVisible    bool
	actionsVisible bool
	running        bool
	finished       bool
	runErr         error

	statusMsg string

	width  int
	height int
}

func newModel(cfg Config, br *bridge) *model {
	states := make(map[string]*phaseState, len(cfg.Plan))
	order := make([]string, 0, len(cfg.Plan))
	for _, meta := range cfg.Plan {
		if meta.ID == "" {
			continue
		}
		if _, dup := states[meta.ID]; dup {
			continue
		}
		states[meta.ID] = &phaseState{meta: meta, status: statusPending}
		order = append(order, meta.ID)
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	ti := textinput.New()
	ti.Placeholder = "enter value"
	ti.Blur()

	return &model{
		title:        cfg.Title,
		bridge:       br,
		phases:       states,
		order:        order,
		total:        len(order),
		spinner:      sp,
		prompt:       ti,
		focus:        focusPhases,
		secretValues: make(map[string]struct{}),
		running:      true,
		statusMsg:    "Awaiting phase events…",
	}
}

func (m *model) Init() tea.Cmd {
	return tea.Batch(waitBridgeCmd(m.bridge), m.spinner.Tick)
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		prevWidth := m.width
		prevHeight := m.height
		m.width = msg.Width
		m.height = msg.Height
		if (prevWidth > 0 && msg.Width < prevWidth) || (prevHeight > 0 && msg.Height < prevHeight) {
			return m, tea.ClearScreen
		}
		return m, nil

	case tea.KeyMsg:
		return m, m.handleKey(msg)

	case spinner.TickMsg:
		if !m.running {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case eventMsg:
		m.handleEvent(msg.event)
		return m, waitBridgeCmd(m.bridge)

	case promptMsg:
		m.preparePrompt(msg)
		return m, waitBridgeCmd(m.bridge)

	case runFinishedMsg:
		m.running = false
		m.finished = true
		m.runErr = msg.err
		if msg.err != nil {
			m.setStatusf("Run stopped: %v (q to quit)", msg.err)
		} else {
			m.setStatus("All phases finished (q to quit)")
		}
		return m, nil
	}
	return m, nil
}

func (m *model) handleKey(msg tea.KeyMsg) tea.Cmd {
	if m.actionsVisible {
		return m.handleActionKeys(msg)
	}
	if m.handleSelectPromptNavigation(msg) {
		return nil
	}
	if m.handlePhaseNavigation(msg) {
		return nil
	}

	typing := m.active != nil && m.focus == focusPrompt && !m.active.choice()

	switch msg.Type {
	case tea.KeyCtrlC:
		return tea.Quit
	case tea.KeyEnter:
		if m.active != nil && m.focus == focusPrompt {
			m.submitPrompt()
			return nil
		}
		if m.focus == focusPhases {
			m.actionsVisible = true
			m.helpVisible = false
		}
		return nil
	case tea.KeyEsc:
		m.handleEscape()
		return nil
	case tea.KeyTab, tea.KeyShiftTab:
		if m.active != nil {
			m.toggleFocus()
		}
		return nil
	case tea.KeyRunes:
		if !typing && len(msg.Runes) == 1 {
			switch msg.Runes[0] {
			case '?', 'h', 'H':
				m.helpVisible = !m.helpVisible
				return nil
			case 'q', 'Q':
				return tea.Quit
			}
		}
	}

	if typing {
		var cmd tea.Cmd
		m.prompt, cmd = m.prompt.Update(msg)
		return cmd
	}
	return nil
}

func (m *model) handleEvent(ev phases.Event) {
	switch ev.Kind {
	case phases.EventTotalCount:
		m.total = ev.Total
		return
	}

	state := m.ensureState(ev.Phase)
	if state == nil {
		return
	}
	switch ev.Kind {
	case phases.EventPhaseStarted:
		state.status = statusRunning
		state.err = nil
		m.selectPhase(ev.Phase.ID)
		m.appendLog(state, "started")
		m.setStatusf("Running %s", state.meta.Title)
	case phases.EventPhaseCompleted:
		state.status = statusSuccess
		state.duration = ev.Duration
		m.appendLog(state, fmt.Sprintf("completed in %s", ev.Duration.Round(time.Millisecond)))
		m.setStatusf("%s completed", state.meta.Title)
	case phases.EventPhaseSkipped:
		state.status = statusSkipped
		m.appendLog(state, "skipped")
	case phases.EventPhaseFailed:
		state.status = statusFailed
		state.duration = ev.Duration
		state.err = ev.Err
		m.appendLog(state, "failed: "+ev.Message)
		m.setStatusf("%s failed: %s", state.meta.Title, ev.Message)
	case phases.EventWarning:
		state.warnings = append(state.warnings, ev.Message)
		m.appendLog(state, "warning: "+ev.Message)
	}
}

func (m *model) ensureState(meta phases.PhaseMetadata) *phaseState {
	if meta.ID == "" {
		return nil
	}
	if state, ok := m.phases[meta.ID]; ok {
		if meta.Title != "" {
			state.meta = meta
		}
		return state
	}
	state := &phaseState{meta: meta, status: statusPending}
	m.phases[meta.ID] = state
	m.order = append(m.order, meta.ID)
	return state
}

func (m *model) selectPhase(id string) {
	if m.active != nil || m.actionsVisible {
		return
	}
	for idx, candidate := range m.order {
		if candidate == id {
			m.selectedPhase = idx
			return
		}
	}
}

func (m *model) preparePrompt(msg promptMsg) {
	if m.active != nil {
		m.active.reply <- promptReply{err: ErrPromptCancelled}
	}
	m.actionsVisible = false
	m.helpVisible = false
	m.focus = focusPrompt
	m.selectIndex = 0

	in := msg.input
	active := &activePrompt{input: in, reply: msg.reply}
	switch in.Kind {
	case interaction.KindConfirm:
		active.options = []interaction.Option{{Value: "yes", Label: "Yes"}, {Value: "no", Label: "No"}}
		if def, ok := in.Default.(bool); ok && !def {
			m.selectIndex = 1
		}
	case interaction.KindSelect:
		active.options = in.Options
		if def, ok := in.Default.(string); ok {
			for idx, opt := range in.Options {
				if opt.Value == def {
					m.selectIndex = idx
				}
			}
		}
	}
	m.active = active

	m.prompt.EchoMode = textinput.EchoNormal
	m.prompt.EchoCharacter = '*'
	if in.Kind == interaction.KindSecret || in.Secret {
		m.prompt.EchoMode = textinput.EchoPassword
		m.prompt.EchoCharacter = '•'
	}

	if active.choice() {
		m.prompt.Blur()
		m.setStatusf("Choose %s (arrows, j/k, numbers)", in.Label)
		return
	}
	m.prompt.Placeholder = placeholderText(in)
	m.prompt.SetValue("")
	m.prompt.CursorEnd()
	m.prompt.Focus()
	m.setStatusf("Input needed: %s", in.Label)
}

func (m *model) submitPrompt() {
	if m.active == nil {
		return
	}
	in := m.active.input

	var value any
	switch in.Kind {
	case interaction.KindConfirm:
		value = m.selectIndex == 0
	case interaction.KindSelect:
		if len(m.active.options) == 0 {
			m.setStatus("No options available")
			return
		}
		value = m.active.options[m.clampSelect()].Value
	default:
		text := strings.TrimSpace(m.prompt.Value())
		if text == "" && in.Kind != interaction.KindSecret {
			text = defaultString(in.Default)
		}
		if text == "" && in.Required {
			m.setStatus("Input required")
			return
		}
		if in.Kind == interaction.KindSecret || in.Secret {
			m.trackSecretValue(text)
		}
		value = text
	}

	m.active.reply <- promptReply{value: value}
	m.clearPrompt()
	m.setStatus("Input submitted")
}

func (m *model) handleEscape() {
	switch {
	case m.helpVisible:
		m.helpVisible = false
	case m.active != nil:
		m.active.reply <- promptReply{err: ErrPromptCancelled}
		m.clearPrompt()
		m.setStatus("Input cancelled")
	}
}

func (m *model) clearPrompt() {
	m.active = nil
	m.prompt.SetValue("")
	m.prompt.EchoMode = textinput.EchoNormal
	m.prompt.Blur()
	m.focus = focusPhases
}

func (m *model) toggleFocus() {
	if m.focus == focusPrompt {
		m.focus = focusPhases
		m.prompt.Blur()
		return
	}
	m.focus = focusPrompt
	if !m.active.choice() {
		m.prompt.Focus()
	}
}

func (m *model) currentPhaseState() *phaseState {
	if len(m.order) == 0 {
		return nil
	}
	if m.selectedPhase >= len(m.order) {
		m.selectedPhase = len(m.order) - 1
	}
	return m.phases[m.order[m.selectedPhase]]
}

func (m *model) handleActionKeys(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEsc, tea.KeyEnter:
		m.actionsVisible = false
		return nil
	case tea.KeyCtrlC:
		return tea.Quit
	}
	if msg.Type == tea.KeyRunes && len(msg.Runes) == 1 {
		switch msg.Runes[0] {
		case '1', 'v', 'V':
			m.actionsVisible = false
		case '2', 'c', 'C':
			m.copySelected(func(st *phaseState) string { return st.err.Detail }, "error")
			m.actionsVisible = false
		case '3', 'a', 'A':
			m.copySelected(func(st *phaseState) string { return st.err.Advice }, "advice")
			m.actionsVisible = false
		}
	}
	return nil
}

func (m *model) copySelected(pick func(*phaseState) string, what string) {
	state := m.currentPhaseState()
	if state == nil || state.err == nil || pick(state) == "" {
		m.setStatusf("No %s to copy", what)
		return
	}
	if err := clipboard.WriteAll(m.redactSecrets(pick(state))); err != nil {
		m.setStatusf("Failed to copy %s", what)
		return
	}
	m.setStatusf("Copied %s to clipboard", what)
}

func (m *model) handlePhaseNavigation(msg tea.KeyMsg) bool {
	if m.active != nil && m.focus != focusPhases {
		return false
	}
	switch msg.Type {
	case tea.KeyUp:
		m.movePhaseSelection(-1)
		return true
	case tea.KeyDown:
		m.movePhaseSelection(1)
		return true
	}
	if msg.Type == tea.KeyRunes && len(msg.Runes) == 1 {
		switch msg.Runes[0] {
		case 'k':
			m.movePhaseSelection(-1)
			return true
		case 'j':
			m.movePhaseSelection(1)
			return true
		}
	}
	return false
}

func (m *model) movePhaseSelection(delta int) {
	if len(m.order) == 0 {
		return
	}
	m.selectedPhase = (m.selectedPhase + delta) % len(m.order)
	if m.selectedPhase < 0 {
		m.selectedPhase += len(m.order)
	}
}

func (m *model) handleSelectPromptNavigation(msg tea.KeyMsg) bool {
	if m.active == nil || m.focus != focusPrompt || !m.active.choice() {
		return false
	}
	switch msg.Type {
	case tea.KeyUp, tea.KeyLeft:
		m.moveSelection(-1)
		return true
	case tea.KeyDown, tea.KeyRight:
		m.moveSelection(1)
		return true
	}
	if msg.Type == tea.KeyRunes && len(msg.Runes) == 1 {
		r := msg.Runes[0]
		switch r {
		case 'k':
			m.moveSelection(-1)
			return true
		case 'j':
			m.moveSelection(1)
			return true
		case 'y', 'Y':
			if m.active.input.Kind == interaction.KindConfirm {
				m.selectIndex = 0
				return true
			}
		case 'n', 'N':
			if m.active.input.Kind == interaction.KindConfirm {
				m.selectIndex = 1
				return true
			}
		}
		if r >= '1' && r <= '9' {
			if idx := int(r - '1'); idx < len(m.active.options) {
				m.selectIndex = idx
				return true
			}
		}
	}
	return false
}

func (m *model) moveSelection(delta int) {
	count := len(m.active.options)
	if count == 0 {
		return
	}
	m.selectIndex = (m.selectIndex + delta) % count
	if m.selectIndex < 0 {
		m.selectIndex += count
	}
}

func (m *model) clampSelect() int {
	switch {
	case m.selectIndex < 0:
		m.selectIndex = 0
	case m.selectIndex >= len(m.active.options):
		m.selectIndex = len(m.active.options) - 1
	}
	return m.selectIndex
}

func (m *model) completedCount() int {
	count := 0
	for _, st := range m.phases {
		if st.status == statusSuccess || st.status == statusSkipped {
			count++
		}
	}
	return count
}

func (m *model) appendLog(state *phaseState, line string) {
	line = m.redactSecrets(line)
	timestamp := time.Now().Format("15:04:05")
	state.logs = append(state.logs, fmt.Sprintf("[%s] %s", timestamp, line))
	if len(state.logs) > maxLogLines {
		state.logs = state.logs[len(state.logs)-maxLogLines:]
	}
}

func (m *model) trackSecretValue(value string) {
	if value == "" {
		return
	}
	m.secretValues[value] = struct{}{}
}

func (m *model) redactSecrets(text string) string {
	if text == "" || len(m.secretValues) == 0 {
		return text
	}
	redacted := text
	for secret := range m.secretValues {
		redacted = strings.ReplaceAll(redacted, secret, "[secret]")
	}
	return redacted
}

func (m *model) setStatus(msg string) {
	m.statusMsg = m.redactSecrets(msg)
}

func (m *model) setStatusf(format string, args ...any) {
	m.setStatus(fmt.Sprintf(format, args...))
}

func placeholderText(in interaction.Input) string {
	if in.Kind == interaction.KindSecret || in.Secret {
		return "enter value"
	}
	if def := defaultString(in.Default); def != "" {
		return def
	}
	return in.Label
}

func defaultString(value any) string {
	if value == nil {
		return ""
	}
	str := strings.TrimSpace(fmt.Sprint(value))
	if str == "<nil>" {
		return ""
	}
	return str
}
