package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nixlim/hometop/internal/config"
	"github.com/nixlim/hometop/internal/logstore"
	"github.com/nixlim/hometop/internal/query"
	"github.com/nixlim/hometop/internal/stats"
	"github.com/nixlim/hometop/internal/telemetry"
)

type ViewState int

const (
	ViewOverview ViewState = iota
	ViewDevices
	ViewUsers
	ViewQuery
)

var viewNames = [...]string{"Overview", "Devices", "Users", "Query"}

func (v ViewState) String() string {
	if v < 0 || int(v) >= len(viewNames) {
		return "Unknown"
	}
	return viewNames[v]
}

const viewCount = ViewState(len(viewNames))

type logsLoadedMsg struct{ err error }

type queryDoneMsg struct{ err error }

type LogSource interface {
	Fetch(ctx context.Context) error
	Snapshot() logstore.Snapshot
}

type QueryRunner interface {
	Execute(ctx context.Context, text string) (query.Result, error)
	Snapshot() query.Snapshot
}

type StatsProvider interface {
	ComputeFor(key string, logs []telemetry.LogRecord) stats.DashboardStats
}

type Model struct {
	view     ViewState
	width    int
	height   int
	keys     KeyMap
	quitting bool

	cfg config.Config
	ctx context.Context

	logs    LogSource
	queries QueryRunner
	stats   StatsProvider

	fetching bool
	querying bool
	spinner  spinner.Model
	input    textinput.Model

	scrollPos  int
	userCursor int

	detailOverlay   bool
	detailTitle     string
	detailContent   string
	detailScrollPos int

	onShutdown func()
}

func NewModel(cfg config.Config, opts ...ModelOption) Model {
	in := textinput.New()
	in.Placeholder = "Ask in natural language (e.g. show all devices that are turned on)"
	in.Prompt = "> "
	in.CharLimit = 500

	m := Model{
		view:    ViewOverview,
		keys:    DefaultKeyMap(),
		cfg:     cfg,
		ctx:     context.Background(),
		spinner: spinner.New(spinner.WithSpinner(spinnerFor(cfg)), spinner.WithStyle(spinnerStyle)),
		input:   in,
	}

	for _, opt := range opts {
		opt(&m)
	}

	if m.stats == nil {
		loc, err := cfg.Location()
		if err != nil {
			loc = time.Local
		}
		m.stats = stats.NewCalculator(loc)
	}
	m.fetching = m.logs != nil

	return m
}

// spinnerFor paces the loading spinner at the configured refresh rate.
func spinnerFor(cfg config.Config) spinner.Spinner {
	sp := spinner.Dot
	if cfg.Display.RefreshRateMS > 0 {
		sp.FPS = time.Duration(cfg.Display.RefreshRateMS) * time.Millisecond
	}
	return sp
}

type ModelOption func(*Model)

func WithLogSource(l LogSource) ModelOption {
	return func(m *Model) { m.logs = l }
}

func WithQueryRunner(q QueryRunner) ModelOption {
	return func(m *Model) { m.queries = q }
}

func WithStatsProvider(s StatsProvider) ModelOption {
	return func(m *Model) { m.stats = s }
}

func WithStartView(v ViewState) ModelOption {
	return func(m *Model) { m.view = v }
}

// WithContext sets the context network requests run under. Cancelling it
// aborts in-flight fetches and queries.
func WithContext(ctx context.Context) ModelOption {
	return func(m *Model) { m.ctx = ctx }
}

func WithOnShutdown(fn func()) ModelOption {
	return func(m *Model) { m.onShutdown = fn }
}

func (m Model) Init() tea.Cmd {
	if !m.fetching {
		return nil
	}
	return tea.Batch(m.fetchCmd(), m.spinner.Tick)
}

func (m Model) fetchCmd() tea.Cmd {
	logs, ctx := m.logs, m.ctx
	return func() tea.Msg {
		return logsLoadedMsg{err: logs.Fetch(ctx)}
	}
}

func (m Model) queryCmd(text string) tea.Cmd {
	q, ctx := m.queries, m.ctx
	return func() tea.Msg {
		_, err := q.Execute(ctx, text)
		return queryDoneMsg{err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = max(msg.Width-8, 10)
		return m, nil

	case logsLoadedMsg:
		m.fetching = false
		m.clampUserCursor()
		return m, nil

	case queryDoneMsg:
		m.querying = false
		m.scrollPos = 0
		m.userCursor = 0
		return m, nil

	case spinner.TickMsg:
		if !m.fetching && !m.querying {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.ForceQuit) {
		return m.quit()
	}

	if m.detailOverlay {
		return m.handleDetailOverlayKey(msg)
	}

	if m.input.Focused() {
		return m.handleInputKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m.quit()

	case key.Matches(msg, m.keys.NextTab):
		return m.switchView((m.view + 1) % viewCount), nil

	case key.Matches(msg, m.keys.PrevTab):
		return m.switchView((m.view + viewCount - 1) % viewCount), nil

	case key.Matches(msg, m.keys.Tab1):
		return m.switchView(ViewOverview), nil
	case key.Matches(msg, m.keys.Tab2):
		return m.switchView(ViewDevices), nil
	case key.Matches(msg, m.keys.Tab3):
		return m.switchView(ViewUsers), nil
	case key.Matches(msg, m.keys.Tab4):
		return m.switchView(ViewQuery), nil

	case key.Matches(msg, m.keys.Focus):
		m = m.switchView(ViewQuery)
		cmd := m.input.Focus()
		return m, cmd
	}

	switch m.view {
	case ViewUsers:
		return m.handleUsersKey(msg)
	case ViewQuery:
		if key.Matches(msg, m.keys.Enter) {
			cmd := m.input.Focus()
			return m, cmd
		}
	}
	return m.handleScrollKey(msg)
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.quitting = true
	if m.onShutdown != nil {
		m.onShutdown()
	}
	return m, tea.Quit
}

func (m Model) switchView(v ViewState) Model {
	if v != m.view {
		m.view = v
		m.scrollPos = 0
	}
	return m
}

func (m Model) handleScrollKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Up):
		if m.scrollPos > 0 {
			m.scrollPos--
		}
	case key.Matches(msg, m.keys.Down):
		m.scrollPos++
	}
	return m, nil
}

func (m Model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Escape):
		m.input.Blur()
		return m, nil

	case key.Matches(msg, m.keys.Enter):
		text := strings.TrimSpace(m.input.Value())
		if text == "" || m.querying || m.queries == nil {
			return m, nil
		}
		m.querying = true
		return m, tea.Batch(m.queryCmd(text), m.spinner.Tick)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleUsersKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	users := m.topUsers(m.currentStats())

	switch {
	case key.Matches(msg, m.keys.Up):
		if m.userCursor > 0 {
			m.userCursor--
		}
		return m, nil

	case key.Matches(msg, m.keys.Down):
		if m.userCursor < len(users)-1 {
			m.userCursor++
		}
		return m, nil

	case key.Matches(msg, m.keys.Enter):
		if m.userCursor >= 0 && m.userCursor < len(users) {
			logs, _ := m.displayLogs()
			u := users[m.userCursor]
			m.detailOverlay = true
			m.detailTitle = "User Detail"
			m.detailContent = formatUserDetail(u, stats.UserDeviceBreakdown(logs, u.UserID))
			m.detailScrollPos = 0
		}
		return m, nil
	}
	return m, nil
}

func (m Model) handleDetailOverlayKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Escape), key.Matches(msg, m.keys.Enter):
		m.detailOverlay = false
		m.detailContent = ""
		m.detailTitle = ""
		m.detailScrollPos = 0
		return m, nil

	case key.Matches(msg, m.keys.Quit):
		return m.quit()

	case key.Matches(msg, m.keys.Up):
		if m.detailScrollPos > 0 {
			m.detailScrollPos--
		}
		return m, nil

	case key.Matches(msg, m.keys.Down):
		m.detailScrollPos++
		return m, nil
	}

	return m, nil
}

func formatUserDetail(u stats.UserActivity, breakdown []stats.NameValue) string {
	var lines []string
	lines = append(lines, "User ID:   "+u.UserID)
	lines = append(lines, fmt.Sprintf("Activity:  %d", u.Activity))
	lines = append(lines, "")
	lines = append(lines, "Device usage:")
	if len(breakdown) == 0 {
		lines = append(lines, "  (none)")
	}
	for _, b := range breakdown {
		name := b.Name
		if name == "" {
			name = "(unknown)"
		}
		lines = append(lines, fmt.Sprintf("  %-16s %d", name, b.Value))
	}
	return strings.Join(lines, "\n")
}

// displayLogs returns the sequence the dashboard tabs run on, plus the memo
// key identifying it. A query result with rows replaces the fetched logs.
func (m Model) displayLogs() ([]telemetry.LogRecord, string) {
	if m.queries != nil {
		snap := m.queries.Snapshot()
		if snap.Result.HasRows() {
			return snap.Result.Records, fmt.Sprintf("query:%d", snap.Generation)
		}
	}
	if m.logs != nil {
		snap := m.logs.Snapshot()
		return snap.Records, fmt.Sprintf("logs:%d", snap.Generation)
	}
	return nil, "none"
}

func (m Model) currentStats() stats.DashboardStats {
	logs, memoKey := m.displayLogs()
	return m.stats.ComputeFor(memoKey, logs)
}

func (m Model) topUsers(ds stats.DashboardStats) []stats.UserActivity {
	n := m.cfg.Display.TopUsers
	if n <= 0 || n > len(ds.Users.MostActive) {
		n = len(ds.Users.MostActive)
	}
	return ds.Users.MostActive[:n]
}

func (m *Model) clampUserCursor() {
	n := len(m.topUsers(m.currentStats()))
	if m.userCursor >= n {
		m.userCursor = n - 1
	}
	if m.userCursor < 0 {
		m.userCursor = 0
	}
}

func (m Model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var body string
	switch m.view {
	case ViewOverview:
		body = m.renderOverview()
	case ViewDevices:
		body = m.renderDevices()
	case ViewUsers:
		body = m.renderUsers()
	case ViewQuery:
		body = m.renderQuery()
	}

	output := m.renderFrame(body)

	if m.detailOverlay {
		output = m.overlayDetail(output)
	}

	if m.height > 0 {
		lines := strings.Split(output, "\n")
		if len(lines) > m.height {
			lines = lines[:m.height]
			output = strings.Join(lines, "\n")
		}
	}

	return output
}
