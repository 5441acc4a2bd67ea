// Package tui is the terminal frontend: a station list, now-playing panel
// and history log, with keyboard input turned into player commands.
package tui

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/jfmyers9/tuner/internal/control"
	"github.com/jfmyers9/tuner/internal/daemon"
	"github.com/jfmyers9/tuner/internal/history"
	"github.com/jfmyers9/tuner/internal/radio"
	"github.com/mattn/go-runewidth"
	"github.com/rivo/tview"
	"github.com/rs/zerolog"
)

// Config holds TUI configuration options
type Config struct {
	RefreshRate time.Duration // How often to refresh the display
}

// DefaultConfig returns the default TUI configuration
func DefaultConfig() Config {
	return Config{
		RefreshRate: 250 * time.Millisecond,
	}
}

const helpText = `[yellow::b]Keys[-:-:-]

  [white]enter[-]      play selected station
  [white]space[-]      play / stop
  [white]p[-]          pause / resume
  [white]s[-]          stop
  [white]up/down[-]    move selection
  [white]n / b[-]      next / previous station
  [white]+ / -[-]      volume up / down
  [white]j / k[-]      scroll history
  [white]?[-]          toggle this help
  [white]q[-]          quit`

// App is the TUI application
type App struct {
	app        *tview.Application
	pages      *tview.Pages
	stations   *tview.TextView
	nowPlaying *tview.TextView
	history    *tview.TextView
	status     *tview.TextView

	config   Config
	logger   zerolog.Logger
	commands chan<- control.Command

	// Latest view from the player loop (guarded by mu)
	mu   sync.Mutex
	view daemon.View

	// Last-rendered content for change detection
	lastStations   string
	lastNowPlaying string
	lastHistory    string
	lastStatus     string
	lastHelp       bool
}

// New creates a new TUI application with default config
func New(logger zerolog.Logger) *App {
	return NewWithConfig(DefaultConfig(), logger)
}

// NewWithConfig creates a new TUI application with the given config
func NewWithConfig(cfg Config, logger zerolog.Logger) *App {
	a := &App{
		app:    tview.NewApplication(),
		config: cfg,
		logger: logger.With().Str("component", "tui").Logger(),
		view:   daemon.View{Active: -1},
	}
	a.setupUI()
	return a
}

// setupUI creates the UI layout
func (a *App) setupUI() {
	a.stations = tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(false)
	a.stations.SetBorder(true).
		SetTitle(" Stations ").
		SetTitleAlign(tview.AlignLeft)

	a.nowPlaying = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	a.nowPlaying.SetBorder(true).
		SetTitle(" Now Playing ").
		SetTitleAlign(tview.AlignLeft)

	a.history = tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(true)
	a.history.SetBorder(true).
		SetTitle(" History ").
		SetTitleAlign(tview.AlignLeft)

	a.status = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)

	help := tview.NewTextView().
		SetDynamicColors(true).
		SetText(helpText)
	help.SetBorder(true).
		SetTitle(" Help ")

	// Left column: station list
	// Right column: now playing over history
	// Footer: status bar
	right := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.nowPlaying, 9, 1, false).
		AddItem(a.history, 0, 1, false)

	body := tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(a.stations, 0, 2, false).
		AddItem(right, 0, 3, false)

	main := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(body, 0, 1, false).
		AddItem(a.status, 1, 1, false)

	a.pages = tview.NewPages().
		AddPage("main", main, true, true).
		AddPage("help", center(help, 44, 16), true, false)

	a.app.SetInputCapture(a.handleKeyEvent)
	a.app.SetRoot(a.pages, true)
}

// center places p in the middle of the screen at a fixed size
func center(p tview.Primitive, width, height int) tview.Primitive {
	return tview.NewFlex().
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().
			SetDirection(tview.FlexRow).
			AddItem(nil, 0, 1, false).
			AddItem(p, height, 1, true).
			AddItem(nil, 0, 1, false), width, 1, true).
		AddItem(nil, 0, 1, false)
}

// keyCommand maps a key press to a player command
func keyCommand(event *tcell.EventKey) (control.Command, bool) {
	switch event.Key() {
	case tcell.KeyEnter:
		return control.Command{Kind: control.Play}, true
	case tcell.KeyUp:
		return control.Command{Kind: control.SelectUp}, true
	case tcell.KeyDown:
		return control.Command{Kind: control.SelectDown}, true
	case tcell.KeyCtrlC:
		return control.Command{Kind: control.Quit}, true
	case tcell.KeyRune:
	default:
		return control.Command{}, false
	}

	switch event.Rune() {
	case 'q', 'Q':
		return control.Command{Kind: control.Quit}, true
	case ' ':
		return control.Command{Kind: control.Toggle}, true
	case 'p', 'P':
		return control.Command{Kind: control.TogglePause}, true
	case 's', 'S':
		return control.Command{Kind: control.Stop}, true
	case 'n', 'N':
		return control.Command{Kind: control.TuneNext}, true
	case 'b', 'B':
		return control.Command{Kind: control.TunePrev}, true
	case '+', '=':
		return control.Command{Kind: control.VolumeUp}, true
	case '-', '_':
		return control.Command{Kind: control.VolumeDown}, true
	case 'j':
		return control.Command{Kind: control.ScrollHistoryDown}, true
	case 'k':
		return control.Command{Kind: control.ScrollHistoryUp}, true
	case '?':
		return control.Command{Kind: control.ToggleHelp}, true
	}
	return control.Command{}, false
}

// handleKeyEvent processes keyboard input
func (a *App) handleKeyEvent(event *tcell.EventKey) *tcell.EventKey {
	cmd, ok := keyCommand(event)
	if !ok {
		return event
	}

	select {
	case a.commands <- cmd:
	default:
		a.logger.Warn().Stringer("command", cmd).Msg("Command queue full, dropping key")
	}
	return nil
}

// Update stores the latest view. Rendering happens on the refresh ticker.
func (a *App) Update(v daemon.View) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.view = v
}

// Run starts the TUI and blocks until the application stops or ctx is
// cancelled. Key presses are sent on commands.
func (a *App) Run(ctx context.Context, commands chan<- control.Command) error {
	a.commands = commands

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go a.refreshLoop(ctx)

	if err := a.app.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

// refreshLoop is the only source of redraws
func (a *App) refreshLoop(ctx context.Context) {
	refreshRate := a.config.RefreshRate
	if refreshRate <= 0 {
		refreshRate = 250 * time.Millisecond
	}
	ticker := time.NewTicker(refreshRate)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.app.Stop()
			return
		case <-ticker.C:
			a.refresh()
		}
	}
}

// refresh updates all UI components
func (a *App) refresh() {
	a.app.QueueUpdateDraw(func() {
		a.mu.Lock()
		v := a.view
		a.mu.Unlock()

		a.updateStations(v)
		a.updateNowPlaying(v)
		a.updateHistory(v)
		a.updateStatus(v)
		a.updateHelp(v)
	})
}

// updateStations renders the station list with the cursor kept in view
func (a *App) updateStations(v daemon.View) {
	_, _, width, height := a.stations.GetInnerRect()
	text := renderStations(v, width)

	if text != a.lastStations {
		a.lastStations = text
		a.stations.SetText(text)
	}

	if height > 0 {
		top := 0
		if v.Selected >= height {
			top = v.Selected - height + 1
		}
		a.stations.ScrollTo(top, 0)
	}
}

func renderStations(v daemon.View, width int) string {
	if len(v.Stations) == 0 {
		return "[gray]Loading stations...[-]"
	}

	nameWidth := width - 4
	if nameWidth < 8 {
		nameWidth = 8
	}

	var sb strings.Builder
	for i, st := range v.Stations {
		if i > 0 {
			sb.WriteString("\n")
		}

		marker := "  "
		if i == v.Active {
			switch v.State {
			case radio.StatePlaying:
				marker = "[green]\u25B6[-] "
			case radio.StatePaused:
				marker = "[yellow]\u23F8[-] "
			default:
				marker = "[gray]\u25A0[-] "
			}
		}

		name := tview.Escape(runewidth.Truncate(st.Title, nameWidth, "..."))
		if i == v.Selected {
			sb.WriteString(fmt.Sprintf("%s[black:white]%s[-:-]", marker, name))
		} else {
			sb.WriteString(fmt.Sprintf("%s[white]%s[-]", marker, name))
		}
	}
	return sb.String()
}

// updateNowPlaying updates the now playing panel
func (a *App) updateNowPlaying(v daemon.View) {
	text := renderNowPlaying(v)
	if text != a.lastNowPlaying {
		a.lastNowPlaying = text
		a.nowPlaying.SetText(text)
	}
}

func renderNowPlaying(v daemon.View) string {
	if v.Active < 0 || v.Active >= len(v.Stations) {
		if v.Loading {
			return "\n\n[yellow]Connecting...[-]"
		}
		return "\n\n[gray]Nothing playing[-]"
	}
	st := v.Stations[v.Active]

	var sb strings.Builder
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("[white::b]%s[-:-:-]\n", tview.Escape(st.Title)))
	if v.Title != "" {
		sb.WriteString(fmt.Sprintf("[yellow]%s[-]\n", tview.Escape(v.Title)))
	} else {
		sb.WriteString(fmt.Sprintf("[gray]%s[-]\n", tview.Escape(st.Description)))
	}
	if st.Genre != "" {
		sb.WriteString(fmt.Sprintf("[gray]%s[-]\n", tview.Escape(strings.ReplaceAll(st.Genre, "|", ", "))))
	}

	stateIcon := "[gray]\u25A0 stopped[-]"
	switch {
	case v.Loading:
		stateIcon = "[yellow]\u2026 connecting[-]"
	case v.State == radio.StatePlaying:
		stateIcon = "[green]\u25B6 playing[-]"
	case v.State == radio.StatePaused:
		stateIcon = "[yellow]\u23F8 paused[-]"
	}
	sb.WriteString(fmt.Sprintf("\n%s  %s  vol %d%%", stateIcon, formatDuration(v.Elapsed), int(v.Volume*100+0.5)))
	return sb.String()
}

// updateHistory renders the log from the scroll offset
func (a *App) updateHistory(v daemon.View) {
	text := renderHistory(v.History, v.Scroll)
	if text != a.lastHistory {
		a.lastHistory = text
		a.history.SetText(text)
		a.history.ScrollToBeginning()
	}
}

func renderHistory(msgs []history.Message, scroll int) string {
	if scroll >= len(msgs) {
		scroll = max(0, len(msgs)-1)
	}
	if len(msgs) == 0 {
		return "[gray]No messages[-]"
	}

	var sb strings.Builder
	for i, msg := range msgs[scroll:] {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(fmt.Sprintf("[gray]%s[-] %s%s[-]", msg.Timestamp(), kindColor(msg.Kind), tview.Escape(msg.Text)))
	}
	return sb.String()
}

func kindColor(k history.Kind) string {
	switch k {
	case history.KindError:
		return "[red]"
	case history.KindPlayback:
		return "[yellow]"
	case history.KindSystem, history.KindBackground:
		return "[gray]"
	default:
		return "[white]"
	}
}

// updateStatus updates the footer
func (a *App) updateStatus(v daemon.View) {
	text := renderStatus(v)
	if text != a.lastStatus {
		a.lastStatus = text
		a.status.SetText(text)
	}
}

func renderStatus(v daemon.View) string {
	parts := []string{fmt.Sprintf("[white]%s[-]", v.State)}
	if v.Loading {
		parts = append(parts, "[yellow]buffering[-]")
	}
	if v.Underrun || v.RestartAttempts > 0 {
		parts = append(parts, fmt.Sprintf("[red]reconnecting (%d)[-]", v.RestartAttempts))
	}
	parts = append(parts, "[gray]?:help  q:quit[-]")
	return strings.Join(parts, "  ")
}

// updateHelp shows or hides the help overlay
func (a *App) updateHelp(v daemon.View) {
	if v.Help == a.lastHelp {
		return
	}
	a.lastHelp = v.Help
	if v.Help {
		a.pages.ShowPage("help")
	} else {
		a.pages.HidePage("help")
	}
}

// formatDuration formats a duration as HH:MM:SS
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}

	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}
