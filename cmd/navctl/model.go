package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/go-kratos/bearing"
	otelstats "github.com/go-kratos/bearing/contrib/otel"
)

// taskMsg is a closure scheduled by uiQueue.RunOnGui. Bubble Tea's Update
// is itself a single-consumer event loop (one goroutine drains the
// program's message channel), the shape the dispatcher expects of "the UI
// thread": routing a RunOnGui task through tea.Program.Send and invoking
// it from inside Update makes this the literal RunOnGui implementation,
// not just an analog.
type taskMsg func()

// uiQueue adapts a *tea.Program to bearing.UITaskQueue. program is set
// once, right after tea.NewProgram constructs it -- before the program
// starts reading input, so no RunOnGui call can race the assignment.
type uiQueue struct {
	program *tea.Program
}

func (q *uiQueue) RunOnGui(task func()) {
	q.program.Send(taskMsg(task))
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
)

// model is the navctl Bubble Tea model. It owns no dispatcher state of
// its own beyond what's needed to render the most recent request's
// progress and terminal outcome; the Dispatcher is the source of truth.
type model struct {
	dispatcher *bearing.Dispatcher
	queue      *uiQueue
	otelSink   *otelstats.Sink
	input      textinput.Model
	progress   progress.Model

	status    string
	errLine   string
	lastRoute *bearing.Route
	busy      bool
	requestAt time.Time
}

func newModel(d *bearing.Dispatcher, q *uiQueue, otelSink *otelstats.Sink) model {
	ti := textinput.New()
	ti.Placeholder = "start_x,start_y finish_x,finish_y  (e.g. 0,0 0.01,0.01)"
	ti.Focus()
	ti.CharLimit = 128
	ti.Width = 48

	return model{
		dispatcher: d,
		queue:      q,
		otelSink:   otelSink,
		input:      ti,
		progress:   progress.New(progress.WithDefaultGradient()),
		status:     "enter two points and press enter",
	}
}

func (m model) Init() tea.Cmd {
	return textinput.Blink
}

// progressMsg and resultMsg are posted by the dispatcher's callbacks
// (via m.queue.program.Send), so by the time Update receives one, the
// corresponding route computation has already reached that milestone on
// the worker -- and delivery here is guaranteed to run on the Update
// goroutine.
type progressMsg float64

type resultMsg struct {
	route *bearing.Route
	code  bearing.ResultCode
	extra string
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "enter":
			if m.busy {
				return m, nil
			}
			return m.submit()
		}
	case taskMsg:
		msg()
		return m, nil
	case progressMsg:
		cmd := m.progress.SetPercent(float64(msg))
		return m, cmd
	case resultMsg:
		m.busy = false
		m.lastRoute = msg.route
		m.errLine = ""
		switch msg.code {
		case bearing.NoError:
			m.status = fmt.Sprintf("route #%d ready: %.1fm (%.2fs)", msg.route.ID, msg.route.DistanceMeters, time.Since(m.requestAt).Seconds())
		case bearing.NeedMoreMaps:
			m.status = fmt.Sprintf("route #%d needs more maps: %s", msg.route.ID, msg.extra)
		case bearing.Cancelled:
			m.status = "cancelled"
		default:
			m.errLine = msg.code.String()
			m.status = "request did not complete"
		}
		return m, nil
	case progress.FrameMsg:
		next, cmd := m.progress.Update(msg)
		m.progress = next.(progress.Model)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit parses the input line and issues one CalculateRoute call. Its
// callbacks never touch m directly -- the worker schedules them through
// RunOnGui and they run inside Update as a taskMsg -- they only post tea
// messages back through m.queue.program, which Update then applies to
// model state.
func (m model) submit() (tea.Model, tea.Cmd) {
	checkpoints, direction, ok := parseRequest(m.input.Value())
	if !ok {
		m.errLine = "expected: start_x,start_y finish_x,finish_y"
		return m, nil
	}

	queue := m.queue
	_, span := m.otelSink.StartRequest(context.Background(), "navctl-demo-router")
	endSpan := func(code bearing.ResultCode, distance float64) {
		m.otelSink.End(span, bearing.StatsRecord{
			RouterName:  "navctl-demo-router",
			Result:      code,
			Distance:    distance,
			HasDistance: code == bearing.NoError,
		})
	}

	_, err := m.dispatcher.CalculateRoute(checkpoints, direction, false, bearing.DelegateCallbacks{
		OnReady: func(route *bearing.Route, code bearing.ResultCode) {
			endSpan(code, route.DistanceMeters)
			queue.program.Send(resultMsg{route: route, code: code})
		},
		OnNeedMoreMaps: func(routeID uint64, absentRegions []string) {
			endSpan(bearing.NeedMoreMaps, 0)
			queue.program.Send(resultMsg{
				route: &bearing.Route{ID: routeID},
				code:  bearing.NeedMoreMaps,
				extra: strings.Join(absentRegions, ", "),
			})
		},
		OnRemoveRoute: func(code bearing.ResultCode) {
			endSpan(code, 0)
			queue.program.Send(resultMsg{route: &bearing.Route{}, code: code})
		},
		OnProgress: func(progress01 float64) {
			queue.program.Send(progressMsg(progress01))
		},
	}, bearing.WithTimeoutSec(30))
	if err != nil {
		m.errLine = err.Error()
		return m, nil
	}

	m.busy = true
	m.errLine = ""
	m.status = "computing..."
	m.requestAt = time.Now()
	return m, m.progress.SetPercent(0)
}

func parseRequest(raw string) (bearing.Checkpoints, bearing.Direction, bool) {
	fields := strings.Fields(strings.TrimSpace(raw))
	if len(fields) != 2 {
		return bearing.Checkpoints{}, bearing.Direction{}, false
	}
	start, ok := parsePoint(fields[0])
	if !ok {
		return bearing.Checkpoints{}, bearing.Direction{}, false
	}
	finish, ok := parsePoint(fields[1])
	if !ok {
		return bearing.Checkpoints{}, bearing.Direction{}, false
	}
	return bearing.Checkpoints{Start: start, Finish: finish}, bearing.Direction{X: 1, Y: 0}, true
}

func parsePoint(raw string) (bearing.GeoPoint, bool) {
	parts := strings.Split(raw, ",")
	if len(parts) != 2 {
		return bearing.GeoPoint{}, false
	}
	var x, y float64
	if _, err := fmt.Sscanf(parts[0], "%f", &x); err != nil {
		return bearing.GeoPoint{}, false
	}
	if _, err := fmt.Sscanf(parts[1], "%f", &y); err != nil {
		return bearing.GeoPoint{}, false
	}
	return bearing.GeoPoint{X: x, Y: y}, true
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("navctl — route dispatcher console"))
	b.WriteString("\n\n")
	b.WriteString(m.input.View())
	b.WriteString("\n\n")
	b.WriteString(m.progress.View())
	b.WriteString("\n")
	b.WriteString(statusStyle.Render(m.status))
	if m.errLine != "" {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render(m.errLine))
	} else if m.lastRoute != nil && !m.busy {
		b.WriteString("\n")
		b.WriteString(okStyle.Render(fmt.Sprintf("last router: %s", m.lastRoute.RouterName)))
	}
	b.WriteString("\n\nctrl+c to quit\n")
	return b.String()
}
