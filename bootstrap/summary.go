package bootstrap

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"github.com/kbukum/captiongen/component"
)

// ComponentInfo is one row of the components table.
type ComponentInfo struct {
	Name    string
	Type    string
	Details string
	Port    int
	Health  component.Health
}

// Summary collects and renders what the process started with.
type Summary struct {
	serviceName     string
	version         string
	startupDuration time.Duration
	components      []ComponentInfo
	routes          []component.Route
}

// NewSummary creates a summary for the named service.
func NewSummary(serviceName, version string) *Summary {
	return &Summary{serviceName: serviceName, version: version}
}

// SetStartupDuration records the total startup time.
func (s *Summary) SetStartupDuration(d time.Duration) {
	s.startupDuration = d
}

// Components returns the collected component rows.
func (s *Summary) Components() []ComponentInfo { return s.components }

// Routes returns the collected routes.
func (s *Summary) Routes() []component.Route { return s.routes }

// Collect reads descriptions, routes and live health from the registry.
// Components that are not Describable are listed by name.
func (s *Summary) Collect(ctx context.Context, registry *component.Registry) {
	s.components = s.components[:0]
	s.routes = s.routes[:0]
	if registry == nil {
		return
	}

	for _, c := range registry.All() {
		info := ComponentInfo{Name: c.Name(), Type: "component"}
		if d, ok := c.(component.Describable); ok {
			desc := d.Describe()
			if desc.Name != "" {
				info.Name = desc.Name
			}
			if desc.Type != "" {
				info.Type = desc.Type
			}
			info.Details, info.Port = desc.Details, desc.Port
		}
		info.Health = c.Health(ctx)
		s.components = append(s.components, info)

		if rp, ok := c.(component.RouteProvider); ok {
			s.routes = append(s.routes, rp.Routes()...)
		}
	}
}

// Render writes the summary tables to w.
func (s *Summary) Render(w io.Writer) {
	fmt.Fprintf(w, "\n%s %s started in %.2fs\n", s.serviceName, s.version, s.startupDuration.Seconds())

	if len(s.components) == 0 {
		fmt.Fprintln(w, "No components registered")
		return
	}

	color := isTerminal(w)
	healthy := 0
	ct := newTable(w, table.Row{"Component", "Type", "Details", "Health"})
	for _, c := range s.components {
		details := c.Details
		if c.Port > 0 && details == "" {
			details = ":" + strconv.Itoa(c.Port)
		}
		health := string(c.Health.Status)
		if c.Health.Message != "" {
			health += ": " + c.Health.Message
		}
		if c.Health.Status == component.StatusHealthy {
			healthy++
		}
		if color {
			health = healthColor(c.Health.Status).Sprint(health)
		}
		ct.AppendRow(table.Row{c.Name, c.Type, details, health})
	}
	ct.AppendFooter(table.Row{"", "", "healthy", fmt.Sprintf("%d/%d", healthy, len(s.components))})
	ct.Render()

	if len(s.routes) > 0 {
		rt := newTable(w, table.Row{"Method", "Path", "Handler"})
		for _, r := range s.routes {
			rt.AppendRow(table.Row{r.Method, r.Path, r.Handler})
		}
		rt.Render()
	}
	fmt.Fprintln(w)
}

func newTable(w io.Writer, header table.Row) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(header)
	return tw
}

func healthColor(status component.HealthStatus) text.Colors {
	switch status {
	case component.StatusHealthy:
		return text.Colors{text.FgGreen}
	case component.StatusDegraded:
		return text.Colors{text.FgYellow}
	default:
		return text.Colors{text.FgRed}
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}
