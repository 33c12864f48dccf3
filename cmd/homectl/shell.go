package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/rmaker/homectl/pkg/control"
	"github.com/rmaker/homectl/pkg/controller"
	"github.com/rmaker/homectl/pkg/datamodel"
	"github.com/rmaker/homectl/pkg/provision"
	"github.com/rmaker/homectl/pkg/ui"
)

// Shell runs homectl commands against an App.
type Shell struct {
	app *App
	out io.Writer
}

// NewShell creates a shell that prints to out.
func NewShell(app *App, out io.Writer) *Shell {
	return &Shell{app: app, out: out}
}

func completer() *readline.PrefixCompleter {
	return readline.NewPrefixCompleter(
		readline.PcItem("help"),
		readline.PcItem("nodes"),
		readline.PcItem("controls"),
		readline.PcItem("state"),
		readline.PcItem("refresh"),
		readline.PcItem("subscribe"),
		readline.PcItem("level"),
		readline.PcItem("saturation"),
		readline.PcItem("setpoint"),
		readline.PcItem("mode", readline.PcItem("Off"), readline.PcItem("Cool"), readline.PcItem("Heat")),
		readline.PcItem("sequence", readline.PcItem("Cool"), readline.PcItem("Heat")),
		readline.PcItem("scan"),
		readline.PcItem("select"),
		readline.PcItem("quit"),
	)
}

// Run reads commands until quit, EOF or ctx ends.
func (s *Shell) Run(ctx context.Context) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "homectl> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    completer(),
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()
	s.out = rl.Stdout()

	s.printHelp()
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			fmt.Fprintln(s.out, "Exiting...")
			return nil
		}
		if s.Execute(ctx, line) {
			fmt.Fprintln(s.out, "Exiting...")
			return nil
		}
	}
}

// Execute runs one command line. It returns true when the shell should exit.
func (s *Shell) Execute(ctx context.Context, line string) bool {
	parts := strings.Fields(strings.TrimSpace(line))
	if len(parts) == 0 {
		return false
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "?":
		s.printHelp()
	case "nodes", "n":
		s.cmdNodes()
	case "controls", "c":
		s.cmdControls()
	case "state", "s":
		s.cmdState()
	case "refresh", "r":
		s.cmdRefresh(ctx, args)
	case "subscribe":
		s.cmdSubscribe(ctx, args)
	case "level":
		s.cmdSlider(ctx, control.Brightness, args)
	case "saturation":
		s.cmdSlider(ctx, control.Saturation, args)
	case "setpoint":
		s.cmdSlider(ctx, control.CoolingSetpoint, args)
	case "mode":
		s.cmdMode(ctx, control.SystemMode, args)
	case "sequence":
		s.cmdMode(ctx, control.ControlSequence, args)
	case "scan":
		s.cmdScan(ctx, args)
	case "select":
		s.cmdSelect(ctx, args)
	case "quit", "exit", "q":
		return true
	default:
		fmt.Fprintf(s.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return false
}

func (s *Shell) printHelp() {
	fmt.Fprintln(s.out, `
homectl commands:
  Devices:
    nodes                     - List nodes and their clusters
    controls                  - Show every control
    state                     - Show the attribute cache
    refresh [node]            - Read controls again from the device
    subscribe <node>          - Resubscribe the node's controls

  Controls:
    level <node> <0-100>      - Set brightness
    saturation <node> <0-100> - Set saturation
    setpoint <node> <16-32>   - Set the cooling setpoint
    mode <node> <option>      - Set the system mode (Off, Cool, Heat)
    sequence <node> <option>  - Set the control sequence (Cool, Heat)

  Provisioning:
    scan [prefix]             - Scan for BLE devices, optionally with a new prefix
    select <index>            - Open a secure session with a scanned device

    quit                      - Exit`)
}

func (s *Shell) parseNode(args []string, n int) (controller.NodeInfo, bool) {
	if len(args) < n {
		fmt.Fprintln(s.out, "Missing arguments (type 'help' for usage)")
		return controller.NodeInfo{}, false
	}
	v, err := strconv.ParseUint(args[0], 0, 64)
	if err != nil {
		fmt.Fprintf(s.out, "Bad node id %q\n", args[0])
		return controller.NodeInfo{}, false
	}
	info, ok := s.app.findNode(datamodel.NodeID(v))
	if !ok {
		fmt.Fprintf(s.out, "Unknown node %d\n", v)
		return controller.NodeInfo{}, false
	}
	return info, true
}

func (s *Shell) cmdNodes() {
	topo := s.app.ctrl.Topology()
	for _, g := range topo.Groups() {
		fmt.Fprintf(s.out, "%s:\n", g)
		for _, n := range topo.Nodes(g) {
			clusters := make([]string, 0, len(n.Endpoints))
			for c, ep := range n.Endpoints {
				clusters = append(clusters, fmt.Sprintf("%d/0x%04X", ep, uint32(c)))
			}
			sort.Strings(clusters)
			fmt.Fprintf(s.out, "  %d %-24q %s\n", uint64(n.ID), n.Name, strings.Join(clusters, " "))
		}
	}
}

func (s *Shell) printEvent(ev ui.Event) {
	loading := ""
	if ev.Loading {
		loading = " (loading)"
	}
	switch ev.Kind {
	case ui.KindSlider:
		fmt.Fprintf(s.out, "  %-28s %6.1f  [%s .. %s]%s\n", ev.Control, ev.Value, ev.MinLabel, ev.MaxLabel, loading)
	case ui.KindDropdown:
		fmt.Fprintf(s.out, "  %-28s %s  %v%s\n", ev.Control, ev.Selected, ev.Options, loading)
	}
}

// flush waits for queued UI updates.
func (s *Shell) flush() {
	_ = s.app.queue.Sync(func() {})
}

func (s *Shell) cmdControls() {
	s.flush()
	for _, ev := range s.app.mgr.Snapshot() {
		s.printEvent(ev)
	}
}

func (s *Shell) showControl(name string) {
	s.flush()
	for _, ev := range s.app.mgr.Snapshot() {
		if ev.Control == name {
			s.printEvent(ev)
		}
	}
}

func (s *Shell) cmdState() {
	for _, e := range s.app.cache.Snapshot() {
		fmt.Fprintf(s.out, "  %-36s %8d  %-6s %s\n", e.Key, e.Value, e.Source, e.Updated.Format("15:04:05"))
	}
}

type refreshable interface {
	Refresh(ctx context.Context) error
	Subscribe(ctx context.Context) error
}

func (s *Shell) bindings(node datamodel.NodeID, all bool) []refreshable {
	var out []refreshable
	for _, b := range s.app.mgr.Sliders() {
		if all || b.Key().Node == node {
			out = append(out, b)
		}
	}
	for _, b := range s.app.mgr.Modes() {
		if all || b.Key().Node == node {
			out = append(out, b)
		}
	}
	return out
}

func (s *Shell) cmdRefresh(ctx context.Context, args []string) {
	var (
		node datamodel.NodeID
		all  = len(args) == 0
	)
	if !all {
		info, ok := s.parseNode(args, 1)
		if !ok {
			return
		}
		node = info.ID
	}
	failed := 0
	bs := s.bindings(node, all)
	for _, b := range bs {
		if err := b.Refresh(ctx); err != nil {
			failed++
		}
	}
	fmt.Fprintf(s.out, "Refreshed %d control(s), %d failed\n", len(bs)-failed, failed)
	s.cmdControls()
}

func (s *Shell) cmdSubscribe(ctx context.Context, args []string) {
	info, ok := s.parseNode(args, 1)
	if !ok {
		return
	}
	for _, b := range s.bindings(info.ID, false) {
		if err := b.Subscribe(ctx); err != nil {
			fmt.Fprintf(s.out, "Subscribe failed: %v\n", err)
			return
		}
	}
	fmt.Fprintf(s.out, "%d active subscription(s)\n", s.app.mgr.Registry().Len())
}

func (s *Shell) cmdSlider(ctx context.Context, p control.SliderParam, args []string) {
	info, ok := s.parseNode(args, 2)
	if !ok {
		return
	}
	v, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		fmt.Fprintf(s.out, "Bad value %q\n", args[1])
		return
	}
	b, err := s.app.mgr.Slider(info.Group, info.ID, p)
	if err != nil {
		fmt.Fprintf(s.out, "%s: %v\n", p.Title, err)
		return
	}
	if err := b.Change(ctx, v); err != nil {
		fmt.Fprintf(s.out, "%s write failed, rolled back: %v\n", p.Title, err)
	}
	s.showControl(control.ControlName(info.Group, info.ID, p.ID))
}

func (s *Shell) cmdMode(ctx context.Context, p control.ModeParam, args []string) {
	info, ok := s.parseNode(args, 2)
	if !ok {
		return
	}
	b, err := s.app.mgr.Mode(info.Group, info.ID, p)
	if err != nil {
		fmt.Fprintf(s.out, "%s: %v\n", p.Title, err)
		return
	}
	if err := b.Select(ctx, args[1]); err != nil {
		fmt.Fprintf(s.out, "%s write failed: %v\n", p.Title, err)
	}
	s.showControl(control.ControlName(info.Group, info.ID, p.ID))
}

func (s *Shell) cmdScan(ctx context.Context, args []string) {
	l := s.app.landing
	if l == nil {
		fmt.Fprintln(s.out, "Scanning unavailable")
		return
	}
	var (
		devices []provision.Device
		err     error
	)
	if len(args) > 0 {
		devices, err = l.SetPrefix(ctx, args[0])
	} else {
		fmt.Fprintf(s.out, "Searching for %s* devices...\n", l.Prefix())
		devices, err = l.Rescan(ctx)
	}
	if err != nil {
		fmt.Fprintf(s.out, "Scan failed: %v\n", err)
		return
	}
	if len(devices) == 0 {
		fmt.Fprintln(s.out, "No devices found")
		return
	}
	for i, d := range devices {
		fmt.Fprintf(s.out, "  [%d] %-20s %s  %d dBm\n", i, d.Name, d.Addr, d.RSSI)
	}
}

func (s *Shell) cmdSelect(ctx context.Context, args []string) {
	l := s.app.landing
	if l == nil {
		fmt.Fprintln(s.out, "Scanning unavailable")
		return
	}
	if len(args) < 1 {
		fmt.Fprintln(s.out, "Usage: select <index>")
		return
	}
	i, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Fprintf(s.out, "Bad index %q\n", args[0])
		return
	}
	d, err := l.Select(i)
	if err != nil {
		fmt.Fprintf(s.out, "%v\n", err)
		return
	}
	t, err := s.app.session(d)
	if err != nil {
		fmt.Fprintf(s.out, "Connect to %s: %v\n", d.Name, err)
		return
	}
	sess, err := provision.NewSecurity1(s.app.cfg.Provision.PoP)
	if err != nil {
		fmt.Fprintf(s.out, "Session: %v\n", err)
		return
	}
	if err := sess.Establish(ctx, t); err != nil {
		fmt.Fprintf(s.out, "Session with %s failed: %v\n", d.Name, err)
		return
	}
	fmt.Fprintf(s.out, "Secure session established with %s\n", d.Name)
}
