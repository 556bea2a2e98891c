package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"argentum/firing"
	"argentum/host/config"
	"argentum/host/printer"
	"argentum/host/serial"
	"argentum/transfer"
)

type host struct {
	printer *printer.Printer
	cfg     config.Config
	out     io.Writer

	// listPorts is serial.FindPrinterPorts unless replaced
	listPorts func() ([]serial.PortInfo, error)
}

type command struct {
	Name        string
	Usage       string
	Description string
	MinArgs     int
	MaxArgs     int // -1 for no limit
	Handler     func(h *host, args []string) error
}

var commands = map[string]command{}

func init() {
	for _, c := range []command{
		{"help", "help", "Show this help message", 0, 0, (*host).help},
		{"ports", "ports", "List attached printers", 0, 0, (*host).ports},
		{"connect", "connect [port]", "Connect to a printer (default from settings)", 0, 1, (*host).connect},
		{"disconnect", "disconnect", "Release the serial port", 0, 0, (*host).disconnect},
		{"version", "version", "Show the firmware version", 0, 0, (*host).version},
		{"raw", "raw <text...>", "Send a line and print the response", 1, -1, (*host).raw},
		{"move", "move <x> <y>", "Move both axes and wait", 2, 2, (*host).move},
		{"movex", "movex <x>", "Move the X axis and wait", 1, 1, axisHandler(printer.AxisX)},
		{"movey", "movey <y>", "Move the Y axis and wait", 1, 1, axisHandler(printer.AxisY)},
		{"home", "home", "Home both axes and wait", 0, 0, (*host).home},
		{"homed", "homed", "Report whether the carriage is at its limits", 0, 0, (*host).homed},
		{"calibrate", "calibrate", "Start a calibration", 0, 0, simpleHandler((*printer.Printer).Calibrate)},
		{"pause", "pause", "Pause the current print", 0, 0, simpleHandler((*printer.Printer).Pause)},
		{"resume", "resume", "Resume a paused print", 0, 0, simpleHandler((*printer.Printer).Resume)},
		{"start", "start", "Start printing", 0, 0, simpleHandler((*printer.Printer).Start)},
		{"stop", "stop", "Stop printing", 0, 0, simpleHandler((*printer.Printer).Stop)},
		{"print", "print <file>", "Print a stored file and wait for completion", 1, 1, (*host).print},
		{"fire", "fire <address> <primitive>", "Fire one primitive", 2, 2, (*host).fire},
		{"ls", "ls <names...>", "Report which files the printer lacks", 1, -1, (*host).missing},
		{"md5", "md5 <path>", "Compare a file's MD5 with the printer copy", 1, 1, (*host).md5},
		{"djb2", "djb2 <path>", "Compare a file's checksum with the printer copy", 1, 1, (*host).djb2},
		{"send", "send <path> [raw]", "Upload a file, raw skips compression", 1, 2, (*host).send},
		{"sync", "sync <paths...>", "Upload files the printer lacks or holds stale", 1, -1, (*host).sync},
		{"compress", "compress <in> [out]", "Compress a job file locally", 1, 2, (*host).compress},
		{"expand", "expand <in> [out]", "Expand a compressed job locally", 1, 2, (*host).expand},
	} {
		commands[c.Name] = c
	}
}

// commandList returns the commands sorted by name
func commandList() []command {
	list := make([]command, 0, len(commands))
	for _, c := range commands {
		list = append(list, c)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list
}

// lookup finds a command and checks its argument count
func lookup(name string, args []string) (command, error) {
	cmd, ok := commands[strings.ToLower(name)]
	if !ok {
		return command{}, fmt.Errorf("unknown command %q (type 'help' for available commands)", name)
	}
	if len(args) < cmd.MinArgs || (cmd.MaxArgs >= 0 && len(args) > cmd.MaxArgs) {
		return command{}, fmt.Errorf("usage: %s", cmd.Usage)
	}
	return cmd, nil
}

func (h *host) run(name string, args []string) error {
	cmd, err := lookup(name, args)
	if err != nil {
		return err
	}
	return cmd.Handler(h, args)
}

// offline commands work without a printer link
var offline = map[string]bool{
	"help":       true,
	"ports":      true,
	"connect":    true,
	"disconnect": true,
	"compress":   true,
	"expand":     true,
}

// runOnce runs a single command from the command line, connecting to the
// configured port first when the command needs the printer
func (h *host) runOnce(name string, args []string) error {
	cmd, err := lookup(name, args)
	if err != nil {
		return err
	}
	if !offline[cmd.Name] && !h.printer.IsConnected() {
		if err := h.connect(nil); err != nil {
			return err
		}
	}
	return cmd.Handler(h, args)
}

// showUnsolicited prints whatever the printer sent on its own
func (h *host) showUnsolicited() {
	data, err := h.printer.Monitor()
	if err != nil {
		fmt.Fprintf(h.out, "link lost: %v\n", err)
		return
	}
	if len(data) > 0 {
		fmt.Fprint(h.out, string(data))
	}
}

// path resolves a local file name against the files directory
func (h *host) path(name string) string {
	if filepath.IsAbs(name) || h.cfg.FilesDir == "" {
		return name
	}
	return filepath.Join(h.cfg.FilesDir, name)
}

func (h *host) printLines(lines []string) {
	for _, line := range lines {
		if line != "" {
			fmt.Fprintln(h.out, line)
		}
	}
}

func (h *host) help(args []string) error {
	fmt.Fprintln(h.out, "Available commands:")
	for _, c := range commandList() {
		fmt.Fprintf(h.out, "  %-28s %s\n", c.Usage, c.Description)
	}
	fmt.Fprintf(h.out, "  %-28s %s\n", "quit/exit/q", "Exit the program")
	return nil
}

func (h *host) findPorts() ([]serial.PortInfo, error) {
	if h.listPorts != nil {
		return h.listPorts()
	}
	return serial.FindPrinterPorts()
}

func (h *host) ports(args []string) error {
	found, err := h.findPorts()
	if err != nil {
		return err
	}
	if len(found) == 0 {
		fmt.Fprintln(h.out, "No printers found")
		return nil
	}
	for _, p := range found {
		fmt.Fprintf(h.out, "  %-20s %s:%s %s %s\n", p.Name, p.VID, p.PID, p.Serial, p.Product)
	}
	return nil
}

// device picks the port to open: the argument, the configured port, or
// the first attached printer when that is "auto"
func (h *host) device(args []string) (string, error) {
	device := h.cfg.Port
	if len(args) > 0 {
		device = args[0]
	}
	if device != config.AutoPort && device != "" {
		return device, nil
	}

	found, err := h.findPorts()
	if err != nil {
		return "", err
	}
	if len(found) == 0 {
		return "", errors.New("no printer found, give a port explicitly")
	}
	return found[0].Name, nil
}

func (h *host) connect(args []string) error {
	device, err := h.device(args)
	if err != nil {
		return err
	}
	fmt.Fprintf(h.out, "Connecting to %s...\n", device)
	if err := h.printer.Connect(device); err != nil {
		if msg := h.printer.LastError(); msg != "" {
			return fmt.Errorf("%s (%w)", msg, err)
		}
		return err
	}
	fmt.Fprintln(h.out, "Connected")
	return h.version(nil)
}

func (h *host) disconnect(args []string) error {
	return h.printer.Disconnect()
}

func (h *host) version(args []string) error {
	if !h.printer.IsConnected() {
		return printer.ErrNotConnected
	}
	if v := h.printer.VersionString(); v != "" {
		fmt.Fprintf(h.out, "Firmware %s\n", v)
	} else {
		fmt.Fprintln(h.out, "Firmware did not report a version")
	}
	return nil
}

func (h *host) raw(args []string) error {
	lines, err := h.printer.Command(strings.Join(args, " "), printer.WithTimeout(h.cfg.ReplyTimeout))
	if err != nil {
		return err
	}
	if lines == nil {
		fmt.Fprintln(h.out, "(no response)")
	}
	h.printLines(lines)
	return nil
}

func parsePosition(arg string) (int, error) {
	pos, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("invalid position %q", arg)
	}
	return pos, nil
}

func (h *host) move(args []string) error {
	x, err := parsePosition(args[0])
	if err != nil {
		return err
	}
	y, err := parsePosition(args[1])
	if err != nil {
		return err
	}
	return h.printer.Move(x, y, true)
}

func axisHandler(axis printer.Axis) func(*host, []string) error {
	return func(h *host, args []string) error {
		pos, err := parsePosition(args[0])
		if err != nil {
			return err
		}
		_, err = h.printer.MoveAxis(axis, pos, true)
		return err
	}
}

func simpleHandler(fn func(*printer.Printer) error) func(*host, []string) error {
	return func(h *host, args []string) error {
		return fn(h.printer)
	}
}

func (h *host) home(args []string) error {
	lines, err := h.printer.Home(true)
	h.printLines(lines)
	return err
}

func (h *host) homed(args []string) error {
	homed, err := h.printer.IsHomed()
	if err != nil {
		return err
	}
	fmt.Fprintf(h.out, "Homed: %v\n", homed)
	return nil
}

func (h *host) print(args []string) error {
	lines, err := h.printer.Print(args[0], true)
	h.printLines(lines)
	return err
}

func (h *host) fire(args []string) error {
	return h.printer.Fire(args[0], args[1])
}

func (h *host) missing(args []string) error {
	missing, err := h.printer.MissingFiles(args)
	if err != nil {
		return err
	}
	if len(missing) == 0 {
		fmt.Fprintln(h.out, "All files present")
		return nil
	}
	for _, name := range missing {
		fmt.Fprintf(h.out, "missing %s\n", name)
	}
	return nil
}

func (h *host) reportMatch(path string, same bool, err error) error {
	if err != nil {
		return err
	}
	if same {
		fmt.Fprintf(h.out, "%s matches the printer copy\n", filepath.Base(path))
	} else {
		fmt.Fprintf(h.out, "%s differs from the printer copy\n", filepath.Base(path))
	}
	return nil
}

func (h *host) md5(args []string) error {
	path := h.path(args[0])
	same, err := h.printer.CheckMD5(path)
	return h.reportMatch(path, same, err)
}

func (h *host) djb2(args []string) error {
	path := h.path(args[0])
	same, err := h.printer.CheckDJB2(path)
	return h.reportMatch(path, same, err)
}

// interruptible returns a context cancelled by Ctrl-C
func interruptible() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func (h *host) progress(name string) transfer.ProgressFunc {
	return func(sent, total int) bool {
		fmt.Fprintf(h.out, "\r%s: %d/%d bytes", name, sent, total)
		if sent == total {
			fmt.Fprintln(h.out)
		}
		return true
	}
}

func (h *host) printReport(r transfer.Report) {
	if r.Outcome == transfer.OutcomeCancelled {
		fmt.Fprintln(h.out)
	}
	form := "raw"
	if r.Compressed {
		form = fmt.Sprintf("compressed from %d", r.RawSize)
	}
	fmt.Fprintf(h.out, "%s: %s, %d bytes %s, %d blocks, %d retries, %v\n",
		r.Name, r.Outcome, r.Size, form, r.Blocks, r.Failures, r.Elapsed.Round(time.Millisecond))
}

func (h *host) send(args []string) error {
	var opts []transfer.Option
	if len(args) == 2 {
		if args[1] != "raw" {
			return fmt.Errorf("usage: %s", commands["send"].Usage)
		}
		opts = append(opts, transfer.WithCompression(false))
	}

	ctx, stop := interruptible()
	defer stop()

	path := h.path(args[0])
	report, err := h.printer.Send(ctx, path, h.progress(filepath.Base(path)), opts...)
	if err != nil {
		return err
	}
	h.printReport(report)
	return nil
}

func (h *host) sync(args []string) error {
	paths := make([]string, len(args))
	for i, arg := range args {
		paths[i] = h.path(arg)
	}

	ctx, stop := interruptible()
	defer stop()

	reports, err := h.printer.Sync(ctx, paths, func(name string, sent, total int) bool {
		return h.progress(name)(sent, total)
	})
	for _, r := range reports {
		h.printReport(r)
	}
	if err != nil {
		return err
	}
	if len(reports) == 0 {
		fmt.Fprintln(h.out, "Printer copies are current")
	}
	return nil
}

// convert runs fn over a local file, writing to out or printing the result
func (h *host) convert(args []string, fn func(string) (string, error)) error {
	contents, err := os.ReadFile(h.path(args[0]))
	if err != nil {
		return err
	}
	result, err := fn(string(contents))
	if err != nil {
		return err
	}
	if len(args) == 1 {
		fmt.Fprint(h.out, result)
		return nil
	}
	if err := os.WriteFile(h.path(args[1]), []byte(result), 0o644); err != nil {
		return err
	}
	fmt.Fprintf(h.out, "%s: %d -> %d bytes\n", args[1], len(contents), len(result))
	return nil
}

func (h *host) compress(args []string) error {
	return h.convert(args, firing.Compress)
}

func (h *host) expand(args []string) error {
	return h.convert(args, firing.Expand)
}
