package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/shlex"
	"github.com/peterh/liner"
	"github.com/rs/zerolog/log"

	"argentum/host/config"
	"argentum/host/logging"
	"argentum/host/printer"
	"argentum/transfer"
)

var (
	configFile = flag.String("config", "", "Path to a TOML settings file")
	port       = flag.String("port", "", "Serial device path, or \"auto\" (overrides the settings file)")
	driver     = flag.String("driver", "", "Serial driver: bugst, tarm or tty (overrides the settings file)")
	verbose    = flag.Bool("verbose", false, "Enable debug logging")
)

const historyFile = ".argentum_history"

func main() {
	flag.Parse()
	logging.ConfigureRuntime()

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	h := newHost(cfg, os.Stdout)
	defer h.printer.Disconnect()

	// One-shot mode
	if flag.NArg() > 0 {
		if err := h.runOnce(flag.Arg(0), flag.Args()[1:]); err != nil {
			h.printer.Disconnect()
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	console(h)
}

func loadConfig() (config.Config, error) {
	cfg := config.Default()
	if *configFile != "" {
		loaded, err := config.Load(*configFile)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}

	if *port != "" {
		cfg.Port = *port
	}
	if *driver != "" {
		cfg.Serial.Driver = *driver
	}
	if *verbose {
		cfg.LogLevel = "debug"
	}
	if !logging.SetLevel(cfg.LogLevel) {
		log.Warn().Str("level", cfg.LogLevel).Msg("unknown log level, keeping default")
	}
	return cfg, nil
}

func newHost(cfg config.Config, out io.Writer, opts ...printer.Option) *host {
	p := printer.New(append([]printer.Option{
		printer.WithSerialConfig(cfg.Serial),
		printer.WithHandshakeTimeout(cfg.HandshakeTimeout),
		printer.WithTransferOptions(
			transfer.WithCompression(cfg.Compress),
			transfer.WithReplyTimeout(cfg.ReplyTimeout),
		),
	}, opts...)...)
	return &host{printer: p, cfg: cfg, out: out}
}

// console runs the interactive shell until quit, Ctrl-C at the prompt or
// end of input
func console(h *host) {
	shell := liner.NewLiner()
	defer shell.Close()

	shell.SetCtrlCAborts(true)
	shell.SetCompleter(func(line string) (c []string) {
		for _, cmd := range commandList() {
			if strings.HasPrefix(cmd.Name, strings.ToLower(line)) {
				c = append(c, cmd.Name)
			}
		}
		return
	})

	history := filepath.Join(os.TempDir(), historyFile)
	if home, err := os.UserHomeDir(); err == nil {
		history = filepath.Join(home, historyFile)
	}
	if f, err := os.Open(history); err == nil {
		shell.ReadHistory(f)
		f.Close()
	}

	fmt.Fprintln(h.out, "Argentum Host - type \"help\" for commands, Ctrl-D to quit.")
	for {
		h.showUnsolicited()

		input, err := shell.Prompt("> ")
		if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
			fmt.Fprintln(h.out)
			break
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
			break
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		shell.AppendHistory(input)

		tokens, err := shlex.Split(input)
		if err != nil {
			fmt.Fprintf(h.out, "error: %v\n", err)
			continue
		}
		if len(tokens) == 0 {
			continue
		}
		if tokens[0] == "quit" || tokens[0] == "exit" || tokens[0] == "q" {
			break
		}
		if err := h.run(tokens[0], tokens[1:]); err != nil {
			fmt.Fprintf(h.out, "error: %v\n", err)
		}
	}

	if f, err := os.Create(history); err == nil {
		shell.WriteHistory(f)
		f.Close()
	}
}
