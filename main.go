package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/lotas/mailvox/internal/applog"
	"github.com/lotas/mailvox/internal/bridge"
	"github.com/lotas/mailvox/internal/client"
	"github.com/lotas/mailvox/internal/config"
	"github.com/lotas/mailvox/internal/extract"
	"github.com/lotas/mailvox/internal/player"
	"github.com/lotas/mailvox/internal/relay"
	"github.com/lotas/mailvox/internal/tui"
)

func main() {
	initLog()
	defer applog.Close()

	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "serve":
			runServe(os.Args[2:])
			return
		case "read":
			runRead(os.Args[2:])
			return
		case "voices":
			runVoices(os.Args[2:])
			return
		case "help", "--help", "-h":
			printHelp()
			return
		}
	}

	runWidget(os.Args[1:])
}

func initLog() {
	home, err := os.UserHomeDir()
	if err != nil {
		return
	}
	applog.Init(filepath.Join(home, ".local", "share", "mailvox"))
}

func printHelp() {
	fmt.Print(`mailvox — reads your email out loud

Usage:
  mailvox                                  Start the playback widget (default)
    --file <path>        Watch a saved Gmail message HTML file
    --url <url>          Watch a message view by URL
    --live               Accept page snapshots from the browser extension
    --port <n>           Bridge port for live mode (default: 19192)
    --backend <url>      Summarization backend (default: http://localhost:5001)
    --voice <id>         TTS voice (default: en-US-natalie)

  mailvox read                             One-shot: extract, summarize, speak
    --file <path>        Gmail message HTML file
    --url <url>          Message view URL
    --out <dir>          Save the audio file instead of playing it
    --backend <url>      Summarization backend
    --voice <id>         TTS voice

  mailvox serve                            Run the summarization relay
    --addr <addr>        Listen address (default: :5001)
    --model <name>       Groq model (default: ` + relay.DefaultModel + `)

  mailvox voices                           List available TTS voices
    --backend <url>      Summarization backend

Environment:
  MAILVOX_BACKEND        Backend URL (overridden by --backend)
  MAILVOX_VOICE          TTS voice id (overridden by --voice)
  MAILVOX_BRIDGE_PORT    Bridge port for live mode
  GROQ_API_KEY           Groq API key (serve)
  GROQ_MODEL             Groq model (serve)
  MURF_API_KEY           Murf API key (serve)

Configuration file: ~/.config/mailvox/config.toml
`)
}

func loadConfig() *config.Config {
	cfg, err := config.Load(config.DefaultPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// newSampler builds the page source for file/URL modes; both are nil when
// the user chose live mode.
func newSampler(file, url string) tui.Sampler {
	if file != "" {
		return func() (string, string, error) {
			data, err := os.ReadFile(file)
			return "file://" + file, string(data), err
		}
	}
	if url != "" {
		httpc := &http.Client{Timeout: 15 * time.Second}
		return func() (string, string, error) {
			resp, err := httpc.Get(url)
			if err != nil {
				return url, "", err
			}
			defer resp.Body.Close()
			if resp.StatusCode >= 400 {
				return url, "", fmt.Errorf("fetch %s: HTTP %d", url, resp.StatusCode)
			}
			data, err := io.ReadAll(resp.Body)
			return url, string(data), err
		}
	}
	return nil
}

func runWidget(args []string) {
	fs := flag.NewFlagSet("mailvox", flag.ExitOnError)
	file := fs.String("file", "", "Saved Gmail message HTML file")
	url := fs.String("url", "", "Message view URL")
	live := fs.Bool("live", false, "Accept page snapshots from the browser extension")
	port := fs.Int("port", 0, "Bridge port for live mode")
	backend := fs.String("backend", "", "Summarization backend URL")
	voice := fs.String("voice", "", "TTS voice id")
	fs.Parse(args)

	cfg := loadConfig()
	if *backend != "" {
		cfg.Backend.URL = *backend
	}
	if *voice != "" {
		cfg.Backend.Voice = *voice
	}
	if *port != 0 {
		cfg.Bridge.Port = *port
	}

	if !*live && *file == "" && *url == "" {
		fmt.Fprintln(os.Stderr, "Nothing to watch. Use --file, --url, or --live (see mailvox help).")
		os.Exit(1)
	}

	c := client.New(cfg.Backend.URL, cfg.Backend.Voice)

	var srv *bridge.Server
	if *live {
		srv = bridge.New(cfg.Bridge.Port)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() {
			if err := srv.ListenAndServe(ctx); err != nil && err != http.ErrServerClosed {
				applog.Error("bridge.serve", err)
			}
		}()
	}

	model := tui.NewModel(c, player.New(), newSampler(*file, *url), srv, cfg.Player.DownloadDir)
	p := tea.NewProgram(model, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := fs.String("addr", "", "Listen address")
	model := fs.String("model", "", "Groq model name")
	fs.Parse(args)

	cfg := loadConfig()
	if *addr != "" {
		cfg.Relay.Addr = *addr
	}
	if *model != "" {
		cfg.Relay.GroqModel = *model
	}

	if cfg.Relay.GroqAPIKey == "" {
		fmt.Fprintln(os.Stderr, "Error: no Groq API key. Set GROQ_API_KEY or relay.groq_api_key in the config file.")
		os.Exit(1)
	}
	if cfg.Relay.MurfAPIKey == "" {
		fmt.Fprintln(os.Stderr, "Warning: no Murf API key; summaries will come back without audio.")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := relay.New(relay.Config{
		Addr:       cfg.Relay.Addr,
		GroqAPIKey: cfg.Relay.GroqAPIKey,
		GroqModel:  cfg.Relay.GroqModel,
		MurfAPIKey: cfg.Relay.MurfAPIKey,
		RatePerMin: cfg.Relay.RatePerMin,
	})

	fmt.Fprintf(os.Stderr, "Relay listening on %s\n", cfg.Relay.Addr)
	if err := srv.ListenAndServe(ctx); err != nil && err != http.ErrServerClosed {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runRead(args []string) {
	fs := flag.NewFlagSet("read", flag.ExitOnError)
	file := fs.String("file", "", "Gmail message HTML file")
	url := fs.String("url", "", "Message view URL")
	out := fs.String("out", "", "Save the audio file to this directory instead of playing")
	backend := fs.String("backend", "", "Summarization backend URL")
	voice := fs.String("voice", "", "TTS voice id")
	fs.Parse(args)

	cfg := loadConfig()
	if *backend != "" {
		cfg.Backend.URL = *backend
	}
	if *voice != "" {
		cfg.Backend.Voice = *voice
	}

	sampler := newSampler(*file, *url)
	if sampler == nil {
		fmt.Fprintln(os.Stderr, "Usage: mailvox read --file <path> | --url <url>")
		os.Exit(1)
	}

	pageURL, html, err := sampler()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	doc, err := extract.ParseString(html)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	msg := doc.Extract()
	if msg.Unreadable() {
		fmt.Fprintln(os.Stderr, "Could not read this email.")
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "Summarizing %q...\n", msg.Subject)
	applog.Info("read.start", "identity", extract.Identity(pageURL, msg))

	c := client.New(cfg.Backend.URL, cfg.Backend.Voice)
	result, err := c.Summarize(context.Background(), msg)
	if err != nil && !errors.Is(err, client.ErrNoAudio) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(result.Summary)

	if result.AudioFile == "" {
		fmt.Fprintln(os.Stderr, "No audio returned.")
		return
	}

	if *out != "" {
		path, err := player.Download(nil, result.AudioFile, *out)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error saving audio: %v\n", err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "Saved %s\n", path)
		return
	}

	p := player.New()
	if err := p.Play(result.AudioFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error playing audio: %v\n", err)
		os.Exit(1)
	}
	for ev := range p.Events() {
		if ev.Kind == player.Ended {
			return
		}
		if ev.Kind == player.Failed {
			fmt.Fprintf(os.Stderr, "Playback error: %v\n", ev.Err)
			os.Exit(1)
		}
	}
}

func runVoices(args []string) {
	fs := flag.NewFlagSet("voices", flag.ExitOnError)
	backend := fs.String("backend", "", "Summarization backend URL")
	fs.Parse(args)

	cfg := loadConfig()
	if *backend != "" {
		cfg.Backend.URL = *backend
	}

	c := client.New(cfg.Backend.URL, cfg.Backend.Voice)
	voices, err := c.Voices(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	for _, v := range voices {
		if v.DisplayName != "" || v.Locale != "" {
			fmt.Printf("%-24s %s (%s)\n", v.VoiceID, v.DisplayName, v.Locale)
		} else {
			fmt.Println(v.VoiceID)
		}
	}
}
