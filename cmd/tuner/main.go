// Command tuner detects the pitch of an audio stream and prints the nearest
// note with its deviation in cents.
//
// Usage:
//
//	tuner [flags]
//
// Exactly one input is used: a WAV file (-wav), a synthetic tone (-tone) or
// the default capture device (-portaudio, requires the portaudio build tag).
// Without an input a 440 Hz tone is analyzed.
//
// Examples:
//
//	tuner -tone 329.63
//	tuner -wav guitar.wav -offline
//	tuner -config tuner.conf -set FFT_SIZE=1024 -portaudio
//	tuner -tone 440 -noise 0.2 -listen :8080
//	tuner -set ROOT_FREQUENCY_ERROR=-31.77 -print-config
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/cwbudde/algo-tuner/dsp/buffer"
	"github.com/cwbudde/algo-tuner/internal/logging"
	"github.com/cwbudde/algo-tuner/internal/server"
	"github.com/cwbudde/algo-tuner/tuner"
	"github.com/cwbudde/algo-tuner/tuner/capture"
	"github.com/cwbudde/algo-tuner/tuner/config"
)

// assignments collects repeated -set KEY=VALUE flags.
type assignments []string

func (a *assignments) String() string { return strings.Join(*a, ",") }

func (a *assignments) Set(s string) error {
	if _, _, err := config.ParseAssignment(s); err != nil {
		return err
	}

	*a = append(*a, s)

	return nil
}

type options struct {
	configPath  string
	sets        assignments
	wavPath     string
	tone        float64
	amplitude   float64
	noise       float64
	portAudio   bool
	listen      string
	offline     bool
	printConfig bool
	logLevel    string
	logJSON     bool
	frameSize   int
}

// source is what the command needs from a capture collaborator.
type source interface {
	tuner.Source
	SampleRate() float64
}

func main() {
	var o options

	flag.StringVar(&o.configPath, "config", "", "configuration file (KEY = VALUE, or JSON when ending in .json)")
	flag.Var(&o.sets, "set", "override a setting as KEY=VALUE (repeatable)")
	flag.StringVar(&o.wavPath, "wav", "", "analyze a WAV file")
	flag.Float64Var(&o.tone, "tone", math.NaN(), "analyze a synthetic sine of this frequency in Hz")
	flag.Float64Var(&o.amplitude, "amplitude", 0.5, "peak amplitude of the synthetic tone")
	flag.Float64Var(&o.noise, "noise", 0, "peak amplitude of white noise added to the synthetic tone")
	flag.BoolVar(&o.portAudio, "portaudio", false, "capture from the default input device")
	flag.StringVar(&o.listen, "listen", "", "serve results over HTTP and websocket on this address")
	flag.BoolVar(&o.offline, "offline", false, "analyze the WAV file as fast as possible and exit")
	flag.BoolVar(&o.printConfig, "print-config", false, "print the normalized configuration as JSON and exit")
	flag.StringVar(&o.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	flag.BoolVar(&o.logJSON, "log-json", false, "write logs as JSON instead of console text")
	flag.IntVar(&o.frameSize, "frame", 512, "capture frame size in samples")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: tuner [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Detects the pitch of an audio stream and prints note and deviation.\n")
		fmt.Fprintf(os.Stderr, "Without an input flag a 440 Hz tone is analyzed.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  tuner -tone 329.63\n")
		fmt.Fprintf(os.Stderr, "  tuner -wav guitar.wav -offline\n")
		fmt.Fprintf(os.Stderr, "  tuner -config tuner.conf -set FFT_SIZE=1024 -portaudio\n")
		fmt.Fprintf(os.Stderr, "  tuner -tone 440 -noise 0.2 -listen :8080\n")
	}
	flag.Parse()

	if err := run(o); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(o options) error {
	logging.SetOutput(os.Stderr, !o.logJSON)

	if err := logging.SetLevel(o.logLevel); err != nil {
		return err
	}

	log := logging.Component("cli")

	cfg, err := loadConfig(o, log)
	if err != nil {
		return err
	}

	if o.printConfig {
		norm, _ := cfg.Normalize()
		return config.Save(os.Stdout, norm)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if o.offline {
		return runOffline(ctx, o, cfg)
	}

	return runLive(ctx, o, cfg, log)
}

func loadConfig(o options, log zerolog.Logger) (config.Config, error) {
	cfg := config.Default()

	if o.configPath != "" {
		loaded, warnings, err := config.LoadFile(o.configPath)
		if err != nil {
			return config.Config{}, err
		}

		for _, w := range warnings {
			log.Warn().Str("file", o.configPath).Msg(w)
		}

		cfg = loaded
	}

	for _, s := range o.sets {
		key, value, err := config.ParseAssignment(s)
		if err != nil {
			return config.Config{}, err
		}

		if f, ok := config.Lookup(key); ok && f.Deprecated() {
			log.Warn().Str("key", f.Key).Str("use", f.AliasOf).Msg("deprecated option")
		}

		if err := config.Set(&cfg, key, value); err != nil {
			return config.Config{}, err
		}
	}

	return cfg, nil
}

func openSource(o options, sampleRate float64, realtime bool) (source, func() error, error) {
	opts := []capture.Option{capture.WithFrameSize(o.frameSize)}
	if realtime {
		opts = append(opts, capture.WithRealtime())
	}

	switch {
	case o.wavPath != "":
		s, err := capture.OpenWAV(o.wavPath, opts...)
		if err != nil {
			return nil, nil, err
		}

		return s, s.Close, nil
	case o.portAudio:
		s, err := capture.OpenPortAudio(sampleRate, capture.WithFrameSize(o.frameSize))
		if err != nil {
			return nil, nil, err
		}

		return s, s.Close, nil
	default:
		freq := o.tone
		if math.IsNaN(freq) {
			freq = 440
		}

		if o.noise > 0 {
			opts = append(opts, capture.WithNoise(o.noise, 1))
		}

		s, err := capture.NewTone(freq, sampleRate, o.amplitude, opts...)
		if err != nil {
			return nil, nil, err
		}

		return s, func() error { return nil }, nil
	}
}

func runLive(ctx context.Context, o options, cfg config.Config, log zerolog.Logger) error {
	src, closeSrc, err := openSource(o, cfg.SampleRate, true)
	if err != nil {
		return err
	}
	defer closeSrc()

	cfg.SampleRate = src.SampleRate()

	publishers := fanOut{newPrinter(os.Stdout)}

	var events *server.Broadcaster
	if o.listen != "" {
		events = server.NewBroadcaster(logging.GetDefaultLogger())
		publishers = append(publishers, events)
	}

	engine, err := tuner.NewEngine(cfg, tuner.WithPublisher(publishers))
	if err != nil {
		return err
	}

	if err := engine.Start(ctx); err != nil {
		return err
	}
	defer engine.Stop()

	errCh := make(chan error, 2)

	go func() { errCh <- engine.Pump(ctx, src) }()

	if o.listen != "" {
		srv := server.New(engine, events, logging.GetDefaultLogger())
		go func() { errCh <- srv.ListenAndServe(ctx, o.listen) }()
	}

	log.Info().Float64("sample_rate", cfg.SampleRate).Msg("tuner running, press Ctrl+C to stop")

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		if err == nil || errors.Is(err, context.Canceled) {
			// The source ended; stop the server and scheduler as well.
			return nil
		}

		return err
	}
}

// runOffline pushes the file through the engine one calculation hop at a
// time and prints a line per visualization period of signal time.
func runOffline(ctx context.Context, o options, cfg config.Config) error {
	if o.wavPath == "" {
		return errors.New("-offline needs -wav")
	}

	src, err := capture.OpenWAV(o.wavPath, capture.WithFrameSize(o.frameSize))
	if err != nil {
		return err
	}
	defer src.Close()

	samples, err := src.ReadAll(ctx)
	if err != nil {
		return err
	}

	cfg.SampleRate = src.SampleRate()

	engine, err := tuner.NewEngine(cfg)
	if err != nil {
		return err
	}

	cfg = engine.Config()
	hop := max(int(math.Round(cfg.SampleRate/cfg.CalculationRate)), 1)
	every := max(int(math.Round(cfg.CalculationRate/cfg.VisualizationRate)), 1)

	p := newPrinter(os.Stdout)
	p.withTime = true

	for i, cycle := 0, 0; i < len(samples); i += hop {
		if err := ctx.Err(); err != nil {
			return err
		}

		engine.Push(samples[i:min(i+hop, len(samples))])

		res, err := engine.RunCycle()
		if errors.Is(err, buffer.ErrInsufficientData) {
			continue
		}

		if err != nil {
			return err
		}

		if cycle%every == 0 {
			p.elapsed = float64(min(i+hop, len(samples))) / cfg.SampleRate
			p.Publish(res, tuner.Spectrum{})
		}

		cycle++
	}

	return p.err
}

// fanOut delivers to several publishers in order.
type fanOut []tuner.Publisher

func (f fanOut) Publish(res tuner.Result, spec tuner.Spectrum) {
	for _, p := range f {
		p.Publish(res, spec)
	}
}

// printer writes one line per result.
type printer struct {
	w        io.Writer
	withTime bool
	elapsed  float64
	err      error
}

func newPrinter(w io.Writer) *printer {
	return &printer{w: w}
}

func (p *printer) Publish(res tuner.Result, _ tuner.Spectrum) {
	if p.err != nil {
		return
	}

	var b strings.Builder

	if p.withTime {
		fmt.Fprintf(&b, "%8.3fs  ", p.elapsed)
	}

	if res.SignalPresent {
		fmt.Fprintf(&b, "%-4s %9.3f Hz  %+7.2f ct  %s  %6.1f dB",
			res.Label(), res.Frequency, res.DeviationCents, meter(res.DeviationCents), res.LevelDB)
	} else {
		fmt.Fprintf(&b, "%-4s %9s     %7s     %s  %6.1f dB", "-", "", "", meter(math.NaN()), res.LevelDB)
	}

	b.WriteByte('\n')

	_, p.err = io.WriteString(p.w, b.String())
}

const meterWidth = 21

// meter renders a deviation of -50..+50 cents as a needle on a scale.
func meter(cents float64) string {
	cells := []byte(strings.Repeat("-", meterWidth))
	cells[meterWidth/2] = '|'

	if !math.IsNaN(cents) {
		c := max(-50, min(50, cents))
		pos := int(math.Round((c + 50) / 100 * float64(meterWidth-1)))
		cells[pos] = '*'
	}

	return "[" + string(cells) + "]"
}
