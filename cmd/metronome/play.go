package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/satindergrewal/metronome/internal/config"
	"github.com/satindergrewal/metronome/internal/session"
	"github.com/satindergrewal/metronome/internal/trainer"
)

// NewPlayCommand creates the interactive terminal player.
func NewPlayCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "play",
		Short: "Play the metronome on the local speaker with keyboard controls",
		Long: `Play starts the metronome immediately and reads single keys from the
terminal to change tempo, meter, muting and presets.

` + helpLine,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := root.Config
			if root.LogLevel == "" {
				// Log lines would tear the status line.
				cfg.LogLevel = "error"
			}
			switch {
			case root.Output == "":
				cfg.Output = config.OutputDevice
			case cfg.Output.Stream():
				return fmt.Errorf("play supports --output device or none, use serve for streaming")
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return runPlay(ctx, cfg, root.KeepSaved, cmd.OutOrStdout())
		},
	}
}

func runPlay(ctx context.Context, cfg config.Config, restore bool, out io.Writer) error {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return errors.New("play needs an interactive terminal")
	}

	a, err := newApp(cfg, restore)
	if err != nil {
		return err
	}
	defer a.Close()

	if !a.ctrl.Initialize() {
		return errors.New("audio engine failed to initialize")
	}

	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("raw terminal: %w", err)
	}
	defer term.Restore(fd, oldState)

	keys := newKeyReader(os.Stdin)
	defer keys.Stop()

	events := a.ctrl.Events().Subscribe()
	defer a.ctrl.Events().Unsubscribe(events)

	fmt.Fprintf(out, "%s\r\n", helpLine)
	go a.trainer.Run(ctx, a.ctrl.Events())

	p := &player{ctrl: a.ctrl, trainer: a.trainer, out: out, beat: -1}
	st := a.ctrl.Status()
	p.start(st)
	p.redraw()
	defer fmt.Fprint(out, "\r\n")

	for {
		select {
		case <-ctx.Done():
			return nil
		case b, ok := <-keys.C:
			if !ok {
				return nil
			}
			for _, act := range parseKeys(b) {
				if act.kind == actQuit {
					return nil
				}
				p.apply(act)
			}
			p.redraw()
		case ev := <-events.C:
			p.observe(ev)
			p.redraw()
		}
	}
}

// player maps key actions onto the controller and tracks the beat display.
type player struct {
	ctrl    *session.Controller
	trainer *trainer.Trainer
	out     io.Writer
	beat    int
	muted   bool
	notice  string // shown after the status until the next key
}

func (p *player) start(st session.Status) {
	if !p.ctrl.Start(st.BPM, st.BeatsPerBar, st.PlayBars, st.MuteBars) {
		p.notice = startFailedNotice
	}
}

func (p *player) apply(act action) {
	p.notice = ""
	st := p.ctrl.Status()
	switch act.kind {
	case actToggle:
		if st.Playing {
			p.ctrl.Pause()
		} else {
			p.start(st)
		}
	case actStop:
		p.ctrl.Stop()
	case actTempo:
		p.ctrl.SetBpm(st.BPM + act.arg)
	case actBeats:
		p.ctrl.SetBeatsPerBar(st.BeatsPerBar + act.arg)
	case actMute:
		p.ctrl.SetBarMute(nextMute(st.PlayBars, st.MuteBars))
	case actTrainer:
		p.trainer.SetEnabled(!p.trainer.Status().Enabled)
	case actPreset:
		// Out-of-range digits are ignored.
		_ = p.ctrl.ApplyPreset(act.arg)
	}
}

func (p *player) observe(ev session.Event) {
	switch args := ev.Args.(type) {
	case session.BeatArgs:
		p.beat, p.muted = args.Beat, args.IsMuted
	case session.PlayStateArgs:
		if !args.IsPlaying {
			p.beat = -1
		}
	}
}

func (p *player) redraw() {
	fmt.Fprintf(p.out, "\r\033[K%s", withNotice(renderStatus(p.ctrl.Status(), p.trainer.Status(), p.beat, p.muted), p.notice))
}

// keyReader delivers raw stdin reads on C. The blocking read cannot be
// interrupted, so Stop only stops delivery; the goroutine ends with the
// process or the next keypress.
type keyReader struct {
	C       chan []byte
	stopCh  chan struct{}
	stopped sync.Once
}

func newKeyReader(r io.Reader) *keyReader {
	k := &keyReader{C: make(chan []byte, 16), stopCh: make(chan struct{})}
	go k.run(r)
	return k
}

func (k *keyReader) run(r io.Reader) {
	defer close(k.C)
	buf := make([]byte, 16)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			b := append([]byte(nil), buf[:n]...)
			select {
			case k.C <- b:
			case <-k.stopCh:
				return
			}
		}
		if err != nil {
			return
		}
	}
}

// Stop is safe to call more than once.
func (k *keyReader) Stop() {
	k.stopped.Do(func() { close(k.stopCh) })
}
