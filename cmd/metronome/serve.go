package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/satindergrewal/metronome/internal/audio"
	"github.com/satindergrewal/metronome/internal/bridge"
	"github.com/satindergrewal/metronome/internal/relay"
	"github.com/satindergrewal/metronome/internal/stream"
	"github.com/satindergrewal/metronome/internal/stream/rtc"
)

const (
	reconcileInterval = time.Second
	frameBuffer       = 150 // ~3s of 20ms frames per listener
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Port    int
	OSCAddr string
}

// NewServeCommand creates the serve command.
func NewServeCommand(root *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: root}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the metronome with the HTTP bridge and click streams",
		Long: `Serve starts the engine and exposes it over HTTP: the command bridge under
/api, a live WAV click stream on /stream and a WebRTC Opus offer endpoint
on /offer. Beat events are also relayed over OSC when --osc is set.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return runServe(ctx, opts)
		},
	}

	cmd.Flags().IntVar(&opts.Port, "port", root.Config.Port, "HTTP listen port")
	cmd.Flags().StringVar(&opts.OSCAddr, "osc", root.Config.OSCAddr, "relay beat events to this OSC host:port")

	return cmd
}

func runServe(ctx context.Context, opts *ServeOptions) error {
	cfg := opts.Config
	cfg.Port = opts.Port
	cfg.OSCAddr = opts.OSCAddr

	a, err := newApp(cfg, opts.KeepSaved)
	if err != nil {
		return err
	}
	defer a.Close()

	if !a.ctrl.Initialize() {
		a.log.Warnf("audio engine failed to initialize, playback will be unavailable")
	}

	g, ctx := errgroup.WithContext(ctx)
	mux := http.NewServeMux()

	var history bridge.History
	if a.store != nil {
		history = a.store
	}
	bridge.NewServer(a.ctrl, history, a.logs.NewLogger("bridge")).Register(mux)
	a.trainer.Register(mux)

	if a.pipeline != nil {
		frames := stream.NewBroadcaster[[]int16](frameBuffer)
		webrtcHandler := rtc.NewHandler(frames, a.logs)
		defer webrtcHandler.Close()

		g.Go(func() error { a.pipeline.Run(ctx); return nil })
		g.Go(func() error { frames.Run(ctx, a.pipeline.Frames()); return nil })

		mux.Handle("GET /stream", stream.NewHTTPHandler(frames, audio.SampleRate, a.logs.NewLogger("http-stream")))
		mux.Handle("POST /offer", webrtcHandler)
		mux.HandleFunc("GET /api/stream", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Access-Control-Allow-Origin", "*")
			json.NewEncoder(w).Encode(map[string]any{
				"pipeline":         a.pipeline.Status(),
				"http_listeners":   frames.ListenerCount(),
				"webrtc_listeners": webrtcHandler.PeerCount(),
				"dropped_frames":   frames.Dropped(),
			})
		})
	}

	if cfg.OSCAddr != "" {
		r, err := relay.New(cfg.OSCAddr, a.logs.NewLogger("relay"))
		if err != nil {
			return err
		}
		g.Go(func() error { r.Run(ctx, a.ctrl.Events()); return nil })
		a.log.Infof("relaying beats to OSC %s", cfg.OSCAddr)
	}

	g.Go(func() error { a.ctrl.Watch(ctx, reconcileInterval); return nil })
	g.Go(func() error { a.trainer.Run(ctx, a.ctrl.Events()); return nil })

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{Addr: addr, Handler: mux}
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		a.log.Infof("listening on http://localhost%s", addr)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	err = g.Wait()
	a.log.Info("shutting down")
	return err
}
