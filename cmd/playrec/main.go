package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"gopkg.in/ini.v1"

	"playrec/pkg/app"
	"playrec/pkg/config"
	"playrec/pkg/esl"
	"playrec/pkg/logging"
	"playrec/pkg/metrics"
)

func main() {
	configPath := flag.String("config", "settings.ini", "path to settings file")
	calls := flag.Int("calls", 0, "number of test calls to originate")
	dest := flag.String("dest", "", "originate destination, e.g. loopback/playrec")
	flag.Parse()

	cfg, err := ini.Load(*configPath)
	if err != nil {
		fmt.Printf("failed to load settings: %v\n", err)
		os.Exit(1)
	}

	settings, err := config.Load(cfg)
	if err != nil {
		fmt.Printf("failed to parse settings: %v\n", err)
		os.Exit(1)
	}

	if err := logging.Init(cfg); err != nil {
		fmt.Printf("failed to init logging: %v\n", err)
		os.Exit(1)
	}
	defer logging.Close()
	logging.Core.Info("settings loaded")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, settings, *calls, *dest); err != nil {
		logging.Core.Fatalf("playrec failed: %v", err)
	}

	logging.Core.Info("performing a graceful shutdown...")
	time.Sleep(time.Second)
}

func run(ctx context.Context, settings *config.Settings, calls int, dest string) error {
	client, err := esl.Connect(settings.ESLAddress(), settings.ESLPassword(), logging.ESL)
	if err != nil {
		return err
	}
	defer client.Close()

	soundPrefix, err := client.GlobalVar(ctx, "sound_prefix")
	if err != nil {
		return err
	}
	recsDir := settings.RecordingsDir()
	if recsDir == "" {
		recsDir, err = client.GlobalVar(ctx, "recordings_dir")
		if err != nil {
			return err
		}
	}

	observer := metrics.New()

	orch, err := app.New(app.Config{
		Host:           settings.ESLAddress(),
		AudioFile:      settings.AudioFile(soundPrefix),
		Silence:        settings.Silence(),
		RecordingsDir:  recsDir,
		ClipLength:     settings.ClipLength(),
		Iterations:     settings.Iterations(),
		TargetDuration: settings.TargetDuration(),
		Period:         settings.RecordPeriod(),
		Stereo:         settings.RecordStereo(),
		Callback: func(info app.RecInfo) {
			logging.Core.Infof("call complete on %s: caller=%s callee=%s",
				info.Host, info.Caller, info.Callee)
		},
	}, logging.Core, observer)
	if err != nil {
		return err
	}

	if err := client.Attach(ctx, orch); err != nil {
		return err
	}

	go serveMetrics(settings.MetricsListen(), observer, orch)

	for i := 0; i < calls; i++ {
		if dest == "" {
			return fmt.Errorf("-calls given without -dest")
		}
		if _, err := client.Originate(ctx, dest); err != nil {
			logging.Core.Warnf("originate failed: %v", err)
		}
	}

	<-ctx.Done()
	return nil
}

func serveMetrics(listen string, observer *metrics.Metrics, orch *app.PlayRec) {
	r := chi.NewRouter()
	r.Handle("/metrics", observer.Handler(func() {
		observer.SetActiveCalls(orch.Registry().Len())
	}))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	logging.Core.Infof("metrics listening on %s", listen)
	if err := http.ListenAndServe(listen, r); err != nil {
		logging.Core.Warnf("metrics server stopped: %v", err)
	}
}
