package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"time"

	"github.com/bytedance/sonic"
	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"

	"tradecore/internal/app"
	"tradecore/internal/config"
	"tradecore/internal/engine"
)

type reportSummary struct {
	Engine         string         `json:"engine"`
	Ticks          int            `json:"ticks"`
	Orders         int            `json:"orders"`
	Cancels        int            `json:"cancels"`
	Signals        map[string]int `json:"signals"`
	StrategyErrors []string       `json:"strategyErrors,omitempty"`
	Elapsed        string         `json:"elapsed"`
	Error          string         `json:"error,omitempty"`
}

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "Path to YAML config")
	envFile := flag.String("env-file", "", "Dotenv file loaded before the environment (default: ./.env)")
	mode := flag.String("mode", "backtest", "Run mode: backtest or live")
	sourceKind := flag.String("source", "", "Override backtest source kind (jsonl or tape)")
	sourcePath := flag.String("source-path", "", "Override backtest source path")
	recordDir := flag.String("record-dir", "", "Override recorder directory in live mode")
	reportPath := flag.String("report", "", "Write the backtest summary as JSON to this path")
	flag.Parse()

	var envFiles []string
	if *envFile != "" {
		envFiles = append(envFiles, *envFile)
	}
	if err := config.LoadDotEnv(envFiles...); err != nil {
		logs.Errorf("load env file failed: %+v", err)
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logs.Errorf("load config failed: %+v", err)
		return 1
	}
	if *sourceKind != "" {
		cfg.Backtest.Kind = *sourceKind
	}
	if *sourcePath != "" {
		cfg.Backtest.Path = *sourcePath
	}
	if *recordDir != "" {
		cfg.Recorder.Dir = *recordDir
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-sys.Shutdown()
		logs.Warnf("shutdown signal received")
		cancel()
	}()

	if cfg.Profiling.ServerAddress != "" {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: cfg.Profiling.ApplicationName,
			ServerAddress:   cfg.Profiling.ServerAddress,
			Tags:            cfg.Profiling.Tags,
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			logs.Errorf("pyroscope start failed: %+v", err)
			return 1
		}
		defer func() {
			_ = profiler.Stop()
		}()
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		logs.Errorf("build app failed: %+v", err)
		return 1
	}
	defer func() {
		if err := a.Close(); err != nil {
			logs.Errorf("close app, err: %+v", err)
		}
	}()

	if cfg.Metrics.Addr != "" {
		srv := serveMetrics(cfg.Metrics.Addr, a.MetricsHandler())
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
			defer done()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	switch *mode {
	case "backtest":
		report, err := a.Backtest(ctx, nil)
		if *reportPath != "" {
			if werr := writeReport(*reportPath, a.Engine().Name(), report, err); werr != nil {
				logs.Errorf("write report failed: %+v", werr)
			}
		}
		if err != nil {
			logs.Errorf("backtest failed: %+v", err)
			return 1
		}
	case "live":
		if err := a.Live(ctx); err != nil {
			logs.Errorf("live failed: %+v", err)
			return 1
		}
	default:
		logs.Errorf("unknown mode %q", *mode)
		return 2
	}
	return 0
}

func serveMetrics(addr string, handler http.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logs.Infof("metrics listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logs.Errorf("metrics server, err: %+v", err)
		}
	}()
	return srv
}

func writeReport(path, engineName string, report engine.Report, runErr error) error {
	summary := reportSummary{
		Engine:  engineName,
		Ticks:   report.Ticks,
		Orders:  len(report.Orders),
		Cancels: report.Cancels,
		Signals: report.Signals,
		Elapsed: report.Elapsed.String(),
	}
	for _, se := range report.StrategyErrors {
		summary.StrategyErrors = append(summary.StrategyErrors, se.Error())
	}
	if runErr != nil {
		summary.Error = runErr.Error()
	}
	data, err := sonic.ConfigFastest.MarshalIndent(summary, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
