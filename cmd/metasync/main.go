package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"metasync/internal/engine"
	"metasync/internal/logging"
	"metasync/internal/offset"
	"metasync/internal/transport"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const usage = `usage:
  metasync [run] [-pipeline pipeline.yml] [-grpc-port N] [-metrics-port N]
  metasync offsets show  [-pipeline pipeline.yml] [-source NAME]
  metasync offsets reset [-pipeline pipeline.yml] [-source NAME] -key KEY [-to OFFSET]
  metasync health [-addr host:port] [-service NAME]
`

func main() {
	logging.InitFromEnv()

	args := os.Args[1:]
	cmd := "run"
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		cmd, args = args[0], args[1:]
	}

	var err error
	switch cmd {
	case "run":
		err = run(args)
	case "offsets":
		err = offsets(args)
	case "health":
		err = health(args)
	case "help":
		fmt.Print(usage)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		logging.L().Error(cmd+" failed", "err", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	cfg := engine.Config{}
	fs.StringVar(&cfg.PipelineYml, "pipeline", "pipeline.yml", "pipeline file")
	fs.IntVar(&cfg.GRPCPort, "grpc-port", 0, "control server port (overrides the pipeline file)")
	fs.IntVar(&cfg.MetricsPort, "metrics-port", 0, "admin HTTP port (overrides the pipeline file)")
	_ = fs.Parse(args)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	e, err := engine.Bootstrap(ctx, cfg)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	return e.Run(ctx)
}

func offsets(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("offsets: want show or reset")
	}
	sub := args[0]

	fs := flag.NewFlagSet("offsets "+sub, flag.ExitOnError)
	path := fs.String("pipeline", "pipeline.yml", "pipeline file")
	source := fs.String("source", "", "source name")
	key := fs.String("key", "", "offset key, e.g. system.audit.offset")
	to := fs.String("to", "", "new offset; empty forgets the key")
	wait := fs.Duration("wait", 5*time.Second, "how long to wait for the offset file lock")
	_ = fs.Parse(args[1:])

	ctx, cancel := context.WithTimeout(context.Background(), *wait)
	defer cancel()

	switch sub {
	case "show":
		return engine.ShowOffsets(ctx, *path, *source, os.Stdout)
	case "reset":
		if err := engine.ResetOffset(ctx, *path, *source, *key, offset.Offset(*to)); err != nil {
			return err
		}
		logging.L().Info("offset reset", "key", *key, "to", *to)
		return nil
	}
	return fmt.Errorf("offsets: unknown subcommand %q", sub)
}

func health(args []string) error {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	addr := fs.String("addr", "localhost:7070", "control server address")
	service := fs.String("service", "", "source name; empty checks the process")
	timeout := fs.Duration("timeout", 3*time.Second, "check timeout")
	_ = fs.Parse(args)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	st, err := transport.Check(ctx, *addr, *service)
	if err != nil {
		return err
	}
	fmt.Println(st)
	if st != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("%s is %s", *addr, st)
	}
	return nil
}
