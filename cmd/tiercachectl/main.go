// Command tiercachectl inspects and maintains a tiercache deployment: the
// durable store, the remote tier and the version store named in the config.
//
//	tiercachectl [-config tiercache.yaml] [-env .env] <command> [flags] [args]
//
// Commands:
//
//	stats                   namespace statistics as JSON
//	get -ns KIND KEY        write the cached value to stdout
//	delete -ns KIND KEY     remove KEY from every tier
//	clear [-ns KIND]        clear one namespace, or all of them
//	sweep                   purge expired and stale entries now
//	bump -ns KIND           invalidate a namespace by bumping its version
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/unkn0wn-root/tiercache"
	"github.com/unkn0wn-root/tiercache/config"
	"github.com/unkn0wn-root/tiercache/internal/app"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
	exitMiss  = 3
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

var errUsage = errors.New("usage")

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("tiercachectl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	cfgPath := fs.String("config", config.DefaultConfigFile, "YAML config file")
	envPath := fs.String("env", ".env", "dotenv file")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(stderr, "usage: tiercachectl [-config file] [-env file] stats|get|delete|clear|sweep|bump ...")
		return exitUsage
	}

	cfg, err := config.LoadFrom(*cfgPath, *envPath)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitError
	}
	logger := app.NewLogger(cfg.Logging, stderr)

	a, err := app.New(ctx, cfg, logger, stderr)
	if err != nil {
		logger.Error("startup failed", "err", err)
		return exitError
	}
	defer func() {
		if err := a.Close(context.Background()); err != nil {
			logger.Warn("shutdown", "err", err)
		}
	}()

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	code, err := dispatch(ctx, a.Registry, cfg, cmd, rest, stdout, stderr)
	switch {
	case errors.Is(err, errUsage):
		return exitUsage
	case err != nil:
		logger.Error(cmd+" failed", "err", err)
		return exitError
	}
	return code
}

func dispatch(ctx context.Context, reg *tiercache.Registry, cfg *config.Config, cmd string, args []string, stdout, stderr io.Writer) (int, error) {
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(stderr)
	ns := fs.String("ns", "", "namespace kind")
	if err := fs.Parse(args); err != nil {
		return exitUsage, errUsage
	}

	switch cmd {
	case "stats":
		return exitOK, writeJSON(stdout, reg.AllStats())

	case "sweep":
		return exitOK, writeJSON(stdout, reg.Sweep(ctx))

	case "clear":
		if *ns == "" {
			reg.ClearAll(ctx)
			return exitOK, nil
		}
		return exitOK, reg.ClearNamespace(ctx, tiercache.Kind(*ns))

	case "get", "delete":
		svc, err := lookup(reg, *ns)
		if err != nil {
			return exitUsage, err
		}
		if fs.NArg() != 1 {
			fmt.Fprintf(stderr, "usage: tiercachectl %s -ns KIND KEY\n", cmd)
			return exitUsage, errUsage
		}
		key := fs.Arg(0)
		if cmd == "delete" {
			svc.Delete(ctx, key)
			return exitOK, nil
		}
		b, ok := svc.Get(ctx, key)
		if !ok {
			fmt.Fprintf(stderr, "%s/%s: not cached\n", *ns, key)
			return exitMiss, nil
		}
		_, err = stdout.Write(b)
		return exitOK, err

	case "bump":
		// a local generation dies with this process and would change nothing
		if cfg.Versions != config.VersionsRedis {
			fmt.Fprintln(stderr, "bump requires versions: redis; a local generation does not outlive tiercachectl")
			return exitUsage, errUsage
		}
		svc, err := lookup(reg, *ns)
		if err != nil {
			return exitUsage, err
		}
		v, err := svc.BumpVersion(ctx)
		if err != nil {
			return exitError, err
		}
		fmt.Fprintln(stdout, v)
		return exitOK, nil

	default:
		fmt.Fprintf(stderr, "unknown command %q\n", cmd)
		return exitUsage, errUsage
	}
}

func lookup(reg *tiercache.Registry, ns string) (*tiercache.Service, error) {
	svc, ok := reg.Lookup(tiercache.Kind(ns))
	if !ok {
		return nil, fmt.Errorf("%w: -ns must name one of %v", errUsage, reg.Kinds())
	}
	return svc, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
