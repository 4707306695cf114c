package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/jessevdk/go-flags"

	"github.com/arupa444/Connection-That-Grow/app/server"
	"github.com/arupa444/Connection-That-Grow/app/server/web"
	"github.com/arupa444/Connection-That-Grow/app/store"
	"github.com/arupa444/Connection-That-Grow/app/validator"
)

var opts struct {
	DB string `short:"d" long:"db" env:"CONNDB_DB" default:"connections.db" description:"database URL (sqlite file or postgres://...)"`

	ImportFile string `long:"import" env:"CONNDB_IMPORT" description:"xlsx workbook to import on startup"`
	CacheSize  int    `long:"cache-size" env:"CONNDB_CACHE_SIZE" default:"1000" description:"max number of cached contacts"`

	Server struct {
		Address         string `long:"address" env:"ADDRESS" default:":8080" description:"server listen address"`
		BaseURL         string `long:"base-url" env:"BASE_URL" description:"base URL path when behind a reverse proxy (e.g. /contacts)"`
		ReadTimeout     int    `long:"read-timeout" env:"READ_TIMEOUT" default:"5" description:"read timeout in seconds"`
		WriteTimeout    int    `long:"write-timeout" env:"WRITE_TIMEOUT" default:"30" description:"write timeout in seconds"`
		IdleTimeout     int    `long:"idle-timeout" env:"IDLE_TIMEOUT" default:"60" description:"idle timeout in seconds"`
		ShutdownTimeout int    `long:"shutdown-timeout" env:"SHUTDOWN_TIMEOUT" default:"5" description:"graceful shutdown timeout in seconds"`
	} `group:"server" namespace:"server" env-namespace:"CONNDB_SERVER"`

	Auth struct {
		UsersFile string `long:"users-file" env:"USERS_FILE" default:"users.json" description:"path to users file, created with a default admin if missing"`
		HotReload bool   `long:"hot-reload" env:"HOT_RELOAD" description:"reload users file on change"`
		LoginTTL  int    `long:"login-ttl" env:"LOGIN_TTL" default:"1440" description:"login session TTL in minutes"`
	} `group:"auth" namespace:"auth" env-namespace:"CONNDB_AUTH"`

	Limits struct {
		BodySize         int64 `long:"body-size" env:"BODY_SIZE" default:"1048576" description:"max request body size in bytes"`
		RequestsPerSec   int64 `long:"requests-per-sec" env:"REQUESTS_PER_SEC" default:"1000" description:"max requests per second"`
		LoginConcurrency int64 `long:"login-concurrency" env:"LOGIN_CONCURRENCY" default:"5" description:"max concurrent login attempts"`
	} `group:"limits" namespace:"limits" env-namespace:"CONNDB_LIMITS"`

	Debug   bool `long:"dbg" env:"DEBUG" description:"debug mode"`
	Version bool `long:"version" description:"show version and exit"`
}

var revision = "unknown"

func main() {
	fmt.Printf("conndb %s\n", revision)

	p := flags.NewParser(&opts, flags.PassDoubleDash|flags.HelpFlag)
	if _, err := p.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			p.WriteHelp(os.Stderr)
			os.Exit(2)
		}
		fmt.Printf("%v\n", err)
		os.Exit(1)
	}

	if opts.Version {
		os.Exit(0)
	}

	setupLogs()

	defer func() {
		if x := recover(); x != nil {
			log.Printf("[WARN] run time panic:\n%v", x)
			panic(x)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	signals(cancel)

	if err := run(ctx); err != nil {
		log.Printf("[ERROR] failed: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	log.Printf("[INFO] starting conndb server on %s", opts.Server.Address)

	// initialize storage
	dbStore, err := store.New(opts.DB)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer dbStore.Close()

	cached, err := store.NewCached(dbStore, opts.CacheSize)
	if err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}

	// one-time import from a legacy workbook
	if opts.ImportFile != "" {
		imported, err := web.ImportFile(ctx, cached, opts.ImportFile)
		if err != nil {
			return fmt.Errorf("failed to import %s: %w", opts.ImportFile, err)
		}
		log.Printf("[INFO] imported %d contacts from %s", imported, opts.ImportFile)
	}

	// initialize and start HTTP server, sessions live in the same db
	srv, err := server.New(cached, validator.NewService(), dbStore, server.Config{
		Address:          opts.Server.Address,
		BaseURL:          opts.Server.BaseURL,
		ReadTimeout:      time.Duration(opts.Server.ReadTimeout) * time.Second,
		WriteTimeout:     time.Duration(opts.Server.WriteTimeout) * time.Second,
		IdleTimeout:      time.Duration(opts.Server.IdleTimeout) * time.Second,
		ShutdownTimeout:  time.Duration(opts.Server.ShutdownTimeout) * time.Second,
		Version:          revision,
		UsersFile:        opts.Auth.UsersFile,
		UsersHotReload:   opts.Auth.HotReload,
		LoginTTL:         time.Duration(opts.Auth.LoginTTL) * time.Minute,
		BodySizeLimit:    opts.Limits.BodySize,
		RequestsPerSec:   opts.Limits.RequestsPerSec,
		LoginConcurrency: opts.Limits.LoginConcurrency,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

func setupLogs() io.Writer {
	log.Setup(log.Msec)
	if opts.Debug {
		log.Setup(log.Debug, log.CallerFunc, log.CallerPkg, log.CallerFile)
	}
	return os.Stdout
}

func signals(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	go func() {
		stacktrace := make([]byte, 8192)
		for sig := range sigChan {
			switch sig {
			case syscall.SIGQUIT:
				length := runtime.Stack(stacktrace, true)
				fmt.Println(string(stacktrace[:length]))
			case syscall.SIGTERM, syscall.SIGINT:
				cancel()
			}
		}
	}()
	signal.Notify(sigChan, syscall.SIGQUIT, syscall.SIGTERM, syscall.SIGINT)
}
