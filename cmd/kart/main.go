// Command kart is an interactive shell over the storefront cart.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xenking/kart-storefront/internal/cartclient"
	"github.com/xenking/kart-storefront/internal/storefront"
)

func main() {
	var (
		apiURL  string
		apiKey  string
		timeout time.Duration
		verbose bool
	)

	flag.StringVar(&apiURL, "api-url", "http://localhost:8080/api", "storefront API base URL (or KART_API_URL env)")
	flag.StringVar(&apiKey, "api-key", "", "API key (or KART_API_KEY env)")
	flag.DurationVar(&timeout, "timeout", 10*time.Second, "per-command timeout")
	flag.BoolVar(&verbose, "v", false, "debug logging")
	flag.Parse()

	if v := os.Getenv("KART_API_URL"); v != "" && !isFlagSet("api-url") {
		apiURL = v
	}
	if apiKey == "" {
		apiKey = os.Getenv("KART_API_KEY")
	}
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "API key is required: set --api-key or KART_API_KEY")
		os.Exit(2)
	}

	lg, err := newLogger(verbose)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = lg.Sync() }()

	client, err := cartclient.New(apiURL, apiKey)
	if err != nil {
		lg.Fatal("Create client", zap.Error(err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	store := storefront.NewStore(client, client, storefront.NewLogNotifier(lg), lg.Named("store"))
	sh := newShell(store, client, os.Stdout, timeout)
	if err := sh.Run(ctx, os.Stdin); err != nil {
		lg.Fatal("Shell", zap.Error(err))
	}
}

func isFlagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.DisableStacktrace = true
	cfg.DisableCaller = true
	cfg.EncoderConfig.TimeKey = ""
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	if !verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return cfg.Build()
}
