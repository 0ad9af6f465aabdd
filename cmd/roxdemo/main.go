// Command roxdemo exercises a Client end to end without any
// configuration source, so flags serve their defaults: setup, a couple
// of flag reads, an override, and a clean shutdown.
package main

import (
	"context"
	"log"
	"os"
	"time"

	"golang.org/x/exp/slog"

	"github.com/alextanhongpin/rox/rcontext"
	"github.com/alextanhongpin/rox/rox"
	"github.com/alextanhongpin/rox/storage/filekv"
)

func main() {
	apiKey := os.Getenv("ROX_API_KEY")
	if apiKey == "" {
		apiKey = "roxdemo-local"
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	store := filekv.New(os.TempDir())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, state, err := rox.Setup(ctx, apiKey,
		rox.WithDisableSignatureVerification(),
		rox.WithLogger(logger),
		rox.WithStore(store),
		rox.WithFetchInterval(30*time.Second),
	)
	if err != nil {
		log.Fatalf("setup failed with state %s: %v", state, err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := client.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	client.SetCustomStringProperty("country", "SG")

	checkout, err := client.AddFlag("flags.enableCheckout", false)
	if err != nil {
		log.Fatalf("add flag: %v", err)
	}

	rc := rcontext.Empty()
	log.Printf("flags.enableCheckout = %v", checkout.Value(rc))
	log.Printf("dynamic flags.beta.newDashboard = %v", client.GetBool("flags.beta.newDashboard", false, rc))

	if err := client.SetOverride(ctx, "flags.enableCheckout", "true"); err != nil {
		log.Fatalf("set override: %v", err)
	}
	log.Printf("flags.enableCheckout after override = %v", checkout.Value(rc))
}
