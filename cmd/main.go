package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/yungbote/syllabus-studio/internal/app"
	"github.com/yungbote/syllabus-studio/internal/platform/envutil"
)

func main() {
	// .env is optional outside local development.
	_ = godotenv.Load()

	a, err := app.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "init app: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	if err := a.Start(); err != nil {
		a.Log.Error("Background start failed", "error", err)
		a.Close()
		os.Exit(1)
	}

	port := envutil.String("PORT", "8080", a.Log)
	errCh := make(chan error, 1)
	go func() { errCh <- a.Run(":" + port) }()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	select {
	case s := <-sig:
		a.Log.Info("Shutting down", "signal", s.String())
	case err := <-errCh:
		if err != nil {
			a.Log.Error("Server failed", "error", err)
			a.Close()
			os.Exit(1)
		}
	}
}
