package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/junsooki/camview/internal/log"
	"github.com/junsooki/camview/internal/signaling"
)

func main() {
	addr := flag.String("addr", ":8080", "Listen address")
	level := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	flag.Parse()

	log.Init(*level)
	logger := log.Component("main")

	srv := &http.Server{
		Addr:              *addr,
		Handler:           signaling.NewRelay(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	go func() {
		<-ctx.Done()
		shutdown, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		srv.Shutdown(shutdown)
	}()

	logger.Info("signaling relay listening", "addr", *addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("relay stopped", "error", err)
		os.Exit(1)
	}
}
