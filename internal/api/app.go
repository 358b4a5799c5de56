package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
)

const shutdownTimeout = 15 * time.Second

func newServer(port int, h *Handler) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           h.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// RunServer runs the HTTP server until ctx is cancelled, then shuts it down gracefully.
// This is a blocking call.
func RunServer(ctx context.Context, port int, h *Handler) error {
	stop, done := RunServerInterruptible(port, h)
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		stop <- struct{}{}
		return <-done
	}
}

// RunServerInterruptible runs the server in the background in a Go routine and immediately returns a chan to
// the caller. The caller can then send a signal to the chan to gracefully shutdown the server.
// It's up to the caller to wait for in the main Go routine to keep the server running.
// done yields exactly one value: nil after a clean shutdown, or the error that stopped the listener.
func RunServerInterruptible(port int, h *Handler) (stop chan<- struct{}, done <-chan error) {
	srv := newServer(port, h)

	// Buffered so a stop sent after the listener already failed never blocks the caller.
	stopCh := make(chan struct{}, 1)
	serveErr := make(chan error, 1)
	doneCh := make(chan error, 1)

	go func() {
		log.Infof("scootspot listening on %s", srv.Addr)
		serveErr <- srv.ListenAndServe()
	}()

	go func() {
		select {
		case err := <-serveErr:
			doneCh <- err
		case <-stopCh:
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			shutdownErr := srv.Shutdown(ctx) // in-flight requests get time to finish
			// http.ErrServerClosed is returned on Shutdown; treat that as clean exit
			if err := <-serveErr; err != nil && !errors.Is(err, http.ErrServerClosed) {
				doneCh <- err
				return
			}
			doneCh <- shutdownErr
		}
	}()
	return stopCh, doneCh
}
