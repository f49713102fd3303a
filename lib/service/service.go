/*
 * Berth
 * Copyright (C) 2025  Quayside, Inc.
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 */

// Package service assembles the storage engine, the signature verifier
// and the S3 front end into a running process: the API server plus the
// optional diagnostic server, with signal driven shutdown.
package service

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gravitational/trace"
	"golang.org/x/sync/errgroup"

	"github.com/quayside/berth"
	"github.com/quayside/berth/lib/defaults"
	"github.com/quayside/berth/lib/s3api"
	"github.com/quayside/berth/lib/sigv4"
	"github.com/quayside/berth/lib/storage"
	logutils "github.com/quayside/berth/lib/utils/log"
)

var log = logutils.NewPackageLogger(berth.ComponentKey, berth.ComponentService)

// Service is an assembled berth process. Listeners are bound by New so
// callers can read the effective addresses before Run begins serving.
type Service struct {
	cfg     Config
	handler *s3api.Handler

	apiListener  net.Listener
	diagListener net.Listener

	authLogFile *os.File
}

// New validates cfg, builds the request pipeline and binds the
// listeners. The service does not serve until Run is called.
func New(cfg Config) (*Service, error) {
	if err := cfg.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}

	engine, err := storage.NewEngine(storage.Config{DataDir: cfg.DataDir})
	if err != nil {
		return nil, trace.Wrap(err)
	}

	var authLogFile *os.File
	var authDebugLog *slog.Logger
	if cfg.AuthDebugLog != "" {
		authLogFile, err = os.OpenFile(cfg.AuthDebugLog, os.O_WRONLY|os.O_CREATE|os.O_APPEND, berth.FileMaskOwnerOnly)
		if err != nil {
			return nil, trace.ConvertSystemError(err)
		}
		authDebugLog = slog.New(slog.NewTextHandler(authLogFile, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}

	serverName, serverPort := splitListenAddr(cfg.ListenAddr)
	verifier, err := sigv4.NewVerifier(sigv4.VerifierConfig{
		Credentials:              cfg.Credentials,
		AllowedAccessKeys:        cfg.AllowedAccessKeys,
		AllowLegacyAccessKeyOnly: cfg.AllowLegacyAccessKeyOnly,
		ClockSkew:                cfg.ClockSkew,
		MaxPresignExpires:        cfg.MaxPresignExpires,
		AllowHostFallbacks:       cfg.AllowHostFallbacks,
		ServerName:               serverName,
		ServerPort:               serverPort,
		Clock:                    cfg.Clock,
		DebugLog:                 authDebugLog,
	})
	if err != nil {
		closeIgnore(authLogFile)
		return nil, trace.Wrap(err)
	}

	handler, err := s3api.NewHandler(s3api.HandlerConfig{
		Engine:         engine,
		Verifier:       verifier,
		MaxRequestSize: cfg.MaxRequestSize,
	})
	if err != nil {
		closeIgnore(authLogFile)
		return nil, trace.Wrap(err)
	}

	apiListener, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		closeIgnore(authLogFile)
		return nil, trace.ConvertSystemError(err)
	}
	var diagListener net.Listener
	if cfg.DiagAddr != "" {
		diagListener, err = net.Listen("tcp", cfg.DiagAddr)
		if err != nil {
			closeIgnore(apiListener, authLogFile)
			return nil, trace.ConvertSystemError(err)
		}
	}

	return &Service{
		cfg:          cfg,
		handler:      handler,
		apiListener:  apiListener,
		diagListener: diagListener,
		authLogFile:  authLogFile,
	}, nil
}

// Addr is the address the S3 API accepts connections on.
func (s *Service) Addr() net.Addr {
	return s.apiListener.Addr()
}

// DiagAddr is the address of the diagnostic endpoint, nil when the
// endpoint is disabled.
func (s *Service) DiagAddr() net.Addr {
	if s.diagListener == nil {
		return nil
	}
	return s.diagListener.Addr()
}

// Run serves until ctx is canceled, SIGINT or SIGTERM arrives, or a
// listener fails. Inflight requests get a drain window before
// connections close.
func (s *Service) Run(ctx context.Context) error {
	defer s.Close()
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	apiServer := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: defaults.ReadHeaderTimeout,
		IdleTimeout:       defaults.HTTPIdleTimeout,
	}
	var diagServer *http.Server
	if s.diagListener != nil {
		diagServer = &http.Server{
			Handler:           newDiagHandler(s.cfg.DataDir),
			ReadHeaderTimeout: defaults.ReadHeaderTimeout,
			IdleTimeout:       defaults.HTTPIdleTimeout,
		}
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.InfoContext(ctx, "S3 API listening.",
			"version", berth.Version,
			"addr", s.apiListener.Addr().String(),
			"data_dir", s.cfg.DataDir,
		)
		return serveListener(apiServer, s.apiListener)
	})
	if diagServer != nil {
		group.Go(func() error {
			log.InfoContext(ctx, "Diagnostic endpoint listening.",
				"addr", s.diagListener.Addr().String(),
			)
			return serveListener(diagServer, s.diagListener)
		})
	}
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), defaults.GracefulShutdownTimeout)
		defer cancel()
		log.InfoContext(shutdownCtx, "Shutting down.")
		var errs []error
		errs = append(errs, apiServer.Shutdown(shutdownCtx))
		if diagServer != nil {
			errs = append(errs, diagServer.Shutdown(shutdownCtx))
		}
		return trace.NewAggregate(errs...)
	})
	return trace.Wrap(group.Wait())
}

// Close releases the listeners and the auth debug log. Run closes them
// itself, Close covers the paths where Run never starts.
func (s *Service) Close() error {
	var errs []error
	if err := s.apiListener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		errs = append(errs, err)
	}
	if s.diagListener != nil {
		if err := s.diagListener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = append(errs, err)
		}
	}
	if s.authLogFile != nil {
		if err := s.authLogFile.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			errs = append(errs, err)
		}
		s.authLogFile = nil
	}
	return trace.NewAggregate(errs...)
}

func serveListener(server *http.Server, listener net.Listener) error {
	if err := server.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
		return trace.Wrap(err)
	}
	return nil
}

// splitListenAddr extracts the host and port the verifier may use as
// its own name when host fallbacks are enabled.
func splitListenAddr(addr string) (host, port string) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr, ""
	}
	return host, port
}

func closeIgnore(closers ...interface{ Close() error }) {
	for _, c := range closers {
		if c != nil {
			c.Close()
		}
	}
}
