package it

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"getpoetry/internal/config"
	"getpoetry/internal/server"
)

// Farm is a set of in-process poetry servers sharing one admin endpoint.
type Farm struct {
	logger  *slog.Logger
	admin   *server.Admin
	servers []*server.Server
	mu      sync.Mutex
}

// NewFarm starts the admin endpoint on a free loopback port.
func NewFarm(logger *slog.Logger) (*Farm, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	admin := server.NewAdmin("127.0.0.1:0", logger)
	if err := admin.Start(); err != nil {
		return nil, fmt.Errorf("failed to start admin: %w", err)
	}
	return &Farm{logger: logger, admin: admin}, nil
}

// StartServer starts a server on a loopback port whose parity matches even,
// then waits until the server itself reports serving through the admin
// endpoint.
func (f *Farm) StartServer(ctx context.Context, even bool, b server.Behavior) (config.Address, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	s, err := f.startParity(ctx, even, b)
	if err != nil {
		return config.Address{}, err
	}
	f.servers = append(f.servers, s)

	svc := server.ListenerService(s.Port())
	if err := server.WaitServing(ctx, f.admin.Addr().String(), svc, 5*time.Second); err != nil {
		return config.Address{}, fmt.Errorf("server %s failed to become ready: %w", s.Addr(), err)
	}

	return config.Address{Host: "127.0.0.1", Port: s.Port()}, nil
}

// startParity binds explicit ports: ephemeral binds on Linux only ever hand
// out one parity, so a free ephemeral port is only a starting point.
func (f *Farm) startParity(ctx context.Context, even bool, b server.Behavior) (*server.Server, error) {
	for i := 0; i < 50; i++ {
		base, err := DeadAddress()
		if err != nil {
			return nil, err
		}

		for _, port := range []int{base.Port, base.Port + 1, base.Port - 1} {
			if port <= 0 || port > 65535 || (port%2 == 0) != even {
				continue
			}
			addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
			s := server.New(addr, b, server.WithLogger(f.logger), server.WithHealth(f.admin))
			if err := s.Start(ctx); err != nil {
				f.logger.Debug("farm.bind_failed", "addr", addr, "error", err)
				continue
			}
			return s, nil
		}
	}
	return nil, fmt.Errorf("no free port with even=%t", even)
}

// DeadAddress returns a loopback address with nothing listening on it.
func DeadAddress() (config.Address, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return config.Address{}, err
	}
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()
	return config.Address{Host: "127.0.0.1", Port: port}, nil
}

// Stop stops every server and the admin endpoint.
func (f *Farm) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, s := range f.servers {
		s.Stop()
	}
	f.servers = nil
	f.admin.Stop()
}
