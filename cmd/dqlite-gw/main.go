// Command dqlite-gw runs one gateway node: a TCP accept loop that
// hands each connection its own gateway.Gateway, framed over
// internal/wire, plus an admin HTTP surface exposing Prometheus
// metrics and a liveness probe.
package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zcourts/dqlite/internal/cluster"
	"github.com/zcourts/dqlite/internal/cluster/solo"
	"github.com/zcourts/dqlite/internal/config"
	"github.com/zcourts/dqlite/internal/engine/sqlite"
	"github.com/zcourts/dqlite/internal/gateway"
	"github.com/zcourts/dqlite/internal/gwproto"
	"github.com/zcourts/dqlite/internal/logging"
	"github.com/zcourts/dqlite/internal/metrics"
	"github.com/zcourts/dqlite/internal/msgcodec"
	"github.com/zcourts/dqlite/internal/wire"
)

const version = "0.1.0"

func main() {
	cfg := config.DefineFlags()
	flag.Parse()

	logging.Setup()

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logging.PrintBanner(version, cfg.Addr)

	clu := solo.New(1, cfg.Addr)
	open := sqlite.OpenEngine(cfg.DataDir)

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		slog.Error("listen failed", "addr", cfg.Addr, "error", err)
		os.Exit(1)
	}
	slog.Info("gateway listening", "addr", cfg.Addr, "data_dir", cfg.DataDir)

	go serveAdmin(cfg.Addr)

	var nextClientID uint64
	for {
		conn, err := ln.Accept()
		if err != nil {
			slog.Error("accept failed", "error", err)
			continue
		}
		id := atomic.AddUint64(&nextClientID, 1)
		go serveConn(conn, id, clu, cfg, open)
	}
}

// serveAdmin runs the metrics/healthz HTTP surface on the port one
// above the gateway's listen port.
func serveAdmin(gatewayAddr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	addr := adminAddr(gatewayAddr)
	slog.Info("admin http listening", "addr", addr)
	handler := logging.HTTPMiddleware(metrics.HTTPMiddleware(mux))
	if err := http.ListenAndServe(addr, handler); err != nil {
		slog.Error("admin http server stopped", "error", err)
	}
}

// adminAddr derives the admin surface's listen address from the
// gateway's, one port higher, falling back to a fixed port when the
// gateway address can't be parsed (e.g. a Unix path or a non-numeric
// port).
func adminAddr(gatewayAddr string) string {
	host, port, err := net.SplitHostPort(gatewayAddr)
	if err != nil {
		return ":9191"
	}
	p, err := strconv.Atoi(port)
	if err != nil {
		return ":9191"
	}
	return net.JoinHostPort(host, strconv.Itoa(p+1))
}

// serveConn owns one client connection for its entire lifetime: one
// gateway.Gateway, one wire.Conn, and a blocking read loop that drives
// Handle for every decoded request. Flush writes the response inline
// and immediately reports it flushed — there is no asynchronous I/O
// layer beneath this transport, so the continuation always happens
// before Flush returns.
func serveConn(conn net.Conn, clientID uint64, clu cluster.Cluster, cfg *config.Config, open gateway.OpenFunc) {
	defer conn.Close()

	metrics.GatewaysActive.Inc()
	defer metrics.GatewaysActive.Dec()

	wc := wire.NewConn(conn, msgcodec.CompressionZstd)
	ctx := context.Background()

	var gw *gateway.Gateway
	gw = gateway.New(clu, cfg.GatewayOptions(), open, gateway.Callbacks{
		Flush: func(resp *gwproto.Response) {
			if err := wc.WriteValue(resp); err != nil {
				slog.Warn("write response failed", "client_id", clientID, "error", err)
			}
			gw.Flushed(ctx, resp)
		},
	})
	defer func() {
		if err := gw.Close(); err != nil {
			slog.Warn("close gateway failed", "client_id", clientID, "error", err)
		}
	}()

	slog.Debug("client connected", "client_id", clientID, "remote", conn.RemoteAddr())

	for {
		var req gwproto.Request
		if err := wc.ReadValue(&req); err != nil {
			if !errors.Is(err, io.EOF) {
				slog.Debug("client disconnected", "client_id", clientID, "error", err)
			}
			return
		}

		if err := gw.Handle(ctx, &req); err != nil {
			slog.Warn("request rejected", "client_id", clientID, "type", req.Type, "error", err)
		}
	}
}
