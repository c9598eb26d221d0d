/*************************************************************************
 * Copyright 2019 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package httpd drives the request lifecycle: the TCP accept loop, the
// per-connection worker pool, the dispatch table, and the shared access log.
package httpd

import (
	"context"
	"errors"
	"net"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/DavidBittner/http-webserver/httpd/response"
	"github.com/DavidBittner/http-webserver/httpd/response/cgi"
	"github.com/DavidBittner/http-webserver/wslog"
)

const defaultMaxConnections int64 = 128

var (
	ErrNoRoot     = errors.New("no document root configured")
	ErrNoListener = errors.New("server is not listening")
)

// ServerConfig is everything the connection handlers need, resolved and
// validated by the config loader before the server comes up.
type ServerConfig struct {
	BindString     string
	Root           string
	TemplateDir    string
	Indexes        []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxRequestSize int64
	MaxConnections int64
	Redirects      response.RuleSet
	AuthFileName   string
	AuthPrivateKey string
	Server         string //Server header / SERVER_SOFTWARE value
	ServerName     string //SERVER_NAME value
}

// Server owns the listener and the worker pool.  One worker goroutine runs
// per accepted connection, bounded by a weighted semaphore.
type Server struct {
	cfg       ServerConfig
	lg        *wslog.Logger
	lst       net.Listener
	port      uint16
	sem       *semaphore.Weighted
	wg        sync.WaitGroup
	accessLog *AccessLog
	templates *response.TemplateStore

	mtx    sync.Mutex
	closed bool
}

// NewServer validates the configuration and binds the listener.
func NewServer(cfg ServerConfig, lg *wslog.Logger) (s *Server, err error) {
	if cfg.Root == `` {
		return nil, ErrNoRoot
	}
	if cfg.MaxConnections <= 0 {
		cfg.MaxConnections = defaultMaxConnections
	}
	if lg == nil {
		lg = wslog.NewDiscardLogger()
	}
	lst, err := net.Listen(`tcp`, cfg.BindString)
	if err != nil {
		return nil, err
	}
	var port uint16
	if _, pstr, perr := net.SplitHostPort(lst.Addr().String()); perr == nil {
		if pv, perr := strconv.ParseUint(pstr, 10, 16); perr == nil {
			port = uint16(pv)
		}
	}
	s = &Server{
		cfg:       cfg,
		lg:        lg,
		lst:       lst,
		port:      port,
		sem:       semaphore.NewWeighted(cfg.MaxConnections),
		accessLog: NewAccessLog(),
	}
	if cfg.TemplateDir != `` {
		s.templates = response.NewTemplateStore(cfg.TemplateDir)
	}
	return
}

// Addr returns the bound listener address.
func (s *Server) Addr() net.Addr {
	if s.lst == nil {
		return nil
	}
	return s.lst.Addr()
}

// AccessLog exposes the shared entry list.
func (s *Server) AccessLog() *AccessLog {
	return s.accessLog
}

// builderFor assembles the per-connection response builder; only the CGI
// delegate differs between connections.
func (s *Server) builderFor(remote string) response.Builder {
	return response.Builder{
		Root:      s.cfg.Root,
		Indexes:   s.cfg.Indexes,
		Redirects: s.cfg.Redirects,
		Templates: s.templates,
		Server:    s.cfg.Server,
		Lg:        s.lg,
		CGI: &cgi.Handler{
			Root:   s.cfg.Root,
			Port:   s.port,
			Server: s.cfg.Server,
			Name:   s.cfg.ServerName,
			Remote: remote,
			Lg:     s.lg,
		},
	}
}

// Serve runs the accept loop until Close.  Each connection gets a dedicated
// worker; the semaphore bounds how many run at once.
func (s *Server) Serve() error {
	if s.lst == nil {
		return ErrNoListener
	}
	for {
		c, err := s.lst.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				break
			}
			s.lg.Warn("accept failure", wslog.KVErr(err))
			continue
		}
		if err = s.sem.Acquire(context.Background(), 1); err != nil {
			c.Close()
			continue
		}
		s.wg.Add(1)
		go func(c net.Conn) {
			defer s.wg.Done()
			defer s.sem.Release(1)
			newConnHandler(s, c).run()
		}(c)
	}
	s.wg.Wait()
	return nil
}

// Close shuts the listener down and waits for in-flight workers.
func (s *Server) Close() error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	err := s.lst.Close()
	s.wg.Wait()
	return err
}
