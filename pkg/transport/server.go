/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package transport implements the UDP channels used to talk to the fleet:
// one bound socket per port, a receive goroutine feeding a FIFO queue, and
// unicast-based broadcast over the local /24.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/carverauto/dronefleet/pkg/logger"
	"github.com/carverauto/dronefleet/pkg/models"
)

const maxDatagramSize = 65536

// Options configures one transport channel.
type Options struct {
	Port        int
	BindAddress string
	// DecodeText decodes payloads as UTF-8, dropping invalid sequences.
	DecodeText bool
	// IndependentSend sends from a separate unbound socket instead of the
	// receive socket.
	IndependentSend bool
	// LocalIP overrides local address detection. It is used to drop
	// self-originated datagrams and to pick the /24 for Broadcast.
	LocalIP         netip.Addr
	ReadBufferBytes int
}

// Server owns one UDP channel.
type Server struct {
	opts     Options
	logger   logger.Logger
	recvConn *net.UDPConn
	sendConn *net.UDPConn
	localIP  netip.Addr
	port     int

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []models.Datagram
	pending bool
	closed  bool

	done chan struct{}
	err  error
}

// Open binds the receive socket and starts the receive loop.
func Open(opts Options, log logger.Logger) (*Server, error) {
	if opts.Port < 0 || opts.Port > 65535 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPort, opts.Port)
	}

	if opts.BindAddress == "" {
		opts.BindAddress = models.DefaultBindAddress
	}

	localIP := opts.LocalIP
	if !localIP.IsValid() {
		detected, err := LocalIPv4()
		if err != nil {
			log.Warn().Err(err).Msg("Local IPv4 not found, self-filter and broadcast disabled")
		}

		localIP = detected
	}

	lc := net.ListenConfig{Control: socketControl(opts.ReadBufferBytes)}

	pc, err := lc.ListenPacket(context.Background(), "udp4",
		net.JoinHostPort(opts.BindAddress, strconv.Itoa(opts.Port)))
	if err != nil {
		return nil, fmt.Errorf("failed to bind udp port %d: %w", opts.Port, err)
	}

	recvConn := pc.(*net.UDPConn)

	s := &Server{
		opts:     opts,
		logger:   log,
		recvConn: recvConn,
		sendConn: recvConn,
		localIP:  localIP,
		port:     recvConn.LocalAddr().(*net.UDPAddr).Port,
		done:     make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)

	if opts.IndependentSend {
		s.sendConn, err = net.ListenUDP("udp4", nil)
		if err != nil {
			_ = recvConn.Close()

			return nil, fmt.Errorf("failed to open send socket: %w", err)
		}
	}

	go s.receiveLoop()

	s.logger.Info().
		Int("port", s.Port()).
		Bool("decode_text", opts.DecodeText).
		Bool("independent_send", opts.IndependentSend).
		Str("local_ip", localIP.String()).
		Msg("Transport server started")

	return s, nil
}

// Port returns the bound local port.
func (s *Server) Port() int {
	return s.port
}

// LocalIP returns the address used for self-filtering and broadcast.
func (s *Server) LocalIP() netip.Addr {
	return s.localIP
}

func (s *Server) receiveLoop() {
	buf := make([]byte, maxDatagramSize)

	for {
		n, addr, err := s.recvConn.ReadFromUDPAddrPort(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				s.stop(ErrServerClosed)
				return
			}

			// ICMP port unreachable answers to broadcast probes surface here on some platforms.
			if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
				s.logger.Warn().Err(err).Msg("Receive error, probably an ICMP reply to a broadcast probe")
				continue
			}

			logger.Critical(s.logger).Err(err).Int("port", s.Port()).Msg("Receive loop exited unexpectedly")
			s.stop(fmt.Errorf("%w: %w", ErrReceiveStopped, err))

			return
		}

		s.enqueue(buf[:n], addr)
	}
}

func (s *Server) enqueue(payload []byte, addr netip.AddrPort) {
	if len(payload) == 0 {
		return
	}

	src := addr.Addr().Unmap()
	if s.localIP.IsValid() && src == s.localIP {
		return
	}

	d := models.Datagram{Addr: netip.AddrPortFrom(src, addr.Port())}

	if s.opts.DecodeText {
		d.Payload = []byte(strings.ToValidUTF8(string(payload), ""))
		d.Text = true
	} else {
		d.Payload = append([]byte(nil), payload...)
	}

	s.mu.Lock()
	s.queue = append(s.queue, d)
	s.pending = true
	s.cond.Broadcast()
	s.mu.Unlock()

	s.logger.Debug().Str("addr", d.Addr.String()).Int("bytes", len(d.Payload)).Msg("Received datagram")
}

func (s *Server) stop(err error) {
	s.mu.Lock()
	s.err = err
	s.closed = true
	s.cond.Broadcast()
	s.mu.Unlock()

	close(s.done)
}

// Done is closed when the receive loop has exited.
func (s *Server) Done() <-chan struct{} {
	return s.done
}

// Err reports why the receive loop exited. It is nil while the loop runs.
func (s *Server) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.err
}

// HasPending reports whether unread datagrams are queued.
func (s *Server) HasPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.pending
}

// Read pops the oldest queued datagram. Calling it on an empty queue is a
// caller bug; it is logged and Read then waits for the next datagram. A zero
// Datagram is returned if the server closes while waiting.
func (s *Server) Read() models.Datagram {
	d, _ := s.ReadContext(context.Background())

	return d
}

// ReadContext is Read with cancellation.
func (s *Server) ReadContext(ctx context.Context) (models.Datagram, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.queue) == 0 {
		s.logger.Error().Int("port", s.Port()).Msg("Read called on an empty queue, waiting for data")

		stop := context.AfterFunc(ctx, func() {
			s.mu.Lock()
			s.cond.Broadcast()
			s.mu.Unlock()
		})
		defer stop()

		for len(s.queue) == 0 {
			if s.closed {
				return models.Datagram{}, ErrServerClosed
			}

			if err := ctx.Err(); err != nil {
				return models.Datagram{}, err
			}

			s.cond.Wait()
		}
	}

	d := s.queue[0]
	s.queue[0] = models.Datagram{}
	s.queue = s.queue[1:]
	s.pending = len(s.queue) > 0

	return d, nil
}

// Send transmits d. Failures are logged; delivery is never guaranteed.
func (s *Server) Send(d models.Datagram) {
	s.send(d, true)
}

// SendText resolves host and sends text to host:port.
func (s *Server) SendText(text, host string, port int) {
	addr, err := net.ResolveUDPAddr("udp4", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		s.logger.Error().Err(err).Str("host", host).Int("port", port).Msg("Send failed, address did not resolve")
		return
	}

	s.Send(models.Datagram{Payload: []byte(text), Addr: addr.AddrPort(), Text: true})
}

func (s *Server) send(d models.Datagram, verbose bool) {
	if !d.Addr.IsValid() || d.Addr.Port() == 0 {
		s.logger.Error().Str("addr", d.Addr.String()).Msg("Send failed, invalid address")
		return
	}

	if _, err := s.sendConn.WriteToUDPAddrPort(d.Payload, d.Addr); err != nil {
		s.logger.Error().Err(err).Str("addr", d.Addr.String()).Msg("Send failed")
		return
	}

	if verbose {
		s.logger.Debug().Str("addr", d.Addr.String()).Str("payload", d.String()).Msg("Sent datagram")
	}
}

// Broadcast unicasts message to every host of the local /24 on port. The
// device firmware ignores subnet broadcast, so each host is addressed directly.
func (s *Server) Broadcast(message string, port int) {
	hosts, err := HostsInSlash24(s.localIP)
	if err != nil {
		s.logger.Error().Err(err).Str("message", message).Msg("Broadcast failed")
		return
	}

	payload := []byte(message)

	for _, host := range hosts {
		s.send(models.Datagram{Payload: payload, Addr: netip.AddrPortFrom(host, uint16(port)), Text: true}, false)
	}

	s.logger.Info().
		Str("message", message).
		Int("port", port).
		Int("hosts", len(hosts)).
		Msg("Broadcast sent")
}

// Close shuts both sockets. The receive loop exits with ErrServerClosed.
func (s *Server) Close() error {
	var errs []error

	if s.sendConn != s.recvConn {
		errs = append(errs, s.sendConn.Close())
	}

	errs = append(errs, s.recvConn.Close())

	<-s.done

	return errors.Join(errs...)
}
