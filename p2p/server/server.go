package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
	"github.com/libp2p/go-msgio"
	dto "github.com/prometheus/client_model/go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/spacemeshos/go-nodeprops/codec"
	"github.com/spacemeshos/go-nodeprops/log"
)

var (
	// ErrNotConnected is returned when peer is not connected.
	ErrNotConnected = errors.New("peer is not connected")
	// ErrPeerResponseFailed raised if peer responded with an error.
	ErrPeerResponseFailed = errors.New("peer response failed")
)

// Opt is a type to configure a server.
type Opt func(s *Server)

// WithTimeout configures stream timeout.
func WithTimeout(timeout time.Duration) Opt {
	return func(s *Server) {
		s.timeout = timeout
	}
}

// WithLog configures logger for the server.
func WithLog(log *zap.Logger) Opt {
	return func(s *Server) {
		s.logger = log
	}
}

// WithRequestSizeLimit limits the size of accepted and sent requests.
func WithRequestSizeLimit(limit int) Opt {
	return func(s *Server) {
		s.requestLimit = limit
	}
}

// WithMetrics will enable metrics collection in the server.
func WithMetrics() Opt {
	return func(s *Server) {
		s.metrics = newTracker(s.protocol)
	}
}

// WithQueueSize parametrize number of message that will be kept in queue
// and eventually processed by server. Otherwise stream is closed immediately.
//
// Defaults to 100.
func WithQueueSize(size int) Opt {
	return func(s *Server) {
		s.queueSize = size
	}
}

// WithRequestsPerInterval parametrizes server rate limit to limit maximum amount of bandwidth
// that this handler can consume.
//
// Defaults to 100 requests per second.
func WithRequestsPerInterval(n int, interval time.Duration) Opt {
	return func(s *Server) {
		s.requestsPerInterval = n
		s.interval = interval
	}
}

// Handler is a handler to be defined by the application.
type Handler func(context.Context, []byte) ([]byte, error)

// ServerError is used by the client to represent an error returned by the server.
type ServerError struct {
	msg string
}

func NewServerError(msg string) *ServerError {
	return &ServerError{msg: msg}
}

func (*ServerError) Is(target error) bool {
	_, ok := target.(*ServerError)
	return ok
}

func (err *ServerError) Error() string {
	return fmt.Sprintf("peer error: %s", err.msg)
}

//go:generate scalegen -types Response

// Response is a server response.
type Response struct {
	Data  []byte `scale:"max=16777216"` // 16 MiB
	Error string `scale:"max=1024"`
}

// Server for the Handler.
type Server struct {
	logger              *zap.Logger
	protocol            string
	handler             Handler
	timeout             time.Duration
	requestLimit        int
	queueSize           int
	requestsPerInterval int
	interval            time.Duration

	metrics *tracker // metrics can be nil

	h host.Host
}

// New server for the handler. A server created with a nil handler can only be used as a client.
func New(h host.Host, proto string, handler Handler, opts ...Opt) *Server {
	srv := &Server{
		logger:              zap.NewNop(),
		protocol:            proto,
		handler:             handler,
		h:                   h,
		timeout:             10 * time.Second,
		requestLimit:        10 << 20,
		queueSize:           100,
		requestsPerInterval: 100,
		interval:            time.Second,
	}
	for _, opt := range opts {
		opt(srv)
	}
	return srv
}

type request struct {
	stream   network.Stream
	received time.Time
}

// Run accepts streams until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	limit := rate.NewLimiter(rate.Every(s.interval/time.Duration(s.requestsPerInterval)), s.requestsPerInterval)
	queue := make(chan request, s.queueSize)
	s.h.SetStreamHandler(protocol.ID(s.protocol), func(stream network.Stream) {
		select {
		case queue <- request{stream: stream, received: time.Now()}:
			s.metrics.enqueued(len(queue))
		default:
			s.metrics.dropped()
			stream.Reset()
		}
	})
	defer s.h.RemoveStreamHandler(protocol.ID(s.protocol))

	var eg errgroup.Group
	eg.SetLimit(s.queueSize)
	for {
		select {
		case <-ctx.Done():
			eg.Wait()
			return nil
		case req := <-queue:
			if err := limit.Wait(ctx); err != nil {
				req.stream.Reset()
				eg.Wait()
				return nil
			}
			eg.Go(func() error {
				ok := s.queueHandler(ctx, req.stream)
				s.metrics.served(ok, time.Since(req.received))
				return nil
			})
		}
	}
}

func (s *Server) queueHandler(ctx context.Context, stream network.Stream) bool {
	defer stream.Close()
	remote := stream.Conn().RemotePeer()
	logger := s.logger.With(
		zap.String("protocol", s.protocol),
		zap.Stringer("remotePeer", remote),
	)
	_ = stream.SetDeadline(time.Now().Add(s.timeout))
	rd := msgio.NewVarintReaderSize(stream, s.requestLimit)
	buf, err := rd.ReadMsg()
	if err != nil {
		logger.Debug("error reading request", zap.Error(err))
		stream.Reset()
		return false
	}
	start := time.Now()
	ctx = log.WithPeer(log.WithNewRequestID(ctx), remote.String())
	data, hErr := s.handler(ctx, buf)
	rd.ReleaseMsg(buf)
	var resp Response
	if hErr != nil {
		resp.Error = hErr.Error()
	} else {
		resp.Data = data
	}
	if err := writeResponse(stream, &resp); err != nil {
		logger.Debug("failed to write response", zap.Error(err))
		return false
	}
	if hErr != nil {
		logger.Debug("handler reported error", log.ZContext(ctx), zap.Error(hErr))
		return false
	}
	logger.Debug("protocol handler execution time",
		log.ZContext(ctx),
		zap.Duration("duration", time.Since(start)),
	)
	return true
}

// Request sends a binary request to the peer.
func (s *Server) Request(ctx context.Context, pid peer.ID, req []byte) ([]byte, error) {
	start := time.Now()
	data, err := s.request(ctx, pid, req)
	s.metrics.requested(err, time.Since(start))
	return data, err
}

func (s *Server) request(ctx context.Context, pid peer.ID, req []byte) ([]byte, error) {
	if len(req) > s.requestLimit {
		return nil, fmt.Errorf("request length (%d) is longer than limit %d", len(req), s.requestLimit)
	}
	if s.h.Network().Connectedness(pid) != network.Connected {
		return nil, fmt.Errorf("%w: %s", ErrNotConnected, pid)
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	stream, err := s.h.NewStream(network.WithNoDial(ctx, "existing connection"), pid, protocol.ID(s.protocol))
	if err != nil {
		return nil, fmt.Errorf("open stream to %s: %w", pid, err)
	}
	defer stream.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = stream.SetDeadline(deadline)
	}
	if err := msgio.NewVarintWriter(stream).WriteMsg(req); err != nil {
		stream.Reset()
		return nil, fmt.Errorf("peer %s address %s: %w", pid, stream.Conn().RemoteMultiaddr(), err)
	}
	if err := stream.CloseWrite(); err != nil {
		stream.Reset()
		return nil, fmt.Errorf("peer %s close write: %w", pid, err)
	}
	var resp Response
	if _, err := codec.DecodeFrom(bufio.NewReader(stream), &resp); err != nil {
		stream.Reset()
		return nil, fmt.Errorf("peer %s: %w", pid, err)
	}
	if resp.Error != "" {
		return nil, NewServerError(resp.Error)
	}
	return resp.Data, nil
}

// NumAcceptedRequests returns the number of accepted requests for this server.
// It is used for testing.
func (s *Server) NumAcceptedRequests() int {
	if s.metrics == nil {
		return -1
	}
	m := &dto.Metric{}
	if err := s.metrics.accepted.Write(m); err != nil {
		panic("failed to get metric: " + err.Error())
	}
	return int(m.Counter.GetValue())
}

func writeResponse(w io.Writer, resp *Response) error {
	wr := bufio.NewWriter(w)
	if _, err := codec.EncodeTo(wr, resp); err != nil {
		return fmt.Errorf("failed to write response (len %d err len %d): %w",
			len(resp.Data), len(resp.Error), err)
	}
	if err := wr.Flush(); err != nil {
		return fmt.Errorf("failed to write response (len %d err len %d): %w",
			len(resp.Data), len(resp.Error), err)
	}
	return nil
}
