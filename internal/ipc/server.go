package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"
	"time"

	"voxtrace/internal/analysis"
	"voxtrace/internal/daemon"
	"voxtrace/internal/logging"
)

// ServerOptions configures the IPC server.
type ServerOptions struct {
	SocketPath string
	Daemon     *daemon.Daemon
	Logger     *slog.Logger
	// OnShutdown is invoked when a client requests daemon shutdown.
	OnShutdown func()
}

// Server accepts control connections over a unix socket.
type Server struct {
	socketPath string
	listener   net.Listener
	rpcServer  *rpc.Server
	logger     *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	closeOnce sync.Once
}

// NewServer binds the control socket and registers the RPC surface.
func NewServer(ctx context.Context, opts ServerOptions) (*Server, error) {
	if opts.SocketPath == "" {
		return nil, errors.New("ipc: socket path required")
	}
	if opts.Daemon == nil {
		return nil, errors.New("ipc: daemon required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "ipc")

	if err := os.Remove(opts.SocketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("remove stale socket: %w", err)
	}
	listener, err := net.Listen("unix", opts.SocketPath)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", opts.SocketPath, err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	srv := &Server{
		socketPath: opts.SocketPath,
		listener:   listener,
		rpcServer:  rpc.NewServer(),
		logger:     logger,
		ctx:        serverCtx,
		cancel:     cancel,
	}
	svc := &service{daemon: opts.Daemon, onShutdown: opts.OnShutdown}
	if err := srv.rpcServer.RegisterName("Voxtrace", svc); err != nil {
		cancel()
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}
	return srv, nil
}

// SocketPath returns the bound socket path.
func (s *Server) SocketPath() string { return s.socketPath }

// Serve begins accepting connections. It returns immediately; connection
// handling happens on server-owned goroutines until Close.
func (s *Server) Serve() {
	s.logger.Debug("control socket listening", logging.String("socket", s.socketPath))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				s.logger.Warn("accept failed", logging.Error(err))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops accepting connections and removes the socket file.
func (s *Server) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.cancel()
		err = s.listener.Close()
		s.wg.Wait()
		if removeErr := os.Remove(s.socketPath); removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) && err == nil {
			err = removeErr
		}
	})
	return err
}

type service struct {
	daemon     *daemon.Daemon
	onShutdown func()
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	st := s.daemon.Status()
	stats := make(map[string]int, len(st.JobCounts))
	for state, count := range st.JobCounts {
		stats[string(state)] = count
	}
	pollers := make([]PollerStatus, 0, len(st.Pollers))
	for _, snap := range st.Pollers {
		pollers = append(pollers, fromSnapshot(snap))
	}
	*resp = StatusResponse{
		Running:     st.Running,
		PID:         st.PID,
		StartedAt:   st.StartedAt.Format(time.RFC3339),
		SocketPath:  st.SocketPath,
		LockPath:    st.LockPath,
		ArchivePath: st.ArchivePath,
		JobStats:    stats,
		Pollers:     pollers,
	}
	return nil
}

func (s *service) Submit(req SubmitRequest, resp *SubmitResponse) error {
	if req.Path == "" {
		return errors.New("recording path required")
	}
	job, err := s.daemon.Tracker().Submit(context.Background(), req.Path)
	if err != nil {
		return err
	}
	resp.Job = FromJob(job)
	return nil
}

func (s *service) Track(req TrackRequest, resp *TrackResponse) error {
	if req.JobID == "" {
		return errors.New("job id required")
	}
	job, created := s.daemon.Tracker().Track(req.JobID)
	resp.Job = FromJob(job)
	resp.Created = created
	return nil
}

func (s *service) List(req ListRequest, resp *ListResponse) error {
	var filter map[analysis.LifecycleState]bool
	if len(req.States) > 0 {
		filter = make(map[analysis.LifecycleState]bool, len(req.States))
		for _, raw := range req.States {
			state, ok := analysis.ParseState(raw)
			if !ok {
				return fmt.Errorf("unknown state %q", raw)
			}
			filter[state] = true
		}
	}
	for _, job := range s.daemon.Tracker().Jobs() {
		if filter != nil && !filter[job.State] {
			continue
		}
		resp.Jobs = append(resp.Jobs, FromJob(job))
	}
	return nil
}

func (s *service) Describe(req DescribeRequest, resp *DescribeResponse) error {
	job, ok := s.daemon.Tracker().Job(req.JobID)
	if !ok {
		return fmt.Errorf("job %s is not tracked", req.JobID)
	}
	resp.Job = FromJob(job)
	return nil
}

func (s *service) Cancel(req CancelRequest, resp *CancelResponse) error {
	if err := s.daemon.Tracker().Cancel(req.JobID); err != nil {
		return err
	}
	if job, ok := s.daemon.Tracker().Job(req.JobID); ok {
		resp.Job = FromJob(job)
	}
	return nil
}

func (s *service) Pause(req PauseRequest, _ *PauseResponse) error {
	s.daemon.Tracker().Pause(req.JobID)
	return nil
}

func (s *service) Resume(req ResumeRequest, _ *ResumeResponse) error {
	s.daemon.Tracker().Resume(req.JobID)
	return nil
}

func (s *service) Retry(req RetryRequest, resp *RetryResponse) error {
	if err := s.daemon.Tracker().Retry(context.Background(), req.JobID); err != nil {
		return err
	}
	if job, ok := s.daemon.Tracker().Job(req.JobID); ok {
		resp.Job = FromJob(job)
	}
	return nil
}

func (s *service) Remove(req RemoveRequest, _ *RemoveResponse) error {
	return s.daemon.Tracker().Remove(context.Background(), req.JobID, req.Purge)
}

func (s *service) History(req HistoryRequest, resp *HistoryResponse) error {
	entries, err := s.daemon.Tracker().History(context.Background(), req.Limit)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		resp.Entries = append(resp.Entries, fromArchiveEntry(entry))
	}
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	if err := s.daemon.Tracker().TestNotification(context.Background()); err != nil {
		resp.Sent = false
		resp.Message = err.Error()
		return nil
	}
	resp.Sent = true
	resp.Message = "test notification sent"
	return nil
}

func (s *service) Shutdown(_ ShutdownRequest, resp *ShutdownResponse) error {
	resp.Stopping = true
	if s.onShutdown != nil {
		go s.onShutdown()
	}
	return nil
}
