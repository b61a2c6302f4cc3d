package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"

	"log/slog"

	"squish/internal/api"
	"squish/internal/daemon"
	"squish/internal/logging"
	"squish/internal/queue"
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logger, ctx: ctx}
	if err := rpcServer.RegisterName("Squish", srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		daemon:    d,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("ipc server listening", logging.String("socket", s.path))
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

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err),
		)
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) log() *slog.Logger {
	if s.logger == nil {
		return logging.NewNop()
	}
	return s.logger.With(logging.String(logging.FieldComponent, "ipc"))
}

// jobView resolves the media title for display; a lookup failure degrades to
// an untitled view rather than failing the call.
func (s *service) jobView(job *queue.Job) Job {
	title := ""
	if job != nil {
		if media, err := s.daemon.GetMedia(s.ctx, job.MediaID); err == nil && media != nil {
			title = media.Title
		}
	}
	return api.FromJob(job, title)
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status(s.ctx)
	resp.Running = status.Running
	resp.PID = status.PID
	resp.QueueDBPath = status.QueueDBPath
	resp.LockPath = status.LockFilePath
	resp.QueueStats = make(map[string]int, len(status.QueueStats))
	for k, v := range status.QueueStats {
		resp.QueueStats[string(k)] = v
	}
	resp.Hardware = api.FromSnapshot(status.Hardware)
	resp.Presets = s.daemon.PresetNames()
	return nil
}

func (s *service) Submit(req SubmitRequest, resp *SubmitResponse) error {
	s.log().Debug("job submit requested",
		logging.String(logging.FieldMediaID, req.MediaID),
		logging.String(logging.FieldPreset, req.Preset),
	)
	job, err := s.daemon.Scheduler().Submit(s.ctx, req.MediaID, req.Preset, req.Priority)
	if err != nil {
		return err
	}
	resp.Job = s.jobView(job)
	return nil
}

func (s *service) Cancel(req CancelRequest, resp *CancelResponse) error {
	s.log().Debug("job cancel requested", logging.String(logging.FieldJobID, req.ID))
	job, err := s.daemon.Scheduler().Cancel(s.ctx, req.ID)
	if err != nil {
		return err
	}
	resp.Job = s.jobView(job)
	return nil
}

func (s *service) Retry(req RetryRequest, resp *RetryResponse) error {
	s.log().Debug("job retry requested", logging.String(logging.FieldJobID, req.ID))
	job, err := s.daemon.Scheduler().Retry(s.ctx, req.ID)
	if err != nil {
		return err
	}
	resp.Job = s.jobView(job)
	return nil
}

func (s *service) Reorder(req ReorderRequest, resp *ReorderResponse) error {
	job, err := s.daemon.Scheduler().Reorder(s.ctx, req.ID, req.Priority)
	if err != nil {
		return err
	}
	resp.Job = s.jobView(job)
	return nil
}

func (s *service) Pause(req PauseRequest, resp *PauseResponse) error {
	job, err := s.daemon.Scheduler().Pause(s.ctx, req.ID)
	if err != nil {
		return err
	}
	resp.Job = s.jobView(job)
	return nil
}

func (s *service) Resume(req ResumeRequest, resp *ResumeResponse) error {
	job, err := s.daemon.Scheduler().Resume(s.ctx, req.ID)
	if err != nil {
		return err
	}
	resp.Job = s.jobView(job)
	return nil
}

func (s *service) List(req ListRequest, resp *ListResponse) error {
	statuses := make([]queue.Status, 0, len(req.Statuses))
	for _, status := range req.Statuses {
		parsed, ok := queue.ParseStatus(status)
		if !ok {
			continue
		}
		statuses = append(statuses, parsed)
	}
	jobs, err := s.daemon.Scheduler().List(s.ctx, statuses...)
	if err != nil {
		return err
	}
	resp.Jobs = make([]Job, 0, len(jobs))
	for _, job := range jobs {
		if job == nil {
			continue
		}
		resp.Jobs = append(resp.Jobs, s.jobView(job))
	}
	return nil
}

func (s *service) Describe(req DescribeRequest, resp *DescribeResponse) error {
	if req.ID == "" {
		return errors.New("describe requires a job id")
	}
	job, err := s.daemon.Scheduler().Get(s.ctx, req.ID)
	if err != nil {
		return err
	}
	if job == nil {
		return fmt.Errorf("job %s not found", req.ID)
	}
	resp.Job = s.jobView(job)
	return nil
}

func (s *service) RemoveJob(req RemoveJobRequest, resp *RemoveJobResponse) error {
	removed, err := s.daemon.RemoveJob(s.ctx, req.ID)
	if err != nil {
		return err
	}
	resp.Removed = removed
	return nil
}

func (s *service) ClearFinished(_ ClearFinishedRequest, resp *ClearFinishedResponse) error {
	removed, err := s.daemon.ClearFinished(s.ctx)
	if err != nil {
		return err
	}
	resp.Removed = removed
	s.log().Info("finished jobs cleared", logging.Int64("removed_count", removed))
	return nil
}

func (s *service) Hardware(_ HardwareRequest, resp *HardwareResponse) error {
	resp.Report = api.FromSnapshot(s.daemon.Scheduler().HardwareReport(s.ctx))
	return nil
}

func (s *service) RefreshHardware(_ RefreshHardwareRequest, resp *RefreshHardwareResponse) error {
	s.log().Debug("hardware re-probe requested")
	resp.Report = api.FromSnapshot(s.daemon.Scheduler().RefreshHardware(s.ctx))
	return nil
}

func (s *service) Scan(_ ScanRequest, resp *ScanResponse) error {
	s.log().Debug("library scan requested")
	added, err := s.daemon.ScanLibrary(s.ctx)
	if err != nil {
		return err
	}
	resp.Added = added
	s.log().Info("library scan finished", logging.Int("added_count", added))
	return nil
}

func (s *service) AddFile(req AddFileRequest, resp *AddFileResponse) error {
	item, err := s.daemon.AddFile(s.ctx, req.Path)
	if err != nil {
		return err
	}
	resp.Media = api.FromMediaItem(item)
	return nil
}

func (s *service) MediaList(_ MediaListRequest, resp *MediaListResponse) error {
	items, err := s.daemon.ListMedia(s.ctx)
	if err != nil {
		return err
	}
	resp.Items = make([]Media, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		resp.Items = append(resp.Items, api.FromMediaItem(item))
	}
	return nil
}

func (s *service) Events(req EventsRequest, resp *EventsResponse) error {
	entries, cursor := s.daemon.Events(req.Cursor, req.Limit)
	resp.Events = make([]Event, 0, len(entries))
	for _, entry := range entries {
		resp.Events = append(resp.Events, Event{Seq: entry.Seq, JobEvent: api.FromEvent(entry.Event)})
	}
	resp.Cursor = cursor
	return nil
}

func (s *service) MediaRemove(req MediaRemoveRequest, resp *MediaRemoveResponse) error {
	removed, err := s.daemon.RemoveMedia(s.ctx, req.ID)
	if err != nil {
		return err
	}
	resp.Removed = removed
	return nil
}
