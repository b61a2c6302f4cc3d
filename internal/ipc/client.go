package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call("Squish.Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Submit enqueues a transcode job.
func (c *Client) Submit(mediaID, preset string, priority int) (*SubmitResponse, error) {
	var resp SubmitResponse
	req := SubmitRequest{MediaID: mediaID, Preset: preset, Priority: priority}
	if err := c.client.Call("Squish.Submit", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Cancel cancels a job.
func (c *Client) Cancel(id string) (*CancelResponse, error) {
	var resp CancelResponse
	if err := c.client.Call("Squish.Cancel", CancelRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Retry requeues a failed job.
func (c *Client) Retry(id string) (*RetryResponse, error) {
	var resp RetryResponse
	if err := c.client.Call("Squish.Retry", RetryRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Reorder changes a queued job's priority.
func (c *Client) Reorder(id string, priority int) (*ReorderResponse, error) {
	var resp ReorderResponse
	req := ReorderRequest{ID: id, Priority: priority}
	if err := c.client.Call("Squish.Reorder", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Pause suspends a running job.
func (c *Client) Pause(id string) (*PauseResponse, error) {
	var resp PauseResponse
	if err := c.client.Call("Squish.Pause", PauseRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Resume continues a paused job.
func (c *Client) Resume(id string) (*ResumeResponse, error) {
	var resp ResumeResponse
	if err := c.client.Call("Squish.Resume", ResumeRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// List returns jobs optionally filtered by statuses.
func (c *Client) List(statuses []string) (*ListResponse, error) {
	var resp ListResponse
	req := ListRequest{Statuses: statuses}
	if err := c.client.Call("Squish.List", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Describe returns details for a single job.
func (c *Client) Describe(id string) (*DescribeResponse, error) {
	var resp DescribeResponse
	if err := c.client.Call("Squish.Describe", DescribeRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RemoveJob deletes a job row.
func (c *Client) RemoveJob(id string) (*RemoveJobResponse, error) {
	var resp RemoveJobResponse
	if err := c.client.Call("Squish.RemoveJob", RemoveJobRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ClearFinished removes completed, failed, and cancelled jobs.
func (c *Client) ClearFinished() (*ClearFinishedResponse, error) {
	var resp ClearFinishedResponse
	if err := c.client.Call("Squish.ClearFinished", ClearFinishedRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Hardware returns the current capability snapshot.
func (c *Client) Hardware() (*HardwareResponse, error) {
	var resp HardwareResponse
	if err := c.client.Call("Squish.Hardware", HardwareRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RefreshHardware forces a capability re-probe.
func (c *Client) RefreshHardware() (*RefreshHardwareResponse, error) {
	var resp RefreshHardwareResponse
	if err := c.client.Call("Squish.RefreshHardware", RefreshHardwareRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Scan walks the media root for new files.
func (c *Client) Scan() (*ScanResponse, error) {
	var resp ScanResponse
	if err := c.client.Call("Squish.Scan", ScanRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AddFile ingests a single file into the library.
func (c *Client) AddFile(path string) (*AddFileResponse, error) {
	var resp AddFileResponse
	if err := c.client.Call("Squish.AddFile", AddFileRequest{Path: path}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// MediaList returns all library items.
func (c *Client) MediaList() (*MediaListResponse, error) {
	var resp MediaListResponse
	if err := c.client.Call("Squish.MediaList", MediaListRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Events polls the job feed journal from the given cursor.
func (c *Client) Events(cursor int64, limit int) (*EventsResponse, error) {
	var resp EventsResponse
	req := EventsRequest{Cursor: cursor, Limit: limit}
	if err := c.client.Call("Squish.Events", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// MediaRemove deletes a library item.
func (c *Client) MediaRemove(id string) (*MediaRemoveResponse, error) {
	var resp MediaRemoveResponse
	if err := c.client.Call("Squish.MediaRemove", MediaRemoveRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
