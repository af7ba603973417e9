package ipc

import (
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

const dialTimeout = 2 * time.Second

// Client talks to a running daemon over its control socket.
type Client struct {
	rpcClient *rpc.Client
}

// Dial connects to the daemon control socket.
func Dial(socketPath string) (*Client, error) {
	conn, err := net.DialTimeout("unix", socketPath, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("connect to daemon at %s (is the daemon running?): %w", socketPath, err)
	}
	return &Client{rpcClient: rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))}, nil
}

// Close releases the daemon connection.
func (c *Client) Close() error {
	return c.rpcClient.Close()
}

func (c *Client) call(method string, req, resp any) error {
	return c.rpcClient.Call("Voxtrace."+method, req, resp)
}

// Status fetches daemon runtime information.
func (c *Client) Status() (StatusResponse, error) {
	var resp StatusResponse
	err := c.call("Status", StatusRequest{}, &resp)
	return resp, err
}

// Submit uploads a recording and starts tracking the resulting job.
func (c *Client) Submit(path string) (SubmitResponse, error) {
	var resp SubmitResponse
	err := c.call("Submit", SubmitRequest{Path: path}, &resp)
	return resp, err
}

// Track starts polling an already-submitted job id.
func (c *Client) Track(jobID string) (TrackResponse, error) {
	var resp TrackResponse
	err := c.call("Track", TrackRequest{JobID: jobID}, &resp)
	return resp, err
}

// List returns tracked jobs, optionally filtered by state.
func (c *Client) List(states []string) (ListResponse, error) {
	var resp ListResponse
	err := c.call("List", ListRequest{States: states}, &resp)
	return resp, err
}

// Describe fetches a single tracked job.
func (c *Client) Describe(jobID string) (DescribeResponse, error) {
	var resp DescribeResponse
	err := c.call("Describe", DescribeRequest{JobID: jobID}, &resp)
	return resp, err
}

// Cancel stops polling and marks the job cancelled.
func (c *Client) Cancel(jobID string) (CancelResponse, error) {
	var resp CancelResponse
	err := c.call("Cancel", CancelRequest{JobID: jobID}, &resp)
	return resp, err
}

// Pause suspends a job's polling schedule.
func (c *Client) Pause(jobID string) error {
	var resp PauseResponse
	return c.call("Pause", PauseRequest{JobID: jobID}, &resp)
}

// Resume re-arms a paused polling schedule.
func (c *Client) Resume(jobID string) error {
	var resp ResumeResponse
	return c.call("Resume", ResumeRequest{JobID: jobID}, &resp)
}

// Retry re-runs a failed analysis.
func (c *Client) Retry(jobID string) (RetryResponse, error) {
	var resp RetryResponse
	err := c.call("Retry", RetryRequest{JobID: jobID}, &resp)
	return resp, err
}

// Remove deletes a tracked job, optionally purging the backend copy.
func (c *Client) Remove(jobID string, purge bool) error {
	var resp RemoveResponse
	return c.call("Remove", RemoveRequest{JobID: jobID, Purge: purge}, &resp)
}

// History lists archived terminal jobs, newest first.
func (c *Client) History(limit int) (HistoryResponse, error) {
	var resp HistoryResponse
	err := c.call("History", HistoryRequest{Limit: limit}, &resp)
	return resp, err
}

// TestNotification asks the daemon to send a test notification.
func (c *Client) TestNotification() (TestNotificationResponse, error) {
	var resp TestNotificationResponse
	err := c.call("TestNotification", TestNotificationRequest{}, &resp)
	return resp, err
}

// Shutdown asks the daemon process to exit.
func (c *Client) Shutdown() (ShutdownResponse, error) {
	var resp ShutdownResponse
	err := c.call("Shutdown", ShutdownRequest{}, &resp)
	return resp, err
}
