package redis

import (
	"strings"
	"time"

	radix "github.com/mediocregopher/radix.v2/redis"
)

// ClientInterface redis client interface
type ClientInterface interface {
	// Close closes the connection.
	Close() error

	// Cmd calls the given Redis command.
	Cmd(cmd string, args ...interface{}) *radix.Resp

	// PipeAppend adds the given call to the pipeline queue.
	// Use PipeResp() to read the response.
	PipeAppend(cmd string, args ...interface{})

	// PipeResp returns the reply for the next request in the pipeline queue. Err
	// with ErrPipelineEmpty is returned if the pipeline queue is empty.
	PipeResp() *radix.Resp

	// PipeClear clears the contents of the current pipeline queue, both commands
	// queued by PipeAppend which have yet to be sent and responses which have yet
	// to be retrieved through PipeResp. The first returned int will be the number
	// of pending commands dropped, the second will be the number of pending
	// responses dropped
	PipeClear() (int, int)
}

// Client structure representing a client connection to redis
type Client struct {
	commandsMapping map[string]string
	client          *radix.Client
}

// NewClient build a client connection and connect to a redis address
func NewClient(addr string, cnxTimeout time.Duration, commandsMapping map[string]string) (ClientInterface, error) {
	client, err := radix.DialTimeout("tcp", addr, cnxTimeout)
	if err != nil {
		return nil, err
	}

	return &Client{
		client:          client,
		commandsMapping: commandsMapping,
	}, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// Cmd calls the given Redis command.
func (c *Client) Cmd(cmd string, args ...interface{}) *radix.Resp {
	return c.client.Cmd(c.getCommand(cmd), args...)
}

// PipeAppend adds the given call to the pipeline queue.
func (c *Client) PipeAppend(cmd string, args ...interface{}) {
	c.client.PipeAppend(c.getCommand(cmd), args...)
}

// PipeResp returns the reply for the next request in the pipeline queue.
func (c *Client) PipeResp() *radix.Resp {
	return c.client.PipeResp()
}

// PipeClear clears the contents of the current pipeline queue.
func (c *Client) PipeClear() (int, int) {
	return c.client.PipeClear()
}

// getCommand returns the command to send to the server, after applying the
// rename-command mapping configured on hardened deployments
func (c *Client) getCommand(cmd string) string {
	upperCmd := strings.ToUpper(cmd)
	if renamed, found := c.commandsMapping[upperCmd]; found {
		return renamed
	}
	return upperCmd
}
