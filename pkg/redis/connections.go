package redis

import (
	"bufio"
	"net"
	"os"
	"strings"
	"time"

	"github.com/golang/glog"
	radix "github.com/mediocregopher/radix.v2/redis"
)

const (
	defaultClientTimeout = 2 * time.Second
	defaultClientName    = ""
)

// AdminConnectionsInterface interface representing the map of admin connections to redis cluster nodes
type AdminConnectionsInterface interface {
	// Add connect to the given address and
	// register the client connection to the map
	Add(addr string) error
	// Remove disconnect and remove the client connection from the map
	Remove(addr string)
	// Get returns a client connection for the given address,
	// connects if the connection is not in the map yet
	Get(addr string) (ClientInterface, error)
	// GetFirstAvailable returns the address and client connection of the first
	// node, in registration order, that a connection can be established to
	GetFirstAvailable() (string, ClientInterface, error)
	// GetAll returns a map of all clients per address
	GetAll() map[string]ClientInterface
	// Addrs returns the registered addresses, in registration order
	Addrs() []string
	// Reconnect force a reconnection on the given address
	// if the address is not part of the map, act like Add
	Reconnect(addr string) error
	// AddAll connect to the given list of addresses and
	// register them in the map
	// fail silently
	AddAll(addrs []string)
	// ValidateResp check the redis resp, eventually reconnect on connection error
	// in case of error, return a ServerError carrying the cause
	ValidateResp(resp *radix.Resp, addr, errMessage string) error
	// ValidatePipeResp wait for all answers in the pipe and validate the response
	// in case of network issue clear the pipe and return
	// in case of error return false
	ValidatePipeResp(c ClientInterface, addr, errMessage string) bool
	// Reset close all connections and clear the connection map
	Reset()
}

// AdminConnections connection map for redis cluster.
// Each client connection is exclusively owned by this map; the tool is
// single-threaded so no locking is needed.
type AdminConnections struct {
	clients           map[string]ClientInterface
	addrs             []string
	connectionTimeout time.Duration
	commandsMapping   map[string]string
	clientName        string
}

// NewAdminConnections returns an instance of AdminConnectionsInterface
func NewAdminConnections(addrs []string, options *AdminOptions) AdminConnectionsInterface {
	cnx := &AdminConnections{
		clients:           make(map[string]ClientInterface),
		connectionTimeout: defaultClientTimeout,
		commandsMapping:   make(map[string]string),
		clientName:        defaultClientName,
	}
	if options != nil {
		if options.ConnectionTimeout != 0 {
			cnx.connectionTimeout = options.ConnectionTimeout
		}
		if _, err := os.Stat(options.RenameCommandsFile); err == nil {
			cnx.commandsMapping = buildCommandReplaceMapping(options.RenameCommandsFile)
		}
		cnx.clientName = options.ClientName
	}
	cnx.AddAll(addrs)
	return cnx
}

// Close used to close all possible resources instantiated by the Connections
func (cnx *AdminConnections) Close() {
	for _, c := range cnx.clients {
		c.Close()
	}
}

// Add connect to the given address and
// register the client connection to the map
func (cnx *AdminConnections) Add(addr string) error {
	_, err := cnx.Update(addr)
	return err
}

// Remove disconnect and remove the client connection from the map
func (cnx *AdminConnections) Remove(addr string) {
	if c, ok := cnx.clients[addr]; ok {
		c.Close()
		delete(cnx.clients, addr)
	}
	for i, a := range cnx.addrs {
		if a == addr {
			cnx.addrs = append(cnx.addrs[:i], cnx.addrs[i+1:]...)
			break
		}
	}
}

// Update returns a client connection for the given address,
// connects if the connection is not in the map yet
func (cnx *AdminConnections) Update(addr string) (ClientInterface, error) {
	// if already exist close the current connection
	if c, ok := cnx.clients[addr]; ok {
		c.Close()
	} else {
		cnx.addrs = append(cnx.addrs, addr)
	}

	c, err := cnx.connect(addr)
	if err == nil && c != nil {
		cnx.clients[addr] = c
	} else {
		glog.V(3).Infof("Cannot connect to %s", addr)
	}
	return c, err
}

// Get returns a client connection for the given address,
// connects if the connection is not in the map yet
func (cnx *AdminConnections) Get(addr string) (ClientInterface, error) {
	if c, ok := cnx.clients[addr]; ok {
		return c, nil
	}
	c, err := cnx.connect(addr)
	if err == nil && c != nil {
		cnx.addrs = append(cnx.addrs, addr)
		cnx.clients[addr] = c
	}
	return c, err
}

// GetFirstAvailable returns the address and client connection of the first
// node, in registration order, that a connection can be established to.
// The selection is deterministic so any single reachable node is enough
// and repeated runs pick the same one.
func (cnx *AdminConnections) GetFirstAvailable() (string, ClientInterface, error) {
	for _, addr := range cnx.addrs {
		c, ok := cnx.clients[addr]
		if !ok {
			var err error
			if c, err = cnx.connect(addr); err != nil || c == nil {
				glog.V(3).Infof("Cannot connect to %s", addr)
				continue
			}
			cnx.clients[addr] = c
		}
		return addr, c, nil
	}
	return "", nil, &ServerError{Addr: strings.Join(cnx.addrs, ","), Message: "unable to find a node to connect"}
}

// GetAll returns a map of all clients per address
func (cnx *AdminConnections) GetAll() map[string]ClientInterface {
	return cnx.clients
}

// Addrs returns the registered addresses, in registration order
func (cnx *AdminConnections) Addrs() []string {
	return cnx.addrs
}

// Reconnect force a reconnection on the given address
// if the address is not part of the map, act like Add
func (cnx *AdminConnections) Reconnect(addr string) error {
	glog.Infof("Reconnecting to %s", addr)
	cnx.Remove(addr)
	return cnx.Add(addr)
}

// AddAll connect to the given list of addresses and
// register them in the map
// fail silently
func (cnx *AdminConnections) AddAll(addrs []string) {
	for _, addr := range addrs {
		cnx.Add(addr)
	}
}

// Reset close all connections and clear the connection map
func (cnx *AdminConnections) Reset() {
	for _, c := range cnx.clients {
		c.Close()
	}
	cnx.clients = map[string]ClientInterface{}
	cnx.addrs = nil
}

// ValidateResp check the redis resp, eventually reconnect on connection error
// in case of error, return a ServerError carrying the cause
func (cnx *AdminConnections) ValidateResp(resp *radix.Resp, addr, errMessage string) error {
	if resp == nil {
		err := &ServerError{Addr: addr, Message: errMessage}
		glog.Errorf("%v", err)
		return err
	}
	if resp.Err != nil {
		cnx.handleError(addr, resp.Err)
		err := &ServerError{Addr: addr, Message: errMessage, Cause: resp.Err}
		glog.Errorf("%v", err)
		return err
	}
	return nil
}

// ValidatePipeResp wait for all answers in the pipe and validate the response
// in case of network issue clear the pipe and return
// in case of error, return false
func (cnx *AdminConnections) ValidatePipeResp(client ClientInterface, addr, errMessage string) bool {
	ok := true
	for {
		resp := client.PipeResp()
		if resp == nil {
			glog.Errorf("%s: unable to connect to node %s", errMessage, addr)
			return false
		}
		if resp.Err != nil {
			if resp.Err == radix.ErrPipelineEmpty {
				break
			}
			glog.Errorf("%s: unexpected error on node %s: %v", errMessage, addr, resp.Err)
			if cnx.handleError(addr, resp.Err) {
				// network error, no need to continue
				return false
			}
			ok = false
		}
	}

	return ok
}

// handleError handle a network error, reconnects if necessary, in that case, returns true
func (cnx *AdminConnections) handleError(addr string, err error) bool {
	if err == nil {
		return false
	} else if netError, ok := err.(net.Error); ok && netError.Timeout() {
		// timeout, reconnect
		cnx.Reconnect(addr)
		return true
	}
	switch err.(type) {
	case *net.OpError:
		// connection refused, reconnect
		cnx.Reconnect(addr)
		return true
	}
	return false
}

func (cnx *AdminConnections) connect(addr string) (ClientInterface, error) {
	c, err := NewClient(addr, cnx.connectionTimeout, cnx.commandsMapping)
	if err != nil {
		return nil, err
	}
	if cnx.clientName != "" {
		resp := c.Cmd("CLIENT", "SETNAME", cnx.clientName)
		return c, cnx.ValidateResp(resp, addr, "Unable to run command CLIENT SETNAME")
	}

	return c, nil
}

// buildCommandReplaceMapping reads the config file with the rename-command lines and builds a mapping
// bad lines are ignored silently
func buildCommandReplaceMapping(filePath string) map[string]string {
	mapping := make(map[string]string)
	file, err := os.Open(filePath)
	if err != nil {
		glog.Errorf("Cannot open %s: %v", filePath, err)
		return mapping
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		elems := strings.Fields(scanner.Text())
		if len(elems) == 3 && strings.ToLower(elems[0]) == "rename-command" {
			mapping[strings.ToUpper(elems[1])] = elems[2]
		}
	}

	if err := scanner.Err(); err != nil {
		glog.Errorf("Cannot parse %s: %v", filePath, err)
		return mapping
	}
	return mapping
}
