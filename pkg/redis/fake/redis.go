package fake

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// RedisServer fake redis server answering scripted responses.
// Responses are registered per flattened request string ("CLUSTER NODES",
// "MIGRATE 127.0.0.1 7001 key1 0 1000", ...) and consumed in push order; a
// request with no remaining scripted response is answered with a RESP error.
type RedisServer struct {
	sync.Mutex
	Ln        net.Listener
	Responses map[string][]interface{}
	test      *testing.T
}

// NewRedisServer returns new fake RedisServer instance listening on a random local port
func NewRedisServer(t *testing.T) *RedisServer {
	ln, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		t.Fatal("Unable to create a fake redis server, err:", err)
		return nil
	}

	srv := &RedisServer{
		Responses: make(map[string][]interface{}),
		Ln:        ln,
		test:      t,
	}

	go srv.serve()

	return srv
}

// Close possible resources
func (r *RedisServer) Close() {
	r.Ln.Close()
}

// GetHostPort return the host:port address of the fake server
func (r *RedisServer) GetHostPort() string {
	return r.Ln.Addr().String()
}

// PushResponse add a response for a specific request
func (r *RedisServer) PushResponse(rq string, response interface{}) {
	r.Lock()
	defer r.Unlock()
	r.Responses[rq] = append(r.Responses[rq], response)
}

func (r *RedisServer) popResponse(rq string) interface{} {
	r.Lock()
	defer r.Unlock()
	list := r.Responses[rq]
	if len(list) != 0 {
		val := list[0]
		r.Responses[rq] = list[1:]
		return val
	}
	return fmt.Errorf("fake.RedisServer: cannot map request '%s' to registered response", rq)
}

func (r *RedisServer) serve() {
	for {
		conn, err := r.Ln.Accept()
		if err != nil {
			return
		}
		go r.handleConnection(conn)
	}
}

func (r *RedisServer) handleConnection(conn net.Conn) {
	defer conn.Close()
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if err != nil || n == 0 {
			return
		}
		for _, rq := range decodeRequests(buf[0:n]) {
			if err := writeResponse(conn, r.popResponse(rq)); err != nil {
				return
			}
		}
	}
}

// decodeRequests flattens the RESP requests of a read into space-joined
// command strings. Does not handle arrays of arrays.
func decodeRequests(buf []byte) []string {
	requests := []string{}
	words := []string{}

	scanner := bufio.NewScanner(bytes.NewReader(buf))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "*") {
			if len(words) != 0 {
				// new command starting
				requests = append(requests, strings.Join(words, " "))
				words = []string{}
			}
			continue
		}
		if strings.HasPrefix(line, "$") {
			// next string size
			continue
		}
		words = append(words, line)
	}
	requests = append(requests, strings.Join(words, " "))

	return requests
}

func writeResponse(conn io.Writer, response interface{}) error {
	buf := &bytes.Buffer{}
	if err := encodeResp(buf, response); err != nil {
		return err
	}
	_, err := buf.WriteTo(conn)
	return err
}

func encodeResp(w *bytes.Buffer, response interface{}) error {
	switch v := response.(type) {
	case nil:
		w.WriteString("$-1\r\n")
	case error:
		w.WriteString("-" + v.Error() + "\r\n")
	case int:
		w.WriteString(":" + strconv.Itoa(v) + "\r\n")
	case int64:
		w.WriteString(":" + strconv.FormatInt(v, 10) + "\r\n")
	case string:
		w.WriteString("$" + strconv.Itoa(len(v)) + "\r\n" + v + "\r\n")
	case []byte:
		w.WriteString("$" + strconv.Itoa(len(v)) + "\r\n")
		w.Write(v)
		w.WriteString("\r\n")
	case []string:
		w.WriteString("*" + strconv.Itoa(len(v)) + "\r\n")
		for _, item := range v {
			if err := encodeResp(w, item); err != nil {
				return err
			}
		}
	case []interface{}:
		w.WriteString("*" + strconv.Itoa(len(v)) + "\r\n")
		for _, item := range v {
			if err := encodeResp(w, item); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("fake.RedisServer: cannot encode response of type %T", response)
	}
	return nil
}
