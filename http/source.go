// Copyright 2017 Pilosa Corp.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions
// are met:
//
// 1. Redistributions of source code must retain the above copyright
// notice, this list of conditions and the following disclaimer.
//
// 2. Redistributions in binary form must reproduce the above copyright
// notice, this list of conditions and the following disclaimer in the
// documentation and/or other materials provided with the distribution.
//
// 3. Neither the name of the copyright holder nor the names of its
// contributors may be used to endorse or promote products derived
// from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND
// CONTRIBUTORS "AS IS" AND ANY EXPRESS OR IMPLIED WARRANTIES,
// INCLUDING, BUT NOT LIMITED TO, THE IMPLIED WARRANTIES OF
// MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE ARE
// DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR
// CONTRIBUTORS BE LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL,
// SPECIAL, EXEMPLARY, OR CONSEQUENTIAL DAMAGES (INCLUDING,
// BUT NOT LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR
// SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
// INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY,
// WHETHER IN CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING
// NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE
// OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH
// DAMAGE.

// Package http provides a dsk.Source which receives line delimited json
// examples in the bodies of HTTP POST requests.
package http

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/pilosa/dsk"
	dskjson "github.com/pilosa/dsk/json"
	"github.com/pkg/errors"
)

// JSONSource implements dsk.Source by listening for HTTP post requests and
// decoding examples from their bodies. A request is answered once every
// example in its body has been handed out by Record, or with 400 at the first
// example which can't be decoded.
type JSONSource struct {
	addr     string
	listener net.Listener
	server   *http.Server
	records  chan record
	log      dsk.Logger

	closeOnce sync.Once
	closed    chan struct{}
}

// WithAddr is an option for the JSONSource which causes it to bind to the given
// address.
func WithAddr(addr string) JSONSourceOption {
	return func(j *JSONSource) {
		j.addr = addr
	}
}

// WithListener is an option for JSONSource which causes it to use the given
// listener. It will infer the address from the listener.
func WithListener(l net.Listener) JSONSourceOption {
	return func(j *JSONSource) {
		j.listener = l
		j.addr = l.Addr().String()
	}
}

// WithBuffer is an option for JSONSource which modifies the length of the
// channel used to buffer received examples (while they are waiting to be
// retrieved by a call to Record).
func WithBuffer(n int) JSONSourceOption {
	return func(j *JSONSource) {
		if n > -1 {
			j.records = make(chan record, n)
		}
	}
}

// WithLogger sets the logger which reports rejected requests.
func WithLogger(l dsk.Logger) JSONSourceOption {
	return func(j *JSONSource) {
		j.log = l
	}
}

// JSONSourceOption is a functional option type for JSONSource.
type JSONSourceOption func(j *JSONSource)

// NewJSONSource creates a JSONSource - it takes JSONSourceOptions which modify
// its behavior.
func NewJSONSource(opts ...JSONSourceOption) (*JSONSource, error) {
	j := &JSONSource{
		records: make(chan record, 3),
		log:     dsk.NopLogger{},
		closed:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(j)
	}

	if j.listener == nil {
		var err error
		j.listener, err = net.Listen("tcp", j.addr)
		if err != nil {
			return nil, errors.Wrap(err, "listening")
		}
	}
	if tl, ok := j.listener.(*net.TCPListener); ok {
		j.listener = tcpKeepAliveListener{tl}
	}

	j.server = &http.Server{
		Addr:    j.addr,
		Handler: j,
	}
	go func() {
		err := j.server.Serve(j.listener)
		if err != nil && err != http.ErrServerClosed {
			j.send(record{err: errors.Wrap(err, "serving")})
			j.Close()
		}
	}()
	return j, nil
}

// Addr gets the address that the JSONSource is listening on.
func (j *JSONSource) Addr() string {
	if j.listener != nil {
		return j.listener.Addr().String()
	}
	return j.addr
}

// Location describes where the source listens, for provenance.
func (j *JSONSource) Location() string {
	return "http://" + j.Addr()
}

type record struct {
	ex  *dsk.Example
	err error
}

// send delivers rec unless the source has been closed. It reports whether rec
// was delivered.
func (j *JSONSource) send(rec record) bool {
	select {
	case j.records <- rec:
		return true
	case <-j.closed:
		return false
	}
}

// Record implements dsk.Source. It returns io.EOF once the source is closed.
func (j *JSONSource) Record() (*dsk.Example, error) {
	select {
	case rec := <-j.records:
		return rec.ex, rec.err
	case <-j.closed:
		return nil, io.EOF
	}
}

// Close stops accepting requests. Pending and future calls to Record return
// io.EOF.
func (j *JSONSource) Close() (err error) {
	j.closeOnce.Do(func() {
		close(j.closed)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err = j.server.Shutdown(ctx)
	})
	return errors.Wrap(err, "shutting down server")
}

// ServeHTTP implements http.Handler for JSONSource
func (j *JSONSource) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		err := errors.Errorf("unsupported method: %v", r.Method)
		j.log.Printf("rejecting request: %v", err)
		http.Error(w, err.Error(), http.StatusMethodNotAllowed)
		return
	}
	dec := json.NewDecoder(r.Body)
	for n := 0; ; n++ {
		var ej dskjson.ExampleJSON
		err := dec.Decode(&ej)
		if err == io.EOF {
			return
		}
		var ex *dsk.Example
		if err == nil {
			ex, err = ej.Example()
		}
		if err != nil {
			err = errors.Wrapf(err, "decoding example %d", n)
			j.log.Printf("rejecting request: %v", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if !j.send(record{ex: ex}) {
			http.Error(w, "source closed", http.StatusServiceUnavailable)
			return
		}
	}
}

// tcpKeepAliveListener is copied from net/http

type tcpKeepAliveListener struct {
	*net.TCPListener
}

func (ln tcpKeepAliveListener) Accept() (c net.Conn, err error) {
	tc, err := ln.AcceptTCP()
	if err != nil {
		return
	}
	tc.SetKeepAlive(true)
	tc.SetKeepAlivePeriod(3 * time.Minute)
	return tc, nil
}
