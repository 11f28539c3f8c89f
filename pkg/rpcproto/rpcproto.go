/*
Copyright The CloudNativePG Contributors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package rpcproto declares the abstract remote-worker capability the
// core calls through (§1 scope note, §5): the orchestrator never shares
// the manifest object across processes, it hands a worker only the
// request arguments it needs and gets a response back. Wire framing,
// transport, and process management are explicitly out of scope — a
// real deployment plugs in whatever child-process pipe or network
// transport it likes behind Client/Server.
package rpcproto

import "context"

// Greeting is exchanged once at connection start; the client rejects a
// server whose Service or Version it does not recognize.
type Greeting struct {
	Name    string
	Service string
	Version string
}

// Well-known commands every worker implementation must accept.
const (
	CommandNoop = "noop"
	CommandExit = "exit"
)

// Request is one call a Client sends to a worker.
type Request struct {
	Command string
	Params  map[string]interface{}
}

// Response is a worker's reply to a Request. Err is non-nil when the
// worker reported a failure; Result carries the call's return value.
type Response struct {
	Result interface{}
	Err    error
}

// Client is the capability the core calls through to drive a remote
// worker. Call blocks until the worker replies or ctx is done; a
// context deadline exceeded during Call surfaces as the storage-layer
// FileReadError/FileWriteError kinds at the caller's discretion (§5
// cancellation policy), since rpcproto itself has no I/O of its own to
// attribute the timeout to.
type Client interface {
	Greeting(ctx context.Context) (Greeting, error)
	Call(ctx context.Context, req Request) (Response, error)
	Close(ctx context.Context) error
}

// Handler answers one Request on the worker side.
type Handler func(ctx context.Context, req Request) (Response, error)

// Server accepts requests and dispatches them to a Handler until ctx is
// canceled or the client sends CommandExit.
type Server interface {
	Serve(ctx context.Context, greeting Greeting, handler Handler) error
}
