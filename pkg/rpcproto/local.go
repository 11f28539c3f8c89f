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

package rpcproto

import "context"

// LocalClient drives a Handler directly, in the same process, with no
// transport in between. It is the single-node stand-in for a real
// child-process or network Client — used by tests and by a deployment
// that does not split work across worker processes.
type LocalClient struct {
	greeting Greeting
	handler  Handler
	closed   bool
}

// NewLocalClient returns a Client that calls handler in-process.
func NewLocalClient(greeting Greeting, handler Handler) *LocalClient {
	return &LocalClient{greeting: greeting, handler: handler}
}

// Greeting implements Client.
func (c *LocalClient) Greeting(_ context.Context) (Greeting, error) {
	return c.greeting, nil
}

// Call implements Client, honoring ctx cancellation before dispatching.
func (c *LocalClient) Call(ctx context.Context, req Request) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}
	if c.closed {
		return Response{}, context.Canceled
	}
	return c.handler(ctx, req)
}

// Close implements Client.
func (c *LocalClient) Close(_ context.Context) error {
	c.closed = true
	return nil
}
