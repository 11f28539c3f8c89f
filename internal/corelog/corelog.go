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

// Package corelog carries a single logr.Logger value through the core
// engine, built once at process start and threaded through explicitly
// rather than reached for as a global.
package corelog

import (
	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
)

// Logger is the structured logger every core package accepts, never
// constructs for itself.
type Logger = logr.Logger

// New builds a production Logger backed by zap, writing structured JSON.
func New() (Logger, error) {
	z, err := zap.NewProduction()
	if err != nil {
		return logr.Discard(), err
	}
	return zapr.NewLogger(z), nil
}

// Discard returns a Logger that drops everything, for tests and
// call-sites that haven't wired a real one yet.
func Discard() Logger { return logr.Discard() }
