/*
 * Copyright 2018-2023, CS Systemes d'Information, http://csgroup.eu
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package debug

import (
	"context"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/sirupsen/logrus"

	"github.com/CS-SI/osplugin/lib/utils/strprocess"
	"github.com/CS-SI/osplugin/lib/utils/temporal"
	"github.com/CS-SI/osplugin/lib/utils/valid"
)

// Tracer ...
type Tracer interface {
	WithStopwatch() Tracer
	EnteringMessage() string
	Entering() Tracer
	ExitingMessage() string
	Exiting() Tracer
	TraceMessage(msg ...interface{}) string
	Trace(msg ...interface{}) Tracer
	TraceAsError(msg ...interface{}) Tracer
	Stopwatch() temporal.Stopwatch
}

type tracer struct {
	sig          string
	fileName     string
	funcName     string
	callerParams string
	enabled      bool
	inDone       bool
	outDone      bool
	sw           temporal.Stopwatch
}

type signatureKey struct{}

const (
	unknownFunction string = "<unknown function>"
	unknownFile     string = "<unknown file>"
	goingInPrefix   string = ">>> "
	goingOutPrefix  string = "<<< "
)

// WithSignature returns a copy of ctx carrying 'sig', used by tracers created from the returned context
func WithSignature(ctx context.Context, sig string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, signatureKey{}, sig)
}

// Signature returns the signature carried by ctx, or a new random one
func Signature(ctx context.Context) string {
	if ctx != nil {
		if sig, ok := ctx.Value(signatureKey{}).(string); ok && sig != "" {
			return sig
		}
	}
	nID, _ := uuid.NewV4() // nolint
	return nID.String()
}

// NewTracer creates a new Tracer instance
func NewTracer(ctx context.Context, enable bool, msg ...interface{}) Tracer {
	t := tracer{
		enabled: enable,
		sig:     "[" + Signature(ctx) + "]",
	}

	message := strprocess.FormatStrings(msg...)
	if message == "" {
		message = "()"
	}
	t.callerParams = strings.TrimSpace(message)

	if pc, file, _, ok := runtime.Caller(1); ok {
		t.fileName = trimSourcePath(file)
		if f := runtime.FuncForPC(pc); f != nil {
			t.funcName = filepath.Base(f.Name())
		}
	}
	if t.funcName == "" {
		t.funcName = unknownFunction
	}
	if t.fileName == "" {
		t.fileName = unknownFile
	}

	return &t
}

func trimSourcePath(file string) string {
	if idx := strings.Index(file, "/lib/"); idx >= 0 {
		return file[idx+1:]
	}
	if idx := strings.Index(file, "/cli/"); idx >= 0 {
		return file[idx+1:]
	}
	return filepath.Base(file)
}

// IsNull returns true if the instance is a null value of tracer
func (instance *tracer) IsNull() bool {
	return instance == nil || instance.callerParams == ""
}

// EnteringMessage returns the content of the message when entering the function
func (instance *tracer) EnteringMessage() string {
	if valid.IsNil(instance) {
		return ""
	}
	return goingInPrefix + instance.buildMessage(0)
}

// WithStopwatch will add a measure of duration between Entering and Exiting.
// Exiting will add the elapsed time in the log message (if it has to be logged...).
func (instance *tracer) WithStopwatch() Tracer {
	if instance.sw == nil {
		instance.sw = temporal.NewStopwatch()
	}
	return instance
}

// Entering logs the input message (signifying we are going in) using TRACE level
func (instance *tracer) Entering() Tracer {
	if !valid.IsNil(instance) && !instance.inDone {
		if instance.sw != nil {
			instance.sw.Start()
		}
		if instance.enabled {
			instance.inDone = true
			logrus.Trace(goingInPrefix + instance.buildMessage(0))
		}
	}
	return instance
}

// ExitingMessage returns the content of the message when exiting the function
func (instance *tracer) ExitingMessage() string {
	if valid.IsNil(instance) {
		return ""
	}
	return goingOutPrefix + instance.buildMessage(0)
}

// Exiting logs the output message (signifying we are going out) using TRACE level and adds duration if WithStopwatch() has been called.
func (instance *tracer) Exiting() Tracer {
	if !valid.IsNil(instance) && !instance.outDone {
		if instance.sw != nil {
			instance.sw.Stop()
		}
		if instance.enabled {
			instance.outDone = true
			msg := goingOutPrefix + instance.buildMessage(0)
			if instance.sw != nil {
				msg += " (duration: " + instance.sw.String() + ")"
			}
			logrus.Trace(msg)
		}
	}
	return instance
}

// buildMessage builds the message with available information from stack trace
func (instance *tracer) buildMessage(extra uint) string {
	if valid.IsNil(instance) {
		return ""
	}

	// this value makes sure the internal calls of this package do not interfere with the real caller we want to catch
	skipCallers := 2 + int(extra)

	message := instance.sig
	if _, _, line, ok := runtime.Caller(skipCallers); ok {
		message += " " + instance.funcName + instance.callerParams + " [" + instance.fileName + ":" + strconv.Itoa(line) + "]"
	}
	return message
}

// TraceMessage returns a string containing a trace message
func (instance *tracer) TraceMessage(msg ...interface{}) string {
	return "--- " + instance.buildMessage(1) + ": " + strprocess.FormatStrings(msg...)
}

// Trace traces a message
func (instance *tracer) Trace(msg ...interface{}) Tracer {
	if !valid.IsNil(instance) && instance.enabled {
		logrus.Trace("--- " + instance.buildMessage(0) + ": " + strprocess.FormatStrings(msg...))
	}
	return instance
}

// TraceAsError traces a message with error level
func (instance *tracer) TraceAsError(msg ...interface{}) Tracer {
	if !valid.IsNil(instance) && instance.enabled {
		logrus.Error("--- " + instance.buildMessage(0) + ": " + strprocess.FormatStrings(msg...))
	}
	return instance
}

// Stopwatch returns the stopwatch used (if a stopwatch has been asked with WithStopwatch() )
func (instance *tracer) Stopwatch() temporal.Stopwatch {
	if valid.IsNil(instance) || instance.sw == nil {
		return temporal.NewStopwatch()
	}
	return instance.sw
}
