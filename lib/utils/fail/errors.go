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

package fail

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"google.golang.org/grpc/codes"

	"github.com/CS-SI/osplugin/lib/utils/data"
	"github.com/CS-SI/osplugin/lib/utils/strprocess"
)

// consequencer is the interface exposing the methods manipulating consequences
type consequencer interface {
	Consequences() []error      // returns a slice of consequences
	AddConsequence(error) Error // adds a consequence to an error
}

// causer is the interface exposing the methods manipulating cause
type causer interface {
	Cause() error     // returns the first immediate cause of an error
	RootCause() error // returns the root cause of an error
}

// Error defines the interface of a plugin error
type Error interface {
	data.Annotatable
	causer
	consequencer
	error

	UnformattedError() string
	GRPCCode() codes.Code
	IsNull() bool

	prependToMessage(string)
}

// errorCore is the implementation of interface Error
type errorCore struct {
	message      string
	cause        error
	annotations  data.Annotations
	consequences []error
	grpcCode     codes.Code
	lock         *sync.RWMutex
}

// newError creates a new failure report with a message 'message', a causer error 'causer' and a list of teardown problems 'consequences'
func newError(cause error, consequences []error, msg ...interface{}) *errorCore {
	if consequences == nil {
		consequences = []error{}
	}
	return &errorCore{
		message:      strings.TrimSpace(strprocess.FormatStrings(msg...)),
		cause:        cause,
		consequences: consequences,
		annotations:  make(data.Annotations),
		grpcCode:     codes.Unknown,
		lock:         &sync.RWMutex{},
	}
}

// IsNull tells if the instance is to be considered as null value
func (e *errorCore) IsNull() bool {
	if e == nil || e.lock == nil {
		return true
	}

	e.lock.RLock()
	defer e.lock.RUnlock()
	return e.message == "" && e.cause == nil && len(e.annotations) == 0
}

// Unwrap implements the Wrapper interface
func (e *errorCore) Unwrap() error {
	if e == nil || e.lock == nil {
		return nil
	}
	e.lock.RLock()
	defer e.lock.RUnlock()
	return e.cause
}

// Cause is just an accessor for internal e.cause
func (e *errorCore) Cause() error {
	return e.Unwrap()
}

// RootCause returns the initial error's cause
func (e *errorCore) RootCause() error {
	if e == nil {
		return nil
	}
	return RootCause(e)
}

// Annotations ...
func (e *errorCore) Annotations() data.Annotations {
	if e == nil || e.lock == nil {
		return data.Annotations{}
	}
	e.lock.RLock()
	defer e.lock.RUnlock()
	return e.annotations
}

// Annotation ...
func (e *errorCore) Annotation(key string) (data.Annotation, bool) {
	if e == nil || e.lock == nil {
		return nil, false
	}
	e.lock.RLock()
	defer e.lock.RUnlock()
	r, ok := e.annotations[key]
	return r, ok
}

// Annotate adds an Annotation (key-value) pair to current error 'e', using the key 'key' and the value 'value'
// satisfies interface data.Annotatable
func (e *errorCore) Annotate(key string, value data.Annotation) data.Annotatable {
	if e == nil || e.lock == nil {
		return e
	}
	e.lock.Lock()
	defer e.lock.Unlock()
	if e.annotations == nil {
		e.annotations = make(data.Annotations)
	}
	e.annotations[key] = value
	return e
}

// AddConsequence adds an error 'err' to the list of consequences
func (e *errorCore) AddConsequence(err error) Error {
	if err == nil || e == nil || e.lock == nil {
		return e
	}
	if casted, ok := err.(Error); ok && casted.IsNull() {
		return e
	}
	e.lock.Lock()
	defer e.lock.Unlock()
	e.consequences = append(e.consequences, err)
	return e
}

// Consequences returns the consequences of current error (detected teardown problems)
func (e *errorCore) Consequences() []error {
	if e == nil || e.lock == nil {
		return []error{}
	}
	e.lock.RLock()
	defer e.lock.RUnlock()
	return e.consequences
}

// Error returns a human-friendly error explanation
// satisfies interface error
func (e *errorCore) Error() string {
	if e == nil || e.lock == nil {
		return ""
	}
	e.lock.RLock()
	defer e.lock.RUnlock()

	msgFinal := e.message
	if e.cause != nil {
		var raw string
		if casted, ok := e.cause.(Error); ok {
			raw = casted.Error()
		} else {
			raw = e.cause.Error()
		}
		if raw != "" {
			if msgFinal != "" {
				msgFinal += ": "
			}
			msgFinal += raw
		}
	}

	if l := uint(len(e.consequences)); l > 0 {
		msgFinal += fmt.Sprintf("\nwith consequence%s:", strprocess.Plural(l))
		for _, c := range e.consequences {
			msgFinal += "\n- " + c.Error()
		}
	}

	if len(e.annotations) > 0 {
		if j, err := json.Marshal(e.annotations); err == nil {
			msgFinal += "\nwith annotations: " + string(j)
		}
	}
	return msgFinal
}

// UnformattedError returns the message of the error only, without cause, consequences nor annotations
func (e *errorCore) UnformattedError() string {
	if e == nil || e.lock == nil {
		return ""
	}
	e.lock.RLock()
	defer e.lock.RUnlock()
	return e.message
}

// GRPCCode returns the appropriate error code to use with gRPC
func (e *errorCore) GRPCCode() codes.Code {
	if e == nil || e.lock == nil {
		return codes.Unknown
	}
	e.lock.RLock()
	defer e.lock.RUnlock()
	return e.grpcCode
}

// prependToMessage adds 'msg' as prefix to current message of 'e'
// Note: do not call prependToMessage with an already set lock, it will deadlock
func (e *errorCore) prependToMessage(msg string) {
	if e == nil || e.lock == nil || msg == "" {
		return
	}
	e.lock.Lock()
	defer e.lock.Unlock()
	if e.message == "" {
		e.message = msg
		return
	}
	e.message = msg + ": " + e.message
}

// ErrUnqualified is a generic Error type that has no particular signification
type ErrUnqualified struct {
	*errorCore
}

// NewError creates a new failure report
func NewError(msg ...interface{}) Error {
	return &ErrUnqualified{errorCore: newError(nil, nil, msg...)}
}

// NewErrorWithCause creates a new failure report with a cause
func NewErrorWithCause(cause error, msg ...interface{}) Error {
	return &ErrUnqualified{errorCore: newError(cause, nil, msg...)}
}

// IsNull tells if the instance is null
func (e *ErrUnqualified) IsNull() bool {
	return e == nil || e.errorCore.IsNull()
}

// ErrTimeout defines a ErrTimeout error
type ErrTimeout struct {
	*errorCore
	dur time.Duration
}

// TimeoutError returns an ErrTimeout instance
func TimeoutError(cause error, dur time.Duration, msg ...interface{}) *ErrTimeout {
	message := strprocess.FormatStrings(msg...)
	if dur > 0 {
		limitMsg := fmt.Sprintf("(timeout: %s)", dur)
		if message != "" {
			message += " "
		}
		message += limitMsg
	}
	r := newError(cause, nil, message)
	r.grpcCode = codes.DeadlineExceeded
	return &ErrTimeout{errorCore: r, dur: dur}
}

// IsNull tells if the instance is null
func (e *ErrTimeout) IsNull() bool {
	return e == nil || e.errorCore.IsNull()
}

// ErrNotFound resource not found error
type ErrNotFound struct {
	*errorCore
}

// NotFoundError creates an ErrNotFound error
func NotFoundError(msg ...interface{}) *ErrNotFound {
	r := newError(nil, nil, msg...)
	r.grpcCode = codes.NotFound
	return &ErrNotFound{r}
}

// NotFoundErrorWithCause creates an ErrNotFound error initialized with cause 'cause'
func NotFoundErrorWithCause(cause error, msg ...interface{}) *ErrNotFound {
	r := newError(cause, nil, msg...)
	r.grpcCode = codes.NotFound
	return &ErrNotFound{r}
}

// IsNull tells if the instance is null
func (e *ErrNotFound) IsNull() bool {
	return e == nil || e.errorCore.IsNull()
}

// ErrNotAvailable resource not available error
type ErrNotAvailable struct {
	*errorCore
}

// NotAvailableError creates an ErrNotAvailable error
func NotAvailableError(msg ...interface{}) *ErrNotAvailable {
	r := newError(nil, nil, msg...)
	r.grpcCode = codes.Unavailable
	return &ErrNotAvailable{r}
}

// NotAvailableErrorWithCause creates an ErrNotAvailable error initialized with a cause 'cause'
func NotAvailableErrorWithCause(cause error, msg ...interface{}) *ErrNotAvailable {
	r := newError(cause, nil, msg...)
	r.grpcCode = codes.Unavailable
	return &ErrNotAvailable{r}
}

// IsNull tells if the instance is null
func (e *ErrNotAvailable) IsNull() bool {
	return e == nil || e.errorCore.IsNull()
}

// ErrDuplicate already exists error
type ErrDuplicate struct {
	*errorCore
}

// DuplicateError creates an ErrDuplicate error
func DuplicateError(msg ...interface{}) *ErrDuplicate {
	r := newError(nil, nil, msg...)
	r.grpcCode = codes.AlreadyExists
	return &ErrDuplicate{r}
}

// DuplicateErrorWithCause creates an ErrDuplicate error initialized with cause 'cause'
func DuplicateErrorWithCause(cause error, msg ...interface{}) *ErrDuplicate {
	r := newError(cause, nil, msg...)
	r.grpcCode = codes.AlreadyExists
	return &ErrDuplicate{r}
}

// IsNull tells if the instance is null
func (e *ErrDuplicate) IsNull() bool {
	return e == nil || e.errorCore.IsNull()
}

// ErrInvalidRequest ...
type ErrInvalidRequest struct {
	*errorCore
}

// InvalidRequestError creates an ErrInvalidRequest error
func InvalidRequestError(msg ...interface{}) *ErrInvalidRequest {
	r := newError(nil, nil, msg...)
	r.grpcCode = codes.InvalidArgument
	return &ErrInvalidRequest{r}
}

// InvalidRequestErrorWithCause creates an ErrInvalidRequest error initialized with cause 'cause'
func InvalidRequestErrorWithCause(cause error, msg ...interface{}) *ErrInvalidRequest {
	r := newError(cause, nil, msg...)
	r.grpcCode = codes.InvalidArgument
	return &ErrInvalidRequest{r}
}

// IsNull tells if the instance is null
func (e *ErrInvalidRequest) IsNull() bool {
	return e == nil || e.errorCore.IsNull()
}

// ErrSyntax ...
type ErrSyntax struct {
	*errorCore
}

// SyntaxError creates an ErrSyntax error
func SyntaxError(msg ...interface{}) *ErrSyntax {
	r := newError(nil, nil, msg...)
	r.grpcCode = codes.Internal
	return &ErrSyntax{r}
}

// IsNull tells if the instance is null
func (e *ErrSyntax) IsNull() bool {
	return e == nil || e.errorCore.IsNull()
}

// ErrNotAuthenticated when action is done without being authenticated first
type ErrNotAuthenticated struct {
	*errorCore
}

// NotAuthenticatedError creates an ErrNotAuthenticated error
func NotAuthenticatedError(msg ...interface{}) *ErrNotAuthenticated {
	r := newError(nil, nil, msg...)
	r.grpcCode = codes.Unauthenticated
	return &ErrNotAuthenticated{r}
}

// IsNull tells if the instance is null
func (e *ErrNotAuthenticated) IsNull() bool {
	return e == nil || e.errorCore.IsNull()
}

// ErrForbidden when action is not allowed.
type ErrForbidden struct {
	*errorCore
}

// ForbiddenError creates an ErrForbidden error
func ForbiddenError(msg ...interface{}) *ErrForbidden {
	r := newError(nil, nil, msg...)
	r.grpcCode = codes.PermissionDenied
	return &ErrForbidden{r}
}

// IsNull tells if the instance is null
func (e *ErrForbidden) IsNull() bool {
	return e == nil || e.errorCore.IsNull()
}

// ErrOverload when action cannot be honored because provider is overloaded (ie too many requests occurred in a given time).
type ErrOverload struct {
	*errorCore
}

// OverloadError creates an ErrOverload error
func OverloadError(msg ...interface{}) *ErrOverload {
	r := newError(nil, nil, msg...)
	r.grpcCode = codes.ResourceExhausted
	return &ErrOverload{r}
}

// IsNull tells if the instance is null
func (e *ErrOverload) IsNull() bool {
	return e == nil || e.errorCore.IsNull()
}

// ErrNotImplemented ...
type ErrNotImplemented struct {
	*errorCore
}

// NotImplementedError creates an ErrNotImplemented report
func NotImplementedError(msg ...interface{}) *ErrNotImplemented {
	r := newError(nil, nil, msg...)
	r.grpcCode = codes.Unimplemented
	return &ErrNotImplemented{r}
}

// IsNull tells if the instance is null
func (e *ErrNotImplemented) IsNull() bool {
	return e == nil || e.errorCore.IsNull()
}

// ErrRuntimePanic ...
type ErrRuntimePanic struct {
	*errorCore
}

// RuntimePanicError creates an ErrRuntimePanic error
func RuntimePanicError(pattern string, msg ...interface{}) *ErrRuntimePanic {
	r := newError(fmt.Errorf(pattern, msg...), nil, "runtime panic occurred")
	r.grpcCode = codes.Internal
	return &ErrRuntimePanic{r}
}

// IsNull tells if the instance is null
func (e *ErrRuntimePanic) IsNull() bool {
	return e == nil || e.errorCore.IsNull()
}

// ErrInvalidInstance has to be used when a method is called from an instance equal to nil
type ErrInvalidInstance struct {
	*errorCore
}

// InvalidInstanceError creates an ErrInvalidInstance error
func InvalidInstanceError() *ErrInvalidInstance {
	r := newError(nil, nil, "invalid instance: calling method from a nil pointer")
	r.grpcCode = codes.FailedPrecondition
	return &ErrInvalidInstance{r}
}

// IsNull tells if the instance is null
func (e *ErrInvalidInstance) IsNull() bool {
	return e == nil || e.errorCore.IsNull()
}

// ErrInvalidParameter ...
type ErrInvalidParameter struct {
	*errorCore
}

// InvalidParameterError creates an ErrInvalidParameter error
func InvalidParameterError(what string, why ...interface{}) *ErrInvalidParameter {
	r := newError(nil, nil, "invalid parameter '"+what+"': "+strprocess.FormatStrings(why...))
	r.grpcCode = codes.FailedPrecondition
	r.annotations["field"] = what
	return &ErrInvalidParameter{r}
}

// InvalidParameterCannotBeNilError is a specialized *ErrInvalidParameter with message "cannot be nil"
func InvalidParameterCannotBeNilError(what string) *ErrInvalidParameter {
	return InvalidParameterError(what, "cannot be nil")
}

// InvalidParameterCannotBeEmptyStringError is a specialized *ErrInvalidParameter with message "cannot be empty string"
func InvalidParameterCannotBeEmptyStringError(what string) *ErrInvalidParameter {
	return InvalidParameterError(what, "cannot be empty string")
}

// IsNull tells if the instance is null
func (e *ErrInvalidParameter) IsNull() bool {
	return e == nil || e.errorCore.IsNull()
}

// ErrInconsistent is used when data used is Inconsistent
type ErrInconsistent struct {
	*errorCore
}

// InconsistentError creates an ErrInconsistent error
func InconsistentError(msg ...interface{}) *ErrInconsistent {
	r := newError(nil, nil, msg...)
	r.grpcCode = codes.DataLoss
	return &ErrInconsistent{r}
}

// IsNull tells if the instance is null
func (e *ErrInconsistent) IsNull() bool {
	return e == nil || e.errorCore.IsNull()
}

// ErrExecution is used when code ends with failure
type ErrExecution struct {
	*errorCore
}

// ExecutionError creates an ErrExecution error
func ExecutionError(cause error, msg ...interface{}) *ErrExecution {
	r := newError(cause, nil, msg...)
	r.grpcCode = codes.Internal
	return &ErrExecution{r}
}

// IsNull tells if the instance is null
func (e *ErrExecution) IsNull() bool {
	return e == nil || e.errorCore.IsNull()
}

// ErrAborted is used to signal abortion
type ErrAborted struct {
	*errorCore
}

// AbortedError creates an ErrAborted error
// If err != nil, 'err' will become the cause of the abortion that can be retrieved using Error.Cause()
func AbortedError(err error, msg ...interface{}) *ErrAborted {
	if len(msg) == 0 {
		msg = []interface{}{"aborted"}
	}
	r := newError(err, nil, msg...)
	r.grpcCode = codes.Aborted
	return &ErrAborted{r}
}

// IsNull tells if the instance is null
func (e *ErrAborted) IsNull() bool {
	return e == nil || e.errorCore.IsNull()
}
