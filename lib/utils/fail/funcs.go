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
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"

	"github.com/CS-SI/osplugin/lib/utils/strprocess"
)

// AddConsequence adds an error 'cons' to the list of consequences of 'err'
func AddConsequence(err error, cons error) error {
	if err != nil {
		conseq, ok := err.(consequencer)
		if ok {
			if cons != nil {
				return conseq.AddConsequence(cons)
			}
			return err
		}
		if cons != nil {
			logrus.Errorf("trying to add error [%s] to existing error [%s] but failed", cons, err)
		}
	}
	return err
}

// Consequences returns the list of consequences
func Consequences(err error) []error {
	if err != nil {
		if conseq, ok := err.(consequencer); ok {
			return conseq.Consequences()
		}
	}
	return []error{}
}

// Wrap creates a new error with a message 'msg' and a cause error 'cause'
func Wrap(cause error, msg ...interface{}) Error {
	if cause == nil {
		return nil
	}
	newErr := newError(cause, nil, msg...)
	if casted, ok := cause.(Error); ok {
		newErr.grpcCode = casted.GRPCCode()
	}
	return &ErrUnqualified{errorCore: newErr}
}

// Cause returns the direct cause of an error if it implements the causer interface and that cause is valid,
// or returns the direct cause
func Cause(err error) (resp error) {
	if casted, ok := err.(causer); ok {
		if c := casted.Cause(); c != nil {
			return c
		}
	}
	return err
}

// RootCause follows the chain of causes and returns the last valid cause found
func RootCause(err error) (resp error) {
	resp = err
	for err != nil {
		cause, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = cause.Unwrap()
		if err != nil {
			resp = err
		}
	}
	return resp
}

// ConvertError converts an error to a fail.Error
func ConvertError(err error) Error {
	if err == nil {
		return nil
	}
	if casted, ok := err.(Error); ok {
		return casted
	}
	return NewErrorWithCause(err)
}

// Prepend adds a prefix to the message of 'err' and returns it
func Prepend(err Error, msg ...interface{}) Error {
	if err == nil || err.IsNull() {
		return err
	}
	err.prependToMessage(strprocess.FormatStrings(msg...))
	return err
}

// Code returns the gRPC code carried by 'err', codes.Unknown if none
func Code(err error) codes.Code {
	var casted Error
	if errors.As(err, &casted) {
		return casted.GRPCCode()
	}
	return codes.Unknown
}

// Is tells if 'err' or one of its causes is of the same type than 'target'
func Is[T error](err error) bool {
	var target T
	return errors.As(err, &target)
}

// OnPanic captures panic error and fill the error pointer with a ErrRuntimePanic.
// Must be used with defer: defer fail.OnPanic(&err)
func OnPanic(err interface{}) {
	if x := recover(); x != nil {
		stack := make([]byte, 4096)
		n := runtime.Stack(stack, false)
		panicErr := RuntimePanicError("runtime panic occurred: %+v\n%s", x, string(stack[:n]))
		switch v := err.(type) {
		case *Error:
			if v != nil {
				if *v != nil {
					_ = (*v).AddConsequence(panicErr)
				} else {
					*v = panicErr
				}
			} else {
				logrus.Error(panicErr.Error())
			}
		case *error:
			if v != nil {
				if *v != nil {
					*v = AddConsequence(*v, panicErr)
				} else {
					*v = panicErr
				}
			} else {
				logrus.Error(panicErr.Error())
			}
		default:
			logrus.Errorf("fail.OnPanic() called with an unexpected parameter type '%T'", err)
			logrus.Error(panicErr.Error())
		}
	}
}

// OnExitLogError logs error if 'err' points to a non-nil error, with 'msg' as prefix
// Intended to be used with defer
func OnExitLogError(err *Error, msg ...interface{}) {
	if err == nil || *err == nil || (*err).IsNull() {
		return
	}
	prefix := strings.TrimSpace(strprocess.FormatStrings(msg...))
	if prefix == "" {
		prefix = callerName(2)
	}
	logrus.Errorf("%s: %s", prefix, (*err).Error())
}

// IgnoreError logs 'err' at debug level and drops it
func IgnoreError(err error) {
	if err != nil {
		logrus.Debugf("ignoring error [%s] from %s", err, callerName(2))
	}
}

func callerName(skip int) string {
	pc, _, line, ok := runtime.Caller(skip)
	if !ok {
		return "<unknown>"
	}
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return "<unknown>"
	}
	name := fn.Name()
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}
	return fmt.Sprintf("%s:%d", name, line)
}
