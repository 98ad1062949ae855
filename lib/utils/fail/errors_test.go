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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
)

func TestNotFoundError(t *testing.T) {
	err := NotFoundError("failed to find %s '%s'", "server", "srv1")
	require.NotNil(t, err)
	assert.Equal(t, "failed to find server 'srv1'", err.Error())
	assert.Equal(t, codes.NotFound, err.GRPCCode())
	assert.False(t, err.IsNull())
}

func TestWrapKeepsCodeAndCause(t *testing.T) {
	cause := DuplicateError("found 2 networks named 'net'")
	wrapped := Wrap(cause, "failed to resolve network")
	require.NotNil(t, wrapped)
	assert.Equal(t, codes.AlreadyExists, wrapped.GRPCCode())
	assert.Equal(t, "failed to resolve network: found 2 networks named 'net'", wrapped.Error())
	assert.Equal(t, cause, Cause(wrapped))
	assert.True(t, Is[*ErrDuplicate](wrapped))
	assert.False(t, Is[*ErrNotFound](wrapped))

	assert.Nil(t, Wrap(nil, "nothing"))
}

func TestRootCause(t *testing.T) {
	root := errors.New("connection refused")
	err := Wrap(NotAvailableErrorWithCause(root, "compute unreachable"), "failed to get server")
	assert.Equal(t, root, RootCause(err))
	assert.Equal(t, root, err.RootCause())
}

func TestAnnotations(t *testing.T) {
	err := InvalidRequestError("conflicting networks")
	err.Annotate("field", "networks")
	v, ok := err.Annotation("field")
	require.True(t, ok)
	assert.Equal(t, "networks", v)
	assert.Contains(t, err.Error(), `with annotations: {"field":"networks"}`)
	assert.Equal(t, "conflicting networks", err.UnformattedError())
}

func TestInvalidParameterError(t *testing.T) {
	err := InvalidParameterCannotBeEmptyStringError("kind")
	assert.Equal(t, "invalid parameter 'kind': cannot be empty string", err.UnformattedError())
	f, ok := err.Annotation("field")
	require.True(t, ok)
	assert.Equal(t, "kind", f)
}

func TestConsequences(t *testing.T) {
	err := ExecutionError(nil, "failed to create port")
	_ = err.AddConsequence(fmt.Errorf("failed to cleanup"))
	_ = err.AddConsequence(nil)
	require.Len(t, err.Consequences(), 1)
	assert.Contains(t, err.Error(), "with consequence:\n- failed to cleanup")
}

func TestPrepend(t *testing.T) {
	err := NotFoundError("no image named 'vm-a-backup'")
	_ = Prepend(err, "snapshot_apply")
	assert.Equal(t, "snapshot_apply: no image named 'vm-a-backup'", err.UnformattedError())
}

func TestTimeoutError(t *testing.T) {
	err := TimeoutError(nil, 0, "waited too long")
	assert.Equal(t, "waited too long", err.Error())
	assert.Equal(t, codes.DeadlineExceeded, Code(err))
	assert.Equal(t, codes.Unknown, Code(errors.New("plain")))
}

func TestErrorList(t *testing.T) {
	assert.Nil(t, NewErrorList(nil))

	list := NewErrorList([]error{errors.New("a"), errors.New("b")})
	require.NotNil(t, list)
	assert.Equal(t, "a\nb", list.Error())
	casted, ok := list.(*ErrorList)
	require.True(t, ok)
	assert.Len(t, casted.ToErrorSlice(), 2)
}

func TestConvertError(t *testing.T) {
	assert.Nil(t, ConvertError(nil))
	nf := NotFoundError("x")
	assert.Equal(t, Error(nf), ConvertError(nf))
	converted := ConvertError(errors.New("raw"))
	assert.Equal(t, "raw", converted.Error())
}

func TestOnPanic(t *testing.T) {
	f := func() (ferr Error) {
		defer OnPanic(&ferr)
		panic("boom")
	}
	err := f()
	require.NotNil(t, err)
	assert.True(t, Is[*ErrRuntimePanic](err))
}
