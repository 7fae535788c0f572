package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"
)

type ErrorTestSuite struct {
	suite.Suite
}

func TestErrorSuite(t *testing.T) {
	suite.Run(t, new(ErrorTestSuite))
}

func (suite *ErrorTestSuite) TestNewError() {
	err := New(ErrCodeInvalidParameter, "invalid parameter")
	suite.NotNil(err)
	suite.Equal(ErrCodeInvalidParameter, err.Code)
	suite.Equal("invalid parameter", err.Message)
	suite.Nil(err.Cause)
}

func (suite *ErrorTestSuite) TestNewfError() {
	err := Newf(ErrCodeNotFound, "order %s not found", "42")
	suite.Equal(ErrCodeNotFound, err.Code)
	suite.Equal("order 42 not found", err.Message)
}

func (suite *ErrorTestSuite) TestWrapfError() {
	cause := errors.New("connection reset")
	err := Wrapf(ErrCodeTransient, cause, "get_positions attempt %d", 2)
	suite.Equal("get_positions attempt 2", err.Message)
	suite.Equal(cause, err.Cause)
}

func (suite *ErrorTestSuite) TestErrorString() {
	suite.Equal("[100] invalid parameter", New(ErrCodeInvalidParameter, "invalid parameter").Error())

	cause := errors.New("underlying error")
	suite.Equal("[201] order gone: underlying error", Wrap(ErrCodeNotFound, "order gone", cause).Error())
}

func (suite *ErrorTestSuite) TestUnwrap() {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeRejected, "rejected", cause)
	suite.Equal(cause, err.Unwrap())
	suite.True(Is(err, cause))
}

func (suite *ErrorTestSuite) TestGetCode() {
	suite.Equal(ErrCodeRejected, GetCode(New(ErrCodeRejected, "x")))
	suite.Equal(ErrCodeUnknown, GetCode(errors.New("plain")))
	suite.Equal(ErrCodeOrderFailed, GetCode(fmt.Errorf("outer: %w", New(ErrCodeOrderFailed, "x"))))
}

func (suite *ErrorTestSuite) TestClassifiersLookThroughWrappers() {
	transient := New(ErrCodeTransient, "rate limited")
	wrapped := Wrap(ErrCodeOrderFailed, "submit failed", transient)

	suite.False(HasCode(wrapped, ErrCodeTransient))
	suite.True(IsTransient(wrapped))
	suite.False(IsNotFound(wrapped))
	suite.False(IsRejected(wrapped))

	notFound := fmt.Errorf("cancel: %w", New(ErrCodeNotFound, "unknown order"))
	suite.True(IsNotFound(notFound))
	suite.False(IsTransient(notFound))

	suite.True(IsRejected(Wrap(ErrCodeCancelFailed, "x", New(ErrCodeRejected, "price step"))))
}

func (suite *ErrorTestSuite) TestClassifiersOnPlainErrors() {
	suite.False(IsTransient(nil))
	suite.False(IsTransient(errors.New("boom")))
	suite.False(HasCodeInChain(errors.New("boom"), ErrCodeUnknown))
}
