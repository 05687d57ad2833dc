package apperr

import (
	"errors"
	"fmt"
)

const (
	MetaReason   = "reason"
	MetaStage    = "stage"
	MetaField    = "field"
	MetaSelector = "selector"
	MetaStrategy = "strategy"
	MetaURL      = "url"

	StagePreparation   = "preparation"
	StageDriver        = "driver"
	StageIntrospection = "introspection"
	StageStrategy      = "strategy"
	StageValidation    = "validation"
	StageCache         = "cache"
	StageLLM           = "llm"
	StageRetry         = "retry"

	CodeInternal          = "internal"
	CodeInvalidArgument   = "invalid_argument"
	CodeNotFound          = "not_found"
	CodeUnavailable       = "unavailable"
	CodeTimeout           = "timeout"
	CodeActionFailed      = "action_failed"
	CodeDriverError       = "driver_error"
	CodeDisabled          = "disabled"
	CodeNoSignal          = "no_signal"
	CodeNoCandidate       = "no_candidate"
	CodeStrategyException = "strategy_exception"
	CodeLLMUnavailable    = "llm_unavailable"
	CodeLLMTimeout        = "llm_timeout"
	CodeLLMMalformed      = "llm_malformed"
)

type Error struct {
	Op       string
	Code     string
	Err      error
	Metadata map[string]any
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}

	return e.Op
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Wrap(op, code string, err error, metadata map[string]any) error {
	if metadata == nil {
		metadata = make(map[string]any)
	}

	return &Error{
		Op:       op,
		Code:     code,
		Err:      err,
		Metadata: metadata,
	}
}

func WrapWithReason(op, code string, err error, reason string) error {
	return Wrap(op, code, err, map[string]any{
		MetaReason: reason,
	})
}

func WrapErrorWithReason(op, code, reason string) error {
	return Wrap(op, code, errors.New(reason), map[string]any{
		MetaReason: reason,
	})
}

func InvalidReqError(op, field string, err error) error {
	return Wrap(op, CodeInvalidArgument, err, map[string]any{
		MetaField:  field,
		MetaReason: "invalid_request",
	})
}

func NotFoundError(op string, err error) error {
	return Wrap(op, CodeNotFound, err, map[string]any{
		MetaReason: "not_found",
	})
}

// Code returns the apperr code carried by err, if any, and an empty
// string otherwise. The LLM Analysis strategy uses this to tell an LLM
// timeout from other backend failures.
func Code(err error) string {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Code
		}

		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}

		err = u.Unwrap()
	}

	return ""
}
