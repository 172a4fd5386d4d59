package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"echostrata/domain/core"

	"github.com/stretchr/testify/assert"
)

func TestWrapKeepsCode(t *testing.T) {
	base := NotFound("run")
	wrapped := Wrap(base, "lookup failed")

	assert.Equal(t, CodeNotFound, GetCode(wrapped))
	assert.Equal(t, "lookup failed: run not found", wrapped.Error())
	assert.True(t, stderrors.Is(wrapped, base))
	assert.Nil(t, Wrap(nil, "nothing"))
}

func TestClassifyDomainErrors(t *testing.T) {
	tests := []struct {
		err  error
		code string
	}{
		{core.ErrEmptySelection, CodeMalformedInput},
		{core.NewMalformedInputError("haul 4", "no stratum"), CodeMalformedInput},
		{core.ErrNoKnownStrata, CodeMissingStratumData},
		{fmt.Errorf("apportion: %w", core.ErrInconsistentApportionment), CodeInconsistentApportionment},
		{stderrors.New("boom"), CodeInternalError},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.code, Classify(tt.err))
			assert.Equal(t, tt.code, GetCode(Wrap(tt.err, "run failed")))
		})
	}
}

func TestWithCodeAndStatus(t *testing.T) {
	err := WithCode(CodeInvalidInput, stderrors.New("bad sex"))
	assert.Equal(t, CodeInvalidInput, GetCode(err))
	var appErr *AppError
	assert.ErrorAs(t, fmt.Errorf("outer: %w", err), &appErr)

	assert.Equal(t, http.StatusNotFound, HTTPStatus(CodeNotFound))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(CodeMalformedInput))
	assert.Equal(t, http.StatusUnprocessableEntity, HTTPStatus(CodeMissingStratumData))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(CodeDatabaseError))
}

func TestDataLoad(t *testing.T) {
	cause := stderrors.New("sheet missing")
	err := DataLoad("lengths.xlsx", cause)
	assert.Equal(t, CodeDataLoad, err.Code)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "failed to load lengths.xlsx: sheet missing", err.Error())
}
