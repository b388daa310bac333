package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrors_AreDistinct(t *testing.T) {
	all := []error{
		ErrNotFound, ErrInvalidInput, ErrFileTooLarge, ErrEmbeddingUnavailable,
		ErrVectorIndexUnavailable, ErrQueueClosed, ErrUnsupportedFileType, ErrCorruptFile,
		ErrEmptyContent, ErrChunkingFailure, ErrIndexWriteFailure, ErrCountMismatch,
	}

	for i, a := range all {
		for j, b := range all {
			if i != j {
				assert.False(t, errors.Is(a, b), "%v should not match %v", a, b)
			}
		}
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrEmptyContent, KindEmptyContent},
		{fmt.Errorf("decode: %w", ErrCorruptFile), KindCorruptFile},
		{fmt.Errorf("embed batch 2: %w", ErrEmbeddingUnavailable), KindEmbeddingUnavailable},
		{fmt.Errorf("upsert: %w", ErrIndexWriteFailure), KindIndexWriteFailure},
		{ErrFileTooLarge, KindInvalidInput},
		{errors.New("boom"), KindUnknown},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, KindOf(tt.err))
	}
}

func TestFailureReason(t *testing.T) {
	assert.Equal(t, "EmptyContent", FailureReason(ErrEmptyContent))
	assert.Equal(t, "CountMismatch", FailureReason(fmt.Errorf("3 chunks, 2 vectors: %w", ErrCountMismatch)))
	assert.Equal(t,
		"UnsupportedFileType: extension \"exe\": unsupported file type",
		FailureReason(fmt.Errorf("extension %q: %w", "exe", ErrUnsupportedFileType)))
}
