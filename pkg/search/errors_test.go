package search

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dan-solli/graphrag/pkg/embeddings"
	"github.com/dan-solli/graphrag/pkg/llm"
	"github.com/dan-solli/graphrag/pkg/store"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		def  ErrorKind
		err  error
		want ErrorKind
	}{
		{"plain store error", KindStoreUnavailable, errors.New("dial tcp"), KindStoreUnavailable},
		{"malformed record", KindStoreUnavailable, fmt.Errorf("row 3: %w", store.ErrMalformedRecord), KindMalformedResponse},
		{"malformed embedding", KindEmbeddingFailure, embeddings.ErrMalformedResponse, KindMalformedResponse},
		{"empty completion", KindGenerationFailure, llm.ErrEmptyCompletion, KindMalformedResponse},
		{"query embedding inside store", KindStoreUnavailable, fmt.Errorf("%w: boom", store.ErrQueryEmbedding), KindEmbeddingFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.def, tt.err))
		})
	}
}

func TestStageErrorUnwraps(t *testing.T) {
	cause := errors.New("boom")
	err := fmt.Errorf("wrapped: %w", stageError("expand", KindStoreUnavailable, cause))

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, KindStoreUnavailable, KindOf(err))
	assert.Equal(t, ErrorKind(""), KindOf(cause))
	assert.Equal(t, "wrapped: expand: store_unavailable: boom", err.Error())
}
