package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driving"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fixture struct {
	ingestion *mockIngestion
	retrieval *mockRetrieval
	documents *mockDocuments
	handler   http.Handler
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	f := &fixture{
		ingestion: newMockIngestion(),
		retrieval: &mockRetrieval{},
		documents: &mockDocuments{details: map[string]*driving.DocumentDetails{}},
	}
	server, err := NewServer(&Ports{
		Ingestion: f.ingestion,
		Retrieval: f.retrieval,
		Documents: f.documents,
	}, opts)
	require.NoError(t, err)
	f.handler = server.Handler()
	return f
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	return rr
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func multipartUpload(t *testing.T, name string, data []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) APIError {
	t.Helper()
	var env ErrorEnvelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env), rr.Body.String())
	return env.Error
}

func TestNewServer_RequiresPorts(t *testing.T) {
	_, err := NewServer(nil, Options{})
	assert.ErrorIs(t, err, ErrMissingIngestion)

	_, err = NewServer(&Ports{Ingestion: newMockIngestion()}, Options{})
	assert.ErrorIs(t, err, ErrMissingRetrieval)

	_, err = NewServer(&Ports{Ingestion: newMockIngestion(), Retrieval: &mockRetrieval{}}, Options{})
	assert.ErrorIs(t, err, ErrMissingDocuments)
}

func TestHealthz(t *testing.T) {
	f := newFixture(t, Options{})
	rr := f.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, Options{})
	rr := f.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "kbase_queue_depth")
}

func TestUploadDocument(t *testing.T) {
	f := newFixture(t, Options{})

	rr := f.do(multipartUpload(t, "policy.md", []byte("# Policy"), map[string]string{"extension": "txt"}))

	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
	assert.JSONEq(t, `{"document_id":"doc-1","status":"processing"}`, rr.Body.String())
	require.Len(t, f.ingestion.uploads, 1)
	assert.Equal(t, "policy.md", f.ingestion.uploads[0].FileName)
	assert.Equal(t, "txt", f.ingestion.uploads[0].Extension)
	assert.Equal(t, []byte("# Policy"), f.ingestion.uploads[0].Data)
}

func TestUploadDocument_EmptyFileIsAccepted(t *testing.T) {
	f := newFixture(t, Options{})

	rr := f.do(multipartUpload(t, "empty.txt", nil, nil))

	require.Equal(t, http.StatusAccepted, rr.Code)
	require.Len(t, f.ingestion.uploads, 1)
	assert.NotNil(t, f.ingestion.uploads[0].Data)
	assert.Empty(t, f.ingestion.uploads[0].Data)
}

func TestUploadDocument_Errors(t *testing.T) {
	t.Run("missing file part", func(t *testing.T) {
		f := newFixture(t, Options{})
		rr := f.do(jsonRequest(http.MethodPost, "/api/v1/documents", `{}`))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, domain.KindInvalidInput, decodeError(t, rr).Code)
	})

	t.Run("too large", func(t *testing.T) {
		f := newFixture(t, Options{MaxUploadBytes: 4})
		rr := f.do(multipartUpload(t, "a.txt", []byte("12345"), nil))
		assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
		assert.Equal(t, "FileTooLarge", decodeError(t, rr).Code)
		assert.Empty(t, f.ingestion.uploads)
	})

	t.Run("rejected by orchestrator", func(t *testing.T) {
		f := newFixture(t, Options{})
		f.ingestion.uploadErr = fmt.Errorf("%w: cannot determine file type", domain.ErrInvalidInput)
		rr := f.do(multipartUpload(t, "README", []byte("x"), nil))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, decodeError(t, rr).Message, "cannot determine file type")
	})

	t.Run("queue closed", func(t *testing.T) {
		f := newFixture(t, Options{})
		f.ingestion.uploadErr = domain.ErrQueueClosed
		rr := f.do(multipartUpload(t, "a.txt", []byte("x"), nil))
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
		assert.Equal(t, "QueueClosed", decodeError(t, rr).Code)
	})
}

func TestDocumentStatus(t *testing.T) {
	f := newFixture(t, Options{})
	f.ingestion.statuses["doc-1"] = &driving.DocumentStatus{
		DocumentID: "doc-1", Status: domain.StatusFailed,
		FailedStage: domain.StageExtract, Error: "EmptyContent",
	}

	rr := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/documents/doc-1", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t,
		`{"document_id":"doc-1","status":"failed","failed_stage":"extract","error":"EmptyContent","in_flight":false}`,
		rr.Body.String())

	rr = f.do(httptest.NewRequest(http.MethodGet, "/api/v1/documents/nope", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, domain.KindNotFound, decodeError(t, rr).Code)
}

func TestListDocuments(t *testing.T) {
	f := newFixture(t, Options{})
	f.documents.docs = []domain.Document{{ID: "a", FileName: "a.txt", Status: domain.StatusCompleted}}

	rr := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/documents?status=completed&limit=10", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, domain.StatusCompleted, f.documents.lastOpts.Status)
	assert.Equal(t, 10, f.documents.lastOpts.Limit)

	var body struct {
		Documents []domain.Document `json:"documents"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.Documents, 1)
	assert.Equal(t, "a.txt", body.Documents[0].FileName)

	rr = f.do(httptest.NewRequest(http.MethodGet, "/api/v1/documents?limit=ten", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = f.do(httptest.NewRequest(http.MethodGet, "/api/v1/documents?status=archived", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestListDocuments_EmptyIsArray(t *testing.T) {
	f := newFixture(t, Options{})
	rr := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"documents":[]}`, rr.Body.String())
}

func TestDocumentChunks(t *testing.T) {
	f := newFixture(t, Options{})
	f.documents.details["a"] = &driving.DocumentDetails{
		Document: domain.Document{ID: "a"},
		Chunks:   []domain.Chunk{{DocumentID: "a", Index: 0, Content: "hello", VectorID: "a_0_x"}},
	}

	rr := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/documents/a/chunks", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var body driving.DocumentDetails
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.Chunks, 1)
	assert.Equal(t, "hello", body.Chunks[0].Content)

	rr = f.do(httptest.NewRequest(http.MethodGet, "/api/v1/documents/b/chunks", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestDeleteDocument(t *testing.T) {
	f := newFixture(t, Options{})
	f.ingestion.statuses["a"] = &driving.DocumentStatus{DocumentID: "a", Status: domain.StatusCompleted}

	rr := f.do(httptest.NewRequest(http.MethodDelete, "/api/v1/documents/a", nil))
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, []string{"a"}, f.ingestion.deleted)

	rr = f.do(httptest.NewRequest(http.MethodDelete, "/api/v1/documents/a", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestDeleteDocument_IndexFailure(t *testing.T) {
	f := newFixture(t, Options{})
	f.ingestion.statuses["a"] = &driving.DocumentStatus{DocumentID: "a"}
	f.ingestion.deleteErr = fmt.Errorf("%w: index unreachable", domain.ErrIndexWriteFailure)

	rr := f.do(httptest.NewRequest(http.MethodDelete, "/api/v1/documents/a", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, domain.KindIndexWriteFailure, decodeError(t, rr).Code)
}

func TestRegenerateDocument(t *testing.T) {
	f := newFixture(t, Options{})
	f.ingestion.statuses["a"] = &driving.DocumentStatus{DocumentID: "a"}

	rr := f.do(httptest.NewRequest(http.MethodPost, "/api/v1/documents/a/regenerate", nil))
	assert.Equal(t, http.StatusAccepted, rr.Code)
	assert.Equal(t, []string{"a"}, f.ingestion.regenerated)

	rr = f.do(httptest.NewRequest(http.MethodPost, "/api/v1/documents/b/regenerate", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestSearch(t *testing.T) {
	f := newFixture(t, Options{})
	f.retrieval.results = []domain.SearchResult{{
		Text: "办公室安全管理制度", DocumentID: "a", FileName: "policy.txt",
		VectorID: "a_0_x", Similarity: 0.82, Rank: 1,
	}}

	rr := f.do(jsonRequest(http.MethodPost, "/api/v1/search",
		`{"query":"办公室安全管理","top_k":3,"document_ids":["a"]}`))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var body searchResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.Results, 1)
	assert.Equal(t, 1, body.Results[0].Rank)
	assert.Equal(t, "policy.txt", body.Results[0].FileName)
	assert.Equal(t, 3, f.retrieval.lastOpts.TopK)
	assert.Equal(t, []string{"a"}, f.retrieval.lastOpts.DocumentIDs)
}

func TestSearch_Errors(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		searchErr error
		status    int
		code      string
	}{
		{"malformed json", `{"query":`, nil, http.StatusBadRequest, domain.KindInvalidInput},
		{"negative top_k", `{"query":"q","top_k":-1}`, nil, http.StatusBadRequest, domain.KindInvalidInput},
		{"embedding down", `{"query":"q"}`, domain.ErrEmbeddingUnavailable,
			http.StatusServiceUnavailable, domain.KindEmbeddingUnavailable},
		{"index down", `{"query":"q"}`, errors.New("connection refused"),
			http.StatusInternalServerError, domain.KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Options{})
			f.retrieval.err = tt.searchErr
			rr := f.do(jsonRequest(http.MethodPost, "/api/v1/search", tt.body))
			assert.Equal(t, tt.status, rr.Code)
			assert.Equal(t, tt.code, decodeError(t, rr).Code)
		})
	}
}

func TestSearch_NoResultsIsEmptyArray(t *testing.T) {
	f := newFixture(t, Options{})
	rr := f.do(jsonRequest(http.MethodPost, "/api/v1/search", `{"query":""}`))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"query":"","results":[]}`, rr.Body.String())
}

func TestBatchSearch(t *testing.T) {
	f := newFixture(t, Options{})
	f.retrieval.results = []domain.SearchResult{{DocumentID: "a", Rank: 1}}

	rr := f.do(jsonRequest(http.MethodPost, "/api/v1/search/batch", `{"queries":["one","","two"]}`))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var body batchSearchResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.Results, 3)
	assert.Len(t, body.Results[0], 1)
	assert.NotNil(t, body.Results[1])
	assert.Empty(t, body.Results[1])
	assert.Len(t, body.Results[2], 1)

	rr = f.do(jsonRequest(http.MethodPost, "/api/v1/search/batch", `{"queries":[]}`))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestStats(t *testing.T) {
	f := newFixture(t, Options{})
	f.documents.stats = &domain.KnowledgeBaseStats{
		TotalDocuments: 2,
		ByStatus:       map[domain.Status]int{domain.StatusCompleted: 2},
		TotalVectors:   9,
		EmbeddingModel: "hashing-ngram",
	}

	rr := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var body domain.KnowledgeBaseStats
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, 9, body.TotalVectors)
	assert.Equal(t, 2, body.ByStatus[domain.StatusCompleted])
}
