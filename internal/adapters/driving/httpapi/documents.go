package httpapi

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/custodia-labs/kbase/internal/core/domain"
)

// uploadDocument accepts a multipart form with a "file" part and an
// optional "extension" field overriding the filename's extension.
func (s *Server) uploadDocument(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		RespondError(c, http.StatusBadRequest, domain.KindInvalidInput,
			fmt.Errorf("%w: multipart field \"file\" is required", domain.ErrInvalidInput))
		return
	}
	if header.Size > s.opts.MaxUploadBytes {
		respondDomainError(c, fmt.Errorf("%w: %d bytes exceeds limit of %d",
			domain.ErrFileTooLarge, header.Size, s.opts.MaxUploadBytes))
		return
	}

	f, err := header.Open()
	if err != nil {
		RespondError(c, http.StatusBadRequest, domain.KindInvalidInput, fmt.Errorf("opening upload: %w", err))
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, s.opts.MaxUploadBytes+1))
	if err != nil {
		RespondError(c, http.StatusBadRequest, domain.KindInvalidInput, fmt.Errorf("reading upload: %w", err))
		return
	}
	if int64(len(data)) > s.opts.MaxUploadBytes {
		respondDomainError(c, fmt.Errorf("%w: exceeds limit of %d bytes", domain.ErrFileTooLarge, s.opts.MaxUploadBytes))
		return
	}
	receipt, err := s.ports.Ingestion.Upload(c.Request.Context(), domain.UploadRequest{
		Data:        data,
		FileName:    header.Filename,
		Extension:   c.PostForm("extension"),
		ContentType: header.Header.Get("Content-Type"),
	})
	if err != nil {
		respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, receipt)
}

func (s *Server) listDocuments(c *gin.Context) {
	opts := domain.ListOptions{Status: domain.Status(c.Query("status"))}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			RespondError(c, http.StatusBadRequest, domain.KindInvalidInput,
				fmt.Errorf("%w: limit must be a non-negative integer", domain.ErrInvalidInput))
			return
		}
		opts.Limit = limit
	}

	docs, err := s.ports.Documents.List(c.Request.Context(), opts)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	if docs == nil {
		docs = []domain.Document{}
	}
	RespondOK(c, gin.H{"documents": docs})
}

func (s *Server) documentStatus(c *gin.Context) {
	status, err := s.ports.Ingestion.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondDomainError(c, err)
		return
	}
	RespondOK(c, status)
}

func (s *Server) documentChunks(c *gin.Context) {
	details, err := s.ports.Documents.GetDetails(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondDomainError(c, err)
		return
	}
	if details.Chunks == nil {
		details.Chunks = []domain.Chunk{}
	}
	RespondOK(c, details)
}

func (s *Server) deleteDocument(c *gin.Context) {
	if err := s.ports.Ingestion.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) regenerateDocument(c *gin.Context) {
	id := c.Param("id")
	if err := s.ports.Ingestion.Regenerate(c.Request.Context(), id); err != nil {
		respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, domain.UploadReceipt{DocumentID: id, Status: domain.ReceiptStatusProcessing})
}

func (s *Server) stats(c *gin.Context) {
	stats, err := s.ports.Documents.Stats(c.Request.Context())
	if err != nil {
		respondDomainError(c, err)
		return
	}
	RespondOK(c, stats)
}
