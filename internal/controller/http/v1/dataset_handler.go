package v1

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/PiyushRaj472100/Chemical-Equipment-Analyzer/internal/domain/entity"
	"github.com/PiyushRaj472100/Chemical-Equipment-Analyzer/internal/domain/usecase"
	"github.com/PiyushRaj472100/Chemical-Equipment-Analyzer/pkg/middleware"
	"github.com/PiyushRaj472100/Chemical-Equipment-Analyzer/pkg/report"
)

type DatasetUseCase interface {
	Ingest(ctx context.Context, owner, label string, raw []byte) (*entity.IngestResult, error)
	Latest(ctx context.Context, owner string) (*entity.DatasetSummary, error)
	History(ctx context.Context, owner string, n int) ([]entity.DatasetSummary, error)
	Report(ctx context.Context, owner string, id *uuid.UUID) (*usecase.Report, error)
}

type DatasetHandler struct {
	UseCase        DatasetUseCase
	MaxUploadBytes int64
}

func NewDatasetHandler(u DatasetUseCase, maxUploadBytes int64) *DatasetHandler {
	return &DatasetHandler{UseCase: u, MaxUploadBytes: maxUploadBytes}
}

func (h *DatasetHandler) Upload(c *gin.Context) {
	owner := middleware.Owner(c)
	if owner == "" {
		respondWithError(c, http.StatusUnauthorized, ErrCodeUnauthorized, "owner required", nil)
		return
	}

	if h.MaxUploadBytes > 0 {
		if c.Request.ContentLength > h.MaxUploadBytes {
			h.rejectTooLarge(c)
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadBytes)
	}

	file, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.rejectTooLarge(c)
			return
		}
		respondWithError(c, http.StatusBadRequest, ErrCodeValidationError, "file required",
			gin.H{"field": "file"})
		return
	}

	name := path.Base(file.Filename)
	if !strings.HasSuffix(strings.ToLower(name), ".csv") {
		respondWithError(c, http.StatusBadRequest, ErrCodeValidationError, "file must be a CSV",
			gin.H{"field": "file", "filename": name})
		return
	}

	f, err := file.Open()
	if err != nil {
		respondWithDomainError(c, err)
		return
	}
	defer f.Close()

	raw, err := io.ReadAll(f)
	if err != nil {
		respondWithDomainError(c, err)
		return
	}

	res, err := h.UseCase.Ingest(c.Request.Context(), owner, name, raw)
	if err != nil {
		respondWithDomainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, uploadResponse{
		Message:       "CSV file uploaded and processed successfully",
		DatasetID:     res.Summary.ID.String(),
		Summary:       newSummaryResponse(res.Summary),
		EquipmentData: equipmentRecords(res.Rows),
		Evicted:       len(res.Evicted),
	})
}

func (h *DatasetHandler) rejectTooLarge(c *gin.Context) {
	respondWithError(c, http.StatusRequestEntityTooLarge, ErrCodeTooLarge,
		fmt.Sprintf("upload exceeds %d bytes", h.MaxUploadBytes), nil)
}

func (h *DatasetHandler) Summary(c *gin.Context) {
	summary, err := h.UseCase.Latest(c.Request.Context(), middleware.Owner(c))
	if err != nil {
		respondWithDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, newSummaryResponse(*summary))
}

func (h *DatasetHandler) History(c *gin.Context) {
	n := 0
	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			respondWithError(c, http.StatusBadRequest, ErrCodeBadRequest, "limit must be a non-negative integer",
				gin.H{"limit": raw})
			return
		}
		n = v
	}

	summaries, err := h.UseCase.History(c.Request.Context(), middleware.Owner(c), n)
	if err != nil {
		respondWithDomainError(c, err)
		return
	}

	datasets := make([]summaryResponse, 0, len(summaries))
	for _, s := range summaries {
		datasets = append(datasets, newSummaryResponse(s))
	}
	c.JSON(http.StatusOK, historyResponse{Count: len(datasets), Datasets: datasets})
}

func (h *DatasetHandler) LatestReport(c *gin.Context) {
	h.serveReport(c, nil)
}

func (h *DatasetHandler) Report(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondWithError(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid dataset id",
			gin.H{"id": c.Param("id")})
		return
	}
	h.serveReport(c, &id)
}

func (h *DatasetHandler) serveReport(c *gin.Context, id *uuid.UUID) {
	rep, err := h.UseCase.Report(c.Request.Context(), middleware.Owner(c), id)
	if err != nil {
		respondWithDomainError(c, err)
		return
	}

	if rep.URL != "" {
		c.Redirect(http.StatusTemporaryRedirect, rep.URL)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.FileName(rep.Summary)))
	c.Data(http.StatusOK, "application/pdf", rep.PDF)
}
