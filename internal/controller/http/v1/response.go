package v1

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/PiyushRaj472100/Chemical-Equipment-Analyzer/internal/domain/entity"
	"github.com/PiyushRaj472100/Chemical-Equipment-Analyzer/internal/domain/equipment"
	"github.com/PiyushRaj472100/Chemical-Equipment-Analyzer/pkg/utils"
)

const (
	ErrCodeBadRequest      = "BAD_REQUEST"
	ErrCodeUnauthorized    = "UNAUTHORIZED"
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeTooLarge        = "PAYLOAD_TOO_LARGE"
	ErrCodeMissingColumns  = "MISSING_COLUMNS"
	ErrCodeMalformedInput  = "MALFORMED_INPUT"
	ErrCodeEmptyInput      = "EMPTY_INPUT"
	ErrCodeInternalServer  = "INTERNAL_SERVER_ERROR"
	ErrCodeValidationError = "VALIDATION_ERROR"
)

type ErrorResponse struct {
	Success bool        `json:"success"`
	Error   ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func respondWithError(c *gin.Context, status int, code, message string, details any) {
	c.AbortWithStatusJSON(status, ErrorResponse{
		Success: false,
		Error:   ErrorDetail{Code: code, Message: message, Details: details},
	})
}

// respondWithDomainError maps use case errors onto HTTP statuses. Anything
// outside the known taxonomy is a 500 and its text stays in the logs.
func respondWithDomainError(c *gin.Context, err error) {
	var (
		schemaErr    *entity.SchemaError
		malformedErr *entity.MalformedInputError
	)

	switch {
	case errors.Is(err, entity.ErrMissingOwner):
		respondWithError(c, http.StatusUnauthorized, ErrCodeUnauthorized, err.Error(), nil)
	case errors.As(err, &schemaErr):
		respondWithError(c, http.StatusBadRequest, ErrCodeMissingColumns, schemaErr.Error(),
			gin.H{"missing": schemaErr.Missing})
	case errors.As(err, &malformedErr):
		var details any
		if malformedErr.Row >= 0 {
			details = gin.H{"row": malformedErr.Row, "column": malformedErr.Column}
		}
		respondWithError(c, http.StatusBadRequest, ErrCodeMalformedInput, malformedErr.Error(), details)
	case errors.Is(err, entity.ErrEmptyInput), errors.Is(err, entity.ErrInsufficientData):
		respondWithError(c, http.StatusBadRequest, ErrCodeEmptyInput, err.Error(), nil)
	case errors.Is(err, entity.ErrNotFound):
		respondWithError(c, http.StatusNotFound, ErrCodeNotFound, "no datasets available", nil)
	default:
		_ = c.Error(err)
		respondWithError(c, http.StatusInternalServerError, ErrCodeInternalServer, "internal error", nil)
	}
}

type averageValues struct {
	Flowrate    float64 `json:"flowrate"`
	Pressure    float64 `json:"pressure"`
	Temperature float64 `json:"temperature"`
}

type summaryResponse struct {
	DatasetID        string         `json:"dataset_id"`
	DatasetName      string         `json:"dataset_name"`
	UploadDate       time.Time      `json:"upload_date"`
	TotalEquipment   int            `json:"total_equipment"`
	AverageValues    averageValues  `json:"average_values"`
	TypeDistribution map[string]int `json:"type_distribution"`
}

func newSummaryResponse(s entity.DatasetSummary) summaryResponse {
	dist := s.CategoryCounts
	if dist == nil {
		dist = entity.CategoryCounts{}
	}
	return summaryResponse{
		DatasetID:      s.ID.String(),
		DatasetName:    s.Label,
		UploadDate:     s.CreatedAt,
		TotalEquipment: s.RowCount,
		AverageValues: averageValues{
			Flowrate:    utils.Round2(s.Means.Flowrate),
			Pressure:    utils.Round2(s.Means.Pressure),
			Temperature: utils.Round2(s.Means.Temperature),
		},
		TypeDistribution: dist,
	}
}

type uploadResponse struct {
	Message       string           `json:"message"`
	DatasetID     string           `json:"dataset_id"`
	Summary       summaryResponse  `json:"summary"`
	EquipmentData []map[string]any `json:"equipment_data"`
	Evicted       int              `json:"evicted"`
}

// equipmentRecords echoes the parsed rows keyed by header name, numbers typed.
func equipmentRecords(rows []entity.EquipmentRow) []map[string]any {
	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		rec := make(map[string]any, len(equipment.RequiredColumns)+len(row.Extra))
		for k, v := range row.Extra {
			rec[k] = v
		}
		rec[equipment.ColumnName] = row.Name
		rec[equipment.ColumnCategory] = row.Category
		rec[equipment.ColumnFlowrate] = row.Flowrate
		rec[equipment.ColumnPressure] = row.Pressure
		rec[equipment.ColumnTemperature] = row.Temperature
		out = append(out, rec)
	}
	return out
}

type historyResponse struct {
	Count    int               `json:"count"`
	Datasets []summaryResponse `json:"datasets"`
}
