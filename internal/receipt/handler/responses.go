package handler

import (
	"encoding/json"
	"net/http"

	"listou/internal/nfce/accesskey"
	"listou/internal/receipt/importer"
	"listou/internal/receipt/models"
	dErrors "listou/pkg/domain-errors"
)

// ImportResponse describes a pipeline run to the caller.
type ImportResponse struct {
	ImportID       string             `json:"import_id"`
	State          string             `json:"state"`
	Progress       string             `json:"progress"`
	AccessKey      string             `json:"access_key"`
	AccessKeyShown string             `json:"access_key_formatted"`
	Receipt        *models.Receipt    `json:"receipt,omitempty"`
	Items          []models.LineItem  `json:"items,omitempty"`
}

// ReceiptResponse wraps a persisted receipt with its items.
type ReceiptResponse struct {
	Receipt *models.Receipt   `json:"receipt"`
	Items   []models.LineItem `json:"items,omitempty"`
}

func toImportResponse(run importer.Run) ImportResponse {
	return ImportResponse{
		ImportID:       run.ID.String(),
		State:          string(run.State),
		Progress:       run.Progress,
		AccessKey:      run.AccessKey,
		AccessKeyShown: accesskey.Format(run.AccessKey),
		Receipt:        run.Receipt,
		Items:          run.Items,
	}
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Stage   string `json:"stage,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps coded domain errors to HTTP statuses, attaching the failed
// pipeline stage when one is known.
func writeError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	resp := errorResponse{
		Error:   string(code),
		Message: dErrors.MessageOf(err),
	}
	if failure := failureOf(err); failure != nil {
		resp.Stage = string(failure.Stage)
	}
	writeJSON(w, dErrors.HTTPStatus(code), resp)
}
