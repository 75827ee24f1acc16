package controller

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/BlitzCraftHQ/nftconomy-cardano-api-sub001/pkg/charts"
	"github.com/BlitzCraftHQ/nftconomy-cardano-api-sub001/pkg/timeseries"
)

type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// writeJSON sets the JSON content type and status, then encodes data.
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

func writeData(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: data})
}

// writeError sends a failed envelope carrying a client-safe message.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, envelope{Success: false, Error: message})
}

// statusFor maps service errors to an HTTP status and a client-safe message.
func statusFor(err error) (int, string) {
	var parseErr *parseError
	switch {
	case errors.As(err, &parseErr):
		return http.StatusBadRequest, parseErr.Error()
	case errors.Is(err, charts.ErrUnknownChart):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, charts.ErrInvalidCollection):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, timeseries.ErrDataSourceUnavailable):
		return http.StatusServiceUnavailable, timeseries.ErrDataSourceUnavailable.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "query timed out"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
