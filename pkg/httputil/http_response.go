package httputil

import (
	"errors"
	"io"
	"net/http"

	"github.com/bytedance/sonic"
)

// MaxBodySize bounds request bodies accepted by DecodeJSON.
const MaxBodySize = 1 << 16

type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func WriteErrorResponse(w http.ResponseWriter, statusCode int, message string, details error) {
	resp := ErrorResponse{
		Code:    statusCode,
		Message: message,
	}
	if details != nil {
		resp.Details = details.Error()
	}
	WriteJSONResponse(w, statusCode, resp)
}

func WriteJSONResponse(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if body != nil {
		sonic.ConfigDefault.NewEncoder(w).Encode(body)
	}
}

// DecodeJSON reads one JSON value from the request body into dst. An empty
// body leaves dst untouched.
func DecodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	data, err := io.ReadAll(io.LimitReader(r.Body, MaxBodySize+1))
	if err != nil {
		return errors.New("reading body error: " + err.Error())
	}
	if len(data) > MaxBodySize {
		return errors.New("request body too large")
	}
	if len(data) == 0 {
		return nil
	}
	if err = sonic.ConfigStd.Unmarshal(data, dst); err != nil {
		return errors.New("decoding body error: " + err.Error())
	}
	return nil
}
