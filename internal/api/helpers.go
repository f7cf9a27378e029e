package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v5"

	"msahmm/internal/seqio"
)

func writeBadRequest(c *echo.Context, msg string) error {
	return writeError(c, http.StatusBadRequest, "invalid_request_error", msg, "", "")
}

func writeServerError(c *echo.Context, msg string) error {
	return writeError(c, http.StatusInternalServerError, "server_error", msg, "", "")
}

func writeError(c *echo.Context, status int, errType, msg, param, code string) error {
	return c.JSON(status, map[string]any{
		"error": ResponseError{
			Message: msg,
			Type:    errType,
			Code:    code,
			Param:   param,
		},
	})
}

func decodeJSON[T any](r io.Reader) (T, error) {
	var out T
	dec := json.NewDecoder(r)
	if err := dec.Decode(&out); err != nil {
		return out, err
	}
	return out, nil
}

// toRecords validates the inputs and assigns fallback ids by position.
func toRecords(inputs []SequenceInput) ([]seqio.Record, error) {
	if len(inputs) == 0 {
		return nil, newInvalidRequest("sequences is required and must not be empty")
	}
	records := make([]seqio.Record, len(inputs))
	for i, in := range inputs {
		seq := strings.ToUpper(strings.TrimSpace(in.Sequence))
		if seq == "" {
			return nil, newInvalidRequest(fmt.Sprintf("sequences[%d]: sequence must not be empty", i))
		}
		id := in.ID
		if id == "" {
			id = fmt.Sprintf("seq-%d", i)
		}
		records[i] = seqio.Record{ID: id, Seq: seq}
	}
	return records, nil
}
