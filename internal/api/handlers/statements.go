package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dhima/dbclient/internal/api/middleware"
	"github.com/dhima/dbclient/internal/api/response"
	"github.com/dhima/dbclient/internal/logging"
	"github.com/dhima/dbclient/internal/statements"
	"github.com/dhima/dbclient/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"
)

// statementRequestSchema is the JSON schema every statement request body
// must satisfy before it is bound.
const statementRequestSchema = `{
	"type": "object",
	"required": ["query"],
	"additionalProperties": false,
	"properties": {
		"query":  {"type": "string", "minLength": 1},
		"types":  {"type": "string", "pattern": "^[idsb]*$"},
		"values": {"type": "array", "items": {"type": ["integer", "number", "string", "null"]}}
	}
}`

var statementSchema = mustCompileSchema(statementRequestSchema)

func mustCompileSchema(src string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("compile statement request schema: %v", err))
	}
	return schema
}

// StatementRunner is the statement service surface the handler needs.
type StatementRunner interface {
	Insert(ctx context.Context, req statements.Request) (int64, error)
	Select(ctx context.Context, req statements.Request) ([]storage.Row, error)
	Update(ctx context.Context, req statements.Request) (storage.ExecResult, error)
	Remove(ctx context.Context, req statements.Request) (storage.ExecResult, error)
}

// StatementRequest is the body of every statement endpoint. Types holds one
// tag per value: i (integer), d (double), s (string) or b (blob, sent as
// base64).
type StatementRequest struct {
	Query  string        `json:"query" example:"SELECT id, name FROM users WHERE id = ?"`
	Types  string        `json:"types,omitempty" example:"i"`
	Values []interface{} `json:"values,omitempty" swaggertype:"array,object"`
} // @name StatementRequest

// InsertResponse carries the id generated by an INSERT.
type InsertResponse struct {
	ID int64 `json:"id" example:"42"`
} // @name InsertResponse

// SelectResponse carries the rows returned by a query in column order.
type SelectResponse struct {
	Rows  []storage.Row `json:"rows" swaggertype:"array,object"`
	Count int           `json:"count" example:"1"`
} // @name SelectResponse

// StatementHandler exposes the four statement verbs over HTTP.
type StatementHandler struct {
	runner StatementRunner
	logger logging.Logger
}

// NewStatementHandler creates a new statement handler.
func NewStatementHandler(runner StatementRunner, logger logging.Logger) *StatementHandler {
	return &StatementHandler{
		runner: runner,
		logger: logger.With(zap.String("handler", "statement")),
	}
}

// Insert godoc
// @Summary Run an INSERT statement
// @Description Prepares the query, binds the typed values and returns the generated row id.
// @Tags Statements
// @Accept json
// @Produce json
// @Param statement body StatementRequest true "Statement and parameters"
// @Success 201 {object} response.SuccessResponse{data=InsertResponse}
// @Failure 400 {object} response.ErrorResponse "Invalid request, statement or parameters"
// @Failure 409 {object} response.ErrorResponse "Duplicate key"
// @Failure 500 {object} response.ErrorResponse "Statement execution failed"
// @Failure 503 {object} response.ErrorResponse "Database unavailable"
// @Router /statements/insert [post]
func (h *StatementHandler) Insert(c *gin.Context) {
	req, ok := h.bindRequest(c)
	if !ok {
		return
	}

	id, err := h.runner.Insert(c.Request.Context(), req)
	if h.handleStatementError(c, err, storage.OpInsert) {
		return
	}

	response.Created(c, InsertResponse{ID: id}, "row inserted")
}

// Select godoc
// @Summary Run a SELECT statement
// @Description Prepares the query, binds the typed values and returns every row with columns in projection order.
// @Tags Statements
// @Accept json
// @Produce json
// @Param statement body StatementRequest true "Statement and parameters"
// @Success 200 {object} response.SuccessResponse{data=SelectResponse}
// @Failure 400 {object} response.ErrorResponse "Invalid request, statement or parameters"
// @Failure 500 {object} response.ErrorResponse "Statement execution failed"
// @Failure 503 {object} response.ErrorResponse "Database unavailable"
// @Router /statements/select [post]
func (h *StatementHandler) Select(c *gin.Context) {
	req, ok := h.bindRequest(c)
	if !ok {
		return
	}

	rows, err := h.runner.Select(c.Request.Context(), req)
	if h.handleStatementError(c, err, storage.OpSelect) {
		return
	}

	response.OK(c, SelectResponse{Rows: rows, Count: len(rows)})
}

// Update godoc
// @Summary Run an UPDATE statement
// @Description Prepares the query, binds the typed values and returns the number of affected rows.
// @Tags Statements
// @Accept json
// @Produce json
// @Param statement body StatementRequest true "Statement and parameters"
// @Success 200 {object} response.SuccessResponse{data=storage.ExecResult}
// @Failure 400 {object} response.ErrorResponse "Invalid request, statement or parameters"
// @Failure 409 {object} response.ErrorResponse "Duplicate key"
// @Failure 500 {object} response.ErrorResponse "Statement execution failed"
// @Failure 503 {object} response.ErrorResponse "Database unavailable"
// @Router /statements/update [post]
func (h *StatementHandler) Update(c *gin.Context) {
	req, ok := h.bindRequest(c)
	if !ok {
		return
	}

	result, err := h.runner.Update(c.Request.Context(), req)
	if h.handleStatementError(c, err, storage.OpUpdate) {
		return
	}

	response.OK(c, result)
}

// Remove godoc
// @Summary Run a DELETE statement
// @Description Prepares the query, binds the typed values and returns the number of removed rows.
// @Tags Statements
// @Accept json
// @Produce json
// @Param statement body StatementRequest true "Statement and parameters"
// @Success 200 {object} response.SuccessResponse{data=storage.ExecResult}
// @Failure 400 {object} response.ErrorResponse "Invalid request, statement or parameters"
// @Failure 500 {object} response.ErrorResponse "Statement execution failed"
// @Failure 503 {object} response.ErrorResponse "Database unavailable"
// @Router /statements/remove [post]
func (h *StatementHandler) Remove(c *gin.Context) {
	req, ok := h.bindRequest(c)
	if !ok {
		return
	}

	result, err := h.runner.Remove(c.Request.Context(), req)
	if h.handleStatementError(c, err, storage.OpRemove) {
		return
	}

	response.OK(c, result)
}

// bindRequest validates the body against the request schema and converts it
// into typed parameters. It writes the 400 response itself on failure.
func (h *StatementHandler) bindRequest(c *gin.Context) (statements.Request, bool) {
	requestID := response.GetRequestID(c)

	body, err := c.GetRawData()
	if err != nil {
		response.BadRequest(c, "invalid request body", err.Error())
		return statements.Request{}, false
	}

	result, err := statementSchema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		h.logger.Warn("invalid statement request body", zap.Error(err), logging.RequestID(requestID))
		response.BadRequest(c, "invalid request body", err.Error())
		return statements.Request{}, false
	}
	if !result.Valid() {
		var errorMessages []string
		for _, desc := range result.Errors() {
			errorMessages = append(errorMessages, desc.String())
		}
		h.logger.Warn("statement request schema validation failed",
			zap.Strings("errors", errorMessages),
			logging.RequestID(requestID),
		)
		response.BadRequest(c, "request schema validation failed", errorMessages)
		return statements.Request{}, false
	}

	var payload StatementRequest
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()
	if err := decoder.Decode(&payload); err != nil {
		response.BadRequest(c, "invalid request body", err.Error())
		return statements.Request{}, false
	}

	params, err := bindParams(payload.Types, payload.Values)
	if err != nil {
		response.BadRequest(c, "invalid parameters", err.Error())
		return statements.Request{}, false
	}

	return statements.Request{
		Query:     payload.Query,
		Params:    params,
		RequestID: middleware.RequestIDFromContext(c.Request.Context()),
	}, true
}

// bindParams tags values with their kinds and decodes base64 blob values.
func bindParams(types string, values []interface{}) ([]storage.Param, error) {
	params, err := storage.Bind(types, values...)
	if err != nil {
		return nil, err
	}

	for i, p := range params {
		if p.Kind != storage.KindBlob || p.Value == nil {
			continue
		}
		encoded, ok := p.Value.(string)
		if !ok {
			return nil, fmt.Errorf("param %d: blob values must be base64 strings", i+1)
		}
		decoded, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("param %d: %w", i+1, err)
		}
		params[i].Value = decoded
	}
	return params, nil
}

func (h *StatementHandler) handleStatementError(c *gin.Context, err error, operation string) bool {
	if err == nil {
		return false
	}

	var (
		prepareErr *storage.PrepareError
		bindErr    *storage.BindError
	)
	switch {
	case errors.As(err, &prepareErr):
		response.BadRequest(c, "statement could not be prepared", prepareErr.Err.Error())
	case errors.As(err, &bindErr):
		response.BadRequest(c, "parameters could not be bound", bindErr.Err.Error())
	case storage.IsDuplicateKey(err):
		response.Conflict(c, "duplicate key", err.Error())
	case storage.IsConnectionFatal(err):
		h.logger.Error(operation+" failed, database unavailable",
			zap.Error(err),
			logging.RequestID(response.GetRequestID(c)),
		)
		response.ServiceUnavailable(c, "database unavailable")
	default:
		h.logger.Error(operation+" failed",
			zap.Error(err),
			logging.RequestID(response.GetRequestID(c)),
		)
		response.InternalServerError(c, "statement execution failed")
	}
	return true
}
