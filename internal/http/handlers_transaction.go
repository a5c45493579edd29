package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"

	"finviz/internal/core"
	"finviz/internal/form"
	"finviz/internal/log"
)

// transactionResponse is the wire form of a transaction. Amount is a JSON
// number carrying the exact decimal.
type transactionResponse struct {
	ID          string      `json:"id"`
	Amount      json.Number `json:"amount"`
	Description string      `json:"description"`
	Date        string      `json:"date"`
}

func toResponse(t core.Transaction) transactionResponse {
	return transactionResponse{
		ID:          t.ID,
		Amount:      json.Number(t.Amount.String()),
		Description: t.Description,
		Date:        t.Date.String(),
	}
}

func toResponses(txs []core.Transaction) []transactionResponse {
	out := make([]transactionResponse, 0, len(txs))
	for _, t := range txs {
		out = append(out, toResponse(t))
	}
	return out
}

// handleListTransactions returns every transaction, newest date first.
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := s.dashboard.Transactions(r.Context())
	if err != nil {
		s.failInternal(w, r, "List transactions failed", err, log.OpList)
		return
	}
	NewResponse().JSON(toResponses(txs)).Write(w)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeStrict(w, r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	in, err := req.Input()
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	nt, errs := form.Validate(in)
	if !errs.OK() {
		ValidationErrorResponse(errs).Write(w)
		return
	}

	created, err := s.api.Create(r.Context(), nt)
	if err != nil {
		s.writeServiceError(w, r, "Create transaction failed", err, log.OpCreate)
		return
	}

	atomic.AddInt64(&s.appMetrics.created, 1)
	s.structured.LogTransactionMutation(r.Context(), log.OpCreate, created)

	NewResponse().
		Status(http.StatusCreated).
		Header("Location", "/transactions/"+created.ID).
		TriggerChanged(core.OpCreated, created.ID).
		JSON(toResponse(created)).
		Write(w)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	t, err := s.api.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, "Get transaction failed", err, log.OpRead)
		return
	}
	NewResponse().JSON(toResponse(t)).Write(w)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req patchRequest
	if err := decodeStrict(w, r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	in, err := req.Input()
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	patch, errs := form.ValidatePatch(in)
	if !errs.OK() {
		ValidationErrorResponse(errs).Write(w)
		return
	}

	res, err := s.api.Update(r.Context(), id, patch)
	if err != nil {
		s.writeServiceError(w, r, "Update transaction failed", err, log.OpUpdate)
		return
	}
	if !res.Found() {
		NotFoundError(core.ErrNotFound.Error()).Write(w)
		return
	}

	atomic.AddInt64(&s.appMetrics.updated, 1)
	s.structured.LogTransactionMutation(r.Context(), log.OpUpdate, res.Transaction)

	NewResponse().
		TriggerChanged(core.OpUpdated, id).
		JSON(toResponse(res.Transaction)).
		Write(w)
}

// handleDeleteTransaction succeeds whether or not the id existed.
func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := s.api.Delete(r.Context(), id); err != nil {
		s.writeServiceError(w, r, "Delete transaction failed", err, log.OpDelete)
		return
	}

	atomic.AddInt64(&s.appMetrics.deleted, 1)
	s.logger.InfoContext(r.Context(), "Transaction delete succeeded",
		log.FieldTransactionID, id,
		log.FieldOperation, log.OpDelete)

	NewResponse().
		TriggerChanged(core.OpDeleted, id).
		JSON(map[string]bool{"success": true}).
		Write(w)
}

// writeServiceError maps domain errors to status codes.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, msg string, err error, op string) {
	var verr *core.ValidationError
	switch {
	case errors.As(err, &verr):
		ValidationErrorResponse(verr.Fields).Write(w)
	case errors.Is(err, core.ErrNotFound):
		NotFoundError(core.ErrNotFound.Error()).Write(w)
	default:
		s.failInternal(w, r, msg, err, op)
	}
}

func (s *Server) failInternal(w http.ResponseWriter, r *http.Request, msg string, err error, op string) {
	s.structured.LogError(r.Context(), msg, err, log.ComponentTransaction, op, nil)
	InternalServerError().Write(w)
}
