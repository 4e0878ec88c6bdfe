package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/mynextid/zk-xmldsig/partialsha"
	"github.com/mynextid/zk-xmldsig/reveal"
	"github.com/mynextid/zk-xmldsig/signal"
	"github.com/mynextid/zk-xmldsig/verifier"
	"github.com/mynextid/zk-xmldsig/witness"
	"github.com/mynextid/zk-xmldsig/xmldsig"
)

// WitnessRequest carries a signed document and the generation parameters
type WitnessRequest struct {
	XML    string        `json:"xml"`
	Params WitnessParams `json:"params"`
}

// WitnessParams mirrors witness.Params; big integers are decimal or 0x strings
type WitnessParams struct {
	NullifierSeed  string `json:"nullifier_seed"`
	RevealStart    string `json:"reveal_start,omitempty"`
	RevealEnd      string `json:"reveal_end,omitempty"`
	Signal         string `json:"signal,omitempty"`
	MaxInputLength int    `json:"max_input_length,omitempty"`
	LimbBits       int    `json:"limb_bits,omitempty"`
	LimbCount      int    `json:"limb_count,omitempty"`
	Selector       string `json:"selector,omitempty"`
}

// WitnessResponse holds a generated witness record
type WitnessResponse struct {
	ID        string          `json:"id"`
	Witness   *witness.Record `json:"witness"`
	Timestamp time.Time       `json:"timestamp"`
}

// errorCodes maps pipeline errors to stable response codes
var errorCodes = []struct {
	err  error
	code string
}{
	{xmldsig.ErrMalformedDocument, "malformed_document"},
	{xmldsig.ErrReferenceCount, "reference_count"},
	{verifier.ErrSignatureVerification, "signature_verification"},
	{verifier.ErrReferenceDigestNotFound, "reference_digest_not_found"},
	{partialsha.ErrSelectorNotFound, "selector_not_found"},
	{partialsha.ErrCapacityExceeded, "capacity_exceeded"},
	{reveal.ErrDelimiterNotFound, "delimiter_not_found"},
	{reveal.ErrRevealTooLarge, "reveal_too_large"},
	{signal.ErrValueOutOfRange, "value_out_of_range"},
	{witness.ErrSeedOutOfField, "seed_out_of_field"},
}

// ErrorCode returns the response code of a pipeline error, false for anything else
func ErrorCode(err error) (string, bool) {
	for _, c := range errorCodes {
		if errors.Is(err, c.err) {
			return c.code, true
		}
	}
	return "", false
}

// Params converts the request parameters
func (p WitnessParams) Params() (witness.Params, error) {
	params := witness.Params{
		RevealStart:    p.RevealStart,
		RevealEnd:      p.RevealEnd,
		MaxInputLength: p.MaxInputLength,
		LimbBits:       p.LimbBits,
		LimbCount:      p.LimbCount,
		Selector:       p.Selector,
	}

	var err error
	if p.NullifierSeed != "" {
		if params.NullifierSeed, err = signal.Parse(p.NullifierSeed); err != nil {
			return params, fmt.Errorf("nullifier_seed: %w", err)
		}
	}
	if p.Signal != "" {
		if params.Signal, err = signal.Parse(p.Signal); err != nil {
			return params, fmt.Errorf("signal: %w", err)
		}
	}
	return params, nil
}

// HandleWitness runs the witness pipeline over the posted document
func (s *Server) HandleWitness(w http.ResponseWriter, r *http.Request) {
	var req WitnessRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	if req.XML == "" {
		respondError(w, http.StatusBadRequest, "missing_input", "xml is required")
		return
	}

	params, err := req.Params.Params()
	if err != nil {
		s.respondPipelineError(w, err)
		return
	}

	rec, err := witness.Generate([]byte(req.XML), params)
	if err != nil {
		s.respondPipelineError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, WitnessResponse{
		ID:        uuid.NewString(),
		Witness:   rec,
		Timestamp: time.Now(),
	})
}

func (s *Server) respondPipelineError(w http.ResponseWriter, err error) {
	if code, ok := ErrorCode(err); ok {
		respondError(w, http.StatusUnprocessableEntity, code, err.Error())
		return
	}
	respondError(w, http.StatusBadRequest, "invalid_params", err.Error())
}
