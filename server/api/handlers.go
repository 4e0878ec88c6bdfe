package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mynextid/zk-xmldsig/witness"
)

// DefaultMaxBodySize bounds request bodies when the server is not configured otherwise
const DefaultMaxBodySize = 10 << 20

// Server handles HTTP requests for witness preparation and ZK proof operations
type Server struct {
	registry *CircuitRegistry

	// MaxBodySize is the largest accepted request body in bytes
	MaxBodySize int64
}

// NewServer creates a new HTTP server
func NewServer(registry *CircuitRegistry) *Server {
	return &Server{
		registry:    registry,
		MaxBodySize: DefaultMaxBodySize,
	}
}

// ==== Request/Response Types ====

// ProveRequest is either a signed document with witness parameters, or the public and
// private input JSON of the circuit
type ProveRequest struct {
	XML    string        `json:"xml,omitempty"`
	Params WitnessParams `json:"params"`

	PublicInput  json.RawMessage `json:"public_input,omitempty"`
	PrivateInput json.RawMessage `json:"private_input,omitempty"`
}

// ProveResponse carries the proof and, for documents, the public input to verify it with
type ProveResponse struct {
	Proof       string          `json:"proof"` // base64 encoded
	PublicInput json.RawMessage `json:"public_input,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
}

// VerifyRequest represents a proof verification request
type VerifyRequest struct {
	PublicInput json.RawMessage `json:"public_input"`
	Proof       string          `json:"proof"` // base64 encoded
}

// VerifyResponse represents a proof verification response
type VerifyResponse struct {
	Valid     bool      `json:"valid"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error     string    `json:"error"`
	Code      string    `json:"code,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// CircuitInfoResponse represents circuit information
type CircuitInfoResponse struct {
	Name        string `json:"name"`
	Version     uint   `json:"version"`
	Description string `json:"description,omitempty"`
	Loaded      bool   `json:"loaded"`
}

// CircuitListResponse represents a list of circuits
type CircuitListResponse struct {
	Circuits []CircuitInfoResponse `json:"circuits"`
	Count    int                   `json:"count"`
}

// ==== Handlers ====

// HandleHealth handles health check requests
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// HandleListCircuits lists all available circuits, sorted by name
func (s *Server) HandleListCircuits(w http.ResponseWriter, r *http.Request) {
	circuits := make([]CircuitInfoResponse, 0, len(CircuitList))
	for name, info := range CircuitList {
		circuits = append(circuits, s.describe(name, info))
	}
	sort.Slice(circuits, func(i, j int) bool { return circuits[i].Name < circuits[j].Name })

	respondJSON(w, http.StatusOK, CircuitListResponse{
		Circuits: circuits,
		Count:    len(circuits),
	})
}

// HandleGetCircuit gets information about a specific circuit
func (s *Server) HandleGetCircuit(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "circuit")
	info, ok := CircuitList[name]
	if !ok {
		respondError(w, http.StatusNotFound, "circuit_not_found",
			fmt.Sprintf("circuit '%s' not found", name))
		return
	}
	respondJSON(w, http.StatusOK, s.describe(name, info))
}

// HandleProve proves either a signed document, running the witness pipeline first, or
// raw circuit inputs
func (s *Server) HandleProve(w http.ResponseWriter, r *http.Request) {
	name, circuit, ok := s.loadedCircuit(w, r)
	if !ok {
		return
	}

	var req ProveRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	var proof, publicInput []byte
	var err error
	switch {
	case req.XML != "":
		var params witness.Params
		if params, err = req.Params.Params(); err != nil {
			s.respondPipelineError(w, err)
			return
		}
		rec, genErr := witness.Generate([]byte(req.XML), params)
		if genErr != nil {
			s.respondPipelineError(w, genErr)
			return
		}
		proof, publicInput, err = circuit.ProveRecord(rec)

	case len(req.PublicInput) > 0 && len(req.PrivateInput) > 0:
		proof, err = circuit.ProveWithJSON(req.PublicInput, req.PrivateInput)

	default:
		respondError(w, http.StatusBadRequest, "missing_input",
			"either xml or both public_input and private_input are required")
		return
	}

	if err != nil {
		respondError(w, http.StatusInternalServerError, "proof_generation_failed",
			fmt.Sprintf("failed to generate a %s proof: %v", name, err))
		return
	}

	respondJSON(w, http.StatusOK, ProveResponse{
		Proof:       base64.StdEncoding.EncodeToString(proof),
		PublicInput: publicInput,
		Timestamp:   time.Now(),
	})
}

// HandleVerify handles proof verification requests
func (s *Server) HandleVerify(w http.ResponseWriter, r *http.Request) {
	_, circuit, ok := s.loadedCircuit(w, r)
	if !ok {
		return
	}

	var req VerifyRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if len(req.PublicInput) == 0 || req.Proof == "" {
		respondError(w, http.StatusBadRequest, "missing_input",
			"both public_input and proof are required")
		return
	}

	proofBytes, err := base64.StdEncoding.DecodeString(req.Proof)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_proof_encoding",
			fmt.Sprintf("failed to decode proof: %v", err))
		return
	}

	response := VerifyResponse{Valid: true, Message: "proof is valid", Timestamp: time.Now()}
	if err := circuit.Public().VerifyWithJSON(req.PublicInput, proofBytes); err != nil {
		response.Valid = false
		response.Message = fmt.Sprintf("verification failed: %v", err)
	}
	respondJSON(w, http.StatusOK, response)
}

// ==== Helper Functions ====

func (s *Server) describe(name string, info CircuitInfo) CircuitInfoResponse {
	_, loaded := s.registry.Circuits[name]
	return CircuitInfoResponse{
		Name:        info.Name,
		Version:     info.Version,
		Description: info.Description,
		Loaded:      loaded,
	}
}

// loadedCircuit resolves the {circuit} URL parameter, answering 404 for unknown circuits
// and 503 for circuits without setup files
func (s *Server) loadedCircuit(w http.ResponseWriter, r *http.Request) (string, *Circuit, bool) {
	name := chi.URLParam(r, "circuit")
	if _, ok := CircuitList[name]; !ok {
		respondError(w, http.StatusNotFound, "circuit_not_found",
			fmt.Sprintf("circuit '%s' not found", name))
		return name, nil, false
	}

	circuit, err := s.registry.Get(name)
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "circuit_not_loaded",
			fmt.Sprintf("circuit '%s' is not loaded: %v", name, err))
		return name, nil, false
	}
	return name, circuit, true
}

// decodeJSON reads at most MaxBodySize bytes into v and answers the error itself
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	limit := s.MaxBodySize
	if limit <= 0 {
		limit = DefaultMaxBodySize
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "request_too_large",
				fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
			return false
		}
		respondError(w, http.StatusBadRequest, "invalid_json",
			fmt.Sprintf("failed to parse request: %v", err))
		return false
	}
	return true
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// respondError writes an error response
func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error:     message,
		Code:      code,
		Timestamp: time.Now(),
	})
}
