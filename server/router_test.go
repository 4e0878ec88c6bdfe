package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	cwb "github.com/mynextid/zk-xmldsig/circuits/witness-bounds"
	"github.com/mynextid/zk-xmldsig/common"
	"github.com/mynextid/zk-xmldsig/server/api"
	"github.com/mynextid/zk-xmldsig/witness"
)

func testRouter(t *testing.T) http.Handler {
	t.Helper()
	return serverRouter(t, api.NewServer(api.NewCircuitRegistry()))
}

func serverRouter(t *testing.T, s *api.Server) http.Handler {
	t.Helper()
	cfg := &ServeConfig{
		MaxRequestSize: 1 << 20,
		WriteTimeout:   time.Minute,
		EnableCORS:     true,
		CorsOrigins:    []string{"*"},
	}
	return setupRouter(s, cfg, NewLogger(io.Discard, "debug", "json"))
}

func signedCredential(t *testing.T) string {
	t.Helper()
	signed, err := common.SignXML(common.SampleCredential("PAN", "AAAAA0000A"), common.SignOptions{})
	if err != nil {
		t.Fatal(err)
	}
	return string(signed.Document)
}

// corruptSignature flips a byte in the middle of the signature value
func corruptSignature(doc string) string {
	mid := strings.Index(doc, "<ds:SignatureValue>") + len("<ds:SignatureValue>") + 100
	flipped := "A"
	if doc[mid] == 'A' {
		flipped = "B"
	}
	return doc[:mid] + flipped + doc[mid+1:]
}

func post(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestWitnessEndpoint(t *testing.T) {
	h := testRouter(t)

	rr := post(t, h, "/witness", api.WitnessRequest{
		XML: signedCredential(t),
		Params: api.WitnessParams{
			NullifierSeed: "123456789",
			RevealStart:   `num="`,
			RevealEnd:     `"`,
		},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rr.Code, rr.Body.String())
	}

	var resp api.WitnessResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if _, err := uuid.Parse(resp.ID); err != nil {
		t.Fatalf("id %q is not a uuid", resp.ID)
	}
	if resp.Witness == nil || resp.Witness.IsRevealEnabled != "1" || resp.Witness.NullifierSeed != "123456789" {
		t.Fatalf("unexpected witness %+v", resp.Witness)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content type %q", ct)
	}
}

func TestWitnessEndpointErrors(t *testing.T) {
	h := testRouter(t)
	doc := signedCredential(t)

	corrupted := corruptSignature(doc)

	cases := []struct {
		name   string
		body   any
		status int
		code   string
	}{
		{"missing xml", api.WitnessRequest{}, http.StatusBadRequest, "missing_input"},
		{"invalid json", "not an object", http.StatusBadRequest, "invalid_json"},
		{"negative seed", api.WitnessRequest{XML: doc, Params: api.WitnessParams{NullifierSeed: "-1"}}, http.StatusUnprocessableEntity, "seed_out_of_field"},
		{"malformed document", api.WitnessRequest{XML: "<a>", Params: api.WitnessParams{NullifierSeed: "1"}}, http.StatusUnprocessableEntity, "malformed_document"},
		{"corrupted signature", api.WitnessRequest{XML: corrupted, Params: api.WitnessParams{NullifierSeed: "1"}}, http.StatusUnprocessableEntity, "signature_verification"},
		{"bad signal", api.WitnessRequest{XML: doc, Params: api.WitnessParams{NullifierSeed: "1", Signal: "abc"}}, http.StatusUnprocessableEntity, "value_out_of_range"},
		{"missing delimiter", api.WitnessRequest{XML: doc, Params: api.WitnessParams{NullifierSeed: "1", RevealStart: `dob="`, RevealEnd: `"`}}, http.StatusUnprocessableEntity, "delimiter_not_found"},
		{"bad limb width", api.WitnessRequest{XML: doc, Params: api.WitnessParams{NullifierSeed: "1", LimbBits: 300}}, http.StatusBadRequest, "invalid_params"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := post(t, h, "/witness", tc.body)
			if rr.Code != tc.status {
				t.Fatalf("status %d, expected %d: %s", rr.Code, tc.status, rr.Body.String())
			}
			var resp api.ErrorResponse
			if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
				t.Fatal(err)
			}
			if resp.Code != tc.code {
				t.Fatalf("code %q, expected %q", resp.Code, tc.code)
			}
		})
	}
}

func TestCircuitEndpoints(t *testing.T) {
	h := testRouter(t)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("health status %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/circuits", nil))
	var list api.CircuitListResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if list.Count != len(api.CircuitList) {
		t.Fatalf("%d circuits listed", list.Count)
	}
	for _, c := range list.Circuits {
		if c.Loaded {
			t.Fatalf("circuit %s reported loaded", c.Name)
		}
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/circuits/unknown", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("unknown circuit status %d", rr.Code)
	}

	rr = post(t, h, "/prove/witness-bounds", api.ProveRequest{})
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("prove without setup status %d", rr.Code)
	}
}

func TestWitnessEndpointDefaultSeed(t *testing.T) {
	rr := post(t, testRouter(t), "/witness", api.WitnessRequest{XML: signedCredential(t)})
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rr.Code, rr.Body.String())
	}
	var resp api.WitnessResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Witness.NullifierSeed != "123456789" {
		t.Fatalf("seed %s, expected the default", resp.Witness.NullifierSeed)
	}
}

func TestRequestTooLarge(t *testing.T) {
	s := api.NewServer(api.NewCircuitRegistry())
	s.MaxBodySize = 512
	h := serverRouter(t, s)

	rr := post(t, h, "/witness", api.WitnessRequest{XML: signedCredential(t)})
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status %d: %s", rr.Code, rr.Body.String())
	}
	var resp api.ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Code != "request_too_large" {
		t.Fatalf("code %q", resp.Code)
	}
}

const (
	proveCapacity           = 256
	proveSignedInfoCapacity = 1024
)

func proveParser() *cwb.InputParser {
	return &cwb.InputParser{
		Capacity:           proveCapacity,
		SignedInfoCapacity: proveSignedInfoCapacity,
		LimbCount:          witness.DefaultLimbCount,
	}
}

// documents are rejected by the witness pipeline before any proving key is touched
func TestProveDocumentErrors(t *testing.T) {
	registry := api.NewCircuitRegistry()
	if err := registry.Register("witness-bounds", &api.Circuit{InputParser: proveParser()}); err != nil {
		t.Fatal(err)
	}
	h := serverRouter(t, api.NewServer(registry))
	doc := signedCredential(t)

	cases := []struct {
		name   string
		body   api.ProveRequest
		status int
		code   string
	}{
		{"no input", api.ProveRequest{}, http.StatusBadRequest, "missing_input"},
		{"corrupted signature", api.ProveRequest{XML: corruptSignature(doc)}, http.StatusUnprocessableEntity, "signature_verification"},
		{"malformed document", api.ProveRequest{XML: "<a>"}, http.StatusUnprocessableEntity, "malformed_document"},
		{"capacity exceeded", api.ProveRequest{XML: doc, Params: api.WitnessParams{MaxInputLength: 64}}, http.StatusUnprocessableEntity, "capacity_exceeded"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := post(t, h, "/prove/witness-bounds", tc.body)
			if rr.Code != tc.status {
				t.Fatalf("status %d, expected %d: %s", rr.Code, tc.status, rr.Body.String())
			}
			var resp api.ErrorResponse
			if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
				t.Fatal(err)
			}
			if resp.Code != tc.code {
				t.Fatalf("code %q, expected %q", resp.Code, tc.code)
			}
		})
	}
}

func TestProveDocument(t *testing.T) {
	if testing.Short() {
		t.Skip("groth16 setup is slow")
	}

	dir := t.TempDir()
	template := cwb.New(proveCapacity, proveSignedInfoCapacity, witness.DefaultLimbBits, witness.DefaultLimbCount, witness.DefaultSelector)
	ccs, pk, vk, err := common.InitCircuit(
		filepath.Join(dir, "witness-bounds.ccs"),
		filepath.Join(dir, "witness-bounds.pk"),
		filepath.Join(dir, "witness-bounds.vk"),
		true, template)
	if err != nil {
		t.Fatal(err)
	}

	registry := api.NewCircuitRegistry()
	if err := registry.Register("witness-bounds", &api.Circuit{
		CS:           ccs,
		ProvingKey:   pk,
		VerifyingKey: vk,
		InputParser:  proveParser(),
	}); err != nil {
		t.Fatal(err)
	}
	h := serverRouter(t, api.NewServer(registry))

	rr := post(t, h, "/prove/witness-bounds", api.ProveRequest{
		XML: signedCredential(t),
		Params: api.WitnessParams{
			RevealStart:    `num="`,
			RevealEnd:      `"`,
			MaxInputLength: proveCapacity,
		},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("prove status %d: %s", rr.Code, rr.Body.String())
	}
	var proved api.ProveResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &proved); err != nil {
		t.Fatal(err)
	}
	if proved.Proof == "" || len(proved.PublicInput) == 0 {
		t.Fatalf("incomplete response %s", rr.Body.String())
	}

	rr = post(t, h, "/verify/witness-bounds", api.VerifyRequest{
		PublicInput: proved.PublicInput,
		Proof:       proved.Proof,
	})
	var verified api.VerifyResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &verified); err != nil {
		t.Fatal(err)
	}
	if !verified.Valid {
		t.Fatalf("proof rejected: %s", verified.Message)
	}
}
