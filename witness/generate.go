package witness

import (
	"math/big"

	"github.com/mynextid/zk-xmldsig/partialsha"
	"github.com/mynextid/zk-xmldsig/reveal"
	"github.com/mynextid/zk-xmldsig/signal"
	"github.com/mynextid/zk-xmldsig/verifier"
	"github.com/mynextid/zk-xmldsig/xmldsig"
)

// Generate runs the whole pipeline over a signed document: extraction, local verification,
// hash precompute, reveal window, signal hash and assembly. The first failing stage aborts.
func Generate(doc []byte, params Params) (*Record, error) {
	params = params.withDefaults()
	if err := params.validate(); err != nil {
		return nil, err
	}

	info, payload, err := xmldsig.Extract(doc)
	if err != nil {
		return nil, err
	}

	v := &verifier.Verifier{Digests: params.Digests}
	verification, err := v.Verify(info, payload)
	if err != nil {
		return nil, err
	}

	selector := []byte(params.Selector)
	pre, err := partialsha.Precompute(payload, selector, params.MaxInputLength)
	if err != nil {
		return nil, err
	}
	data := pre.Remainder[:pre.RemainderLength]

	window, err := reveal.Locate(data, pre.SelectorIndex, params.RevealStart, params.RevealEnd)
	if err != nil {
		return nil, err
	}

	docType, err := reveal.DocumentType(data, pre.SelectorIndex, selector)
	if err != nil {
		return nil, err
	}

	sig := params.Signal
	if sig == nil {
		sig = big.NewInt(signal.Default)
	}
	signalHash, err := signal.Hash(sig)
	if err != nil {
		return nil, err
	}

	return Assemble(Inputs{
		Info:         info,
		Verification: verification,
		Precompute:   pre,
		Window:       window,
		DocumentType: docType,
		SignalHash:   signalHash,
	}, params)
}
