package api

import (
	cwb "github.com/mynextid/zk-xmldsig/circuits/witness-bounds"
	"github.com/mynextid/zk-xmldsig/partialsha"
	"github.com/mynextid/zk-xmldsig/witness"
)

const (
	DATA_CAPACITY        = partialsha.DefaultCapacity
	SIGNED_INFO_CAPACITY = 1024
)

var CircuitList = map[string]CircuitInfo{
	"witness-bounds": {
		Circuit: cwb.New(
			DATA_CAPACITY,
			SIGNED_INFO_CAPACITY,
			witness.DefaultLimbBits,
			witness.DefaultLimbCount,
			witness.DefaultSelector,
		),
		Name:        "witness-bounds",
		Version:     1,
		Description: "Checks that a witness record fits the buffers, limb widths and reveal bounds of a BN254 credential circuit",
		InputParser: &cwb.InputParser{
			Capacity:           DATA_CAPACITY,
			SignedInfoCapacity: SIGNED_INFO_CAPACITY,
			LimbCount:          witness.DefaultLimbCount,
		},
	},
}
