package shachain

import (
	"io"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Producer is the generating side of the shachain PRF: given a single root
// secret, it deterministically derives the per-commitment secret for any
// commitment height, using the same bit-flip derivation the receiving side's
// RevocationStore uses to re-derive any secret it has already been handed.
type Producer interface {
	// AtIndex derives the secret for the given commitment height.
	AtIndex(height uint64) (*chainhash.Hash, error)

	// Encode writes a binary serialization of the producer's root to w.
	Encode(w io.Writer) error
}

// RevocationProducer derives per-commitment secrets from a single root hash,
// grounded on §4.2's "per-commitment secret via BIP-32-like hierarchical
// derivation from a local seed indexed by commitment number" — the shachain
// root plays the role of that local seed.
type RevocationProducer struct {
	root element
}

// A compile-time check that RevocationProducer implements Producer.
var _ Producer = (*RevocationProducer)(nil)

// NewRevocationProducer creates a producer rooted at the given hash. The
// root is ordinarily itself derived from the node's master seed plus the
// channel ID, so that per-channel secrets never collide and never leak
// information about other channels.
func NewRevocationProducer(root chainhash.Hash) *RevocationProducer {
	return &RevocationProducer{
		root: element{index: rootIndex, hash: root},
	}
}

// NewRevocationProducerFromBytes restores a producer from its serialized
// root.
func NewRevocationProducerFromBytes(r io.Reader) (*RevocationProducer, error) {
	var h chainhash.Hash
	if _, err := io.ReadFull(r, h[:]); err != nil {
		return nil, err
	}

	return NewRevocationProducer(h), nil
}

// AtIndex derives the secret for the given commitment height by walking the
// root forward via the shachain bit-flip derivation.
//
// NOTE: This is part of the Producer interface.
func (p *RevocationProducer) AtIndex(height uint64) (*chainhash.Hash, error) {
	child, err := p.root.derive(newIndex(height))
	if err != nil {
		return nil, err
	}

	return &child.hash, nil
}

// Encode writes a binary serialization of the producer's root to w.
//
// NOTE: This is part of the Producer interface.
func (p *RevocationProducer) Encode(w io.Writer) error {
	_, err := w.Write(p.root.hash[:])
	return err
}
