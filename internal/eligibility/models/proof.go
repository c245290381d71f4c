package models

// Proof is the tagged variant a prover submits: either the literal preimage
// (legacy mode) or a Groth16 artifact (proof-system mode). The sealed
// interface forces call sites into an exhaustive type switch instead of
// sniffing blob lengths at runtime.
type Proof interface {
	isProof()
}

// LegacyProof discloses the (secret, nullifier) preimage directly. The gate
// recomputes the one-way hash and requires bitwise equality with the stored
// commitment. Kept for provers that predate the proof system.
type LegacyProof struct {
	Secret    []byte
	Nullifier []byte
}

func (LegacyProof) isProof() {}

// Groth16Proof is a serialized zk-SNARK artifact. The gate delegates to the
// injected verifier with the claimed commitment as the public input.
type Groth16Proof struct {
	Blob []byte
}

func (Groth16Proof) isProof() {}
