package signing

// Signer signs records on behalf of a local identity.
type Signer interface {
	Sign(d Domain, msg []byte) []byte
	PublicKey() *PublicKey
}

// Verifier checks signatures of remote identities.
type Verifier interface {
	Verify(d Domain, pub *PublicKey, msg, sig []byte) bool
}
