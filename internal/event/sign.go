package event

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
)

// Validation failures. Both mean the event must never be stored; callers
// log and drop.
var (
	ErrIDMismatch   = errors.New("event id does not match canonical hash")
	ErrBadSignature = errors.New("event signature verification failed")
)

// Validate checks the event's content-derived identity and its schnorr
// signature. It is pure — no storage access, no side effects — and must run
// before any mutation; skipping it is a correctness defect, which is why the
// ingestion pipeline calls it itself rather than trusting callers.
func Validate(ev *Event) error {
	ok, err := CheckID(ev)
	if err != nil {
		return err
	}
	if !ok {
		return ErrIDMismatch
	}

	ok, err = CheckSignature(ev)
	if err != nil {
		return err
	}
	if !ok {
		return ErrBadSignature
	}
	return nil
}

// CheckSignature verifies the 64-byte schnorr signature over the id's raw
// bytes against the claimed x-only signer key. It does not recompute the id;
// use Validate for the full check.
func CheckSignature(ev *Event) (bool, error) {
	pkBytes, err := hex.DecodeString(ev.PubKey)
	if err != nil {
		return false, fmt.Errorf("invalid pubkey hex: %w", err)
	}
	pk, err := schnorr.ParsePubKey(pkBytes)
	if err != nil {
		return false, fmt.Errorf("invalid pubkey: %w", err)
	}

	sigBytes, err := hex.DecodeString(ev.Sig)
	if err != nil {
		return false, fmt.Errorf("invalid sig hex: %w", err)
	}
	sig, err := schnorr.ParseSignature(sigBytes)
	if err != nil {
		return false, fmt.Errorf("invalid sig: %w", err)
	}

	idBytes, err := hex.DecodeString(ev.ID)
	if err != nil {
		return false, fmt.Errorf("invalid id hex: %w", err)
	}

	return sig.Verify(idBytes, pk), nil
}

// Sign computes the event's id from its current fields and signs it with the
// given 32-byte secret key, filling in ID, PubKey and Sig. Used by the keygen
// tooling and test fixtures; the relay itself only ever verifies.
func Sign(ev *Event, secretKey []byte) error {
	if len(secretKey) != 32 {
		return fmt.Errorf("secret key must be 32 bytes, got %d", len(secretKey))
	}

	sk, _ := btcec.PrivKeyFromBytes(secretKey)
	ev.PubKey = hex.EncodeToString(schnorr.SerializePubKey(sk.PubKey()))

	id, err := ComputeID(ev)
	if err != nil {
		return err
	}
	ev.ID = id

	idBytes, err := hex.DecodeString(id)
	if err != nil {
		return fmt.Errorf("invalid id hex: %w", err)
	}
	sig, err := schnorr.Sign(sk, idBytes)
	if err != nil {
		return fmt.Errorf("sign event: %w", err)
	}
	ev.Sig = hex.EncodeToString(sig.Serialize())

	return nil
}

// GenerateKey returns a fresh (secretKey, pubKey) hex pair.
func GenerateKey() (sk string, pk string, err error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return "", "", fmt.Errorf("generate key: %w", err)
	}
	sk = hex.EncodeToString(priv.Serialize())
	pk = hex.EncodeToString(schnorr.SerializePubKey(priv.PubKey()))
	return sk, pk, nil
}
