package tx

import (
	"context"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/meigma/dataanchor/core"
)

// ErrBadSignature indicates a signature does not verify against its signer.
var ErrBadSignature = errors.New("tx: signature verification failed")

// Transaction is a message with its signatures.
type Transaction struct {
	Signatures []core.Signature
	Message    *Message
}

// Sign signs msg with signer, which must be the message's only required signer.
func Sign(ctx context.Context, msg *Message, signer core.Signer) (*Transaction, error) {
	if msg.Header.NumRequiredSignatures != 1 {
		return nil, fmt.Errorf("tx: message requires %d signatures, only single-signer messages are supported", msg.Header.NumRequiredSignatures)
	}
	if len(msg.AccountKeys) == 0 || msg.AccountKeys[0] != signer.PublicKey() {
		return nil, errors.New("tx: signer is not the message fee payer")
	}
	payload, err := msg.Encode()
	if err != nil {
		return nil, err
	}
	sig, err := signer.Sign(ctx, payload)
	if err != nil {
		return nil, fmt.Errorf("sign message: %w", err)
	}
	return &Transaction{Signatures: []core.Signature{sig}, Message: msg}, nil
}

// ID returns the transaction signature, which is the first signature.
func (t *Transaction) ID() core.Signature {
	if len(t.Signatures) == 0 {
		return core.Signature{}
	}
	return t.Signatures[0]
}

// Encode serializes the transaction.
func (t *Transaction) Encode() ([]byte, error) {
	st := solana.Transaction{Message: t.Message.toSolana()}
	for _, s := range t.Signatures {
		st.Signatures = append(st.Signatures, solana.Signature(s))
	}
	b, err := st.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("tx: encode transaction: %w", err)
	}
	return b, nil
}

// Verify checks every required signature against its signer key.
func (t *Transaction) Verify() error {
	if len(t.Signatures) != int(t.Message.Header.NumRequiredSignatures) {
		return fmt.Errorf("%w: have %d signatures, need %d", ErrBadSignature, len(t.Signatures), t.Message.Header.NumRequiredSignatures)
	}
	payload, err := t.Message.Encode()
	if err != nil {
		return err
	}
	for i, sig := range t.Signatures {
		key := t.Message.AccountKeys[i]
		if !solana.Signature(sig).Verify(solana.PublicKey(key), payload) {
			return fmt.Errorf("%w: signer %s", ErrBadSignature, key)
		}
	}
	return nil
}

// Decode parses a serialized transaction.
func Decode(raw []byte) (*Transaction, error) {
	dec := bin.NewBinDecoder(raw)
	st, err := solana.TransactionFromDecoder(dec)
	if err != nil {
		return nil, fmt.Errorf("tx: decode transaction: %w", err)
	}
	if n := dec.Remaining(); n != 0 {
		return nil, fmt.Errorf("tx: %d trailing bytes after transaction", n)
	}
	msg, err := fromSolana(&st.Message)
	if err != nil {
		return nil, err
	}
	t := &Transaction{Message: msg}
	for _, s := range st.Signatures {
		t.Signatures = append(t.Signatures, core.Signature(s))
	}
	if len(t.Signatures) != int(msg.Header.NumRequiredSignatures) {
		return nil, fmt.Errorf("tx: %d signatures for %d required signers", len(t.Signatures), msg.Header.NumRequiredSignatures)
	}
	return t, nil
}
