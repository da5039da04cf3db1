package auth

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"

	"blink-market/internal/models"
)

var (
	ErrInvalidAddress   = errors.New("invalid wallet address")
	ErrInvalidSignature = errors.New("invalid signature")
)

// Verifier checks that message was signed by address and returns the
// address in canonical form.
type Verifier interface {
	Verify(address, message, signature string) (string, error)
}

// KindOf guesses the wallet scheme from the address shape.
func KindOf(address string) models.WalletKind {
	if strings.HasPrefix(address, "0x") || strings.HasPrefix(address, "0X") {
		return models.WalletEVM
	}
	return models.WalletSolana
}

// NormalizeAddress lowercases EVM addresses. Base58 addresses are case
// sensitive and pass through unchanged.
func NormalizeAddress(address string) string {
	address = strings.TrimSpace(address)
	if KindOf(address) == models.WalletEVM {
		return strings.ToLower(address)
	}
	return address
}

// EVMVerifier checks EIP-191 personal_sign signatures from externally owned
// accounts.
type EVMVerifier struct{}

func (EVMVerifier) Verify(address, message, signature string) (string, error) {
	if !common.IsHexAddress(address) {
		return "", ErrInvalidAddress
	}
	sig, err := hexutil.Decode(signature)
	if err != nil || len(sig) != crypto.SignatureLength {
		return "", ErrInvalidSignature
	}
	// Wallets emit V as 27/28; SigToPub wants 0/1.
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	recovered := crypto.PubkeyToAddress(*pub)
	if recovered != common.HexToAddress(address) {
		return "", ErrInvalidSignature
	}
	return NormalizeAddress(recovered.Hex()), nil
}

// SolanaVerifier checks ed25519 signatures over the raw message bytes.
type SolanaVerifier struct{}

func (SolanaVerifier) Verify(address, message, signature string) (string, error) {
	pub, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return "", ErrInvalidAddress
	}

	// Wallet adapters return base58; some return hex.
	raw, err := base58.Decode(signature)
	if err != nil || len(raw) != ed25519.SignatureSize {
		raw, err = hex.DecodeString(strings.TrimPrefix(signature, "0x"))
		if err != nil || len(raw) != ed25519.SignatureSize {
			return "", ErrInvalidSignature
		}
	}
	var sig solana.Signature
	copy(sig[:], raw)

	if !sig.Verify(pub, []byte(message)) {
		return "", ErrInvalidSignature
	}
	return pub.String(), nil
}

// MultiVerifier dispatches on the address shape.
type MultiVerifier map[models.WalletKind]Verifier

func DefaultVerifiers() MultiVerifier {
	return MultiVerifier{
		models.WalletEVM:    EVMVerifier{},
		models.WalletSolana: SolanaVerifier{},
	}
}

// VerifyWallet returns the canonical address and its kind.
func (m MultiVerifier) VerifyWallet(address, message, signature string) (string, models.WalletKind, error) {
	kind := KindOf(address)
	v, ok := m[kind]
	if !ok {
		return "", "", fmt.Errorf("%w: %s wallets not supported", ErrInvalidAddress, kind)
	}
	addr, err := v.Verify(address, message, signature)
	if err != nil {
		return "", "", err
	}
	return addr, kind, nil
}
