// Package signer implements Hyperliquid's two-stage action signing:
// an msgpack-encoded action hash, then an EIP-712 phantom-agent
// wrapper signature over that hash (§4.9).
package signer

import (
	"crypto/ecdsa"
	"encoding/binary"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethmath "github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/vmihailenco/msgpack/v5"
)

// phantomChainID and the Exchange domain are fixed by the exchange's
// signing scheme, not configurable.
const phantomChainID = 1337

// Signature is the (r, s, v) triple in the wire format the exchange
// expects: 32-byte left-padded hex strings for r/s, v as "27" or "28".
type Signature struct {
	R string `json:"r"`
	S string `json:"s"`
	V string `json:"v"`
}

// Signer holds the EOA private key used to sign every action this
// process submits. Key material is never logged.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	isMainnet  bool
}

// New loads a signer from raw hex key material (0x-optional, trailing
// whitespace tolerated). If expectedAddress is non-empty, the derived
// address must match it or New refuses to return a Signer.
func New(keyHex string, expectedAddress string, isMainnet bool) (*Signer, error) {
	trimmed := strings.TrimSpace(keyHex)
	trimmed = strings.TrimPrefix(trimmed, "0x")

	key, err := crypto.HexToECDSA(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse signing key: %w", err)
	}

	addr := crypto.PubkeyToAddress(key.PublicKey)
	if expectedAddress != "" && !strings.EqualFold(addr.Hex(), expectedAddress) {
		return nil, fmt.Errorf("signing key derives to %s, expected %s", addr.Hex(), expectedAddress)
	}

	return &Signer{privateKey: key, address: addr, isMainnet: isMainnet}, nil
}

// Address returns the signer's Ethereum address.
func (s *Signer) Address() common.Address { return s.address }

// ActionHash computes keccak256(msgpack(action) || nonce_be8 || vault_tag || expires_tag?),
// per §4.9 step 1. action must be *OrderAction or *CancelAction — both
// are plain msgpack-taggable structs with no nil optional fields left
// to serialize once the caller omits them.
func ActionHash(action any, nonce int64, vaultAddress string, expiresAfterMs int64) ([]byte, error) {
	encoded, err := msgpack.Marshal(action)
	if err != nil {
		return nil, fmt.Errorf("msgpack encode action: %w", err)
	}

	buf := make([]byte, 0, len(encoded)+8+21+9)
	buf = append(buf, encoded...)

	var nonceBytes [8]byte
	binary.BigEndian.PutUint64(nonceBytes[:], uint64(nonce))
	buf = append(buf, nonceBytes[:]...)

	if vaultAddress == "" {
		buf = append(buf, 0x00)
	} else {
		buf = append(buf, 0x01)
		buf = append(buf, common.HexToAddress(vaultAddress).Bytes()...)
	}

	if expiresAfterMs != 0 {
		buf = append(buf, 0x00)
		var expiresBytes [8]byte
		binary.BigEndian.PutUint64(expiresBytes[:], uint64(expiresAfterMs))
		buf = append(buf, expiresBytes[:]...)
	}

	return crypto.Keccak256(buf), nil
}

// SignAction runs both stages of §4.9: it hashes action via ActionHash
// then signs the phantom-agent EIP-712 wrapper around that hash.
func (s *Signer) SignAction(action any, nonce int64, vaultAddress string, expiresAfterMs int64) (Signature, error) {
	hash, err := ActionHash(action, nonce, vaultAddress, expiresAfterMs)
	if err != nil {
		return Signature{}, err
	}
	return s.signPhantomAgent(hash)
}

// signPhantomAgent signs the EIP-712 "Agent" typed-data wrapper whose
// connectionId is the action hash, per §4.9 step 2.
func (s *Signer) signPhantomAgent(actionHash []byte) (Signature, error) {
	source := "b"
	if s.isMainnet {
		source = "a"
	}

	typedData := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"Agent": {
				{Name: "source", Type: "string"},
				{Name: "connectionId", Type: "bytes32"},
			},
		},
		PrimaryType: "Agent",
		Domain: apitypes.TypedDataDomain{
			Name:              "Exchange",
			Version:           "1",
			ChainId:           (*ethmath.HexOrDecimal256)(big.NewInt(phantomChainID)),
			VerifyingContract: "0x0000000000000000000000000000000000000000",
		},
		Message: apitypes.TypedDataMessage{
			"source":       source,
			"connectionId": actionHash,
		},
	}

	hash, _, err := apitypes.TypedDataAndHash(typedData)
	if err != nil {
		return Signature{}, fmt.Errorf("typed data hash: %w", err)
	}

	sig, err := crypto.Sign(hash, s.privateKey)
	if err != nil {
		return Signature{}, fmt.Errorf("sign typed data: %w", err)
	}

	v := sig[64]
	if v < 27 {
		v += 27
	}

	return Signature{
		R: "0x" + common.Bytes2Hex(sig[:32]),
		S: "0x" + common.Bytes2Hex(sig[32:64]),
		V: fmt.Sprintf("%d", v),
	}, nil
}
