// Package hdwallet implements the Address Allocator's KeyDeriver port:
// deterministic BIP-32/44 child-key derivation from a single master
// seed (hdkeychain.NewMaster, then Child() once per path component,
// then ECPrivKey().ToECDSA()), plus at-rest encryption of the derived
// private key, wired together behind a small constructor-injected
// allocator for a single-signer EVM hot wallet.
package hdwallet

import (
	"context"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tyler-smith/go-bip39"

	"github.com/wopay/engine/pkg/domain/payment/value-objects"
	"github.com/wopay/engine/pkg/infra/cryptutil"
)

// derivationPath is m/44'/60'/0'/0/<index> — BIP-44 purpose 44',
// SLIP-44 coin type 60' for Ethereum, account 0', external chain 0,
// then the payment-specific address index.
const (
	purposeHardened  = hdkeychain.HardenedKeyStart + 44
	coinTypeHardened = hdkeychain.HardenedKeyStart + 60
	accountHardened  = hdkeychain.HardenedKeyStart
	externalChain    = 0
)

type Allocator struct {
	masterKey *hdkeychain.ExtendedKey
	aead      *cryptutil.AEAD
}

// NewAllocatorFromMnemonic validates and seeds an operator-provisioned
// BIP-39 mnemonic and wraps an AEAD cipher for the private keys this
// allocator will mint.
func NewAllocatorFromMnemonic(mnemonic string, aead *cryptutil.AEAD) (*Allocator, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, fmt.Errorf("invalid HD wallet mnemonic")
	}
	seed := bip39.NewSeed(mnemonic, "")

	master, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, fmt.Errorf("derive master key: %w", err)
	}
	return &Allocator{masterKey: master, aead: aead}, nil
}

// DeriveAt derives the EVM address and encrypted private key at the
// fixed path m/44'/60'/0'/0/<index>. It is a pure function of index:
// deriving the same index twice yields the same address, which is what
// lets the Payment Store recompute max(index)+1 safely under a
// transaction retry.
func (a *Allocator) DeriveAt(ctx context.Context, index uint64) (payment_vo.EVMAddress, []byte, error) {
	if index >= hdkeychain.HardenedKeyStart {
		return payment_vo.EVMAddress{}, nil, fmt.Errorf("derivation index %d exceeds non-hardened child range", index)
	}

	key := a.masterKey
	var err error
	for _, childIndex := range []uint32{purposeHardened, coinTypeHardened, accountHardened, externalChain, uint32(index)} {
		key, err = key.Child(childIndex)
		if err != nil {
			return payment_vo.EVMAddress{}, nil, fmt.Errorf("derive child at %d: %w", childIndex, err)
		}
	}

	ecPrivKey, err := key.ECPrivKey()
	if err != nil {
		return payment_vo.EVMAddress{}, nil, fmt.Errorf("extract private key: %w", err)
	}
	privKeyECDSA := ecPrivKey.ToECDSA()

	addr, err := payment_vo.NewEVMAddress(crypto.PubkeyToAddress(privKeyECDSA.PublicKey).Hex())
	if err != nil {
		return payment_vo.EVMAddress{}, nil, fmt.Errorf("checksum derived address: %w", err)
	}

	privKeyBytes := crypto.FromECDSA(privKeyECDSA)
	encrypted, err := a.aead.Seal(privKeyBytes)
	if err != nil {
		return payment_vo.EVMAddress{}, nil, fmt.Errorf("encrypt derived private key: %w", err)
	}

	return addr, encrypted, nil
}

// Decrypt reverses the at-rest encryption DeriveAt applied, returning
// raw private key bytes for the Sweeper to sign a transaction with.
func (a *Allocator) Decrypt(ctx context.Context, encryptedPrivateKey []byte) ([]byte, error) {
	return a.aead.Open(encryptedPrivateKey)
}

const uint32Max = 1<<32 - 1
