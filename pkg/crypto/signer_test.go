package crypto

import (
	"bytes"
	"encoding/json"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hyperdex/params"
)

func testDomain() EIP712Domain {
	return DomainFromParams(params.Default().Domain)
}

func testOrder(owner common.Address) *OrderEIP712 {
	return &OrderEIP712{
		Owner:         owner,
		SymPairID:     1,
		OrderType:     1,
		OrderSide:     1,
		LimitQuant:    "0.01000000 BTC",
		Price:         "50000.0000 USD",
		TakerFeeRatio: NoFeeOverride,
		MakerFeeRatio: NoFeeOverride,
		Nonce:         1,
	}
}

func TestGenerateKey(t *testing.T) {
	signer, err := GenerateKey()
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	if signer.Address() == (common.Address{}) {
		t.Error("generated zero address")
	}
	if len(signer.PrivateKeyHex()) != 64 {
		t.Errorf("private key hex length = %d, want 64", len(signer.PrivateKeyHex()))
	}
}

func TestFromPrivateKeyHex(t *testing.T) {
	s1, _ := GenerateKey()
	for _, key := range []string{s1.PrivateKeyHex(), "0x" + s1.PrivateKeyHex()} {
		s2, err := FromPrivateKeyHex(key)
		if err != nil {
			t.Fatalf("load %q: %v", key, err)
		}
		if s2.Address() != s1.Address() {
			t.Errorf("address = %s, want %s", s2.Address().Hex(), s1.Address().Hex())
		}
	}
	if _, err := FromPrivateKeyHex("zz"); err == nil {
		t.Error("expected error for bad key")
	}
}

func TestSignAndRecover(t *testing.T) {
	signer, _ := GenerateKey()
	e := NewEIP712Signer(testDomain())

	msgs := []TypedMessage{
		testOrder(signer.Address()),
		&CancelEIP712{Owner: signer.Address(), OrderID: 7, Nonce: 2},
		&MatchEIP712{Matcher: signer.Address(), MaxCount: 10, SymPairIDs: []uint64{1, 2}, Memo: "auto", Nonce: 3},
		&MatchEIP712{Matcher: signer.Address(), MaxCount: 10, Nonce: 4},
		&WithdrawEIP712{Owner: signer.Address(), Contract: "usd.token", Symbol: "4,USD", Quantity: "1.0000 USD", Nonce: 5},
	}
	for _, m := range msgs {
		t.Run(m.primaryType(), func(t *testing.T) {
			sig, err := e.Sign(signer, m)
			if err != nil {
				t.Fatalf("sign: %v", err)
			}
			if len(sig) != SignatureLength {
				t.Fatalf("signature length = %d", len(sig))
			}
			got, err := e.Recover(m, sig)
			if err != nil {
				t.Fatalf("recover: %v", err)
			}
			if got != signer.Address() {
				t.Errorf("recovered %s, want %s", got.Hex(), signer.Address().Hex())
			}
		})
	}
}

func TestRecoverAcceptsWalletV(t *testing.T) {
	signer, _ := GenerateKey()
	e := NewEIP712Signer(testDomain())
	o := testOrder(signer.Address())

	sig, _ := e.Sign(signer, o)
	sig[64] += 27
	got, err := e.Recover(o, sig)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if got != signer.Address() {
		t.Errorf("recovered %s, want %s", got.Hex(), signer.Address().Hex())
	}
}

func TestHashBindsFieldsAndDomain(t *testing.T) {
	signer, _ := GenerateKey()
	e := NewEIP712Signer(testDomain())
	base, err := e.Hash(testOrder(signer.Address()))
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	tampered := testOrder(signer.Address())
	tampered.Price = "50001.0000 USD"
	h, _ := e.Hash(tampered)
	if bytes.Equal(base, h) {
		t.Error("price change did not change the digest")
	}

	fee := testOrder(signer.Address())
	fee.TakerFeeRatio, fee.MakerFeeRatio = 0, 0
	h, _ = e.Hash(fee)
	if bytes.Equal(base, h) {
		t.Error("fee override did not change the digest")
	}

	other := testDomain()
	other.ChainID = big.NewInt(1)
	h, _ = NewEIP712Signer(other).Hash(testOrder(signer.Address()))
	if bytes.Equal(base, h) {
		t.Error("chain id change did not change the digest")
	}
}

func TestRecoverWrongSigner(t *testing.T) {
	alice, _ := GenerateKey()
	bob, _ := GenerateKey()
	e := NewEIP712Signer(testDomain())

	o := testOrder(alice.Address())
	sig, _ := e.Sign(bob, o)
	got, err := e.Recover(o, sig)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if got == alice.Address() {
		t.Error("bob's signature recovered as alice")
	}
}

func TestSignatureEncoding(t *testing.T) {
	signer, _ := GenerateKey()
	sig, _ := NewEIP712Signer(testDomain()).Sign(signer, testOrder(signer.Address()))

	for _, s := range []string{EncodeSignature(sig), EncodeSignature(sig)[2:]} {
		got, err := DecodeSignature(s)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if !bytes.Equal(got, sig) {
			t.Error("decoded signature differs")
		}
	}
	if _, err := DecodeSignature("0x1234"); err == nil {
		t.Error("expected length error")
	}
	if _, err := DecodeSignature("0xzz"); err == nil {
		t.Error("expected hex error")
	}
}

func TestTypedDataJSON(t *testing.T) {
	e := NewEIP712Signer(testDomain())
	out, err := e.TypedDataJSON(&CancelEIP712{OrderID: 1, Nonce: 1})
	if err != nil {
		t.Fatalf("json: %v", err)
	}
	var decoded struct {
		PrimaryType string                 `json:"primaryType"`
		Domain      map[string]interface{} `json:"domain"`
	}
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.PrimaryType != "CancelOrder" {
		t.Errorf("primaryType = %q", decoded.PrimaryType)
	}
	if decoded.Domain["name"] != "HyperDex" {
		t.Errorf("domain name = %v", decoded.Domain["name"])
	}
}
