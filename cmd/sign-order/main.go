// sign-order builds and signs an order envelope for POST /api/v1/orders.
//
//	sign-order -key $KEY -pair 1 -side buy -quant "0.01000000 BTC" -price "50000.0000 USD" -nonce 1
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/uhyunpark/hyperdex/params"
	"github.com/uhyunpark/hyperdex/pkg/app/core/transaction"
	"github.com/uhyunpark/hyperdex/pkg/crypto"
)

func main() {
	var (
		keyHex     = flag.String("key", os.Getenv("SIGNER_KEY"), "owner private key hex; empty generates one")
		adminHex   = flag.String("admin-key", "", "admin private key hex for a co-signature")
		pair       = flag.Uint64("pair", 1, "symbol pair id")
		orderType  = flag.String("type", "limit", "limit | market")
		side       = flag.String("side", "buy", "buy | sell")
		quant      = flag.String("quant", "", `limit quantity, e.g. "0.01000000 BTC"`)
		price      = flag.String("price", "", `price, e.g. "50000.0000 USD"; empty for market orders`)
		externalID = flag.Uint64("external-id", 0, "client order id")
		taker      = flag.Int64("taker-fee", crypto.NoFeeOverride, "taker fee ratio override (needs -admin-key)")
		maker      = flag.Int64("maker-fee", crypto.NoFeeOverride, "maker fee ratio override (needs -admin-key)")
		nonce      = flag.Uint64("nonce", 1, "last consumed nonce + 1")
		typed      = flag.Bool("typed", false, "print the EIP-712 typed data instead of the envelope")
	)
	flag.Parse()

	if err := run(*keyHex, *adminHex, *typed, &transaction.OrderPayload{
		SymPairID:  *pair,
		Type:       *orderType,
		Side:       *side,
		LimitQuant: *quant,
		Price:      *price,
		ExternalID: *externalID,
		Nonce:      *nonce,
	}, *taker, *maker); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(keyHex, adminHex string, typed bool, order *transaction.OrderPayload, taker, maker int64) error {
	signer, err := loadOrGenerate(keyHex)
	if err != nil {
		return err
	}
	order.Owner = signer.Address().Hex()
	if taker != crypto.NoFeeOverride || maker != crypto.NoFeeOverride {
		order.TakerFeeRatio, order.MakerFeeRatio = &taker, &maker
	}

	cfg := params.LoadFromEnv("")
	domain := crypto.DomainFromParams(cfg.Domain)
	e := crypto.NewEIP712Signer(domain)
	tx := &transaction.SignedTransaction{Type: transaction.TxTypeOrder, Order: order}

	if typed {
		m, err := tx.TypedMessage()
		if err != nil {
			return err
		}
		out, err := e.TypedDataJSON(m)
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	}

	if err := transaction.Sign(e, signer, tx); err != nil {
		return err
	}
	if adminHex != "" {
		admin, err := crypto.FromPrivateKeyHex(adminHex)
		if err != nil {
			return fmt.Errorf("admin key: %w", err)
		}
		if err := transaction.CoSign(e, admin, tx); err != nil {
			return err
		}
	}

	// check the envelope the way the API will
	if _, err := transaction.NewVerifier(domain).Signers(tx); err != nil {
		return fmt.Errorf("self check: %w", err)
	}
	if _, err := transaction.OrderRequest(order); err != nil {
		return fmt.Errorf("self check: %w", err)
	}

	out, err := json.MarshalIndent(tx, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func loadOrGenerate(keyHex string) (*crypto.Signer, error) {
	if keyHex != "" {
		return crypto.FromPrivateKeyHex(keyHex)
	}
	s, err := crypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(os.Stderr, "generated key %s for %s\n", s.PrivateKeyHex(), s.Address().Hex())
	return s, nil
}
