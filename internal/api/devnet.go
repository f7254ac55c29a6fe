package api

import (
	"context"
	"net/http"

	"github.com/ZilDuck/marketplace-settlement/internal/authority"
	"github.com/ZilDuck/marketplace-settlement/internal/ledger"
	"github.com/gagliardetto/solana-go"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Devnet is the bootstrap surface of a ledger that can create value. Only the
// in-memory ledger implements it.
type Devnet interface {
	ledger.Ledger
	Airdrop(to solana.PublicKey, amount uint64) error
	CreateMint(address solana.PublicKey, mintAuthority *solana.PublicKey, decimals uint8) error
}

type devnet struct {
	ledger  Devnet
	deriver authority.Deriver
	faucet  solana.PublicKey
}

func newDevnet(l Devnet, deriver authority.Deriver) *devnet {
	faucet := solana.NewWallet().PublicKey()
	zap.L().With(zap.String("faucet", faucet.String())).Warn("API: Devnet routes enabled")

	return &devnet{l, deriver, faucet}
}

func (d *devnet) mount(r *mux.Router) {
	r.HandleFunc("/airdrop", d.handleAirdrop).Methods("POST")
	r.HandleFunc("/assets", d.handleCreateAsset).Methods("POST")
	r.HandleFunc("/mints", d.handleCreateMint).Methods("POST")
	r.HandleFunc("/fund", d.handleFund).Methods("POST")
}

type airdropRequest struct {
	Address solana.PublicKey `json:"address"`
	Amount  uint64           `json:"amount"`
}

func (d *devnet) handleAirdrop(w http.ResponseWriter, r *http.Request) {
	var req airdropRequest
	if !decode(w, r, &req) {
		return
	}

	if err := d.ledger.Airdrop(req.Address, req.Amount); err != nil {
		writeError(w, "Airdrop", err)
		return
	}
	writeJson(w, http.StatusOK, req)
}

type mintResponse struct {
	Mint      solana.PublicKey `json:"mint"`
	Authority solana.PublicKey `json:"authority"`
}

// handleCreateAsset creates an unminted asset whose issuance authority is the
// marketplace, ready for MintAndList.
func (d *devnet) handleCreateAsset(w http.ResponseWriter, _ *http.Request) {
	asset := solana.NewWallet().PublicKey()
	mintAuth, err := d.deriver.Derive(authority.MintAuthorityLabel, asset)
	if err != nil {
		writeError(w, "CreateAsset", err)
		return
	}

	if err := d.ledger.CreateMint(asset, &mintAuth.Key, 0); err != nil {
		writeError(w, "CreateAsset", err)
		return
	}
	writeJson(w, http.StatusCreated, mintResponse{asset, mintAuth.Key})
}

type createMintRequest struct {
	Decimals uint8 `json:"decimals"`
}

func (d *devnet) handleCreateMint(w http.ResponseWriter, r *http.Request) {
	var req createMintRequest
	if !decode(w, r, &req) {
		return
	}

	mint := solana.NewWallet().PublicKey()
	if err := d.ledger.CreateMint(mint, &d.faucet, req.Decimals); err != nil {
		writeError(w, "CreateMint", err)
		return
	}
	writeJson(w, http.StatusCreated, mintResponse{mint, d.faucet})
}

type fundRequest struct {
	Owner  solana.PublicKey `json:"owner"`
	Mint   solana.PublicKey `json:"mint"`
	Amount uint64           `json:"amount"`
}

type fundResponse struct {
	Account solana.PublicKey `json:"account"`
	Amount  uint64           `json:"amount"`
}

// handleFund opens the owner's token account for a faucet mint and mints
// amount into it. Amount 0 only opens the account.
func (d *devnet) handleFund(w http.ResponseWriter, r *http.Request) {
	var req fundRequest
	if !decode(w, r, &req) {
		return
	}

	var account solana.PublicKey
	err := d.ledger.Atomic(r.Context(), func(tx ledger.Tx) error {
		var err error
		if account, err = tx.EnsureAssociatedTokenAccount(req.Owner, req.Mint); err != nil {
			return err
		}
		if req.Amount == 0 {
			return nil
		}
		return tx.MintTo(req.Mint, account, authority.Principal(d.faucet), req.Amount)
	})
	if err != nil {
		writeError(w, "Fund", err)
		return
	}

	var balance uint64
	_ = d.ledger.View(context.Background(), func(tx ledger.Tx) error {
		acc, err := tx.TokenAccount(account)
		balance = acc.Amount
		return err
	})
	writeJson(w, http.StatusOK, fundResponse{account, balance})
}
