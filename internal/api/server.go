package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/ZilDuck/marketplace-settlement/internal/authority"
	"github.com/ZilDuck/marketplace-settlement/internal/entity"
	"github.com/ZilDuck/marketplace-settlement/internal/market"
	"github.com/ZilDuck/marketplace-settlement/internal/repository"
	"github.com/gagliardetto/solana-go"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Server struct {
	market     market.Service
	actionRepo repository.ActionRepository
	devnet     *devnet
	stream     *ActivityStream
	verifier   *authority.RequestVerifier
}

// NewServer exposes market over HTTP. Every write must be signed by the
// principals it acts for, as checked by verifier. actionRepo may be nil when
// the activity index is disabled, and the /dev routes are mounted only when
// dev is set.
func NewServer(market market.Service, actionRepo repository.ActionRepository, dev Devnet, deriver authority.Deriver, verifier *authority.RequestVerifier) Server {
	s := Server{market: market, actionRepo: actionRepo, stream: NewActivityStream(), verifier: verifier}
	if dev != nil {
		s.devnet = newDevnet(dev, deriver)
	}
	return s
}

func (s Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	r.HandleFunc("/market", s.signed(s.handleInitializeMarket)).Methods("POST")
	r.HandleFunc("/market", s.handleGetMarket).Methods("GET")
	r.HandleFunc("/treasury", s.signed(s.handleInitializeTreasury)).Methods("POST")
	r.HandleFunc("/treasury/withdraw", s.signed(s.handleWithdraw)).Methods("POST")
	r.HandleFunc("/treasury/{mint}", s.handleTreasuryBalance).Methods("GET")
	r.HandleFunc("/listings", s.signed(s.handleMintAndList)).Methods("POST")
	r.HandleFunc("/listings/{asset}", s.handleGetListing).Methods("GET")
	r.HandleFunc("/listings/{asset}/buy", s.signed(s.handleBuy)).Methods("POST")
	r.HandleFunc("/listings/{asset}/relist", s.signed(s.handleRelist)).Methods("POST")
	r.HandleFunc("/listings/{asset}/actions", s.handleGetActions).Methods("GET")
	r.HandleFunc("/listings/{asset}/actions/{type}", s.handleGetLatestAction).Methods("GET")
	r.HandleFunc("/quote/{price}", s.handleQuote).Methods("GET")
	r.HandleFunc("/send", s.signed(s.handleSend)).Methods("POST")
	r.HandleFunc("/swap", s.signed(s.handleSwap)).Methods("POST")
	if s.stream != nil {
		r.Handle("/ws/activity", s.stream).Methods("GET")
	}

	if s.devnet != nil {
		s.devnet.mount(r.PathPrefix("/dev").Subrouter())
	}

	r.NotFoundHandler = notFoundHandler()

	return r
}

// OnActionCommitted forwards committed actions to websocket subscribers.
func (s Server) OnActionCommitted(msg interface{}) {
	if s.stream != nil {
		s.stream.OnActionCommitted(msg)
	}
}

// Close disconnects the websocket subscribers.
func (s Server) Close() {
	if s.stream != nil {
		s.stream.Close()
	}
}

func (s Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJson(w, http.StatusOK, map[string]string{
		"status":   "ok",
		"treasury": s.market.Treasury().String(),
	})
}

func (s Server) handleInitializeMarket(w http.ResponseWriter, r *http.Request) {
	var req market.InitializeMarketRequest
	if !decode(w, r, &req) || !requireSigners(w, r, "admin", req.Admin) {
		return
	}

	cfg, err := s.market.InitializeMarket(r.Context(), req)
	if err != nil {
		writeError(w, "InitializeMarket", err)
		return
	}
	writeJson(w, http.StatusCreated, cfg)
}

func (s Server) handleGetMarket(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.market.GetMarketConfig(r.Context())
	if err != nil {
		writeError(w, "GetMarketConfig", err)
		return
	}
	writeJson(w, http.StatusOK, cfg)
}

func (s Server) handleInitializeTreasury(w http.ResponseWriter, r *http.Request) {
	var req market.InitializeTreasuryRequest
	if !decode(w, r, &req) || !requireSigners(w, r, "initializer", req.Initializer) {
		return
	}

	treasury, err := s.market.InitializeTreasury(r.Context(), req)
	if err != nil {
		writeError(w, "InitializeTreasury", err)
		return
	}
	writeJson(w, http.StatusCreated, treasury)
}

type balanceResponse struct {
	Treasury solana.PublicKey `json:"treasury"`
	Mint     solana.PublicKey `json:"mint"`
	Balance  uint64           `json:"balance"`
}

func (s Server) handleTreasuryBalance(w http.ResponseWriter, r *http.Request) {
	mint, ok := pathKey(w, r, "mint")
	if !ok {
		return
	}

	balance, err := s.market.TreasuryBalance(r.Context(), mint)
	if err != nil {
		writeError(w, "TreasuryBalance", err)
		return
	}
	writeJson(w, http.StatusOK, balanceResponse{s.market.Treasury(), mint, balance})
}

func (s Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req market.WithdrawRequest
	if !decode(w, r, &req) || !requireSigners(w, r, "admin", req.Admin) || !requireSigners(w, r, "signer", req.Signers...) {
		return
	}

	action, err := s.market.WithdrawTreasury(r.Context(), req)
	if err != nil {
		writeError(w, "WithdrawTreasury", err)
		return
	}
	writeJson(w, http.StatusOK, action)
}

func (s Server) handleMintAndList(w http.ResponseWriter, r *http.Request) {
	var req market.MintAndListRequest
	if !decode(w, r, &req) || !requireSigners(w, r, "seller", req.Seller) {
		return
	}

	listing, err := s.market.MintAndList(r.Context(), req)
	if err != nil {
		writeError(w, "MintAndList", err)
		return
	}
	writeJson(w, http.StatusCreated, listing)
}

func (s Server) handleGetListing(w http.ResponseWriter, r *http.Request) {
	asset, ok := pathKey(w, r, "asset")
	if !ok {
		return
	}

	listing, err := s.market.GetListing(r.Context(), asset)
	if err != nil {
		writeError(w, "GetListing", err)
		return
	}
	writeJson(w, http.StatusOK, listing)
}

func (s Server) handleBuy(w http.ResponseWriter, r *http.Request) {
	asset, ok := pathKey(w, r, "asset")
	if !ok {
		return
	}

	var req market.BuyRequest
	if !decode(w, r, &req) || !requireSigners(w, r, "buyer", req.Buyer) {
		return
	}
	req.Asset = asset

	action, err := s.market.BuyNft(r.Context(), req)
	if err != nil {
		writeError(w, "BuyNft", err)
		return
	}
	writeJson(w, http.StatusOK, action)
}

func (s Server) handleRelist(w http.ResponseWriter, r *http.Request) {
	asset, ok := pathKey(w, r, "asset")
	if !ok {
		return
	}

	var req market.RelistRequest
	if !decode(w, r, &req) || !requireSigners(w, r, "owner", req.NewOwner) {
		return
	}
	req.Asset = asset

	listing, err := s.market.RelistNft(r.Context(), req)
	if err != nil {
		writeError(w, "RelistNft", err)
		return
	}
	writeJson(w, http.StatusOK, listing)
}

type actionsResponse struct {
	Actions interface{} `json:"actions"`
	Total   int64       `json:"total"`
	Page    int         `json:"page"`
	Size    int         `json:"size"`
}

func (s Server) handleGetActions(w http.ResponseWriter, r *http.Request) {
	asset, ok := pathKey(w, r, "asset")
	if !ok {
		return
	}
	if s.actionRepo == nil {
		writeJson(w, http.StatusServiceUnavailable, errorResponse{Code: "activity_disabled", Message: "activity index is disabled"})
		return
	}

	size := queryInt(r, "size", 20, 1, 100)
	page := queryInt(r, "page", 1, 1, 1000)

	actions, total, err := s.actionRepo.GetActionsForAsset(r.Context(), asset.String(), size, page)
	if err != nil {
		writeError(w, "GetActionsForAsset", err)
		return
	}
	writeJson(w, http.StatusOK, actionsResponse{actions, total, page, size})
}

func (s Server) handleGetLatestAction(w http.ResponseWriter, r *http.Request) {
	asset, ok := pathKey(w, r, "asset")
	if !ok {
		return
	}
	if s.actionRepo == nil {
		writeJson(w, http.StatusServiceUnavailable, errorResponse{Code: "activity_disabled", Message: "activity index is disabled"})
		return
	}

	action, err := s.actionRepo.GetLatestAction(r.Context(), asset.String(), entity.ActionType(mux.Vars(r)["type"]))
	if err != nil {
		writeError(w, "GetLatestAction", err)
		return
	}
	writeJson(w, http.StatusOK, action)
}

func (s Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	price, err := strconv.ParseUint(mux.Vars(r)["price"], 10, 64)
	if err != nil {
		writeBadRequest(w, fmt.Errorf("price: %w", err))
		return
	}

	quote, err := s.market.QuoteFees(r.Context(), price)
	if err != nil {
		writeError(w, "QuoteFees", err)
		return
	}
	writeJson(w, http.StatusOK, quote)
}

func (s Server) handleSend(w http.ResponseWriter, r *http.Request) {
	var req market.SendRequest
	if !decode(w, r, &req) || !requireSigners(w, r, "sender", req.Sender) {
		return
	}

	action, err := s.market.SendToken(r.Context(), req)
	if err != nil {
		writeError(w, "SendToken", err)
		return
	}
	writeJson(w, http.StatusOK, action)
}

func (s Server) handleSwap(w http.ResponseWriter, r *http.Request) {
	var req market.SwapRequest
	if !decode(w, r, &req) || !requireSigners(w, r, "user", req.User) {
		return
	}

	action, err := s.market.SwapToken(r.Context(), req)
	if err != nil {
		writeError(w, "SwapToken", err)
		return
	}
	writeJson(w, http.StatusOK, action)
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		writeBadRequest(w, err)
		return false
	}
	return true
}

func pathKey(w http.ResponseWriter, r *http.Request, name string) (solana.PublicKey, bool) {
	key, err := solana.PublicKeyFromBase58(mux.Vars(r)[name])
	if err != nil {
		writeBadRequest(w, fmt.Errorf("%s: %w", name, err))
		return solana.PublicKey{}, false
	}
	return key, true
}

func queryInt(r *http.Request, name string, def, min, max int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || v < min {
		return def
	}
	if v > max {
		return max
	}
	return v
}

func writeJson(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().With(zap.Error(err)).Warn("API: Failed to write response")
	}
}

func notFoundHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJson(w, http.StatusNotFound, errorResponse{Code: "not_found", Message: "Page not found"})
	})
}
