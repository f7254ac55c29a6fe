// Package client talks to the settlement daemon over its JSON API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ZilDuck/marketplace-settlement/internal/authority"
	"github.com/ZilDuck/marketplace-settlement/internal/config"
	"github.com/ZilDuck/marketplace-settlement/internal/entity"
	"github.com/ZilDuck/marketplace-settlement/internal/market"
	"github.com/gagliardetto/solana-go"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

var (
	ErrMissingApiUrl = errors.New("missing api url")
)

// APIError is a rejection reported by the daemon.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	ID      string `json:"id,omitempty"`
}

func (e *APIError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%d %s: %s (%s)", e.Status, e.Code, e.Message, e.ID)
	}
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

type Balance struct {
	Treasury solana.PublicKey `json:"treasury"`
	Mint     solana.PublicKey `json:"mint"`
	Balance  uint64           `json:"balance"`
}

type Actions struct {
	Actions []entity.Action `json:"actions"`
	Total   int64           `json:"total"`
	Page    int             `json:"page"`
	Size    int             `json:"size"`
}

type Client struct {
	url        string
	httpClient *retryablehttp.Client
	timeout    time.Duration
	signers    []solana.PrivateKey
}

func New(cfg config.ClientConfig) (*Client, error) {
	if len(cfg.ApiUrl) == 0 {
		return nil, ErrMissingApiUrl
	}

	retryClient := retryablehttp.NewClient()
	retryClient.Logger = nil
	retryClient.RetryMax = cfg.Retries
	retryClient.CheckRetry = checkRetry

	c := &Client{
		url:        strings.TrimSuffix(cfg.ApiUrl, "/"),
		httpClient: retryClient,
		timeout:    time.Duration(cfg.Timeout) * time.Second,
	}

	for _, file := range cfg.Keypairs {
		key, err := solana.PrivateKeyFromSolanaKeygenFile(file)
		if err != nil {
			return nil, fmt.Errorf("keypair %s: %w", file, err)
		}
		c.signers = append(c.signers, key)
	}

	return c, nil
}

// WithSigners adds keys that sign every write the client sends. The daemon
// acts only for principals whose key signed the request.
func (c *Client) WithSigners(keys ...solana.PrivateKey) *Client {
	c.signers = append(c.signers, keys...)
	return c
}

// checkRetry retries reads on any failure but a write only when it never
// reached the daemon, so a settlement is not submitted twice.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if resp != nil && resp.Request != nil && resp.Request.Method != http.MethodGet {
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

func (c *Client) InitializeMarket(ctx context.Context, req market.InitializeMarketRequest) (cfg *entity.MarketConfig, err error) {
	err = c.call(ctx, http.MethodPost, "/market", req, &cfg)
	return
}

func (c *Client) GetMarketConfig(ctx context.Context) (cfg *entity.MarketConfig, err error) {
	err = c.call(ctx, http.MethodGet, "/market", nil, &cfg)
	return
}

func (c *Client) InitializeTreasury(ctx context.Context, req market.InitializeTreasuryRequest) (treasury *entity.Treasury, err error) {
	err = c.call(ctx, http.MethodPost, "/treasury", req, &treasury)
	return
}

func (c *Client) TreasuryBalance(ctx context.Context, mint solana.PublicKey) (balance *Balance, err error) {
	err = c.call(ctx, http.MethodGet, "/treasury/"+mint.String(), nil, &balance)
	return
}

func (c *Client) WithdrawTreasury(ctx context.Context, req market.WithdrawRequest) (action *entity.Action, err error) {
	err = c.call(ctx, http.MethodPost, "/treasury/withdraw", req, &action)
	return
}

func (c *Client) MintAndList(ctx context.Context, req market.MintAndListRequest) (listing *entity.Listing, err error) {
	err = c.call(ctx, http.MethodPost, "/listings", req, &listing)
	return
}

func (c *Client) GetListing(ctx context.Context, asset solana.PublicKey) (listing *entity.Listing, err error) {
	err = c.call(ctx, http.MethodGet, "/listings/"+asset.String(), nil, &listing)
	return
}

func (c *Client) BuyNft(ctx context.Context, req market.BuyRequest) (action *entity.Action, err error) {
	err = c.call(ctx, http.MethodPost, "/listings/"+req.Asset.String()+"/buy", req, &action)
	return
}

func (c *Client) RelistNft(ctx context.Context, req market.RelistRequest) (listing *entity.Listing, err error) {
	err = c.call(ctx, http.MethodPost, "/listings/"+req.Asset.String()+"/relist", req, &listing)
	return
}

func (c *Client) GetActions(ctx context.Context, asset solana.PublicKey, size, page int) (actions *Actions, err error) {
	path := fmt.Sprintf("/listings/%s/actions?size=%s&page=%s", asset, strconv.Itoa(size), strconv.Itoa(page))
	err = c.call(ctx, http.MethodGet, path, nil, &actions)
	return
}

func (c *Client) GetLatestAction(ctx context.Context, asset solana.PublicKey, actionType entity.ActionType) (action *entity.Action, err error) {
	err = c.call(ctx, http.MethodGet, fmt.Sprintf("/listings/%s/actions/%s", asset, actionType), nil, &action)
	return
}

func (c *Client) QuoteFees(ctx context.Context, price uint64) (quote *market.Quote, err error) {
	err = c.call(ctx, http.MethodGet, "/quote/"+strconv.FormatUint(price, 10), nil, &quote)
	return
}

func (c *Client) SendToken(ctx context.Context, req market.SendRequest) (action *entity.Action, err error) {
	err = c.call(ctx, http.MethodPost, "/send", req, &action)
	return
}

func (c *Client) SwapToken(ctx context.Context, req market.SwapRequest) (action *entity.Action, err error) {
	err = c.call(ctx, http.MethodPost, "/swap", req, &action)
	return
}

// Dev posts to the devnet bootstrap routes.
func (c *Client) Dev(ctx context.Context, route string, body interface{}, out interface{}) error {
	return c.call(ctx, http.MethodPost, "/dev/"+strings.TrimPrefix(route, "/"), body, out)
}

func (c *Client) call(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var payload []byte
	if body != nil {
		buf := &bytes.Buffer{}
		if err := json.NewEncoder(buf).Encode(body); err != nil {
			return err
		}
		payload = buf.Bytes()
	}

	req, err := retryablehttp.NewRequest(method, c.url+path, payload)
	if err != nil {
		return err
	}
	req = req.WithContext(ctx)
	req.Header.Add("Content-Type", "application/json;charset=utf-8")
	req.Header.Add("Accept", "application/json")

	if method != http.MethodGet && len(c.signers) != 0 {
		if err := authority.SignRequest(req.Header, method, req.URL.RequestURI(), payload, time.Now(), c.signers...); err != nil {
			return err
		}
	}

	zap.L().With(zap.String("method", method), zap.String("path", path)).Debug("Client: Request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		zap.L().With(zap.Error(err)).Warn("Client: Request failed")
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{Status: resp.StatusCode}
		if jsonErr := json.Unmarshal(data, apiErr); jsonErr != nil || apiErr.Code == "" {
			apiErr.Code = "unexpected_response"
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}
