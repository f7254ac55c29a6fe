package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ZilDuck/marketplace-settlement/internal/client"
	"github.com/ZilDuck/marketplace-settlement/internal/config"
	"github.com/ZilDuck/marketplace-settlement/internal/entity"
	"github.com/ZilDuck/marketplace-settlement/internal/log"
	"github.com/ZilDuck/marketplace-settlement/internal/market"
	"github.com/gagliardetto/solana-go"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

var api *client.Client

func main() {
	config.Init("cli")
	defer log.Flush()

	var err error
	if api, err = client.New(config.Get().Client); err != nil {
		zap.L().With(zap.Error(err)).Fatal("Failed to create api client")
	}

	app := &cli.App{
		Name:  "settlement",
		Usage: "operate the marketplace settlement daemon",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "keypair", Usage: "keygen file whose key signs writes, repeatable"},
		},
		Before: loadKeypairs,
		Commands: []*cli.Command{
			{
				Name:   "market",
				Usage:  "Show the market configuration",
				Action: showMarket,
			},
			{
				Name:   "quote",
				Usage:  "Show the fees each policy takes from a price",
				Action: quote,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "price", Required: true},
					decimalsFlag(),
				},
			},
			{
				Name:   "listing",
				Usage:  "Show the listing of an asset",
				Action: showListing,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "asset", Required: true},
				},
			},
			{
				Name:   "activity",
				Usage:  "Show the indexed actions of an asset",
				Action: activity,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "asset", Required: true},
					&cli.IntFlag{Name: "size", Value: 20},
					&cli.IntFlag{Name: "page", Value: 1},
					&cli.StringFlag{Name: "latest", Usage: "show only the latest action of this type"},
					&cli.BoolFlag{Name: "follow", Usage: "stream new actions as they commit"},
				},
			},
			{
				Name:   "treasury",
				Usage:  "Show the treasury balance for a mint",
				Action: treasury,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "mint", Value: solana.SolMint.String()},
					decimalsFlag(),
				},
			},
			{
				Name:   "withdraw",
				Usage:  "Release treasury funds to the admin, co-signed by the multisig. Every co-signer passes --keypair",
				Action: withdraw,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "admin", Required: true},
					&cli.StringSliceFlag{Name: "signer", Usage: "co-signing multisig admin, repeatable"},
					&cli.StringFlag{Name: "mint", Value: solana.SolMint.String()},
					&cli.StringFlag{Name: "amount", Required: true},
					&cli.StringFlag{Name: "treasury-account"},
					&cli.StringFlag{Name: "admin-account"},
					decimalsFlag(),
				},
			},
			{
				Name:   "list",
				Usage:  "Mint an asset to the seller and list it",
				Action: mintAndList,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "seller", Required: true},
					&cli.StringFlag{Name: "asset", Required: true},
					&cli.StringFlag{Name: "price", Required: true},
					&cli.StringFlag{Name: "rail", Value: string(entity.RailNative)},
					&cli.StringFlag{Name: "token-fee", Value: "0"},
					&cli.StringFlag{Name: "payment-account"},
					&cli.StringFlag{Name: "admin-account"},
					decimalsFlag(),
				},
			},
			{
				Name:   "buy",
				Usage:  "Buy a listed asset",
				Action: buy,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "buyer", Required: true},
					&cli.StringFlag{Name: "seller", Required: true},
					&cli.StringFlag{Name: "asset", Required: true},
					&cli.StringFlag{Name: "rail", Value: string(entity.RailNative)},
					&cli.StringFlag{Name: "buyer-account"},
					&cli.StringFlag{Name: "seller-account"},
					&cli.StringFlag{Name: "treasury-account"},
				},
			},
			{
				Name:   "relist",
				Usage:  "Relist an asset under its current holder",
				Action: relist,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "owner", Required: true},
					&cli.StringFlag{Name: "asset", Required: true},
					&cli.StringFlag{Name: "price", Required: true},
					&cli.StringFlag{Name: "rail", Value: string(entity.RailNative)},
					&cli.StringFlag{Name: "fee", Value: "0"},
					&cli.StringFlag{Name: "payment-account"},
					&cli.StringFlag{Name: "treasury-account"},
					decimalsFlag(),
				},
			},
			{
				Name:   "send",
				Usage:  "Send native currency or tokens, paying the trade fee",
				Action: send,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "sender", Required: true},
					&cli.StringFlag{Name: "recipient", Required: true},
					&cli.StringFlag{Name: "mint", Value: solana.SolMint.String()},
					&cli.StringFlag{Name: "amount", Required: true},
					&cli.StringFlag{Name: "sender-account"},
					&cli.StringFlag{Name: "recipient-account"},
					&cli.StringFlag{Name: "treasury-account"},
					decimalsFlag(),
				},
			},
			{
				Name:   "swap",
				Usage:  "Route a swap through a registered exchange program, request read from a JSON file",
				Action: swap,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "file", Required: true},
				},
			},
			{
				Name:  "dev",
				Usage: "Devnet bootstrap",
				Subcommands: []*cli.Command{
					{
						Name:   "airdrop",
						Action: airdrop,
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "address", Required: true},
							&cli.StringFlag{Name: "amount", Required: true},
							decimalsFlag(),
						},
					},
					{
						Name:   "asset",
						Usage:  "Create an asset mint owned by the marketplace",
						Action: devPost("assets"),
					},
					{
						Name:   "mint",
						Usage:  "Create a payment mint backed by the faucet",
						Action: createMint,
						Flags: []cli.Flag{
							&cli.UintFlag{Name: "decimals", Value: 6},
						},
					},
					{
						Name:   "fund",
						Usage:  "Open a token account and mint into it from the faucet",
						Action: fund,
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "owner", Required: true},
							&cli.StringFlag{Name: "mint", Required: true},
							&cli.StringFlag{Name: "amount", Value: "0"},
							decimalsFlag(),
						},
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadKeypairs(c *cli.Context) error {
	for _, file := range c.StringSlice("keypair") {
		key, err := solana.PrivateKeyFromSolanaKeygenFile(file)
		if err != nil {
			return fmt.Errorf("keypair %s: %w", file, err)
		}
		api.WithSigners(key)
	}
	return nil
}

func showMarket(c *cli.Context) error {
	cfg, err := api.GetMarketConfig(c.Context)
	if err != nil {
		return err
	}
	return printJson(cfg)
}

func quote(c *cli.Context) error {
	decimals := uint8(c.Uint("decimals"))
	price, err := toBaseUnits(c.String("price"), decimals)
	if err != nil {
		return err
	}

	q, err := api.QuoteFees(c.Context, price)
	if err != nil {
		return err
	}

	fmt.Printf("price      %s\n", fromBaseUnits(q.Price, decimals))
	fmt.Printf("mint fee   %s (seller keeps %s)\n", fromBaseUnits(q.MintFee.Fee, decimals), fromBaseUnits(q.MintFee.Residual, decimals))
	fmt.Printf("trade fee  %s (seller receives %s)\n", fromBaseUnits(q.TradeFee.Fee, decimals), fromBaseUnits(q.TradeFee.Residual, decimals))
	fmt.Printf("relist fee %s\n", fromBaseUnits(q.RelistFee.Fee, decimals))

	return nil
}

func showListing(c *cli.Context) error {
	asset, err := key(c, "asset")
	if err != nil {
		return err
	}

	listing, err := api.GetListing(c.Context, asset)
	if err != nil {
		return err
	}
	return printJson(listing)
}

func activity(c *cli.Context) error {
	asset, err := key(c, "asset")
	if err != nil {
		return err
	}

	if c.Bool("follow") {
		return api.WatchActivity(c.Context, asset.String(), printAction)
	}

	if latest := c.String("latest"); latest != "" {
		action, err := api.GetLatestAction(c.Context, asset, entity.ActionType(latest))
		if err != nil {
			return err
		}
		return printJson(action)
	}

	actions, err := api.GetActions(c.Context, asset, c.Int("size"), c.Int("page"))
	if err != nil {
		return err
	}

	fmt.Printf("%d actions\n", actions.Total)
	for _, a := range actions.Actions {
		_ = printAction(a)
	}
	return nil
}

func printAction(a entity.Action) error {
	fmt.Printf("%s  %-18s %-6s amount=%d fee=%d %s -> %s\n", a.Time.Format("2006-01-02 15:04:05"), a.Type, a.Rail, a.Amount, a.Fee, a.From, a.To)
	return nil
}

func treasury(c *cli.Context) error {
	mint, err := key(c, "mint")
	if err != nil {
		return err
	}

	balance, err := api.TreasuryBalance(c.Context, mint)
	if err != nil {
		return err
	}

	fmt.Printf("%s holds %s of %s\n", balance.Treasury, fromBaseUnits(balance.Balance, uint8(c.Uint("decimals"))), balance.Mint)
	return nil
}

func withdraw(c *cli.Context) error {
	req := market.WithdrawRequest{}

	var err error
	if req.Admin, err = key(c, "admin"); err != nil {
		return err
	}
	if req.Mint, err = key(c, "mint"); err != nil {
		return err
	}
	if req.Amount, err = toBaseUnits(c.String("amount"), uint8(c.Uint("decimals"))); err != nil {
		return err
	}
	if req.TreasuryTokenAccount, err = optionalKey(c, "treasury-account"); err != nil {
		return err
	}
	if req.AdminTokenAccount, err = optionalKey(c, "admin-account"); err != nil {
		return err
	}
	for _, s := range c.StringSlice("signer") {
		signer, err := solana.PublicKeyFromBase58(strings.TrimSpace(s))
		if err != nil {
			return fmt.Errorf("signer %q: %w", s, err)
		}
		req.Signers = append(req.Signers, signer)
	}

	action, err := api.WithdrawTreasury(c.Context, req)
	if err != nil {
		return err
	}
	return printJson(action)
}

func mintAndList(c *cli.Context) error {
	decimals := uint8(c.Uint("decimals"))
	req := market.MintAndListRequest{Rail: entity.Rail(c.String("rail"))}

	var err error
	if req.Seller, err = key(c, "seller"); err != nil {
		return err
	}
	if req.Asset, err = key(c, "asset"); err != nil {
		return err
	}
	if req.Price, err = toBaseUnits(c.String("price"), decimals); err != nil {
		return err
	}
	if req.TokenFee, err = toBaseUnits(c.String("token-fee"), decimals); err != nil {
		return err
	}
	if req.SellerPaymentAccount, err = optionalKey(c, "payment-account"); err != nil {
		return err
	}
	if req.AdminTokenAccount, err = optionalKey(c, "admin-account"); err != nil {
		return err
	}

	listing, err := api.MintAndList(c.Context, req)
	if err != nil {
		return err
	}
	return printJson(listing)
}

func buy(c *cli.Context) error {
	req := market.BuyRequest{Rail: entity.Rail(c.String("rail"))}

	var err error
	if req.Buyer, err = key(c, "buyer"); err != nil {
		return err
	}
	if req.Seller, err = key(c, "seller"); err != nil {
		return err
	}
	if req.Asset, err = key(c, "asset"); err != nil {
		return err
	}
	if req.BuyerPaymentAccount, err = optionalKey(c, "buyer-account"); err != nil {
		return err
	}
	if req.SellerPaymentAccount, err = optionalKey(c, "seller-account"); err != nil {
		return err
	}
	if req.TreasuryTokenAccount, err = optionalKey(c, "treasury-account"); err != nil {
		return err
	}

	action, err := api.BuyNft(c.Context, req)
	if err != nil {
		return err
	}
	return printJson(action)
}

func relist(c *cli.Context) error {
	decimals := uint8(c.Uint("decimals"))
	req := market.RelistRequest{Rail: entity.Rail(c.String("rail"))}

	var err error
	if req.NewOwner, err = key(c, "owner"); err != nil {
		return err
	}
	if req.Asset, err = key(c, "asset"); err != nil {
		return err
	}
	if req.NewPrice, err = toBaseUnits(c.String("price"), decimals); err != nil {
		return err
	}
	if req.RelistFee, err = toBaseUnits(c.String("fee"), decimals); err != nil {
		return err
	}
	if req.SellerPaymentAccount, err = optionalKey(c, "payment-account"); err != nil {
		return err
	}
	if req.TreasuryTokenAccount, err = optionalKey(c, "treasury-account"); err != nil {
		return err
	}

	listing, err := api.RelistNft(c.Context, req)
	if err != nil {
		return err
	}
	return printJson(listing)
}

func send(c *cli.Context) error {
	req := market.SendRequest{}

	var err error
	if req.Sender, err = key(c, "sender"); err != nil {
		return err
	}
	if req.Recipient, err = key(c, "recipient"); err != nil {
		return err
	}
	if req.Mint, err = key(c, "mint"); err != nil {
		return err
	}
	if req.Amount, err = toBaseUnits(c.String("amount"), uint8(c.Uint("decimals"))); err != nil {
		return err
	}
	if req.SenderTokenAccount, err = optionalKey(c, "sender-account"); err != nil {
		return err
	}
	if req.RecipientTokenAccount, err = optionalKey(c, "recipient-account"); err != nil {
		return err
	}
	if req.TreasuryTokenAccount, err = optionalKey(c, "treasury-account"); err != nil {
		return err
	}

	action, err := api.SendToken(c.Context, req)
	if err != nil {
		return err
	}
	return printJson(action)
}

func swap(c *cli.Context) error {
	data, err := os.ReadFile(c.String("file"))
	if err != nil {
		return err
	}

	var req market.SwapRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return err
	}

	action, err := api.SwapToken(c.Context, req)
	if err != nil {
		return err
	}
	return printJson(action)
}

func airdrop(c *cli.Context) error {
	address, err := key(c, "address")
	if err != nil {
		return err
	}
	amount, err := toBaseUnits(c.String("amount"), uint8(c.Uint("decimals")))
	if err != nil {
		return err
	}

	return devRequest(c.Context, "airdrop", map[string]interface{}{"address": address, "amount": amount})
}

func createMint(c *cli.Context) error {
	return devRequest(c.Context, "mints", map[string]interface{}{"decimals": c.Uint("decimals")})
}

func fund(c *cli.Context) error {
	owner, err := key(c, "owner")
	if err != nil {
		return err
	}
	mint, err := key(c, "mint")
	if err != nil {
		return err
	}
	amount, err := toBaseUnits(c.String("amount"), uint8(c.Uint("decimals")))
	if err != nil {
		return err
	}

	return devRequest(c.Context, "fund", map[string]interface{}{"owner": owner, "mint": mint, "amount": amount})
}

func devPost(route string) cli.ActionFunc {
	return func(c *cli.Context) error {
		return devRequest(c.Context, route, nil)
	}
}

func devRequest(ctx context.Context, route string, body interface{}) error {
	var out json.RawMessage
	if err := api.Dev(ctx, route, body, &out); err != nil {
		return err
	}
	return printJson(out)
}

func decimalsFlag() cli.Flag {
	return &cli.UintFlag{Name: "decimals", Value: 9, Usage: "decimals of the mint amounts are given in"}
}

func key(c *cli.Context, name string) (solana.PublicKey, error) {
	k, err := solana.PublicKeyFromBase58(c.String(name))
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%s: %w", name, err)
	}
	return k, nil
}

func optionalKey(c *cli.Context, name string) (solana.PublicKey, error) {
	if c.String(name) == "" {
		return solana.PublicKey{}, nil
	}
	return key(c, name)
}

func printJson(v interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
