// Command storefront-cli browses the AgroFresh catalogue and manages a cart
// from the terminal.
package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/alecthomas/kong"
	"go.uber.org/zap"

	"github.com/T1collo/agrofresh/clients"
	"github.com/T1collo/agrofresh/database"
	"github.com/T1collo/agrofresh/models"
	"github.com/T1collo/agrofresh/pkg/productquery"
	"github.com/T1collo/agrofresh/pkg/session"
	"github.com/T1collo/agrofresh/pkg/sessionstore"
)

var version = "dev"

// Globals are shared by every command.
type Globals struct {
	Server  string        `help:"Storefront API base URL." default:"http://localhost:8080" env:"AGROFRESH_URL"`
	Token   string        `help:"Access token for signed-in commands." env:"AGROFRESH_TOKEN"`
	Timeout time.Duration `help:"HTTP timeout." default:"10s"`
	Debug   bool          `help:"Log client errors to stderr."`
	Redis   string        `help:"Redis URL for the local session cache; in-memory when empty." env:"AGROFRESH_REDIS_URL"`
	Session string        `help:"Session name used to namespace cached values." default:"cli"`

	out io.Writer `kong:"-"`
}

func (g *Globals) client() *clients.StorefrontClient {
	log := zap.NewNop()
	if g.Debug {
		log, _ = zap.NewDevelopment()
	}
	c := clients.NewStorefrontClient(g.Server, g.Timeout, log)
	if g.Token != "" {
		c.SetTokens(&clients.Tokens{AccessToken: g.Token})
	}
	return c
}

// storage keeps the profile and product caches. With Redis they survive
// between invocations.
func (g *Globals) storage(ctx context.Context) (sessionstore.Storage, func(), error) {
	if g.Redis == "" {
		return sessionstore.NewMemoryStorage(), func() {}, nil
	}
	rdb, err := database.NewRedisClient(ctx, g.Redis, zap.NewNop())
	if err != nil {
		return nil, nil, err
	}
	return sessionstore.NewRedisStorage(rdb, g.namespace(), sessionstore.DefaultSessionTTL), func() { _ = rdb.Close() }, nil
}

// namespace scopes cached values to the session name and the token, so a
// different token never sees another user's profile.
func (g *Globals) namespace() string {
	if g.Token == "" {
		return g.Session + ":anonymous"
	}
	sum := sha256.Sum256([]byte(g.Token))
	return g.Session + ":" + hex.EncodeToString(sum[:8])
}

func (g *Globals) print(v interface{}) error {
	enc := json.NewEncoder(g.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// CLI is the top-level command structure.
type CLI struct {
	Globals

	Version    kong.VersionFlag `help:"Show version." short:"V"`
	Products   ProductsCmd      `cmd:"" help:"List products."`
	Categories CategoriesCmd    `cmd:"" help:"List categories."`
	Login      LoginCmd         `cmd:"" help:"Sign in and print the token pair."`
	Register   RegisterCmd      `cmd:"" help:"Create an account."`
	Whoami     WhoamiCmd        `cmd:"" help:"Show the signed-in user."`
	Cart       CartCmd          `cmd:"" help:"Manage the cart."`
}

type ProductsCmd struct {
	Search     string `help:"Name contains (case-insensitive)." short:"s"`
	Category   string `help:"Category name."`
	CategoryID string `help:"Category id." name:"category-id"`
	Sort       string `help:"Sort column." default:"name"`
	Order      string `help:"asc or desc." enum:"asc,desc" default:"asc"`
	Limit      string `help:"Maximum number of products."`
}

func (p *ProductsCmd) Query() models.ProductQuery {
	return models.ProductQuery{
		CategoryID: p.CategoryID,
		Category:   p.Category,
		Search:     p.Search,
		Sort:       p.Sort,
		Order:      p.Order,
		Limit:      p.Limit,
	}
}

func (p *ProductsCmd) Run(g *Globals) error {
	ctx := context.Background()
	store, closeStore, err := g.storage(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	layer := productquery.New(g.client(), store)
	defer layer.Close()
	products, err := layer.FetchProducts(ctx, p.Query())
	if err != nil {
		return err
	}
	for _, pr := range products {
		fmt.Fprintf(g.out, "%s  %-24s %8.2f / %g %s  (stock %d)\n", pr.ID, pr.Name, pr.Price, pr.UnitQuantity, pr.Unit, pr.Stock)
	}
	return nil
}

type CategoriesCmd struct{}

func (CategoriesCmd) Run(g *Globals) error {
	categories, err := g.client().ListCategories(context.Background())
	if err != nil {
		return err
	}
	for _, c := range categories {
		fmt.Fprintln(g.out, c.Name)
	}
	return nil
}

type LoginCmd struct {
	Email    string `help:"Account email." required:""`
	Password string `help:"Account password." required:"" env:"AGROFRESH_PASSWORD"`
}

func (l *LoginCmd) Run(g *Globals) error {
	tokens, err := g.client().SignIn(context.Background(), l.Email, l.Password)
	if err != nil {
		return err
	}
	return g.print(tokens)
}

type RegisterCmd struct {
	Email           string `help:"Account email." required:""`
	Name            string `help:"Display name." required:""`
	Phone           string `help:"Phone number."`
	Password        string `help:"Password." required:"" env:"AGROFRESH_PASSWORD"`
	ConfirmPassword string `help:"Repeat the password." required:"" name:"confirm-password"`
}

func (r *RegisterCmd) Run(g *Globals) error {
	cache := session.New(g.client(), sessionstore.NewMemoryStorage())
	user, err := cache.SignUp(context.Background(), clients.SignUpInput{
		Email:           r.Email,
		Password:        r.Password,
		ConfirmPassword: r.ConfirmPassword,
		Name:            r.Name,
		Phone:           r.Phone,
	})
	if err != nil {
		return err
	}
	return g.print(user)
}

type WhoamiCmd struct{}

func (WhoamiCmd) Run(g *Globals) error {
	ctx := context.Background()
	store, closeStore, err := g.storage(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	notifier := &printNotifier{w: g.out}
	cache := session.New(g.client(), store, session.WithNotifier(notifier))
	cache.Check(ctx)
	if cache.State() != session.StateAuthenticated {
		fmt.Fprintln(g.out, "not signed in")
		return nil
	}
	return g.print(cache.User())
}

type printNotifier struct{ w io.Writer }

func (n *printNotifier) Notify(msg string) { fmt.Fprintln(n.w, msg) }
func (n *printNotifier) RedirectToAuth()   { fmt.Fprintln(n.w, "run `storefront-cli login` to sign in") }

type CartCmd struct {
	Show     CartShowCmd     `cmd:"" default:"1" help:"Show the cart."`
	Add      CartAddCmd      `cmd:"" help:"Add a product."`
	Update   CartUpdateCmd   `cmd:"" help:"Set a line's quantity (0 removes it)."`
	Remove   CartRemoveCmd   `cmd:"" help:"Remove a line."`
	Clear    CartClearCmd    `cmd:"" help:"Empty the cart."`
	Checkout CartCheckoutCmd `cmd:"" help:"Start checkout."`
}

type CartShowCmd struct{}

func (CartShowCmd) Run(g *Globals) error {
	return printCart(g)(g.client().GetCart(context.Background()))
}

type CartAddCmd struct {
	ProductID string `arg:"" help:"Product id."`
	Quantity  int    `help:"Quantity to add." short:"q" default:"1"`
}

func (a *CartAddCmd) Run(g *Globals) error {
	return printCart(g)(g.client().AddToCart(context.Background(), a.ProductID, a.Quantity))
}

type CartUpdateCmd struct {
	ProductID string `arg:"" help:"Product id."`
	Quantity  int    `arg:"" help:"New quantity."`
}

func (u *CartUpdateCmd) Run(g *Globals) error {
	return printCart(g)(g.client().UpdateCartItem(context.Background(), u.ProductID, u.Quantity))
}

type CartRemoveCmd struct {
	ProductID string `arg:"" help:"Product id."`
}

func (r *CartRemoveCmd) Run(g *Globals) error {
	return printCart(g)(g.client().RemoveCartItem(context.Background(), r.ProductID))
}

type CartClearCmd struct{}

func (CartClearCmd) Run(g *Globals) error {
	return printCart(g)(g.client().ClearCart(context.Background()))
}

type CartCheckoutCmd struct{}

func (CartCheckoutCmd) Run(g *Globals) error {
	if err := g.client().Checkout(context.Background()); err != nil {
		return err
	}
	fmt.Fprintln(g.out, "checkout started")
	return nil
}

func printCart(g *Globals) func(*models.CartView, error) error {
	return func(view *models.CartView, err error) error {
		if err != nil {
			return err
		}
		for _, l := range view.Items {
			fmt.Fprintf(g.out, "%-24s %3d x %6.2f = %8.2f\n", l.Name, l.Quantity, l.UnitPrice, l.Subtotal())
		}
		fmt.Fprintf(g.out, "%d items, total %.2f\n", view.TotalItems, view.TotalPrice)
		return nil
	}
}

func main() {
	var cli CLI
	cli.out = os.Stdout
	ctx := kong.Parse(&cli,
		kong.Name("storefront-cli"),
		kong.Description("AgroFresh storefront from the terminal."),
		kong.Vars{"version": version},
		kong.Bind(&cli.Globals),
	)
	if err := ctx.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
}
