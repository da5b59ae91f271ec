package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/angelmondragon/storefront/internal/cart"
	"github.com/angelmondragon/storefront/internal/checkout"
	"github.com/angelmondragon/storefront/internal/search"
	"github.com/angelmondragon/storefront/pkg/config"
	"github.com/angelmondragon/storefront/pkg/env"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/types"
)

const envToken = "STOREFRONT_TOKEN"

// newRootCmd returns the command tree and a finish func that releases the
// opened services and prints pending notifications. finish is safe to call
// when no command ran.
func newRootCmd(loadConfig func() (*config.Config, error)) (*cobra.Command, func()) {
	var (
		token  string
		opened *app
	)

	root := &cobra.Command{
		Use:           "storefront",
		Short:         "Browse the marketplace, manage the cart and check out",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if token == "" {
				token = env.Get(envToken, "")
			}
			a, err := openApp(cmd.Context(), cfg, cliLogger(cfg), token)
			if err != nil {
				return err
			}
			opened = a
			cmd.SetContext(contextWithApp(cmd.Context(), a))
			return nil
		},
	}
	root.PersistentFlags().StringVar(&token, "token", "", "bearer token from the marketplace login (default $"+envToken+")")

	root.AddCommand(
		newSearchCmd(),
		newCatalogCmd(),
		newListCmd("cart", cart.NamespaceCart),
		newListCmd("basket", cart.NamespaceBasket),
		newRemoteCartCmd(),
		newCheckoutCmd(),
		newAddressesCmd(),
	)

	finish := func() {
		if opened == nil {
			return
		}
		opened.close()
		printNotifications(root.ErrOrStderr(), opened)
		opened = nil
	}
	return root, finish
}

func newSearchCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search <term>",
		Short: "Filter cached products by name or description",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd)
			term := args[0]
			if !search.Searchable(term) {
				return printJSON(cmd.OutOrStdout(), []types.Product{})
			}
			return printJSON(cmd.OutOrStdout(), search.FilterLimit(a.catalog.Products(cmd.Context()), term, limit))
		},
	}
	cmd.Flags().IntVar(&limit, "limit", search.DefaultLimit, "maximum number of results")
	return cmd
}

func newCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "catalog", Short: "Inspect the cached catalog"}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "refresh",
			Short: "Fetch the product catalog again",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				products, err := appFrom(cmd).catalog.Refresh(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d products cached\n", len(products))
				return nil
			},
		},
		&cobra.Command{
			Use:   "packages",
			Short: "List packages",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return printJSON(cmd.OutOrStdout(), appFrom(cmd).catalog.Packages(cmd.Context()))
			},
		},
	)
	return cmd
}

// newListCmd builds the subcommands shared by the cart and the basket.
func newListCmd(name string, ns cart.Namespace) *cobra.Command {
	cmd := &cobra.Command{Use: name, Short: "Manage the local " + name}

	var qty int
	add := &cobra.Command{
		Use:   "add <id>",
		Short: "Add a catalog entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a := appFrom(cmd)
			line, err := lookupLine(cmd, a, ns, id, qty)
			if err != nil {
				return err
			}
			if _, err := a.cart.Add(cmd.Context(), ns, line); err != nil {
				return err
			}
			return printSummary(cmd, a, ns)
		},
	}
	add.Flags().IntVar(&qty, "qty", 1, "quantity to add")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "Show lines and total",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return printSummary(cmd, appFrom(cmd), ns)
			},
		},
		add,
		&cobra.Command{
			Use:   "qty <id> <quantity>",
			Short: "Set a line quantity; below one removes it",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				n, err := strconv.Atoi(args[1])
				if err != nil {
					return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be numeric")
				}
				a := appFrom(cmd)
				if _, err := a.cart.SetQuantity(cmd.Context(), ns, id, n); err != nil {
					return err
				}
				return printSummary(cmd, a, ns)
			},
		},
		&cobra.Command{
			Use:   "rm <id>",
			Short: "Remove a line",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				a := appFrom(cmd)
				if _, err := a.cart.Remove(cmd.Context(), ns, id); err != nil {
					return err
				}
				return printSummary(cmd, a, ns)
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Remove every line",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return appFrom(cmd).cart.Clear(cmd.Context(), ns)
			},
		},
	)
	return cmd
}

func newRemoteCartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remote-cart",
		Short: "Show the marketplace cart grouped by store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			view, err := appFrom(cmd).cart.FetchRemote(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), view)
		},
	}
}

func newCheckoutCmd() *cobra.Command {
	var (
		namespace string
		req       checkout.Request
	)
	cmd := &cobra.Command{
		Use:   "checkout",
		Short: "Place one order per store of the remote cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ns, err := cart.ParseNamespace(namespace)
			if err != nil {
				return err
			}
			req.Namespace = ns

			progress, err := appFrom(cmd).checkout.Checkout(cmd.Context(), req)
			if progress == nil {
				if p, ok := pkgerrors.As(err).Details().(checkout.Progress); ok {
					progress = &p
				}
			}
			if progress != nil {
				if printErr := printJSON(cmd.OutOrStdout(), progress); printErr != nil {
					return printErr
				}
			}
			return err
		},
	}
	cmd.Flags().StringVar(&namespace, "namespace", "cart", "list to clear on success: cart or basket")
	cmd.Flags().StringVar(&req.PaymentMethodID, "payment", "", "payment method id")
	cmd.Flags().Int64Var(&req.AddressID, "address-id", 0, "saved address id (default: the selected address)")
	cmd.Flags().StringVar(&req.CouponCode, "coupon", "", "coupon code")
	_ = cmd.MarkFlagRequired("payment")
	return cmd
}

func newAddressesCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "addresses", Short: "Manage saved addresses"}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List saved addresses",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return printJSON(cmd.OutOrStdout(), appFrom(cmd).addresses.List(cmd.Context()))
			},
		},
		&cobra.Command{
			Use:   "rm <id>",
			Short: "Delete a saved address",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				return appFrom(cmd).addresses.Delete(cmd.Context(), id)
			},
		},
	)
	return cmd
}

func lookupLine(cmd *cobra.Command, a *app, ns cart.Namespace, id int64, qty int) (cart.Line, error) {
	if ns == cart.NamespaceBasket {
		pkg, err := a.catalog.Package(cmd.Context(), id)
		if err != nil {
			return cart.Line{}, err
		}
		return cart.FromPackage(*pkg, qty), nil
	}
	for _, p := range a.catalog.Products(cmd.Context()) {
		if p.ID == id {
			return cart.FromProduct(p, qty), nil
		}
	}
	return cart.Line{}, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("product %d not found", id))
}

func printSummary(cmd *cobra.Command, a *app, ns cart.Namespace) error {
	summary, err := a.cart.Summary(cmd.Context(), ns)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), summary)
}

func printNotifications(w io.Writer, a *app) {
	for _, n := range a.notes.Drain() {
		fmt.Fprintf(w, "[%s] %s\n", n.Level, n.Message)
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "id must be a positive integer")
	}
	return id, nil
}
