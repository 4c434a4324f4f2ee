package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/capitalize-ai/shop-assistant/internal/assistant"
	"github.com/capitalize-ai/shop-assistant/internal/commerce"
	"github.com/capitalize-ai/shop-assistant/internal/model"
	"github.com/capitalize-ai/shop-assistant/internal/service"
)

// wishlistCmd represents the wishlist command
var wishlistCmd = &cobra.Command{
	Use:   "wishlist",
	Short: "Show the wishlist",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, log, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer log.Sync()
		defer a.Close()

		resp, err := service.NewShopService(a.Registry, log).Wishlist(cmd.Context(), sessionID)
		if err != nil {
			return err
		}
		printWishlist(cmd.OutOrStdout(), resp)
		return nil
	},
}

var toggleWishlistCmd = &cobra.Command{
	Use:   "toggle <sku>",
	Short: "Add a product to the wishlist, or remove it when already there",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, log, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer log.Sync()
		defer a.Close()

		resp, err := service.NewShopService(a.Registry, log).ToggleWishlist(cmd.Context(), sessionID, args[0])
		if err != nil {
			return err
		}
		printWishlist(cmd.OutOrStdout(), resp)
		return nil
	},
}

var syncWishlistCmd = &cobra.Command{
	Use:   "sync",
	Short: "Merge the wishlist with the signed-in account's",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, log, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer log.Sync()
		defer a.Close()

		resp, err := service.NewShopService(a.Registry, log).SyncWishlist(cmd.Context(), sessionID)
		if err != nil {
			return err
		}
		printWishlist(cmd.OutOrStdout(), resp)
		return nil
	},
}

func init() {
	wishlistCmd.AddCommand(toggleWishlistCmd, syncWishlistCmd)
}

func printWishlist(out io.Writer, resp *model.WishlistResponse) {
	if resp.Added != nil {
		if *resp.Added {
			fmt.Fprintln(out, "Đã thêm vào danh sách yêu thích.")
		} else {
			fmt.Fprintln(out, "Đã xóa khỏi danh sách yêu thích.")
		}
	}
	if resp.Count == 0 {
		fmt.Fprintln(out, metaStyle.Render("Danh sách yêu thích trống."))
		return
	}

	fmt.Fprintln(out, headingStyle.Render(fmt.Sprintf("Danh sách yêu thích (%d)", resp.Count)))
	for i, item := range resp.Items {
		fmt.Fprintf(out, "%d. %s %s\n", i+1, boldStyle.Render(item.Name), metaStyle.Render(item.SKU))
		if item.Price > 0 {
			fmt.Fprintf(out, "   Giá: %s\n", assistant.FormatAmount(commerce.Money{Value: item.Price, Currency: item.Currency}))
		}
	}
}
