package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sigweihq/walletbridge/pkg/balance"
	"github.com/sigweihq/walletbridge/pkg/constants"
	"github.com/sigweihq/walletbridge/pkg/session"
	"github.com/sigweihq/walletbridge/pkg/transfer"
	"github.com/sigweihq/walletbridge/pkg/types"
	"github.com/sigweihq/walletbridge/pkg/utils"
)

func newBalanceCmd(a *app) *cobra.Command {
	var connected string

	cmd := &cobra.Command{
		Use:   "balance [address]",
		Short: "Show the spendable SOL balance of an address",
		Long: `Show the spendable SOL balance of an address: the account balance minus
the rent-exempt reserve and one network fee. Without an address, or with a
placeholder address, the --connected address is used.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			address := ""
			if len(args) == 1 {
				address = args[0]
			}

			sess, err := session.New(connected)
			if err != nil {
				return err
			}

			reader := balance.NewReader(a.pool(), a.logger).WithMetrics(a.metrics)
			spendable, err := reader.SpendableBalance(cmd.Context(), sess, address)
			if err != nil {
				return err
			}

			if a.jsonOutput {
				return writeJSON(a.out, map[string]any{
					"address":   balance.ResolveAddress(sess, address),
					"spendable": spendable,
				})
			}
			_, err = fmt.Fprintf(a.out, "%s\n", strconv.FormatFloat(spendable, 'f', -1, 64))
			return err
		},
	}

	cmd.Flags().StringVar(&connected, "connected", "", "address of the connected wallet")
	return cmd
}

func newSendCmd(a *app) *cobra.Command {
	var (
		flags  walletFlags
		amount float64
		to     string
	)

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send native SOL and wait for confirmation",
		Long: `Send native SOL signed by a local keypair presented as the chosen wallet
brand, then poll until the transaction is confirmed or its blockhash expires.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			wallet, err := types.ParseWalletID(flags.wallet)
			if err != nil {
				return err
			}

			resolver, release, err := a.resolver(ctx, flags)
			if err != nil {
				return err
			}
			defer release()

			submitter := transfer.NewSubmitter(resolver, a.pool(), a.cfg.TransferSettings(), a.logger).WithMetrics(a.metrics)
			confirmation, err := submitter.Submit(ctx, a.environment(resolver, flags), types.TransferRequest{
				Wallet:      wallet,
				Amount:      amount,
				Destination: to,
			})
			if err != nil {
				return fmt.Errorf("transfer failed (%s): %w", transfer.ReasonOf(err), err)
			}

			if a.jsonOutput {
				return writeJSON(a.out, confirmation)
			}
			_, err = fmt.Fprintln(a.out, confirmation.TransactionID)
			return err
		},
	}

	cmd.Flags().StringVar(&flags.wallet, "wallet", string(types.WalletPhantom), "wallet brand (phantom, okx, bitget, backpack)")
	cmd.Flags().StringVar(&flags.keypair, "keypair", "", "path to the signing keypair file")
	cmd.Flags().StringVar(&flags.userAgent, "user-agent", "", "user agent of the requesting client")
	cmd.Flags().StringVar(&flags.origin, "origin", "", "origin of the requesting page")
	cmd.Flags().Float64Var(&amount, "amount", 0, "amount in SOL")
	cmd.Flags().StringVar(&to, "to", "", "destination address or recipient identifier such as +2222222222 (default "+constants.ReceiverPublicKey+")")
	_ = cmd.MarkFlagRequired("keypair")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func newResolveCmd(a *app) *cobra.Command {
	var flags walletFlags

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve a wallet provider for a client",
		Long: `Resolve a wallet provider the way a dapp would for the given client. When no
provider is injected, mobile clients get a deep link into the wallet app and
desktop clients get the install page. The navigation URL is printed and the
pending acquisition is saved for the complete command.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			wallet, err := types.ParseWalletID(flags.wallet)
			if err != nil {
				return err
			}

			resolver, release, err := a.resolver(ctx, flags)
			if err != nil {
				return err
			}
			defer release()

			res, err := resolver.Resolve(ctx, a.environment(resolver, flags), wallet, flags.callback)
			if err != nil {
				return err
			}
			return writeResolution(a.out, a.jsonOutput, res)
		},
	}

	cmd.Flags().StringVar(&flags.wallet, "wallet", string(types.WalletPhantom), "wallet brand (phantom, okx, bitget, backpack)")
	cmd.Flags().StringVar(&flags.keypair, "keypair", "", "path to a keypair to expose as the injected provider")
	cmd.Flags().StringVar(&flags.userAgent, "user-agent", "", "user agent of the requesting client")
	cmd.Flags().StringVar(&flags.origin, "origin", "", "origin of the requesting page")
	cmd.Flags().StringVar(&flags.callback, "callback", "", "URL the wallet app returns to (default origin)")
	return cmd
}

func newCompleteCmd(a *app) *cobra.Command {
	var flags walletFlags

	cmd := &cobra.Command{
		Use:   "complete <session-token|callback-url>",
		Short: "Complete a pending wallet acquisition",
		Long: `Complete a pending acquisition once the user is back from the wallet app or
install page. Accepts the callback URL the wallet opened, the bare session
token, or the pending id of an install flow.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			resolver, release, err := a.resolver(ctx, flags)
			if err != nil {
				return err
			}
			defer release()

			key := args[0]
			complete := resolver.CompleteRedirect
			if strings.Contains(key, "://") {
				complete = resolver.CompleteCallback
			}
			res, err := complete(ctx, key)
			if err != nil {
				return err
			}
			return writeResolution(a.out, a.jsonOutput, res)
		},
	}

	cmd.Flags().StringVar(&flags.wallet, "wallet", "", "wallet brand the keypair is exposed as (default the pending acquisition's wallet)")
	cmd.Flags().StringVar(&flags.keypair, "keypair", "", "path to a keypair to expose as the injected provider")
	return cmd
}

func newKeygenCmd(a *app) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a Solana keypair for the send and resolve commands",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			privateKeyHex, address, err := utils.GenerateSolanaKeypair()
			if err != nil {
				return err
			}

			if out != "" {
				if err := os.WriteFile(out, []byte(privateKeyHex+"\n"), 0o600); err != nil {
					return fmt.Errorf("write keypair: %w", err)
				}
				_, err = fmt.Fprintln(a.out, address)
				return err
			}
			_, err = fmt.Fprintf(a.out, "%s %s\n", address, privateKeyHex)
			return err
		},
	}

	cmd.Flags().StringVar(&out, "out", "", "write the hex private key to this file and print only the address")
	return cmd
}

func newRandomCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "random [length]",
		Short: "Print a random alphanumeric string",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			length := constants.SessionTokenLength
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid length %q: %w", args[0], err)
				}
				length = n
			}

			s, err := utils.GenerateSecureRandomString(length)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(a.out, s)
			return err
		},
	}
}
