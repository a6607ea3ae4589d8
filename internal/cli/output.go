package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/sigweihq/walletbridge/pkg/providers"
	"github.com/sigweihq/walletbridge/pkg/types"
)

// resolutionView is the printable form of a provider resolution
type resolutionView struct {
	Wallet    types.WalletID            `json:"wallet"`
	Available bool                      `json:"available"`
	PublicKey string                    `json:"publicKey,omitempty"`
	Pending   *types.PendingAcquisition `json:"pending,omitempty"`
}

func newResolutionView(res *providers.Resolution) resolutionView {
	view := resolutionView{
		Wallet:    res.Wallet,
		Available: res.Available(),
		Pending:   res.Pending,
	}
	if res.Available() {
		view.PublicKey = res.Provider.PublicKey().String()
	}
	return view
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}

func writeResolution(w io.Writer, asJSON bool, res *providers.Resolution) error {
	view := newResolutionView(res)
	if asJSON {
		return writeJSON(w, view)
	}

	switch {
	case view.Available:
		_, err := fmt.Fprintf(w, "%s available: %s\n", view.Wallet, view.PublicKey)
		return err
	case view.Pending != nil:
		_, err := fmt.Fprintf(w, "%s pending (%s) id=%s session=%s\n",
			view.Wallet, view.Pending.Kind, view.Pending.ID, view.Pending.SessionToken)
		return err
	default:
		_, err := fmt.Fprintf(w, "%s not available\n", view.Wallet)
		return err
	}
}
