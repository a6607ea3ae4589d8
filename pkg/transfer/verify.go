package transfer

import (
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"

	"github.com/sigweihq/walletbridge/pkg/utils"
)

// verifySignedTransfer checks that the wallet signed the transfer it was
// given: same fee payer and exactly one system transfer of lamports from
// payer to destination
func verifySignedTransfer(tx *solana.Transaction, payer, destination solana.PublicKey, lamports uint64) error {
	if tx == nil {
		return errors.New("wallet returned no transaction")
	}
	if len(tx.Signatures) == 0 || tx.Signatures[0].IsZero() {
		return errors.New("transaction is not signed")
	}
	if feePayer := utils.FeePayer(tx); !feePayer.Equals(payer) {
		return fmt.Errorf("fee payer changed from %s to %s", payer, feePayer)
	}

	transfers := 0
	for _, compiled := range tx.Message.Instructions {
		programID, err := tx.Message.ResolveProgramIDIndex(compiled.ProgramIDIndex)
		if err != nil {
			return fmt.Errorf("failed to resolve program id: %w", err)
		}
		if !programID.Equals(solana.SystemProgramID) {
			continue
		}

		var inst system.Instruction
		if err := inst.UnmarshalWithDecoder(bin.NewBinDecoder(compiled.Data)); err != nil {
			return fmt.Errorf("failed to decode system instruction: %w", err)
		}
		transfer, ok := inst.Impl.(*system.Transfer)
		if !ok {
			return fmt.Errorf("unexpected system instruction %d", inst.TypeID.Uint32())
		}
		transfers++

		if transfer.Lamports == nil || *transfer.Lamports != lamports {
			return fmt.Errorf("transfer amount changed, expected %d lamports", lamports)
		}
		if len(compiled.Accounts) < 2 {
			return errors.New("transfer instruction is missing accounts")
		}
		from, err := accountAt(tx, compiled.Accounts[0])
		if err != nil {
			return err
		}
		to, err := accountAt(tx, compiled.Accounts[1])
		if err != nil {
			return err
		}
		if !from.Equals(payer) || !to.Equals(destination) {
			return fmt.Errorf("transfer accounts changed to %s -> %s", from, to)
		}
	}

	if transfers != 1 {
		return fmt.Errorf("expected 1 transfer instruction, found %d", transfers)
	}
	return nil
}

func accountAt(tx *solana.Transaction, index uint16) (solana.PublicKey, error) {
	if int(index) >= len(tx.Message.AccountKeys) {
		return solana.PublicKey{}, fmt.Errorf("account index %d out of range", index)
	}
	return tx.Message.AccountKeys[index], nil
}
