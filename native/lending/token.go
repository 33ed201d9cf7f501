package lending

import (
	"encoding/binary"
	"encoding/hex"

	"lukechampine.com/blake3"
)

// OutputRef points at the transaction output a borrow consumed. Hashing it
// yields a name no two loans can share.
type OutputRef struct {
	TxHash string `json:"txHash"`
	Index  uint32 `json:"index"`
}

// BorrowerTokenName derives the deterministic collateral-record name for a
// loan from the output reference its borrow consumed.
func BorrowerTokenName(ref OutputRef) string {
	raw, err := hex.DecodeString(ref.TxHash)
	if err != nil {
		raw = []byte(ref.TxHash)
	}
	buf := make([]byte, 0, len(raw)+4)
	buf = append(buf, raw...)
	buf = binary.BigEndian.AppendUint32(buf, ref.Index)
	sum := blake3.Sum256(buf)
	return hex.EncodeToString(sum[:])
}
