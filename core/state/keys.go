package state

import (
	"encoding/hex"
	"fmt"
)

const (
	accountPrefix    = "account/"
	poolKeyLiteral   = "amm/pool"
	relayNoncePrefix = "relay/nonce/"
	custodyPrefix    = "custody/proposal/"
	custodyCountKey  = "custody/count"
)

func accountKey(addr [20]byte) []byte {
	return []byte(accountPrefix + hex.EncodeToString(addr[:]))
}

func poolKey() []byte {
	return []byte(poolKeyLiteral)
}

func relayNonceKey(addr [20]byte) []byte {
	return []byte(relayNoncePrefix + hex.EncodeToString(addr[:]))
}

func custodyProposalKey(id uint64) []byte {
	return []byte(fmt.Sprintf("%s%d", custodyPrefix, id))
}
