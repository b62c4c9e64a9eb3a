package diffdecode

import (
	"github.com/holiman/uint256"

	"github.com/starksync/engine/statesync/ethtypes"
)

// VersionConfig carries the two L1-height thresholds that select decoder
// behavior, taken directly from StateSyncConfig.
type VersionConfig struct {
	V011DiffFormatHeight      uint64
	ConstructorArgsDiffHeight uint64
}

// Decode dispatches to the pre-0.11 or 0.11+ parser based on the L1 block
// height the diff's state update was observed at.
func Decode(cfg VersionConfig, l1BlockNumber uint64, words []*uint256.Int) (*ethtypes.StateDiff, error) {
	if l1BlockNumber < cfg.V011DiffFormatHeight {
		withConstructorArgs := l1BlockNumber < cfg.ConstructorArgsDiffHeight
		return decodePre011(words, withConstructorArgs)
	}
	return decodeV011(words)
}
