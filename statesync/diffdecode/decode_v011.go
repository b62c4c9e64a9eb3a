package diffdecode

import (
	"github.com/holiman/uint256"

	statesync "github.com/starksync/engine/statesync"
	"github.com/starksync/engine/statesync/ethtypes"
)

// numStorageUpdatesWidth is the bit width of the num_storage_updates field
// packed into the low bits of `summary`; the nonce occupies everything
// above it.
const numStorageUpdatesWidth = 64

// classInfoFlagBit is the bit of `summary` signalling a replaced class.
const classInfoFlagBit = 128

// decodeV011 parses the 0.11+ wire format: see SPEC_FULL.md 4.D.
func decodeV011(words []*uint256.Int) (*ethtypes.StateDiff, error) {
	c := newCursor(words)
	diff := ethtypes.NewStateDiff()

	numContractUpdates, err := c.takeUint64()
	if err != nil {
		return nil, err
	}

	for i := uint64(0); i < numContractUpdates; i++ {
		address, err := c.takeAddress()
		if err != nil {
			return nil, err
		}
		summary, err := c.take()
		if err != nil {
			return nil, err
		}

		// Uint64 already returns summary's low 64 bits, i.e. exactly the
		// num_storage_updates field; no mask needed.
		numStorageUpdates := summary.Uint64()
		classInfoFlag := summary.Bit(classInfoFlagBit) == 1

		nonceWord := new(uint256.Int).Rsh(summary, numStorageUpdatesWidth)
		nonceFelt, err := ethtypes.FeltFromU256(nonceWord)
		if err != nil {
			return nil, statesync.NewTypeError(err.Error())
		}
		diff.Nonces.Set(address, ethtypes.Nonce(nonceFelt))

		if classInfoFlag {
			classHash, err := c.takeClassHash()
			if err != nil {
				return nil, err
			}
			diff.ReplacedClasses.Set(address, classHash)
		}

		if numStorageUpdates > 0 {
			for j := uint64(0); j < numStorageUpdates; j++ {
				key, err := c.takeFelt()
				if err != nil {
					return nil, err
				}
				value, err := c.takeFelt()
				if err != nil {
					return nil, err
				}
				diff.SetStorage(address, ethtypes.StorageKey(key), value)
			}
		}
	}

	numDeclaredClasses, err := c.takeUint64()
	if err != nil {
		return nil, err
	}
	for i := uint64(0); i < numDeclaredClasses; i++ {
		classHash, err := c.takeClassHash()
		if err != nil {
			return nil, err
		}
		compiledFelt, err := c.takeFelt()
		if err != nil {
			return nil, err
		}
		diff.DeclaredClasses.Set(classHash, ethtypes.DeclaredClass{
			CompiledClassHash: ethtypes.CompiledClassHash(compiledFelt),
		})
	}

	return diff, nil
}
