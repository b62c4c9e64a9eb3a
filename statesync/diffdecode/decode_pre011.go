package diffdecode

import (
	"github.com/holiman/uint256"

	"github.com/starksync/engine/statesync/ethtypes"
)

// decodePre011 parses the format used before StarkNet 0.11: see
// SPEC_FULL.md 4.D. withConstructorArgs selects whether each deployment
// entry is followed by a constructor-args length + args to skip; the
// validated golden vector (SPEC_FULL.md §8 scenario 5) decodes with it
// false, which this implementation follows as the resolved reading of the
// conflicting source revisions (see DESIGN.md Open Questions).
func decodePre011(words []*uint256.Int, withConstructorArgs bool) (*ethtypes.StateDiff, error) {
	c := newCursor(words)
	diff := ethtypes.NewStateDiff()

	numDeploymentCells, err := c.takeUint64()
	if err != nil {
		return nil, err
	}

	for uint64(c.offset-1) < numDeploymentCells {
		address, err := c.takeAddress()
		if err != nil {
			return nil, err
		}
		classHash, err := c.takeClassHash()
		if err != nil {
			return nil, err
		}
		diff.DeployedContracts.Set(address, classHash)

		if withConstructorArgs {
			k, err := c.takeUint64()
			if err != nil {
				return nil, err
			}
			c.skip(k)
		}
	}

	updatesLen, err := c.takeUint64()
	if err != nil {
		return nil, err
	}
	for i := uint64(0); i < updatesLen; i++ {
		address, err := c.takeAddress()
		if err != nil {
			return nil, err
		}
		word, err := c.peek()
		if err != nil {
			return nil, err
		}
		// Uint64 already returns word's low 64 bits, i.e. exactly the
		// num_storage_updates field; no mask needed.
		numUpdates := word.Uint64()
		nonceWord := new(uint256.Int).Rsh(word, numStorageUpdatesWidth)
		nonceFelt, err := ethtypes.FeltFromU256(nonceWord)
		if err != nil {
			return nil, err
		}
		c.advance()
		diff.Nonces.Set(address, ethtypes.Nonce(nonceFelt))

		for j := uint64(0); j < numUpdates; j++ {
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

	return diff, nil
}
