// Package dapublish implements the DA Publisher (component G): it reads
// the on-chain publication cursor, encodes a pending diff for whichever
// core-contract variant is configured, signs and submits the transaction
// from a single owner account, and records the attempt in the audit log
// before and after submission. Transaction construction follows this
// codebase's single-key transactor pattern rather than a full HD wallet.
package dapublish

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"

	statesync "github.com/starksync/engine/statesync"
	"github.com/starksync/engine/statesync/daaudit"
	"github.com/starksync/engine/statesync/dacontract"
	"github.com/starksync/engine/statesync/dastore"
)

// Backend is the subset of an Ethereum client the publisher needs: reading
// the current published state and submitting a signed transaction.
type Backend interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	ChainID(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// Publisher submits state diffs to the configured core contract.
type Publisher struct {
	log     log.Logger
	backend Backend
	store   *dastore.Store
	audit   *daaudit.Log
	core    common.Address
	key     *ecdsa.PrivateKey
	account common.Address
	legacy  bool
}

func New(l log.Logger, backend Backend, store *dastore.Store, audit *daaudit.Log, core common.Address, key *ecdsa.PrivateKey, legacy bool) *Publisher {
	return &Publisher{
		log:     l,
		backend: backend,
		store:   store,
		audit:   audit,
		core:    core,
		key:     key,
		account: crypto.PubkeyToAddress(key.PublicKey),
		legacy:  legacy,
	}
}

// LastPublishedHeight reads the contract's on-chain publication cursor.
func (p *Publisher) LastPublishedHeight(ctx context.Context) (*uint256.Int, error) {
	if p.legacy {
		ret, err := p.backend.CallContract(ctx, ethereum.CallMsg{To: &p.core, Data: dacontract.LastPublishedStateCalldata()}, nil)
		if err != nil {
			return nil, statesync.NewL1Connection("lastPublishedState call failed", err)
		}
		return dacontract.DecodeLastPublishedState(ret)
	}
	ret, err := p.backend.CallContract(ctx, ethereum.CallMsg{To: &p.core, Data: dacontract.LastStateCalldata()}, nil)
	if err != nil {
		return nil, statesync.NewL1Connection("LastState call failed", err)
	}
	_, blockNumber, _, err := dacontract.DecodeLastState(ret)
	return blockNumber, err
}

// Publish encodes and submits the pending diff for blockHash, recording
// the attempt in the audit log before and after submission.
func (p *Publisher) Publish(ctx context.Context, blockHash common.Hash, l2BlockNumber int64, stateDiff []*uint256.Int) error {
	jobID, ok, err := p.store.JobID(blockHash)
	if err != nil {
		return statesync.NewOther("read job id failed", err)
	}
	if !ok {
		jobID, err = p.store.PutPendingDiff(blockHash, stateDiff)
		if err != nil {
			return statesync.NewCommitStorage("persist pending diff failed", err)
		}
	}
	if err := p.audit.RecordPending(ctx, jobID, blockHash, l2BlockNumber); err != nil {
		return statesync.NewOther("record pending audit row failed", err)
	}

	calldata, err := p.buildCalldata(ctx, stateDiff)
	if err != nil {
		return statesync.NewConstructTransaction("build DA calldata failed", err)
	}

	tx, err := p.sign(ctx, calldata)
	if err != nil {
		_ = p.audit.MarkFailed(ctx, jobID)
		return statesync.NewConstructTransaction("sign DA transaction failed", err)
	}

	if err := p.backend.SendTransaction(ctx, tx); err != nil {
		_ = p.audit.MarkFailed(ctx, jobID)
		return statesync.NewL1Connection("submit DA transaction failed", err)
	}

	if err := p.audit.MarkConfirmed(ctx, jobID, uint64(l2BlockNumber), tx.Hash()); err != nil {
		p.log.Warn("dapublish: audit confirm update failed", "job", jobID, "err", err)
	}
	if err := p.store.DeletePendingDiff(blockHash); err != nil {
		p.log.Warn("dapublish: pending diff cleanup failed", "block_hash", blockHash, "err", err)
	}
	if err := p.store.SetLastProvedBlock(blockHash); err != nil {
		p.log.Warn("dapublish: last-proved-block update failed", "block_hash", blockHash, "err", err)
	}
	return nil
}

func (p *Publisher) buildCalldata(ctx context.Context, stateDiff []*uint256.Int) ([]byte, error) {
	if p.legacy {
		return dacontract.EncodeLegacyUpdateState(stateDiff)
	}
	last, err := p.LastPublishedHeight(ctx)
	if err != nil {
		return nil, err
	}
	next := new(uint256.Int).AddUint64(last, 1)
	return overwriteTestnetBlockNumberShim(stateDiff, next)
}

// overwriteTestnetBlockNumberShim is the publisher's one call site for the
// known testnet-only quirk: dacontract.EncodeUpdateState overwrites the
// block_number slot with nextBlockNumber (last_published_state()+1)
// regardless of the value in stateDiff. The overwrite itself happens inside
// that encoder, not in this function.
func overwriteTestnetBlockNumberShim(stateDiff []*uint256.Int, nextBlockNumber *uint256.Int) ([]byte, error) {
	return dacontract.EncodeUpdateState(stateDiff, nextBlockNumber)
}

func (p *Publisher) sign(ctx context.Context, calldata []byte) (*types.Transaction, error) {
	nonce, err := p.backend.PendingNonceAt(ctx, p.account)
	if err != nil {
		return nil, fmt.Errorf("nonce lookup: %w", err)
	}
	gasPrice, err := p.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("gas price suggestion: %w", err)
	}
	chainID, err := p.backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("chain id lookup: %w", err)
	}
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &p.core,
		Value:    big.NewInt(0),
		Gas:      3_000_000,
		GasPrice: gasPrice,
		Data:     calldata,
	})
	signer := types.LatestSignerForChainID(chainID)
	return types.SignTx(tx, signer, p.key)
}
