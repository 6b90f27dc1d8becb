package ethereum

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// ABI fragments for the two contracts the relayer drives (spec §6). Kept
// as Go const string literals and parsed with go-ethereum's abi package,
// following the teacher's anchor-manager ABI convention.
const (
	intentPoolABI = `[
		{"type":"function","name":"createIntent","stateMutability":"payable","inputs":[
			{"name":"id","type":"bytes32"},{"name":"commitment","type":"bytes32"},
			{"name":"srcToken","type":"address"},{"name":"srcAmt","type":"uint256"},
			{"name":"dstToken","type":"address"},{"name":"dstAmt","type":"uint256"},
			{"name":"dstChain","type":"uint256"},{"name":"refundTo","type":"address"},
			{"name":"deadline","type":"uint256"}],"outputs":[]},
		{"type":"function","name":"settleIntent","stateMutability":"nonpayable","inputs":[
			{"name":"id","type":"bytes32"},{"name":"solver","type":"address"},
			{"name":"proof","type":"bytes32[]"},{"name":"leafIndex","type":"uint256"}],"outputs":[]},
		{"type":"function","name":"refund","stateMutability":"nonpayable","inputs":[
			{"name":"id","type":"bytes32"}],"outputs":[]},
		{"type":"function","name":"syncDestChainFillRoot","stateMutability":"nonpayable","inputs":[
			{"name":"chainId","type":"uint256"},{"name":"root","type":"bytes32"}],"outputs":[]},
		{"type":"function","name":"getMerkleRoot","stateMutability":"view","inputs":[],
			"outputs":[{"name":"","type":"bytes32"}]},
		{"type":"function","name":"destChainFillRoots","stateMutability":"view","inputs":[
			{"name":"chainId","type":"uint256"}],"outputs":[{"name":"","type":"bytes32"}]},
		{"type":"function","name":"getIntent","stateMutability":"view","inputs":[
			{"name":"id","type":"bytes32"}],"outputs":[
			{"name":"commitment","type":"bytes32"},{"name":"srcToken","type":"address"},
			{"name":"srcAmt","type":"uint256"},{"name":"dstToken","type":"address"},
			{"name":"dstAmt","type":"uint256"},{"name":"dstChain","type":"uint256"},
			{"name":"deadline","type":"uint256"},{"name":"filled","type":"bool"},
			{"name":"refunded","type":"bool"}]},
		{"type":"event","name":"IntentCreated","anonymous":false,"inputs":[
			{"name":"id","type":"bytes32","indexed":true},{"name":"commitment","type":"bytes32","indexed":true},
			{"name":"srcToken","type":"address","indexed":false},{"name":"srcAmt","type":"uint256","indexed":false},
			{"name":"dstToken","type":"address","indexed":false},{"name":"dstAmt","type":"uint256","indexed":false},
			{"name":"dstChain","type":"uint256","indexed":false},{"name":"refundTo","type":"address","indexed":false},
			{"name":"deadline","type":"uint256","indexed":false}]},
		{"type":"event","name":"IntentSettled","anonymous":false,"inputs":[
			{"name":"id","type":"bytes32","indexed":true},{"name":"solver","type":"address","indexed":false}]}
	]`

	settlementABI = `[
		{"type":"function","name":"registerIntent","stateMutability":"nonpayable","inputs":[
			{"name":"id","type":"bytes32"},{"name":"commitment","type":"bytes32"},
			{"name":"token","type":"address"},{"name":"amount","type":"uint256"},
			{"name":"srcChain","type":"uint256"},{"name":"deadline","type":"uint256"},
			{"name":"srcRoot","type":"bytes32"},{"name":"proof","type":"bytes32[]"},
			{"name":"leafIndex","type":"uint256"}],"outputs":[]},
		{"type":"function","name":"fillIntent","stateMutability":"payable","inputs":[
			{"name":"id","type":"bytes32"},{"name":"commitment","type":"bytes32"},
			{"name":"srcChain","type":"uint256"},{"name":"token","type":"address"},
			{"name":"amount","type":"uint256"}],"outputs":[]},
		{"type":"function","name":"claimWithdrawal","stateMutability":"nonpayable","inputs":[
			{"name":"id","type":"bytes32"},{"name":"nullifier","type":"bytes32"},
			{"name":"recipient","type":"address"},{"name":"secret","type":"bytes32"},
			{"name":"claimAuth","type":"bytes"}],"outputs":[]},
		{"type":"function","name":"syncSourceChainCommitmentRoot","stateMutability":"nonpayable","inputs":[
			{"name":"chainId","type":"uint256"},{"name":"root","type":"bytes32"}],"outputs":[]},
		{"type":"function","name":"generateFillProof","stateMutability":"view","inputs":[
			{"name":"id","type":"bytes32"}],"outputs":[{"name":"","type":"bytes32[]"}]},
		{"type":"function","name":"getFillIndex","stateMutability":"view","inputs":[
			{"name":"id","type":"bytes32"}],"outputs":[{"name":"","type":"uint256"}]},
		{"type":"function","name":"getFill","stateMutability":"view","inputs":[
			{"name":"id","type":"bytes32"}],"outputs":[
			{"name":"solver","type":"address"},{"name":"token","type":"address"},
			{"name":"amount","type":"uint256"}]},
		{"type":"function","name":"getIntentParams","stateMutability":"view","inputs":[
			{"name":"id","type":"bytes32"}],"outputs":[
			{"name":"token","type":"address"},{"name":"amount","type":"uint256"},
			{"name":"srcChain","type":"uint256"},{"name":"deadline","type":"uint256"},
			{"name":"exists","type":"bool"}]},
		{"type":"function","name":"sourceChainCommitmentRoots","stateMutability":"view","inputs":[
			{"name":"chainId","type":"uint256"}],"outputs":[{"name":"","type":"bytes32"}]},
		{"type":"event","name":"IntentRegistered","anonymous":false,"inputs":[
			{"name":"id","type":"bytes32","indexed":true},{"name":"commitment","type":"bytes32","indexed":true},
			{"name":"token","type":"address","indexed":false},{"name":"amount","type":"uint256","indexed":false},
			{"name":"srcChain","type":"uint256","indexed":false},{"name":"deadline","type":"uint256","indexed":false}]},
		{"type":"event","name":"IntentFilled","anonymous":false,"inputs":[
			{"name":"id","type":"bytes32","indexed":true},{"name":"commitment","type":"bytes32","indexed":true},
			{"name":"solver","type":"address","indexed":false},{"name":"amount","type":"uint256","indexed":false}]},
		{"type":"event","name":"WithdrawalClaimed","anonymous":false,"inputs":[
			{"name":"id","type":"bytes32","indexed":true},{"name":"nullifier","type":"bytes32","indexed":true},
			{"name":"recipient","type":"address","indexed":false}]}
	]`

	erc20ABI = `[
		{"type":"function","name":"approve","stateMutability":"nonpayable","inputs":[
			{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],
			"outputs":[{"name":"","type":"bool"}]},
		{"type":"function","name":"allowance","stateMutability":"view","inputs":[
			{"name":"owner","type":"address"},{"name":"spender","type":"address"}],
			"outputs":[{"name":"","type":"uint256"}]},
		{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[
			{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
	]`
)

// IntentParams is the decoded return of getIntentParams on the settlement
// contract.
type IntentParams struct {
	Token    common.Address
	Amount   *big.Int
	SrcChain *big.Int
	Deadline *big.Int
	Exists   bool
}

// Fill is the decoded return of getFill on the settlement contract.
type Fill struct {
	Solver common.Address
	Token  common.Address
	Amount *big.Int
}

// GetMerkleRoot reads the intent pool's current commitment root.
func (c *Client) GetMerkleRoot(ctx context.Context, intentPool common.Address) ([32]byte, error) {
	out, err := c.CallContract(ctx, intentPool, intentPoolABI, "getMerkleRoot")
	if err != nil {
		return [32]byte{}, err
	}
	return out[0].([32]byte), nil
}

// DestChainFillRoot reads the last fill root synced from chainID onto the
// intent pool.
func (c *Client) DestChainFillRoot(ctx context.Context, intentPool common.Address, chainID *big.Int) ([32]byte, error) {
	out, err := c.CallContract(ctx, intentPool, intentPoolABI, "destChainFillRoots", chainID)
	if err != nil {
		return [32]byte{}, err
	}
	return out[0].([32]byte), nil
}

// SourceChainCommitmentRoot reads the last commitment root synced from
// chainID onto the settlement contract.
func (c *Client) SourceChainCommitmentRoot(ctx context.Context, settlement common.Address, chainID *big.Int) ([32]byte, error) {
	out, err := c.CallContract(ctx, settlement, settlementABI, "sourceChainCommitmentRoots", chainID)
	if err != nil {
		return [32]byte{}, err
	}
	return out[0].([32]byte), nil
}

// GetIntentParams reads the settlement contract's view of a registered
// intent.
func (c *Client) GetIntentParams(ctx context.Context, settlement common.Address, id [32]byte) (*IntentParams, error) {
	out, err := c.CallContract(ctx, settlement, settlementABI, "getIntentParams", id)
	if err != nil {
		return nil, err
	}
	return &IntentParams{
		Token:    out[0].(common.Address),
		Amount:   out[1].(*big.Int),
		SrcChain: out[2].(*big.Int),
		Deadline: out[3].(*big.Int),
		Exists:   out[4].(bool),
	}, nil
}

// GetFill reads the settlement contract's record of a fill.
func (c *Client) GetFill(ctx context.Context, settlement common.Address, id [32]byte) (*Fill, error) {
	out, err := c.CallContract(ctx, settlement, settlementABI, "getFill", id)
	if err != nil {
		return nil, err
	}
	return &Fill{
		Solver: out[0].(common.Address),
		Token:  out[1].(common.Address),
		Amount: out[2].(*big.Int),
	}, nil
}

// GenerateFillProof asks the settlement contract for the on-chain fill
// proof for an intent (used by the settlement worker).
func (c *Client) GenerateFillProof(ctx context.Context, settlement common.Address, id [32]byte) ([][32]byte, error) {
	out, err := c.CallContract(ctx, settlement, settlementABI, "generateFillProof", id)
	if err != nil {
		return nil, err
	}
	return out[0].([][32]byte), nil
}

// GetFillIndex asks the settlement contract for the leaf index of a fill.
func (c *Client) GetFillIndex(ctx context.Context, settlement common.Address, id [32]byte) (*big.Int, error) {
	out, err := c.CallContract(ctx, settlement, settlementABI, "getFillIndex", id)
	if err != nil {
		return nil, err
	}
	return out[0].(*big.Int), nil
}

// Allowance reads an ERC-20 allowance.
func (c *Client) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	out, err := c.CallContract(ctx, token, erc20ABI, "allowance", owner, spender)
	if err != nil {
		return nil, err
	}
	return out[0].(*big.Int), nil
}

// BalanceOf reads an ERC-20 balance.
func (c *Client) BalanceOf(ctx context.Context, token, account common.Address) (*big.Int, error) {
	out, err := c.CallContract(ctx, token, erc20ABI, "balanceOf", account)
	if err != nil {
		return nil, err
	}
	return out[0].(*big.Int), nil
}

// RegisterIntent submits registerIntent on the settlement contract (spec
// §4.3 step 7).
func (c *Client) RegisterIntent(ctx context.Context, settlement common.Address, privateKeyHex string, gasLimit uint64,
	id, commitment [32]byte, tokenAddr common.Address, amount, srcChain, deadline *big.Int, srcRoot [32]byte, proof [][32]byte, leafIndex *big.Int) (*ContractCallResult, error) {
	return c.SendContractTransactionWithRetry(ctx, settlement, settlementABI, privateKeyHex, "registerIntent", gasLimit, 3,
		id, commitment, tokenAddr, amount, srcChain, deadline, srcRoot, proof, leafIndex)
}

// SettleIntent submits settleIntent on the intent pool contract (spec
// §4.4 step 5).
func (c *Client) SettleIntent(ctx context.Context, intentPool common.Address, privateKeyHex string, gasLimit uint64,
	id [32]byte, solver common.Address, proof [][32]byte, leafIndex *big.Int) (*ContractCallResult, error) {
	return c.SendContractTransactionWithRetry(ctx, intentPool, intentPoolABI, privateKeyHex, "settleIntent", gasLimit, 3,
		id, solver, proof, leafIndex)
}

// ClaimWithdrawal submits claimWithdrawal on the settlement contract (spec
// §4.5 claim path).
func (c *Client) ClaimWithdrawal(ctx context.Context, settlement common.Address, privateKeyHex string, gasLimit uint64,
	id, nullifier common.Hash, recipient common.Address, secret common.Hash, claimAuth []byte) (*ContractCallResult, error) {
	return c.SendContractTransactionWithRetry(ctx, settlement, settlementABI, privateKeyHex, "claimWithdrawal", gasLimit, 3,
		id, nullifier, recipient, secret, claimAuth)
}

// Refund submits refund on the intent pool contract (spec §4.5 refund
// path). Callers must treat a revert containing "intent already
// processed" as success.
func (c *Client) Refund(ctx context.Context, intentPool common.Address, privateKeyHex string, gasLimit uint64, id [32]byte) (*ContractCallResult, error) {
	return c.SendContractTransactionWithRetry(ctx, intentPool, intentPoolABI, privateKeyHex, "refund", gasLimit, 3, id)
}

// SyncDestChainFillRoot pushes a fill root onto the intent pool contract
// for a given counter-chain id (root-sync coordinator).
func (c *Client) SyncDestChainFillRoot(ctx context.Context, intentPool common.Address, privateKeyHex string, gasLimit uint64, chainID *big.Int, root [32]byte) (*ContractCallResult, error) {
	return c.SendContractTransactionWithRetry(ctx, intentPool, intentPoolABI, privateKeyHex, "syncDestChainFillRoot", gasLimit, 3, chainID, root)
}

// SyncSourceChainCommitmentRoot pushes a commitment root onto the
// settlement contract for a given counter-chain id (root-sync
// coordinator).
func (c *Client) SyncSourceChainCommitmentRoot(ctx context.Context, settlement common.Address, privateKeyHex string, gasLimit uint64, chainID *big.Int, root [32]byte) (*ContractCallResult, error) {
	return c.SendContractTransactionWithRetry(ctx, settlement, settlementABI, privateKeyHex, "syncSourceChainCommitmentRoot", gasLimit, 3, chainID, root)
}

// Approve submits an ERC-20 approve call, used by the solver when its
// allowance is insufficient to fill a token intent.
func (c *Client) Approve(ctx context.Context, token common.Address, privateKeyHex string, gasLimit uint64, spender common.Address, amount *big.Int) (*ContractCallResult, error) {
	return c.SendContractTransaction(ctx, token, erc20ABI, privateKeyHex, "approve", gasLimit, spender, amount)
}

// FillIntent submits fillIntent on the settlement contract (solver
// execution path, spec §4.6). value is attached as msg.value iff the
// intent's token is the chain's native asset; pass nil or a zero value for
// ERC-20 fills.
func (c *Client) FillIntent(ctx context.Context, settlement common.Address, privateKeyHex string, gasLimit uint64, value *big.Int,
	id, commitment [32]byte, srcChain *big.Int, tokenAddr common.Address, amount *big.Int) (*ContractCallResult, error) {
	if value == nil {
		value = big.NewInt(0)
	}
	return c.sendContractTransactionWithValue(ctx, settlement, settlementABI, privateKeyHex, "fillIntent", gasLimit, value,
		id, commitment, srcChain, tokenAddr, amount)
}

// SimulateRegisterIntent dry-runs registerIntent via eth_call, surfacing a
// revert (stale root, already registered, bad proof) before a real send
// (spec §4.3 step 9, "simulate (eth_call) before sending").
func (c *Client) SimulateRegisterIntent(ctx context.Context, settlement, from common.Address,
	id, commitment [32]byte, tokenAddr common.Address, amount, srcChain, deadline *big.Int, srcRoot [32]byte, proof [][32]byte, leafIndex *big.Int) error {
	return c.SimulateCall(ctx, settlement, from, nil, settlementABI, "registerIntent",
		id, commitment, tokenAddr, amount, srcChain, deadline, srcRoot, proof, leafIndex)
}

// SimulateSettleIntent dry-runs settleIntent via eth_call.
func (c *Client) SimulateSettleIntent(ctx context.Context, intentPool, from common.Address, id [32]byte, solver common.Address, proof [][32]byte, leafIndex *big.Int) error {
	return c.SimulateCall(ctx, intentPool, from, nil, intentPoolABI, "settleIntent", id, solver, proof, leafIndex)
}

// SettlementABI returns the parsed settlement contract ABI, exposed so
// callers outside this package (the solver's event watcher) can decode
// settlement events without duplicating the ABI literal.
func SettlementABI() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(settlementABI))
}

// IntentPoolABI returns the parsed intent pool contract ABI, for decoding
// intent pool events (IntentCreated, IntentSettled).
func IntentPoolABI() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(intentPoolABI))
}
