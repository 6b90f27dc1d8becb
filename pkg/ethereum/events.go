package ethereum

import (
	"context"
	"fmt"
	"math/big"

	goethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Event names this package decodes (spec §6 "Events consumed"). The first
// two indexed topics on every one of these events carry intent_id and
// commitment; the remaining fields are ABI-encoded in the log data.
const (
	EventIntentCreated    = "IntentCreated"
	EventIntentRegistered = "IntentRegistered"
	EventIntentFilled     = "IntentFilled"
	EventIntentSettled    = "IntentSettled"
	EventWithdrawalClaimed = "WithdrawalClaimed"
)

var eventSignatures = map[string]string{
	EventIntentCreated:     "IntentCreated(bytes32,bytes32,address,uint256,address,uint256,uint256,address,uint256)",
	EventIntentRegistered:  "IntentRegistered(bytes32,bytes32,address,uint256,uint256,uint256)",
	EventIntentFilled:      "IntentFilled(bytes32,bytes32,address,uint256)",
	EventIntentSettled:     "IntentSettled(bytes32,address)",
	EventWithdrawalClaimed: "WithdrawalClaimed(bytes32,bytes32,address)",
}

// EventTopic returns the keccak256 topic hash for a recognized event name.
func EventTopic(name string) (common.Hash, error) {
	sig, ok := eventSignatures[name]
	if !ok {
		return common.Hash{}, fmt.Errorf("ethereum: unrecognized event %q", name)
	}
	return crypto.Keccak256Hash([]byte(sig)), nil
}

// Log is a decoded on-chain event with its ordering keys intact, mirroring
// the event-store record shape from spec §3.
type Log struct {
	EventType       string
	IntentID        [32]byte
	Commitment      [32]byte
	BlockNumber     uint64
	TransactionHash common.Hash
	LogIndex        uint
	Topics          []common.Hash
	Data            []byte
}

// ScanLogs pulls every log matching eventName emitted by contractAddr in
// [fromBlock, toBlock], following the teacher's GetBlock-based polling
// idiom but via FilterLogs for efficiency on wide block ranges.
func (c *Client) ScanLogs(ctx context.Context, contractAddr common.Address, eventName string, fromBlock, toBlock uint64) ([]Log, error) {
	topic, err := EventTopic(eventName)
	if err != nil {
		return nil, err
	}

	query := goethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{contractAddr},
		Topics:    [][]common.Hash{{topic}},
	}

	rawLogs, err := c.client.FilterLogs(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("filter logs for %s: %w", eventName, err)
	}

	out := make([]Log, 0, len(rawLogs))
	for _, rl := range rawLogs {
		entry := Log{
			EventType:       eventName,
			BlockNumber:     rl.BlockNumber,
			TransactionHash: rl.TxHash,
			LogIndex:        rl.Index,
			Topics:          rl.Topics,
			Data:            rl.Data,
		}
		if len(rl.Topics) > 1 {
			entry.IntentID = rl.Topics[1]
		}
		if len(rl.Topics) > 2 {
			entry.Commitment = rl.Topics[2]
		}
		out = append(out, entry)
	}
	return out, nil
}

// DecodeEventData unpacks the non-indexed fields of a log using the given
// ABI fragment (intentPoolABI or settlementABI, depending on which
// contract emitted it), keyed by an anonymous event entry matching name.
func DecodeEventData(contractABI abi.ABI, eventName string, data []byte) (map[string]interface{}, error) {
	out := make(map[string]interface{})
	event, ok := contractABI.Events[eventName]
	if !ok {
		return nil, fmt.Errorf("ethereum: event %q not present in ABI", eventName)
	}
	if err := contractABI.UnpackIntoMap(out, event.Name, data); err != nil {
		return nil, fmt.Errorf("unpack event %s: %w", eventName, err)
	}
	return out, nil
}

// Confirmations returns how many confirmations a transaction mined at
// txBlock currently has, given the latest known block number.
func Confirmations(latest, txBlock uint64) uint64 {
	if latest < txBlock {
		return 0
	}
	return latest - txBlock + 1
}
