package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

const genesisPrevHash = "0"

type Blockchain struct {
	mu     sync.RWMutex
	blocks []Block
	now    func() time.Time
}

// NewBlockchain creates a chain holding only the genesis block.
// The genesis block has index 0, previous hash "0" and an empty delivery.
func NewBlockchain() *Blockchain {
	bc := &Blockchain{now: time.Now}
	genesis := Block{
		Index:     0,
		Timestamp: bc.now().Unix(),
		PrevHash:  genesisPrevHash,
		Delivery:  Delivery{Root: -1, Rank: -1},
	}
	genesis.Hash = calculateHash(genesis)
	bc.blocks = []Block{genesis}
	return bc
}

// Restore rebuilds a chain from blocks, which must start with a genesis
// block and pass Verify.
func Restore(blocks []Block) (*Blockchain, error) {
	if len(blocks) == 0 {
		return NewBlockchain(), nil
	}
	bc := &Blockchain{
		now:    time.Now,
		blocks: append([]Block(nil), blocks...),
	}
	if err := bc.Verify(); err != nil {
		return nil, fmt.Errorf("restore: %w", err)
	}
	return bc, nil
}

// Append links d to the latest block and returns the new block.
func (bc *Blockchain) Append(d Delivery) (Block, error) {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	latest := bc.blocks[len(bc.blocks)-1]
	b := Block{
		Index:     latest.Index + 1,
		Timestamp: bc.now().Unix(),
		PrevHash:  latest.Hash,
		Delivery:  d,
	}
	b.Hash = calculateHash(b)
	if err := validateBlock(b, latest); err != nil {
		return Block{}, fmt.Errorf("invalid block: %w", err)
	}
	bc.blocks = append(bc.blocks, b)
	return b, nil
}

// Latest returns the most recently added block.
func (bc *Blockchain) Latest() Block {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.blocks[len(bc.blocks)-1]
}

func (bc *Blockchain) ByIndex(index int) (Block, error) {
	bc.mu.RLock()
	defer bc.mu.RUnlock()

	if index < 0 || index >= len(bc.blocks) {
		return Block{}, fmt.Errorf("index %d out of range [0, %d)", index, len(bc.blocks))
	}
	return bc.blocks[index], nil
}

// Blocks returns a copy of the chain, genesis included.
func (bc *Blockchain) Blocks() []Block {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return append([]Block(nil), bc.blocks...)
}

func (bc *Blockchain) Len() int {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return len(bc.blocks)
}

// Verify checks the genesis block and then the hash, index and link of
// every following block.
func (bc *Blockchain) Verify() error {
	bc.mu.RLock()
	defer bc.mu.RUnlock()

	genesis := bc.blocks[0]
	if genesis.Index != 0 || genesis.PrevHash != genesisPrevHash {
		return fmt.Errorf("invalid genesis block")
	}
	if genesis.Hash != calculateHash(genesis) {
		return fmt.Errorf("invalid genesis hash")
	}
	for i := 1; i < len(bc.blocks); i++ {
		if err := validateBlock(bc.blocks[i], bc.blocks[i-1]); err != nil {
			return fmt.Errorf("block %d: %w", i, err)
		}
	}
	return nil
}

func validateBlock(current, previous Block) error {
	if current.Index != previous.Index+1 {
		return fmt.Errorf("invalid index: expected %d, got %d", previous.Index+1, current.Index)
	}
	if current.PrevHash != previous.Hash {
		return fmt.Errorf("invalid previous hash")
	}
	expectedHash := calculateHash(current)
	if current.Hash != expectedHash {
		return fmt.Errorf("invalid hash: expected %s, got %s", expectedHash, current.Hash)
	}
	return nil
}

// calculateHash hashes the index, timestamp, previous hash and the JSON
// encoding of the delivery.
func calculateHash(block Block) string {
	deliveryBytes, _ := json.Marshal(block.Delivery)
	data := fmt.Sprintf("%d%d%s%s",
		block.Index,
		block.Timestamp,
		block.PrevHash,
		string(deliveryBytes),
	)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
