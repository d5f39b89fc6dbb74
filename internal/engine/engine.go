// Package engine implements the single-writer reducer state machine
// the one place every state-changing operation
// passes through, so the commitment tree, nullifier registry, vault
// balance, and pool balances only ever change together, atomically, under
// one lock. Every operation either fully applies or leaves no trace — all
// proof/root/nullifier checks run before any mutation is made.
package engine

import (
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/shieldbridge/core/internal/announce"
	"github.com/shieldbridge/core/internal/dispatch"
	"github.com/shieldbridge/core/internal/field"
	"github.com/shieldbridge/core/internal/note"
	"github.com/shieldbridge/core/internal/nullifier"
	"github.com/shieldbridge/core/internal/stealth"
	"github.com/shieldbridge/core/internal/tree"
	"github.com/shieldbridge/core/pkg/common"
	"github.com/shieldbridge/core/pkg/types"
)

// Errors returned by reducer operations. Most alias the canonical taxonomy
// in pkg/types so a caller can match on one error kind regardless of which
// package produced it.
var (
	ErrStaleRoot           = types.ErrRootStale
	ErrAlreadyInitialized  = types.ErrAlreadyInitialized
	ErrNotInitialized      = types.ErrNotInitialized
	ErrPaused              = types.ErrPaused
	ErrUnknownPool         = errors.New("engine: unknown pool id")
	ErrEpochAlreadyClaimed = types.ErrAlreadySpent
	ErrInsufficientPool    = types.ErrAmountOutOfRange
)

// demoMintAmount is the fixed amount Add-Demo-Note/Add-Demo-Stealth mint
// into the vault, matching the dev-feature semantics: every call advances
// tree size and vault supply by the same fixed step regardless of the
// amount encoded in the inserted commitment.
const demoMintAmount = 10_000

// VaultState is the bridge-wide accounting record: the authority and token
// handles the engine was initialized with, a mirror of the commitment
// tree's root (for external indexers that only watch vault state), and the
// running counts and limits every release/mint touches.
type VaultState struct {
	Authority types.Address
	TokenMint types.Address
	Vault     types.Address

	TreeRootMirror field.Scalar

	DepositCount       uint64
	TotalMinted        uint64
	TotalBurned        uint64
	PendingRedemptions uint64
	TotalShielded      uint64

	MinDeposit uint64
	MaxDeposit uint64

	Paused bool
}

// TokenMinter is the boundary between the engine and the token program CPI
// surface a real deployment would invoke to move funds in and out of the
// vault. Mint is called for dev-feature deposits and shielded pool credits;
// Release is called whenever a proof authorizes paying a public recipient.
type TokenMinter interface {
	Mint(recipient types.Address, amountSats uint64) error
	Release(recipient types.Address, amountSats uint64) error
}

// MemoryMinter is a process-local TokenMinter backed by an in-memory vault
// balance and per-recipient ledger, used by tests and by deployments that
// have not wired a real token program CPI.
type MemoryMinter struct {
	mu       sync.Mutex
	vault    uint64
	balances map[types.Address]uint64
}

// NewMemoryMinter builds an empty in-memory minter.
func NewMemoryMinter() *MemoryMinter {
	return &MemoryMinter{balances: make(map[types.Address]uint64)}
}

// Mint credits the vault, simulating a deposit's token-program mint CPI.
func (m *MemoryMinter) Mint(recipient types.Address, amountSats uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vault += amountSats
	return nil
}

// Release debits the vault and credits recipient, failing with
// ErrTokenCpiFailed if the vault does not hold enough to cover it — the
// in-memory stand-in for a real CPI returning an error.
func (m *MemoryMinter) Release(recipient types.Address, amountSats uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if amountSats > m.vault {
		return types.ErrTokenCpiFailed
	}
	m.vault -= amountSats
	m.balances[recipient] += amountSats
	return nil
}

// VaultBalance returns the minter's current vault balance.
func (m *MemoryMinter) VaultBalance() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.vault
}

// Balance returns how much a recipient has been released so far.
func (m *MemoryMinter) Balance(recipient types.Address) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[recipient]
}

// poolState is one liquidity pool's accounting plus its own auxiliary
// commitment tree and nullifier registry: pool deposit/withdraw/claim_yield
// operations never touch the shielded pool's main tree or registry.
type poolState struct {
	balance       uint64
	claimedEpochs map[uint64]bool
	tree          *tree.Tree
	nullifiers    *nullifier.Registry
}

func newPoolState() *poolState {
	return &poolState{
		claimedEpochs: make(map[uint64]bool),
		tree:          tree.NewDefault(),
		nullifiers:    nullifier.New(nullifier.NewMemoryStore()),
	}
}

// State is the complete reducer state: the commitment tree, nullifier
// registry, stealth announcement index, vault accounting, and per-pool
// state.
type State struct {
	mu sync.Mutex

	initialized bool

	tree          *tree.Tree
	nullifiers    *nullifier.Registry
	announcements *announce.Index
	vkRegistry    *dispatch.VKRegistry
	pools         map[uint64]*poolState
	minter        TokenMinter
	vault         VaultState

	log *zap.Logger
}

// New builds an uninitialized reducer. Initialize must be called before
// any other operation. The token minter starts as an in-memory
// MemoryMinter; SetMinter replaces it.
func New(vkRegistry *dispatch.VKRegistry, log *zap.Logger) *State {
	if log == nil {
		log = zap.NewNop()
	}
	return &State{
		vkRegistry: vkRegistry,
		pools:      make(map[uint64]*poolState),
		minter:     NewMemoryMinter(),
		log:        log,
	}
}

// SetMinter overrides the default in-memory token minter, for callers that
// wire a real CPI-backed implementation. Must be called before Initialize.
func (s *State) SetMinter(m TokenMinter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.minter = m
}

// Initialize sets up the commitment tree, nullifier registry, and vault
// accounting. It may be called exactly once per State.
func (s *State) Initialize(authority, tokenMint, vault types.Address, minDeposit, maxDeposit uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialized {
		return ErrAlreadyInitialized
	}
	s.tree = tree.NewDefault()
	s.nullifiers = nullifier.New(nullifier.NewMemoryStore())
	s.announcements = announce.New(announce.NewMemoryStore())
	s.vault = VaultState{
		Authority:      authority,
		TokenMint:      tokenMint,
		Vault:          vault,
		TreeRootMirror: s.tree.Root(),
		MinDeposit:     minDeposit,
		MaxDeposit:     maxDeposit,
	}
	s.initialized = true
	s.log.Info("engine initialized", zap.Uint64("tree_size", s.tree.Size()))
	return nil
}

func (s *State) requireInitialized() error {
	if !s.initialized {
		return ErrNotInitialized
	}
	return nil
}

// Root returns the current commitment tree root.
func (s *State) Root() (field.Scalar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireInitialized(); err != nil {
		return field.Scalar{}, err
	}
	return s.tree.Root(), nil
}

// Vault returns a snapshot of the current vault accounting.
func (s *State) Vault() (VaultState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireInitialized(); err != nil {
		return VaultState{}, err
	}
	return s.vault, nil
}

// SetPaused toggles the paused flag, authority-only in a real deployment
// (the authority check itself lives at the RPC/instruction boundary, not
// here).
func (s *State) SetPaused(paused bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireInitialized(); err != nil {
		return err
	}
	s.vault.Paused = paused
	return nil
}

func (s *State) syncTreeMirror() {
	s.vault.TreeRootMirror = s.tree.Root()
}

// AddDemoNote inserts a plaintext commitment directly into the tree and
// mints its fixed demo amount into the vault, bypassing proof verification.
// It exists purely so the reducer can be exercised end to end without a
// real UltraHonk proving backend (instruction tag InstructionAddDemoNote),
// never as a production path.
func (s *State) AddDemoNote(stealthPriv field.Scalar, amountSats uint64) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireInitialized(); err != nil {
		return 0, err
	}

	amountSats = common.Clamp(amountSats, s.vault.MinDeposit, s.vault.MaxDeposit)
	stealthPub := field.Generator().ScalarMul(stealthPriv)
	commitment := note.Commitment(stealthPub, amountSats)
	leafIndex, _, err := s.tree.Insert(commitment)
	if err != nil {
		return 0, err
	}
	s.syncTreeMirror()
	if err := s.minter.Mint(s.vault.Vault, demoMintAmount); err != nil {
		return 0, err
	}
	s.vault.DepositCount++
	s.vault.TotalMinted += demoMintAmount
	s.vault.TotalShielded += amountSats
	s.log.Info("demo note added",
		zap.Uint64("leaf_index", leafIndex),
		zap.Uint64("amount_sats", amountSats),
	)
	return leafIndex, nil
}

// AddDemoStealth runs a full DKSAP stealth deposit against a
// recipient's meta-address, inserts the resulting commitment, mints its
// fixed demo amount into the vault, and publishes the announcement a
// scanner would later pick up (instruction tag InstructionAddDemoStealth).
func (s *State) AddDemoStealth(meta stealth.MetaAddress, ephemeralPriv field.Scalar, amountSats, timestamp uint64) (uint64, stealth.StealthDeposit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireInitialized(); err != nil {
		return 0, stealth.StealthDeposit{}, err
	}

	amountSats = common.Clamp(amountSats, s.vault.MinDeposit, s.vault.MaxDeposit)
	deposit := stealth.CreateStealthDeposit(meta, ephemeralPriv, amountSats)
	leafIndex, _, err := s.tree.Insert(deposit.Commitment)
	if err != nil {
		return 0, stealth.StealthDeposit{}, err
	}
	s.syncTreeMirror()

	_, err = s.announcements.Create(announce.Announcement{
		EphemeralPub:    deposit.EphemeralPub,
		EncryptedAmount: deposit.EncryptedAmount,
		Commitment:      deposit.Commitment,
		LeafIndex:       leafIndex,
		Timestamp:       timestamp,
	})
	if err != nil {
		return 0, stealth.StealthDeposit{}, err
	}
	if err := s.minter.Mint(s.vault.Vault, demoMintAmount); err != nil {
		return 0, stealth.StealthDeposit{}, err
	}
	s.vault.DepositCount++
	s.vault.TotalMinted += demoMintAmount
	s.vault.TotalShielded += amountSats

	s.log.Info("demo stealth deposit added", zap.Uint64("leaf_index", leafIndex))
	return leafIndex, deposit, nil
}

// validateProof runs the dispatcher against a request and checks the vault
// is not paused and the claimed merkle root is the tree's current root,
// without mutating any state. Every reducer operation below calls this
// before making any change.
func (s *State) validateProof(req dispatch.Request, claimedRoot field.Scalar) error {
	if s.vault.Paused {
		return ErrPaused
	}
	if !claimedRoot.Equal(s.tree.Root()) {
		return ErrStaleRoot
	}
	_, _, err := dispatch.Dispatch(s.vkRegistry, req)
	return err
}

// scalarToUint64 recovers a uint64 amount from a field element that a
// circuit proved fits in 64 bits, rejecting anything that would overflow.
func scalarToUint64(s field.Scalar) (uint64, error) {
	b := s.Bytes()
	for _, hi := range b[:24] {
		if hi != 0 {
			return 0, types.ErrAmountOutOfRange
		}
	}
	return common.BytesToUint64BE(b[24:]), nil
}

// recipientFromLimbs recovers the 32-byte recipient address a circuit
// split into two 128-bit public-input limbs.
func recipientFromLimbs(low, high field.Scalar) (types.Address, error) {
	lb := low.Bytes()
	hb := high.Bytes()
	var loLimb, hiLimb [16]byte
	copy(loLimb[:], lb[16:])
	copy(hiLimb[:], hb[16:])
	recipient := types.AddressFromLimbs(loLimb, hiLimb)
	if common.IsZeroBytes(recipient[:]) {
		return types.Address{}, types.ErrBadEncoding
	}
	return recipient, nil
}

// RequestRedemption records a pending off-chain redemption request against
// the vault's counters without itself moving any funds — settlement of a
// redemption is an external process this reducer only accounts for.
func (s *State) RequestRedemption(amountSats uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireInitialized(); err != nil {
		return err
	}
	if s.vault.Paused {
		return ErrPaused
	}
	s.vault.PendingRedemptions += amountSats
	return nil
}

// Claim verifies a claim proof, nullifies the claimed note, and releases
// amount_sats from the vault to the recipient encoded in the proof's own
// public inputs (never a caller-supplied recipient — only what the circuit
// actually proved gets paid). Claiming exits the shielded pool entirely; no
// new commitment is inserted.
func (s *State) Claim(req dispatch.Request, claimedRoot, nullifierHash field.Scalar) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireInitialized(); err != nil {
		return err
	}
	if err := s.validateProof(req, claimedRoot); err != nil {
		return err
	}
	if len(req.PublicInputs) != 5 {
		return types.ErrBadEncoding
	}
	amountSats, err := scalarToUint64(req.PublicInputs[2])
	if err != nil {
		return err
	}
	recipient, err := recipientFromLimbs(req.PublicInputs[3], req.PublicInputs[4])
	if err != nil {
		return err
	}

	if spent, err := s.nullifiers.Has(nullifierHash); err != nil {
		return err
	} else if spent {
		return nullifier.ErrAlreadySpent
	}

	if err := s.nullifiers.Insert(nullifierHash); err != nil {
		return err
	}
	if err := s.minter.Release(recipient, amountSats); err != nil {
		return err
	}
	s.vault.TotalBurned += amountSats
	s.log.Info("claim applied", zap.Uint64("amount_sats", amountSats))
	return nil
}

// Split verifies a split proof, nullifies the single input note, and
// inserts the two output commitments.
func (s *State) Split(req dispatch.Request, claimedRoot, nullifierHash, commitmentOut1, commitmentOut2 field.Scalar) (uint64, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireInitialized(); err != nil {
		return 0, 0, err
	}
	if err := s.validateProof(req, claimedRoot); err != nil {
		return 0, 0, err
	}
	if spent, err := s.nullifiers.Has(nullifierHash); err != nil {
		return 0, 0, err
	} else if spent {
		return 0, 0, nullifier.ErrAlreadySpent
	}

	if err := s.nullifiers.Insert(nullifierHash); err != nil {
		return 0, 0, err
	}
	idx1, _, err := s.tree.Insert(commitmentOut1)
	if err != nil {
		return 0, 0, err
	}
	idx2, _, err := s.tree.Insert(commitmentOut2)
	if err != nil {
		return 0, 0, err
	}
	s.syncTreeMirror()
	s.log.Info("split applied", zap.Uint64("out1", idx1), zap.Uint64("out2", idx2))
	return idx1, idx2, nil
}

// SpendPartialPublic verifies a partial-public-spend proof, nullifies the
// input note, releases public_amount to the recipient encoded in the
// proof's own public inputs, and inserts the change commitment.
func (s *State) SpendPartialPublic(req dispatch.Request, claimedRoot, nullifierHash, commitmentChange field.Scalar) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireInitialized(); err != nil {
		return 0, err
	}
	if err := s.validateProof(req, claimedRoot); err != nil {
		return 0, err
	}
	if len(req.PublicInputs) != 6 {
		return 0, types.ErrBadEncoding
	}
	publicAmountSats, err := scalarToUint64(req.PublicInputs[2])
	if err != nil {
		return 0, err
	}
	recipient, err := recipientFromLimbs(req.PublicInputs[4], req.PublicInputs[5])
	if err != nil {
		return 0, err
	}

	if spent, err := s.nullifiers.Has(nullifierHash); err != nil {
		return 0, err
	} else if spent {
		return 0, nullifier.ErrAlreadySpent
	}

	if err := s.nullifiers.Insert(nullifierHash); err != nil {
		return 0, err
	}
	if err := s.minter.Release(recipient, publicAmountSats); err != nil {
		return 0, err
	}
	idx, _, err := s.tree.Insert(commitmentChange)
	if err != nil {
		return 0, err
	}
	s.syncTreeMirror()
	s.vault.TotalBurned += publicAmountSats
	s.log.Info("partial public spend applied",
		zap.Uint64("change_leaf_index", idx),
		zap.Uint64("public_amount_sats", publicAmountSats),
	)
	return idx, nil
}

func (s *State) pool(poolID uint64) *poolState {
	p, ok := s.pools[poolID]
	if !ok {
		p = newPoolState()
		s.pools[poolID] = p
	}
	return p
}

// validatePoolProof is validateProof's pool-scoped twin: it checks the
// claimed root against the pool's own auxiliary tree, never the shielded
// pool's main tree.
func (s *State) validatePoolProof(req dispatch.Request, p *poolState, claimedRoot field.Scalar) error {
	if s.vault.Paused {
		return ErrPaused
	}
	if !claimedRoot.Equal(p.tree.Root()) {
		return ErrStaleRoot
	}
	_, _, err := dispatch.Dispatch(s.vkRegistry, req)
	return err
}

// PoolDeposit credits a liquidity pool and inserts the deposit's commitment
// into that pool's own auxiliary commitment tree, separate from the
// shielded pool's main tree.
func (s *State) PoolDeposit(req dispatch.Request, claimedRoot, commitmentIn field.Scalar, poolID, amountSats uint64) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireInitialized(); err != nil {
		return 0, err
	}
	p := s.pool(poolID)
	if err := s.validatePoolProof(req, p, claimedRoot); err != nil {
		return 0, err
	}

	idx, _, err := p.tree.Insert(commitmentIn)
	if err != nil {
		return 0, err
	}
	p.balance += amountSats
	s.log.Info("pool deposit applied", zap.Uint64("pool_id", poolID), zap.Uint64("amount_sats", amountSats))
	return idx, nil
}

// PoolWithdraw verifies a withdrawal proof against the pool's own auxiliary
// tree and nullifier registry, debits the pool, and inserts the
// recipient's new commitment back into that same auxiliary tree.
func (s *State) PoolWithdraw(req dispatch.Request, claimedRoot, nullifierHash, recipientCommitment field.Scalar, poolID, amountSats uint64) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireInitialized(); err != nil {
		return 0, err
	}
	p, ok := s.pools[poolID]
	if !ok {
		return 0, ErrUnknownPool
	}
	if err := s.validatePoolProof(req, p, claimedRoot); err != nil {
		return 0, err
	}
	if p.balance < amountSats {
		return 0, ErrInsufficientPool
	}
	if spent, err := p.nullifiers.Has(nullifierHash); err != nil {
		return 0, err
	} else if spent {
		return 0, nullifier.ErrAlreadySpent
	}

	if err := p.nullifiers.Insert(nullifierHash); err != nil {
		return 0, err
	}
	idx, _, err := p.tree.Insert(recipientCommitment)
	if err != nil {
		return 0, err
	}
	p.balance -= amountSats
	s.log.Info("pool withdraw applied", zap.Uint64("pool_id", poolID), zap.Uint64("amount_sats", amountSats))
	return idx, nil
}

// PoolClaimYield verifies a yield-claim proof against the pool's own
// auxiliary nullifier registry, marks one pool epoch as claimed exactly
// once, and releases yield_amount to the recipient encoded in the proof's
// own public inputs. A yieldAmountSats argument that differs from the
// proven yield_amount is rejected with ErrBadEncoding.
func (s *State) PoolClaimYield(req dispatch.Request, claimedRoot, nullifierHash field.Scalar, poolID, epoch, yieldAmountSats uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireInitialized(); err != nil {
		return err
	}
	p, ok := s.pools[poolID]
	if !ok {
		return ErrUnknownPool
	}
	if err := s.validatePoolProof(req, p, claimedRoot); err != nil {
		return err
	}
	if p.claimedEpochs[epoch] {
		return ErrEpochAlreadyClaimed
	}
	if len(req.PublicInputs) != 6 {
		return types.ErrBadEncoding
	}
	provenYield, err := scalarToUint64(req.PublicInputs[3])
	if err != nil {
		return err
	}
	if provenYield != yieldAmountSats {
		return types.ErrBadEncoding
	}
	recipient, err := recipientFromLimbs(req.PublicInputs[4], req.PublicInputs[5])
	if err != nil {
		return err
	}
	if spent, err := p.nullifiers.Has(nullifierHash); err != nil {
		return err
	} else if spent {
		return nullifier.ErrAlreadySpent
	}

	if err := p.nullifiers.Insert(nullifierHash); err != nil {
		return err
	}
	if err := s.minter.Release(recipient, yieldAmountSats); err != nil {
		return err
	}
	p.claimedEpochs[epoch] = true
	s.log.Info("pool yield claimed",
		zap.Uint64("pool_id", poolID),
		zap.Uint64("epoch", epoch),
		zap.Uint64("yield_amount_sats", yieldAmountSats),
	)
	return nil
}
