// Package rpc implements the bridge daemon's instruction-tagged request
// server: a plain length-prefixed TCP protocol where every request buffer
// begins with a types.InstructionTag byte selecting the reducer operation
// the remaining payload is decoded against.
package rpc

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"sync"

	"go.uber.org/zap"

	"github.com/shieldbridge/core/internal/dispatch"
	"github.com/shieldbridge/core/internal/engine"
	"github.com/shieldbridge/core/internal/field"
	"github.com/shieldbridge/core/internal/stealth"
	"github.com/shieldbridge/core/pkg/common"
	"github.com/shieldbridge/core/pkg/types"
)

// maxRequestBytes bounds the length prefix so a malformed or hostile
// connection cannot force an unbounded allocation.
const maxRequestBytes = 1 << 20

// ErrUnknownInstruction is returned for any leading tag byte the server
// does not recognize.
var ErrUnknownInstruction = errors.New("rpc: unknown instruction tag")

// Server accepts TCP connections, reads one length-prefixed instruction
// buffer per connection, dispatches it against the engine, and writes back
// a 2-byte error code.
type Server struct {
	mu  sync.Mutex
	ln  net.Listener
	eng *engine.State
	log *zap.Logger
}

// Listen opens addr and returns a Server ready to Serve.
func Listen(addr string, eng *engine.State, log *zap.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{ln: ln, eng: eng, log: log}, nil
}

// Addr returns the server's bound address.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Serve accepts connections until the listener is closed.
func (s *Server) Serve() error {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return err
		}
		go s.handle(conn)
	}
}

// Close closes the underlying listener.
func (s *Server) Close() error {
	return s.ln.Close()
}

func (s *Server) handle(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)

	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n == 0 || n > maxRequestBytes {
		s.reply(conn, types.CodeBadEncoding, 0, false)
		return
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return
	}

	tag := types.InstructionTag(buf[0])
	code, leafIndex, hasLeaf := s.dispatch(tag, buf[1:])
	s.reply(conn, code, leafIndex, hasLeaf)
}

// reply writes the 2-byte error code every reply carries, followed by an
// 8-byte big-endian leaf index for the instructions that produce one, so a
// client can learn where its note landed without a separate round trip.
func (s *Server) reply(conn net.Conn, code types.ErrCode, leafIndex uint64, hasLeaf bool) {
	var out [2]byte
	binary.BigEndian.PutUint16(out[:], uint16(code))
	conn.Write(out[:])
	if hasLeaf {
		conn.Write(common.Uint64ToBytesBE(leafIndex))
	}
}

func (s *Server) dispatch(tag types.InstructionTag, payload []byte) (code types.ErrCode, leafIndex uint64, hasLeaf bool) {
	leafIndex, hasLeaf, err := s.apply(tag, payload)
	if err != nil {
		s.log.Warn("instruction rejected", zap.Uint8("tag", uint8(tag)), zap.Error(err))
	}
	return types.CodeFor(err), leafIndex, hasLeaf
}

// apply runs one instruction against the engine. The leaf index return value
// is only meaningful when hasLeaf is true, which holds for instructions that
// append a commitment to a tree.
func (s *Server) apply(tag types.InstructionTag, payload []byte) (leafIndex uint64, hasLeaf bool, err error) {
	r := bytes.NewReader(payload)
	switch tag {
	case types.InstructionInitialize:
		return 0, false, s.applyInitialize(r)
	case types.InstructionAddDemoNote:
		return s.applyAddDemoNote(r)
	case types.InstructionAddDemoStealth:
		return s.applyAddDemoStealth(r)
	case types.InstructionRedemptionRequest:
		return 0, false, s.applyRedemptionRequest(r)
	case types.InstructionClaim:
		return 0, false, s.applyClaim(r)
	case types.InstructionSplit:
		return s.applySplit(r)
	case types.InstructionSpendPartialPublic:
		return s.applySpendPartialPublic(r)
	case types.InstructionPoolDeposit:
		return s.applyPoolDeposit(r)
	case types.InstructionPoolWithdraw:
		return s.applyPoolWithdraw(r)
	case types.InstructionPoolClaimYield:
		return 0, false, s.applyPoolClaimYield(r)
	default:
		return 0, false, ErrUnknownInstruction
	}
}

func readUint32(r *bytes.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, types.ErrBadEncoding
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

func readUint64(r *bytes.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, types.ErrBadEncoding
	}
	return binary.BigEndian.Uint64(b[:]), nil
}

func readScalar(r *bytes.Reader) (field.Scalar, error) {
	var b [32]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return field.Scalar{}, types.ErrBadEncoding
	}
	return field.ScalarFromCanonicalBytes(b[:])
}

func readAddress(r *bytes.Reader) (types.Address, error) {
	var b [types.AddressSize]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return types.Address{}, types.ErrBadEncoding
	}
	return types.AddressFromBytes(b[:]), nil
}

func readBytes(r *bytes.Reader) ([]byte, error) {
	n, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	if n > maxRequestBytes {
		return nil, types.ErrBadEncoding
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, types.ErrBadEncoding
	}
	return buf, nil
}

// readRequest decodes the common dispatch.Request prefix every
// proof-carrying instruction shares: a length-prefixed VK buffer, a
// length-prefixed proof, and a length-prefixed vector of 32-byte public
// inputs.
func readRequest(r *bytes.Reader, circuit types.CircuitKind) (dispatch.Request, error) {
	vk, err := readBytes(r)
	if err != nil {
		return dispatch.Request{}, err
	}
	proof, err := readBytes(r)
	if err != nil {
		return dispatch.Request{}, err
	}
	count, err := readUint32(r)
	if err != nil {
		return dispatch.Request{}, err
	}
	inputs := make([]field.Scalar, count)
	for i := range inputs {
		inputs[i], err = readScalar(r)
		if err != nil {
			return dispatch.Request{}, err
		}
	}
	return dispatch.Request{Circuit: circuit, Proof: proof, PublicInputs: inputs, VKBuffer: vk}, nil
}

func (s *Server) applyInitialize(r *bytes.Reader) error {
	authority, err := readAddress(r)
	if err != nil {
		return err
	}
	tokenMint, err := readAddress(r)
	if err != nil {
		return err
	}
	vault, err := readAddress(r)
	if err != nil {
		return err
	}
	minDeposit, err := readUint64(r)
	if err != nil {
		return err
	}
	maxDeposit, err := readUint64(r)
	if err != nil {
		return err
	}
	return s.eng.Initialize(authority, tokenMint, vault, minDeposit, maxDeposit)
}

func (s *Server) applyAddDemoNote(r *bytes.Reader) (uint64, bool, error) {
	priv, err := readScalar(r)
	if err != nil {
		return 0, false, err
	}
	amount, err := readUint64(r)
	if err != nil {
		return 0, false, err
	}
	leafIndex, err := s.eng.AddDemoNote(priv, amount)
	return leafIndex, err == nil, err
}

func (s *Server) applyAddDemoStealth(r *bytes.Reader) (uint64, bool, error) {
	spendingPubBytes, err := readFixed(r, types.CompressedPointSize)
	if err != nil {
		return 0, false, err
	}
	viewingPubBytes, err := readFixed(r, types.CompressedPointSize)
	if err != nil {
		return 0, false, err
	}
	ephemeralPriv, err := readScalar(r)
	if err != nil {
		return 0, false, err
	}
	amount, err := readUint64(r)
	if err != nil {
		return 0, false, err
	}
	// The wire format still carries a client timestamp field for framing
	// compatibility, but a client cannot be trusted to stamp its own
	// announcement time: the server overwrites it with its own clock.
	if _, err := readUint64(r); err != nil {
		return 0, false, err
	}

	spendingPub, err := field.Decompress(spendingPubBytes)
	if err != nil {
		return 0, false, err
	}
	viewingPub, err := field.Decompress(viewingPubBytes)
	if err != nil {
		return 0, false, err
	}
	meta := stealth.MetaAddress{SpendingPub: spendingPub, ViewingPub: viewingPub}
	leafIndex, _, err := s.eng.AddDemoStealth(meta, ephemeralPriv, amount, common.Now())
	return leafIndex, err == nil, err
}

func readFixed(r *bytes.Reader, n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, types.ErrBadEncoding
	}
	return buf, nil
}

func (s *Server) applyRedemptionRequest(r *bytes.Reader) error {
	amount, err := readUint64(r)
	if err != nil {
		return err
	}
	return s.eng.RequestRedemption(amount)
}

func (s *Server) applyClaim(r *bytes.Reader) error {
	req, err := readRequest(r, types.CircuitClaim)
	if err != nil {
		return err
	}
	root, err := readScalar(r)
	if err != nil {
		return err
	}
	nullifierHash, err := readScalar(r)
	if err != nil {
		return err
	}
	return s.eng.Claim(req, root, nullifierHash)
}

// applySplit reports the first output commitment's leaf index; the second
// output always lands immediately after it in the tree.
func (s *Server) applySplit(r *bytes.Reader) (uint64, bool, error) {
	req, err := readRequest(r, types.CircuitSplit)
	if err != nil {
		return 0, false, err
	}
	root, err := readScalar(r)
	if err != nil {
		return 0, false, err
	}
	nullifierHash, err := readScalar(r)
	if err != nil {
		return 0, false, err
	}
	out1, err := readScalar(r)
	if err != nil {
		return 0, false, err
	}
	out2, err := readScalar(r)
	if err != nil {
		return 0, false, err
	}
	idx1, _, err := s.eng.Split(req, root, nullifierHash, out1, out2)
	return idx1, err == nil, err
}

func (s *Server) applySpendPartialPublic(r *bytes.Reader) (uint64, bool, error) {
	req, err := readRequest(r, types.CircuitSpendPartialPublic)
	if err != nil {
		return 0, false, err
	}
	root, err := readScalar(r)
	if err != nil {
		return 0, false, err
	}
	nullifierHash, err := readScalar(r)
	if err != nil {
		return 0, false, err
	}
	change, err := readScalar(r)
	if err != nil {
		return 0, false, err
	}
	leafIndex, err := s.eng.SpendPartialPublic(req, root, nullifierHash, change)
	return leafIndex, err == nil, err
}

func (s *Server) applyPoolDeposit(r *bytes.Reader) (uint64, bool, error) {
	req, err := readRequest(r, types.CircuitPoolDeposit)
	if err != nil {
		return 0, false, err
	}
	root, err := readScalar(r)
	if err != nil {
		return 0, false, err
	}
	commitIn, err := readScalar(r)
	if err != nil {
		return 0, false, err
	}
	poolID, err := readUint64(r)
	if err != nil {
		return 0, false, err
	}
	amount, err := readUint64(r)
	if err != nil {
		return 0, false, err
	}
	leafIndex, err := s.eng.PoolDeposit(req, root, commitIn, poolID, amount)
	return leafIndex, err == nil, err
}

func (s *Server) applyPoolWithdraw(r *bytes.Reader) (uint64, bool, error) {
	req, err := readRequest(r, types.CircuitPoolWithdraw)
	if err != nil {
		return 0, false, err
	}
	root, err := readScalar(r)
	if err != nil {
		return 0, false, err
	}
	nullifierHash, err := readScalar(r)
	if err != nil {
		return 0, false, err
	}
	recipientCommit, err := readScalar(r)
	if err != nil {
		return 0, false, err
	}
	poolID, err := readUint64(r)
	if err != nil {
		return 0, false, err
	}
	amount, err := readUint64(r)
	if err != nil {
		return 0, false, err
	}
	leafIndex, err := s.eng.PoolWithdraw(req, root, nullifierHash, recipientCommit, poolID, amount)
	return leafIndex, err == nil, err
}

func (s *Server) applyPoolClaimYield(r *bytes.Reader) error {
	req, err := readRequest(r, types.CircuitPoolClaimYield)
	if err != nil {
		return err
	}
	root, err := readScalar(r)
	if err != nil {
		return err
	}
	nullifierHash, err := readScalar(r)
	if err != nil {
		return err
	}
	poolID, err := readUint64(r)
	if err != nil {
		return err
	}
	epoch, err := readUint64(r)
	if err != nil {
		return err
	}
	yieldAmount, err := readUint64(r)
	if err != nil {
		return err
	}
	return s.eng.PoolClaimYield(req, root, nullifierHash, poolID, epoch, yieldAmount)
}
