package ledger

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

var (
	ErrProgramMismatch = errors.New("snapshot belongs to another program")
)

type NativeBalance struct {
	Address solana.PublicKey `json:"address"`
	Amount  uint64           `json:"amount"`
}

type Record struct {
	Address solana.PublicKey `json:"address"`
	Data    []byte           `json:"data"`
}

// Snapshot is the full committed state of a Memory ledger at one version.
type Snapshot struct {
	ProgramID solana.PublicKey `json:"programId"`
	Version   uint64           `json:"version"`
	Native    []NativeBalance  `json:"native"`
	Tokens    []TokenAccount   `json:"tokens"`
	Mints     []Mint           `json:"mints"`
	Records   []Record         `json:"records"`
}

// Version counts committed units. It only moves forward.
func (m *Memory) Version() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.version
}

func (m *Memory) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := m.state.clone()
	s := Snapshot{
		ProgramID: m.programID,
		Version:   m.version,
		Native:    make([]NativeBalance, 0, len(st.native)),
		Tokens:    make([]TokenAccount, 0, len(st.tokens)),
		Mints:     make([]Mint, 0, len(st.mints)),
		Records:   make([]Record, 0, len(st.records)),
	}
	for k, v := range st.native {
		s.Native = append(s.Native, NativeBalance{k, v})
	}
	for _, v := range st.tokens {
		s.Tokens = append(s.Tokens, v)
	}
	for _, v := range st.mints {
		s.Mints = append(s.Mints, v)
	}
	for k, v := range st.records {
		s.Records = append(s.Records, Record{k, v})
	}

	sort.Slice(s.Native, func(i, j int) bool { return less(s.Native[i].Address, s.Native[j].Address) })
	sort.Slice(s.Tokens, func(i, j int) bool { return less(s.Tokens[i].Address, s.Tokens[j].Address) })
	sort.Slice(s.Mints, func(i, j int) bool { return less(s.Mints[i].Address, s.Mints[j].Address) })
	sort.Slice(s.Records, func(i, j int) bool { return less(s.Records[i].Address, s.Records[j].Address) })

	return s
}

// Restore replaces the live state with s. The snapshot must have been taken
// from a ledger for the same program.
func (m *Memory) Restore(s Snapshot) error {
	if s.ProgramID != m.programID {
		return fmt.Errorf("%w: %s", ErrProgramMismatch, s.ProgramID)
	}

	st := &state{
		native:  make(map[solana.PublicKey]uint64, len(s.Native)),
		tokens:  make(map[solana.PublicKey]TokenAccount, len(s.Tokens)),
		mints:   make(map[solana.PublicKey]Mint, len(s.Mints)),
		records: make(map[solana.PublicKey][]byte, len(s.Records)),
	}
	for _, n := range s.Native {
		st.native[n.Address] = n.Amount
	}
	for _, t := range s.Tokens {
		t.Delegate = copyKey(t.Delegate)
		st.tokens[t.Address] = t
	}
	for _, mt := range s.Mints {
		mt.Authority = copyKey(mt.Authority)
		st.mints[mt.Address] = mt
	}
	for _, r := range s.Records {
		st.records[r.Address] = append([]byte(nil), r.Data...)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.state = st
	m.version = s.Version

	zap.L().With(
		zap.Uint64("version", s.Version),
		zap.Int("tokenAccounts", len(s.Tokens)),
		zap.Int("records", len(s.Records)),
	).Info("Ledger: Restored snapshot")

	return nil
}

func less(a, b solana.PublicKey) bool {
	return bytes.Compare(a[:], b[:]) < 0
}
