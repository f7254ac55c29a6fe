package exchange

import (
	"errors"
	"fmt"
	"os"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var (
	ErrUnknownProgramKind = errors.New("unknown exchange program kind")
)

const FixedQuoteKind = "fixed_quote"

// ProgramsFile lists the exchange programs a deployment routes swaps through:
//
//	programs:
//	  - kind: fixed_quote
//	    id: <program id>
//	    pool: <pool authority>
type ProgramsFile struct {
	Programs []ProgramEntry `yaml:"programs"`
}

type ProgramEntry struct {
	Kind string `yaml:"kind"`
	ID   string `yaml:"id"`
	Pool string `yaml:"pool"`
}

func LoadPrograms(path string) ([]Program, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file ProgramsFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	programs := make([]Program, 0, len(file.Programs))
	for idx, entry := range file.Programs {
		program, err := entry.build()
		if err != nil {
			zap.L().With(zap.Error(err), zap.Int("entry", idx), zap.String("path", path)).Error("Exchange: Invalid program entry")
			return nil, fmt.Errorf("%s entry %d: %w", path, idx, err)
		}
		programs = append(programs, program)
	}

	return programs, nil
}

func (e ProgramEntry) build() (Program, error) {
	id, err := solana.PublicKeyFromBase58(e.ID)
	if err != nil {
		return nil, fmt.Errorf("id: %w", err)
	}

	switch e.Kind {
	case FixedQuoteKind, "":
		pool, err := solana.PublicKeyFromBase58(e.Pool)
		if err != nil {
			return nil, fmt.Errorf("pool: %w", err)
		}
		return NewFixedQuote(id, pool), nil
	}

	return nil, fmt.Errorf("%w: %s", ErrUnknownProgramKind, e.Kind)
}
