package memory

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
	"sync"

	"finviz/internal/core"

	"github.com/google/uuid"
)

// Store keeps transactions in insertion order. Data is lost on restart.
type Store struct {
	mu    sync.Mutex
	items []core.Transaction
}

func New() *Store {
	return &Store{}
}

// NewFromFile seeds a store from a file of "date,amount,description" lines.
// A missing file yields an empty store; blank lines and # comments are
// skipped. Errors name the physical line number.
func NewFromFile(path string) (*Store, error) {
	lines, err := readLines(path)
	if err != nil {
		return nil, err
	}
	s := New()
	for _, l := range lines {
		parts := strings.SplitN(l.text, ",", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("seed line %d: expected date,amount,description", l.number)
		}
		date, err := core.ParseDate(parts[0])
		if err != nil {
			return nil, fmt.Errorf("seed line %d: %w", l.number, err)
		}
		amount, err := core.ParseAmount(parts[1])
		if err != nil {
			return nil, fmt.Errorf("seed line %d: %w", l.number, err)
		}
		nt := core.NewTransaction{Amount: amount, Description: strings.TrimSpace(parts[2]), Date: date}
		if err := nt.Validate(); err != nil {
			return nil, fmt.Errorf("seed line %d: %w", l.number, err)
		}
		s.items = append(s.items, nt.Build(uuid.NewString()))
	}
	return s, nil
}

// Insert implements ports.TransactionStore
func (s *Store) Insert(_ context.Context, t core.NewTransaction) (core.Transaction, error) {
	tx := t.Build(uuid.NewString())
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, tx)
	return tx, nil
}

// ListByDateDesc implements ports.TransactionStore
func (s *Store) ListByDateDesc(_ context.Context) ([]core.Transaction, error) {
	s.mu.Lock()
	out := append(make([]core.Transaction, 0, len(s.items)), s.items...)
	s.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.After(out[j].Date.Time)
	})
	return out, nil
}

// Get implements ports.TransactionStore
func (s *Store) Get(_ context.Context, id string) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(id); i >= 0 {
		return s.items[i], nil
	}
	return core.Transaction{}, core.ErrNotFound
}

// UpdateByID implements ports.TransactionStore
func (s *Store) UpdateByID(_ context.Context, id string, p core.Patch) (core.UpdateResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return core.NotFoundResult(), nil
	}
	s.items[i] = p.Apply(s.items[i])
	return core.UpdatedResult(s.items[i]), nil
}

// DeleteByID implements ports.TransactionStore
func (s *Store) DeleteByID(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(id); i >= 0 {
		s.items = append(s.items[:i], s.items[i+1:]...)
	}
	return nil
}

func (s *Store) Close() error {
	return nil
}

// Len returns the number of stored transactions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *Store) indexOf(id string) int {
	for i := range s.items {
		if s.items[i].ID == id {
			return i
		}
	}
	return -1
}

type seedLine struct {
	number int
	text   string
}

func readLines(path string) ([]seedLine, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()

	var out []seedLine
	sc := bufio.NewScanner(f)
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, seedLine{number: n, text: line})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return out, nil
}
