package wheel

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"MarketFortress/internal/errors"
	"MarketFortress/internal/model"
)

// Store persists wheel positions by symbol.
type Store interface {
	// Load returns a NONE position for unknown symbols.
	Load(symbol string) (model.WheelPosition, error)
	Save(pos model.WheelPosition) error
	List() ([]model.WheelPosition, error)
}

// stateFile is the on-disk layout of FileStore.
type stateFile struct {
	Positions map[string]model.WheelPosition `json:"positions"`
}

// FileStore keeps every position in one JSON file, rewritten atomically on each save.
type FileStore struct {
	mu   sync.Mutex
	path string
}

func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating state dir: %w", err)
	}
	return &FileStore{path: path}, nil
}

func (s *FileStore) read() (*stateFile, error) {
	st := &stateFile{Positions: map[string]model.WheelPosition{}}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return st, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(data, st); err != nil {
		return nil, errors.Wrapf(errors.ErrCodePositionState, err, "decoding %s", s.path)
	}
	if st.Positions == nil {
		st.Positions = map[string]model.WheelPosition{}
	}
	return st, nil
}

func (s *FileStore) Load(symbol string) (model.WheelPosition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.read()
	if err != nil {
		return model.WheelPosition{}, err
	}
	if pos, ok := st.Positions[symbol]; ok {
		return pos, nil
	}
	return model.NewWheelPosition(symbol), nil
}

func (s *FileStore) Save(pos model.WheelPosition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.read()
	if err != nil {
		return err
	}
	st.Positions[pos.Symbol] = pos

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing state: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replacing state: %w", err)
	}
	return nil
}

func (s *FileStore) List() ([]model.WheelPosition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.read()
	if err != nil {
		return nil, err
	}
	return sortedPositions(st.Positions), nil
}

// MemoryStore is a Store that lives only as long as the process.
type MemoryStore struct {
	mu        sync.Mutex
	positions map[string]model.WheelPosition
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{positions: map[string]model.WheelPosition{}}
}

func (s *MemoryStore) Load(symbol string) (model.WheelPosition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pos, ok := s.positions[symbol]; ok {
		return pos, nil
	}
	return model.NewWheelPosition(symbol), nil
}

func (s *MemoryStore) Save(pos model.WheelPosition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions[pos.Symbol] = pos
	return nil
}

func (s *MemoryStore) List() ([]model.WheelPosition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedPositions(s.positions), nil
}

func sortedPositions(m map[string]model.WheelPosition) []model.WheelPosition {
	out := make([]model.WheelPosition, 0, len(m))
	for _, p := range m {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}
