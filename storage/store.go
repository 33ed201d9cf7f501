package storage

import (
	"encoding/json"
	"fmt"

	"lendpool/native/lending"
	"lendpool/native/oracle"
)

const (
	poolStateKey = "pool/state"
	loanPrefix   = "loan/"
	feedPrefix   = "feed/"
)

// Store persists pool snapshots, open loans and oracle feed observations as
// JSON records in a key-value Database. It carries no caching; every call
// hits the backend.
type Store struct {
	db Database
}

func NewStore(db Database) *Store {
	return &Store{db: db}
}

// Close releases the underlying database.
func (s *Store) Close() {
	s.db.Close()
}

// PutPoolState replaces the persisted pool snapshot.
func (s *Store) PutPoolState(state lending.PoolState) error {
	return s.putJSON(poolStateKey, state)
}

// PoolState loads the persisted pool snapshot. A store with no snapshot yet
// returns ErrNotFound.
func (s *Store) PoolState() (lending.PoolState, error) {
	var state lending.PoolState
	if err := s.getJSON(poolStateKey, &state); err != nil {
		return lending.PoolState{}, err
	}
	state.EnsureDefaults()
	return state, nil
}

// PutLoan records an open loan under its borrower token.
func (s *Store) PutLoan(loan lending.Loan) error {
	if loan.BorrowerToken == "" {
		return fmt.Errorf("storage: loan missing borrower token")
	}
	return s.putJSON(loanPrefix+loan.BorrowerToken, loan)
}

// Loan loads the open loan recorded under borrowerToken.
func (s *Store) Loan(borrowerToken string) (lending.Loan, error) {
	var loan lending.Loan
	if err := s.getJSON(loanPrefix+borrowerToken, &loan); err != nil {
		return lending.Loan{}, err
	}
	return loan, nil
}

// DeleteLoan removes a closed loan's record.
func (s *Store) DeleteLoan(borrowerToken string) error {
	return s.db.Delete([]byte(loanPrefix + borrowerToken))
}

// PutFeed records the latest oracle observation for the feed's token.
func (s *Store) PutFeed(feed oracle.Feed) error {
	return s.putJSON(feedPrefix+feed.Token().Unit(), feed)
}

// Feed loads the latest observation for asset.
func (s *Store) Feed(asset oracle.Asset) (oracle.Feed, error) {
	var feed oracle.Feed
	if err := s.getJSON(feedPrefix+asset.Unit(), &feed); err != nil {
		return oracle.Feed{}, err
	}
	return feed, nil
}

func (s *Store) putJSON(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("storage: encode %s: %w", key, err)
	}
	return s.db.Put([]byte(key), raw)
}

func (s *Store) getJSON(key string, into any) error {
	raw, err := s.db.Get([]byte(key))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, into); err != nil {
		return fmt.Errorf("storage: decode %s: %w", key, err)
	}
	return nil
}
