package twitch

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/oauth2"
)

// TokenStore keeps OAuth tokens per user id in a JSON file.
type TokenStore struct {
	path string
	mu   sync.Mutex
}

type tokenFile struct {
	Current string                   `json:"current"`
	Tokens  map[string]*oauth2.Token `json:"tokens"`
}

// NewTokenStore returns a store backed by path.
func NewTokenStore(path string) *TokenStore {
	return &TokenStore{path: path}
}

func (s *TokenStore) read() (tokenFile, error) {
	f := tokenFile{Tokens: map[string]*oauth2.Token{}}
	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return f, nil
	}
	if err != nil {
		return f, err
	}
	if err := json.Unmarshal(b, &f); err != nil {
		return f, fmt.Errorf("token file %s: %w", s.path, err)
	}
	if f.Tokens == nil {
		f.Tokens = map[string]*oauth2.Token{}
	}
	return f, nil
}

func (s *TokenStore) write(f tokenFile) error {
	b, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".tokens-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

// Load returns the current user's token. userID is empty when nobody has
// logged in.
func (s *TokenStore) Load() (userID string, tok *oauth2.Token, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := s.read()
	if err != nil || f.Current == "" {
		return "", nil, err
	}
	tok, ok := f.Tokens[f.Current]
	if !ok {
		return "", nil, nil
	}
	return f.Current, tok, nil
}

// Save stores tok for userID and makes it current.
func (s *TokenStore) Save(userID string, tok *oauth2.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := s.read()
	if err != nil {
		return err
	}
	f.Current = userID
	f.Tokens[userID] = tok
	return s.write(f)
}

// Remove forgets userID's token.
func (s *TokenStore) Remove(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := s.read()
	if err != nil {
		return err
	}
	delete(f.Tokens, userID)
	if f.Current == userID {
		f.Current = ""
	}
	return s.write(f)
}

// persistingSource writes refreshed tokens back to the store.
type persistingSource struct {
	base   oauth2.TokenSource
	store  *TokenStore
	userID string

	mu   sync.Mutex
	last string
}

func (p *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := p.base.Token()
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if tok.AccessToken != p.last {
		if err := p.store.Save(p.userID, tok); err != nil {
			return nil, fmt.Errorf("persist refreshed token: %w", err)
		}
		p.last = tok.AccessToken
	}
	return tok, nil
}
