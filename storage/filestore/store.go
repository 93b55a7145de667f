package filestore

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/crypto/nacl/secretbox"

	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/storage"
)

const nonceLen = 24

var (
	salt = []byte("thuto.storage.filestore")

	errCorrupted = errors.New("stored value cannot be opened")
)

// store persists sealed values in a single JSON document.
type store struct {
	path  string
	key   [32]byte
	mutex sync.Mutex
}

var _ storage.Store = (*store)(nil)

// NewStore returns a file backed store at path; values are sealed with a key derived from secretKey.
func NewStore(path, secretKey string) (storage.Store, error) {
	if path == "" {
		return nil, errors.New("filestore: empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, errors.Wrap(err, "creating storage directory")
	}
	return &store{
		path: path,
		key:  sha256.Sum256(append(append([]byte{}, salt...), secretKey...)),
	}, nil
}

func (s *store) load() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, errors.Wrap(err, "reading storage file")
	}
	doc := make(map[string]string)
	if len(data) == 0 {
		return doc, nil
	}
	if err = json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "decoding storage file")
	}
	return doc, nil
}

// save writes through a temp file so that a crash never leaves a half-written document.
func (s *store) save(doc map[string]string) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, "encoding storage file")
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".session-*")
	if err != nil {
		return errors.Wrap(err, "creating temp file")
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "writing temp file")
	}
	if err = tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "chmod temp file")
	}
	if err = tmp.Close(); err != nil {
		return errors.Wrap(err, "closing temp file")
	}
	return errors.Wrap(os.Rename(tmp.Name(), s.path), "replacing storage file")
}

func (s *store) seal(value string) (string, error) {
	var nonce [nonceLen]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", errors.Wrap(err, "generating nonce")
	}
	sealed := secretbox.Seal(nonce[:], []byte(value), &nonce, &s.key)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (s *store) open(encoded string) (string, error) {
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil || len(sealed) < nonceLen {
		return "", errCorrupted
	}
	var nonce [nonceLen]byte
	copy(nonce[:], sealed[:nonceLen])
	plain, ok := secretbox.Open(nil, sealed[nonceLen:], &nonce, &s.key)
	if !ok {
		return "", errCorrupted
	}
	return string(plain), nil
}

func (s *store) Get(_ context.Context, key string) (string, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	doc, err := s.load()
	if err != nil {
		return "", err
	}
	encoded, ok := doc[key]
	if !ok {
		return "", storage.ErrNotFound
	}
	return s.open(encoded)
}

func (s *store) Set(_ context.Context, key, value string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	sealed, err := s.seal(value)
	if err != nil {
		return err
	}
	doc[key] = sealed
	return s.save(doc)
}

func (s *store) Delete(_ context.Context, keys ...string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	var changed bool
	for _, k := range keys {
		if _, ok := doc[k]; ok {
			delete(doc, k)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return s.save(doc)
}
