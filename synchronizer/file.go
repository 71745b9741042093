package synchronizer

import (
	"encoding/json"
	"io/ioutil"
	"os"
	"sync"

	"github.com/pkg/errors"
)

const (
	filePerm os.FileMode = 0666
)

// NewFileStorage returns a storage persisted as a JSON object in filePath.
// The file is created if it does not exist.
func NewFileStorage(filePath string) (*FileStorage, error) {
	if filePath == "" {
		return nil, errors.New("storage file path is empty")
	}
	s := &FileStorage{
		filePath: filePath,
		data:     make(map[string]json.RawMessage),
		m:        &sync.Mutex{},
	}
	err := s.ensureFile()
	if err != nil {
		return nil, err
	}
	err = s.read()
	if err != nil {
		return nil, err
	}

	return s, nil
}

// FileStorage represents a storage backed by a single JSON file
type FileStorage struct {
	filePath string
	data     map[string]json.RawMessage
	m        *sync.Mutex
}

// Get returns the value stored under key
func (s *FileStorage) Get(key string) ([]byte, error) {
	s.m.Lock()
	defer s.m.Unlock()
	v, ok := s.data[key]
	if !ok {
		return nil, ErrNotExist
	}
	return append([]byte(nil), v...), nil
}

// Set stores data under key and writes the file. data must be valid JSON.
func (s *FileStorage) Set(key string, data []byte) error {
	if !json.Valid(data) {
		return errors.Errorf("value for %q is not valid JSON", key)
	}
	s.m.Lock()
	defer s.m.Unlock()
	s.data[key] = append(json.RawMessage(nil), data...)
	return s.save()
}

// save writes the current storage data to the storage file
// Make sure to execute this when storage is locked
func (s *FileStorage) save() error {
	data, err := json.MarshalIndent(s.data, "", "\t")
	if err != nil {
		return errors.Wrap(err, "failed to marshal storage data to json")
	}
	err = ioutil.WriteFile(s.filePath, data, filePerm)
	if err != nil {
		return errors.Wrap(err, "failed to open file for writing")
	}
	return nil
}

// read reads the storage file to in memory objects
func (s *FileStorage) read() error {
	data, err := ioutil.ReadFile(s.filePath)
	if err != nil {
		return errors.Wrap(err, "failed to read storage file")
	}

	if len(data) == 0 || string(data) == "{}" {
		return nil
	}
	err = json.Unmarshal(data, &s.data)
	if err != nil {
		return errors.Wrap(err, "failed to parse data from storage file")
	}

	return nil
}

// ensureFile ensures that the storage file exists
func (s *FileStorage) ensureFile() error {
	file, err := os.OpenFile(s.filePath, os.O_RDONLY|os.O_CREATE, filePerm)
	if err != nil {
		return errors.Wrap(err, "something went wrong creating/reading storage file")
	}

	return file.Close()
}
