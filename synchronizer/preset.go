package synchronizer

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/chrisvdg/tourneyfilter/criteria"
)

const maxPresetName = 50

// NotFoundError represents an unknown preset name
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("preset %q not found", e.Name)
}

// SavePreset stores the current criteria under name, replacing any preset
// with the same name
func (s *Synchronizer) SavePreset(name string) error {
	name, err := presetName(name)
	if err != nil {
		return err
	}
	c := s.store.Criteria()

	s.m.Lock()
	defer s.m.Unlock()
	presets := s.readPresets()
	presets[name] = newSnapshot(c)
	err = s.writePresets(presets)
	if err != nil {
		return err
	}
	log.Debugf("Saved preset %q as %s", name, c)
	return nil
}

// LoadPreset replaces the current criteria with the preset stored under name.
// Fields of the preset that no longer validate are dropped.
func (s *Synchronizer) LoadPreset(name string) (criteria.Criteria, error) {
	name = strings.TrimSpace(name)
	s.m.Lock()
	snap, ok := s.readPresets()[name]
	s.m.Unlock()
	if !ok {
		return s.store.Criteria(), &NotFoundError{Name: name}
	}

	c, errs := criteria.FromMap(snap.Criteria)
	for _, err := range errs {
		log.Warnf("Ignoring field of preset %q: %s", name, err)
	}
	return s.store.Replace(c), nil
}

// DeletePreset removes the preset stored under name
func (s *Synchronizer) DeletePreset(name string) error {
	name = strings.TrimSpace(name)
	s.m.Lock()
	defer s.m.Unlock()

	presets := s.readPresets()
	if _, ok := presets[name]; !ok {
		return &NotFoundError{Name: name}
	}
	delete(presets, name)
	return s.writePresets(presets)
}

// Presets returns the stored preset names in sorted order
func (s *Synchronizer) Presets() []string {
	s.m.Lock()
	defer s.m.Unlock()

	presets := s.readPresets()
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// readPresets must be called with the synchronizer locked.
// Unreadable presets are treated as none.
func (s *Synchronizer) readPresets() map[string]snapshot {
	presets := make(map[string]snapshot)
	data, err := s.storage.Get(s.presetsKey)
	if errors.Cause(err) == ErrNotExist {
		return presets
	}
	if err != nil {
		log.Warnf("Failed to read presets: %s", err)
		return presets
	}

	var raw map[string]json.RawMessage
	err = json.Unmarshal(data, &raw)
	if err != nil {
		log.Warnf("Ignoring stored presets: %s", err)
		return presets
	}
	for name, v := range raw {
		snap, err := decodeSnapshot(v)
		if err != nil {
			log.Warnf("Ignoring preset %q: %s", name, err)
			continue
		}
		presets[name] = snap
	}
	return presets
}

// writePresets must be called with the synchronizer locked
func (s *Synchronizer) writePresets(presets map[string]snapshot) error {
	data, err := json.Marshal(presets)
	if err != nil {
		return errors.Wrap(err, "failed to marshal presets")
	}
	err = s.storage.Set(s.presetsKey, data)
	if err != nil {
		return errors.Wrap(err, "failed to persist presets")
	}
	return nil
}

func presetName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", &criteria.ValidationError{Field: "preset", Value: name, Reason: "name is required"}
	}
	if utf8.RuneCountInString(name) > maxPresetName {
		return "", &criteria.ValidationError{Field: "preset", Value: name, Reason: fmt.Sprintf("must be at most %d characters", maxPresetName)}
	}
	return name, nil
}
