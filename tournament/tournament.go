// Package tournament holds the tournament listing records and the providers
// that look them up for a set of criteria.
package tournament

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/chrisvdg/tourneyfilter/cache"
)

// Status represents the lifecycle status of a tournament
type Status string

const (
	// StatusUpcoming represents a tournament that has not started
	StatusUpcoming Status = "upcoming"
	// StatusOngoing represents a tournament in progress
	StatusOngoing Status = "ongoing"
	// StatusFinished represents a completed tournament
	StatusFinished Status = "finished"
)

// Tournament represents a single listing record
type Tournament struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Category  string    `json:"category"`
	Location  string    `json:"location"`
	Status    Status    `json:"status"`
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
}

// Validate checks the fields required to list a tournament
func (t Tournament) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return errors.New("tournament id is required")
	}
	if strings.TrimSpace(t.Name) == "" {
		return errors.Errorf("tournament %s has no name", t.ID)
	}
	if t.StartDate.IsZero() {
		return errors.Errorf("tournament %s has no start date", t.ID)
	}
	if !t.EndDate.IsZero() && t.EndDate.Before(t.StartDate) {
		return errors.Errorf("tournament %s ends before it starts", t.ID)
	}
	return nil
}

// Decode reads a JSON array of tournaments
func Decode(data []byte) ([]Tournament, error) {
	var ts []Tournament
	err := json.Unmarshal(data, &ts)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse tournaments")
	}
	for _, t := range ts {
		err = t.Validate()
		if err != nil {
			return nil, err
		}
	}
	return ts, nil
}

// ResultSet encodes one page of tournaments out of total matches
func ResultSet(page []Tournament, total int) (*cache.ResultSet, error) {
	records := make([]json.RawMessage, 0, len(page))
	for _, t := range page {
		data, err := json.Marshal(t)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to encode tournament %s", t.ID)
		}
		records = append(records, data)
	}
	return cache.NewResultSet(records, total, total > len(page)), nil
}
