// Package report forwards finished battle snapshots to a remote endpoint.
// It is a pure client of the aggregation engine's read API and never blocks
// or interferes with the pipeline.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"CombatSpectra/internal/engine/statistic"
)

// Report is the JSON document posted to the remote endpoint: the snapshot
// the query surface serves, stamped with when and how long the battle ran.
type Report struct {
	Timestamp  time.Time                           `json:"timestamp"`
	DurationMs uint64                              `json:"duration_ms"`
	User       map[uint64]statistic.CharacterView `json:"user"`
	Enemy      map[uint64]statistic.EnemyView     `json:"enemy"`
}

// Uploader posts battle reports with capped exponential backoff.
type Uploader struct {
	endpoint    string
	client      *http.Client
	maxRetries  int
	baseBackoff time.Duration
	maxBackoff  time.Duration
}

// NewUploader creates an uploader for the given endpoint.
func NewUploader(endpoint string, maxRetries int, baseBackoff, maxBackoff, timeout time.Duration) *Uploader {
	if maxRetries <= 0 {
		maxRetries = 4
	}
	if baseBackoff <= 0 {
		baseBackoff = 500 * time.Millisecond
	}
	if maxBackoff <= 0 {
		maxBackoff = 8 * time.Second
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Uploader{
		endpoint:    endpoint,
		client:      &http.Client{Timeout: timeout},
		maxRetries:  maxRetries,
		baseBackoff: baseBackoff,
		maxBackoff:  maxBackoff,
	}
}

// RecordBattle implements the battle sink: package the snapshot and post it.
// A report that still fails after the retry budget is dropped with a log
// line; upload failure is a transient, local condition.
func (u *Uploader) RecordBattle(snap statistic.Snapshot) {
	report := Report{
		Timestamp:  snap.TakenAt,
		DurationMs: uint64(snap.Elapsed / time.Millisecond),
		User:       snap.Characters,
		Enemy:      snap.Enemies,
	}
	if err := u.upload(report); err != nil {
		logrus.Warnf("report: giving up on battle report: %v", err)
	}
}

func (u *Uploader) upload(report Report) error {
	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	backoff := u.baseBackoff
	var lastErr error
	for attempt := 0; attempt <= u.maxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(backoff)
			backoff *= 2
			if backoff > u.maxBackoff {
				backoff = u.maxBackoff
			}
		}

		lastErr = u.post(body)
		if lastErr == nil {
			logrus.Infof("report: battle report uploaded to %s", u.endpoint)
			return nil
		}
		logrus.Warnf("report: upload attempt %d failed: %v", attempt+1, lastErr)
	}
	return lastErr
}

func (u *Uploader) post(body []byte) error {
	resp, err := u.client.Post(u.endpoint, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("remote returned status %s", resp.Status)
	}
	return nil
}
