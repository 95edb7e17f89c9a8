package application

import (
	"context"
	"errors"
	"sync"
	"time"

	"flux-gateway/middleware/admission/domain"
)

var errBoom = errors.New("boom")

type fakeReputation struct {
	mu      sync.Mutex
	records map[domain.Key]domain.ReputationRecord
	getErr  error
	addErr  error
	touches int
	bans    int
}

func newFakeReputation() *fakeReputation {
	return &fakeReputation{records: map[domain.Key]domain.ReputationRecord{}}
}

func (f *fakeReputation) Get(_ context.Context, key domain.Key) (domain.ReputationRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return domain.ReputationRecord{}, f.getErr
	}
	rec, ok := f.records[key]
	if !ok {
		return domain.ReputationRecord{}, domain.ErrRecordNotFound
	}
	return rec, nil
}

func (f *fakeReputation) Touch(_ context.Context, key domain.Key, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec := f.records[key]
	rec.Key = key
	rec.LastSeen = at
	f.records[key] = rec
	f.touches++
	return nil
}

func (f *fakeReputation) AddViolation(_ context.Context, key domain.Key, day string, at time.Time) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return 0, f.addErr
	}
	rec := f.records[key]
	rec.Key = key
	rec.ViolationCount++
	rec.LastViolationDate = day
	rec.LastSeen = at
	f.records[key] = rec
	return rec.ViolationCount, nil
}

func (f *fakeReputation) Ban(_ context.Context, key domain.Key, until time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec := f.records[key]
	rec.Key = key
	rec.IsBanned = true
	rec.BanExpiry = until
	rec.ViolationCount = 0
	f.records[key] = rec
	f.bans++
	return nil
}

func (f *fakeReputation) Unban(_ context.Context, key domain.Key) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec := f.records[key]
	rec.IsBanned = false
	rec.ViolationCount = 0
	f.records[key] = rec
	return nil
}

func (f *fakeReputation) SetSeamless(_ context.Context, key domain.Key, until time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec := f.records[key]
	rec.Key = key
	rec.IsSeamless = true
	rec.SeamlessExpiry = until
	f.records[key] = rec
	return nil
}

func (f *fakeReputation) ClearSeamless(_ context.Context, key domain.Key) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec := f.records[key]
	rec.IsSeamless = false
	f.records[key] = rec
	return nil
}

func (f *fakeReputation) List(context.Context) ([]domain.ReputationRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.ReputationRecord, 0, len(f.records))
	for _, r := range f.records {
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeReputation) record(key domain.Key) domain.ReputationRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.records[key]
}

type fakeConfig struct {
	cfg domain.GlobalConfig
	err error
}

func (f *fakeConfig) GetConfig(context.Context) (domain.GlobalConfig, error) { return f.cfg, f.err }

func (f *fakeConfig) SaveConfig(_ context.Context, cfg domain.GlobalConfig) error {
	f.cfg = cfg
	f.err = nil
	return nil
}

type fakeCounter struct {
	mu     sync.Mutex
	counts map[string]uint64
	ttls   map[string]time.Duration
	err    error
}

func newFakeCounter() *fakeCounter {
	return &fakeCounter{counts: map[string]uint64{}, ttls: map[string]time.Duration{}}
}

func (f *fakeCounter) Increment(_ context.Context, key string, ttl time.Duration) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	f.counts[key]++
	f.ttls[key] = ttl
	return f.counts[key], nil
}

type fakeProbe struct {
	load  float64
	err   error
	delay time.Duration
}

func (f fakeProbe) Load(ctx context.Context) (float64, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	return f.load, f.err
}

type panicProbe struct{}

func (panicProbe) Load(context.Context) (float64, error) { panic("probe exploded") }

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }
