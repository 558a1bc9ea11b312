// Package schedule keeps the set of upcoming external-engine runs in Redis
// so that one scheduler replica fires each run when it comes due.
package schedule

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RunKind names an engine operation the scheduler can trigger.
type RunKind string

const (
	RunGenerate    RunKind = "generate"
	RunRiskRefresh RunKind = "risk_refresh"
)

// Run is one scheduled engine invocation. Attempt counts consecutive
// failures of this occurrence and drives the retry backoff.
type Run struct {
	Kind    RunKind
	Period  string
	Attempt int
}

func (r Run) member() string {
	return fmt.Sprintf("%s|%s|%d", r.Kind, r.Period, r.Attempt)
}

func parseMember(member string) (Run, error) {
	parts := strings.SplitN(member, "|", 3)
	if len(parts) != 3 {
		return Run{}, fmt.Errorf("malformed run member %q", member)
	}
	attempt, err := strconv.Atoi(parts[2])
	if err != nil {
		return Run{}, fmt.Errorf("malformed attempt in run member %q", member)
	}
	return Run{Kind: RunKind(parts[0]), Period: parts[1], Attempt: attempt}, nil
}

// Scheduler stores runs in a Redis sorted set scored by their due time.
type Scheduler struct {
	client       *redis.Client
	scheduledKey string
	claimPrefix  string
	claimTTL     time.Duration
}

func New(client *redis.Client, claimTTL time.Duration) *Scheduler {
	if claimTTL == 0 {
		claimTTL = 10 * time.Minute
	}
	return &Scheduler{
		client:       client,
		scheduledKey: "engine:scheduled",
		claimPrefix:  "engine:claim:",
		claimTTL:     claimTTL,
	}
}

// Schedule registers a run to fire at the given time, replacing any earlier
// schedule for the same occurrence.
func (s *Scheduler) Schedule(ctx context.Context, run Run, at time.Time) error {
	return s.client.ZAdd(ctx, s.scheduledKey, redis.Z{
		Score:  float64(at.UnixMilli()),
		Member: run.member(),
	}).Err()
}

// Due atomically pops runs whose due time has passed. A popped run that is
// never rescheduled is gone, so callers must reschedule after handling.
func (s *Scheduler) Due(ctx context.Context, now time.Time, limit int64) ([]Run, error) {
	res, err := popDueScript.Run(ctx, s.client, []string{s.scheduledKey}, now.UnixMilli(), limit).Result()
	if err != nil {
		return nil, fmt.Errorf("pop due runs: %w", err)
	}
	members, ok := res.([]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected type from pop script: %T", res)
	}
	runs := make([]Run, 0, len(members))
	for _, m := range members {
		member, ok := m.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected member type from pop script: %T", m)
		}
		run, err := parseMember(member)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, nil
}

// Claim takes a short-lived lock on a run occurrence so a replica that
// crashed mid-run does not race its replacement. Returns false when another
// replica already holds the claim.
func (s *Scheduler) Claim(ctx context.Context, run Run) (bool, error) {
	key := s.claimPrefix + string(run.Kind) + ":" + run.Period
	ok, err := s.client.SetNX(ctx, key, run.member(), s.claimTTL).Result()
	if err != nil {
		return false, fmt.Errorf("claim run: %w", err)
	}
	return ok, nil
}

// Release drops the claim after the run completes or is rescheduled.
func (s *Scheduler) Release(ctx context.Context, run Run) error {
	key := s.claimPrefix + string(run.Kind) + ":" + run.Period
	return s.client.Del(ctx, key).Err()
}

// Pending returns how many runs are currently scheduled.
func (s *Scheduler) Pending(ctx context.Context) (int64, error) {
	return s.client.ZCard(ctx, s.scheduledKey).Result()
}

var popDueScript = redis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, ARGV[2])
for i = 1, #due do
  redis.call('ZREM', KEYS[1], due[i])
end
return due
`)
