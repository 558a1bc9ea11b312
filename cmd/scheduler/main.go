package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"compliance-taskboard/internal/config"
	"compliance-taskboard/internal/engine"
	"compliance-taskboard/internal/schedule"
	"compliance-taskboard/internal/telemetry"
	"compliance-taskboard/internal/triage"
)

func main() {
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		<-ch
		cancel()
	}()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	scheduler := schedule.New(redisClient, cfg.RunClaimTTL)
	engineClient := engine.NewClient(cfg.EngineBaseURL, cfg.EngineTimeout)

	if err := seedRuns(ctx, scheduler, time.Now()); err != nil {
		log.Fatalf("seed runs: %v", err)
	}

	go func() {
		if err := http.ListenAndServe(cfg.MetricsAddr, telemetry.Handler()); err != nil {
			log.Printf("metrics server stopped: %v", err)
		}
	}()

	log.Printf("scheduler started poll=%s claim_ttl=%s", cfg.SchedulerPoll, cfg.RunClaimTTL)
	run(ctx, cfg, scheduler, engineClient)
}

// seedRuns makes sure the recurring runs exist: the next period's generation
// on the first of the month, and the daily risk refresh for the current
// period. ZAdd is idempotent per member, so reseeding on restart is safe.
func seedRuns(ctx context.Context, s *schedule.Scheduler, now time.Time) error {
	firstOfNext := time.Date(now.Year(), now.Month(), 1, 6, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	gen := schedule.Run{Kind: schedule.RunGenerate, Period: triage.PeriodOf(firstOfNext)}
	if err := s.Schedule(ctx, gen, firstOfNext); err != nil {
		return err
	}
	risk := schedule.Run{Kind: schedule.RunRiskRefresh, Period: triage.PeriodOf(now)}
	return s.Schedule(ctx, risk, now)
}

func run(ctx context.Context, cfg config.Config, scheduler *schedule.Scheduler, engineClient *engine.Client) {
	ticker := time.NewTicker(cfg.SchedulerPoll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		due, err := scheduler.Due(ctx, time.Now(), 10)
		if err != nil {
			log.Printf("pop due runs: %v", err)
			continue
		}
		for _, r := range due {
			handleRun(ctx, cfg, scheduler, engineClient, r)
		}
	}
}

func handleRun(ctx context.Context, cfg config.Config, scheduler *schedule.Scheduler, engineClient *engine.Client, r schedule.Run) {
	claimed, err := scheduler.Claim(ctx, r)
	if err != nil {
		log.Printf("claim %s %s: %v", r.Kind, r.Period, err)
		return
	}
	if !claimed {
		return
	}
	defer func() {
		if err := scheduler.Release(ctx, r); err != nil {
			log.Printf("release %s %s: %v", r.Kind, r.Period, err)
		}
	}()

	var summary engine.RunSummary
	switch r.Kind {
	case schedule.RunGenerate:
		summary, err = engineClient.GenerateTasks(ctx, r.Period)
	case schedule.RunRiskRefresh:
		summary, err = engineClient.RefreshRisk(ctx, r.Period)
	default:
		log.Printf("unknown run kind %q dropped", r.Kind)
		return
	}

	if err != nil {
		retry := r
		retry.Attempt++
		backoff := schedule.RetryBackoff(cfg.RetryBackoffInitial, cfg.RetryBackoffMax, retry.Attempt)
		log.Printf("%s %s failed (attempt %d, retry in %s): %v", r.Kind, r.Period, retry.Attempt, backoff, err)
		if err := scheduler.Schedule(ctx, retry, time.Now().Add(backoff)); err != nil {
			log.Printf("reschedule retry: %v", err)
		}
		return
	}

	log.Printf("%s %s: %s", r.Kind, r.Period, summary.Message)
	scheduleNext(ctx, cfg, scheduler, r)
}

// scheduleNext registers the following occurrence after a successful run.
func scheduleNext(ctx context.Context, cfg config.Config, scheduler *schedule.Scheduler, r schedule.Run) {
	now := time.Now()
	switch r.Kind {
	case schedule.RunGenerate:
		firstOfNext := time.Date(now.Year(), now.Month(), 1, 6, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
		next := schedule.Run{Kind: schedule.RunGenerate, Period: triage.PeriodOf(firstOfNext)}
		if err := scheduler.Schedule(ctx, next, firstOfNext); err != nil {
			log.Printf("schedule next generation: %v", err)
		}
	case schedule.RunRiskRefresh:
		at := now.Add(cfg.RiskRefreshEvery)
		next := schedule.Run{Kind: schedule.RunRiskRefresh, Period: triage.PeriodOf(at)}
		if err := scheduler.Schedule(ctx, next, at); err != nil {
			log.Printf("schedule next risk refresh: %v", err)
		}
	}
}
