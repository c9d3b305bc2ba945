package config

import (
	"os"
	"strconv"
	"time"
)

// Config captures process-level configuration so main stays lean.
type Config struct {
	Addr string

	DatabaseURL string
	RedisURL    string

	KafkaBrokers []string
	KafkaTopic   string

	// BankHolidayFeedURL points at the public bank-holiday feed. Date
	// computations hard-fail when the feed is unreachable and uncached.
	BankHolidayFeedURL string
	BankHolidayFeedTTL time.Duration

	// HardStop offsets are environment policy, not business logic: the number
	// of working days before the licence start date at which the hard-stop
	// period begins, and the number of working days before the hard-stop date
	// at which the warning window begins.
	HardStopPeriodDays        int
	HardStopWarningPeriodDays int

	PrisonAPIBaseURL     string
	PrisonerSearchURL    string
	ProbationSearchURL   string
	UpstreamTimeout      time.Duration
	JobConcurrencyLimit  int
	OutboxPollInterval   time.Duration
	OutboxPublishTimeout time.Duration
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	return Config{
		Addr:        envOr("LICENCE_API_ADDR", ":8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),

		KafkaBrokers: splitNonEmpty(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   envOr("KAFKA_DOMAIN_EVENTS_TOPIC", "licence-domain-events"),

		BankHolidayFeedURL: envOr("BANK_HOLIDAY_FEED_URL", "https://www.gov.uk/bank-holidays.json"),
		BankHolidayFeedTTL: envDurationOr("BANK_HOLIDAY_FEED_TTL", 24*time.Hour),

		HardStopPeriodDays:        envIntOr("HARD_STOP_PERIOD_WORKING_DAYS", 2),
		HardStopWarningPeriodDays: envIntOr("HARD_STOP_WARNING_PERIOD_WORKING_DAYS", 2),

		PrisonAPIBaseURL:     os.Getenv("PRISON_API_URL"),
		PrisonerSearchURL:    os.Getenv("PRISONER_SEARCH_API_URL"),
		ProbationSearchURL:   os.Getenv("PROBATION_SEARCH_API_URL"),
		UpstreamTimeout:      envDurationOr("UPSTREAM_TIMEOUT", 10*time.Second),
		JobConcurrencyLimit:  envIntOr("JOB_CONCURRENCY_LIMIT", 8),
		OutboxPollInterval:   envDurationOr("OUTBOX_POLL_INTERVAL", 2*time.Second),
		OutboxPublishTimeout: envDurationOr("OUTBOX_PUBLISH_TIMEOUT", 10*time.Second),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if part := s[start:i]; part != "" {
				out = append(out, part)
			}
			start = i + 1
		}
	}
	return out
}
