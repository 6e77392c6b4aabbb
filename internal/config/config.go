// Package config loads the engine configuration from environment variables.
// envconfig maps the variables onto one flat struct; the struct is loaded
// once at process start, validated, and passed explicitly into every
// component. Nothing reads configuration from globals after that.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds ALL settings of the engine.
type Config struct {
	// --- Database ---
	// Inside Docker "localhost" is almost always wrong; default to the
	// compose service name and override DB_HOST=localhost for local runs.
	DBHost         string        `envconfig:"DB_HOST" default:"postgres"`
	DBPort         int           `envconfig:"DB_PORT" default:"5432"`
	DBUser         string        `envconfig:"DB_USER" default:"rewards"`
	DBPassword     string        `envconfig:"DB_PASSWORD" required:"true"`
	DBName         string        `envconfig:"DB_NAME" default:"rewards_engine"`
	DBSSLMode      string        `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxConns     int32         `envconfig:"DB_MAX_CONNS" default:"10"`
	DBMinConns     int32         `envconfig:"DB_MIN_CONNS" default:"1"`
	DBQueryTimeout time.Duration `envconfig:"DB_QUERY_TIMEOUT" default:"5s"`

	// --- Application ---
	AppEnv      string `envconfig:"APP_ENV" default:"development"`
	AppLogLevel string `envconfig:"APP_LOG_LEVEL" default:"debug"`

	// --- HTTP server ---
	HTTPAddr           string        `envconfig:"HTTP_ADDR" default:":8080"`
	HTTPReadTimeout    time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"10s"`
	HTTPWriteTimeout   time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"30s"`
	CORSAllowedOrigins []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`

	// --- Rate limiting (per client, sliding window) ---
	RateLimitRequests int           `envconfig:"RATE_LIMIT_REQUESTS" default:"10"`
	RateLimitWindow   time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`

	// --- Admin ---
	// Argon2id hash of the token required to trigger analysis runs by hand.
	// Generate with: go run scripts/generate_hash.go <token>
	AdminTokenHash string `envconfig:"ADMIN_TOKEN_HASH" required:"true"`

	// --- Reward distribution collaborator ---
	// Empty URL disables webhook delivery (results are still persisted).
	RewardWebhookURL     string        `envconfig:"REWARD_WEBHOOK_URL" default:""`
	RewardWebhookTimeout time.Duration `envconfig:"REWARD_WEBHOOK_TIMEOUT" default:"30s"`

	// --- Daily analysis ---
	// Runs just after midnight UTC so the qualifying day's last_active_date
	// is "yesterday" from the job's point of view.
	AnalysisCron string `envconfig:"ANALYSIS_CRON" default:"5 0 * * *"`

	// --- Per-category scoring ---
	// point value, daily award limit, qualification threshold, monthly cap,
	// empathy weight. Referrals and tipping are effectively unlimited on the
	// award path while still requiring one action per day to qualify.
	PostsPointValue    float64 `envconfig:"POSTS_POINT_VALUE" default:"0.5"`
	PostsDailyLimit    int     `envconfig:"POSTS_DAILY_LIMIT" default:"2"`
	PostsThreshold     int     `envconfig:"POSTS_THRESHOLD" default:"2"`
	PostsMonthlyCap    float64 `envconfig:"POSTS_MONTHLY_CAP" default:"30"`
	PostsEmpathyWeight float64 `envconfig:"POSTS_EMPATHY_WEIGHT" default:"0.25"`

	LikesPointValue    float64 `envconfig:"LIKES_POINT_VALUE" default:"0.1"`
	LikesDailyLimit    int     `envconfig:"LIKES_DAILY_LIMIT" default:"5"`
	LikesThreshold     int     `envconfig:"LIKES_THRESHOLD" default:"5"`
	LikesMonthlyCap    float64 `envconfig:"LIKES_MONTHLY_CAP" default:"15"`
	LikesEmpathyWeight float64 `envconfig:"LIKES_EMPATHY_WEIGHT" default:"0.08"`

	CommentsPointValue    float64 `envconfig:"COMMENTS_POINT_VALUE" default:"0.1"`
	CommentsDailyLimit    int     `envconfig:"COMMENTS_DAILY_LIMIT" default:"5"`
	CommentsThreshold     int     `envconfig:"COMMENTS_THRESHOLD" default:"5"`
	CommentsMonthlyCap    float64 `envconfig:"COMMENTS_MONTHLY_CAP" default:"15"`
	CommentsEmpathyWeight float64 `envconfig:"COMMENTS_EMPATHY_WEIGHT" default:"0.08"`

	ReferralsPointValue    float64 `envconfig:"REFERRALS_POINT_VALUE" default:"10"`
	ReferralsDailyLimit    int     `envconfig:"REFERRALS_DAILY_LIMIT" default:"999999"`
	ReferralsThreshold     int     `envconfig:"REFERRALS_THRESHOLD" default:"1"`
	ReferralsMonthlyCap    float64 `envconfig:"REFERRALS_MONTHLY_CAP" default:"10"`
	ReferralsEmpathyWeight float64 `envconfig:"REFERRALS_EMPATHY_WEIGHT" default:"0.05"`

	TippingPointValue    float64 `envconfig:"TIPPING_POINT_VALUE" default:"0.5"`
	TippingDailyLimit    int     `envconfig:"TIPPING_DAILY_LIMIT" default:"999999"`
	TippingThreshold     int     `envconfig:"TIPPING_THRESHOLD" default:"1"`
	TippingMonthlyCap    float64 `envconfig:"TIPPING_MONTHLY_CAP" default:"20"`
	TippingEmpathyWeight float64 `envconfig:"TIPPING_EMPATHY_WEIGHT" default:"0.05"`

	CryptoPointValue    float64 `envconfig:"CRYPTO_POINT_VALUE" default:"0.5"`
	CryptoDailyLimit    int     `envconfig:"CRYPTO_DAILY_LIMIT" default:"3"`
	CryptoThreshold     int     `envconfig:"CRYPTO_THRESHOLD" default:"3"`
	CryptoMonthlyCap    float64 `envconfig:"CRYPTO_MONTHLY_CAP" default:"20"`
	CryptoEmpathyWeight float64 `envconfig:"CRYPTO_EMPATHY_WEIGHT" default:"0.09"`

	// --- Qualitative post bonuses ---
	PostQualityWeight     float64 `envconfig:"POST_QUALITY_WEIGHT" default:"1.0"`
	PostOriginalityWeight float64 `envconfig:"POST_ORIGINALITY_WEIGHT" default:"0.25"`

	// --- Empathy selection ---
	EmpathyStreakWeight   float64 `envconfig:"EMPATHY_STREAK_WEIGHT" default:"0.5"`
	EmpathyRewardFraction float64 `envconfig:"EMPATHY_REWARD_FRACTION" default:"0.10"`

	// --- One-time grants ---
	RegistrationPoints float64 `envconfig:"REGISTRATION_POINTS" default:"10"`
	VerificationPoints float64 `envconfig:"VERIFICATION_POINTS" default:"10"`
}

// CategoryParams bundles the per-category knobs so services don't pick
// through the flat struct by hand.
type CategoryParams struct {
	PointValue    float64 // points per action (posts: base value before bonuses)
	DailyLimit    int     // max awards inside any trailing 24h window
	Threshold     int     // in-window action count required to qualify
	MonthlyCap    float64 // absolute cap on points_from_<category>
	EmpathyWeight float64 // lifetime-count weight in the empathy score
}

// Category returns the params for a category name; ok is false for
// anything outside the six fixed categories.
func (c *Config) Category(name string) (CategoryParams, bool) {
	switch name {
	case "posts":
		return CategoryParams{c.PostsPointValue, c.PostsDailyLimit, c.PostsThreshold, c.PostsMonthlyCap, c.PostsEmpathyWeight}, true
	case "likes":
		return CategoryParams{c.LikesPointValue, c.LikesDailyLimit, c.LikesThreshold, c.LikesMonthlyCap, c.LikesEmpathyWeight}, true
	case "comments":
		return CategoryParams{c.CommentsPointValue, c.CommentsDailyLimit, c.CommentsThreshold, c.CommentsMonthlyCap, c.CommentsEmpathyWeight}, true
	case "referrals":
		return CategoryParams{c.ReferralsPointValue, c.ReferralsDailyLimit, c.ReferralsThreshold, c.ReferralsMonthlyCap, c.ReferralsEmpathyWeight}, true
	case "tipping":
		return CategoryParams{c.TippingPointValue, c.TippingDailyLimit, c.TippingThreshold, c.TippingMonthlyCap, c.TippingEmpathyWeight}, true
	case "crypto":
		return CategoryParams{c.CryptoPointValue, c.CryptoDailyLimit, c.CryptoThreshold, c.CryptoMonthlyCap, c.CryptoEmpathyWeight}, true
	}
	return CategoryParams{}, false
}

// TotalMonthlyCap is the normalizer's denominator: the sum of all six
// monthly caps. A user pinned at every cap scores exactly 100.
func (c *Config) TotalMonthlyCap() float64 {
	return c.PostsMonthlyCap + c.LikesMonthlyCap + c.CommentsMonthlyCap +
		c.ReferralsMonthlyCap + c.TippingMonthlyCap + c.CryptoMonthlyCap
}

// DatabaseDSN returns the PostgreSQL connection string.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

func (c *Config) Validate() error {
	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("invalid DB_MIN_CONNS/DB_MAX_CONNS")
	}
	if c.DBQueryTimeout <= 0 {
		return fmt.Errorf("DB_QUERY_TIMEOUT must be > 0")
	}
	if c.EmpathyRewardFraction <= 0 || c.EmpathyRewardFraction > 1 {
		return fmt.Errorf("EMPATHY_REWARD_FRACTION must be in (0,1]")
	}
	if c.RateLimitRequests <= 0 || c.RateLimitWindow <= 0 {
		return fmt.Errorf("invalid RATE_LIMIT_REQUESTS/RATE_LIMIT_WINDOW")
	}
	for _, name := range []string{"posts", "likes", "comments", "referrals", "tipping", "crypto"} {
		p, _ := c.Category(name)
		if p.PointValue < 0 || p.MonthlyCap <= 0 || p.DailyLimit <= 0 || p.Threshold <= 0 {
			return fmt.Errorf("invalid scoring params for category %q", name)
		}
	}
	if c.TotalMonthlyCap() <= 0 {
		return fmt.Errorf("sum of monthly caps must be > 0")
	}
	return nil
}

// Load reads the environment and fills the Config.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
