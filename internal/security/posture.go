package security

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/nwaqas/finfortress/internal/app"
	iauth "github.com/nwaqas/finfortress/internal/auth"
	"github.com/nwaqas/finfortress/internal/models"
)

// CheckStatus captures the outcome of a posture check.
type CheckStatus string

const (
	StatusPass CheckStatus = "pass"
	StatusWarn CheckStatus = "warn"
	StatusFail CheckStatus = "fail"
)

// Check contains the result of a single verification.
type Check struct {
	ID          string      `json:"id"`
	Status      CheckStatus `json:"status"`
	Message     string      `json:"message"`
	Remediation string      `json:"remediation,omitempty"`
	Details     any         `json:"details,omitempty"`
}

// Result aggregates all checks with a simple status summary.
type Result struct {
	CheckedAt time.Time      `json:"checked_at"`
	Checks    []Check        `json:"checks"`
	Summary   map[string]int `json:"summary"`
}

// PostureService evaluates the deployment's security configuration: token
// secrets, grant lifetimes, brute-force throttles, and where the two-factor
// profiles live.
type PostureService struct {
	db  *gorm.DB
	jwt *iauth.JWTService
	cfg *app.Config
	now func() time.Time
}

// NewPostureService constructs the service. Missing dependencies degrade
// their checks to warnings rather than failing construction.
func NewPostureService(db *gorm.DB, jwt *iauth.JWTService, cfg *app.Config) *PostureService {
	return &PostureService{
		db:  db,
		jwt: jwt,
		cfg: cfg,
		now: time.Now,
	}
}

// WithClock overrides the clock used in results (primarily for testing).
func (s *PostureService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// Run executes all posture checks and returns their outcome.
func (s *PostureService) Run(ctx context.Context) Result {
	if ctx == nil {
		ctx = context.Background()
	}

	checks := []Check{
		s.checkDatabase(ctx),
		s.checkJWTSecret(),
		s.checkAccessTokenTTL(),
		s.checkUnlockGrantTTL(),
		s.checkChallengeThrottle(),
		s.checkProfileStore(),
	}

	summary := map[string]int{
		string(StatusPass): 0,
		string(StatusWarn): 0,
		string(StatusFail): 0,
	}
	for _, check := range checks {
		summary[string(check.Status)]++
	}

	return Result{
		CheckedAt: s.now().UTC(),
		Checks:    checks,
		Summary:   summary,
	}
}

func (s *PostureService) checkDatabase(ctx context.Context) Check {
	if s.db == nil {
		return Check{
			ID:          "database_reachable",
			Status:      StatusWarn,
			Message:     "Database handle not configured; ledger state cannot be verified.",
			Remediation: "Run the posture audit with a connected database.",
		}
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Count(&count).Error; err != nil {
		return Check{
			ID:          "database_reachable",
			Status:      StatusFail,
			Message:     fmt.Sprintf("Database query failed: %v", err),
			Remediation: "Resolve database connectivity before relying on the ledger.",
		}
	}

	return Check{
		ID:      "database_reachable",
		Status:  StatusPass,
		Message: "Database reachable.",
		Details: map[string]any{"users": count},
	}
}

func (s *PostureService) checkJWTSecret() Check {
	if s.jwt == nil {
		return Check{
			ID:          "jwt_secret_strength",
			Status:      StatusWarn,
			Message:     "JWT service not initialised; signing secret strength unknown.",
			Remediation: "Initialise the JWT service with a strong secret.",
		}
	}

	length := s.jwt.SecretLength()
	switch {
	case length >= 32:
		return Check{
			ID:      "jwt_secret_strength",
			Status:  StatusPass,
			Message: "JWT signing secret meets the recommended length.",
			Details: map[string]any{"bytes": length},
		}
	case length >= 16:
		return Check{
			ID:          "jwt_secret_strength",
			Status:      StatusWarn,
			Message:     "JWT signing secret is shorter than recommended.",
			Remediation: "Use a secret of at least 32 bytes.",
			Details:     map[string]any{"bytes": length},
		}
	default:
		return Check{
			ID:          "jwt_secret_strength",
			Status:      StatusFail,
			Message:     "JWT signing secret is too short.",
			Remediation: "Rotate to a secret of at least 32 bytes.",
			Details:     map[string]any{"bytes": length},
		}
	}
}

func (s *PostureService) checkAccessTokenTTL() Check {
	if s.jwt == nil {
		return Check{
			ID:      "access_token_ttl",
			Status:  StatusWarn,
			Message: "JWT service not initialised; token lifetime unknown.",
		}
	}

	ttl := s.jwt.AccessTokenTTL()
	if ttl > time.Hour {
		return Check{
			ID:          "access_token_ttl",
			Status:      StatusWarn,
			Message:     fmt.Sprintf("Access tokens live %s; a stolen token stays valid that long.", ttl),
			Remediation: "Keep access tokens at one hour or less and lean on refresh rotation.",
		}
	}

	return Check{
		ID:      "access_token_ttl",
		Status:  StatusPass,
		Message: fmt.Sprintf("Access tokens expire after %s.", ttl),
	}
}

func (s *PostureService) checkUnlockGrantTTL() Check {
	if s.cfg == nil {
		return Check{
			ID:      "unlock_grant_ttl",
			Status:  StatusWarn,
			Message: "Configuration unavailable; unlock grant lifetime unknown.",
		}
	}

	ttl := s.cfg.Auth.Unlock.GrantTTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	if ttl > 24*time.Hour {
		return Check{
			ID:          "unlock_grant_ttl",
			Status:      StatusWarn,
			Message:     fmt.Sprintf("Unlock grants live %s; devices stay unlocked past a working day.", ttl),
			Remediation: "Keep the grant lifetime at 24 hours or less.",
		}
	}

	return Check{
		ID:      "unlock_grant_ttl",
		Status:  StatusPass,
		Message: fmt.Sprintf("Unlock grants expire after %s.", ttl),
	}
}

func (s *PostureService) checkChallengeThrottle() Check {
	if s.cfg == nil {
		return Check{
			ID:      "challenge_throttle",
			Status:  StatusWarn,
			Message: "Configuration unavailable; challenge throttle unknown.",
		}
	}

	limits := s.cfg.Server.RateLimit
	requests := limits.ChallengeRequests
	if requests <= 0 {
		requests = 10
	}

	// PIN and code guessing is an online attack; the only brake is the
	// challenge rate limit.
	if limits.Requests > 0 && requests >= limits.Requests {
		return Check{
			ID:          "challenge_throttle",
			Status:      StatusFail,
			Message:     "Challenge endpoints are not throttled tighter than the global limit.",
			Remediation: "Set server.rate_limit.challenge_requests well below the global request limit.",
			Details:     map[string]any{"challenge": requests, "global": limits.Requests},
		}
	}

	return Check{
		ID:      "challenge_throttle",
		Status:  StatusPass,
		Message: fmt.Sprintf("Challenge attempts limited to %d per window.", requests),
	}
}

func (s *PostureService) checkProfileStore() Check {
	if s.cfg == nil {
		return Check{
			ID:      "profile_store",
			Status:  StatusWarn,
			Message: "Configuration unavailable; profile store backend unknown.",
		}
	}

	if !s.cfg.Profile.Mongo.Enabled {
		return Check{
			ID:          "profile_store",
			Status:      StatusWarn,
			Message:     "Security profiles are held in process memory and vanish on restart.",
			Remediation: "Enable the MongoDB profile store for any real deployment.",
		}
	}

	return Check{
		ID:      "profile_store",
		Status:  StatusPass,
		Message: "Security profiles persist in MongoDB.",
	}
}
