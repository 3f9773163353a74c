// Package verify scores a builder from their GitHub activity and the
// payment and Supabase keys they hand over.
package verify

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"problem-radar/internal/fetcher"
	"problem-radar/internal/logger"
	"problem-radar/internal/models"
	"problem-radar/internal/store"
)

const (
	ProviderStripe = "stripe"
	ProviderPolar  = "polar"
)

// VerifiedThreshold is the minimum score for a verified builder.
const VerifiedThreshold = 70

const (
	githubStarredPoints = 50
	githubValidPoints   = 25
	paymentLivePoints   = 50
	paymentValidPoints  = 35
	supabasePoints      = 15
	maxScore            = 100
)

var (
	stripeKeyRe      = regexp.MustCompile(`^pk_(live|test)_[A-Za-z0-9]{10,}$`)
	polarKeyRe       = regexp.MustCompile(`^[A-Za-z0-9_\-]{20,200}$`)
	supabaseJWTRe    = regexp.MustCompile(`^eyJ[\w-]+\.[\w-]+\.[\w-]+$`)
	supabasePublicRe = regexp.MustCompile(`^sb_publishable_[A-Za-z0-9_\-]{10,}$`)
	githubUserRe     = regexp.MustCompile(`^[A-Za-z0-9](?:[A-Za-z0-9-]{0,38})$`)
)

type RepoLister interface {
	Repos(ctx context.Context, username string) ([]fetcher.Repo, error)
}

type Request struct {
	GitHubUsername  string
	PaymentKey      string
	PaymentProvider string
	SupabaseKey     string
}

type Service struct {
	github RepoLister
	store  *store.Store
	log    *logger.Logger
	now    func() time.Time
}

func New(github RepoLister, st *store.Store, log *logger.Logger) *Service {
	return &Service{github: github, store: st, log: log.With("component", "verify"), now: time.Now}
}

// Verify checks every credential, scores them and replaces the user's
// stored verification.
func (s *Service) Verify(ctx context.Context, userID string, req Request) (models.VerificationResult, error) {
	res := models.VerificationResult{
		GitHub:   s.checkGitHub(ctx, req.GitHubUsername),
		Payment:  CheckPayment(req.PaymentKey, req.PaymentProvider),
		Supabase: CheckSupabase(req.SupabaseKey),
	}
	res.Score, res.Verified = Score(res)

	row := &models.BuilderVerification{
		UserID:     userID,
		GitHub:     mustJSON(res.GitHub),
		Payment:    mustJSON(res.Payment),
		Supabase:   mustJSON(res.Supabase),
		Score:      res.Score,
		Verified:   res.Verified,
		VerifiedAt: s.now().UTC(),
	}
	if err := s.store.UpsertVerification(ctx, row); err != nil {
		return res, fmt.Errorf("save verification: %w", err)
	}

	s.log.Info("Builder verified", "user_id", userID, "score", res.Score, "verified", res.Verified)
	return res, nil
}

// ParseGitHubUsername accepts a bare username, an @handle or a github.com URL.
func ParseGitHubUsername(input string) (string, bool) {
	s := strings.TrimSpace(input)
	s = strings.TrimPrefix(s, "@")
	for _, prefix := range []string{"https://", "http://"} {
		s = strings.TrimPrefix(s, prefix)
	}
	s = strings.TrimPrefix(s, "www.")
	if rest, ok := strings.CutPrefix(strings.ToLower(s), "github.com/"); ok {
		s = s[len(s)-len(rest):]
		if idx := strings.IndexAny(s, "/?#"); idx != -1 {
			s = s[:idx]
		}
	}
	if !githubUserRe.MatchString(s) {
		return "", false
	}
	return s, true
}

func (s *Service) checkGitHub(ctx context.Context, input string) models.GitHubCheck {
	username, ok := ParseGitHubUsername(input)
	if !ok {
		return models.GitHubCheck{Error: "Invalid GitHub username"}
	}
	check := models.GitHubCheck{Username: username}

	repos, err := s.github.Repos(ctx, username)
	if err != nil {
		if fetcher.IsNotFound(err) {
			check.Error = "GitHub user not found"
			return check
		}
		s.log.Warn("GitHub lookup failed", "username", username, "error", err)
		check.Error = "Could not reach GitHub"
		return check
	}

	check.Valid = true
	check.RepoCount = len(repos)
	for _, r := range repos {
		check.TotalStars += r.StargazersCount
		if r.StargazersCount >= 1 {
			check.HasStarredRepo = true
		}
	}
	return check
}

// CheckPayment validates a publishable payment key. The provider is inferred
// from the pk_ prefix when not given.
func CheckPayment(key, provider string) models.PaymentCheck {
	key = strings.TrimSpace(key)
	if key == "" {
		return models.PaymentCheck{}
	}
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		provider = ProviderPolar
		if strings.HasPrefix(key, "pk_") {
			provider = ProviderStripe
		}
	}

	check := models.PaymentCheck{Provided: true, Provider: provider}
	switch provider {
	case ProviderStripe:
		check.Valid = stripeKeyRe.MatchString(key)
		check.IsLive = check.Valid && strings.HasPrefix(key, "pk_live_")
	case ProviderPolar:
		check.Valid = polarKeyRe.MatchString(key)
		lower := strings.ToLower(key)
		check.IsLive = check.Valid && !strings.Contains(lower, "test") && !strings.Contains(lower, "sandbox")
	}
	check.HasRevenue = check.IsLive
	return check
}

func CheckSupabase(key string) models.SupabaseCheck {
	key = strings.TrimSpace(key)
	if key == "" {
		return models.SupabaseCheck{}
	}
	check := models.SupabaseCheck{Provided: true}
	switch {
	case supabaseJWTRe.MatchString(key):
		check.Valid, check.Format = true, "jwt"
	case supabasePublicRe.MatchString(key):
		check.Valid, check.Format = true, "publishable"
	}
	return check
}

// Score weights the checks out of 100.
func Score(res models.VerificationResult) (int, bool) {
	score := 0
	switch {
	case res.GitHub.Valid && res.GitHub.HasStarredRepo:
		score += githubStarredPoints
	case res.GitHub.Valid:
		score += githubValidPoints
	}
	switch {
	case res.Payment.Valid && res.Payment.HasRevenue:
		score += paymentLivePoints
	case res.Payment.Valid:
		score += paymentValidPoints
	}
	if res.Supabase.Valid {
		score += supabasePoints
	}
	if score > maxScore {
		score = maxScore
	}
	return score, score >= VerifiedThreshold
}

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return []byte("null")
	}
	return b
}
