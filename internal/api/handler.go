package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"problem-radar/internal/auth"
	"problem-radar/internal/config"
	"problem-radar/internal/logger"
	"problem-radar/internal/models"
	"problem-radar/internal/pipeline"
	"problem-radar/internal/ratelimit"
	"problem-radar/internal/store"
	"problem-radar/internal/verify"
)

type Scanner interface {
	ScanTikTok(ctx context.Context, req pipeline.TikTokRequest) (*pipeline.TikTokResponse, error)
	ScanReddit(ctx context.Context, req pipeline.RedditRequest) (*pipeline.RedditResponse, error)
	Refresh(ctx context.Context, problemID string) (*pipeline.RefreshResult, error)
}

type BuilderVerifier interface {
	Verify(ctx context.Context, userID string, req verify.Request) (models.VerificationResult, error)
}

// Secrets are the upstream credentials checked before a scan starts.
type Secrets struct {
	ApifyToken  string
	RapidAPIKey string
	LLMAPIKey   string
}

type Handler struct {
	store    *store.Store
	scans    Scanner
	verifier BuilderVerifier
	limiter  *ratelimit.Limiter
	auth     *auth.Verifier
	secrets  Secrets
	log      *logger.Logger
}

func NewHandler(st *store.Store, scans Scanner, verifier BuilderVerifier, limiter *ratelimit.Limiter, av *auth.Verifier, secrets Secrets, log *logger.Logger) *Handler {
	return &Handler{
		store:    st,
		scans:    scans,
		verifier: verifier,
		limiter:  limiter,
		auth:     av,
		secrets:  secrets,
		log:      log.With("component", "api"),
	}
}

// NewRouter builds the engine with the shared middleware and all routes.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(h.log), CORS())
	h.RegisterRoutes(r)
	return r
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	registerValidators()

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "problem-radar"})
	})

	api := r.Group("/api")
	{
		api.GET("/problems", h.limit("problems", ratelimit.Public), h.GetProblems)
		api.GET("/problems/:id", h.limit("problems", ratelimit.Public), h.GetProblem)
		api.GET("/stats", h.limit("stats", ratelimit.Public), h.GetStats)

		api.POST("/search-tiktok", h.auth.Optional(), h.limit("search-tiktok", ratelimit.Search), h.SearchTikTok)
		api.POST("/search-reddit", h.auth.Optional(), h.limit("search-reddit", ratelimit.Search), h.SearchReddit)
		api.POST("/refresh-problem-data", h.auth.Required(), h.limit("refresh-problem-data", ratelimit.Strict), h.RefreshProblemData)
		api.POST("/verify-builder", h.auth.Required(), h.limit("verify-builder", ratelimit.Sensitive), h.VerifyBuilder)
	}
}

func (h *Handler) limit(endpoint string, cfg ratelimit.Config) gin.HandlerFunc {
	return ratelimit.Middleware(h.limiter, endpoint, cfg, auth.UserID)
}

var (
	validatorsOnce sync.Once
	subredditRe    = regexp.MustCompile(`^[A-Za-z0-9_]{2,21}$`)
)

func registerValidators() {
	validatorsOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "" || name == "-" {
				return f.Name
			}
			return name
		})
		_ = v.RegisterValidation("subreddit", func(fl validator.FieldLevel) bool {
			return subredditRe.MatchString(pipeline.NormalizeSubreddit(fl.Field().String()))
		})
	})
}

// bind decodes the JSON body into req. An empty body is allowed when
// optional is set.
func (h *Handler) bind(c *gin.Context, req any, optional bool) bool {
	err := c.ShouldBindJSON(req)
	if err == nil {
		return true
	}
	if optional && errors.Is(err, io.EOF) {
		return true
	}
	h.failValidation(c, err)
	return false
}

func (h *Handler) require(c *gin.Context, secrets map[string]string) bool {
	if err := config.Require(secrets); err != nil {
		h.fail(c, newAPIError(http.StatusInternalServerError, "missing_secret", err))
		return false
	}
	return true
}

type tiktokRequest struct {
	Niche        string `json:"niche" binding:"required,min=2,max=50"`
	ForceRefresh bool   `json:"forceRefresh"`
}

func (h *Handler) SearchTikTok(c *gin.Context) {
	var req tiktokRequest
	if !h.bind(c, &req, false) {
		return
	}
	if !h.require(c, map[string]string{"APIFY_TOKEN": h.secrets.ApifyToken, "LLM_API_KEY": h.secrets.LLMAPIKey}) {
		return
	}

	resp, err := h.scans.ScanTikTok(c.Request.Context(), pipeline.TikTokRequest{
		Niche:        req.Niche,
		ForceRefresh: req.ForceRefresh,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

type redditRequest struct {
	Subreddit string `json:"subreddit" binding:"required,subreddit"`
	Sort      string `json:"sort" binding:"omitempty,oneof=hot new top rising"`
	Limit     int    `json:"limit" binding:"omitempty,min=1,max=100"`
}

func (h *Handler) SearchReddit(c *gin.Context) {
	var req redditRequest
	if !h.bind(c, &req, false) {
		return
	}
	if !h.require(c, map[string]string{"RAPIDAPI_KEY": h.secrets.RapidAPIKey, "LLM_API_KEY": h.secrets.LLMAPIKey}) {
		return
	}

	resp, err := h.scans.ScanReddit(c.Request.Context(), pipeline.RedditRequest{
		Subreddit: req.Subreddit,
		Sort:      req.Sort,
		Limit:     req.Limit,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

type refreshRequest struct {
	ProblemID string `json:"problemId" binding:"omitempty,uuid"`
}

func (h *Handler) RefreshProblemData(c *gin.Context) {
	var req refreshRequest
	if !h.bind(c, &req, true) {
		return
	}

	res, err := h.scans.Refresh(c.Request.Context(), req.ProblemID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type verifyRequest struct {
	GitHubUsername  string `json:"githubUsername" binding:"required,max=200"`
	PaymentKey      string `json:"paymentKey" binding:"max=300"`
	PaymentProvider string `json:"paymentProvider" binding:"omitempty,oneof=stripe polar"`
	SupabaseKey     string `json:"supabaseKey" binding:"max=2000"`
}

func (h *Handler) VerifyBuilder(c *gin.Context) {
	var req verifyRequest
	if !h.bind(c, &req, false) {
		return
	}

	res, err := h.verifier.Verify(c.Request.Context(), auth.UserID(c), verify.Request{
		GitHubUsername:  req.GitHubUsername,
		PaymentKey:      req.PaymentKey,
		PaymentProvider: req.PaymentProvider,
		SupabaseKey:     req.SupabaseKey,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": res})
}

// GetProblems lists stored problems by opportunity score.
func (h *Handler) GetProblems(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	minScore, _ := strconv.Atoi(c.DefaultQuery("min_score", "0"))

	problems, err := h.store.ListProblems(c.Request.Context(), store.ProblemFilter{
		Niche:     c.Query("niche"),
		Sentiment: c.Query("sentiment"),
		MinScore:  minScore,
		Limit:     limit,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"problems": problems,
		"count":    len(problems),
	})
}

func (h *Handler) GetProblem(c *gin.Context) {
	p, err := h.store.GetProblem(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "problem": p})
}

func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.store.Stats(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
