package scorer

import (
	"context"
	"fmt"
	"strings"

	"problem-radar/internal/fetcher"
	"problem-radar/internal/models"
)

type Kind string

const (
	KindAI       Kind = "ai"
	KindFallback Kind = "fallback"
)

// ExtractedProblem is one problem as emitted by the model.
type ExtractedProblem struct {
	Title            string               `json:"title"`
	Subtitle         string               `json:"subtitle"`
	Category         string               `json:"category"`
	Sentiment        string               `json:"sentiment"`
	PainPoints       []string             `json:"painPoints"`
	HiddenInsight    models.HiddenInsight `json:"hiddenInsight"`
	DemandVelocity   int                  `json:"demandVelocity"`
	CompetitionGap   int                  `json:"competitionGap"`
	OpportunityScore int                  `json:"opportunityScore"`
}

// Extraction separates "the model found nothing" (KindAI, empty Problems)
// from "the model could not be asked" (KindFallback, Err set).
type Extraction struct {
	Kind     Kind
	Problems []ExtractedProblem
	Err      error
}

func fallback(err error) Extraction {
	return Extraction{Kind: KindFallback, Err: err}
}

var insightSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"surfaceAsk":   map[string]any{"type": "string", "description": "What people literally ask for"},
		"realProblem":  map[string]any{"type": "string", "description": "The underlying problem behind the ask"},
		"hiddenSignal": map[string]any{"type": "string", "description": "The non-obvious market signal"},
	},
	"required": []string{"surfaceAsk", "realProblem", "hiddenSignal"},
}

var (
	demandVelocitySchema = map[string]any{"type": "integer", "minimum": 20, "maximum": 200, "description": "How fast demand is growing"}
	competitionGapSchema = map[string]any{"type": "integer", "minimum": 30, "maximum": 95, "description": "How underserved the problem is"}
)

func problemSchema(withOpportunity bool) map[string]any {
	props := map[string]any{
		"title":          map[string]any{"type": "string", "description": "Short problem statement, under 80 characters"},
		"subtitle":       map[string]any{"type": "string", "description": "One sentence of context"},
		"category":       map[string]any{"type": "string"},
		"sentiment":      map[string]any{"type": "string", "enum": []string{"exploding", "rising", "stable", "declining"}},
		"painPoints":     map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "minItems": 2, "maxItems": 5},
		"hiddenInsight":  insightSchema,
		"demandVelocity": demandVelocitySchema,
		"competitionGap": competitionGapSchema,
	}
	required := []string{"title", "subtitle", "category", "sentiment", "painPoints", "hiddenInsight", "demandVelocity", "competitionGap"}
	if withOpportunity {
		props["opportunityScore"] = map[string]any{"type": "integer", "minimum": 0, "maximum": 100}
		required = append(required, "opportunityScore")
	}
	return map[string]any{"type": "object", "properties": props, "required": required}
}

func problemsTool(name, description string, withOpportunity bool) Tool {
	return Tool{
		Name:        name,
		Description: description,
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"problems": map[string]any{"type": "array", "items": problemSchema(withOpportunity)},
			},
			"required": []string{"problems"},
		},
	}
}

var (
	tiktokTool = problemsTool("extract_problems", "Extract recurring, unsolved problems people describe in short-form videos", false)
	redditTool = problemsTool("extract_reddit_problems", "Extract recurring, unsolved problems people describe in subreddit posts", true)
)

var insightTool = Tool{
	Name:        "generate_hidden_insight",
	Description: "Explain the hidden market insight behind a problem",
	Parameters:  insightSchema,
}

const extractSystem = `You are a market researcher who finds problems worth building products for.
Only report problems that several people share. Prefer specific problems over generic complaints.`

const maxPromptItems = 40

// ExtractTikTokProblems asks the model for problems discussed in videos.
func (s *Scorer) ExtractTikTokProblems(ctx context.Context, niche string, videos []fetcher.Video) Extraction {
	var b strings.Builder
	fmt.Fprintf(&b, "Niche: %s\n\nTikTok videos (views, likes, shares, comments, caption):\n", niche)
	for i, v := range videos {
		if i == maxPromptItems {
			break
		}
		fmt.Fprintf(&b, "%d. [%d views, %d likes, %d shares, %d comments] %s\n",
			i+1, v.PlayCount, v.DiggCount, v.ShareCount, v.CommentCount, truncate(v.Text, 300))
	}
	b.WriteString("\nReturn between 3 and 6 problems.")

	var out struct {
		Problems []ExtractedProblem `json:"problems"`
	}
	if err := s.CallTool(ctx, extractSystem, b.String(), tiktokTool, &out); err != nil {
		return fallback(err)
	}
	return Extraction{Kind: KindAI, Problems: out.Problems}
}

// ExtractRedditProblems asks the model for problems discussed in posts and
// their top comments, keyed by post id.
func (s *Scorer) ExtractRedditProblems(ctx context.Context, subreddit string, posts []fetcher.Post, comments map[string][]fetcher.Comment) Extraction {
	var b strings.Builder
	fmt.Fprintf(&b, "Subreddit: r/%s\n\nPosts (score, comments, title, body):\n", subreddit)
	for i, p := range posts {
		if i == maxPromptItems {
			break
		}
		fmt.Fprintf(&b, "%d. [%d upvotes, %d comments] %s\n", i+1, p.Score, p.NumComments, p.Title)
		if body := strings.TrimSpace(p.SelfText); body != "" {
			fmt.Fprintf(&b, "   %s\n", truncate(body, 400))
		}
		for j, c := range comments[p.ID] {
			if j == 5 {
				break
			}
			fmt.Fprintf(&b, "   > %s\n", truncate(c.Body, 200))
		}
	}
	b.WriteString("\nReturn between 3 and 6 problems. Score opportunity from 0 to 100.")

	var out struct {
		Problems []ExtractedProblem `json:"problems"`
	}
	if err := s.CallTool(ctx, extractSystem, b.String(), redditTool, &out); err != nil {
		return fallback(err)
	}
	return Extraction{Kind: KindAI, Problems: out.Problems}
}

// GenerateHiddenInsight asks for the insight triple of an existing problem.
func (s *Scorer) GenerateHiddenInsight(ctx context.Context, p *models.Problem) (models.HiddenInsight, error) {
	user := fmt.Sprintf("Problem: %s\nContext: %s\nCategory: %s\nPain points: %s",
		p.Title, p.Description, p.Category, strings.Join(p.PainPointList(), "; "))

	var hi models.HiddenInsight
	if err := s.CallTool(ctx, extractSystem, user, insightTool, &hi); err != nil {
		return models.HiddenInsight{}, err
	}
	if strings.TrimSpace(hi.SurfaceAsk) == "" {
		return models.HiddenInsight{}, fmt.Errorf("%s: empty surfaceAsk", insightTool.Name)
	}
	return hi, nil
}
