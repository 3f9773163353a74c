package pipeline

import (
	"fmt"
	"strings"

	"problem-radar/internal/fetcher"
	"problem-radar/internal/models"
)

// TemplateInsight is used when the model cannot produce a hidden insight.
func TemplateInsight(p *models.Problem) models.HiddenInsight {
	subject := strings.TrimSpace(p.Title)
	area := p.Category
	if area == "" {
		area = p.Niche
	}
	if area == "" {
		area = "this space"
	}
	return models.HiddenInsight{
		SurfaceAsk:   fmt.Sprintf("People keep asking for help with: %s", subject),
		RealProblem:  fmt.Sprintf("Existing options in %s do not fit how people actually deal with this day to day", area),
		HiddenSignal: "Repeated requests with no clear go-to answer point to an underserved market",
	}
}

func redditFallbackInsight(sub string, p fetcher.Post) models.HiddenInsight {
	return models.HiddenInsight{
		SurfaceAsk:   fmt.Sprintf("r/%s is asking: %s", sub, truncateRunes(strings.TrimSpace(p.Title), 80)),
		RealProblem:  fmt.Sprintf("Members of r/%s lack a reliable tool or resource for this", sub),
		HiddenSignal: fmt.Sprintf("%d upvotes and %d comments show demand that nobody is serving yet", p.Score, p.NumComments),
	}
}
