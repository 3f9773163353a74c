package pipeline

import (
	"fmt"
	"strings"

	"problem-radar/internal/metrics"
	"problem-radar/internal/models"
)

type solutionIdea struct {
	title       string
	description string
	approach    string
	stack       []string
}

type solutionTemplate struct {
	name      string
	keywords  []string
	cap       int
	minOffset int
	maxOffset int
	ideas     []solutionIdea
}

var solutionTemplates = []solutionTemplate{
	{
		name:      "business",
		keywords:  []string{"business", "startup", "entrepreneur", "marketing", "sales", "ecommerce", "freelance", "finance", "money"},
		cap:       92,
		minOffset: -5,
		maxOffset: 10,
		ideas: []solutionIdea{
			{
				title:       "Micro-SaaS for %s",
				description: "A focused subscription tool that removes the manual work behind %s.",
				approach:    "Ship a spreadsheet-replacing MVP, charge from day one and grow through niche communities.",
				stack:       []string{"Next.js", "Supabase", "Stripe"},
			},
			{
				title:       "Done-for-you service: %s",
				description: "A productized service that delivers the outcome for people stuck on %s.",
				approach:    "Deliver manually for the first customers, then automate the repeatable steps.",
				stack:       []string{"Airtable", "Zapier", "Stripe"},
			},
		},
	},
	{
		name:      "productivity",
		keywords:  []string{"productivity", "career", "work", "remote", "job", "time", "focus", "study", "education"},
		cap:       90,
		minOffset: -8,
		maxOffset: 8,
		ideas: []solutionIdea{
			{
				title:       "%s assistant",
				description: "A browser extension that handles the repetitive parts of %s where people already work.",
				approach:    "Launch on the extension store with a free tier and a paid automation tier.",
				stack:       []string{"TypeScript", "Chrome Extensions API", "OpenAI API"},
			},
			{
				title:       "Playbook templates for %s",
				description: "Ready-made templates and checklists that turn %s into a routine.",
				approach:    "Sell a template pack, then upsell a hosted version with reminders.",
				stack:       []string{"Notion", "Gumroad"},
			},
		},
	},
	{
		name:      "health",
		keywords:  []string{"health", "fitness", "wellness", "mental", "sleep", "diet", "nutrition", "medical", "gym"},
		cap:       88,
		minOffset: -10,
		maxOffset: 6,
		ideas: []solutionIdea{
			{
				title:       "Habit coach for %s",
				description: "A mobile habit tracker with nudges built around %s.",
				approach:    "Start with a streak-based free app and add paid coaching programs.",
				stack:       []string{"React Native", "Expo", "Supabase"},
			},
			{
				title:       "Accountability community for %s",
				description: "Small paid cohorts that keep members on track with %s.",
				approach:    "Run the first cohorts by hand on Discord before building software.",
				stack:       []string{"Discord", "Stripe", "Typeform"},
			},
		},
	},
}

var defaultSolutionTemplate = solutionTemplate{
	name:      "default",
	cap:       85,
	minOffset: -10,
	maxOffset: 5,
	ideas: []solutionIdea{
		{
			title:       "Guided tool for %s",
			description: "A simple web app that walks people through %s step by step.",
			approach:    "Validate with a landing page and waitlist before building the core flow.",
			stack:       []string{"Next.js", "Supabase", "OpenAI API"},
		},
		{
			title:       "Curated directory for %s",
			description: "A searchable directory of vetted resources for %s.",
			approach:    "Seed it by hand, monetize with featured listings.",
			stack:       []string{"Astro", "Airtable"},
		},
	},
}

func templateFor(p *models.Problem) solutionTemplate {
	haystack := strings.ToLower(p.Category + " " + p.Niche)
	for _, t := range solutionTemplates {
		for _, kw := range t.keywords {
			if strings.Contains(haystack, kw) {
				return t
			}
		}
	}
	return defaultSolutionTemplate
}

// BuildSolutions returns the template suggestions for p. Market fit is the
// opportunity score plus an offset from the template's band, capped.
func BuildSolutions(p *models.Problem, r metrics.Rand) []models.Solution {
	t := templateFor(p)
	subject := strings.ToLower(truncateRunes(strings.TrimSpace(p.Title), 60))

	out := make([]models.Solution, 0, len(t.ideas))
	for _, idea := range t.ideas {
		offset := t.minOffset + r.Intn(t.maxOffset-t.minOffset+1)
		fit := metrics.Clamp(p.OpportunityScore+offset, 0, t.cap)
		sol := models.Solution{
			ProblemID:   p.ID,
			Title:       fmt.Sprintf(idea.title, subject),
			Description: fmt.Sprintf(idea.description, subject),
			Approach:    idea.approach,
			MarketFit:   fit,
			AIGenerated: true,
		}
		sol.SetTechStack(idea.stack)
		out = append(out, sol)
	}
	return out
}
