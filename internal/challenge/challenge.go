// internal/challenge/challenge.go
//
// Package challenge holds the build-off challenge catalog. Each game is
// assigned one challenge; both players write a prompt against it and the
// judge grades the results against its criteria.
package challenge

import "math/rand"

// Challenge describes a single build task given to both players.
type Challenge struct {
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	Requirements    []string `json:"requirements"`
	GradingCriteria []string `json:"grading_criteria"`
}

// FullPrompt is the text shown to contestants.
func (c Challenge) FullPrompt() string {
	return c.Title + ": " + c.Description
}

// GradingContext is the text handed to the judge alongside the submissions.
func (c Challenge) GradingContext() string {
	out := "Challenge: " + c.Title + "\nDescription: " + c.Description + "\n\nRequirements:\n"
	for _, req := range c.Requirements {
		out += "- " + req + "\n"
	}
	out += "\nGrading Criteria:\n"
	for _, crit := range c.GradingCriteria {
		out += "- " + crit + "\n"
	}
	return out
}

// Find recovers the catalog entry behind an assigned contestant prompt, so a
// game that stored only the FullPrompt text can hand the judge the full
// requirements and grading criteria.
func Find(fullPrompt string) (Challenge, bool) {
	for _, c := range catalog {
		if c.FullPrompt() == fullPrompt {
			return c, true
		}
	}
	return Challenge{}, false
}

var catalog = []Challenge{
	{
		Title:       "Coffee Shop Landing Page",
		Description: "Create a landing page for a local coffee shop",
		Requirements: []string{
			"Hero section with shop name and tagline",
			"Menu or featured drinks section",
			"Call-to-action button (Order Now or Visit Us)",
			"Warm, inviting color scheme",
		},
		GradingCriteria: []string{
			"Visual appeal and theme consistency",
			"Layout organization",
			"Color scheme and atmosphere",
			"Overall design quality",
		},
	},
	{
		Title:       "Personal Portfolio Site",
		Description: "Design a simple portfolio website for a creative professional",
		Requirements: []string{
			"Header with name and title",
			"About section with bio",
			"Projects or work showcase grid",
			"Contact section or social links",
		},
		GradingCriteria: []string{
			"Professional appearance",
			"Layout and spacing",
			"Visual hierarchy",
			"Overall presentation",
		},
	},
	{
		Title:       "Fitness App Landing",
		Description: "Build a landing page for a new fitness tracking app",
		Requirements: []string{
			"Bold headline and app screenshot placeholder",
			"Three feature highlights",
			"Download or signup call-to-action",
			"Energetic color palette",
		},
		GradingCriteria: []string{
			"Energy and motivation conveyed",
			"Feature presentation clarity",
			"Call-to-action prominence",
			"Mobile-friendly layout",
		},
	},
	{
		Title:       "Restaurant Menu Page",
		Description: "Create an elegant menu page for an upscale restaurant",
		Requirements: []string{
			"Restaurant name and ambiance-setting header",
			"Menu sections (appetizers, mains, desserts)",
			"Prices displayed tastefully",
			"Sophisticated typography",
		},
		GradingCriteria: []string{
			"Elegance and sophistication",
			"Menu readability",
			"Typography choices",
			"Overall dining atmosphere",
		},
	},
	{
		Title:       "Weather Dashboard",
		Description: "Design a clean weather dashboard interface",
		Requirements: []string{
			"Current conditions display with temperature",
			"Multi-day forecast row",
			"Location name and date",
			"Weather-appropriate visual styling",
		},
		GradingCriteria: []string{
			"Information hierarchy",
			"Data presentation clarity",
			"Visual weather representation",
			"Dashboard organization",
		},
	},
	{
		Title:       "Blog Homepage",
		Description: "Create a homepage for a personal blog",
		Requirements: []string{
			"Blog title and tagline header",
			"Featured or recent post cards",
			"Sidebar or navigation area",
			"Readable content-focused layout",
		},
		GradingCriteria: []string{
			"Content readability",
			"Post card design",
			"Navigation clarity",
			"Overall blog feel",
		},
	},
	{
		Title:       "Product Launch Page",
		Description: "Build a hype page for an upcoming product launch",
		Requirements: []string{
			"Product name and teaser copy",
			"Countdown or launch date element",
			"Email signup form",
			"Dramatic visual styling",
		},
		GradingCriteria: []string{
			"Excitement and anticipation",
			"Signup form design",
			"Visual drama",
			"Message clarity",
		},
	},
	{
		Title:       "Event RSVP Page",
		Description: "Design an invitation page for a special event",
		Requirements: []string{
			"Event name, date, and venue",
			"RSVP form or button",
			"Schedule or agenda section",
			"Celebratory visual theme",
		},
		GradingCriteria: []string{
			"Invitation appeal",
			"Event detail presentation",
			"RSVP flow clarity",
			"Thematic consistency",
		},
	},
	{
		Title:       "Travel Destination Page",
		Description: "Create a showcase page for a travel destination",
		Requirements: []string{
			"Destination hero with evocative headline",
			"Highlights or attractions grid",
			"Practical info section (best season, getting there)",
			"Wanderlust-inducing color and imagery choices",
		},
		GradingCriteria: []string{
			"Sense of place conveyed",
			"Attraction presentation",
			"Information usefulness",
			"Visual storytelling",
		},
	},
	{
		Title:       "Pricing Comparison Page",
		Description: "Build a pricing page comparing three plan tiers",
		Requirements: []string{
			"Three pricing cards side by side",
			"Feature list per tier",
			"Highlighted recommended plan",
			"Clear purchase call-to-action per card",
		},
		GradingCriteria: []string{
			"Comparison scannability",
			"Recommended plan emphasis",
			"Card design consistency",
			"Decision-making support",
		},
	},
}

// All returns the full catalog.
func All() []Challenge {
	out := make([]Challenge, len(catalog))
	copy(out, catalog)
	return out
}

// Random picks a challenge for a game created without an explicit one.
func Random() Challenge {
	return catalog[rand.Intn(len(catalog))]
}
