package categorize

import (
	"context"
	"strings"

	"github.com/finboard/backend/internal/model"
)

// keywordRule maps a description substring to a category. First match in
// slice order wins, so more specific fragments come first.
type keywordRule struct {
	keyword  string
	category model.Category
}

var defaultRules = []keywordRule{
	// Streaming and digital services
	{"netflix", model.CategoryEntertainment},
	{"spotify", model.CategoryEntertainment},
	{"disney", model.CategoryEntertainment},
	{"prime video", model.CategoryEntertainment},
	{"youtube", model.CategoryEntertainment},
	{"audible", model.CategoryEntertainment},
	{"playstation", model.CategoryEntertainment},
	{"nintendo", model.CategoryEntertainment},
	{"cinema", model.CategoryEntertainment},
	{"kino", model.CategoryEntertainment},

	// Groceries
	{"rewe", model.CategoryGroceries},
	{"edeka", model.CategoryGroceries},
	{"lidl", model.CategoryGroceries},
	{"aldi", model.CategoryGroceries},
	{"netto", model.CategoryGroceries},
	{"penny", model.CategoryGroceries},
	{"kaufland", model.CategoryGroceries},
	{"supermarkt", model.CategoryGroceries},
	{"grocery", model.CategoryGroceries},

	// Eating out
	{"restaurant", model.CategoryRestaurants},
	{"mcdonald", model.CategoryRestaurants},
	{"burger king", model.CategoryRestaurants},
	{"kfc", model.CategoryRestaurants},
	{"pizza", model.CategoryRestaurants},
	{"cafe", model.CategoryRestaurants},
	{"bar ", model.CategoryRestaurants},
	{"lieferando", model.CategoryRestaurants},

	// Transport
	{"deutsche bahn", model.CategoryTransport},
	{"deutschlandticket", model.CategoryTransport},
	{"bvg", model.CategoryTransport},
	{"mvg", model.CategoryTransport},
	{"uber", model.CategoryTransport},
	{"bolt", model.CategoryTransport},
	{"taxi", model.CategoryTransport},
	{"tankstelle", model.CategoryTransport},
	{"shell", model.CategoryTransport},
	{"aral", model.CategoryTransport},
	{"parkhaus", model.CategoryTransport},

	// Health & fitness
	{"gym", model.CategoryHealthFitness},
	{"fitness", model.CategoryHealthFitness},
	{"mcfit", model.CategoryHealthFitness},
	{"apotheke", model.CategoryHealthFitness},
	{"pharmacy", model.CategoryHealthFitness},

	// Housing and utilities
	{"miete", model.CategoryHousing},
	{"rent", model.CategoryHousing},
	{"hausverwaltung", model.CategoryHousing},
	{"stadtwerke", model.CategoryUtilities},
	{"strom", model.CategoryUtilities},
	{"telekom", model.CategoryUtilities},
	{"vodafone", model.CategoryUtilities},
	{"mobilfunk", model.CategoryUtilities},
	{"internet", model.CategoryUtilities},

	// Insurance
	{"versicherung", model.CategoryInsurance},
	{"allianz", model.CategoryInsurance},
	{"huk", model.CategoryInsurance},
	{"insurance", model.CategoryInsurance},

	// Travel
	{"airbnb", model.CategoryTravel},
	{"booking.com", model.CategoryTravel},
	{"hotel", model.CategoryTravel},
	{"flight", model.CategoryTravel},
	{"lufthansa", model.CategoryTravel},

	// Education
	{"udemy", model.CategoryEducation},
	{"coursera", model.CategoryEducation},
	{"university", model.CategoryEducation},
	{"universitaet", model.CategoryEducation},

	// Income
	{"gehalt", model.CategorySalary},
	{"lohn", model.CategorySalary},
	{"salary", model.CategorySalary},

	// Shopping (generic, so late in the list)
	{"amazon", model.CategoryShopping},
	{"zalando", model.CategoryShopping},
	{"ebay", model.CategoryShopping},
	{"ikea", model.CategoryShopping},
	{"store", model.CategoryShopping},
	{"shop", model.CategoryShopping},
}

// RuleCategorizer is the local keyword-rule fallback table.
type RuleCategorizer struct {
	rules []keywordRule
}

// NewRuleCategorizer creates a categorizer with the built-in rule table.
func NewRuleCategorizer() *RuleCategorizer {
	return &RuleCategorizer{rules: defaultRules}
}

// Categorize matches the description against the rule table. Unknown
// merchants get CategoryOther; this never errors.
func (r *RuleCategorizer) Categorize(_ context.Context, description string) (model.Category, error) {
	d := strings.ToLower(description)
	for _, rule := range r.rules {
		if strings.Contains(d, rule.keyword) {
			return rule.category, nil
		}
	}
	return model.CategoryOther, nil
}
